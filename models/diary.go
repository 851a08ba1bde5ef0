package models

import (
	"time"
)

type StudentGroup struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	TrainerID   *string   `gorm:"type:uuid;index" json:"trainer_id"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type StudentGroupMember struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	GroupID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_group_student" json:"group_id"`
	StudentID string    `gorm:"type:uuid;not null;uniqueIndex:idx_group_student;index" json:"student_id"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

type LessonPlan struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	GroupID     string    `gorm:"type:uuid;index;not null" json:"group_id"`
	TrainerID   *string   `gorm:"type:uuid;index" json:"trainer_id"`
	LessonDate  time.Time `gorm:"type:date;index;not null" json:"lesson_date"`
	Topic       string    `gorm:"not null" json:"topic"`
	Description string    `gorm:"type:text" json:"description"`
	Goals       string    `gorm:"type:text" json:"goals"`
	Materials   string    `gorm:"type:text" json:"materials"`
	Status      string    `gorm:"type:varchar(16);default:'planned'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

type DiaryEntry struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	StudentID    string    `gorm:"type:uuid;index;not null" json:"student_id"`
	TrainerID    *string   `gorm:"type:uuid;index" json:"trainer_id"`
	LessonPlanID *string   `gorm:"type:uuid" json:"lesson_plan_id"`
	EntryDate    time.Time `gorm:"type:date;index;not null" json:"entry_date"`
	Comment      string    `gorm:"type:text;not null" json:"comment"`
	Homework     *string   `gorm:"type:text" json:"homework"`
	Grade        *int      `json:"grade"`
	Attendance   string    `gorm:"type:varchar(16);default:'present'" json:"attendance"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type DiaryMedia struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	DiaryEntryID string    `gorm:"type:uuid;index;not null" json:"diary_entry_id"`
	MediaType    string    `gorm:"type:varchar(16);not null" json:"media_type"`
	MediaURL     string    `gorm:"type:text;not null" json:"media_url"`
	ThumbnailURL *string   `gorm:"type:text" json:"thumbnail_url"`
	Description  *string   `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DiaryEntryView is an entry joined with participant names and its media.
type DiaryEntryView struct {
	DiaryEntry
	StudentName string       `json:"student_name"`
	TrainerName *string      `json:"trainer_name"`
	Media       []DiaryMedia `json:"media" gorm:"-"`
}

type LessonPlanView struct {
	LessonPlan
	TrainerName *string `json:"trainer_name"`
	GroupName   string  `json:"group_name"`
}

type StudentGroupView struct {
	StudentGroup
	TrainerName  *string `json:"trainer_name"`
	MembersCount int64   `json:"members_count"`
}
