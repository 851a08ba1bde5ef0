package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	diaryEntriesLimit = 100
	lessonPlansLimit  = 50
)

// Viewer is the caller as asserted by the gateway headers.
type Viewer struct {
	UserID string
	Role   models.Role
}

// ParseDiaryRole maps X-Role to a diary role. An empty header means student;
// anything other than student, trainer or director is forbidden.
func ParseDiaryRole(raw string) (models.Role, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case "":
		return models.RoleStudent, nil
	case models.RoleStudent, models.RoleTrainer, models.RoleDirector:
		return role, nil
	}
	return "", ForbiddenError("role %q cannot use the diary", raw)
}

// MediaSigner issues direct-upload URLs for diary media.
type MediaSigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PublicURL(key string) string
}

type DiaryService struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Media    MediaSigner
	Location *time.Location
}

func NewDiaryService(db *gorm.DB, log *zap.Logger, media MediaSigner, loc *time.Location) *DiaryService {
	if loc == nil {
		loc = time.UTC
	}
	return &DiaryService{DB: db, Log: log, Media: media, Location: loc}
}

func (s *DiaryService) today() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireStaff(v Viewer, what string) error {
	if !v.Role.IsStaff() {
		return ForbiddenError("only trainers can %s", what)
	}
	return nil
}

func requireViewerID(v Viewer) error {
	if v.UserID == "" {
		return ValidationError("missing_user_id", "X-User-Id is required")
	}
	if !isUUID(v.UserID) {
		return ValidationError("invalid_user_id", "X-User-Id must be a uuid")
	}
	return nil
}

func entriesQuery(db *gorm.DB) *gorm.DB {
	return db.Table("diary_entries AS de").
		Select("de.*, u1.name AS student_name, u2.name AS trainer_name").
		Joins("JOIN users u1 ON u1.id = de.student_id").
		Joins("LEFT JOIN users u2 ON u2.id = de.trainer_id").
		Order("de.entry_date DESC, de.created_at DESC")
}

// ListEntries returns diary entries visible to the viewer: directors see all
// (or one student's), trainers their own entries, students only theirs.
func (s *DiaryService) ListEntries(ctx context.Context, v Viewer, studentID string) ([]models.DiaryEntryView, error) {
	db := s.DB.WithContext(ctx)
	q := entriesQuery(db)
	switch v.Role {
	case models.RoleDirector:
		if studentID != "" {
			if !isUUID(studentID) {
				return []models.DiaryEntryView{}, nil
			}
			q = q.Where("de.student_id = ?", studentID)
		} else {
			q = q.Limit(diaryEntriesLimit)
		}
	case models.RoleTrainer:
		if err := requireViewerID(v); err != nil {
			return nil, err
		}
		q = q.Where("de.trainer_id = ?", v.UserID)
	default:
		if err := requireViewerID(v); err != nil {
			return nil, err
		}
		q = q.Where("de.student_id = ?", v.UserID)
	}

	var entries []models.DiaryEntryView
	if err := q.Scan(&entries).Error; err != nil {
		return nil, err
	}
	if err := s.attachMedia(db, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *DiaryService) attachMedia(db *gorm.DB, entries []models.DiaryEntryView) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	var media []models.DiaryMedia
	if err := db.Where("diary_entry_id IN ?", ids).Order("created_at").Find(&media).Error; err != nil {
		return err
	}
	byEntry := make(map[string][]models.DiaryMedia, len(entries))
	for _, m := range media {
		byEntry[m.DiaryEntryID] = append(byEntry[m.DiaryEntryID], m)
	}
	for i := range entries {
		entries[i].Media = byEntry[entries[i].ID]
		if entries[i].Media == nil {
			entries[i].Media = []models.DiaryMedia{}
		}
	}
	return nil
}

type MediaInput struct {
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Thumbnail   *string `json:"thumbnail"`
	Description *string `json:"description"`
}

type CreateEntryInput struct {
	StudentID    string       `json:"student_id"`
	LessonPlanID *string      `json:"lesson_plan_id"`
	EntryDate    string       `json:"entry_date"`
	Comment      string       `json:"comment"`
	Homework     *string      `json:"homework"`
	Grade        *int         `json:"grade"`
	Attendance   string       `json:"attendance"`
	Media        []MediaInput `json:"media"`
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, ValidationError("invalid_"+field, "%s must be YYYY-MM-DD", field)
	}
	return d, nil
}

// CreateEntry writes a diary entry with its media. Trainers and directors only.
func (s *DiaryService) CreateEntry(ctx context.Context, v Viewer, in CreateEntryInput) (*models.DiaryEntryView, error) {
	if err := requireStaff(v, "create diary entries"); err != nil {
		return nil, err
	}
	if err := requireViewerID(v); err != nil {
		return nil, err
	}
	if !isUUID(in.StudentID) {
		return nil, ValidationError("missing_student_id", "student_id is required")
	}
	if strings.TrimSpace(in.Comment) == "" {
		return nil, ValidationError("missing_comment", "comment is required")
	}
	if in.LessonPlanID != nil && !isUUID(*in.LessonPlanID) {
		return nil, ValidationError("invalid_lesson_plan_id", "lesson_plan_id must be a uuid")
	}
	entryDate := s.today()
	if in.EntryDate != "" {
		d, err := parseDate("entry_date", in.EntryDate)
		if err != nil {
			return nil, err
		}
		entryDate = d
	}
	attendance := in.Attendance
	if attendance == "" {
		attendance = models.AttendancePresent
	}
	for _, m := range in.Media {
		if m.Type == "" || m.URL == "" {
			return nil, ValidationError("invalid_media", "media items need type and url")
		}
	}

	trainerID := v.UserID
	entry := models.DiaryEntry{
		ID:           uuid.NewString(),
		StudentID:    in.StudentID,
		TrainerID:    &trainerID,
		LessonPlanID: in.LessonPlanID,
		EntryDate:    entryDate,
		Comment:      in.Comment,
		Homework:     in.Homework,
		Grade:        in.Grade,
		Attendance:   attendance,
	}
	media := make([]models.DiaryMedia, 0, len(in.Media))
	for _, m := range in.Media {
		media = append(media, models.DiaryMedia{
			ID:           uuid.NewString(),
			DiaryEntryID: entry.ID,
			MediaType:    m.Type,
			MediaURL:     m.URL,
			ThumbnailURL: m.Thumbnail,
			Description:  m.Description,
		})
	}

	var out []models.DiaryEntryView
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		var students int64
		if err := tx.Model(&models.User{}).Where("id = ?", in.StudentID).Count(&students).Error; err != nil {
			return err
		}
		if students == 0 {
			return NotFoundError("student_not_found", "student %s not found", in.StudentID)
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if len(media) > 0 {
			if err := tx.Create(&media).Error; err != nil {
				return err
			}
		}
		return entriesQuery(tx).Where("de.id = ?", entry.ID).Scan(&out).Error
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("diary entry %s vanished after insert", entry.ID)
	}
	view := out[0]
	view.Media = media
	return &view, nil
}

// ListPlans returns lesson plans for a group, or the latest plans overall.
func (s *DiaryService) ListPlans(ctx context.Context, groupID string) ([]models.LessonPlanView, error) {
	q := s.DB.WithContext(ctx).Table("lesson_plans AS lp").
		Select("lp.*, u.name AS trainer_name, sg.name AS group_name").
		Joins("LEFT JOIN users u ON u.id = lp.trainer_id").
		Joins("LEFT JOIN student_groups sg ON sg.id = lp.group_id").
		Order("lp.lesson_date DESC")
	if groupID != "" {
		if !isUUID(groupID) {
			return []models.LessonPlanView{}, nil
		}
		q = q.Where("lp.group_id = ?", groupID)
	} else {
		q = q.Limit(lessonPlansLimit)
	}
	var plans []models.LessonPlanView
	return plans, q.Scan(&plans).Error
}

type CreatePlanInput struct {
	GroupID     string `json:"group_id"`
	LessonDate  string `json:"lesson_date"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Goals       string `json:"goals"`
	Materials   string `json:"materials"`
	Status      string `json:"status"`
}

// CreatePlan schedules a lesson for a group. Trainers and directors only.
func (s *DiaryService) CreatePlan(ctx context.Context, v Viewer, in CreatePlanInput) (*models.LessonPlan, error) {
	if err := requireStaff(v, "create lesson plans"); err != nil {
		return nil, err
	}
	if err := requireViewerID(v); err != nil {
		return nil, err
	}
	if !isUUID(in.GroupID) {
		return nil, ValidationError("missing_group_id", "group_id is required")
	}
	if strings.TrimSpace(in.Topic) == "" {
		return nil, ValidationError("missing_topic", "topic is required")
	}
	if in.LessonDate == "" {
		return nil, ValidationError("missing_lesson_date", "lesson_date is required")
	}
	lessonDate, err := parseDate("lesson_date", in.LessonDate)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = "planned"
	}
	trainerID := v.UserID
	plan := models.LessonPlan{
		ID:          uuid.NewString(),
		GroupID:     in.GroupID,
		TrainerID:   &trainerID,
		LessonDate:  lessonDate,
		Topic:       strings.TrimSpace(in.Topic),
		Description: in.Description,
		Goals:       in.Goals,
		Materials:   in.Materials,
		Status:      status,
	}
	err = transact(ctx, s.DB, func(tx *gorm.DB) error {
		var groups int64
		if err := tx.Model(&models.StudentGroup{}).Where("id = ?", in.GroupID).Count(&groups).Error; err != nil {
			return err
		}
		if groups == 0 {
			return NotFoundError("group_not_found", "group %s not found", in.GroupID)
		}
		return tx.Create(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListStudents: directors see every student, trainers the students of their
// groups, students themselves.
func (s *DiaryService) ListStudents(ctx context.Context, v Viewer) ([]models.User, error) {
	db := s.DB.WithContext(ctx)
	var users []models.User
	switch v.Role {
	case models.RoleDirector:
		return users, db.Where("role = ?", models.RoleStudent).Order("name").Find(&users).Error
	case models.RoleTrainer:
		if err := requireViewerID(v); err != nil {
			return nil, err
		}
		err := db.Table("users AS u").
			Select("DISTINCT u.*").
			Joins("JOIN student_group_members sgm ON sgm.student_id = u.id").
			Joins("JOIN student_groups sg ON sg.id = sgm.group_id").
			Where("sg.trainer_id = ? AND u.role = ?", v.UserID, models.RoleStudent).
			Order("u.name").
			Scan(&users).Error
		return users, err
	}
	if err := requireViewerID(v); err != nil {
		return nil, err
	}
	return users, db.Where("id = ?", v.UserID).Find(&users).Error
}

// ListGroups mirrors ListStudents' visibility for groups.
func (s *DiaryService) ListGroups(ctx context.Context, v Viewer) ([]models.StudentGroupView, error) {
	q := s.DB.WithContext(ctx).Table("student_groups AS sg").
		Select("sg.*, u.name AS trainer_name, " +
			"(SELECT COUNT(*) FROM student_group_members m WHERE m.group_id = sg.id) AS members_count").
		Joins("LEFT JOIN users u ON u.id = sg.trainer_id").
		Order("sg.name")
	switch v.Role {
	case models.RoleDirector:
	case models.RoleTrainer:
		if err := requireViewerID(v); err != nil {
			return nil, err
		}
		q = q.Where("sg.trainer_id = ?", v.UserID)
	default:
		if err := requireViewerID(v); err != nil {
			return nil, err
		}
		q = q.Joins("JOIN student_group_members sgm ON sgm.group_id = sg.id").Where("sgm.student_id = ?", v.UserID)
	}
	var groups []models.StudentGroupView
	return groups, q.Scan(&groups).Error
}

// UploadTicket is a presigned direct upload for one media file.
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	Key       string `json:"key"`
	MediaType string `json:"media_type"`
}

// mediaTypeFor accepts image and video uploads only.
func mediaTypeFor(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image", true
	case strings.HasPrefix(ct, "video/"):
		return "video", true
	}
	return "", false
}

// mediaObjectKey builds a collision-free, URL-safe object key for filename.
func mediaObjectKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "media"
	}
	if len(base) > 60 {
		base = base[:60]
	}
	return fmt.Sprintf("diary/%s/%s-%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), base, ext)
}

// MediaUploadURL presigns a PUT for diary media. Trainers and directors only.
func (s *DiaryService) MediaUploadURL(ctx context.Context, v Viewer, filename, contentType string) (*UploadTicket, error) {
	if err := requireStaff(v, "upload diary media"); err != nil {
		return nil, err
	}
	if s.Media == nil {
		return nil, UnavailableError("media_storage_disabled", "media storage is not configured")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, ValidationError("missing_filename", "filename is required")
	}
	mediaType, ok := mediaTypeFor(contentType)
	if !ok {
		return nil, ValidationError("invalid_content_type", "only image and video uploads are allowed")
	}
	key := mediaObjectKey(filename)
	url, err := s.Media.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presigning %s: %w", key, err)
	}
	if s.Log != nil {
		s.Log.Info("diary media upload presigned", zap.String("key", key), zap.String("user_id", v.UserID))
	}
	return &UploadTicket{UploadURL: url, PublicURL: s.Media.PublicURL(key), Key: key, MediaType: mediaType}, nil
}
