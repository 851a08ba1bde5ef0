// handlers/diary.go
package handlers

import (
	"github.com/dima260208d-dot/kinetik-energy-project/middleware"
	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
)

// SetupDiaryRoutes mounts the training diary under /diary. Every route first
// resolves the caller's diary role; an unknown role is rejected with 403.
func SetupDiaryRoutes(app *fiber.App, diary *services.DiaryService) {
	g := app.Group("/diary", middleware.UserContextMiddleware())

	g.Get("/entries", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		entries, err := diary.ListEntries(c.UserContext(), v, c.Query("student_id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	g.Post("/entries", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		var in services.CreateEntryInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		entry, err := diary.CreateEntry(c.UserContext(), v, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entry": entry})
	})

	g.Get("/plans", func(c *fiber.Ctx) error {
		if _, err := diaryViewer(c); err != nil {
			return err
		}
		plans, err := diary.ListPlans(c.UserContext(), c.Query("group_id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"plans": plans})
	})

	g.Post("/plans", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		var in services.CreatePlanInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		plan, err := diary.CreatePlan(c.UserContext(), v, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"plan": plan})
	})

	g.Get("/students", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		students, err := diary.ListStudents(c.UserContext(), v)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"students": students})
	})

	g.Get("/groups", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		groups, err := diary.ListGroups(c.UserContext(), v)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"groups": groups})
	})

	g.Post("/media/upload-url", func(c *fiber.Ctx) error {
		v, err := diaryViewer(c)
		if err != nil {
			return err
		}
		var in struct {
			Filename    string `json:"filename"`
			ContentType string `json:"content_type"`
		}
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		ticket, err := diary.MediaUploadURL(c.UserContext(), v, in.Filename, in.ContentType)
		if err != nil {
			return err
		}
		return c.JSON(ticket)
	})
}

func diaryViewer(c *fiber.Ctx) (services.Viewer, error) {
	role, err := services.ParseDiaryRole(middleware.Role(c))
	if err != nil {
		return services.Viewer{}, err
	}
	return services.Viewer{UserID: middleware.UserID(c), Role: role}, nil
}
