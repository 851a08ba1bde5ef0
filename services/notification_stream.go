package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StreamPollInterval is how often the SSE stream polls for new notifications.
var StreamPollInterval = 2 * time.Second

// streamLookback is how far behind the newest delivered notification each poll
// re-scans, so rows whose transaction commits late are still delivered.
var streamLookback = time.Minute

const streamScanLimit = 500

// streamCursor tracks which notifications a stream has already delivered.
// Rows inside the lookback window are remembered by id.
type streamCursor struct {
	newest time.Time
	seen   map[string]time.Time
}

func newStreamCursor(start time.Time) *streamCursor {
	return &streamCursor{newest: start, seen: map[string]time.Time{}}
}

// from is the lower bound of the next scan.
func (c *streamCursor) from() time.Time {
	return c.newest.Add(-streamLookback)
}

// admit returns the notes not delivered yet and advances the window.
func (c *streamCursor) admit(notes []models.CharacterNotification) []models.CharacterNotification {
	var fresh []models.CharacterNotification
	for _, n := range notes {
		if _, ok := c.seen[n.ID]; ok {
			continue
		}
		c.seen[n.ID] = n.CreatedAt
		if n.CreatedAt.After(c.newest) {
			c.newest = n.CreatedAt
		}
		fresh = append(fresh, n)
	}
	floor := c.from()
	for id, at := range c.seen {
		if at.Before(floor) {
			delete(c.seen, id)
		}
	}
	return fresh
}

// StreamSSE streams new notifications for one character as server-sent events.
// Only notifications created after the stream opens are sent.
func (s *NotificationService) StreamSSE(c *fiber.Ctx, characterID string, log *zap.Logger) error {
	if err := requireCharacterID(characterID); err != nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-done:
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(StreamPollInterval)
		defer ticker.Stop()

		cursor := newStreamCursor(time.Now())
		existing, err := s.since(ctx, characterID, cursor.from())
		if err != nil && log != nil {
			log.Warn("notification stream init failed", zap.String("character_id", characterID), zap.Error(err))
		}
		cursor.admit(existing)

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				notes, err := s.since(ctx, characterID, cursor.from())
				if err != nil {
					if log != nil {
						log.Warn("notification stream query failed", zap.String("character_id", characterID), zap.Error(err))
					}
					continue
				}
				notes = cursor.admit(notes)
				if len(notes) == 0 {
					// keepalive
					w.WriteString(":\n\n")
				}
				for _, n := range notes {
					payload, err := json.Marshal(n)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, payload)
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
	return nil
}
