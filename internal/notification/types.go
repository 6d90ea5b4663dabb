// Package notification delivers job outcome messages to operators through
// shoutrrr service URLs (Telegram, Discord, SMTP, generic webhooks and so on).
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rmuseum/naskban-go/internal/persian"
)

// Type represents the category of a notification
type Type string

const (
	// TypeJob reports the end of a long-running job
	TypeJob Type = "job"
	// TypeFinding reports a finished poem-match finding
	TypeFinding Type = "finding"
)

// Notification is a single outbound message.
type Notification struct {
	Type    Type
	Title   string
	Message string
}

// JobOutcome describes how a long-running job ended.
type JobOutcome struct {
	ID        uuid.UUID
	Name      string
	Succeeded bool
	Error     string
}

// Notifier is implemented by anything that can report job outcomes.
type Notifier interface {
	NotifyJob(ctx context.Context, outcome JobOutcome) error
}

// Provider sends a notification over one transport.
type Provider interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Noop discards every notification.
type Noop struct{}

// NotifyJob implements Notifier.
func (Noop) NotifyJob(context.Context, JobOutcome) error { return nil }

// jobNotification renders a job outcome.
func jobNotification(outcome JobOutcome) *Notification {
	if outcome.Succeeded {
		return &Notification{
			Type:    TypeJob,
			Title:   fmt.Sprintf("%s: انجام شد", outcome.Name),
			Message: fmt.Sprintf("کار %s (%s) با موفقیت به پایان رسید.", outcome.Name, outcome.ID),
		}
	}
	message := fmt.Sprintf("کار %s (%s) ناموفق بود.", outcome.Name, outcome.ID)
	if errText := strings.TrimSpace(outcome.Error); errText != "" {
		message += "\n" + errText
	}
	return &Notification{
		Type:    TypeJob,
		Title:   fmt.Sprintf("%s: خطا", outcome.Name),
		Message: message,
	}
}

// findingNotification renders a finished poem-match finding.
func findingNotification(bookTitle, catTitle string, catID int) *Notification {
	return &Notification{
		Type:    TypeFinding,
		Title:   "جستجوی شعر به پایان رسید",
		Message: fmt.Sprintf("جستجوی «%s» در «%s» (بخش %s) پایان یافت.", catTitle, bookTitle, persian.Number(catID)),
	}
}
