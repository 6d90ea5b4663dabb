package notification

import (
	"context"

	"github.com/rmuseum/naskban-go/internal/events"
)

// EventConsumer turns finished poem-match findings on the event bus into
// notifications. Job outcomes are sent directly by the job runner.
type EventConsumer struct {
	service *Service
}

// NewEventConsumer creates a consumer sending through service.
func NewEventConsumer(service *Service) *EventConsumer {
	return &EventConsumer{service: service}
}

// Name implements events.Consumer.
func (c *EventConsumer) Name() string { return componentNotification }

// ProcessEvent implements events.Consumer.
func (c *EventConsumer) ProcessEvent(event events.Event) error {
	if event.Kind != events.KindFindingFinished {
		return nil
	}
	bookTitle, _ := event.Data["book_title"].(string)
	catTitle, _ := event.Data["cat_title"].(string)
	catID, _ := event.Data["cat_id"].(int)
	return c.service.Send(context.Background(), findingNotification(bookTitle, catTitle, catID))
}
