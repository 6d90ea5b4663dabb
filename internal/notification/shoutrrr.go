package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/rmuseum/naskban-go/internal/errors"
)

// ShoutrrrProvider sends through a single shoutrrr router covering all
// configured URLs.
type ShoutrrrProvider struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrProvider validates urls and builds the sender.
func NewShoutrrrProvider(urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component(componentNotification).
			Category(errors.CategoryConfiguration).
			Build()
	}

	sp := &ShoutrrrProvider{urls: slices.Clone(urls)}
	sender, err := shoutrrr.CreateSender(sp.urls...)
	if err != nil {
		return nil, errors.New(sp.redact(err)).
			Component(componentNotification).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	sp.sender = sender
	return sp, nil
}

// Name implements Provider.
func (s *ShoutrrrProvider) Name() string { return "shoutrrr" }

// Send implements Provider. The router applies its own timeout.
func (s *ShoutrrrProvider) Send(_ context.Context, n *Notification) error {
	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			return errors.New(s.redact(err)).
				Component(componentNotification).
				Category(errors.CategoryNotification).
				Build()
		}
	}
	return nil
}

// redact strips configured URLs, which usually embed tokens, from err.
func (s *ShoutrrrProvider) redact(err error) error {
	msg := err.Error()
	for _, u := range s.urls {
		msg = strings.ReplaceAll(msg, u, "[REDACTED]")
	}
	return errors.NewStd(msg)
}
