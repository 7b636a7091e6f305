package webhooks

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/httpclient"
	"github.com/bartossh/Federation/logger"
)

const postTimeout = 5 * time.Second

var (
	ErrorHookNotImplemented = errors.New("hook not implemented")
	ErrorHookURLInvalid     = errors.New("hook url is not a valid http url")
	ErrorHookNotFound       = errors.New("hook not found")
)

// Message is the message posted to the webhook url about the federation event.
type Message struct {
	Token string           `json:"token"` // Token given to the webhook by the webhooks creator to validate the message source.
	Event federation.Event `json:"event"` // Event is the committed federation event.
}

// Hook is the hook that is used to trigger the webhook.
type Hook struct {
	URL   string `json:"url"`   // URL is a url of the webhook.
	Token string `json:"token"` // Token is the token added to the webhook to verify that the message comes from the valid source.
}

type hooks map[string]Hook

// Service provide webhook service that is used to create, remove and update webhooks.
// Each address can register a single hook per event kind.
type Service struct {
	mux    sync.RWMutex
	buffer map[federation.EventKind]hooks
	post   func(timeout time.Duration, url string, out, in any) error
	log    logger.Logger
}

// New creates new instance of the webhook service.
func New(l logger.Logger) *Service {
	return &Service{
		buffer: make(map[federation.EventKind]hooks),
		post:   httpclient.MakePost,
		log:    l,
	}
}

// CreateWebhook creates new webhook or updates existing one for given trigger and address.
func (s *Service) CreateWebhook(trigger federation.EventKind, address string, h Hook) error {
	if _, err := trigger.MarshalText(); err != nil {
		return ErrorHookNotImplemented
	}
	u, err := url.Parse(h.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrorHookURLInvalid
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	hs, ok := s.buffer[trigger]
	if !ok {
		hs = make(hooks)
		s.buffer[trigger] = hs
	}
	hs[address] = h
	return nil
}

// RemoveWebhook removes webhook for given trigger and address.
func (s *Service) RemoveWebhook(trigger federation.EventKind, address string) error {
	if _, err := trigger.MarshalText(); err != nil {
		return ErrorHookNotImplemented
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	hs, ok := s.buffer[trigger]
	if !ok {
		return ErrorHookNotFound
	}
	if _, ok := hs[address]; !ok {
		return ErrorHookNotFound
	}
	delete(hs, address)
	if len(hs) == 0 {
		delete(s.buffer, trigger)
	}
	return nil
}

// Count returns the number of hooks registered for the trigger.
func (s *Service) Count(trigger federation.EventKind) int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.buffer[trigger])
}

// PostWebhookEvent posts event to all webhooks subscribed to the event kind.
// Hooks are called concurrently and the call returns when all of them are done.
func (s *Service) PostWebhookEvent(ev *federation.Event) {
	s.mux.RLock()
	targets := make([]Hook, 0, len(s.buffer[ev.Kind]))
	for _, h := range s.buffer[ev.Kind] {
		targets = append(targets, h)
	}
	s.mux.RUnlock()

	var wg sync.WaitGroup
	for _, h := range targets {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()
			var in map[string]any
			if err := s.post(postTimeout, h.URL, Message{Token: h.Token, Event: *ev}, &in); err != nil {
				s.log.Error(fmt.Sprintf("webhook service error posting [ %s ] event to webhook url: %s, %s", ev.Kind, h.URL, err.Error()))
			}
		}(h)
	}
	wg.Wait()
}
