// Package push simulates the push service: registration with the push
// server, and delivery of messages to connected applications.
package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wrtplugins/wrt/internal/platform"
	"github.com/wrtplugins/wrt/internal/storage"
)

const keyPrefix = "push/"

// Message is a push notification delivered to an application.
type Message struct {
	AppData      string    `json:"appData"`
	AlertMessage string    `json:"alertMessage"`
	Date         time.Time `json:"date"`
}

// Service tracks registrations, persisted in a store, and connections.
type Service struct {
	store   storage.Store
	latency time.Duration
	now     func() time.Time

	// regMu serializes registration changes against the store.
	regMu sync.Mutex

	mu        sync.Mutex
	connected map[string]*platform.Subscribers[Message]
	unread    map[string][]Message
}

// NewService returns a push service persisting registrations in store.
// Registration calls take latency to complete, like a server round trip.
func NewService(store storage.Store, latency time.Duration) *Service {
	return &Service{
		store:     store,
		latency:   latency,
		now:       time.Now,
		connected: make(map[string]*platform.Subscribers[Message]),
		unread:    make(map[string][]Message),
	}
}

func (s *Service) wait(ctx context.Context, op string) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case <-t.C:
		return nil
	}
}

// Register returns appID's registration ID, creating one on first use.
func (s *Service) Register(ctx context.Context, appID string) (string, error) {
	if appID == "" {
		return "", platform.NewError("push_service_register", platform.ErrorInvalidParameter)
	}
	if err := s.wait(ctx, "push_service_register"); err != nil {
		return "", err
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if id, ok := s.RegistrationID(appID); ok {
		return id, nil
	}
	id := uuid.NewString()
	if err := storage.PutJSON(s.store, keyPrefix+appID, id); err != nil {
		return "", fmt.Errorf("push_service_register: %w", err)
	}
	return id, nil
}

// Unregister drops appID's registration.
func (s *Service) Unregister(ctx context.Context, appID string) error {
	if err := s.wait(ctx, "push_service_deregister"); err != nil {
		return err
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if _, ok := s.RegistrationID(appID); !ok {
		return platform.NewError("push_service_deregister", platform.ErrorInvalidState)
	}
	if err := s.store.Delete(keyPrefix + appID); err != nil {
		return fmt.Errorf("push_service_deregister: %w", err)
	}
	return nil
}

// RegistrationID returns appID's registration ID, if registered.
func (s *Service) RegistrationID(appID string) (string, bool) {
	var id string
	ok, err := storage.GetJSON(s.store, keyPrefix+appID, &id)
	if err != nil || !ok {
		return "", false
	}
	return id, true
}

// Connect registers fn for appID's messages and delivers any that arrived
// while it was disconnected. Messages reach fn in delivery order. fn is
// called with the service locked and must not call back into it.
func (s *Service) Connect(appID string, fn func(Message)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, ok := s.connected[appID]
	if !ok {
		subs = &platform.Subscribers[Message]{}
		s.connected[appID] = subs
	}
	cancel = subs.Add(fn)
	for _, msg := range s.unread[appID] {
		fn(msg)
	}
	delete(s.unread, appID)
	return cancel
}

// Deliver sends a message to appID, as the push server would. Messages for
// applications that are not registered are rejected; messages for registered
// but unconnected applications are kept until they connect.
func (s *Service) Deliver(appID, appData, alert string) error {
	if _, ok := s.RegistrationID(appID); !ok {
		return platform.NewError("push_deliver("+appID+")", platform.ErrorNotFound)
	}
	msg := Message{AppData: appData, AlertMessage: alert, Date: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.connected[appID]
	if subs == nil || subs.Len() == 0 {
		s.unread[appID] = append(s.unread[appID], msg)
		return nil
	}
	subs.Publish(msg)
	return nil
}

// Registered returns the IDs of registered applications.
func (s *Service) Registered() ([]string, error) {
	keys, err := s.store.Keys(keyPrefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(keyPrefix):]
	}
	return keys, nil
}
