// Package systemsetting simulates the platform system settings store for
// wallpapers and ringtones.
package systemsetting

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/wrtplugins/wrt/internal/platform"
	"github.com/wrtplugins/wrt/internal/storage"
)

// Type names a setting.
type Type string

const (
	HomeScreen        Type = "HOME_SCREEN"
	LockScreen        Type = "LOCK_SCREEN"
	IncomingCall      Type = "INCOMING_CALL"
	NotificationEmail Type = "NOTIFICATION_EMAIL"
)

// Types lists the valid setting types.
var Types = []string{string(HomeScreen), string(LockScreen), string(IncomingCall), string(NotificationEmail)}

const keyPrefix = "setting/"

// Service reads and writes settings through a store.
type Service struct {
	store    storage.Store
	latency  time.Duration
	defaults map[Type]string
}

// NewService returns a settings service. Settings never written read as their
// entry in defaults, or "" when absent.
func NewService(store storage.Store, latency time.Duration, defaults map[Type]string) *Service {
	return &Service{store: store, latency: latency, defaults: defaults}
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

func valid(t Type) bool { return slices.Contains(Types, string(t)) }

// Get returns the value of t.
func (s *Service) Get(ctx context.Context, t Type) (string, error) {
	const op = "system_settings_get_value_string"
	if !valid(t) {
		return "", platform.NewError(op, platform.ErrorInvalidParameter)
	}
	if err := s.wait(ctx, op); err != nil {
		return "", err
	}
	var v string
	ok, err := storage.GetJSON(s.store, keyPrefix+string(t), &v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return s.defaults[t], nil
	}
	return v, nil
}

// Set stores value for t. The value is a file path that must name an existing
// regular file.
func (s *Service) Set(ctx context.Context, t Type, value string) error {
	const op = "system_settings_set_value_string"
	if !valid(t) || value == "" {
		return platform.NewError(op, platform.ErrorInvalidParameter)
	}
	if fi, err := os.Stat(value); err != nil || !fi.Mode().IsRegular() {
		return platform.NewError(op+"("+value+")", platform.ErrorInvalidParameter)
	}
	if err := s.wait(ctx, op); err != nil {
		return err
	}
	if err := storage.PutJSON(s.store, keyPrefix+string(t), value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
