// Package mediakey simulates the platform media key service.
package mediakey

import (
	"github.com/wrtplugins/wrt/internal/platform"
)

// Key is a hardware media key.
type Key int

const (
	Play Key = iota + 1
	Stop
	Pause
	Previous
	Next
	FastForward
	Rewind
	PlayPause
)

var keyNames = [...]string{
	Play:        "MEDIA_PLAY",
	Stop:        "MEDIA_STOP",
	Pause:       "MEDIA_PAUSE",
	Previous:    "MEDIA_PREVIOUS",
	Next:        "MEDIA_NEXT",
	FastForward: "MEDIA_FAST_FORWARD",
	Rewind:      "MEDIA_REWIND",
	PlayPause:   "MEDIA_PLAY_PAUSE",
}

// Keys returns every key in declaration order.
func Keys() []Key {
	return []Key{Play, Stop, Pause, Previous, Next, FastForward, Rewind, PlayPause}
}

// String returns the script name of k, e.g. "MEDIA_PLAY".
func (k Key) String() string {
	if k < Play || int(k) >= len(keyNames) {
		return "UNKNOWN"
	}
	return keyNames[k]
}

// ParseKey converts a script name back to a Key.
func ParseKey(name string) (Key, error) {
	for _, k := range Keys() {
		if keyNames[k] == name {
			return k, nil
		}
	}
	return 0, platform.NewError("media_key_parse("+name+")", platform.ErrorInvalidParameter)
}

// Status says whether a key went down or up.
type Status int

const (
	Pressed Status = iota
	Released
)

func (s Status) String() string {
	if s == Released {
		return "RELEASED"
	}
	return "PRESSED"
}

// Event is one key transition.
type Event struct {
	Key    Key
	Status Status
}

// Service raises key events to its subscribers.
type Service struct {
	subs platform.Subscribers[Event]
}

// NewService returns a media key service.
func NewService() *Service { return &Service{} }

// Subscribe registers fn for key events. The returned function unsubscribes.
func (s *Service) Subscribe(fn func(Event)) (cancel func()) {
	return s.subs.Add(fn)
}

// Subscribers returns the number of registered handlers.
func (s *Service) Subscribers() int { return s.subs.Len() }

// Press raises a pressed event for k.
func (s *Service) Press(k Key) error { return s.raise(k, Pressed) }

// Release raises a released event for k.
func (s *Service) Release(k Key) error { return s.raise(k, Released) }

func (s *Service) raise(k Key, st Status) error {
	if k.String() == "UNKNOWN" {
		return platform.NewError("media_key_event", platform.ErrorInvalidParameter)
	}
	s.subs.Publish(Event{Key: k, Status: st})
	return nil
}
