// Package notification simulates the platform notification tray.
package notification

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/platform"
)

// StatusType is the kind of status bar notification.
type StatusType string

const (
	Simple    StatusType = "SIMPLE"
	Thumbnail StatusType = "THUMBNAIL"
	Ongoing   StatusType = "ONGOING"
	Progress  StatusType = "PROGRESS"
)

// StatusTypes lists the valid status types.
var StatusTypes = []string{string(Simple), string(Thumbnail), string(Ongoing), string(Progress)}

// ProgressType is the unit of ProgressValue.
type ProgressType string

const (
	Percentage ProgressType = "PERCENTAGE"
	Byte       ProgressType = "BYTE"
)

// ProgressTypes lists the valid progress types.
var ProgressTypes = []string{string(Percentage), string(Byte)}

const (
	maxThumbnails = 4
	maxDetails    = 2
)

// Detail is one line of extra text.
type Detail struct {
	MainText string `json:"mainText"`
	SubText  string `json:"subText,omitempty"`
}

// Notification is a posted or to-be-posted status notification.
type Notification struct {
	ID                  string       `json:"id,omitempty"`
	AppID               string       `json:"appId,omitempty"`
	Type                StatusType   `json:"statusType"`
	Title               string       `json:"title"`
	Content             string       `json:"content,omitempty"`
	IconPath            string       `json:"iconPath,omitempty"`
	SoundPath           string       `json:"soundPath,omitempty"`
	Vibration           bool         `json:"vibration"`
	ProgressType        ProgressType `json:"progressType"`
	ProgressValue       int64        `json:"progressValue"`
	Number              int64        `json:"number"`
	SubIconPath         string       `json:"subIconPath,omitempty"`
	Details             []Detail     `json:"detailInfo,omitempty"`
	LEDColor            string       `json:"ledColor,omitempty"`
	LEDOnPeriod         int64        `json:"ledOnPeriod"`
	LEDOffPeriod        int64        `json:"ledOffPeriod"`
	BackgroundImagePath string       `json:"backgroundImagePath,omitempty"`
	Thumbnails          []string     `json:"thumbnails,omitempty"`
	PostedTime          time.Time    `json:"postedTime"`
}

// Validate checks field ranges the platform enforces.
func (n *Notification) Validate() error {
	if !slices.Contains(StatusTypes, string(n.Type)) {
		return apierr.New(apierr.TypeMismatch, "invalid statusType %q", n.Type)
	}
	if n.Title == "" {
		return apierr.New(apierr.InvalidValues, "title is required")
	}
	switch n.ProgressType {
	case "", Percentage:
		if n.ProgressValue < 0 || n.ProgressValue > 100 {
			return apierr.New(apierr.InvalidValues, "progressValue %d out of range 0..100", n.ProgressValue)
		}
	case Byte:
		if n.ProgressValue < 0 {
			return apierr.New(apierr.InvalidValues, "progressValue %d must not be negative", n.ProgressValue)
		}
	default:
		return apierr.New(apierr.TypeMismatch, "invalid progressType %q", n.ProgressType)
	}
	if n.LEDColor != "" && !validColor(n.LEDColor) {
		return apierr.New(apierr.InvalidValues, "ledColor %q is not #RRGGBB", n.LEDColor)
	}
	if n.LEDOnPeriod < 0 || n.LEDOffPeriod < 0 {
		return apierr.New(apierr.InvalidValues, "LED periods must not be negative")
	}
	if len(n.Thumbnails) > maxThumbnails {
		return apierr.New(apierr.InvalidValues, "at most %d thumbnails", maxThumbnails)
	}
	if len(n.Details) > maxDetails {
		return apierr.New(apierr.InvalidValues, "at most %d detailInfo entries", maxDetails)
	}
	return nil
}

func validColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 16, 32)
	return err == nil
}

func (n Notification) clone() Notification {
	n.Details = slices.Clone(n.Details)
	n.Thumbnails = slices.Clone(n.Thumbnails)
	return n
}

// Op names a tray change.
type Op string

const (
	Posted  Op = "posted"
	Updated Op = "updated"
	Removed Op = "removed"
)

// Event reports a tray change.
type Event struct {
	Op           Op
	Notification Notification
}

// Service is the notification tray.
type Service struct {
	mu     sync.Mutex
	nextID int64
	posted map[string]Notification
	order  []string
	subs   platform.Subscribers[Event]
	now    func() time.Time
}

// NewService returns an empty tray.
func NewService() *Service {
	return &Service{posted: make(map[string]Notification), now: time.Now}
}

// Subscribe registers fn for tray changes.
func (s *Service) Subscribe(fn func(Event)) (cancel func()) { return s.subs.Add(fn) }

// Post validates n, assigns it an ID and posting time, and stores it for
// appID.
func (s *Service) Post(appID string, n Notification) (Notification, error) {
	if n.ID != "" {
		return Notification{}, apierr.New(apierr.InvalidValues, "notification %s is already posted", n.ID)
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	s.mu.Lock()
	s.nextID++
	n = n.clone()
	n.ID = strconv.FormatInt(s.nextID, 10)
	n.AppID = appID
	n.PostedTime = s.now()
	s.posted[n.ID] = n
	s.order = append(s.order, n.ID)
	s.mu.Unlock()

	s.subs.Publish(Event{Op: Posted, Notification: n.clone()})
	return n.clone(), nil
}

// Update replaces a posted notification owned by appID.
func (s *Service) Update(appID string, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	old, ok := s.posted[n.ID]
	if !ok || old.AppID != appID {
		s.mu.Unlock()
		return platform.NewError("notification_update("+n.ID+")", platform.ErrorNotFound)
	}
	n = n.clone()
	n.AppID = appID
	n.PostedTime = old.PostedTime
	s.posted[n.ID] = n
	s.mu.Unlock()

	s.subs.Publish(Event{Op: Updated, Notification: n.clone()})
	return nil
}

// Remove deletes a posted notification owned by appID.
func (s *Service) Remove(appID, id string) error {
	s.mu.Lock()
	n, ok := s.posted[id]
	if !ok || n.AppID != appID {
		s.mu.Unlock()
		return platform.NewError("notification_delete("+id+")", platform.ErrorNotFound)
	}
	delete(s.posted, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.mu.Unlock()

	s.subs.Publish(Event{Op: Removed, Notification: n})
	return nil
}

// RemoveAll deletes every notification owned by appID.
func (s *Service) RemoveAll(appID string) {
	for _, n := range s.GetAll(appID) {
		_ = s.Remove(appID, n.ID)
	}
}

// Get returns a posted notification owned by appID.
func (s *Service) Get(appID, id string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.posted[id]
	if !ok || n.AppID != appID {
		return Notification{}, platform.NewError("notification_load("+id+")", platform.ErrorNotFound)
	}
	return n.clone(), nil
}

// GetAll returns appID's notifications in posting order.
func (s *Service) GetAll(appID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, id := range s.order {
		if n := s.posted[id]; n.AppID == appID {
			out = append(out, n.clone())
		}
	}
	return out
}
