// Package sound simulates the platform sound manager: the sound mode, per
// type volumes and audio I/O devices.
package sound

import (
	"math"
	"slices"
	"sync"

	"github.com/wrtplugins/wrt/internal/platform"
)

// MaxLevel is the number of volume steps of every volume type.
const MaxLevel = 15

// VolumeType is an audio stream class with its own volume.
type VolumeType string

const (
	System       VolumeType = "SYSTEM"
	Notification VolumeType = "NOTIFICATION"
	Alarm        VolumeType = "ALARM"
	Media        VolumeType = "MEDIA"
	Voice        VolumeType = "VOICE"
	Ringtone     VolumeType = "RINGTONE"
)

// VolumeTypes lists the valid volume types.
var VolumeTypes = []string{string(System), string(Notification), string(Alarm), string(Media), string(Voice), string(Ringtone)}

// Mode is the device-wide sound mode.
type Mode string

const (
	ModeSound   Mode = "SOUND"
	ModeVibrate Mode = "VIBRATE"
	ModeMute    Mode = "MUTE"
)

// Modes lists the valid sound modes.
var Modes = []string{string(ModeSound), string(ModeVibrate), string(ModeMute)}

// Device is an audio input or output device.
type Device struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"device"`
	Direction string `json:"direction"`
	Connected bool   `json:"isConnected"`
	Activated bool   `json:"isActivated"`
}

// VolumeEvent reports a changed volume.
type VolumeEvent struct {
	Type   VolumeType
	Volume float64
}

// DefaultDevices is the device list of a new Service: a built-in speaker and
// microphone, and a headset jack with nothing plugged in.
func DefaultDevices() []Device {
	return []Device{
		{ID: 1, Name: "Built-in speaker", Type: "SPEAKER", Direction: "OUT", Connected: true, Activated: true},
		{ID: 2, Name: "Built-in microphone", Type: "MIC", Direction: "IN", Connected: true, Activated: true},
		{ID: 3, Name: "Headset", Type: "AUDIO_JACK", Direction: "BOTH"},
	}
}

// Service holds the sound state and raises change events.
type Service struct {
	mu      sync.Mutex
	mode    Mode
	levels  map[VolumeType]int
	devices []Device

	modeSubs   platform.Subscribers[Mode]
	volumeSubs platform.Subscribers[VolumeEvent]
	deviceSubs platform.Subscribers[Device]
}

// NewService returns a service in SOUND mode with every volume at level and
// the given devices.
func NewService(level int, devices []Device) *Service {
	level = min(max(level, 0), MaxLevel)
	s := &Service{
		mode:    ModeSound,
		levels:  make(map[VolumeType]int, len(VolumeTypes)),
		devices: slices.Clone(devices),
	}
	for _, t := range VolumeTypes {
		s.levels[VolumeType(t)] = level
	}
	return s
}

// ParseVolumeType validates a script volume type name.
func ParseVolumeType(name string) (VolumeType, error) {
	if !slices.Contains(VolumeTypes, name) {
		return "", platform.NewError("sound_manager_volume_type("+name+")", platform.ErrorInvalidParameter)
	}
	return VolumeType(name), nil
}

// ParseMode validates a script sound mode name.
func ParseMode(name string) (Mode, error) {
	if !slices.Contains(Modes, name) {
		return "", platform.NewError("sound_manager_mode("+name+")", platform.ErrorInvalidParameter)
	}
	return Mode(name), nil
}

// Mode returns the current sound mode.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the sound mode, as the user does from the quick panel.
func (s *Service) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.mode != m
	s.mode = m
	s.mu.Unlock()
	if changed {
		s.modeSubs.Publish(m)
	}
	return nil
}

// Volume returns the volume of t in [0, 1].
func (s *Service) Volume(t VolumeType) (float64, error) {
	s.mu.Lock()
	level, ok := s.levels[t]
	s.mu.Unlock()
	if !ok {
		return 0, platform.NewError("sound_manager_get_volume", platform.ErrorInvalidParameter)
	}
	return toVolume(level), nil
}

// SetVolume sets the volume of t. v must be in [0, 1] and is rounded to the
// nearest level.
func (s *Service) SetVolume(t VolumeType, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return platform.NewError("sound_manager_set_volume", platform.ErrorInvalidParameter)
	}
	level := int(math.Round(v * MaxLevel))
	s.mu.Lock()
	old, ok := s.levels[t]
	if ok {
		s.levels[t] = level
	}
	s.mu.Unlock()
	if !ok {
		return platform.NewError("sound_manager_set_volume", platform.ErrorInvalidParameter)
	}
	if old != level {
		s.volumeSubs.Publish(VolumeEvent{Type: t, Volume: toVolume(level)})
	}
	return nil
}

func toVolume(level int) float64 {
	return math.Round(float64(level)/MaxLevel*100) / 100
}

// ConnectedDevices returns the connected devices.
func (s *Service) ConnectedDevices() []Device {
	return s.filter(func(d Device) bool { return d.Connected })
}

// ActivatedDevices returns the devices currently routing audio.
func (s *Service) ActivatedDevices() []Device {
	return s.filter(func(d Device) bool { return d.Activated })
}

func (s *Service) filter(keep func(Device) bool) []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Device
	for _, d := range s.devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Connect plugs device id in. Connecting an output device activates it and
// deactivates the other outputs.
func (s *Service) Connect(id int64) error { return s.setConnected(id, true) }

// Disconnect unplugs device id. If it was the active output, the first
// connected output takes over.
func (s *Service) Disconnect(id int64) error { return s.setConnected(id, false) }

func (s *Service) setConnected(id int64, connected bool) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.devices, func(d Device) bool { return d.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return platform.NewError("sound_manager_device", platform.ErrorNotFound)
	}
	if s.devices[i].Connected == connected {
		s.mu.Unlock()
		return nil
	}
	before := slices.Clone(s.devices)
	d := &s.devices[i]
	d.Connected = connected
	wasActive := d.Activated
	d.Activated = false
	switch {
	case connected && d.Direction != "IN":
		for j := range s.devices {
			if s.devices[j].Direction != "IN" {
				s.devices[j].Activated = false
			}
		}
		d.Activated = true
	case !connected && wasActive && d.Direction != "IN":
		for j := range s.devices {
			if s.devices[j].Connected && s.devices[j].Direction != "IN" {
				s.devices[j].Activated = true
				break
			}
		}
	}
	var changed []Device
	for j, now := range s.devices {
		if now != before[j] {
			changed = append(changed, now)
		}
	}
	s.mu.Unlock()

	for _, d := range changed {
		s.deviceSubs.Publish(d)
	}
	return nil
}

// SubscribeMode registers fn for sound mode changes.
func (s *Service) SubscribeMode(fn func(Mode)) (cancel func()) { return s.modeSubs.Add(fn) }

// SubscribeVolume registers fn for volume changes.
func (s *Service) SubscribeVolume(fn func(VolumeEvent)) (cancel func()) {
	return s.volumeSubs.Add(fn)
}

// SubscribeDevices registers fn for device connection and activation changes.
func (s *Service) SubscribeDevices(fn func(Device)) (cancel func()) {
	return s.deviceSubs.Add(fn)
}

// Subscribers returns the number of registered handlers of every kind.
func (s *Service) Subscribers() int {
	return s.modeSubs.Len() + s.volumeSubs.Len() + s.deviceSubs.Len()
}
