// Package systeminfo reports device properties. Memory and storage come from
// the host; battery, CPU load, display, orientation and locale are simulated
// and changed through setters.
package systeminfo

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/wrtplugins/wrt/internal/platform"
)

// Property names a system information property.
type Property string

const (
	Battery           Property = "BATTERY"
	CPU               Property = "CPU"
	Storage           Property = "STORAGE"
	Display           Property = "DISPLAY"
	DeviceOrientation Property = "DEVICE_ORIENTATION"
	Locale            Property = "LOCALE"
	Memory            Property = "MEMORY"
	Build             Property = "BUILD"
)

// Properties lists the valid properties.
var Properties = []string{
	string(Battery), string(CPU), string(Storage), string(Display),
	string(DeviceOrientation), string(Locale), string(Memory), string(Build),
}

// BatteryInfo is the BATTERY property.
type BatteryInfo struct {
	Level    float64 `json:"level"`
	Charging bool    `json:"isCharging"`
}

// CPUInfo is the CPU property.
type CPUInfo struct {
	Load float64 `json:"load"`
}

// StorageUnit is one mounted storage.
type StorageUnit struct {
	Type      string `json:"type"`
	Capacity  uint64 `json:"capacity"`
	Available uint64 `json:"availableCapacity"`
	Removable bool   `json:"isRemovable"`
}

// StorageInfo is the STORAGE property.
type StorageInfo struct {
	Units []StorageUnit `json:"units"`
}

// DisplayInfo is the DISPLAY property.
type DisplayInfo struct {
	Width      int64   `json:"resolutionWidth"`
	Height     int64   `json:"resolutionHeight"`
	DPIWidth   int64   `json:"dotsPerInchWidth"`
	DPIHeight  int64   `json:"dotsPerInchHeight"`
	Brightness float64 `json:"brightness"`
}

// OrientationInfo is the DEVICE_ORIENTATION property.
type OrientationInfo struct {
	Status       string `json:"status"`
	AutoRotation bool   `json:"isAutoRotation"`
}

// Orientations lists the valid orientation statuses.
var Orientations = []string{"PORTRAIT_PRIMARY", "PORTRAIT_SECONDARY", "LANDSCAPE_PRIMARY", "LANDSCAPE_SECONDARY"}

// LocaleInfo is the LOCALE property.
type LocaleInfo struct {
	Language string `json:"language"`
	Country  string `json:"country"`
}

// MemoryInfo is the MEMORY property.
type MemoryInfo struct {
	Status string `json:"status"`
}

// BuildInfo is the BUILD property.
type BuildInfo struct {
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	BuildVersion string `json:"buildVersion"`
}

// Defaults seeds the simulated properties of a new Service.
type Defaults struct {
	BatteryLevel float64
	Charging     bool
	Locale       string
	Display      DisplayInfo
	Build        BuildInfo
	StorageRoot  string
}

// DefaultDefaults returns the values used when nothing is configured.
func DefaultDefaults() Defaults {
	return Defaults{
		BatteryLevel: 1,
		Locale:       "en-US",
		Display:      DisplayInfo{Width: 720, Height: 1280, DPIWidth: 316, DPIHeight: 316, Brightness: 0.8},
		Build:        BuildInfo{Model: "wrt-sim", Manufacturer: "wrt", BuildVersion: "2.3"},
		StorageRoot:  "/",
	}
}

// Event reports a changed property. Value holds one of the *Info types.
type Event struct {
	Property Property
	Value    any
}

// Service holds the property values.
type Service struct {
	mu          sync.Mutex
	battery     BatteryInfo
	cpu         CPUInfo
	display     DisplayInfo
	orientation OrientationInfo
	locale      LocaleInfo
	build       BuildInfo
	storageRoot string
	memory      MemoryInfo

	subs platform.Subscribers[Event]
}

// NewService returns a service seeded from d.
func NewService(d Defaults) (*Service, error) {
	loc, err := parseLocale(d.Locale)
	if err != nil {
		return nil, err
	}
	s := &Service{
		battery:     BatteryInfo{Level: clamp01(d.BatteryLevel), Charging: d.Charging},
		display:     d.Display,
		orientation: OrientationInfo{Status: Orientations[0], AutoRotation: true},
		locale:      loc,
		build:       d.Build,
		storageRoot: d.StorageRoot,
	}
	s.memory, _ = s.memoryInfo()
	return s, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// parseLocale turns a BCP 47 tag into the platform's "ll_RR" form.
func parseLocale(tag string) (LocaleInfo, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return LocaleInfo{}, fmt.Errorf("locale %q: %w", tag, err)
	}
	base, _ := t.Base()
	region, _ := t.Region()
	return LocaleInfo{
		Language: base.String() + "_" + region.String(),
		Country:  region.String(),
	}, nil
}

// ParseProperty validates a script property name.
func ParseProperty(name string) (Property, error) {
	if !slices.Contains(Properties, name) {
		return "", platform.NewError("system_info_property("+name+")", platform.ErrorInvalidParameter)
	}
	return Property(name), nil
}

// Get returns the current value of p.
func (s *Service) Get(ctx context.Context, p Property) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch p {
	case Storage:
		return s.storageInfo()
	case Memory:
		m, err := s.memoryInfo()
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch p {
	case Battery:
		return s.battery, nil
	case CPU:
		return s.cpu, nil
	case Display:
		return s.display, nil
	case DeviceOrientation:
		return s.orientation, nil
	case Locale:
		return s.locale, nil
	case Build:
		return s.build, nil
	}
	return nil, platform.NewError("system_info_get("+string(p)+")", platform.ErrorInvalidParameter)
}

// Subscribe registers fn for property changes.
func (s *Service) Subscribe(fn func(Event)) (cancel func()) { return s.subs.Add(fn) }

// Subscribers returns the number of registered handlers.
func (s *Service) Subscribers() int { return s.subs.Len() }

func (s *Service) publish(p Property, v any) { s.subs.Publish(Event{Property: p, Value: v}) }

// SetBattery changes the battery state.
func (s *Service) SetBattery(level float64, charging bool) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return platform.NewError("battery_level", platform.ErrorInvalidParameter)
	}
	s.mu.Lock()
	b := BatteryInfo{Level: level, Charging: charging}
	changed := s.battery != b
	s.battery = b
	s.mu.Unlock()
	if changed {
		s.publish(Battery, b)
	}
	return nil
}

// SetCPULoad changes the CPU load.
func (s *Service) SetCPULoad(load float64) error {
	if math.IsNaN(load) || load < 0 || load > 1 {
		return platform.NewError("cpu_load", platform.ErrorInvalidParameter)
	}
	s.mu.Lock()
	c := CPUInfo{Load: load}
	changed := s.cpu != c
	s.cpu = c
	s.mu.Unlock()
	if changed {
		s.publish(CPU, c)
	}
	return nil
}

// SetBrightness changes the display brightness.
func (s *Service) SetBrightness(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return platform.NewError("display_brightness", platform.ErrorInvalidParameter)
	}
	s.mu.Lock()
	changed := s.display.Brightness != v
	s.display.Brightness = v
	d := s.display
	s.mu.Unlock()
	if changed {
		s.publish(Display, d)
	}
	return nil
}

// SetOrientation rotates the device.
func (s *Service) SetOrientation(status string) error {
	if !slices.Contains(Orientations, status) {
		return platform.NewError("device_orientation("+status+")", platform.ErrorInvalidParameter)
	}
	s.mu.Lock()
	changed := s.orientation.Status != status
	s.orientation.Status = status
	o := s.orientation
	s.mu.Unlock()
	if changed {
		s.publish(DeviceOrientation, o)
	}
	return nil
}

// SetLocale changes the system locale, given as a BCP 47 tag.
func (s *Service) SetLocale(tag string) error {
	loc, err := parseLocale(tag)
	if err != nil {
		return platform.NewError("locale("+tag+")", platform.ErrorInvalidParameter)
	}
	s.mu.Lock()
	changed := s.locale != loc
	s.locale = loc
	s.mu.Unlock()
	if changed {
		s.publish(Locale, loc)
	}
	return nil
}

// Refresh rereads host memory and publishes a MEMORY change when its status
// moved.
func (s *Service) Refresh() error {
	m, err := s.memoryInfo()
	if err != nil {
		return err
	}
	s.mu.Lock()
	changed := s.memory != m
	s.memory = m
	s.mu.Unlock()
	if changed {
		s.publish(Memory, m)
	}
	return nil
}

// lowMemoryRatio is the available/total ratio under which MEMORY reports
// WARNING.
const lowMemoryRatio = 0.1

func (s *Service) memoryInfo() (MemoryInfo, error) {
	total, avail, err := readMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("system_info_memory: %w", err)
	}
	if total > 0 && float64(avail)/float64(total) < lowMemoryRatio {
		return MemoryInfo{Status: "WARNING"}, nil
	}
	return MemoryInfo{Status: "NORMAL"}, nil
}

// TotalMemory returns the host's total memory in bytes.
func (s *Service) TotalMemory() (uint64, error) {
	total, _, err := readMemory()
	return total, err
}

// AvailableMemory returns the host's available memory in bytes.
func (s *Service) AvailableMemory() (uint64, error) {
	_, avail, err := readMemory()
	return avail, err
}

func (s *Service) storageInfo() (StorageInfo, error) {
	capacity, avail, err := statStorage(s.storageRoot)
	if err != nil {
		return StorageInfo{}, fmt.Errorf("system_info_storage(%s): %w", s.storageRoot, err)
	}
	return StorageInfo{Units: []StorageUnit{{Type: "INTERNAL", Capacity: capacity, Available: avail}}}, nil
}

// Level returns the numeric value that threshold options apply to, for the
// properties that have one.
func Level(v any) (float64, bool) {
	switch v := v.(type) {
	case BatteryInfo:
		return v.Level, true
	case CPUInfo:
		return v.Load, true
	case DisplayInfo:
		return v.Brightness, true
	}
	return 0, false
}

var capabilities = map[string]any{
	"http://tizen.org/feature/network.bluetooth":             true,
	"http://tizen.org/feature/network.push":                  true,
	"http://tizen.org/feature/screen.auto_rotation":          true,
	"http://tizen.org/feature/sensor.accelerometer":          true,
	"http://tizen.org/feature/platform.core.cpu.arch":        "x86_64",
	"http://tizen.org/feature/platform.version":              "2.3",
	"http://tizen.org/feature/platform.native.api.version":   "2.3",
	"http://tizen.org/feature/multi_point_touch.point_count": int64(2),
}

// Capability returns the value of a device capability key. Screen size keys
// follow the simulated display.
func (s *Service) Capability(key string) (any, error) {
	switch key {
	case "http://tizen.org/feature/screen.width":
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.display.Width, nil
	case "http://tizen.org/feature/screen.height":
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.display.Height, nil
	}
	if v, ok := capabilities[key]; ok {
		return v, nil
	}
	if strings.HasPrefix(key, "http://tizen.org/feature/") {
		return false, nil
	}
	return nil, platform.NewError("system_info_get_platform("+key+")", platform.ErrorNotSupported)
}
