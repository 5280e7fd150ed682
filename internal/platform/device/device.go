// Package device assembles the simulated platform services of one device.
package device

import (
	"fmt"
	"strings"

	"github.com/wrtplugins/wrt/internal/config"
	"github.com/wrtplugins/wrt/internal/platform/bluetooth"
	"github.com/wrtplugins/wrt/internal/platform/exif"
	"github.com/wrtplugins/wrt/internal/platform/mediakey"
	"github.com/wrtplugins/wrt/internal/platform/notification"
	"github.com/wrtplugins/wrt/internal/platform/push"
	"github.com/wrtplugins/wrt/internal/platform/sound"
	"github.com/wrtplugins/wrt/internal/platform/systeminfo"
	"github.com/wrtplugins/wrt/internal/platform/systemsetting"
	"github.com/wrtplugins/wrt/internal/storage"
)

// Device is the set of platform services shared by every widget on it.
type Device struct {
	MediaKey     *mediakey.Service
	Notification *notification.Service
	Push         *push.Service
	Sound        *sound.Service
	Settings     *systemsetting.Service
	SystemInfo   *systeminfo.Service
	Bluetooth    *bluetooth.Adapter
	Exif         *exif.Reader

	store storage.Store
}

// New builds a device configured by the [device] section of cfg, persisting
// state in store. The device owns store and closes it on Close.
func New(cfg *config.Config, store storage.Store) (*Device, error) {
	dev := cfg.Device()
	latency := dev.Duration("latency")

	info := systeminfo.DefaultDefaults()
	info.BatteryLevel = dev.Float("battery.level")
	info.Charging = dev.Bool("battery.charging")
	info.Locale = dev.String("locale")
	info.Display.Width = int64(dev.Int("display.width"))
	info.Display.Height = int64(dev.Int("display.height"))
	info.Display.Brightness = dev.Float("display.brightness")
	info.StorageRoot = dev.String("storage.root")
	sysinfo, err := systeminfo.NewService(info)
	if err != nil {
		return nil, fmt.Errorf("systeminfo: %w", err)
	}

	nearby, err := ParseNearby(dev.String("bluetooth.nearby"))
	if err != nil {
		return nil, fmt.Errorf("bluetooth.nearby: %w", err)
	}
	adapter, err := bluetooth.NewAdapter(bluetooth.Config{
		Name:    dev.String("bluetooth.name"),
		Address: dev.String("bluetooth.address"),
		Powered: dev.Bool("bluetooth.powered"),
		Nearby:  nearby,
		Scan:    dev.Duration("bluetooth.scan"),
		Latency: latency,
	})
	if err != nil {
		return nil, fmt.Errorf("bluetooth: %w", err)
	}

	level := dev.Int("sound.volume")
	if level < 0 || level > sound.MaxLevel {
		return nil, fmt.Errorf("sound.volume %d: want 0 to %d", level, sound.MaxLevel)
	}

	settings := make(map[systemsetting.Type]string)
	for t, key := range map[systemsetting.Type]string{
		systemsetting.HomeScreen:        "setting.home-screen",
		systemsetting.LockScreen:        "setting.lock-screen",
		systemsetting.IncomingCall:      "setting.incoming-call",
		systemsetting.NotificationEmail: "setting.notification-email",
	} {
		if v := dev.String(key); v != "" {
			settings[t] = v
		}
	}

	return &Device{
		MediaKey:     mediakey.NewService(),
		Notification: notification.NewService(),
		Push:         push.NewService(store, latency),
		Sound:        sound.NewService(level, sound.DefaultDevices()),
		Settings:     systemsetting.NewService(store, latency, settings),
		SystemInfo:   sysinfo,
		Bluetooth:    adapter,
		Exif:         exif.NewReader(),
		store:        store,
	}, nil
}

// Close stops any running discovery and closes the state store.
func (d *Device) Close() error {
	d.Bluetooth.StopDiscovery()
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("closing state: %w", err)
	}
	return nil
}

// ParseNearby parses "address=name" pairs separated by commas.
func ParseNearby(s string) ([]bluetooth.Device, error) {
	var out []bluetooth.Device
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		addr, name, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%q: want address=name", item)
		}
		addr, err := bluetooth.NormalizeAddress(strings.TrimSpace(addr))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		out = append(out, bluetooth.Device{Address: addr, Name: strings.TrimSpace(name)})
	}
	return out, nil
}
