package access

import "sort"

// PrivilegePrefix is prepended to a feature's short privilege name.
const PrivilegePrefix = "http://tizen.org/privilege/"

// Feature names gate individual plugin operations.
const (
	BluetoothAdmin = "bluetooth.admin"
	BluetoothGAP   = "bluetooth.gap"
	BluetoothSpp   = "bluetooth.spp"
	Notification   = "notification"
	Push           = "push"
	VolumeSet      = "volume.set"
	Sound          = "sound"
	Setting        = "setting"
	SystemInfo     = "systeminfo"
	SystemManager  = "systemmanager"
	MediaKey       = "mediakey"
	ContentRead    = "content.read"
	ContentWrite   = "content.write"
)

// Feature describes one gated capability.
type Feature struct {
	Name      string
	Plugin    string
	Privilege string
}

var features = map[string]Feature{}

func define(name, plugin, privilege string) {
	features[name] = Feature{Name: name, Plugin: plugin, Privilege: PrivilegePrefix + privilege}
}

func init() {
	define(BluetoothAdmin, "bluetooth", "bluetooth.admin")
	define(BluetoothGAP, "bluetooth", "bluetooth.gap")
	define(BluetoothSpp, "bluetooth", "bluetooth.spp")
	define(Notification, "notification", "notification")
	define(Push, "push", "push")
	define(VolumeSet, "sound", "volume.set")
	define(Sound, "sound", "sound")
	define(Setting, "systemsetting", "setting")
	define(SystemInfo, "systeminfo", "systeminfo")
	define(SystemManager, "systeminfo", "systemmanager")
	define(MediaKey, "mediakey", "mediakey")
	define(ContentRead, "exif", "content.read")
	define(ContentWrite, "exif", "content.write")
}

// Lookup returns the feature with the given name.
func Lookup(name string) (Feature, bool) {
	f, ok := features[name]
	return f, ok
}

// Features returns every known feature sorted by plugin, then name.
func Features() []Feature {
	out := make([]Feature, 0, len(features))
	for _, f := range features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plugin != out[j].Plugin {
			return out[i].Plugin < out[j].Plugin
		}
		return out[i].Name < out[j].Name
	})
	return out
}
