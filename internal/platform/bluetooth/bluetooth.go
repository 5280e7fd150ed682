// Package bluetooth simulates the default Bluetooth adapter: power, name and
// visibility, device discovery over a configurable set of nearby devices, and
// bonding.
package bluetooth

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wrtplugins/wrt/internal/platform"
)

// Class is a remote device's class of device.
type Class struct {
	Major    int64   `json:"major"`
	Minor    int64   `json:"minor"`
	Services []int64 `json:"services"`
}

// Device is a remote device.
type Device struct {
	Address   string   `json:"address"`
	Name      string   `json:"name"`
	Class     Class    `json:"deviceClass"`
	Bonded    bool     `json:"isBonded"`
	Trusted   bool     `json:"isTrusted"`
	Connected bool     `json:"isConnected"`
	UUIDs     []string `json:"uuids"`
}

// Info is the adapter state.
type Info struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Powered bool   `json:"powered"`
	Visible bool   `json:"visible"`
}

// ChangeKind says which adapter attribute changed.
type ChangeKind int

const (
	StateChanged ChangeKind = iota
	NameChanged
	VisibilityChanged
)

// Change reports an adapter attribute change; Info is the state after it.
type Change struct {
	Kind ChangeKind
	Info Info
}

// DiscoveryKind tags a discovery event.
type DiscoveryKind int

const (
	DiscoveryStarted DiscoveryKind = iota
	DeviceFound
	DeviceDisappeared
	DiscoveryFinished
)

// DiscoveryEvent is one step of a discovery. Device is set for DeviceFound,
// Address for DeviceDisappeared and Found for DiscoveryFinished.
type DiscoveryEvent struct {
	Kind    DiscoveryKind
	Device  Device
	Address string
	Found   []Device
}

// Config seeds a new Adapter.
type Config struct {
	Name    string
	Address string
	Powered bool
	// Nearby are the devices in range of the adapter.
	Nearby []Device
	// Scan is how long a discovery runs. Found devices are spread across it.
	Scan time.Duration
	// Latency delays every blocking operation.
	Latency time.Duration
}

// Adapter is the simulated default adapter.
type Adapter struct {
	scan    time.Duration
	latency time.Duration

	mu     sync.Mutex
	info   Info
	nearby []Device
	known  map[string]Device
	disc   *discovery

	changes platform.Subscribers[Change]
}

// NormalizeAddress validates a MAC address and returns it in upper case
// colon form.
func NormalizeAddress(addr string) (string, error) {
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return "", platform.NewError("bt_address("+addr+")", platform.ErrorInvalidParameter)
	}
	return strings.ToUpper(hw.String()), nil
}

// NewAdapter returns an adapter configured by cfg.
func NewAdapter(cfg Config) (*Adapter, error) {
	addr, err := NormalizeAddress(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("adapter address: %w", err)
	}
	a := &Adapter{
		scan:    cfg.Scan,
		latency: cfg.Latency,
		info:    Info{Name: cfg.Name, Address: addr, Powered: cfg.Powered},
		known:   make(map[string]Device),
	}
	for _, d := range cfg.Nearby {
		if d.Address, err = NormalizeAddress(d.Address); err != nil {
			return nil, fmt.Errorf("nearby device %q: %w", d.Name, err)
		}
		a.nearby = append(a.nearby, d)
		if d.Bonded {
			a.known[d.Address] = d
		}
	}
	return a, nil
}

func (a *Adapter) wait(ctx context.Context, op string) error {
	if a.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case <-t.C:
		return nil
	}
}

// Info returns the adapter state.
func (a *Adapter) Info() Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

// Subscribe registers fn for adapter attribute changes.
func (a *Adapter) Subscribe(fn func(Change)) (cancel func()) { return a.changes.Add(fn) }

// Subscribers returns the number of change handlers.
func (a *Adapter) Subscribers() int { return a.changes.Len() }

func (a *Adapter) requirePowered(op string) error {
	if !a.info.Powered {
		return platform.NewError(op, platform.ErrorNotEnabled)
	}
	return nil
}

// SetName renames the adapter.
func (a *Adapter) SetName(ctx context.Context, name string) error {
	const op = "bt_adapter_set_name"
	if name == "" {
		return platform.NewError(op, platform.ErrorInvalidParameter)
	}
	if err := a.wait(ctx, op); err != nil {
		return err
	}
	a.mu.Lock()
	if err := a.requirePowered(op); err != nil {
		a.mu.Unlock()
		return err
	}
	changed := a.info.Name != name
	a.info.Name = name
	info := a.info
	a.mu.Unlock()
	if changed {
		a.changes.Publish(Change{Kind: NameChanged, Info: info})
	}
	return nil
}

// SetPowered turns the adapter on or off. Turning it off ends any discovery
// and hides the adapter.
func (a *Adapter) SetPowered(ctx context.Context, on bool) error {
	const op = "bt_adapter_set_powered"
	if err := a.wait(ctx, op); err != nil {
		return err
	}
	a.mu.Lock()
	changed := a.info.Powered != on
	a.info.Powered = on
	if !on {
		a.info.Visible = false
	}
	info := a.info
	a.mu.Unlock()
	if !on {
		a.StopDiscovery()
	}
	if changed {
		a.changes.Publish(Change{Kind: StateChanged, Info: info})
	}
	return nil
}

// SetVisible makes the adapter discoverable by others.
func (a *Adapter) SetVisible(ctx context.Context, on bool) error {
	const op = "bt_adapter_set_visibility"
	if err := a.wait(ctx, op); err != nil {
		return err
	}
	a.mu.Lock()
	if err := a.requirePowered(op); err != nil {
		a.mu.Unlock()
		return err
	}
	changed := a.info.Visible != on
	a.info.Visible = on
	info := a.info
	a.mu.Unlock()
	if changed {
		a.changes.Publish(Change{Kind: VisibilityChanged, Info: info})
	}
	return nil
}

// KnownDevices returns the bonded devices and those found by discovery,
// ordered by address.
func (a *Adapter) KnownDevices() []Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Device, 0, len(a.known))
	for _, d := range a.known {
		out = append(out, d)
	}
	slices.SortFunc(out, func(x, y Device) int { return strings.Compare(x.Address, y.Address) })
	return out
}

// Device returns a known or nearby device.
func (a *Adapter) Device(ctx context.Context, addr string) (Device, error) {
	const op = "bt_adapter_get_device_info"
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return Device{}, err
	}
	if err := a.wait(ctx, op); err != nil {
		return Device{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requirePowered(op); err != nil {
		return Device{}, err
	}
	d, ok := a.lookup(addr)
	if !ok {
		return Device{}, platform.NewError(op+"("+addr+")", platform.ErrorNotFound)
	}
	return d, nil
}

func (a *Adapter) lookup(addr string) (Device, bool) {
	if d, ok := a.known[addr]; ok {
		return d, true
	}
	i := slices.IndexFunc(a.nearby, func(d Device) bool { return d.Address == addr })
	if i < 0 {
		return Device{}, false
	}
	return a.nearby[i], true
}

// CreateBonding pairs with a device in range.
func (a *Adapter) CreateBonding(ctx context.Context, addr string) (Device, error) {
	const op = "bt_device_create_bond"
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return Device{}, err
	}
	if err := a.wait(ctx, op); err != nil {
		return Device{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requirePowered(op); err != nil {
		return Device{}, err
	}
	i := slices.IndexFunc(a.nearby, func(d Device) bool { return d.Address == addr })
	if i < 0 {
		return Device{}, platform.NewError(op+"("+addr+")", platform.ErrorNotFound)
	}
	d := a.nearby[i]
	d.Bonded, d.Trusted = true, true
	a.nearby[i] = d
	a.known[addr] = d
	return d, nil
}

// DestroyBonding unpairs a bonded device.
func (a *Adapter) DestroyBonding(ctx context.Context, addr string) error {
	const op = "bt_device_destroy_bond"
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	if err := a.wait(ctx, op); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requirePowered(op); err != nil {
		return err
	}
	d, ok := a.known[addr]
	if !ok || !d.Bonded {
		return platform.NewError(op+"("+addr+")", platform.ErrorNotFound)
	}
	d.Bonded, d.Trusted = false, false
	a.known[addr] = d
	if i := slices.IndexFunc(a.nearby, func(n Device) bool { return n.Address == addr }); i >= 0 {
		a.nearby[i] = d
	}
	return nil
}
