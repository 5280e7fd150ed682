package bluetooth

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/wrtplugins/wrt/internal/platform"
)

// discovery is one running inquiry. Its events are delivered under mu, so
// nothing follows DiscoveryFinished.
type discovery struct {
	fn   func(DiscoveryEvent)
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	found    []Device
	finished bool
}

// Discover starts an inquiry. fn receives DiscoveryStarted before Discover
// returns, then DeviceFound and DeviceDisappeared events and exactly one
// DiscoveryFinished on other goroutines. The inquiry ends after the scan
// period, on StopDiscovery or power off, or when ctx is done.
func (a *Adapter) Discover(ctx context.Context, fn func(DiscoveryEvent)) error {
	const op = "bt_adapter_start_device_discovery"
	d := &discovery{fn: fn, stop: make(chan struct{}), done: make(chan struct{})}
	// Held until DiscoveryStarted is raised so no event precedes it.
	d.mu.Lock()
	defer d.mu.Unlock()

	a.mu.Lock()
	if err := a.requirePowered(op); err != nil {
		a.mu.Unlock()
		return err
	}
	if a.disc != nil {
		a.mu.Unlock()
		return platform.NewError(op, platform.ErrorResourceBusy)
	}
	a.disc = d
	targets := slices.Clone(a.nearby)
	a.mu.Unlock()

	d.fn(DiscoveryEvent{Kind: DiscoveryStarted})
	go a.run(ctx, d, targets)
	return nil
}

// Discovering reports whether an inquiry is running.
func (a *Adapter) Discovering() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disc != nil
}

// StopDiscovery ends the running inquiry, if any, and returns after its
// DiscoveryFinished event was raised.
func (a *Adapter) StopDiscovery() {
	a.mu.Lock()
	d := a.disc
	a.mu.Unlock()
	if d == nil {
		return
	}
	d.once.Do(func() { close(d.stop) })
	<-d.done
}

func (a *Adapter) run(ctx context.Context, d *discovery, targets []Device) {
	defer close(d.done)
	defer a.finish(d)

	step := a.scan / time.Duration(len(targets)+1)
	t := time.NewTimer(step)
	defer t.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-t.C:
		}
		if i == len(targets) {
			return
		}
		a.found(d, targets[i])
		t.Reset(step)
	}
}

func (a *Adapter) found(d *discovery, dev Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished || slices.ContainsFunc(d.found, func(f Device) bool { return f.Address == dev.Address }) {
		return
	}
	a.mu.Lock()
	if known, ok := a.known[dev.Address]; ok {
		dev = known
	} else {
		a.known[dev.Address] = dev
	}
	a.mu.Unlock()
	d.found = append(d.found, dev)
	d.fn(DiscoveryEvent{Kind: DeviceFound, Device: dev})
}

func (a *Adapter) finish(d *discovery) {
	a.mu.Lock()
	if a.disc == d {
		a.disc = nil
	}
	a.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}
	d.finished = true
	d.fn(DiscoveryEvent{Kind: DiscoveryFinished, Found: slices.Clone(d.found)})
}

// Appear brings a device into range. A running inquiry reports it.
func (a *Adapter) Appear(dev Device) error {
	addr, err := NormalizeAddress(dev.Address)
	if err != nil {
		return err
	}
	dev.Address = addr
	a.mu.Lock()
	if i := slices.IndexFunc(a.nearby, func(n Device) bool { return n.Address == addr }); i >= 0 {
		a.nearby[i] = dev
	} else {
		a.nearby = append(a.nearby, dev)
	}
	d := a.disc
	a.mu.Unlock()
	if d != nil {
		a.found(d, dev)
	}
	return nil
}

// Disappear takes a device out of range. A running inquiry that reported it
// reports its disappearance.
func (a *Adapter) Disappear(addr string) error {
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	i := slices.IndexFunc(a.nearby, func(n Device) bool { return n.Address == addr })
	if i < 0 {
		a.mu.Unlock()
		return platform.NewError("bt_device_disappear("+addr+")", platform.ErrorNotFound)
	}
	a.nearby = slices.Delete(a.nearby, i, i+1)
	if d, ok := a.known[addr]; ok && !d.Bonded {
		delete(a.known, addr)
	}
	d := a.disc
	a.mu.Unlock()

	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	j := slices.IndexFunc(d.found, func(f Device) bool { return f.Address == addr })
	if d.finished || j < 0 {
		return nil
	}
	d.found = slices.Delete(d.found, j, j+1)
	d.fn(DiscoveryEvent{Kind: DeviceDisappeared, Address: addr})
	return nil
}
