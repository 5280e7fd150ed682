// Package sim injects platform events into a simulated device from short
// text commands, one per line:
//
//	key press MEDIA_PLAY
//	push org.example.player '{"track":3}' "New track"
//	battery 0.15 charging
//	bt found aa:bb:cc:dd:ee:01 Headphones
//	sleep 500ms
package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wrtplugins/wrt/internal/argv"
	"github.com/wrtplugins/wrt/internal/platform/bluetooth"
	"github.com/wrtplugins/wrt/internal/platform/device"
	"github.com/wrtplugins/wrt/internal/platform/mediakey"
	"github.com/wrtplugins/wrt/internal/platform/sound"
	"github.com/wrtplugins/wrt/internal/platform/systeminfo"
)

// ErrUsage wraps errors caused by a malformed command.
var ErrUsage = errors.New("usage")

// Command is one simulation command.
type Command struct {
	Name  string
	Usage string
	Help  string
	run   func(s *Simulator, ctx context.Context, args []string) error
	// complete returns candidates for argument i.
	complete func(s *Simulator, i int, args []string) []string
}

// Simulator executes commands against a device.
type Simulator struct {
	dev      *device.Device
	logger   *slog.Logger
	commands map[string]*Command
}

// New returns a simulator driving dev.
func New(dev *device.Device, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{dev: dev, logger: logger, commands: make(map[string]*Command)}
	for _, c := range commands() {
		s.commands[c.Name] = c
	}
	return s
}

// Commands returns the commands sorted by name.
func (s *Simulator) Commands() []Command {
	out := make([]Command, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Exec runs one command line. Blank lines and comments do nothing.
func (s *Simulator) Exec(ctx context.Context, line string) error {
	args, err := argv.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(args) == 0 {
		return nil
	}
	c, ok := s.commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	if err := c.run(s, ctx, args[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w (usage: %s %s)", err, c.Name, c.Usage)
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	s.logger.Debug("[Sim] executed", "command", line)
	return nil
}

// Run executes every line of r, stopping at the first error.
func (s *Simulator) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		if err := s.Exec(ctx, scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

// Complete returns the candidates for the argument being typed, given the
// arguments before it.
func (s *Simulator) Complete(completed []string, current string) []string {
	var candidates []string
	if len(completed) == 0 {
		for name := range s.commands {
			candidates = append(candidates, name)
		}
	} else if c, ok := s.commands[completed[0]]; ok && c.complete != nil {
		candidates = c.complete(s, len(completed)-1, completed[1:])
	}
	out := candidates[:0]
	for _, v := range candidates {
		if strings.HasPrefix(v, current) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}

func wantArgs(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		return usage("got %d arguments", len(args))
	}
	return nil
}

func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, usage("%s %q is not a number", what, s)
	}
	return v, nil
}

func fixed(values ...string) func(*Simulator, int, []string) []string {
	return func(_ *Simulator, i int, _ []string) []string {
		if i == 0 {
			return values
		}
		return nil
	}
}

func keyNames() []string {
	var out []string
	for _, k := range mediakey.Keys() {
		out = append(out, k.String())
	}
	return out
}

func commands() []*Command {
	return []*Command{
		{
			Name:  "key",
			Usage: "press|release <KEY>",
			Help:  "Press or release a hardware media key",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 2, 2); err != nil {
					return err
				}
				k, err := mediakey.ParseKey(args[1])
				if err != nil {
					return usage("unknown key %q", args[1])
				}
				switch args[0] {
				case "press":
					return s.dev.MediaKey.Press(k)
				case "release":
					return s.dev.MediaKey.Release(k)
				}
				return usage("unknown action %q", args[0])
			},
			complete: func(_ *Simulator, i int, _ []string) []string {
				switch i {
				case 0:
					return []string{"press", "release"}
				case 1:
					return keyNames()
				}
				return nil
			},
		},
		{
			Name:  "push",
			Usage: "<appId> <appData> [alertMessage]",
			Help:  "Deliver a push message to a registered application",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 2, 3); err != nil {
					return err
				}
				alert := ""
				if len(args) == 3 {
					alert = args[2]
				}
				return s.dev.Push.Deliver(args[0], args[1], alert)
			},
			complete: func(s *Simulator, i int, _ []string) []string {
				if i != 0 {
					return nil
				}
				apps, err := s.dev.Push.Registered()
				if err != nil {
					s.logger.Warn("[Sim] list push registrations", "error", err)
				}
				return apps
			},
		},
		{
			Name:  "battery",
			Usage: "<level> [charging]",
			Help:  "Set the battery level (0 to 1) and charging state",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 1, 2); err != nil {
					return err
				}
				level, err := parseFloat(args[0], "level")
				if err != nil {
					return err
				}
				if len(args) == 2 && args[1] != "charging" {
					return usage("unknown flag %q", args[1])
				}
				return s.dev.SystemInfo.SetBattery(level, len(args) == 2)
			},
			complete: func(_ *Simulator, i int, _ []string) []string {
				if i == 1 {
					return []string{"charging"}
				}
				return nil
			},
		},
		{
			Name:  "cpu",
			Usage: "<load>",
			Help:  "Set the CPU load (0 to 1)",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 1, 1); err != nil {
					return err
				}
				load, err := parseFloat(args[0], "load")
				if err != nil {
					return err
				}
				return s.dev.SystemInfo.SetCPULoad(load)
			},
		},
		{
			Name:  "display",
			Usage: "brightness <v> | orientation <STATUS>",
			Help:  "Change the display brightness or orientation",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 2, 2); err != nil {
					return err
				}
				switch args[0] {
				case "brightness":
					v, err := parseFloat(args[1], "brightness")
					if err != nil {
						return err
					}
					return s.dev.SystemInfo.SetBrightness(v)
				case "orientation":
					return s.dev.SystemInfo.SetOrientation(args[1])
				}
				return usage("unknown attribute %q", args[0])
			},
			complete: func(_ *Simulator, i int, args []string) []string {
				switch {
				case i == 0:
					return []string{"brightness", "orientation"}
				case i == 1 && args[0] == "orientation":
					return systeminfo.Orientations
				}
				return nil
			},
		},
		{
			Name:  "locale",
			Usage: "<tag>",
			Help:  "Change the system locale (BCP 47 tag)",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 1, 1); err != nil {
					return err
				}
				return s.dev.SystemInfo.SetLocale(args[0])
			},
		},
		{
			Name:  "memory",
			Usage: "refresh",
			Help:  "Reread host memory and report a MEMORY change",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if len(args) != 1 || args[0] != "refresh" {
					return usage("want refresh")
				}
				return s.dev.SystemInfo.Refresh()
			},
			complete: fixed("refresh"),
		},
		{
			Name:  "sound",
			Usage: "mode <MODE> | volume <TYPE> <v>",
			Help:  "Change the sound mode or a volume",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if len(args) < 2 {
					return usage("got %d arguments", len(args))
				}
				switch args[0] {
				case "mode":
					if err := wantArgs(args, 2, 2); err != nil {
						return err
					}
					m, err := sound.ParseMode(args[1])
					if err != nil {
						return usage("unknown mode %q", args[1])
					}
					return s.dev.Sound.SetMode(m)
				case "volume":
					if err := wantArgs(args, 3, 3); err != nil {
						return err
					}
					t, err := sound.ParseVolumeType(args[1])
					if err != nil {
						return usage("unknown volume type %q", args[1])
					}
					v, err := parseFloat(args[2], "volume")
					if err != nil {
						return err
					}
					return s.dev.Sound.SetVolume(t, v)
				}
				return usage("unknown attribute %q", args[0])
			},
			complete: func(_ *Simulator, i int, args []string) []string {
				switch {
				case i == 0:
					return []string{"mode", "volume"}
				case i == 1 && args[0] == "mode":
					return sound.Modes
				case i == 1 && args[0] == "volume":
					return sound.VolumeTypes
				}
				return nil
			},
		},
		{
			Name:  "device",
			Usage: "connect|disconnect <id>",
			Help:  "Plug or unplug an audio device",
			run: func(s *Simulator, _ context.Context, args []string) error {
				if err := wantArgs(args, 2, 2); err != nil {
					return err
				}
				id, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return usage("device id %q is not an integer", args[1])
				}
				switch args[0] {
				case "connect":
					return s.dev.Sound.Connect(id)
				case "disconnect":
					return s.dev.Sound.Disconnect(id)
				}
				return usage("unknown action %q", args[0])
			},
			complete: fixed("connect", "disconnect"),
		},
		{
			Name:  "bt",
			Usage: "found <address> <name> | lost <address> | power on|off",
			Help:  "Move Bluetooth devices in or out of range, or switch the adapter",
			run: func(s *Simulator, ctx context.Context, args []string) error {
				if len(args) == 0 {
					return usage("got 0 arguments")
				}
				switch args[0] {
				case "found":
					if err := wantArgs(args, 3, 3); err != nil {
						return err
					}
					return s.dev.Bluetooth.Appear(bluetooth.Device{Address: args[1], Name: args[2]})
				case "lost":
					if err := wantArgs(args, 2, 2); err != nil {
						return err
					}
					return s.dev.Bluetooth.Disappear(args[1])
				case "power":
					if err := wantArgs(args, 2, 2); err != nil {
						return err
					}
					if args[1] != "on" && args[1] != "off" {
						return usage("want on or off")
					}
					return s.dev.Bluetooth.SetPowered(ctx, args[1] == "on")
				}
				return usage("unknown action %q", args[0])
			},
			complete: func(_ *Simulator, i int, args []string) []string {
				switch {
				case i == 0:
					return []string{"found", "lost", "power"}
				case i == 1 && args[0] == "power":
					return []string{"on", "off"}
				}
				return nil
			},
		},
		{
			Name:  "sleep",
			Usage: "<duration>",
			Help:  "Wait, e.g. for a discovery to progress",
			run: func(_ *Simulator, ctx context.Context, args []string) error {
				if err := wantArgs(args, 1, 1); err != nil {
					return err
				}
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return usage("bad duration %q", args[0])
				}
				t := time.NewTimer(d)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
					return nil
				}
			},
		},
	}
}
