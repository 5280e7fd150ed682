package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrtplugins/wrt/internal/config"
	"github.com/wrtplugins/wrt/internal/host"
	"github.com/wrtplugins/wrt/internal/logging"
	"github.com/wrtplugins/wrt/internal/manifest"
	"github.com/wrtplugins/wrt/internal/platform/device"
	"github.com/wrtplugins/wrt/internal/sim"
	"github.com/wrtplugins/wrt/internal/storage"
)

// widgetFlags are the flags of every command that runs a widget.
type widgetFlags struct {
	logLevel  string
	logFile   string
	stateDir  string
	ephemeral bool
}

func (f *widgetFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config, then info)")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to this file instead of stderr")
	fs.StringVar(&f.stateDir, "state", "", "Directory for persisted device state (default from config)")
	fs.BoolVar(&f.ephemeral, "ephemeral", false, "Keep device state in memory only")
}

// session is one widget running on a freshly built device, with its start
// page loaded.
type session struct {
	logger *logging.Logger
	device *device.Device
	widget *host.Widget
	page   *host.Page
	sim    *sim.Simulator
}

// openSession loads the manifest at manifestPath, builds the device and
// starts the widget. The widget stops when ctx is cancelled. The start
// script, if any, has run when openSession returns.
func openSession(ctx context.Context, cfg *config.Config, f *widgetFlags, manifestPath string, stderr io.Writer) (_ *session, err error) {
	s := &session{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.logger, err = logging.New(logging.Options{Level: f.logLevel, File: f.logFile}, cfg, stderr); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		s.logger.Warn("[Config] " + w)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	syncTimeout, err := time.ParseDuration(config.DefaultSchema().Resolve(cfg, "engine.sync-timeout"))
	if err != nil {
		return nil, fmt.Errorf("engine.sync-timeout: %w", err)
	}

	store, err := openStore(cfg, f)
	if err != nil {
		return nil, err
	}
	if s.device, err = device.New(cfg, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("device: %w", err)
	}
	s.sim = sim.New(s.device, s.logger.Logger)

	s.widget, err = host.Start(ctx, host.Options{
		Manifest:    m,
		Device:      s.device,
		Policy:      policy,
		Logger:      s.logger.Logger,
		SyncTimeout: syncTimeout,
	})
	if err != nil {
		return nil, err
	}
	if s.page, err = s.widget.LoadPage(pageName(m)); err != nil {
		return nil, err
	}
	if path := m.StartPath(); path != "" {
		if err := s.page.RunFile(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func openStore(cfg *config.Config, f *widgetFlags) (storage.Store, error) {
	if f.ephemeral {
		return storage.NewMemoryStore(), nil
	}
	dir := f.stateDir
	if dir == "" {
		var err error
		if dir, err = config.StateDir(cfg); err != nil {
			return nil, fmt.Errorf("state directory: %w", err)
		}
	}
	return storage.OpenFileStore(dir)
}

func pageName(m *manifest.Manifest) string {
	if m.Start == "" {
		return "index"
	}
	return strings.TrimSuffix(filepath.Base(m.Start), filepath.Ext(m.Start))
}

// Close stops the widget and releases the device and the log file.
func (s *session) Close() error {
	var errs []error
	if s.widget != nil {
		s.widget.Stop()
	}
	if s.device != nil {
		errs = append(errs, s.device.Close())
	}
	if s.logger != nil {
		errs = append(errs, s.logger.Close())
	}
	return errors.Join(errs...)
}

// waitIdle returns once no callback has been pending for quiet, or when the
// widget stops. It returns ctx.Err() if ctx ends first.
func waitIdle(ctx context.Context, w *host.Widget, quiet time.Duration) error {
	ticker := time.NewTicker(quiet / 10)
	defer ticker.Stop()
	var idleSince time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Done():
			return nil
		case <-ticker.C:
		}
		if !w.Idle() {
			idleSince = time.Time{}
			continue
		}
		if idleSince.IsZero() {
			idleSince = time.Now()
		} else if time.Since(idleSince) >= quiet {
			return nil
		}
	}
}
