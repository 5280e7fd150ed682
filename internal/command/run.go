package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wrtplugins/wrt/internal/config"
)

// quietPeriod is how long a widget must have no pending callbacks before run
// considers it finished.
const quietPeriod = 200 * time.Millisecond

// RunCommand runs a widget until it goes quiet.
type RunCommand struct {
	*BaseCommand
	config  *config.Config
	widget  widgetFlags
	events  string
	timeout time.Duration
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a widget against the simulated device",
			"run [options] <manifest.yaml>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	section := c.config.Command("run")
	c.widget.setup(fs)
	fs.StringVar(&c.events, "events", section.String("events"), "Simulation script replayed after the start script")
	fs.DurationVar(&c.timeout, "timeout", section.Duration("timeout"), "Stop after this long even if callbacks are pending (0 for no limit)")
}

// Execute runs the widget. It returns once no callback is pending, the
// timeout elapses, or ctx is cancelled.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: wrt %s\n", c.Usage())
		return fmt.Errorf("expected one manifest, got %d arguments", len(args))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	s, err := openSession(ctx, c.config, &c.widget, args[0], stderr)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if c.events != "" {
		f, err := os.Open(c.events)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		err = s.sim.Run(ctx, f)
		_ = f.Close()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%s: %w", c.events, err)
		}
	}

	switch err := waitIdle(ctx, s.widget, quietPeriod); {
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("[Run] timeout elapsed", "pending", s.widget.Bridge().Len())
	case errors.Is(err, context.Canceled):
		s.logger.Info("[Run] interrupted")
	}

	st := s.widget.Bridge().Stats()
	_, _ = fmt.Fprintf(stdout, "%s: %d callbacks delivered, %d dropped, %d failed\n",
		s.widget.Manifest().ID, st.Delivered, st.Dropped, st.Failed)
	return nil
}
