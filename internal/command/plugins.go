package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/config"
	"github.com/wrtplugins/wrt/internal/manifest"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PluginsCommand lists the device API features and the privileges that gate
// them, optionally with the decisions the access policy makes for a widget.
type PluginsCommand struct {
	*BaseCommand
	config   *config.Config
	manifest string
	color    string
}

// NewPluginsCommand creates a new plugins command.
func NewPluginsCommand(cfg *config.Config) *PluginsCommand {
	return &PluginsCommand{
		BaseCommand: NewBaseCommand(
			"plugins",
			"List plugin features, their privileges and access decisions",
			"plugins [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the plugins command.
func (c *PluginsCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.manifest, "manifest", "", "Show the access decision for the widget described by this manifest")
	fs.StringVar(&c.color, "color", config.DefaultSchema().Resolve(c.config, "color"), "Color mode: auto, always, never")
}

// Execute prints the feature table.
func (c *PluginsCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	headers := []string{"PLUGIN", "FEATURE", "PRIVILEGE"}
	var app *access.App
	var checker *access.Checker
	if c.manifest != "" {
		m, err := manifest.Load(c.manifest)
		if err != nil {
			return err
		}
		policy, err := c.config.Policy()
		if err != nil {
			return err
		}
		if checker, err = access.NewChecker(policy, slog.New(slog.DiscardHandler)); err != nil {
			return err
		}
		a := m.App()
		app = &a
		headers = append(headers, "DECLARED", "DECISION")
	}

	title := cases.Title(language.Und)
	var rows [][]string
	var decisions []access.Decision
	for _, f := range access.Features() {
		row := []string{f.Plugin, f.Name, f.Privilege}
		if app != nil {
			declared := "no"
			if app.Declares(f.Privilege) {
				declared = "yes"
			}
			d := checker.Check(*app, f.Name)
			decisions = append(decisions, d)
			row = append(row, declared, title.String(d.String()))
		}
		rows = append(rows, row)
	}

	colored, err := useColor(c.color, stdout)
	if err != nil {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if !colored {
				return s
			}
			switch {
			case row == table.HeaderRow:
				return s.Bold(true).Foreground(lipgloss.Color("12"))
			case col == len(headers)-1 && app != nil && decisions[row] == access.Permit:
				return s.Foreground(lipgloss.Color("10"))
			case col == len(headers)-1 && app != nil:
				return s.Foreground(lipgloss.Color("9"))
			}
			return s
		})
	if app != nil {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", app.ID, app.Version)
	}
	_, _ = fmt.Fprintln(stdout, t.String())
	return nil
}

// useColor resolves a color mode against the output stream.
func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	}
	return false, fmt.Errorf("invalid color mode %q (want auto, always or never)", mode)
}
