package command

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/config"
)

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

// Execute displays help information.
func (c *HelpCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "wrt - run web widgets against simulated device APIs")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: wrt <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Available commands:")

		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()

		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'wrt help <command>' for more information about a specific command (includes flags).")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: %s\n", cmd.Usage())

	// Collect the flags by running SetupFlags on a scratch FlagSet.
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	buf := &bytes.Buffer{}
	fs.SetOutput(buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

// Execute displays version information.
func (c *VersionCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "wrt version %s\n", c.version)
	return nil
}

// ConfigCommand manages configuration.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	section    string
	showGlobal bool
	showAll    bool
}

// NewConfigCommand creates a new config command. An empty configPath skips
// persisting changes to disk.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Manage configuration settings",
			"config [options] [key] [value]",
		),
		config:     cfg,
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the config command.
func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.section, "section", "", "Read or write keys of this section (e.g. device) instead of the global ones")
	fs.BoolVar(&c.showGlobal, "global", false, "Show only global configuration")
	fs.BoolVar(&c.showAll, "all", false, "Show all configuration (global, sections and access rules)")
}

// Execute manages configuration.
func (c *ConfigCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		switch {
		case c.showAll:
			c.printAll(stdout)
		case c.showGlobal:
			_, _ = fmt.Fprintln(stdout, "Global configuration:")
			printSorted(stdout, "  ", c.config.Global)
		default:
			_, _ = fmt.Fprintln(stdout, "Configuration management:")
			_, _ = fmt.Fprintln(stdout, "  config <key>                    - Get configuration value")
			_, _ = fmt.Fprintln(stdout, "  config <key> <value>            - Set configuration value")
			_, _ = fmt.Fprintln(stdout, "  config --section device <key>   - Get or set a section value")
			_, _ = fmt.Fprintln(stdout, "  config --global                 - Show global configuration")
			_, _ = fmt.Fprintln(stdout, "  config --all                    - Show all configuration")
			_, _ = fmt.Fprintln(stdout, "  config validate                 - Validate configuration")
			_, _ = fmt.Fprintln(stdout, "  config schema                   - Show configuration schema")
		}
		return nil
	}

	switch args[0] {
	case "validate":
		return c.executeValidate(stdout)
	case "schema":
		_, _ = fmt.Fprint(stdout, config.DefaultSchema().FormatHelp())
		return nil
	}

	switch len(args) {
	case 1:
		c.executeGet(stdout, args[0])
		return nil
	case 2:
		return c.executeSet(stdout, stderr, args[0], args[1])
	}

	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return fmt.Errorf("invalid arguments")
}

func (c *ConfigCommand) executeGet(stdout io.Writer, key string) {
	schema := config.DefaultSchema()
	var value string
	var exists bool
	if c.section == "" {
		_, exists = c.config.GetGlobalOption(key)
		value = schema.Resolve(c.config, key)
	} else {
		value, exists = c.config.Sections[c.section][key]
		if !exists {
			if opt := schema.Lookup(c.section, key); opt != nil {
				value = opt.Default
			}
		}
	}
	if value != "" || exists {
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, value)
		return
	}
	_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
}

func (c *ConfigCommand) executeSet(stdout, stderr io.Writer, key, value string) error {
	if err := config.DefaultSchema().Check(c.section, key, value); err != nil {
		_, _ = fmt.Fprintf(stderr, "Refusing to set %s: %v\n", key, err)
		return err
	}
	if c.section == "" {
		c.config.SetGlobalOption(key, value)
	} else {
		c.config.SetSectionOption(c.section, key, value)
	}

	if c.configPath != "" {
		if err := config.SetKeyInFile(c.configPath, c.section, key, value); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: failed to persist config to disk: %v\n", err)
		}
	}

	if c.section != "" {
		_, _ = fmt.Fprintf(stdout, "Set configuration: [%s] %s = %s\n", c.section, key, value)
	} else {
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	}
	return nil
}

func (c *ConfigCommand) printAll(stdout io.Writer) {
	_, _ = fmt.Fprintln(stdout, "Global configuration:")
	printSorted(stdout, "  ", c.config.Global)

	names := make([]string, 0, len(c.config.Sections))
	for name := range c.config.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(stdout, "\n[%s]\n", name)
		printSorted(stdout, "  ", c.config.Sections[name])
	}

	if len(c.config.AccessRules) > 0 {
		_, _ = fmt.Fprintf(stdout, "\n[%s]\n", config.SectionAccess)
		for _, r := range c.config.AccessRules {
			_, _ = fmt.Fprintf(stdout, "  %s\n", r)
		}
	}
}

func printSorted(w io.Writer, indent string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s%s: %s\n", indent, k, m[k])
	}
}

// executeValidate validates the current config against the schema.
func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.ValidateConfig(c.config, config.DefaultSchema())
	if policy, err := c.config.Policy(); err != nil {
		issues = append(issues, err.Error())
	} else if _, err := access.NewChecker(policy, slog.New(slog.DiscardHandler)); err != nil {
		issues = append(issues, err.Error())
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return nil
}

// InitCommand writes a starter configuration file.
type InitCommand struct {
	*BaseCommand
	configPath string
	force      bool
}

// NewInitCommand creates a new init command writing to configPath.
func NewInitCommand(configPath string) *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand(
			"init",
			"Write a starter configuration file",
			"init [options]",
		),
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the init command.
func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite an existing configuration")
}

const defaultConfig = `# wrt configuration file
# Format: optionName remainingLineIsTheValue
# Run 'wrt config schema' for every option.

# Global options
log.level info
access.default deny

# Access rules, first match wins: <feature|*> <permit|deny> [condition]
# Conditions are expressions over app (id, name, version, trusted,
# privileges) and feature.
[access]
* permit app.trusted
systeminfo permit
mediakey permit

# Simulated device
[device]
latency 50ms
battery.level 1
locale en-US
bluetooth.name wrt-sim
bluetooth.nearby 00:1A:7D:DA:71:13=Headphones, 00:1A:7D:DA:71:14=Speaker

[run]
timeout 0s
`

// Execute writes the configuration.
func (c *InitCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	if c.configPath == "" {
		return fmt.Errorf("no configuration path")
	}

	if _, err := os.Stat(c.configPath); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", c.configPath)
		_, _ = fmt.Fprintln(stdout, "Use --force to overwrite existing configuration")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Reload so a broken template fails here rather than on the next run.
	cfg, err := config.LoadFromPath(c.configPath)
	if err != nil {
		return fmt.Errorf("created config does not load: %w", err)
	}
	for _, w := range cfg.Warnings {
		_, _ = fmt.Fprintf(stderr, "Warning: %s\n", w)
	}

	_, _ = fmt.Fprintf(stdout, "Initialized wrt configuration at: %s\n", c.configPath)
	return nil
}
