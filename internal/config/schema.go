package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a decimal number.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypeDecision is an access decision: permit or deny.
	TypeDecision OptionType = "decision"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command or [device] section.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	// byKey indexes global options by key for fast lookup.
	byKey map[string]*ConfigOption
	// bySection indexes section options by section then key.
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys within the same
// section are silently overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for a key in a given section ("" for global).
// Returns nil if the key is not registered.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// IsKnown returns true if the key is registered in the given section.
// Global keys are also known in command sections, where they override the
// global value. The [device] section only accepts its own keys.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section == "" {
		return s.byKey[key] != nil
	}
	if sec, ok := s.bySection[section]; ok && sec[key] != nil {
		return true
	}
	return section != SectionDevice && s.byKey[key] != nil
}

// GlobalOptions returns all registered global options (Section == "").
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == "" {
			out = append(out, *o)
		}
	}
	return out
}

// SectionOptions returns all registered options for a specific section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns a sorted list of all registered non-empty section names.
func (s *ConfigSchema) Sections() []string {
	seen := make(map[string]bool)
	for sec := range s.bySection {
		seen[sec] = true
	}
	out := make([]string, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value for a global config key by checking,
// in order: (1) the environment variable declared in the schema for this key,
// (2) the config value, (3) the schema default. Returns "" if the key is not
// found anywhere.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	// Check env var override from schema.
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	// Check config value.
	v, ok := c.GetGlobalOption(key)
	if ok {
		return v
	}
	// Fall back to schema default.
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid). It reports
// unknown keys and values that do not parse as the declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	// Validate global options.
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Sections {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt != nil {
				if err := validateType(opt.Type, value); err != nil {
					issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// Check reports whether value is acceptable for key in section ("" for the
// global section).
func (s *ConfigSchema) Check(section, key, value string) error {
	if section == SectionAccess {
		return errors.New("access rules are not key/value options")
	}
	if !s.IsKnown(section, key) {
		if section == "" {
			return fmt.Errorf("unknown global option %q", key)
		}
		return fmt.Errorf("unknown option %q in [%s]", key, section)
	}
	opt := s.Lookup(section, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	return validateType(opt.Type, value)
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeDecision:
		if v := strings.ToLower(value); v != "permit" && v != "deny" {
			return fmt.Errorf("expected permit or deny, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	// Global options first.
	globals := s.GlobalOptions()
	if len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}

	// Section options.
	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n[%s] Options:\n", sec))
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}

	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	b.WriteString(fmt.Sprintf("  %-35s %s", o.Key, o.Description))
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")
}

// --- Default schema ---

// DefaultSchema returns the schema declaring every known option. It is the
// single source of truth for option names, types, defaults and environment
// variable overrides.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultDeviceOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "verbose", Type: TypeBool, Default: "false", Description: "Enable verbose output"},
		{Key: "color", Type: TypeString, Default: "auto", Description: "Color mode: auto, always, never"},

		{Key: "state.dir", Type: TypeString, Default: "", Description: "Directory for persisted device state (default: beside the config file)", EnvVar: "WRT_STATE_DIR"},
		{Key: "engine.sync-timeout", Type: TypeDuration, Default: "5s", Description: "Max wait for a synchronous call into a page engine"},
		{Key: "access.default", Type: TypeDecision, Default: "deny", Description: "Decision when no [access] rule matches a declared privilege"},

		{Key: "log.file", Type: TypeString, Default: "", Description: "Log file path (JSON output)", EnvVar: "WRT_LOG_FILE"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "WRT_LOG_LEVEL"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
	}
}

func defaultDeviceOptions() []ConfigOption {
	d := func(key string, t OptionType, def, desc string) ConfigOption {
		return ConfigOption{Key: key, Section: SectionDevice, Type: t, Default: def, Description: desc}
	}
	return []ConfigOption{
		d("latency", TypeDuration, "50ms", "Delay of simulated blocking platform calls"),
		d("battery.level", TypeFloat, "1", "Initial battery level, 0 to 1"),
		d("battery.charging", TypeBool, "false", "Initial charging state"),
		d("locale", TypeString, "en-US", "BCP 47 language tag of the device locale"),
		d("display.width", TypeInt, "720", "Display width in pixels"),
		d("display.height", TypeInt, "1280", "Display height in pixels"),
		d("display.brightness", TypeFloat, "0.8", "Initial display brightness, 0 to 1"),
		d("storage.root", TypeString, "/", "Filesystem reported as internal storage"),
		d("sound.volume", TypeInt, "9", "Initial volume level, 0 to 15"),
		d("bluetooth.name", TypeString, "wrt-sim", "Adapter name"),
		d("bluetooth.address", TypeString, "00:12:47:08:9A:A0", "Adapter MAC address"),
		d("bluetooth.powered", TypeBool, "true", "Initial adapter power state"),
		d("bluetooth.scan", TypeDuration, "2s", "Duration of one discovery"),
		d("bluetooth.nearby", TypeString, "", "Devices in range: address=name pairs separated by commas"),
		d("setting.home-screen", TypeString, "", "Initial HOME_SCREEN wallpaper path"),
		d("setting.lock-screen", TypeString, "", "Initial LOCK_SCREEN wallpaper path"),
		d("setting.incoming-call", TypeString, "", "Initial INCOMING_CALL ringtone path"),
		d("setting.notification-email", TypeString, "", "Initial NOTIFICATION_EMAIL tone path"),
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "timeout", Section: "run", Type: TypeDuration, Default: "0s", Description: "Unload the page after this long (0 waits for events to finish)"},
		{Key: "events", Section: "run", Type: TypeString, Default: "", Description: "Simulation script to replay after the start script"},

		{Key: "prompt", Section: "shell", Type: TypeString, Default: "wrt> ", Description: "Shell prompt prefix"},
	}
}
