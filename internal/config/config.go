// Package config loads the runtime configuration file.
//
// The file uses a dnsmasq-style format: one "option value" pair per line,
// "#" comments, and "[section]" headers. Two sections are special:
//
//	[access]  one policy rule per line: <feature|*> <permit|deny> [condition]
//	[device]  defaults for the simulated platform services
//
// Every other section holds options for the command of the same name.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wrtplugins/wrt/internal/access"
)

// Section names with dedicated handling.
const (
	SectionAccess = "access"
	SectionDevice = "device"
)

// Config represents the runtime configuration.
type Config struct {
	// Global options that apply to all commands.
	Global map[string]string
	// Sections holds [device] and per-command options by section name.
	Sections map[string]map[string]string
	// AccessRules are the parsed [access] lines, in file order.
	AccessRules []access.Rule
	// Warnings contains any warnings generated during config loading.
	Warnings []string
}

// NewConfig creates a new empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Sections: make(map[string]map[string]string),
		Warnings: make([]string, 0),
	}
}

// Load loads configuration from the default config file path.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads configuration from the specified file path. A missing
// file yields an empty configuration. Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var section string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			if section != SectionAccess && config.Sections[section] == nil {
				config.Sections[section] = make(map[string]string)
			}
			continue
		}

		if section == SectionAccess {
			rule, err := access.ParseRule(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			config.AccessRules = append(config.AccessRules, rule)
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		if section == "" {
			config.Global[name] = value
		} else {
			config.Sections[section][name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}
	return config, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// Policy returns the access policy configured by access.default and the
// [access] rules.
func (c *Config) Policy() (access.Policy, error) {
	def, err := access.ParseDecision(DefaultSchema().Resolve(c, "access.default"))
	if err != nil {
		return access.Policy{}, fmt.Errorf("access.default: %w", err)
	}
	return access.Policy{Default: def, Rules: c.AccessRules}, nil
}

// parseBool parses a boolean value from string.
// Accepts: true, false, 1, 0, yes, no, on, off (case-insensitive)
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global configuration option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, exists := c.Global[name]
	return value, exists
}

// GetSectionOption returns an option of section, falling back to the global
// option of the same name.
func (c *Config) GetSectionOption(section, name string) (string, bool) {
	if opts, exists := c.Sections[section]; exists {
		if value, exists := opts[name]; exists {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global configuration option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetSectionOption sets an option of section.
func (c *Config) SetSectionOption(section, name, value string) {
	if c.Sections[section] == nil {
		c.Sections[section] = make(map[string]string)
	}
	c.Sections[section][name] = value
}

// HasWarnings returns true if there are any warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}

// --- Typed getters ---

// GetString returns the global option value for key, or "" if not set.
func (c *Config) GetString(key string) string {
	v, _ := c.GetGlobalOption(key)
	return v
}

// GetBool returns the global option value for key parsed as a boolean. Returns
// false if the key is not set or the value cannot be parsed.
func (c *Config) GetBool(key string) bool {
	b, _ := parseBool(c.GetString(key))
	return b
}

// GetInt returns the global option value for key parsed as an integer. Returns
// 0 if the key is not set or the value cannot be parsed.
func (c *Config) GetInt(key string) int {
	i, _ := strconv.Atoi(c.GetString(key))
	return i
}

// GetDuration returns the global option value for key parsed as a
// time.Duration. Returns 0 if the key is not set or the value cannot be parsed.
func (c *Config) GetDuration(key string) time.Duration {
	d, _ := time.ParseDuration(c.GetString(key))
	return d
}

// Device returns the [device] options resolved against the schema defaults.
func (c *Config) Device() Section {
	return Section{name: SectionDevice, config: c, schema: DefaultSchema()}
}

// Command returns the options of the named command section.
func (c *Config) Command(name string) Section {
	return Section{name: name, config: c, schema: DefaultSchema()}
}

// Section reads typed options of one section. Unset or malformed values read
// as the schema default.
type Section struct {
	name   string
	config *Config
	schema *ConfigSchema
}

func (s Section) raw(key string) string {
	if v, ok := s.config.Sections[s.name][key]; ok {
		return v
	}
	if opt := s.schema.Lookup(s.name, key); opt != nil {
		return opt.Default
	}
	return ""
}

func (s Section) fallback(key string) string {
	if opt := s.schema.Lookup(s.name, key); opt != nil {
		return opt.Default
	}
	return ""
}

// String returns the value of key.
func (s Section) String(key string) string { return s.raw(key) }

// Bool returns the value of key as a boolean.
func (s Section) Bool(key string) bool {
	if b, err := parseBool(s.raw(key)); err == nil {
		return b
	}
	b, _ := parseBool(s.fallback(key))
	return b
}

// Int returns the value of key as an integer.
func (s Section) Int(key string) int {
	if i, err := strconv.Atoi(s.raw(key)); err == nil {
		return i
	}
	i, _ := strconv.Atoi(s.fallback(key))
	return i
}

// Float returns the value of key as a float.
func (s Section) Float(key string) float64 {
	if f, err := strconv.ParseFloat(s.raw(key), 64); err == nil {
		return f
	}
	f, _ := strconv.ParseFloat(s.fallback(key), 64)
	return f
}

// Duration returns the value of key as a time.Duration.
func (s Section) Duration(key string) time.Duration {
	if d, err := time.ParseDuration(s.raw(key)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(s.fallback(key))
	return d
}
