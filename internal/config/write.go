package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wrtplugins/wrt/internal/storage"
)

// SetKeyInFile updates or adds key in section ("" for the global section) of
// the config file, preserving comments and formatting. An existing line for
// the key is replaced in place. A new key goes at the end of its section; a
// missing section is appended to the file. Global keys go before the first
// section header.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	current := ""
	sectionSeen := section == ""
	insertAt := -1
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if current == section && insertAt < 0 {
				insertAt = lastContent(lines[:i]) + 1
			}
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			if current == section {
				sectionSeen = true
			}
			continue
		}
		if current != section || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			replaced = true
			break
		}
	}

	switch {
	case replaced:
	case !sectionSeen:
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	case insertAt < 0:
		lines = append(lines, newLine)
	default:
		lines = append(lines[:insertAt], append([]string{newLine}, lines[insertAt:]...)...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return storage.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// lastContent returns the index of the last non-blank line, or -1.
func lastContent(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}
