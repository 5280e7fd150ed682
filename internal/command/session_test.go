package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/config"
)

const testConfig = `
log.level error
[device]
latency 0s
bluetooth.scan 50ms
[access]
* permit
`

// writeWidget writes a manifest declaring privileges and, when script is not
// empty, a start script. It returns the manifest path.
func writeWidget(t *testing.T, script string, privileges ...string) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("id: org.example.test\nversion: 1.0.0\n")
	if script != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(script), 0644))
		b.WriteString("start: main.js\n")
	}
	if len(privileges) > 0 {
		b.WriteString("privileges:\n")
		for _, p := range privileges {
			b.WriteString("  - http://tizen.org/privilege/" + p + "\n")
		}
	}
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("WRT_LOG_LEVEL", "")
	os.Unsetenv("WRT_LOG_LEVEL")
	t.Setenv("WRT_LOG_FILE", "")
	os.Unsetenv("WRT_LOG_FILE")
	cfg, err := config.LoadFromReader(strings.NewReader(testConfig))
	require.NoError(t, err)
	return cfg
}
