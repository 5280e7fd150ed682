package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execRun(t *testing.T, ctx context.Context, flags ...string) (string, error) {
	t.Helper()
	cmd := NewRunCommand(testCfg(t))
	fs := newFlagSet(cmd)
	require.NoError(t, fs.Parse(append([]string{"-ephemeral"}, flags...)))
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(ctx, fs.Args(), &stdout, &stderr)
	return stdout.String(), err
}

func TestRunCommand_UntilIdle(t *testing.T) {
	manifest := writeWidget(t, `
		tizen.systeminfo.getPropertyValue("CPU", function () {});
		tizen.systeminfo.getPropertyValue("BATTERY", function () {});
	`, "systeminfo")

	start := time.Now()
	out, err := execRun(t, context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, "org.example.test: 2 callbacks delivered, 0 dropped, 0 failed\n", out)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCommand_EventsAndTimeout(t *testing.T) {
	manifest := writeWidget(t, `
		tizen.mediakey.setMediaKeyEventListener({
			onpressed: function (k) {},
			onreleased: function (k) { throw new Error("boom"); }
		});
	`, "mediakey")
	events := filepath.Join(filepath.Dir(manifest), "events.sim")
	require.NoError(t, os.WriteFile(events, []byte("key press MEDIA_PLAY\nkey release MEDIA_PLAY\nsleep 50ms\n"), 0644))

	out, err := execRun(t, context.Background(), "-events", events, "-timeout", "300ms", manifest)
	require.NoError(t, err)
	assert.Equal(t, "org.example.test: 1 callbacks delivered, 0 dropped, 1 failed\n", out)
}

func TestRunCommand_Cancelled(t *testing.T) {
	manifest := writeWidget(t, `tizen.mediakey.setMediaKeyEventListener({ onpressed: function () {}, onreleased: function () {} });`, "mediakey")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := execRun(t, ctx, manifest)
	assert.NoError(t, err)
}

func TestRunCommand_Errors(t *testing.T) {
	_, err := execRun(t, context.Background())
	assert.ErrorContains(t, err, "expected one manifest")

	_, err = execRun(t, context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open manifest")

	manifest := writeWidget(t, `throw new Error("start failed")`)
	_, err = execRun(t, context.Background(), manifest)
	assert.ErrorContains(t, err, "start failed")

	manifest = writeWidget(t, "")
	events := filepath.Join(filepath.Dir(manifest), "bad.sim")
	require.NoError(t, os.WriteFile(events, []byte("battery 0.5\nexplode\n"), 0644))
	_, err = execRun(t, context.Background(), "-events", events, manifest)
	assert.ErrorContains(t, err, "line 2: usage: unknown command")
}
