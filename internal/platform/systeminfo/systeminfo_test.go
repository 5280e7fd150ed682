package systeminfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/apierr"
)

func newService(t *testing.T) *Service {
	t.Helper()
	d := DefaultDefaults()
	d.StorageRoot = t.TempDir()
	s, err := NewService(d)
	require.NoError(t, err)
	return s
}

func TestService_Get(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	v, err := s.Get(ctx, Battery)
	require.NoError(t, err)
	assert.Equal(t, BatteryInfo{Level: 1}, v)

	v, err = s.Get(ctx, Locale)
	require.NoError(t, err)
	assert.Equal(t, LocaleInfo{Language: "en_US", Country: "US"}, v)

	v, err = s.Get(ctx, Storage)
	require.NoError(t, err)
	units := v.(StorageInfo).Units
	require.Len(t, units, 1)
	assert.NotZero(t, units[0].Capacity)
	assert.LessOrEqual(t, units[0].Available, units[0].Capacity)

	v, err = s.Get(ctx, Memory)
	require.NoError(t, err)
	assert.Contains(t, []string{"NORMAL", "WARNING"}, v.(MemoryInfo).Status)

	_, err = s.Get(ctx, "WIFI_NETWORK")
	assert.Equal(t, apierr.InvalidValues, apierr.KindOf(err))
}

func TestService_HostMemory(t *testing.T) {
	s := newService(t)
	total, err := s.TotalMemory()
	require.NoError(t, err)
	avail, err := s.AvailableMemory()
	require.NoError(t, err)
	assert.NotZero(t, total)
	assert.LessOrEqual(t, avail, total)
}

func TestService_ChangeEvents(t *testing.T) {
	s := newService(t)
	var events []Event
	cancel := s.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	require.NoError(t, s.SetBattery(0.15, false))
	require.NoError(t, s.SetBattery(0.15, false))
	require.NoError(t, s.SetCPULoad(0.9))
	require.NoError(t, s.SetOrientation("LANDSCAPE_PRIMARY"))
	require.NoError(t, s.SetLocale("ko-KR"))
	require.NoError(t, s.SetBrightness(0.5))

	require.Len(t, events, 5)
	assert.Equal(t, Event{Property: Battery, Value: BatteryInfo{Level: 0.15}}, events[0])
	assert.Equal(t, CPU, events[1].Property)
	assert.Equal(t, "LANDSCAPE_PRIMARY", events[2].Value.(OrientationInfo).Status)
	assert.Equal(t, LocaleInfo{Language: "ko_KR", Country: "KR"}, events[3].Value)
	level, ok := Level(events[4].Value)
	assert.True(t, ok)
	assert.Equal(t, 0.5, level)

	assert.Error(t, s.SetBattery(1.5, false))
	assert.Error(t, s.SetCPULoad(-1))
	assert.Error(t, s.SetOrientation("UPSIDE_DOWN"))
	assert.Error(t, s.SetLocale("!!"))
}

func TestService_Capability(t *testing.T) {
	s := newService(t)
	v, err := s.Capability("http://tizen.org/feature/network.bluetooth")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = s.Capability("http://tizen.org/feature/screen.width")
	require.NoError(t, err)
	assert.Equal(t, int64(720), v)

	v, err = s.Capability("http://tizen.org/feature/network.nfc")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = s.Capability("bogus")
	assert.Equal(t, apierr.NotSupported, apierr.KindOf(err))
}

func TestLevel(t *testing.T) {
	_, ok := Level(LocaleInfo{})
	assert.False(t, ok)
	v, ok := Level(CPUInfo{Load: 0.25})
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
}
