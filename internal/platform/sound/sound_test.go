package sound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/apierr"
)

func TestService_Volume(t *testing.T) {
	s := NewService(9, DefaultDevices())
	v, err := s.Volume(Media)
	require.NoError(t, err)
	assert.Equal(t, 0.6, v)

	var events []VolumeEvent
	cancel := s.SubscribeVolume(func(ev VolumeEvent) { events = append(events, ev) })
	defer cancel()

	require.NoError(t, s.SetVolume(Media, 1))
	require.NoError(t, s.SetVolume(Media, 1))
	require.NoError(t, s.SetVolume(Alarm, 0))
	assert.Equal(t, []VolumeEvent{{Type: Media, Volume: 1}, {Type: Alarm, Volume: 0}}, events)

	err = s.SetVolume(Media, 1.5)
	assert.Equal(t, apierr.InvalidValues, apierr.KindOf(err))
	err = s.SetVolume(Media, -0.1)
	assert.Equal(t, apierr.InvalidValues, apierr.KindOf(err))
	_, err = s.Volume("LOUD")
	assert.Error(t, err)
}

func TestService_Mode(t *testing.T) {
	s := NewService(5, nil)
	assert.Equal(t, ModeSound, s.Mode())

	var modes []Mode
	cancel := s.SubscribeMode(func(m Mode) { modes = append(modes, m) })
	require.NoError(t, s.SetMode(ModeVibrate))
	require.NoError(t, s.SetMode(ModeVibrate))
	cancel()
	require.NoError(t, s.SetMode(ModeMute))

	assert.Equal(t, []Mode{ModeVibrate}, modes)
	assert.Equal(t, ModeMute, s.Mode())
	assert.Error(t, s.SetMode("LOUD"))

	_, err := ParseMode("SOUND")
	assert.NoError(t, err)
	_, err = ParseVolumeType("RADIO")
	assert.Error(t, err)
}

func TestService_Devices(t *testing.T) {
	s := NewService(5, DefaultDevices())
	assert.Len(t, s.ConnectedDevices(), 2)

	var changed []Device
	s.SubscribeDevices(func(d Device) { changed = append(changed, d) })

	require.NoError(t, s.Connect(3))
	require.Len(t, changed, 2, "headset activated, speaker deactivated")
	active := s.ActivatedDevices()
	require.Len(t, active, 2)
	assert.Equal(t, "MIC", active[0].Type)
	assert.Equal(t, "AUDIO_JACK", active[1].Type)

	changed = nil
	require.NoError(t, s.Disconnect(3))
	require.Len(t, changed, 2)
	assert.Equal(t, "SPEAKER", s.ActivatedDevices()[0].Type)

	changed = nil
	require.NoError(t, s.Disconnect(3))
	assert.Empty(t, changed)

	err := s.Connect(99)
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
}
