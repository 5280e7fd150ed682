package exif

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/platform/exif/exiftest"
)

var thumb = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x02, 0xFF, 0xD9}

func TestReader_Read(t *testing.T) {
	path := exiftest.Write(t, "photo.jpg", exiftest.Image{
		Make:        "Samsung",
		Model:       "SM-Z130H",
		Orientation: 6,
		DateTime:    "2014:05:06 07:08:09",
		Width:       640,
		Height:      480,
		ExposureNum: 1,
		ExposureDen: 125,
		ISO:         200,
		Flash:       true,
		Latitude:    37.5,
		Longitude:   -127.25,
	})

	info, err := NewReader().Read(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	assert.Equal(t, "Samsung", info.DeviceMaker)
	assert.Equal(t, "SM-Z130H", info.DeviceModel)
	assert.Equal(t, "ROTATE_90", info.Orientation)
	require.NotNil(t, info.Width)
	assert.Equal(t, int64(640), *info.Width)
	assert.Equal(t, int64(480), *info.Height)
	assert.Equal(t, "1/125", info.ExposureTime)
	assert.Equal(t, []int64{200}, info.ISOSpeedRatings)
	require.NotNil(t, info.Flash)
	assert.True(t, *info.Flash)
	require.NotNil(t, info.OriginalTime)
	assert.Equal(t, 2014, info.OriginalTime.Year())
	assert.Equal(t, time.May, info.OriginalTime.Month())
	require.NotNil(t, info.GPSLocation)
	assert.InDelta(t, 37.5, info.GPSLocation.Latitude, 1e-4)
	assert.InDelta(t, -127.25, info.GPSLocation.Longitude, 1e-4)
	assert.Nil(t, info.FNumber)
	assert.Empty(t, info.WhiteBalance)
}

func TestReader_Thumbnail(t *testing.T) {
	r := NewReader()
	with := exiftest.Write(t, "with.jpg", exiftest.Image{Make: "x", Thumbnail: thumb})
	uri, ok, err := r.Thumbnail(context.Background(), with)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	assert.Equal(t, thumb, data)

	without := exiftest.Write(t, "without.jpg", exiftest.Image{Make: "x"})
	_, ok, err = r.Thumbnail(context.Background(), without)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReader_Errors(t *testing.T) {
	r := NewReader()
	ctx := context.Background()

	_, err := r.Read(ctx, "http://example.com/a.jpg")
	assert.Equal(t, apierr.InvalidValues, apierr.KindOf(err))
	_, err = r.Read(ctx, "relative/a.jpg")
	assert.Equal(t, apierr.InvalidValues, apierr.KindOf(err))
	_, err = r.Read(ctx, filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))

	plain := filepath.Join(t.TempDir(), "plain.jpg")
	require.NoError(t, os.WriteFile(plain, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o600))
	_, err = r.Read(ctx, plain)
	assert.Equal(t, apierr.Unknown, apierr.KindOf(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Read(cancelled, plain)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPath(t *testing.T) {
	p, err := Path("file:///opt/media/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/opt/media/a.jpg"), p)
	_, err = Path("file://remote/a.jpg")
	assert.Error(t, err)
}
