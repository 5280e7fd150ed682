// Package exif reads EXIF metadata and thumbnails from image files named by
// file URIs.
package exif

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/wrtplugins/wrt/internal/platform"
)

// Orientations names EXIF orientation values 1 to 8.
var Orientations = []string{
	"NORMAL", "FLIP_HORIZONTAL", "ROTATE_180", "FLIP_VERTICAL",
	"TRANSPOSE", "ROTATE_90", "TRANSVERSE", "ROTATE_270",
}

// GPSLocation is a decimal degree position.
type GPSLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Info is the EXIF metadata of one image. Pointer and empty fields are absent
// from the file.
type Info struct {
	URI                 string       `json:"uri"`
	Width               *int64       `json:"width"`
	Height              *int64       `json:"height"`
	DeviceMaker         string       `json:"deviceMaker"`
	DeviceModel         string       `json:"deviceModel"`
	OriginalTime        *time.Time   `json:"originalTime"`
	Orientation         string       `json:"orientation"`
	FNumber             *float64     `json:"fNumber"`
	ISOSpeedRatings     []int64      `json:"isoSpeedRatings"`
	ExposureTime        string       `json:"exposureTime"`
	ExposureProgram     *int64       `json:"exposureProgram"`
	Flash               *bool        `json:"flash"`
	FocalLength         *float64     `json:"focalLength"`
	WhiteBalance        string       `json:"whiteBalance"`
	GPSLocation         *GPSLocation `json:"gpsLocation"`
	GPSAltitude         *float64     `json:"gpsAltitude"`
	GPSProcessingMethod string       `json:"gpsProcessingMethod"`
	UserComment         string       `json:"userComment"`
}

// Reader decodes images from the local filesystem.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader { return &Reader{} }

// Path converts a file URI, or an absolute path, to a filesystem path.
func Path(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", platform.NewError("exif_uri("+uri+")", platform.ErrorInvalidParameter)
	}
	switch {
	case u.Scheme == "file" && (u.Host == "" || u.Host == "localhost"):
		return filepath.FromSlash(u.Path), nil
	case u.Scheme == "" && filepath.IsAbs(uri):
		return uri, nil
	}
	return "", platform.NewError("exif_uri("+uri+")", platform.ErrorInvalidParameter)
}

func (r *Reader) decode(ctx context.Context, uri string) (*goexif.Exif, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := Path(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, platform.NewError("exif_open("+path+")", platform.ErrorNotFound)
		}
		return nil, fmt.Errorf("exif_open: %w", err)
	}
	defer f.Close()
	x, err := goexif.Decode(f)
	if err != nil && (x == nil || goexif.IsCriticalError(err)) {
		return nil, fmt.Errorf("%w: %v", platform.NewError("exif_decode("+path+")", platform.ErrorOperationFailed), err)
	}
	return x, nil
}

// Read returns the metadata of the image at uri.
func (r *Reader) Read(ctx context.Context, uri string) (Info, error) {
	x, err := r.decode(ctx, uri)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		URI:                 uri,
		DeviceMaker:         str(x, goexif.Make),
		DeviceModel:         str(x, goexif.Model),
		ExposureTime:        ratString(x, goexif.ExposureTime),
		GPSProcessingMethod: str(x, goexif.GPSProcessingMethod),
		UserComment:         str(x, goexif.UserComment),
		FNumber:             ratFloat(x, goexif.FNumber),
		FocalLength:         ratFloat(x, goexif.FocalLength),
		GPSAltitude:         ratFloat(x, goexif.GPSAltitude),
		ExposureProgram:     integer(x, goexif.ExposureProgram),
	}
	if info.Width = integer(x, goexif.PixelXDimension); info.Width == nil {
		info.Width = integer(x, goexif.ImageWidth)
	}
	if info.Height = integer(x, goexif.PixelYDimension); info.Height == nil {
		info.Height = integer(x, goexif.ImageLength)
	}
	if t, err := x.DateTime(); err == nil {
		info.OriginalTime = &t
	}
	if o := integer(x, goexif.Orientation); o != nil && *o >= 1 && int(*o) <= len(Orientations) {
		info.Orientation = Orientations[*o-1]
	}
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil && tag.Format() == tiff.IntVal {
		for i := 0; i < int(tag.Count); i++ {
			v, _ := tag.Int64(i)
			info.ISOSpeedRatings = append(info.ISOSpeedRatings, v)
		}
	}
	if f := integer(x, goexif.Flash); f != nil {
		fired := *f&1 != 0
		info.Flash = &fired
	}
	if wb := integer(x, goexif.WhiteBalance); wb != nil {
		info.WhiteBalance = "AUTO"
		if *wb == 1 {
			info.WhiteBalance = "MANUAL"
		}
	}
	if lat, long, err := x.LatLong(); err == nil {
		info.GPSLocation = &GPSLocation{Latitude: lat, Longitude: long}
	}
	return info, nil
}

// Thumbnail returns the embedded JPEG thumbnail of the image at uri as a data
// URI. ok is false when the image has none.
func (r *Reader) Thumbnail(ctx context.Context, uri string) (dataURI string, ok bool, err error) {
	x, err := r.decode(ctx, uri)
	if err != nil {
		return "", false, err
	}
	thumb, err := thumbnail(x)
	if err != nil || len(thumb) == 0 {
		return "", false, nil
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(thumb), true, nil
}

// thumbnail guards against offsets pointing outside the EXIF block, which
// make the decoder panic.
func thumbnail(x *goexif.Exif) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("thumbnail out of range: %v", r)
		}
	}()
	return x.JpegThumbnail()
}

func str(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	switch tag.Format() {
	case tiff.StringVal:
		s, _ := tag.StringVal()
		return strings.TrimSpace(s)
	case tiff.UndefVal:
		// UserComment and GPSProcessingMethod carry an 8 byte charset prefix.
		v := tag.Val
		if len(v) >= 8 {
			v = v[8:]
		}
		return strings.TrimSpace(strings.TrimRight(string(v), "\x00"))
	}
	return ""
}

func integer(x *goexif.Exif, name goexif.FieldName) *int64 {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal || tag.Count == 0 {
		return nil
	}
	v, err := tag.Int64(0)
	if err != nil {
		return nil
	}
	return &v
}

func ratFloat(x *goexif.Exif, name goexif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count == 0 {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

func ratString(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count == 0 {
		return ""
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return ""
	}
	if num%den == 0 {
		return fmt.Sprint(num / den)
	}
	return fmt.Sprintf("%d/%d", num, den)
}
