// Package exiftest builds small JPEG files carrying EXIF metadata.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Image describes the metadata to encode. Zero fields are omitted.
type Image struct {
	Make, Model string
	Orientation uint16
	DateTime    string // "2006:01:02 15:04:05"
	Width       uint32
	Height      uint32
	ExposureNum uint32
	ExposureDen uint32
	ISO         uint16
	Flash       bool
	Latitude    float64
	Longitude   float64
	Thumbnail   []byte
}

const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	exifPointer = 0x8769
	gpsPointer  = 0x8825
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

func ascii(tag uint16, s string) entry {
	return entry{tag: tag, typ: typeASCII, count: uint32(len(s) + 1), data: append([]byte(s), 0)}
}

func short(tag, v uint16) entry {
	return entry{tag: tag, typ: typeShort, count: 1, data: le.AppendUint16(nil, v)}
}

func long(tag uint16, v uint32) entry {
	return entry{tag: tag, typ: typeLong, count: 1, data: le.AppendUint32(nil, v)}
}

func rationals(tag uint16, pairs ...uint32) entry {
	var b []byte
	for _, v := range pairs {
		b = le.AppendUint32(b, v)
	}
	return entry{tag: tag, typ: typeRational, count: uint32(len(pairs) / 2), data: b}
}

// degrees encodes v as degrees, minutes and hundredths of seconds.
func degrees(tag uint16, v float64) entry {
	v = math.Abs(v)
	d := math.Floor(v)
	m := math.Floor((v - d) * 60)
	s := math.Round(((v-d)*60 - m) * 60 * 100)
	return rationals(tag, uint32(d), 1, uint32(m), 1, uint32(s), 100)
}

func ifdSize(entries []entry) uint32 {
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			size += uint32(len(e.data)+1) &^ 1
		}
	}
	return size
}

func encodeIFD(entries []entry, at, next uint32) []byte {
	var head, data bytes.Buffer
	dataAt := at + uint32(2+12*len(entries)+4)
	head.Write(le.AppendUint16(nil, uint16(len(entries))))
	for _, e := range entries {
		head.Write(le.AppendUint16(nil, e.tag))
		head.Write(le.AppendUint16(nil, e.typ))
		head.Write(le.AppendUint32(nil, e.count))
		if len(e.data) <= 4 {
			var v [4]byte
			copy(v[:], e.data)
			head.Write(v[:])
			continue
		}
		head.Write(le.AppendUint32(nil, dataAt+uint32(data.Len())))
		data.Write(e.data)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	head.Write(le.AppendUint32(nil, next))
	return append(head.Bytes(), data.Bytes()...)
}

// TIFF returns the little endian TIFF block holding img's metadata.
func TIFF(img Image) []byte {
	var ifd0, sub, gps, ifd1 []entry
	if img.Make != "" {
		ifd0 = append(ifd0, ascii(0x010F, img.Make))
	}
	if img.Model != "" {
		ifd0 = append(ifd0, ascii(0x0110, img.Model))
	}
	if img.Orientation != 0 {
		ifd0 = append(ifd0, short(0x0112, img.Orientation))
	}
	if img.DateTime != "" {
		ifd0 = append(ifd0, ascii(0x0132, img.DateTime))
	}
	if img.ExposureDen != 0 {
		sub = append(sub, rationals(0x829A, img.ExposureNum, img.ExposureDen))
	}
	if img.ISO != 0 {
		sub = append(sub, short(0x8827, img.ISO))
	}
	if img.Flash {
		sub = append(sub, short(0x9209, 1))
	}
	if img.Width != 0 {
		sub = append(sub, long(0xA002, img.Width))
	}
	if img.Height != 0 {
		sub = append(sub, long(0xA003, img.Height))
	}
	if img.Latitude != 0 || img.Longitude != 0 {
		ns, ew := "N", "E"
		if img.Latitude < 0 {
			ns = "S"
		}
		if img.Longitude < 0 {
			ew = "W"
		}
		gps = []entry{
			ascii(0x1, ns), degrees(0x2, img.Latitude),
			ascii(0x3, ew), degrees(0x4, img.Longitude),
		}
	}
	if len(sub) > 0 {
		ifd0 = append(ifd0, long(exifPointer, 0))
	}
	if len(gps) > 0 {
		ifd0 = append(ifd0, long(gpsPointer, 0))
	}
	if len(img.Thumbnail) > 0 {
		ifd1 = []entry{long(0x0201, 0), long(0x0202, uint32(len(img.Thumbnail)))}
	}

	at0 := uint32(8)
	atSub := at0 + ifdSize(ifd0)
	atGPS := atSub
	if len(sub) > 0 {
		atGPS += ifdSize(sub)
	}
	at1 := atGPS
	if len(gps) > 0 {
		at1 += ifdSize(gps)
	}
	atThumb := at1
	if len(ifd1) > 0 {
		atThumb += ifdSize(ifd1)
		ifd1[0] = long(0x0201, atThumb)
	}
	for i, e := range ifd0 {
		switch e.tag {
		case exifPointer:
			ifd0[i] = long(exifPointer, atSub)
		case gpsPointer:
			ifd0[i] = long(gpsPointer, atGPS)
		}
	}

	var next0 uint32
	if len(ifd1) > 0 {
		next0 = at1
	}
	out := []byte("II*\x00")
	out = le.AppendUint32(out, at0)
	out = append(out, encodeIFD(ifd0, at0, next0)...)
	if len(sub) > 0 {
		out = append(out, encodeIFD(sub, atSub, 0)...)
	}
	if len(gps) > 0 {
		out = append(out, encodeIFD(gps, atGPS, 0)...)
	}
	if len(ifd1) > 0 {
		out = append(out, encodeIFD(ifd1, at1, 0)...)
		out = append(out, img.Thumbnail...)
	}
	return out
}

// JPEG returns a JPEG stream whose APP1 segment holds img's metadata.
func JPEG(img Image) []byte {
	payload := append([]byte("Exif\x00\x00"), TIFF(img)...)
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, 0xFF, 0xD9)
}

// Write stores JPEG(img) as name in a temporary directory and returns its
// path.
func Write(t testing.TB, name string, img Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, JPEG(img), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
