// Package exif exposes image metadata reading as tizen.exif.
package exif

import (
	"context"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	exifsvc "github.com/wrtplugins/wrt/internal/platform/exif"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "exif"

// Install builds the exif object for env's page.
func Install(env *plugin.Env, reader *exifsvc.Reader) *goja.Object {
	obj := env.VM.NewObject()

	// getExifInfo(uri, successCallback(exifInfo), errorCallback?)
	_ = obj.Set("getExifInfo", func(call goja.FunctionCall) goja.Value {
		env.Check(access.ContentRead)
		uri, err := jsconv.String(call.Argument(0), "uri")
		env.Must(err)
		l := env.Callbacks(call.Argument(1), call.Argument(2))
		env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
			info, err := reader.Read(ctx, uri)
			if err != nil {
				return nil, err
			}
			return func(vm *goja.Runtime) ([]goja.Value, error) {
				return []goja.Value{infoObject(vm, info)}, nil
			}, nil
		})
		return goja.Undefined()
	})

	// saveExifInfo(exifInfo, successCallback?, errorCallback?)
	_ = obj.Set("saveExifInfo", func(call goja.FunctionCall) goja.Value {
		env.Check(access.ContentWrite)
		_, err := jsconv.Object(call.Argument(0), "exifInfo")
		env.Must(err)
		l := env.OptionalCallbacks(call.Argument(1), call.Argument(2))
		env.Fail(l, apierr.New(apierr.NotSupported, "writing EXIF metadata is not supported"))
		return goja.Undefined()
	})

	// getThumbnail(uri, successCallback(dataUri or null), errorCallback?)
	_ = obj.Set("getThumbnail", func(call goja.FunctionCall) goja.Value {
		env.Check(access.ContentRead)
		uri, err := jsconv.String(call.Argument(0), "uri")
		env.Must(err)
		l := env.Callbacks(call.Argument(1), call.Argument(2))
		env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
			dataURI, ok, err := reader.Thumbnail(ctx, uri)
			if err != nil {
				return nil, err
			}
			if !ok {
				return bridge.Args(nil), nil
			}
			return bridge.Args(dataURI), nil
		})
		return goja.Undefined()
	})

	return obj
}

func infoObject(vm *goja.Runtime, info exifsvc.Info) *goja.Object {
	o := vm.NewObject()
	str := func(key, s string) {
		if s == "" {
			_ = o.Set(key, goja.Null())
			return
		}
		_ = o.Set(key, s)
	}
	num := func(key string, ok bool, v any) {
		if !ok {
			_ = o.Set(key, goja.Null())
			return
		}
		_ = o.Set(key, v)
	}

	_ = o.Set("uri", info.URI)
	num("width", info.Width != nil, deref(info.Width))
	num("height", info.Height != nil, deref(info.Height))
	str("deviceMaker", info.DeviceMaker)
	str("deviceModel", info.DeviceModel)
	if info.OriginalTime != nil {
		_ = o.Set("originalTime", jsconv.NewDate(vm, *info.OriginalTime))
	} else {
		_ = o.Set("originalTime", goja.Null())
	}
	str("orientation", info.Orientation)
	num("fNumber", info.FNumber != nil, deref(info.FNumber))
	iso := make([]any, len(info.ISOSpeedRatings))
	for i, v := range info.ISOSpeedRatings {
		iso[i] = v
	}
	_ = o.Set("isoSpeedRatings", vm.NewArray(iso...))
	str("exposureTime", info.ExposureTime)
	num("exposureProgram", info.ExposureProgram != nil, deref(info.ExposureProgram))
	num("flash", info.Flash != nil, deref(info.Flash))
	num("focalLength", info.FocalLength != nil, deref(info.FocalLength))
	str("whiteBalance", info.WhiteBalance)
	if info.GPSLocation != nil {
		loc := vm.NewObject()
		_ = loc.Set("latitude", info.GPSLocation.Latitude)
		_ = loc.Set("longitude", info.GPSLocation.Longitude)
		_ = o.Set("gpsLocation", loc)
	} else {
		_ = o.Set("gpsLocation", goja.Null())
	}
	num("gpsAltitude", info.GPSAltitude != nil, deref(info.GPSAltitude))
	str("gpsProcessingMethod", info.GPSProcessingMethod)
	str("userComment", info.UserComment)
	return o
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
