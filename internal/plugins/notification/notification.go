// Package notification exposes the notification tray as tizen.notification
// and the tizen.StatusNotification constructor.
package notification

import (
	"strconv"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/jsconv"
	notificationsvc "github.com/wrtplugins/wrt/internal/platform/notification"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "notification"

// ConstructorName is the tizen property holding the constructor.
const ConstructorName = "StatusNotification"

type module struct {
	env   *plugin.Env
	svc   *notificationsvc.Service
	proto *goja.Object
}

// Install builds the notification object and the StatusNotification
// constructor for env's page.
func Install(env *plugin.Env, svc *notificationsvc.Service) (obj *goja.Object, ctor *goja.Object) {
	m := &module{env: env, svc: svc}
	vm := env.VM

	ctor = vm.ToValue(m.construct).(*goja.Object)
	m.proto = ctor.Get("prototype").(*goja.Object)

	obj = vm.NewObject()
	_ = obj.Set("post", m.post)
	_ = obj.Set("update", m.update)
	_ = obj.Set("remove", m.remove)
	_ = obj.Set("removeAll", m.removeAll)
	_ = obj.Set("get", m.get)
	_ = obj.Set("getAll", m.getAll)
	return obj, ctor
}

func (m *module) appID() string {
	if m.env.Guard == nil {
		return ""
	}
	return m.env.Guard.App().ID
}

// new StatusNotification(statusType, title, notificationInitDict?)
func (m *module) construct(call goja.ConstructorCall) *goja.Object {
	env := m.env
	statusType, err := jsconv.Enum(call.Argument(0), "statusType", notificationsvc.StatusTypes)
	env.Must(err)
	title, err := jsconv.String(call.Argument(1), "title")
	env.Must(err)
	dict, err := jsconv.OptionalObject(call.Argument(2), "notificationInitDict")
	env.Must(err)

	n := notificationsvc.Notification{
		Type:         notificationsvc.StatusType(statusType),
		Title:        title,
		ProgressType: notificationsvc.Percentage,
	}
	if dict != nil {
		env.Must(m.read(dict, &n))
	}
	env.Must(n.Validate())
	m.write(call.This, n)
	return call.This
}

func (m *module) post(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Notification)
	obj, n := m.notificationArg(call.Argument(0))
	if n.ID != "" {
		env.Throw(apierr.New(apierr.InvalidValues, "notification %s is already posted", n.ID))
	}
	posted, err := m.svc.Post(m.appID(), n)
	env.Must(err)
	m.setReadOnly(obj, posted)
	return goja.Undefined()
}

func (m *module) update(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Notification)
	_, n := m.notificationArg(call.Argument(0))
	if n.ID == "" {
		env.Throw(apierr.New(apierr.InvalidValues, "notification has not been posted"))
	}
	env.Must(m.svc.Update(m.appID(), n))
	return goja.Undefined()
}

func (m *module) remove(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Notification)
	id, err := jsconv.String(call.Argument(0), "id")
	env.Must(err)
	env.Must(m.svc.Remove(m.appID(), id))
	return goja.Undefined()
}

func (m *module) removeAll(goja.FunctionCall) goja.Value {
	m.env.Check(access.Notification)
	m.svc.RemoveAll(m.appID())
	return goja.Undefined()
}

func (m *module) get(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Notification)
	id, err := jsconv.String(call.Argument(0), "id")
	env.Must(err)
	n, err := m.svc.Get(m.appID(), id)
	env.Must(err)
	return m.toObject(n)
}

func (m *module) getAll(goja.FunctionCall) goja.Value {
	m.env.Check(access.Notification)
	all := m.svc.GetAll(m.appID())
	out := make([]any, len(all))
	for i, n := range all {
		out[i] = m.toObject(n)
	}
	return m.env.VM.NewArray(out...)
}

func (m *module) notificationArg(v goja.Value) (*goja.Object, notificationsvc.Notification) {
	env := m.env
	obj, err := jsconv.Object(v, "notification")
	env.Must(err)
	var n notificationsvc.Notification
	statusType, err := jsconv.Enum(obj.Get("statusType"), "statusType", notificationsvc.StatusTypes)
	env.Must(err)
	n.Type = notificationsvc.StatusType(statusType)
	n.Title, err = jsconv.String(obj.Get("title"), "title")
	env.Must(err)
	env.Must(m.read(obj, &n))
	if id, ok, _ := jsconv.OptionalString(obj.Get("id"), "id"); ok {
		n.ID = id
	}
	return obj, n
}

func (m *module) toObject(n notificationsvc.Notification) *goja.Object {
	obj := m.env.VM.CreateObject(m.proto)
	m.write(obj, n)
	m.setReadOnly(obj, n)
	return obj
}

// read copies the optional dictionary members of obj into n.
func (m *module) read(obj *goja.Object, n *notificationsvc.Notification) error {
	var err error
	optString := func(key string, dst *string) {
		if err != nil {
			return
		}
		if s, ok, e := jsconv.OptionalString(obj.Get(key), key); e != nil {
			err = e
		} else if ok {
			*dst = s
		}
	}
	optInt := func(key string, dst *int64) {
		if err != nil {
			return
		}
		if v := obj.Get(key); !jsconv.IsNullish(v) {
			*dst, err = jsconv.Int(v, key)
		}
	}

	optString("content", &n.Content)
	optString("iconPath", &n.IconPath)
	optString("soundPath", &n.SoundPath)
	optString("subIconPath", &n.SubIconPath)
	optString("ledColor", &n.LEDColor)
	optString("backgroundImagePath", &n.BackgroundImagePath)
	optInt("progressValue", &n.ProgressValue)
	optInt("number", &n.Number)
	optInt("ledOnPeriod", &n.LEDOnPeriod)
	optInt("ledOffPeriod", &n.LEDOffPeriod)
	if err != nil {
		return err
	}
	if v := obj.Get("vibration"); !jsconv.IsNullish(v) {
		n.Vibration = v.ToBoolean()
	}
	if v := obj.Get("progressType"); !jsconv.IsNullish(v) {
		pt, err := jsconv.Enum(v, "progressType", notificationsvc.ProgressTypes)
		if err != nil {
			return err
		}
		n.ProgressType = notificationsvc.ProgressType(pt)
	}
	if v := obj.Get("thumbnails"); !jsconv.IsNullish(v) {
		if n.Thumbnails, err = jsconv.StringArray(m.env.VM, v, "thumbnails"); err != nil {
			return err
		}
	}
	if v := obj.Get("detailInfo"); !jsconv.IsNullish(v) {
		if n.Details, err = m.readDetails(v); err != nil {
			return err
		}
	}
	return nil
}

func (m *module) readDetails(v goja.Value) ([]notificationsvc.Detail, error) {
	arr, err := jsconv.Object(v, "detailInfo")
	if err != nil {
		return nil, err
	}
	length := jsconv.Field(arr, "length").ToInteger()
	out := make([]notificationsvc.Detail, 0, length)
	for i := int64(0); i < length; i++ {
		item, err := jsconv.Object(arr.Get(strconv.FormatInt(i, 10)), "detailInfo item")
		if err != nil {
			return nil, err
		}
		var d notificationsvc.Detail
		if d.MainText, err = jsconv.String(item.Get("mainText"), "mainText"); err != nil {
			return nil, err
		}
		if s, ok, _ := jsconv.OptionalString(item.Get("subText"), "subText"); ok {
			d.SubText = s
		}
		out = append(out, d)
	}
	return out, nil
}

// write sets every writable member of obj from n.
func (m *module) write(obj *goja.Object, n notificationsvc.Notification) {
	vm := m.env.VM
	nullable := func(s string) goja.Value {
		if s == "" {
			return goja.Null()
		}
		return vm.ToValue(s)
	}
	_ = obj.Set("statusType", string(n.Type))
	_ = obj.Set("title", n.Title)
	_ = obj.Set("content", nullable(n.Content))
	_ = obj.Set("iconPath", nullable(n.IconPath))
	_ = obj.Set("soundPath", nullable(n.SoundPath))
	_ = obj.Set("vibration", n.Vibration)
	_ = obj.Set("progressType", string(n.ProgressType))
	_ = obj.Set("progressValue", n.ProgressValue)
	_ = obj.Set("number", n.Number)
	_ = obj.Set("subIconPath", nullable(n.SubIconPath))
	_ = obj.Set("ledColor", nullable(n.LEDColor))
	_ = obj.Set("ledOnPeriod", n.LEDOnPeriod)
	_ = obj.Set("ledOffPeriod", n.LEDOffPeriod)
	_ = obj.Set("backgroundImagePath", nullable(n.BackgroundImagePath))

	thumbs := make([]any, len(n.Thumbnails))
	for i, s := range n.Thumbnails {
		thumbs[i] = s
	}
	_ = obj.Set("thumbnails", vm.NewArray(thumbs...))

	details := make([]any, len(n.Details))
	for i, d := range n.Details {
		o := vm.NewObject()
		_ = o.Set("mainText", d.MainText)
		_ = o.Set("subText", nullable(d.SubText))
		details[i] = o
	}
	_ = obj.Set("detailInfo", vm.NewArray(details...))
}

// setReadOnly defines the members assigned by the platform on posting.
func (m *module) setReadOnly(obj *goja.Object, n notificationsvc.Notification) {
	if n.ID == "" {
		return
	}
	_ = obj.DefineDataProperty("id", m.env.VM.ToValue(n.ID), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.DefineDataProperty("postedTime", jsconv.NewDate(m.env.VM, n.PostedTime), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
