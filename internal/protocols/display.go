package protocols

import (
	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/wire"
)

// DisplayErrorEvent is a fatal error reported by the compositor.
type DisplayErrorEvent struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

// Display is the wl_display singleton, always object 1.
type Display struct {
	wire.BaseProxy
	errorHandler func(DisplayErrorEvent)
}

// NewDisplay registers the display on ctx. It must be the first object.
func NewDisplay(ctx *wire.Context) *Display {
	d := &Display{}
	ctx.Register(d)
	return d
}

func (d *Display) Interface() *wire.Interface {
	return DisplayInterface
}

// SetErrorHandler observes protocol errors. The connection records the
// fault whether or not a handler is set.
func (d *Display) SetErrorHandler(f func(DisplayErrorEvent)) {
	d.errorHandler = f
}

// Sync asks the compositor for a callback that fires once every earlier
// request has been processed.
func (d *Display) Sync() (*Callback, error) {
	cb := &Callback{}
	d.Context().Register(cb)
	if err := d.Context().SendRequest(d, DisplaySync, cb); err != nil {
		d.Context().Unregister(cb)
		return nil, err
	}
	return cb, nil
}

func (d *Display) GetRegistry() (*Registry, error) {
	r := &Registry{}
	d.Context().Register(r)
	if err := d.Context().SendRequest(d, DisplayGetRegistry, r); err != nil {
		d.Context().Unregister(r)
		return nil, err
	}
	return r, nil
}

func (d *Display) Dispatch(ev *wire.Event) {
	switch ev.Opcode {
	case DisplayEventError:
		e := DisplayErrorEvent{
			ObjectID: ev.Uint32(),
			Code:     ev.Uint32(),
			Message:  ev.Str(),
		}
		if ev.Err() != nil {
			return
		}

		var iface *wire.Interface
		if obj := d.Context().Lookup(e.ObjectID); obj != nil {
			iface = obj.Interface()
		}
		logger.Debugf("Protocol error on %s@%d: code %d: %s", iface, e.ObjectID, e.Code, e.Message)

		d.Context().SetProtocolError(iface, e.ObjectID, e.Code, e.Message)
		if d.errorHandler != nil {
			d.errorHandler(e)
		}

	case DisplayEventDeleteID:
		id := ev.Uint32()
		if ev.Err() == nil {
			d.Context().DeleteID(id)
		}
	}
}

// RegistryGlobalEvent announces a global.
type RegistryGlobalEvent struct {
	Name      uint32
	Interface string
	Version   uint32
}

// RegistryGlobalRemoveEvent withdraws a global.
type RegistryGlobalRemoveEvent struct {
	Name uint32
}

// Registry is wl_registry.
type Registry struct {
	wire.BaseProxy
	globalHandler       func(RegistryGlobalEvent)
	globalRemoveHandler func(RegistryGlobalRemoveEvent)
}

func (r *Registry) Interface() *wire.Interface {
	return RegistryInterface
}

func (r *Registry) SetGlobalHandler(f func(RegistryGlobalEvent)) {
	r.globalHandler = f
}

func (r *Registry) SetGlobalRemoveHandler(f func(RegistryGlobalRemoveEvent)) {
	r.globalRemoveHandler = f
}

// Bind binds global name to the new proxy p at the given version.
func (r *Registry) Bind(name uint32, p wire.Proxy, version uint32) error {
	r.Context().Register(p)
	err := r.Context().SendRequest(r, RegistryBind, name, p.Interface().Name, version, p)
	if err != nil {
		r.Context().Unregister(p)
		return err
	}
	return nil
}

// Destroy releases the proxy; wl_registry has no destructor request.
func (r *Registry) Destroy() {
	r.Context().Unregister(r)
}

func (r *Registry) Dispatch(ev *wire.Event) {
	switch ev.Opcode {
	case RegistryEventGlobal:
		e := RegistryGlobalEvent{
			Name:      ev.Uint32(),
			Interface: ev.Str(),
			Version:   ev.Uint32(),
		}
		if ev.Err() == nil && r.globalHandler != nil {
			r.globalHandler(e)
		}

	case RegistryEventGlobalRemove:
		e := RegistryGlobalRemoveEvent{Name: ev.Uint32()}
		if ev.Err() == nil && r.globalRemoveHandler != nil {
			r.globalRemoveHandler(e)
		}
	}
}

// CallbackDoneEvent carries the callback data, a timestamp for frame
// callbacks and a serial for sync.
type CallbackDoneEvent struct {
	CallbackData uint32
}

// Callback is wl_callback. The compositor destroys it after done.
type Callback struct {
	wire.BaseProxy
	doneHandler func(CallbackDoneEvent)
}

func (c *Callback) Interface() *wire.Interface {
	return CallbackInterface
}

func (c *Callback) SetDoneHandler(f func(CallbackDoneEvent)) {
	c.doneHandler = f
}

// Destroy releases the proxy locally. A done event that is still in flight
// is discarded.
func (c *Callback) Destroy() {
	c.Context().Unregister(c)
}

func (c *Callback) Dispatch(ev *wire.Event) {
	if ev.Opcode != CallbackEventDone {
		return
	}
	e := CallbackDoneEvent{CallbackData: ev.Uint32()}
	if ev.Err() == nil && c.doneHandler != nil {
		c.doneHandler(e)
	}
}
