// Package capi is a flat, handle based surface over wsio for foreign callers.
//
// Engines and frames are addressed by opaque handles. Engine calls return StatusBusy instead of waiting when
// another goroutine is operating the same engine. Callbacks registered with On may call back into their engine.
package capi

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/Mylifeismyhome/wsio"
	"github.com/Mylifeismyhome/wsio/codec/websocket"
)

type Status uint8

const (
	StatusOK Status = iota
	StatusError
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "status_ok"
	case StatusError:
		return "status_error"
	case StatusBusy:
		return "status_busy"
	default:
		return "status_unknown"
	}
}

// Handle addresses an engine or a frame. 0 is never a valid handle.
type Handle uint64

type engine struct {
	mu sync.Mutex
	e  *wsio.Engine

	// owner is the goroutine running one of the callbacks registered through On, 0 outside of callbacks.
	owner atomic.Uint64
}

// acquire locks en. Calls made from inside one of en's callbacks already run under the lock held by their own
// goroutine and proceed without it. Any other goroutine waits, or fails if wait is not set.
func (en *engine) acquire(wait bool) (release func(), ok bool) {
	if en.mu.TryLock() {
		return en.mu.Unlock, true
	}
	if owner := en.owner.Load(); owner != 0 && owner == goid() {
		return func() {}, true
	}
	if !wait {
		return nil, false
	}
	en.mu.Lock()
	return en.mu.Unlock, true
}

// enter marks the calling goroutine as the one running a callback until the returned func is called.
func (en *engine) enter() func() {
	prev := en.owner.Swap(goid())
	return func() { en.owner.Store(prev) }
}

// wrap marks the execution of cb so the engine can be called back from within it.
func (en *engine) wrap(cb any) any {
	switch fn := cb.(type) {
	case func(int, net.Addr):
		return func(fd int, addr net.Addr) {
			defer en.enter()()
			fn(fd, addr)
		}
	case func(int, websocket.Opcode, []byte):
		return func(fd int, opcode websocket.Opcode, payload []byte) {
			defer en.enter()()
			fn(fd, opcode, payload)
		}
	case func(int, websocket.CloseCode):
		return func(fd int, code websocket.CloseCode) {
			defer en.enter()()
			fn(fd, code)
		}
	case func(int, error):
		return func(fd int, err error) {
			defer en.enter()()
			fn(fd, err)
		}
	}
	return cb
}

var (
	engines = newTable[*engine]()
	frames  = newTable[*websocket.Frame]()
)

func statusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	return StatusError
}

// with runs fn on the engine behind h unless another goroutine holds it.
func with(h Handle, fn func(*wsio.Engine) error) Status {
	en, ok := engines.get(h)
	if !ok {
		return StatusError
	}
	release, ok := en.acquire(false)
	if !ok {
		return StatusBusy
	}
	defer release()
	return statusOf(fn(en.e))
}

func Create() Handle {
	return engines.add(&engine{e: wsio.New()})
}

func Setup(h Handle, settings wsio.Settings) Status {
	return with(h, func(e *wsio.Engine) error {
		return e.Setup(settings)
	})
}

func Bind(h Handle, ip, port string, fd *int) Status {
	return with(h, func(e *wsio.Engine) error {
		n, err := e.Bind(ip, port)
		if fd != nil {
			*fd = n
		}
		return err
	})
}

func Open(h Handle, host, port string, fd *int) Status {
	return with(h, func(e *wsio.Engine) error {
		n, err := e.Open(host, port)
		if fd != nil {
			*fd = n
		}
		return err
	})
}

// On registers cb for event. See wsio.Engine.On for the accepted callback types. The engine may be called from
// within cb.
func On(h Handle, event string, cb any) Status {
	en, ok := engines.get(h)
	if !ok {
		return StatusError
	}
	return with(h, func(e *wsio.Engine) error {
		return e.On(event, en.wrap(cb))
	})
}

// Operate runs one pass of the engine and reports whether it still manages descriptors. It waits for the engine
// if another goroutine holds it.
func Operate(h Handle) bool {
	en, ok := engines.get(h)
	if !ok {
		return false
	}
	release, _ := en.acquire(true)
	defer release()
	return en.e.Operate()
}

// Close closes fd on the engine, or every descriptor when fd is -1.
func Close(h Handle, fd int) {
	en, ok := engines.get(h)
	if !ok {
		return
	}
	release, _ := en.acquire(true)
	defer release()
	en.e.Close(fd)
}

// Destroy closes every descriptor of the engine and invalidates h.
func Destroy(h Handle) {
	en, ok := engines.remove(h)
	if !ok {
		return
	}
	release, _ := en.acquire(true)
	defer release()
	en.e.Destroy()
}

func FrameCreate(opcode websocket.Opcode) Handle {
	return frames.add(websocket.NewFrame(opcode))
}

func FrameMask(fh Handle, key uint32) {
	if f, ok := frames.get(fh); ok {
		f.Mask(key)
	}
}

func FramePush(fh Handle, data []byte) bool {
	f, ok := frames.get(fh)
	return ok && f.Push(data) == nil
}

func FrameFlush(fh Handle) {
	if f, ok := frames.get(fh); ok {
		f.Flush()
	}
}

// FrameEmit queues the frame behind fh on fd. The frame stays valid and may be emitted again.
func FrameEmit(h Handle, fd int, fh Handle) bool {
	f, ok := frames.get(fh)
	if !ok {
		return false
	}
	return with(h, func(e *wsio.Engine) error {
		return e.Emit(fd, f)
	}) == StatusOK
}

func FrameDestroy(fh Handle) {
	frames.remove(fh)
}
