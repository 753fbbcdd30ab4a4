package opengl

import (
	"errors"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// waitSlice bounds a single glClientWaitSync call; Wait loops until the sync
// object is signaled.
const waitSlice = uint64(100_000_000) // 100ms in ns

// Fence wraps a GL sync object inserted at submit.
type Fence struct {
	sync     uintptr
	signaled bool
}

// arm inserts a new sync object after the commands just replayed.
func (f *Fence) arm() {
	f.drop()
	f.sync = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	f.signaled = false
}

func (f *Fence) Wait() error {
	if f.signaled {
		return nil
	}
	if f.sync == 0 {
		return &gpu.Error{Op: "wait fence", Err: errors.New("fence was reset and never submitted")}
	}
	for {
		switch r := gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, waitSlice); r {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			f.drop()
			f.signaled = true
			return nil
		case gl.TIMEOUT_EXPIRED:
			continue
		default:
			return &gpu.Error{Op: "wait fence", Code: int(r), Err: check("wait fence")}
		}
	}
}

func (f *Fence) Reset() error {
	f.drop()
	f.signaled = false
	return nil
}

func (f *Fence) Release() { f.drop() }

func (f *Fence) drop() {
	if f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}

// semaphore orders nothing: one GL context executes in submission order.
type semaphore struct{}

func (semaphore) Release() {}
