package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceUnavailable is returned when the audio input device cannot be
// acquired: permission denied, no device, or already held.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Device is an exclusive audio input. Between Acquire and Release the capture
// session owns it; no other component may read from it concurrently.
type Device interface {
	Acquire(ctx context.Context) error
	Release()
}

// Uplink is the browser microphone uplink: the client captures audio and
// pushes chunks over HTTP while the uplink is held. The uplink itself only
// enforces exclusive ownership.
type Uplink struct {
	mu   sync.Mutex
	held bool
}

// NewUplink creates an unheld uplink.
func NewUplink() *Uplink {
	return &Uplink{}
}

func (u *Uplink) Acquire(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.held {
		return fmt.Errorf("%w: uplink already in use", ErrDeviceUnavailable)
	}
	u.held = true
	return nil
}

func (u *Uplink) Release() {
	u.mu.Lock()
	u.held = false
	u.mu.Unlock()
}
