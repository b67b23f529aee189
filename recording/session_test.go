package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeDevice struct {
	acquireErr error
	acquired   int
	released   int
}

func (d *fakeDevice) Acquire(ctx context.Context) error {
	if d.acquireErr != nil {
		return d.acquireErr
	}
	d.acquired++
	return nil
}

func (d *fakeDevice) Release() { d.released++ }

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(device Device) (*Session, *fakeClock) {
	s := NewSession(device)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.SetClock(clock.Now)
	return s, clock
}

func TestStartStopMeasuresDuration(t *testing.T) {
	device := &fakeDevice{}
	s, clock := newTestSession(device)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StateCapturing {
		t.Fatalf("state = %s, want %s", got, StateCapturing)
	}

	if err := s.Append([]byte("abc"), "audio/webm"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append([]byte("def"), ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	clock.Advance(2500 * time.Millisecond)
	take, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if take == nil {
		t.Fatal("Stop returned no take")
	}
	if !bytes.Equal(take.Audio, []byte("abcdef")) {
		t.Fatalf("audio = %q, want chunks joined in order", take.Audio)
	}
	if take.Duration != 2.5 {
		t.Fatalf("duration = %v, want 2.5", take.Duration)
	}
	if take.MIMEType != "audio/webm" {
		t.Fatalf("mime = %q", take.MIMEType)
	}
	if device.released != 1 {
		t.Fatalf("device released %d times, want 1", device.released)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state after stop = %s, want %s", got, StateIdle)
	}
}

func TestImmediateStopHasZeroDuration(t *testing.T) {
	s, _ := newTestSession(&fakeDevice{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	take, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if take.Duration != 0 {
		t.Fatalf("duration = %v, want 0", take.Duration)
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	device := &fakeDevice{}
	s, _ := newTestSession(device)

	take, err := s.Stop()
	if err != nil || take != nil {
		t.Fatalf("Stop while idle = (%v, %v), want (nil, nil)", take, err)
	}
	if device.released != 0 {
		t.Fatal("device released without being acquired")
	}
}

func TestStartWhileCapturingIsIgnored(t *testing.T) {
	device := &fakeDevice{}
	s, _ := newTestSession(device)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if device.acquired != 1 {
		t.Fatalf("device acquired %d times, want 1", device.acquired)
	}
}

func TestDeviceFailureLeavesSessionIdle(t *testing.T) {
	device := &fakeDevice{acquireErr: fmt.Errorf("%w: permission denied", ErrDeviceUnavailable)}
	s, _ := newTestSession(device)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}
}

func TestStartWrapsAnyAcquireFailureInSentinel(t *testing.T) {
	// A device does not have to return the sentinel itself for callers to
	// match on it.
	device := &fakeDevice{acquireErr: errors.New("usb bus reset")}
	s, _ := newTestSession(device)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}
}

func TestAppendWhileIdleRejected(t *testing.T) {
	s, _ := newTestSession(&fakeDevice{})

	if err := s.Append([]byte("stray"), "audio/webm"); err == nil {
		t.Fatal("Append while idle succeeded, want error")
	}
}

func TestUplinkExclusiveOwnership(t *testing.T) {
	uplink := NewUplink()

	if err := uplink.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := uplink.Acquire(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("second Acquire = %v, want ErrDeviceUnavailable", err)
	}

	uplink.Release()
	if err := uplink.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestAbortReleasesDevice(t *testing.T) {
	device := &fakeDevice{}
	s, _ := newTestSession(device)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Abort()
	if device.released != 1 {
		t.Fatalf("device released %d times, want 1", device.released)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}
}
