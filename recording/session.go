package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State models the capture lifecycle: Idle -> Capturing -> Idle.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
)

// Take is one finalized recording: the audio artifact, its measured duration
// in seconds, and the instant capture stopped.
type Take struct {
	Audio     []byte
	MIMEType  string
	Duration  float64
	StoppedAt time.Time
}

// Session owns the microphone capture lifecycle: acquire the device, buffer
// chunks in order, finalize exactly once into a Take, and release the device
// on every exit path.
type Session struct {
	mu        sync.Mutex
	state     State
	device    Device
	clock     func() time.Time
	chunks    [][]byte
	mimeType  string
	startedAt time.Time
}

// NewSession creates an idle capture session over device.
func NewSession(device Device) *Session {
	return &Session{
		state:  StateIdle,
		device: device,
		clock:  time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Session) SetClock(clock func() time.Time) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// State returns the current capture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start acquires the device and opens a fresh capture buffer. Starting while
// already capturing is ignored. Device acquisition is the only failure mode;
// it is wrapped in ErrDeviceUnavailable and leaves the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCapturing {
		return nil
	}

	if err := s.device.Acquire(ctx); err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return fmt.Errorf("acquire audio device: %w", err)
	}

	s.state = StateCapturing
	s.chunks = nil
	s.mimeType = ""
	s.startedAt = s.clock()
	return nil
}

// Append adds one captured chunk to the ordered buffer. Chunks arriving while
// the session is idle are rejected.
func (s *Session) Append(chunk []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return fmt.Errorf("no recording in progress")
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.chunks = append(s.chunks, buf)
	if s.mimeType == "" && mimeType != "" {
		s.mimeType = mimeType
	}
	return nil
}

// Stop finalizes the buffer into a single Take, computes the duration as the
// wall-clock delta since Start, and releases the device. Stop while idle is a
// no-op returning nil.
func (s *Session) Stop() (*Take, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return nil, nil
	}

	defer s.device.Release()
	s.state = StateIdle

	stoppedAt := s.clock()
	total := 0
	for _, c := range s.chunks {
		total += len(c)
	}
	audio := make([]byte, 0, total)
	for _, c := range s.chunks {
		audio = append(audio, c...)
	}
	s.chunks = nil

	mimeType := s.mimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	return &Take{
		Audio:     audio,
		MIMEType:  mimeType,
		Duration:  stoppedAt.Sub(s.startedAt).Seconds(),
		StoppedAt: stoppedAt,
	}, nil
}

// Abort discards any in-progress capture and releases the device. Used when a
// session is torn down mid-recording.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return
	}
	s.state = StateIdle
	s.chunks = nil
	s.device.Release()
}
