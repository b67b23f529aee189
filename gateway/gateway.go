package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sreyaes/DubMaster/models"
)

// Gateway wraps every external AI capability behind uniform asynchronous calls.
// The degrade-gracefully calls (transcription, feedback) never return errors;
// they fall back to empty/stock results so a provider hiccup cannot abort the
// recording flow. Script generation and the video jobs surface classified
// errors for the orchestrator to translate.
type Gateway interface {
	// GenerateScript writes a short scene for the prompt in the given
	// language. The scene has no media fields yet.
	GenerateScript(ctx context.Context, prompt, language string) (*models.Scene, error)

	// GenerateConceptImage renders a concept frame for the scene. An empty
	// URL (with nil error) means the provider returned no image; this never
	// blocks the pipeline.
	GenerateConceptImage(ctx context.Context, title, sceneContext string) (string, error)

	// GenerateSceneVideo submits a video job seeded with the concept image
	// (when present) and polls it to completion. An empty URL means the
	// finished job yielded no media.
	GenerateSceneVideo(ctx context.Context, prompt, seedImageURL string) (string, error)

	// GenerateLipSyncVideo re-renders the base video with mouth motion
	// matched to the transcript, preserving visual identity. Elevated-access
	// provider refusals are reported as KindQuota.
	GenerateLipSyncVideo(ctx context.Context, baseVideoURL, transcript, sceneContext string) (string, error)

	// TranscribeAudio converts a finalized take to text. Returns "" on any
	// failure.
	TranscribeAudio(ctx context.Context, audio []byte, mimeType string) string

	// SynthesizeReferenceAudio returns raw s16le PCM at 24 kHz mono for one
	// dialogue line, or nil on failure.
	SynthesizeReferenceAudio(ctx context.Context, text, voiceID string) ([]byte, error)

	// RequestDirectorFeedback always returns usable feedback text, falling
	// back to a stock encouragement if the provider fails.
	RequestDirectorFeedback(ctx context.Context, scene *models.Scene, duration float64, transcript string) string
}

// Kind classifies a capability failure. The orchestrator switches on kinds,
// never on provider message text.
type Kind string

const (
	// KindGeneration means the provider answered but its output could not be
	// parsed into the expected structure.
	KindGeneration Kind = "generation"

	// KindProvider means a transport, auth, or provider-side failure.
	KindProvider Kind = "provider"

	// KindQuota means the provider refused because the capability needs an
	// elevated-access credential.
	KindQuota Kind = "quota"
)

// Error is a classified capability failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to KindProvider for
// unclassified errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindProvider
}

// pollUntilDone calls poll on a fixed interval until it reports done, fails,
// or ctx is cancelled. Video jobs may take arbitrarily many cycles.
func pollUntilDone(ctx context.Context, interval time.Duration, poll func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := poll(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
