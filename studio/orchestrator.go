package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/Sreyaes/DubMaster/gateway"
	"github.com/Sreyaes/DubMaster/models"
	"github.com/Sreyaes/DubMaster/recording"
	"github.com/Sreyaes/DubMaster/tasks"
)

// ErrRefused means a command was rejected by a state guard: wrong phase,
// empty prompt, or missing lip-sync preconditions. Refusals are silent at the
// state level; no alert is raised and nothing transitions.
var ErrRefused = errors.New("command refused")

func refused(reason string) error {
	return fmt.Errorf("%w: %s", ErrRefused, reason)
}

// Enqueuer hands accepted long-running commands to the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload interface{}) error
}

// Notifier publishes state snapshots for observers. Implementations must not
// fail the calling flow; publish errors are logged and swallowed.
type Notifier interface {
	Publish(ctx context.Context, sessionID string, snap Snapshot)
}

// Orchestrator is the single source of truth for one session's phase and
// status text. It drives the production sequence (script, concept image,
// optional video), the capture flow (record, transcribe, feedback), and the
// follow-on lip-sync flow. Commands transition the phase and enqueue work;
// the worker calls the Run methods, which settle the phase. No other
// component transitions the phase.
type Orchestrator struct {
	sessionID string
	store     *Store
	gw        gateway.Gateway
	rec       *recording.Session
	queue     Enqueuer
	notifier  Notifier

	mu          sync.Mutex
	phase       Phase
	statusLabel string
	alert       *Alert
	revertPhase Phase
	currentJob  *jobHandle
}

// jobHandle lets a new command abandon a stale provider poll loop.
type jobHandle struct {
	cancel context.CancelFunc
}

// NewOrchestrator creates an idle orchestrator for one session.
func NewOrchestrator(sessionID string, store *Store, gw gateway.Gateway, rec *recording.Session, queue Enqueuer, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		sessionID: sessionID,
		store:     store,
		gw:        gw,
		rec:       rec,
		queue:     queue,
		notifier:  notifier,
		phase:     PhaseIdle,
	}
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Snapshot assembles the current state view for the presentation layer.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	phase, label := o.phase, o.statusLabel
	var alert *Alert
	if o.alert != nil {
		a := *o.alert
		alert = &a
	}
	o.mu.Unlock()

	return Snapshot{
		Phase:           phase,
		StatusLabel:     label,
		Scene:           o.store.Scene(),
		Performance:     o.store.PerformanceView(),
		Feedback:        o.store.Feedback(),
		ShowSyncedVideo: o.store.ShowSynced(),
		Alert:           alert,
	}
}

// SubmitProduction starts a new production for the prompt. Guard: the prompt
// must be non-empty after trimming and no other top-level operation may be in
// flight. Accepting a production clears the previous performance, feedback,
// and view toggle, cancels any stale video poll, and hands the pipeline to
// the worker.
func (o *Orchestrator) SubmitProduction(ctx context.Context, prompt, language string, includeVideo bool) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return refused("prompt is empty")
	}

	o.mu.Lock()
	if o.phase != PhaseIdle && o.phase != PhaseReady {
		phase := o.phase
		o.mu.Unlock()
		return refused(fmt.Sprintf("cannot start a production while %s", phase))
	}
	if o.currentJob != nil {
		o.currentJob.cancel()
		o.currentJob = nil
	}
	o.revertPhase = o.phase
	o.phase = PhaseCreatingScene
	o.statusLabel = labelWritingScript
	o.alert = nil
	o.mu.Unlock()

	o.store.ResetSecondaryFlow()

	payload := tasks.ProductionTaskPayload{
		SessionID:    o.sessionID,
		Prompt:       prompt,
		Language:     language,
		IncludeVideo: includeVideo,
	}
	if err := o.queue.Enqueue(ctx, tasks.QueueProduction, payload); err != nil {
		o.settle(ctx, o.revertOn(), &Alert{Code: AlertProvider, Message: msgProviderFailure})
		return fmt.Errorf("queue production: %w", err)
	}

	o.publish(ctx)
	return nil
}

// RunProduction executes one production attempt: script, concept image, and
// (when requested) the scene video, strictly in that order. Script failure is
// fatal to the attempt and restores the pre-attempt phase; image and video
// failures degrade gracefully and never abort the flow.
func (o *Orchestrator) RunProduction(ctx context.Context, prompt, language string, includeVideo bool) {
	ctx, job := o.beginJob(ctx)
	defer o.endJob(job)

	scene, err := o.gw.GenerateScript(ctx, prompt, language)
	if err != nil {
		log.Printf("Session %s: script generation failed: %v", o.sessionID, err)
		alert := &Alert{Code: AlertGeneration, Message: msgGenerationFailure}
		if gateway.KindOf(err) == gateway.KindProvider {
			alert = &Alert{Code: AlertProvider, Message: msgProviderFailure}
		}
		o.settle(ctx, o.revertOn(), alert)
		return
	}
	o.store.ReplaceScene(scene)
	log.Printf("Session %s: scene %q written (%d lines)", o.sessionID, scene.Title, len(scene.Dialogue))

	o.setLabel(ctx, labelDesigningFrames)
	imageURL, err := o.gw.GenerateConceptImage(ctx, scene.Title, scene.Context)
	if err != nil {
		log.Printf("Session %s: concept image failed, continuing without: %v", o.sessionID, err)
	} else if imageURL != "" {
		o.store.SetSceneImage(imageURL)
	}

	if includeVideo {
		o.setLabel(ctx, labelRenderingVideo)
		videoURL, err := o.gw.GenerateSceneVideo(ctx, prompt, imageURL)
		if err != nil {
			log.Printf("Session %s: scene video failed, continuing without: %v", o.sessionID, err)
		} else if videoURL != "" {
			o.store.SetSceneVideo(videoURL)
		}
	}

	o.settle(ctx, PhaseReady, nil)
}

// BeginRecording hands the microphone to the recording session. On device
// failure the phase returns to ready and a device alert is surfaced;
// recording is not retried automatically.
func (o *Orchestrator) BeginRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseReady {
		phase := o.phase
		o.mu.Unlock()
		return refused(fmt.Sprintf("cannot record while %s", phase))
	}
	// Claim the phase before touching the device so no concurrent command
	// can pass its guard while acquisition is in progress.
	o.phase = PhaseRecording
	o.alert = nil
	o.mu.Unlock()

	if err := o.rec.Start(ctx); err != nil {
		o.mu.Lock()
		o.phase = PhaseReady
		o.alert = &Alert{Code: AlertDevice, Message: msgDeviceFailure}
		o.mu.Unlock()
		o.publish(ctx)
		return err
	}

	o.publish(ctx)
	return nil
}

// AppendAudio buffers one captured chunk from the uplink.
func (o *Orchestrator) AppendAudio(chunk []byte, mimeType string) error {
	return o.rec.Append(chunk, mimeType)
}

// EndRecording finalizes the take into a new Performance (discarding the
// previous one and its feedback) and queues transcription plus feedback.
func (o *Orchestrator) EndRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseRecording {
		phase := o.phase
		o.mu.Unlock()
		return refused(fmt.Sprintf("no recording in progress while %s", phase))
	}
	o.phase = PhaseAnalyzingPerformance
	o.statusLabel = labelReviewingTake
	o.mu.Unlock()

	take, err := o.rec.Stop()
	if err != nil || take == nil {
		o.settle(ctx, PhaseReady, nil)
		return err
	}

	o.store.ReplacePerformance(&models.Performance{
		Audio:     take.Audio,
		MIMEType:  take.MIMEType,
		Duration:  take.Duration,
		Timestamp: take.StoppedAt,
	})

	payload := tasks.AnalysisTaskPayload{SessionID: o.sessionID}
	if err := o.queue.Enqueue(ctx, tasks.QueuePerformanceAnalysis, payload); err != nil {
		// The take itself is valid; only the derived transcript is lost.
		o.settle(ctx, PhaseReady, &Alert{Code: AlertProvider, Message: msgProviderFailure})
		return fmt.Errorf("queue performance analysis: %w", err)
	}

	o.publish(ctx)
	return nil
}

// RunAnalysis transcribes the current take and, when a scene is present,
// requests director feedback on it. An empty transcript is valid; the phase
// always settles back to ready.
func (o *Orchestrator) RunAnalysis(ctx context.Context) {
	audio, mimeType, ok := o.store.PerformanceAudio()
	if !ok {
		o.settle(ctx, PhaseReady, nil)
		return
	}

	transcript := o.gw.TranscribeAudio(ctx, audio, mimeType)
	o.store.SetTranscription(transcript)
	log.Printf("Session %s: take transcribed to %d characters", o.sessionID, len(transcript))

	if scene := o.store.Scene(); scene != nil {
		feedback := o.gw.RequestDirectorFeedback(ctx, scene, o.store.PerformanceDuration(), transcript)
		o.store.SetFeedback(feedback)
	}

	o.settle(ctx, PhaseReady, nil)
}

// RequestLipSync re-renders the scene video against the recorded transcript.
// Guard: the session must be ready with a rendered video and a non-empty
// transcript; otherwise the command is silently refused.
func (o *Orchestrator) RequestLipSync(ctx context.Context) error {
	// Guard and transition happen in one critical section so the phase
	// cannot move between them.
	o.mu.Lock()
	if o.phase != PhaseReady {
		phase := o.phase
		o.mu.Unlock()
		return refused(fmt.Sprintf("cannot lip-sync while %s", phase))
	}
	scene := o.store.Scene()
	if scene == nil || scene.VideoURL == "" {
		o.mu.Unlock()
		return refused("no scene video to re-render")
	}
	if o.store.Transcription() == "" {
		o.mu.Unlock()
		return refused("no transcript for the current take")
	}
	o.phase = PhaseSyncingLipMovement
	o.statusLabel = labelSyncingLips
	o.alert = nil
	o.mu.Unlock()

	payload := tasks.LipSyncTaskPayload{SessionID: o.sessionID}
	if err := o.queue.Enqueue(ctx, tasks.QueueLipSync, payload); err != nil {
		o.settle(ctx, PhaseReady, &Alert{Code: AlertProvider, Message: msgProviderFailure})
		return fmt.Errorf("queue lip sync: %w", err)
	}

	o.publish(ctx)
	return nil
}

// RunLipSync executes the lip-sync job. Success sets the synced video and
// flips the view toggle to it; failure leaves the scene untouched and raises
// a quota alert when the provider signals an elevated-access refusal. The
// phase always settles back to ready.
func (o *Orchestrator) RunLipSync(ctx context.Context) {
	ctx, job := o.beginJob(ctx)
	defer o.endJob(job)

	scene := o.store.Scene()
	transcript := o.store.Transcription()
	if scene == nil || scene.VideoURL == "" || transcript == "" {
		o.settle(ctx, PhaseReady, nil)
		return
	}

	url, err := o.gw.GenerateLipSyncVideo(ctx, scene.VideoURL, transcript, scene.Context)
	if err != nil {
		log.Printf("Session %s: lip sync failed: %v", o.sessionID, err)
		alert := &Alert{Code: AlertProvider, Message: msgProviderFailure}
		if gateway.KindOf(err) == gateway.KindQuota {
			alert = &Alert{Code: AlertQuota, Message: msgQuotaFailure}
		}
		o.settle(ctx, PhaseReady, alert)
		return
	}
	if url == "" {
		log.Printf("Session %s: lip sync job yielded no media", o.sessionID)
		o.settle(ctx, PhaseReady, &Alert{Code: AlertProvider, Message: msgProviderFailure})
		return
	}

	o.store.SetSyncedVideo(url)
	o.store.SetShowSynced(true)
	o.settle(ctx, PhaseReady, nil)
}

// ToggleVideoVariant switches between the original and synced renders. Valid
// only once a synced render exists; view-only, no phase transition.
func (o *Orchestrator) ToggleVideoVariant(ctx context.Context, synced bool) error {
	scene := o.store.Scene()
	if scene == nil || scene.SyncedVideoURL == "" {
		return refused("no synced video to toggle")
	}
	o.store.SetShowSynced(synced)
	o.publish(ctx)
	return nil
}

// PerformanceAudio returns the current take's audio for playback.
func (o *Orchestrator) PerformanceAudio() ([]byte, string, bool) {
	return o.store.PerformanceAudio()
}

// SynthesizeReference produces reference TTS audio for one dialogue line,
// independent of production state.
func (o *Orchestrator) SynthesizeReference(ctx context.Context, text, voiceID string) ([]byte, error) {
	return o.gw.SynthesizeReferenceAudio(ctx, text, voiceID)
}

// Close cancels any in-flight provider polling and releases the capture
// device. Called when the session is evicted.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.currentJob != nil {
		o.currentJob.cancel()
		o.currentJob = nil
	}
	o.mu.Unlock()
	o.rec.Abort()
}

// settle moves to phase, clears the status label, installs the alert (nil on
// success), and publishes the new snapshot. Every attempt, successful or not,
// ends here; the system is never left in a phantom in-flight state.
func (o *Orchestrator) settle(ctx context.Context, phase Phase, alert *Alert) {
	o.mu.Lock()
	o.phase = phase
	o.statusLabel = ""
	o.alert = alert
	o.mu.Unlock()
	o.publish(ctx)
}

// revertOn returns the phase that existed before the current production
// attempt.
func (o *Orchestrator) revertOn() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.revertPhase
}

func (o *Orchestrator) setLabel(ctx context.Context, label string) {
	o.mu.Lock()
	o.statusLabel = label
	o.mu.Unlock()
	o.publish(ctx)
}

// beginJob derives a cancellable context for one provider pipeline and
// registers it so a later command can abandon the poll loop.
func (o *Orchestrator) beginJob(ctx context.Context) (context.Context, *jobHandle) {
	ctx, cancel := context.WithCancel(ctx)
	job := &jobHandle{cancel: cancel}
	o.mu.Lock()
	o.currentJob = job
	o.mu.Unlock()
	return ctx, job
}

func (o *Orchestrator) endJob(job *jobHandle) {
	job.cancel()
	o.mu.Lock()
	if o.currentJob == job {
		o.currentJob = nil
	}
	o.mu.Unlock()
}

func (o *Orchestrator) publish(ctx context.Context) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(ctx, o.sessionID, o.Snapshot())
}

// User-visible failure messages.
const (
	msgDeviceFailure     = "Microphone unavailable. Check your input device and browser permissions, then try again."
	msgGenerationFailure = "The scene could not be written. Try rephrasing your prompt."
	msgProviderFailure   = "The studio's AI provider had a problem. Please try again."
	msgQuotaFailure      = "Video re-rendering requires elevated API access. Select a different API credential and try again."
)
