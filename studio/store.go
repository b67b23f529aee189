package studio

import (
	"sync"

	"github.com/Sreyaes/DubMaster/models"
)

// Store holds the live Scene, Performance, and Feedback for one session. It
// is a pure data holder with merge semantics: whole-value replacement plus
// field-level patches for progressive media attachment. Transition validation
// belongs to the orchestrator, which is the only writer.
type Store struct {
	mu          sync.Mutex
	scene       *models.Scene
	performance *models.Performance
	feedback    string
	showSynced  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceScene installs a new scene, dropping the previous one.
func (s *Store) ReplaceScene(scene *models.Scene) {
	s.mu.Lock()
	s.scene = scene
	s.mu.Unlock()
}

// SetSceneImage attaches the concept image to the current scene.
func (s *Store) SetSceneImage(url string) {
	s.mu.Lock()
	if s.scene != nil {
		s.scene.ImageURL = url
	}
	s.mu.Unlock()
}

// SetSceneVideo attaches the rendered scene video to the current scene.
func (s *Store) SetSceneVideo(url string) {
	s.mu.Lock()
	if s.scene != nil {
		s.scene.VideoURL = url
	}
	s.mu.Unlock()
}

// SetSyncedVideo attaches a lip-synced render to the current scene. A later
// lip-sync request overwrites it; latest wins.
func (s *Store) SetSyncedVideo(url string) {
	s.mu.Lock()
	if s.scene != nil {
		s.scene.SyncedVideoURL = url
	}
	s.mu.Unlock()
}

// Scene returns a copy of the current scene, or nil.
func (s *Store) Scene() *models.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyScene(s.scene)
}

// ReplacePerformance installs a new take, discarding the previous take and
// its feedback.
func (s *Store) ReplacePerformance(p *models.Performance) {
	s.mu.Lock()
	s.performance = p
	s.feedback = ""
	s.mu.Unlock()
}

// SetTranscription fills in the transcription of the current performance.
// This is the performance's single post-creation mutation.
func (s *Store) SetTranscription(text string) {
	s.mu.Lock()
	if s.performance != nil {
		s.performance.Transcription = text
	}
	s.mu.Unlock()
}

// Transcription returns the current performance's transcription, or "".
func (s *Store) Transcription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.performance == nil {
		return ""
	}
	return s.performance.Transcription
}

// PerformanceAudio returns the current take's audio artifact.
func (s *Store) PerformanceAudio() ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.performance == nil {
		return nil, "", false
	}
	return s.performance.Audio, s.performance.MIMEType, true
}

// PerformanceView returns the display form of the current take, or nil.
func (s *Store) PerformanceView() *PerformanceView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.performance == nil {
		return nil
	}
	return &PerformanceView{
		MIMEType:      s.performance.MIMEType,
		Duration:      s.performance.Duration,
		Timestamp:     s.performance.Timestamp,
		Transcription: s.performance.Transcription,
	}
}

// PerformanceDuration returns the current take's duration in seconds.
func (s *Store) PerformanceDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.performance == nil {
		return 0
	}
	return s.performance.Duration
}

// SetFeedback stores director feedback for the current performance.
func (s *Store) SetFeedback(text string) {
	s.mu.Lock()
	s.feedback = text
	s.mu.Unlock()
}

// Feedback returns the stored feedback, or "".
func (s *Store) Feedback() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// SetShowSynced switches which video variant the presentation layer shows.
func (s *Store) SetShowSynced(synced bool) {
	s.mu.Lock()
	s.showSynced = synced
	s.mu.Unlock()
}

// ShowSynced reports whether the synced variant is selected.
func (s *Store) ShowSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showSynced
}

// ResetSecondaryFlow clears the performance, its feedback, and the view
// toggle. Called when a new production starts; the scene itself is only
// replaced once the new script succeeds.
func (s *Store) ResetSecondaryFlow() {
	s.mu.Lock()
	s.performance = nil
	s.feedback = ""
	s.showSynced = false
	s.mu.Unlock()
}

func copyScene(scene *models.Scene) *models.Scene {
	if scene == nil {
		return nil
	}
	c := *scene
	c.Dialogue = append([]models.DialogueLine(nil), scene.Dialogue...)
	return &c
}
