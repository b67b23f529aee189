package studio

import (
	"time"

	"github.com/Sreyaes/DubMaster/models"
)

// Phase is the orchestrator's current position in the production flow. Only
// the orchestrator transitions it.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCreatingScene        Phase = "creating_scene"
	PhaseReady                Phase = "ready"
	PhaseRecording            Phase = "recording"
	PhaseAnalyzingPerformance Phase = "analyzing_performance"
	PhaseSyncingLipMovement   Phase = "syncing_lip_movement"
)

// Human-readable status labels shown while a step runs. Informational only;
// they carry no control semantics and are cleared on every settlement.
const (
	labelWritingScript   = "writing script"
	labelDesigningFrames = "designing concept frames"
	labelRenderingVideo  = "rendering video"
	labelReviewingTake   = "reviewing your take"
	labelSyncingLips     = "syncing lip movement"
)

// AlertCode identifies the class of a user-visible failure.
type AlertCode string

const (
	AlertDevice     AlertCode = "device"
	AlertGeneration AlertCode = "generation"
	AlertProvider   AlertCode = "provider"
	AlertQuota      AlertCode = "quota"
)

// Alert is a structured user-visible failure. The presentation layer renders
// Message and may branch on Code.
type Alert struct {
	Code    AlertCode `json:"code"`
	Message string    `json:"message"`
}

// PerformanceView is the performance as shown to the presentation layer; the
// audio bytes are served separately.
type PerformanceView struct {
	MIMEType      string    `json:"mime_type"`
	Duration      float64   `json:"duration"`
	Timestamp     time.Time `json:"timestamp"`
	Transcription string    `json:"transcription,omitempty"`
}

// Snapshot is one immutable view of the whole session state. The presentation
// layer only ever reads snapshots; every command produces a new one.
type Snapshot struct {
	Phase           Phase            `json:"phase"`
	StatusLabel     string           `json:"status_label,omitempty"`
	Scene           *models.Scene    `json:"scene,omitempty"`
	Performance     *PerformanceView `json:"performance,omitempty"`
	Feedback        string           `json:"feedback,omitempty"`
	ShowSyncedVideo bool             `json:"show_synced_video"`
	Alert           *Alert           `json:"alert,omitempty"`
}
