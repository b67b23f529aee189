package worker

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Sreyaes/DubMaster/studio"
	"github.com/Sreyaes/DubMaster/tasks"
)

// Handlers executes accepted orchestrator commands against the process-local
// session registry. A payload whose session has been evicted is dropped; the
// orchestrator it pointed at no longer exists.
type Handlers struct {
	Registry *studio.Registry
}

// NewHandlers creates the task handlers over the session registry.
func NewHandlers(registry *studio.Registry) *Handlers {
	return &Handlers{Registry: registry}
}

// HandleProduction processes tasks from QueueProduction: the script, concept
// image, and optional scene video pipeline for one session.
func (h *Handlers) HandleProduction(ctx context.Context, payload string) error {
	var task tasks.ProductionTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	session, ok := h.Registry.Get(task.SessionID)
	if !ok {
		log.Printf("Session %s gone, dropping production task", task.SessionID)
		return nil
	}

	log.Printf("Producing scene for session %s", task.SessionID)
	session.Orchestrator.RunProduction(ctx, task.Prompt, task.Language, task.IncludeVideo)
	return nil
}

// HandlePerformanceAnalysis processes tasks from QueuePerformanceAnalysis:
// transcription of the finished take plus director feedback.
func (h *Handlers) HandlePerformanceAnalysis(ctx context.Context, payload string) error {
	var task tasks.AnalysisTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	session, ok := h.Registry.Get(task.SessionID)
	if !ok {
		log.Printf("Session %s gone, dropping analysis task", task.SessionID)
		return nil
	}

	log.Printf("Analyzing take for session %s", task.SessionID)
	session.Orchestrator.RunAnalysis(ctx)
	return nil
}

// HandleLipSync processes tasks from QueueLipSync: the lip-synced re-render
// of the scene video.
func (h *Handlers) HandleLipSync(ctx context.Context, payload string) error {
	var task tasks.LipSyncTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	session, ok := h.Registry.Get(task.SessionID)
	if !ok {
		log.Printf("Session %s gone, dropping lip sync task", task.SessionID)
		return nil
	}

	log.Printf("Lip-syncing scene video for session %s", task.SessionID)
	session.Orchestrator.RunLipSync(ctx)
	return nil
}
