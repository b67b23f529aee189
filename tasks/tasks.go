package tasks

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

// ---
// QUEUE DEFINITIONS
// ---
// We define all queue names as constants here.
const (
	// QueueProduction runs a full production attempt: script, concept image,
	// and (optionally) the scene video.
	QueueProduction = "q_production"

	// QueuePerformanceAnalysis transcribes a finished take and requests
	// director feedback on it.
	QueuePerformanceAnalysis = "q_performance_analysis"

	// QueueLipSync re-renders the scene video with mouth motion matched to
	// the recorded transcript.
	QueueLipSync = "q_lip_sync"
)

// StateChannel is the pub/sub channel state snapshots are published on.
const StateChannel = "studio_state"

// ---
// TASK PAYLOADS
// ---
// These are the structs that will be JSON-marshalled and sent to Redis.
// Payloads carry only session IDs and command parameters; all session state
// lives in the process-local registry, so the API and worker must share a
// process.

// ProductionTaskPayload is the payload for QueueProduction.
type ProductionTaskPayload struct {
	SessionID    string `json:"session_id"`
	Prompt       string `json:"prompt"`
	Language     string `json:"language"`
	IncludeVideo bool   `json:"include_video"`
}

// AnalysisTaskPayload is the payload for QueuePerformanceAnalysis.
type AnalysisTaskPayload struct {
	SessionID string `json:"session_id"`
}

// LipSyncTaskPayload is the payload for QueueLipSync.
type LipSyncTaskPayload struct {
	SessionID string `json:"session_id"`
}

// ---
// HELPER FUNCTIONS
// ---

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Enqueue adds a task to a queue.
func Enqueue(ctx context.Context, rdb *redis.Client, queueName string, payload interface{}) error {
	payloadStr, err := Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queueName, payloadStr).Err()
}
