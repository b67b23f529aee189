package platform

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Sreyaes/DubMaster/studio"
	"github.com/Sreyaes/DubMaster/tasks"
	"github.com/go-redis/redis/v8"
)

// StateNotifier publishes state snapshots to the studio_state channel so
// observers (ops tooling, dashboards) can follow productions. Publishing is
// fire-and-forget; failures are logged and never fail the calling flow.
type StateNotifier struct {
	RDB *redis.Client
}

// NewStateNotifier creates a notifier over the Redis client.
func NewStateNotifier(rdb *redis.Client) *StateNotifier {
	return &StateNotifier{RDB: rdb}
}

type stateEvent struct {
	SessionID string          `json:"session_id"`
	State     studio.Snapshot `json:"state"`
}

func (n *StateNotifier) Publish(ctx context.Context, sessionID string, snap studio.Snapshot) {
	payload, err := json.Marshal(stateEvent{SessionID: sessionID, State: snap})
	if err != nil {
		log.Printf("Error marshalling state event: %v", err)
		return
	}
	if err := n.RDB.Publish(ctx, tasks.StateChannel, payload).Err(); err != nil {
		log.Printf("Error publishing state event: %v", err)
	}
}
