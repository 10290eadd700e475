package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type SSEEvent string

const (
	// SSEEventAnalysisStatus carries {content_type, content_id, status, error?}.
	SSEEventAnalysisStatus SSEEvent = "analysis_status"
	SSEEventJobDeadLetter  SSEEvent = "job_dead_letter"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// SSEClient is one open event stream. Outbound is closed by the hub when the
// client is removed.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done chan struct{}
}

// Publisher delivers a message to every subscriber of msg.Channel, possibly
// on another instance.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// UserChannel is the per-principal channel a client is subscribed to on
// connect.
func UserChannel(userID string) string { return "user:" + userID }
