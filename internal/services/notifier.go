package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/realtime"
)

// AnalysisNotifier pushes pipeline state to the content author's stream.
type AnalysisNotifier interface {
	AnalysisStatus(ctx context.Context, authorID uuid.UUID, contentType string, contentID uuid.UUID, status, reason string)
	JobDeadLettered(ctx context.Context, job *types.JobRun, reason string)
}

type analysisNotifier struct {
	pub realtime.Publisher
	log *logger.Logger
}

func NewAnalysisNotifier(pub realtime.Publisher, baseLog *logger.Logger) AnalysisNotifier {
	return &analysisNotifier{pub: pub, log: baseLog.With("service", "AnalysisNotifier")}
}

func (n *analysisNotifier) publish(ctx context.Context, msg realtime.SSEMessage) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(ctx, msg); err != nil {
		n.log.Warn("publish failed", "event", msg.Event, "error", err)
	}
}

func (n *analysisNotifier) AnalysisStatus(ctx context.Context, authorID uuid.UUID, contentType string, contentID uuid.UUID, status, reason string) {
	data := map[string]any{
		"content_type": contentType,
		"content_id":   contentID,
		"status":       status,
	}
	if reason != "" {
		data["error"] = reason
	}
	n.publish(ctx, realtime.SSEMessage{
		Channel: realtime.UserChannel(authorID.String()),
		Event:   realtime.SSEEventAnalysisStatus,
		Data:    data,
	})
}

func (n *analysisNotifier) JobDeadLettered(ctx context.Context, job *types.JobRun, reason string) {
	if job == nil {
		return
	}
	n.publish(ctx, realtime.SSEMessage{
		Channel: realtime.UserChannel(job.OwnerUserID.String()),
		Event:   realtime.SSEEventJobDeadLetter,
		Data: map[string]any{
			"job_id":      job.ID,
			"job_type":    job.JobType,
			"entity_type": job.EntityType,
			"entity_id":   job.EntityID,
			"error":       reason,
		},
	})
}
