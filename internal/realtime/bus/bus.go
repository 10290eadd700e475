package bus

import (
	"context"

	"github.com/yungbote/agora-backend/internal/realtime"
)

// Bus fans SSE messages out across API instances.
type Bus interface {
	realtime.Publisher
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
