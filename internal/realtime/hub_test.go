package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	userID := uuid.New()
	channel := UserChannel(userID.String())

	clientA := hub.NewSSEClient(userID)
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventAnalysisStatus, Data: map[string]any{"status": "processing"}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventAnalysisStatus, Data: map[string]any{"status": "completed"}})

	first := recvMessage(t, clientA.Outbound, time.Second)
	second := recvMessage(t, clientA.Outbound, time.Second)
	if first.Data.(map[string]any)["status"] != "processing" || second.Data.(map[string]any)["status"] != "completed" {
		t.Fatalf("order: got=%v then %v", first.Data, second.Data)
	}

	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}

	clientB := hub.NewSSEClient(userID)
	hub.AddChannel(clientB, channel)
	if err := hub.Publish(context.Background(), SSEMessage{Channel: channel, Event: SSEEventJobDeadLetter}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventJobDeadLetter {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventJobDeadLetter, got.Event)
	}
}

func TestSSEHubIgnoresOtherChannels(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, UserChannel("a"))
	hub.Broadcast(SSEMessage{Channel: UserChannel("b"), Event: SSEEventAnalysisStatus})
	select {
	case msg := <-c.Outbound:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, "x")
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: "x", Event: SSEEventAnalysisStatus})
	}
	if got := len(c.Outbound); got != outboundBuffer {
		t.Fatalf("buffered: want=%d got=%d", outboundBuffer, got)
	}
}
