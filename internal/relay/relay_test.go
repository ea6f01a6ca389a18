package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/engine"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvAck(t *testing.T, ch <-chan *engine.Ack, within time.Duration) *engine.Ack {
	t.Helper()
	select {
	case ack := <-ch:
		return ack
	case <-time.After(within):
		t.Fatalf("timed out waiting for ack")
		return nil // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestRelay_JoinSendsSnapshotImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	out := make(chan Snapshot, 2)
	r.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 {
		t.Fatalf("after join: want version=0, got %d", first.Version)
	}
	if len(first.State.Sessions) != 0 || len(first.State.Teams) != 0 {
		t.Fatalf("after join: expected empty snapshot, got %+v", first.State)
	}
}

func TestRelay_ActionBroadcastsAndAcksSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	// two clients: the actor and a bystander
	actor := make(chan Snapshot, 4)
	watcher := make(chan Snapshot, 4)
	r.Inbox() <- Join{ClientID: "actor", Outbox: actor}
	r.Inbox() <- Join{ClientID: "watcher", Outbox: watcher}
	_ = recvSnapshot(t, actor, 100*time.Millisecond)
	_ = recvSnapshot(t, watcher, 100*time.Millisecond)

	reply := make(chan *engine.Ack, 1)
	r.Inbox() <- FromClient{
		Type:    engine.ActionCreateSession,
		Payload: payload(t, engine.CreateSessionPayload{Settings: engine.Settings{NumTeams: 4}}),
		Reply:   reply,
	}

	ack := recvAck(t, reply, 100*time.Millisecond)
	if ack == nil || ack.SessionID == "" {
		t.Fatalf("want sessionId in ack, got %+v", ack)
	}

	// everyone, the originator included, sees the new snapshot
	for name, ch := range map[string]chan Snapshot{"actor": actor, "watcher": watcher} {
		snap := recvSnapshot(t, ch, 100*time.Millisecond)
		if snap.Version != 1 {
			t.Fatalf("%s: want version=1, got %d", name, snap.Version)
		}
		if _, ok := snap.State.Sessions[ack.SessionID]; !ok {
			t.Fatalf("%s: session %s missing from broadcast", name, ack.SessionID)
		}
	}
}

func TestRelay_RejectedActionStillBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	out := make(chan Snapshot, 4)
	r.Inbox() <- Join{ClientID: "c1", Outbox: out}
	before := recvSnapshot(t, out, 100*time.Millisecond)

	reply := make(chan *engine.Ack, 1)
	r.Inbox() <- FromClient{
		Type:    engine.ActionAdvancePhase,
		Payload: payload(t, engine.PhasePayload{SessionID: "ghost"}),
		Reply:   reply,
	}
	if ack := recvAck(t, reply, 100*time.Millisecond); ack != nil {
		t.Fatalf("missing-entity no-op should carry no ack, got %+v", ack)
	}

	after := recvSnapshot(t, out, 100*time.Millisecond)
	if after.Version != before.Version+1 {
		t.Fatalf("want version bump on no-op, got %d -> %d", before.Version, after.Version)
	}
	if len(after.State.Sessions) != 0 {
		t.Fatalf("no-op must not change state: %+v", after.State)
	}
}

func TestRelay_UnknownActionAcksError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	reply := make(chan *engine.Ack, 1)
	r.Inbox() <- FromClient{Type: "doSomethingUnknown", Reply: reply}

	ack := recvAck(t, reply, 100*time.Millisecond)
	if ack == nil || ack.Error != "Unknown action: doSomethingUnknown" {
		t.Fatalf("want unknown-action error ack, got %+v", ack)
	}
}

func TestRelay_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	// buffer of 1: the join snapshot fills it, the broadcast can't land
	out := make(chan Snapshot, 1)
	r.Inbox() <- Join{ClientID: "c1", Outbox: out}

	r.Inbox() <- FromClient{
		Type:    engine.ActionCreateSession,
		Payload: payload(t, engine.CreateSessionPayload{}),
	}

	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestRelay_LeaveClosesOutbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	out := make(chan Snapshot, 2)
	r.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	r.Inbox() <- Leave{ClientID: "c1"}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after leave")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("outbox not closed after leave")
	}
}

func TestRelay_ShutdownClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, engine.NewState(), zap.NewNop())

	out := make(chan Snapshot, 2)
	r.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	r.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after shutdown")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("outbox not closed after shutdown")
	}
}
