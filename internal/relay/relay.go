// Package relay owns the single authoritative {sessions, teams}
// snapshot. One goroutine applies actions in receipt order, swaps the
// snapshot and re-broadcasts it in full to every connected client, so
// the apply -> replace -> broadcast sequence is atomic with respect to
// other actions.
package relay

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/engine"
)

type Msg interface{ isRelayMsg() }

// FromClient carries one action envelope. Reply, when non-nil, gets
// the handler's ack (possibly nil) exactly once.
type FromClient struct {
	Type    engine.ActionType
	Payload json.RawMessage
	Reply   chan *engine.Ack
}

func (FromClient) isRelayMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isRelayMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRelayMsg() {}

type Shutdown struct{}

func (Shutdown) isRelayMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRelayMsg() {}

type Snapshot struct {
	Version int
	State   engine.State
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Relay struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, initial engine.State, log *zap.Logger) *Relay {
	ctx, cancel := context.WithCancel(parent)

	r := &Relay{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		version: 0,
		clients: make(map[string]chan Snapshot),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Relay) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				r.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: r.version, State: r.state}
				r.log.Info("client joined", zap.String("client", msg.ClientID), zap.Int("clients", len(r.clients)))

			case Leave:
				// Close the outbox so the connection's writer goroutine
				// unwinds; a slow-drop may have closed it already.
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}
				r.log.Info("client left", zap.String("client", msg.ClientID), zap.Int("clients", len(r.clients)))

			case FromClient:
				res := engine.Apply(r.state, msg.Type, msg.Payload)
				// The original relay broadcasts after every action,
				// rejected ones included; rejection is only visible to
				// the caller as an unchanged snapshot.
				r.state = res.State
				r.version++
				r.broadcast(Snapshot{Version: r.version, State: r.state})
				if msg.Reply != nil {
					msg.Reply <- res.Ack
				}
				r.log.Debug("applied action", zap.String("type", string(msg.Type)), zap.Int("version", r.version))

			case GetState:
				// test-only plus code lookups: reflect internal state
				// without data races
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					State:      r.state,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Relay) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more snapshots
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Relay) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
			r.log.Warn("dropped slow client", zap.String("client", id))
		}
	}
}

// Expose the inbox so tests or the WS layer can send messages.
func (r *Relay) Inbox() chan<- Msg { return r.inbox }
