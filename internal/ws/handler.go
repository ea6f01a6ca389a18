package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/engine"
	"github.com/coloc-game/backend/internal/relay"
	"github.com/coloc-game/backend/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	ackTimeout   = 5 * time.Second
)

func Handler(r *relay.Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan relay.Snapshot, 8)
		clientID := uuid.NewString()

		r.Inbox() <- relay.Join{ClientID: clientID, Outbox: out}
		defer func() { r.Inbox() <- relay.Leave{ClientID: clientID} }()

		// Writer goroutine: snapshots only. Acks and boundary errors
		// are written from the reader loop; the websocket library
		// serializes concurrent writes.
		writeCtx, writeCancel := context.WithCancel(req.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: types.MsgState, Version: snap.Version, State: &snap.State}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(req.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (relay.Leave in defer):
				return
			}

			var env types.ActionEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				writeMsg(req.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			// Envelope validation happens here, before the reducer.
			if env.Type == "" {
				writeMsg(req.Context(), conn, types.ServerMessage{
					Type: types.MsgAck,
					Seq:  env.Seq,
					Ack:  &engine.Ack{Error: "Missing action type"},
				})
				continue
			}

			msg := relay.FromClient{Type: engine.ActionType(env.Type), Payload: env.Payload}
			if env.Seq != 0 {
				msg.Reply = make(chan *engine.Ack, 1)
			}
			r.Inbox() <- msg

			if msg.Reply == nil {
				continue
			}
			select {
			case ack := <-msg.Reply:
				if ack == nil {
					ack = &engine.Ack{}
				}
				writeMsg(req.Context(), conn, types.ServerMessage{Type: types.MsgAck, Seq: env.Seq, Ack: ack})
			case <-time.After(ackTimeout):
				log.Warn("ack timed out", zap.String("client", clientID), zap.String("type", env.Type))
			case <-req.Context().Done():
				return
			}
		}
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
