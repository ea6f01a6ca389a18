// Package client mirrors the game store: every action either goes out
// over an active websocket or is applied to a local snapshot with the
// exact same reducer the server runs. One reducer, two execution
// contexts; there is nothing to drift.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/engine"
	"github.com/coloc-game/backend/pkg/types"
)

var ErrAckTimeout = errors.New("timed out waiting for ack")

const dialAckTimeout = 5 * time.Second

type Client struct {
	mu      sync.Mutex
	state   engine.State
	conn    *websocket.Conn
	onState func(engine.State)

	seq     atomic.Int64
	pending map[int64]chan *engine.Ack
	pmu     sync.Mutex

	log    *zap.Logger
	cancel context.CancelFunc
}

// New returns an offline client; actions apply against the local
// snapshot only (solo play).
func New(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		state:   engine.NewState(),
		pending: map[int64]chan *engine.Ack{},
		log:     log,
	}
}

// Dial connects to a server and starts mirroring its broadcasts. The
// first snapshot arrives unprompted right after the handshake.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	c := New(log)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	c.conn = conn
	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.readLoop(readCtx)
	return c, nil
}

func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (c *Client) Connected() bool { return c.conn != nil }

// OnState registers a hook invoked with every new snapshot (remote
// broadcast or local apply). The rendering layer hangs off this.
func (c *Client) OnState(fn func(engine.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// Snapshot returns the client's current view of {sessions, teams}.
func (c *Client) Snapshot() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.log.Debug("read loop ended", zap.Error(err))
			return
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("bad server frame", zap.Error(err))
			continue
		}
		switch msg.Type {
		case types.MsgState:
			if msg.State == nil {
				continue
			}
			c.setState(*msg.State)
		case types.MsgAck:
			c.pmu.Lock()
			ch, ok := c.pending[msg.Seq]
			delete(c.pending, msg.Seq)
			c.pmu.Unlock()
			if ok {
				ch <- msg.Ack
			}
		case types.MsgError:
			c.log.Warn("server rejected frame", zap.String("error", msg.Error))
		}
	}
}

func (c *Client) setState(s engine.State) {
	c.mu.Lock()
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// emit sends an action nobody waits on. Offline it applies locally;
// rejections are silent either way, exactly like the reducer.
func (c *Client) emit(ctx context.Context, typ engine.ActionType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: encoding %s payload: %w", typ, err)
	}
	if c.conn == nil {
		c.applyLocal(typ, raw)
		return nil
	}
	return c.write(ctx, types.ActionEnvelope{Type: string(typ), Payload: raw})
}

// call sends an action and waits for its ack, used where the caller
// needs server-generated ids. An ack timeout is a failure; handlers
// no-op on replays, so retrying is safe.
func (c *Client) call(ctx context.Context, typ engine.ActionType, payload any) (*engine.Ack, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: encoding %s payload: %w", typ, err)
	}
	if c.conn == nil {
		return c.applyLocal(typ, raw), nil
	}

	seq := c.seq.Add(1)
	reply := make(chan *engine.Ack, 1)
	c.pmu.Lock()
	c.pending[seq] = reply
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		delete(c.pending, seq)
		c.pmu.Unlock()
	}()

	if err := c.write(ctx, types.ActionEnvelope{Seq: seq, Type: string(typ), Payload: raw}); err != nil {
		return nil, err
	}

	select {
	case ack := <-reply:
		return ack, nil
	case <-time.After(dialAckTimeout):
		return nil, ErrAckTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) applyLocal(typ engine.ActionType, raw json.RawMessage) *engine.Ack {
	c.mu.Lock()
	res := engine.Apply(c.state, typ, raw)
	c.state = res.State
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(res.State)
	}
	return res.Ack
}

func (c *Client) write(ctx context.Context, env types.ActionEnvelope) error {
	data, _ := json.Marshal(env)
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("client: sending %s: %w", env.Type, err)
	}
	return nil
}

// CreateSession starts a new session and reports it back, with the
// server-generated id and join codes.
func (c *Client) CreateSession(ctx context.Context, settings engine.Settings) (*engine.Session, error) {
	ack, err := c.call(ctx, engine.ActionCreateSession, engine.CreateSessionPayload{Settings: settings})
	if err != nil {
		return nil, err
	}
	if ack == nil || ack.Session == nil {
		return nil, errors.New("client: no session in ack")
	}
	return ack.Session, nil
}

// JoinSessionAsTeam joins by public session code.
func (c *Client) JoinSessionAsTeam(ctx context.Context, sessionCode, name string, members engine.TeamMembers) (*engine.Team, error) {
	ack, err := c.call(ctx, engine.ActionJoinSessionAsTeam, engine.JoinSessionPayload{
		SessionCode: sessionCode, Name: name, Members: members,
	})
	if err != nil {
		return nil, err
	}
	if ack != nil && ack.Error != "" {
		return nil, errors.New(ack.Error)
	}
	if ack == nil || ack.Team == nil {
		return nil, errors.New("client: no team in ack")
	}
	return ack.Team, nil
}

func (c *Client) SetTeamExperiment(ctx context.Context, teamID string, number engine.ExperimentNumber, isLive bool, lastRoll *engine.DiceRoll) error {
	return c.emit(ctx, engine.ActionSetTeamExperiment, engine.SetTeamExperimentPayload{
		TeamID: teamID, ExperimentNumber: number, IsLive: isLive, LastRoll: lastRoll,
	})
}

func (c *Client) AdvancePhase(ctx context.Context, sessionID string) error {
	return c.emit(ctx, engine.ActionAdvancePhase, engine.PhasePayload{SessionID: sessionID})
}

func (c *Client) PreviousPhase(ctx context.Context, sessionID string) error {
	return c.emit(ctx, engine.ActionPreviousPhase, engine.PhasePayload{SessionID: sessionID})
}

func (c *Client) AdjustPhaseTimer(ctx context.Context, sessionID string, deltaMinutes int) error {
	return c.emit(ctx, engine.ActionAdjustPhaseTimer, engine.AdjustPhaseTimerPayload{
		SessionID: sessionID, DeltaMinutes: deltaMinutes,
	})
}

func (c *Client) SetShowTimerToParticipants(ctx context.Context, sessionID string, show bool) error {
	return c.emit(ctx, engine.ActionSetShowTimerToParticipants, engine.ShowTimerPayload{
		SessionID: sessionID, Show: show,
	})
}

func (c *Client) SelectCard(ctx context.Context, teamID string, list engine.SelectionList, card engine.Card) error {
	return c.emit(ctx, engine.ActionSelectCard, engine.SelectCardPayload{
		TeamID: teamID, Phase: list, Card: card,
	})
}

func (c *Client) DeselectCard(ctx context.Context, teamID string, list engine.SelectionList, cardID string) error {
	return c.emit(ctx, engine.ActionDeselectCard, engine.DeselectCardPayload{
		TeamID: teamID, Phase: list, CardID: cardID,
	})
}

func (c *Client) AssignReviewerConcern(ctx context.Context, teamID string, card engine.Card) error {
	return c.emit(ctx, engine.ActionAssignReviewerConcern, engine.AssignCardPayload{TeamID: teamID, Card: card})
}

func (c *Client) UnassignReviewerConcern(ctx context.Context, teamID, cardID string) error {
	return c.emit(ctx, engine.ActionUnassignReviewerConcern, engine.UnassignCardPayload{TeamID: teamID, CardID: cardID})
}

func (c *Client) AssignReviewerDetail(ctx context.Context, teamID string, card engine.Card) error {
	return c.emit(ctx, engine.ActionAssignReviewerDetail, engine.AssignCardPayload{TeamID: teamID, Card: card})
}

func (c *Client) UnassignReviewerDetail(ctx context.Context, teamID, cardID string) error {
	return c.emit(ctx, engine.ActionUnassignReviewerDetail, engine.UnassignCardPayload{TeamID: teamID, CardID: cardID})
}

func (c *Client) GMAddCardToTeam(ctx context.Context, teamID string, list engine.SelectionList, card engine.Card) error {
	return c.emit(ctx, engine.ActionGMAddCardToTeam, engine.SelectCardPayload{
		TeamID: teamID, Phase: list, Card: card,
	})
}

func (c *Client) GMRemoveCardFromTeam(ctx context.Context, teamID string, list engine.SelectionList, cardID string) error {
	return c.emit(ctx, engine.ActionGMRemoveCardFromTeam, engine.DeselectCardPayload{
		TeamID: teamID, Phase: list, CardID: cardID,
	})
}
