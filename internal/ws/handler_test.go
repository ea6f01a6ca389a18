package ws

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/client"
	"github.com/coloc-game/backend/internal/engine"
	"github.com/coloc-game/backend/internal/relay"
)

// End-to-end contract check: a connected client must observe the same
// transitions the offline mirror produces, because both run the one
// reducer.
func TestHandler_ConnectedClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relay.New(ctx, engine.NewState(), zap.NewNop())
	srv := httptest.NewServer(Handler(r, zap.NewNop()))
	defer srv.Close()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	c, err := client.Dial(dialCtx, srv.URL, nil)
	require.NoError(t, err)
	defer c.Close()

	snapshots := make(chan engine.State, 16)
	c.OnState(func(s engine.State) {
		select {
		case snapshots <- s:
		default:
		}
	})

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	sess, err := c.CreateSession(callCtx, engine.Settings{
		NumTeams: 4, AcquisitionTime: 10, AnalysisTime: 10, GameMode: engine.ModeTimeAttack,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.NotEmpty(t, sess.SessionCode)
	require.Equal(t, engine.PhaseTeamFormation, sess.CurrentPhase)

	team, err := c.JoinSessionAsTeam(callCtx, sess.SessionCode, "Team A", engine.TeamMembers{PI: "Ada"})
	require.NoError(t, err)
	require.Equal(t, sess.ID, team.SessionID)

	// the broadcast mirror catches up with both entities
	deadline := time.After(3 * time.Second)
	for {
		snap := c.Snapshot()
		_, haveSess := snap.Sessions[sess.ID]
		_, haveTeam := snap.Teams[team.ID]
		if haveSess && haveTeam {
			break
		}
		select {
		case <-snapshots:
		case <-deadline:
			t.Fatalf("mirror never caught up: %+v", c.Snapshot())
		}
	}
}

func TestHandler_JoinUnknownCodeErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relay.New(ctx, engine.NewState(), zap.NewNop())
	srv := httptest.NewServer(Handler(r, zap.NewNop()))
	defer srv.Close()

	c, err := client.Dial(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.JoinSessionAsTeam(ctx, "NOPE42", "Team A", engine.TeamMembers{})
	require.EqualError(t, err, "Session not found")
}
