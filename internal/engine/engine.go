package engine

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

type ActionType string

const (
	ActionCreateSession              ActionType = "createSession"
	ActionJoinSessionAsTeam          ActionType = "joinSessionAsTeam"
	ActionSetTeamExperiment          ActionType = "setTeamExperiment"
	ActionAdvancePhase               ActionType = "advancePhase"
	ActionPreviousPhase              ActionType = "previousPhase"
	ActionAdjustPhaseTimer           ActionType = "adjustPhaseTimer"
	ActionSetShowTimerToParticipants ActionType = "setShowTimerToParticipants"
	ActionSelectCard                 ActionType = "selectCard"
	ActionDeselectCard               ActionType = "deselectCard"
	ActionAssignReviewerConcern      ActionType = "assignReviewerConcern"
	ActionUnassignReviewerConcern    ActionType = "unassignReviewerConcern"
	ActionAssignReviewerDetail       ActionType = "assignReviewerDetail"
	ActionUnassignReviewerDetail     ActionType = "unassignReviewerDetail"
	ActionGMAddCardToTeam            ActionType = "gmAddCardToTeam"
	ActionGMRemoveCardFromTeam       ActionType = "gmRemoveCardFromTeam"
)

// Ack is the per-request reply. Only the fields relevant to the action
// are set; Error carries "Session not found" style failures.
type Ack struct {
	SessionID string   `json:"sessionId,omitempty"`
	TeamID    string   `json:"teamId,omitempty"`
	Session   *Session `json:"session,omitempty"`
	Team      *Team    `json:"team,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Result is the only thing a handler can produce. Rejections and
// missing entities come back as the unchanged state, never as a Go
// error; nothing the reducer does is fatal.
type Result struct {
	State State
	Ack   *Ack
}

type handlerFunc func(State, json.RawMessage) Result

var handlers = map[ActionType]handlerFunc{
	ActionCreateSession:              createSession,
	ActionJoinSessionAsTeam:          joinSessionAsTeam,
	ActionSetTeamExperiment:          setTeamExperiment,
	ActionAdvancePhase:               advancePhase,
	ActionPreviousPhase:              previousPhase,
	ActionAdjustPhaseTimer:           adjustPhaseTimer,
	ActionSetShowTimerToParticipants: setShowTimerToParticipants,
	ActionSelectCard:                 selectCard,
	ActionDeselectCard:               deselectCard,
	ActionAssignReviewerConcern:      assignReviewerConcern,
	ActionUnassignReviewerConcern:    unassignReviewerConcern,
	ActionAssignReviewerDetail:       assignReviewerDetail,
	ActionUnassignReviewerDetail:     unassignReviewerDetail,
	ActionGMAddCardToTeam:            gmAddCardToTeam,
	ActionGMRemoveCardFromTeam:       gmRemoveCardFromTeam,
}

// Apply dispatches one action against the snapshot and returns the
// next snapshot plus an optional ack for the sender.
func Apply(s State, typ ActionType, payload json.RawMessage) Result {
	h, ok := handlers[typ]
	if !ok {
		return Result{State: s, Ack: &Ack{Error: "Unknown action: " + string(typ)}}
	}
	return h(s, payload)
}

// decode unmarshals a handler payload. An absent payload decodes to
// the zero value, like the original's `payload || {}`.
func decode[T any](raw json.RawMessage) (T, bool) {
	var p T
	if len(raw) == 0 {
		return p, true
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	return p, true
}

func badPayload(s State) Result {
	return Result{State: s, Ack: &Ack{Error: "invalid payload"}}
}

type CreateSessionPayload struct {
	Settings Settings `json:"settings"`
}

func createSession(s State, raw json.RawMessage) Result {
	p, ok := decode[CreateSessionPayload](raw)
	if !ok {
		return badPayload(s)
	}
	now := timeNow()
	settings := p.Settings
	if settings.TeamFormationTime == 0 {
		settings.TeamFormationTime = defaultTeamFormationMinutes
	}
	end := now.Add(time.Duration(settings.TeamFormationTime) * time.Minute)
	sess := Session{
		ID:          genID(),
		GMCode:      genCode(),
		SessionCode: genCode(),
		Status:      PhaseSetup,
		Settings:    settings,
		// The session is born mid team-formation; Status catches up on
		// the first phase transition.
		CurrentPhase:            PhaseTeamFormation,
		PhaseEndTime:            &end,
		ShowTimerToParticipants: true,
		CreatedAt:               now,
	}
	sessions := maps.Clone(s.Sessions)
	sessions[sess.ID] = sess
	return Result{
		State: State{Sessions: sessions, Teams: s.Teams},
		Ack:   &Ack{SessionID: sess.ID, Session: &sess},
	}
}

type JoinSessionPayload struct {
	SessionCode string      `json:"sessionCode"`
	Name        string      `json:"name"`
	Members     TeamMembers `json:"members"`
}

func joinSessionAsTeam(s State, raw json.RawMessage) Result {
	p, ok := decode[JoinSessionPayload](raw)
	if !ok {
		return badPayload(s)
	}
	var sess *Session
	for _, candidate := range s.Sessions {
		if candidate.SessionCode == p.SessionCode {
			sess = &candidate
			break
		}
	}
	if sess == nil {
		return Result{State: s, Ack: &Ack{Error: "Session not found"}}
	}
	team := Team{
		ID:        genID(),
		SessionID: sess.ID,
		Name:      p.Name,
		Members:   p.Members,
		Experiment: Experiment{
			Number: ExperimentUnassigned,
		},
		SelectedCards: map[SelectionList][]Card{
			ListAcquisition: {},
			ListAnalysis:    {},
			ListDetails:     {},
		},
		TotalTimeCost: 0,
		Status:        StatusPlanning,
		ReviewOutcome: ReviewOutcome{
			Concerns:         []ReviewCard{},
			Defenses:         []DefenseAttempt{},
			AssignedConcerns: []Card{},
			AssignedDetails:  []Card{},
		},
		GMAddedCardIDs: []string{},
	}
	teams := maps.Clone(s.Teams)
	teams[team.ID] = team
	return Result{
		State: State{Sessions: s.Sessions, Teams: teams},
		Ack:   &Ack{TeamID: team.ID, SessionID: sess.ID, Team: &team, Session: sess},
	}
}

type SetTeamExperimentPayload struct {
	TeamID           string           `json:"teamId"`
	ExperimentNumber ExperimentNumber `json:"experimentNumber"`
	IsLive           bool             `json:"isLive"`
	LastRoll         *DiceRoll        `json:"lastRoll,omitempty"`
}

func setTeamExperiment(s State, raw json.RawMessage) Result {
	p, ok := decode[SetTeamExperimentPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok {
		return Result{State: s}
	}
	// Wholesale replacement, not a merge: a roll without LastRoll
	// clears any previous roll.
	team.Experiment = Experiment{Number: p.ExperimentNumber, IsLive: p.IsLive, LastRoll: p.LastRoll}
	return replaceTeam(s, team)
}

type PhasePayload struct {
	SessionID string `json:"sessionId"`
}

func advancePhase(s State, raw json.RawMessage) Result {
	p, ok := decode[PhasePayload](raw)
	if !ok {
		return badPayload(s)
	}
	sess, ok := s.Sessions[p.SessionID]
	if !ok {
		return Result{State: s}
	}
	phase := nextPhase[sess.CurrentPhase]
	switch phase {
	case PhaseAcquisition:
		end := timeNow().Add(time.Duration(sess.Settings.AcquisitionTime) * time.Minute)
		sess.PhaseEndTime = &end
	case PhaseAnalysis:
		end := timeNow().Add(time.Duration(sess.Settings.AnalysisTime) * time.Minute)
		sess.PhaseEndTime = &end
		// Other phases keep whatever deadline was already set.
	}
	sess.CurrentPhase = phase
	sess.Status = phase
	return replaceSession(s, sess)
}

func previousPhase(s State, raw json.RawMessage) Result {
	p, ok := decode[PhasePayload](raw)
	if !ok {
		return badPayload(s)
	}
	sess, ok := s.Sessions[p.SessionID]
	if !ok {
		return Result{State: s}
	}
	phase := prevPhase[sess.CurrentPhase]
	if phase == sess.CurrentPhase {
		return Result{State: s}
	}
	if phase == PhaseTeamFormation {
		// Retreating into team-formation re-arms a fresh full-length
		// window, not the remaining time.
		minutes := sess.Settings.TeamFormationTime
		if minutes == 0 {
			minutes = defaultTeamFormationMinutes
		}
		end := timeNow().Add(time.Duration(minutes) * time.Minute)
		sess.PhaseEndTime = &end
	} else {
		sess.PhaseEndTime = nil
	}
	sess.CurrentPhase = phase
	sess.Status = phase
	return replaceSession(s, sess)
}

type AdjustPhaseTimerPayload struct {
	SessionID    string `json:"sessionId"`
	DeltaMinutes int    `json:"deltaMinutes"`
}

func adjustPhaseTimer(s State, raw json.RawMessage) Result {
	p, ok := decode[AdjustPhaseTimerPayload](raw)
	if !ok {
		return badPayload(s)
	}
	sess, ok := s.Sessions[p.SessionID]
	if !ok || sess.PhaseEndTime == nil {
		return Result{State: s}
	}
	end := sess.PhaseEndTime.Add(time.Duration(p.DeltaMinutes) * time.Minute)
	// Floor of one minute remaining; a large negative delta must not
	// expire the phase on the spot.
	if floor := timeNow().Add(time.Minute); end.Before(floor) {
		end = floor
	}
	sess.PhaseEndTime = &end
	return replaceSession(s, sess)
}

type ShowTimerPayload struct {
	SessionID string `json:"sessionId"`
	Show      bool   `json:"show"`
}

func setShowTimerToParticipants(s State, raw json.RawMessage) Result {
	p, ok := decode[ShowTimerPayload](raw)
	if !ok {
		return badPayload(s)
	}
	sess, ok := s.Sessions[p.SessionID]
	if !ok {
		return Result{State: s}
	}
	sess.ShowTimerToParticipants = p.Show
	return replaceSession(s, sess)
}

type SelectCardPayload struct {
	TeamID string        `json:"teamId"`
	Phase  SelectionList `json:"phase"`
	Card   Card          `json:"card"`
}

func selectCard(s State, raw json.RawMessage) Result {
	p, ok := decode[SelectCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || !p.Phase.known() {
		return Result{State: s}
	}
	if hasCard(team.SelectedCards[p.Phase], p.Card.ID) {
		return Result{State: s}
	}
	selected := combinedSelection(team)
	if conflictsWithSelection(selected, p.Card) {
		return Result{State: s}
	}
	if !requirementMet(selected, p.Card) {
		return Result{State: s}
	}
	team.SelectedCards = withCard(team.SelectedCards, p.Phase, p.Card)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

type DeselectCardPayload struct {
	TeamID string        `json:"teamId"`
	Phase  SelectionList `json:"phase"`
	CardID string        `json:"cardId"`
}

func deselectCard(s State, raw json.RawMessage) Result {
	p, ok := decode[DeselectCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || !p.Phase.known() {
		return Result{State: s}
	}
	team.SelectedCards = withoutCard(team.SelectedCards, p.Phase, p.CardID)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

type AssignCardPayload struct {
	TeamID string `json:"teamId"`
	Card   Card   `json:"card"`
}

type UnassignCardPayload struct {
	TeamID string `json:"teamId"`
	CardID string `json:"cardId"`
}

func assignReviewerConcern(s State, raw json.RawMessage) Result {
	p, ok := decode[AssignCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || hasCard(team.ReviewOutcome.AssignedConcerns, p.Card.ID) {
		return Result{State: s}
	}
	team.ReviewOutcome.AssignedConcerns = append(slices.Clone(team.ReviewOutcome.AssignedConcerns), p.Card)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

func unassignReviewerConcern(s State, raw json.RawMessage) Result {
	p, ok := decode[UnassignCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok {
		return Result{State: s}
	}
	team.ReviewOutcome.AssignedConcerns = dropCard(team.ReviewOutcome.AssignedConcerns, p.CardID)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

func assignReviewerDetail(s State, raw json.RawMessage) Result {
	p, ok := decode[AssignCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || hasCard(team.ReviewOutcome.AssignedDetails, p.Card.ID) {
		return Result{State: s}
	}
	team.ReviewOutcome.AssignedDetails = append(slices.Clone(team.ReviewOutcome.AssignedDetails), p.Card)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

func unassignReviewerDetail(s State, raw json.RawMessage) Result {
	p, ok := decode[UnassignCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok {
		return Result{State: s}
	}
	team.ReviewOutcome.AssignedDetails = dropCard(team.ReviewOutcome.AssignedDetails, p.CardID)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

func gmAddCardToTeam(s State, raw json.RawMessage) Result {
	p, ok := decode[SelectCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || !p.Phase.known() {
		return Result{State: s}
	}
	if hasCard(team.SelectedCards[p.Phase], p.Card.ID) {
		return Result{State: s}
	}
	// The GM bypasses compatibility and requirement checks on purpose.
	team.SelectedCards = withCard(team.SelectedCards, p.Phase, p.Card)
	team.GMAddedCardIDs = append(slices.Clone(team.GMAddedCardIDs), p.Card.ID)
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}

func gmRemoveCardFromTeam(s State, raw json.RawMessage) Result {
	p, ok := decode[DeselectCardPayload](raw)
	if !ok {
		return badPayload(s)
	}
	team, ok := s.Teams[p.TeamID]
	if !ok || !p.Phase.known() {
		return Result{State: s}
	}
	team.SelectedCards = withoutCard(team.SelectedCards, p.Phase, p.CardID)
	team.GMAddedCardIDs = slices.DeleteFunc(slices.Clone(team.GMAddedCardIDs), func(id string) bool {
		return id == p.CardID
	})
	team.TotalTimeCost = calcTimeCost(team)
	return replaceTeam(s, team)
}
