package engine

import "time"

type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseTeamFormation Phase = "team-formation"
	PhaseAcquisition   Phase = "acquisition"
	PhaseAnalysis      Phase = "analysis"
	PhaseReview        Phase = "review"
	PhaseComplete      Phase = "complete"
)

type GameMode string

const (
	ModeTimeAttack GameMode = "time-attack"
	ModeBudget     GameMode = "budget"
)

// Settings is fixed at session creation and never mutated afterwards.
type Settings struct {
	NumTeams          int      `json:"numTeams"`
	AcquisitionTime   int      `json:"acquisitionTime"`
	AnalysisTime      int      `json:"analysisTime"`
	TeamFormationTime int      `json:"teamFormationTime"`
	GameMode          GameMode `json:"gameMode"`
}

type Session struct {
	ID           string   `json:"id"`
	GMCode       string   `json:"gmCode"`
	SessionCode  string   `json:"sessionCode"`
	Status       Phase    `json:"status"`
	Settings     Settings `json:"settings"`
	CurrentPhase Phase    `json:"currentPhase"`
	// Nil means no countdown is running.
	PhaseEndTime            *time.Time `json:"phaseEndTime"`
	ShowTimerToParticipants bool       `json:"showTimerToParticipants"`
	CreatedAt               time.Time  `json:"createdAt"`
}

// TeamMembers holds free-text role names. Nothing validates them.
type TeamMembers struct {
	PI             string `json:"pi"`
	MicroscopeTech string `json:"microscopeTech"`
	Postdoc        string `json:"postdoc"`
	GradStudent    string `json:"gradStudent"`
}

// ExperimentNumber is 1-6 once assigned, Unassigned before the dice roll.
type ExperimentNumber int

const ExperimentUnassigned ExperimentNumber = 0

func (n ExperimentNumber) Assigned() bool { return n != ExperimentUnassigned }

type DiceRoll struct {
	D1 int `json:"d1"`
	D2 int `json:"d2"`
}

type Experiment struct {
	Number   ExperimentNumber `json:"number"`
	IsLive   bool             `json:"isLive"`
	LastRoll *DiceRoll        `json:"lastRoll,omitempty"`
}

type CardCategory string

const (
	CategoryMicroscopy CardCategory = "microscopy"
	CategoryAnalysis   CardCategory = "analysis"
	CategoryDetails    CardCategory = "details"
	CategoryReview     CardCategory = "review"
)

// Card is a catalog value object; the engine only ever copies it into
// a team's selection, never mutates it.
type Card struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Category         CardCategory `json:"category"`
	TimeCost         int          `json:"timeCost"`
	IncompatibleWith []string     `json:"incompatibleWith"`
	Requires         []string     `json:"requires"`
	Tags             []string     `json:"tags"`
	IconPath         string       `json:"iconPath,omitempty"`
}

// SelectionList names one of the three per-team card lists.
type SelectionList string

const (
	ListAcquisition SelectionList = "acquisition"
	ListAnalysis    SelectionList = "analysis"
	ListDetails     SelectionList = "details"
)

func (l SelectionList) known() bool {
	switch l {
	case ListAcquisition, ListAnalysis, ListDetails:
		return true
	}
	return false
}

type TeamStatus string

const (
	StatusPlanning  TeamStatus = "planning"
	StatusSubmitted TeamStatus = "submitted"
	StatusReviewed  TeamStatus = "reviewed"
)

type ReviewCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DefenseAttempt struct {
	CardID  string `json:"cardId"`
	Roll    int    `json:"roll"`
	Success bool   `json:"success"`
}

// ReviewOutcome carries the GM-assigned review cards. Concerns,
// Defenses and FinalScore are legacy fields no current action writes;
// they stay on the wire for older clients.
type ReviewOutcome struct {
	Concerns         []ReviewCard     `json:"concerns"`
	Defenses         []DefenseAttempt `json:"defenses"`
	FinalScore       int              `json:"finalScore"`
	AssignedConcerns []Card           `json:"assignedConcerns"`
	AssignedDetails  []Card           `json:"assignedDetails"`
}

type Team struct {
	ID            string                   `json:"id"`
	SessionID     string                   `json:"sessionId"`
	Name          string                   `json:"name"`
	Members       TeamMembers              `json:"members"`
	Experiment    Experiment               `json:"experiment"`
	SelectedCards map[SelectionList][]Card `json:"selectedCards"`
	// Derived: sum of TimeCost over selections and assigned review
	// cards. Every mutating handler recomputes it.
	TotalTimeCost  int           `json:"totalTimeCost"`
	Status         TeamStatus    `json:"status"`
	ReviewOutcome  ReviewOutcome `json:"reviewOutcome"`
	GMAddedCardIDs []string      `json:"gmAddedCardIds"`
}

// State is the full authoritative snapshot. Handlers never mutate it
// in place; they build a new value and replace the top-level maps.
type State struct {
	Sessions map[string]Session `json:"sessions"`
	Teams    map[string]Team    `json:"teams"`
}

func NewState() State {
	return State{
		Sessions: map[string]Session{},
		Teams:    map[string]Team{},
	}
}
