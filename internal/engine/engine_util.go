package engine

import (
	"maps"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
)

const defaultTeamFormationMinutes = 4

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Nondeterminism lives behind package vars so tests can stub it.
var (
	timeNow = time.Now
	genID   = uuid.NewString
	genCode = func() string {
		b := make([]byte, 6)
		for i := range b {
			b[i] = codeCharset[rand.Intn(len(codeCharset))]
		}
		return string(b)
	}
)

// calcTimeCost derives the team's total from scratch: all three
// selection lists plus both GM-assigned review lists.
func calcTimeCost(t Team) int {
	total := 0
	for _, list := range t.SelectedCards {
		for _, c := range list {
			total += c.TimeCost
		}
	}
	for _, c := range t.ReviewOutcome.AssignedConcerns {
		total += c.TimeCost
	}
	for _, c := range t.ReviewOutcome.AssignedDetails {
		total += c.TimeCost
	}
	return total
}

func combinedSelection(t Team) []Card {
	out := make([]Card, 0, len(t.SelectedCards[ListAcquisition])+len(t.SelectedCards[ListAnalysis])+len(t.SelectedCards[ListDetails]))
	out = append(out, t.SelectedCards[ListAcquisition]...)
	out = append(out, t.SelectedCards[ListAnalysis]...)
	out = append(out, t.SelectedCards[ListDetails]...)
	return out
}

func hasCard(cards []Card, id string) bool {
	return slices.ContainsFunc(cards, func(c Card) bool { return c.ID == id })
}

// conflictsWithSelection treats incompatibility as symmetric: either
// side declaring the other is enough to block the pair.
func conflictsWithSelection(selected []Card, card Card) bool {
	for _, c := range selected {
		if slices.Contains(c.IncompatibleWith, card.ID) || slices.Contains(card.IncompatibleWith, c.ID) {
			return true
		}
	}
	return false
}

// requirementMet implements the any-of policy: a card with
// requirements is admitted as soon as one of them is selected.
func requirementMet(selected []Card, card Card) bool {
	if len(card.Requires) == 0 {
		return true
	}
	for _, req := range card.Requires {
		if hasCard(selected, req) {
			return true
		}
	}
	return false
}

func withCard(sel map[SelectionList][]Card, list SelectionList, card Card) map[SelectionList][]Card {
	out := maps.Clone(sel)
	out[list] = append(slices.Clone(out[list]), card)
	return out
}

func withoutCard(sel map[SelectionList][]Card, list SelectionList, cardID string) map[SelectionList][]Card {
	out := maps.Clone(sel)
	out[list] = slices.DeleteFunc(slices.Clone(out[list]), func(c Card) bool { return c.ID == cardID })
	return out
}

func dropCard(cards []Card, id string) []Card {
	return slices.DeleteFunc(slices.Clone(cards), func(c Card) bool { return c.ID == id })
}

func replaceSession(s State, sess Session) Result {
	sessions := maps.Clone(s.Sessions)
	sessions[sess.ID] = sess
	return Result{State: State{Sessions: sessions, Teams: s.Teams}}
}

func replaceTeam(s State, t Team) Result {
	teams := maps.Clone(s.Teams)
	teams[t.ID] = t
	return Result{State: State{Sessions: s.Sessions, Teams: teams}}
}
