// Package catalog holds the static card and experiment tables. The
// engine never reads from here; the catalog is a collaborator the
// presentation layer (and the HTTP API) looks things up in.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/coloc-game/backend/internal/engine"
)

//go:embed data/*.json
var dataFS embed.FS

// ExperimentDefinition describes one of the six fixed experiments a
// team can roll into.
type ExperimentDefinition struct {
	ID        engine.ExperimentNumber `json:"id"`
	Title     string                  `json:"title"`
	Stainings []string                `json:"stainings"`
	Question  string                  `json:"question"`
	IconPath  string                  `json:"iconPath,omitempty"`
}

type Catalog struct {
	Cards         []engine.Card
	Experiments   []ExperimentDefinition
	ReviewIssues  []engine.Card
	ReviewDetails []engine.Card

	cardsByID       map[string]engine.Card
	experimentsByID map[engine.ExperimentNumber]ExperimentDefinition
}

// Load decodes the embedded tables. Called once at startup.
func Load() (*Catalog, error) {
	c := &Catalog{
		cardsByID:       map[string]engine.Card{},
		experimentsByID: map[engine.ExperimentNumber]ExperimentDefinition{},
	}
	if err := readData("data/cards.json", &c.Cards); err != nil {
		return nil, err
	}
	if err := readData("data/experiments.json", &c.Experiments); err != nil {
		return nil, err
	}
	if err := readData("data/review_issues.json", &c.ReviewIssues); err != nil {
		return nil, err
	}
	if err := readData("data/review_details.json", &c.ReviewDetails); err != nil {
		return nil, err
	}
	for _, card := range c.Cards {
		if _, dup := c.cardsByID[card.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate card id %q", card.ID)
		}
		c.cardsByID[card.ID] = card
	}
	for _, card := range append(append([]engine.Card{}, c.ReviewIssues...), c.ReviewDetails...) {
		if _, dup := c.cardsByID[card.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate card id %q", card.ID)
		}
		c.cardsByID[card.ID] = card
	}
	for _, exp := range c.Experiments {
		c.experimentsByID[exp.ID] = exp
	}
	return c, nil
}

func readData(name string, v any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("catalog: parsing %s: %w", name, err)
	}
	return nil
}

// CardByID looks a card up across the deck and both review tables.
func (c *Catalog) CardByID(id string) (engine.Card, bool) {
	card, ok := c.cardsByID[id]
	return card, ok
}

func (c *Catalog) ExperimentByID(id engine.ExperimentNumber) (ExperimentDefinition, bool) {
	exp, ok := c.experimentsByID[id]
	return exp, ok
}
