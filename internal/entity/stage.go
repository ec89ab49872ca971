package entity

import (
	"errors"
	"fmt"
)

var (
	ErrStageWonAndLost    = errors.New("stage cannot be both won and lost")
	ErrDuplicateStageKey  = errors.New("duplicate stage key")
	ErrInvalidProbability = errors.New("probability must be between 0 and 100")
)

// Stage é uma coluna do kanban configurada pelo tenant.
type Stage struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	RecordType     RecordType `json:"record_type"`
	Key            string     `json:"key"`
	Label          string     `json:"label"`
	Color          string     `json:"color"`
	Probability    int        `json:"probability"`
	Position       int        `json:"position"`
	IsWon          bool       `json:"is_won"`
	IsLost         bool       `json:"is_lost"`
}

func (s Stage) Validate() error {
	if s.IsWon && s.IsLost {
		return fmt.Errorf("%s: %w", s.Key, ErrStageWonAndLost)
	}
	if s.Probability < 0 || s.Probability > 100 {
		return fmt.Errorf("%s: %w", s.Key, ErrInvalidProbability)
	}
	return nil
}

// StageCatalog são os estágios de um record type, ordenados por Position.
type StageCatalog []Stage

func (c StageCatalog) Find(key string) (*Stage, bool) {
	for i := range c {
		if c[i].Key == key {
			return &c[i], true
		}
	}
	return nil, false
}

func (c StageCatalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, s := range c {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("%s: %w", s.Key, ErrDuplicateStageKey)
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}
