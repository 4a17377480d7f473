// Package icebreaker hands out conversation prompts for new sessions.
package icebreaker

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/models"
)

// DefaultPrompts seed an empty prompt table.
var DefaultPrompts = []string{
	"What's the best thing that happened to you this week?",
	"If you could live anywhere for a year, where would it be?",
	"What's a hobby you picked up recently?",
	"Which song have you had on repeat lately?",
	"What's the most underrated food you know?",
	"What would your perfect Sunday look like?",
	"What's something you're looking forward to?",
	"Which fictional world would you want to visit?",
}

// Source loads the active prompt set.
type Source interface {
	ListActiveIcebreakers(ctx context.Context) ([]models.Icebreaker, error)
}

// Selector picks prompts uniformly at random from the active set. There is no
// cross-session dedup.
type Selector struct {
	mu      sync.RWMutex
	prompts []models.Icebreaker
}

func NewSelector(prompts []models.Icebreaker) *Selector {
	s := &Selector{}
	s.Replace(prompts)
	return s
}

// LoadSelector builds a selector from the active prompts of src.
func LoadSelector(ctx context.Context, src Source) (*Selector, error) {
	prompts, err := src.ListActiveIcebreakers(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "icebreaker").Int("prompts", len(prompts)).Msg("icebreakers loaded")
	return NewSelector(prompts), nil
}

// Replace swaps the active prompt set. Inactive prompts are skipped.
func (s *Selector) Replace(prompts []models.Icebreaker) {
	active := make([]models.Icebreaker, 0, len(prompts))
	for _, p := range prompts {
		if p.Active {
			active = append(active, p)
		}
	}
	s.mu.Lock()
	s.prompts = active
	s.mu.Unlock()
}

// GetRandom returns a uniformly chosen prompt, or false when none are active.
func (s *Selector) GetRandom() (models.Icebreaker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.prompts) == 0 {
		return models.Icebreaker{}, false
	}
	return s.prompts[rand.IntN(len(s.prompts))], true
}

func (s *Selector) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}
