// Package threshold relaxes the similarity cut-off over an already fetched
// candidate pool until enough candidates survive or the floor is reached.
package threshold

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/recipematch/internal/domain/match"
)

// State is the controller's position in its state machine.
type State string

const (
	StateSearching State = "searching"
	StateRelaxing  State = "relaxing"
	StateAccepted  State = "accepted"
	StateExhausted State = "exhausted"
)

const epsilon = 1e-9

// Config holds the relaxation schedule.
type Config struct {
	Initial    float64
	Floor      float64
	Step       float64
	MinDesired int
}

// Validate checks the schedule is well formed.
func (c Config) Validate() error {
	switch {
	case c.Floor < 0 || c.Initial > 1:
		return fmt.Errorf("thresholds must be within [0,1], got initial=%v floor=%v", c.Initial, c.Floor)
	case c.Floor > c.Initial:
		return fmt.Errorf("floor %v exceeds initial threshold %v", c.Floor, c.Initial)
	case c.Step <= 0:
		return errors.New("step must be positive")
	case c.MinDesired < 1:
		return errors.New("min desired must be at least 1")
	}
	return nil
}

// Result is the outcome of one Apply call.
type Result struct {
	Candidates []match.Candidate // similarity desc, all >= Threshold
	Threshold  float64
	Steps      int
	State      State // StateAccepted or StateExhausted
}

// Controller applies a Config. It is stateless between calls.
type Controller struct {
	cfg Config
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("threshold config: %w", err)
	}
	return &Controller{cfg: cfg}, nil
}

// Apply filters cands starting at the initial threshold and lowers it by Step
// while fewer than MinDesired survive. It never goes below Floor and never
// asks for more candidates. The input slice is not modified.
func (c *Controller) Apply(cands []match.Candidate) Result {
	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b match.Candidate) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	state := StateSearching
	steps := 0
	t := c.cfg.Initial
	kept := above(sorted, t)

	for {
		switch state {
		case StateSearching, StateRelaxing:
			if len(kept) >= c.cfg.MinDesired {
				state = StateAccepted
				continue
			}
			if t <= c.cfg.Floor+epsilon {
				state = StateExhausted
				continue
			}
			steps++
			t = math.Max(c.cfg.Floor, round(c.cfg.Initial-float64(steps)*c.cfg.Step))
			kept = above(sorted, t)
			state = StateRelaxing
		case StateAccepted, StateExhausted:
			return Result{Candidates: kept, Threshold: t, Steps: steps, State: state}
		}
	}
}

// above returns the prefix of sorted (similarity desc) at or above t.
func above(sorted []match.Candidate, t float64) []match.Candidate {
	n, _ := slices.BinarySearchFunc(sorted, t, func(c match.Candidate, t float64) int {
		if c.Similarity >= t {
			return -1
		}
		return 1
	})
	return sorted[:n]
}

// round trims accumulated float error so 0.55-4*0.05 lands on 0.35.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
