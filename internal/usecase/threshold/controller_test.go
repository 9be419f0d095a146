package threshold

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/recipematch/internal/domain/match"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

func defaultConfig() Config {
	return Config{Initial: 0.55, Floor: 0.35, Step: 0.05, MinDesired: 5}
}

func cands(sims ...float64) []match.Candidate {
	out := make([]match.Candidate, len(sims))
	for i, s := range sims {
		out[i] = match.Candidate{Recipe: recipe.Recipe{ID: fmt.Sprintf("r%d", i)}, Similarity: s}
	}
	return out
}

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestApply_AcceptedAtInitial(t *testing.T) {
	c := newController(t, defaultConfig())
	res := c.Apply(cands(0.9, 0.8, 0.7, 0.6, 0.56, 0.2))

	assert.Equal(t, StateAccepted, res.State)
	assert.Equal(t, 0, res.Steps)
	assert.InDelta(t, 0.55, res.Threshold, 1e-9)
	assert.Len(t, res.Candidates, 5)
}

func TestApply_RelaxesUntilEnough(t *testing.T) {
	c := newController(t, defaultConfig())
	res := c.Apply(cands(0.6, 0.52, 0.47, 0.46, 0.44, 0.1))

	// 0.55 keeps 1, 0.50 keeps 2, 0.45 keeps 4, 0.40 keeps 5
	assert.Equal(t, StateAccepted, res.State)
	assert.Equal(t, 3, res.Steps)
	assert.InDelta(t, 0.40, res.Threshold, 1e-9)
	assert.Len(t, res.Candidates, 5)
}

func TestApply_ExhaustedNeverBelowFloor(t *testing.T) {
	c := newController(t, defaultConfig())
	res := c.Apply(cands(0.5, 0.4, 0.36, 0.34, 0.1))

	assert.Equal(t, StateExhausted, res.State)
	assert.InDelta(t, 0.35, res.Threshold, 1e-9)
	assert.Equal(t, 4, res.Steps)
	for _, cand := range res.Candidates {
		assert.GreaterOrEqual(t, cand.Similarity, 0.35)
	}
	assert.Len(t, res.Candidates, 3)
}

func TestApply_ExactFloorValueKept(t *testing.T) {
	c := newController(t, defaultConfig())
	res := c.Apply(cands(0.35))
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, StateExhausted, res.State)
}

func TestApply_JustBelowFloorDropped(t *testing.T) {
	res := newController(t, defaultConfig()).Apply(cands(0.5, 0.35, 0.3499999995))

	assert.Equal(t, StateExhausted, res.State)
	require.Len(t, res.Candidates, 2)
	for _, cand := range res.Candidates {
		assert.GreaterOrEqual(t, cand.Similarity, 0.35)
	}
}

func TestApply_Empty(t *testing.T) {
	res := newController(t, defaultConfig()).Apply(nil)
	assert.Equal(t, StateExhausted, res.State)
	assert.Empty(t, res.Candidates)
}

func TestApply_SortedDescAndInputUntouched(t *testing.T) {
	in := cands(0.6, 0.9, 0.7)
	res := newController(t, Config{Initial: 0.5, Floor: 0.5, Step: 0.1, MinDesired: 1}).Apply(in)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, 0.9, res.Candidates[0].Similarity)
	assert.Equal(t, 0.6, res.Candidates[2].Similarity)
	assert.Equal(t, 0.6, in[0].Similarity)
}

func TestApply_FloorEqualsInitial(t *testing.T) {
	res := newController(t, Config{Initial: 0.5, Floor: 0.5, Step: 0.05, MinDesired: 3}).Apply(cands(0.8))
	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 0, res.Steps)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"floor above initial", Config{Initial: 0.3, Floor: 0.5, Step: 0.05, MinDesired: 1}},
		{"zero step", Config{Initial: 0.5, Floor: 0.3, MinDesired: 1}},
		{"min desired", Config{Initial: 0.5, Floor: 0.3, Step: 0.05}},
		{"out of range", Config{Initial: 1.2, Floor: 0.3, Step: 0.05, MinDesired: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}
