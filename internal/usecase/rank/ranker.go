// Package rank de-duplicates scored candidates and orders them, optionally
// with a small random perturbation and a diversity bonus.
package rank

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/kailas-cloud/recipematch/internal/domain/match"
)

// Options controls randomized ordering. The zero value ranks by similarity only.
type Options struct {
	// Perturbation scales each similarity by a factor drawn from [1-p, 1+p].
	Perturbation float64
	// Diversity orders by sim^2 plus uniform noise in [0, DiversityNoise).
	Diversity      bool
	DiversityNoise float64
}

func (o Options) random() bool {
	return o.Perturbation > 0 || (o.Diversity && o.DiversityNoise > 0)
}

// Ranker orders candidates for one request. Not safe for concurrent use.
type Ranker struct {
	opts Options
	rng  *rand.Rand
}

// New creates a Ranker. rng may be nil when opts draw no randomness.
func New(opts Options, rng *rand.Rand) *Ranker {
	if rng == nil && opts.random() {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // ranking noise
	}
	return &Ranker{opts: opts, rng: rng}
}

// NewSeeded creates a Ranker whose order is reproducible for a given seed.
func NewSeeded(opts Options, seed uint64) *Ranker {
	return New(opts, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))) //nolint:gosec // ranking noise
}

// Rank drops candidates whose key was already seen (first wins, in input
// order), scores the rest, sorts by score desc and keeps at most desired.
// Similarity is left untouched; Rank is set to the 1-based position.
func (r *Ranker) Rank(cands []match.Candidate, key func(match.Candidate) string, desired int) []match.Candidate {
	seen := make(map[string]struct{}, len(cands))
	type scored struct {
		c     match.Candidate
		score float64
	}
	pool := make([]scored, 0, len(cands))
	for _, c := range cands {
		k := key(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		pool = append(pool, scored{c: c, score: r.score(c.Similarity)})
	}

	slices.SortStableFunc(pool, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if desired >= 0 && len(pool) > desired {
		pool = pool[:desired]
	}
	out := make([]match.Candidate, len(pool))
	for i, s := range pool {
		out[i] = s.c
		out[i].Rank = i + 1
	}
	return out
}

func (r *Ranker) score(sim float64) float64 {
	if r.opts.Perturbation > 0 {
		sim *= 1 + (r.rng.Float64()*2-1)*r.opts.Perturbation
	}
	if r.opts.Diversity {
		s := sim * sim
		if r.opts.DiversityNoise > 0 {
			s += r.rng.Float64() * r.opts.DiversityNoise
		}
		return s
	}
	return sim
}

// ByRecipe is the default key: recipe URL, or title when the URL is empty.
func ByRecipe(c match.Candidate) string {
	return c.Recipe.DedupKey()
}
