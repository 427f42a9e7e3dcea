package runner

import (
	"github.com/ibeckermayer/xpilot/internal/types"
)

// Rand is the randomness the topic picker needs. *humanize.Humanizer satisfies it.
type Rand interface {
	Intn(n int) int
}

// UsedTopicSet remembers which topics a run already picked.
type UsedTopicSet struct {
	used map[string]bool
}

// NewUsedTopicSet returns an empty set.
func NewUsedTopicSet() *UsedTopicSet {
	return &UsedTopicSet{used: map[string]bool{}}
}

// Len returns how many topics are marked used.
func (u *UsedTopicSet) Len() int { return len(u.used) }

// Pick chooses a random unused candidate and marks it used. When every candidate is
// used the set is reset and the choice is made across the full list.
func (u *UsedTopicSet) Pick(cands []types.TrendCandidate, rnd Rand) (types.TrendCandidate, bool) {
	c, ok := u.pick(cands, rnd, "")
	return c, ok
}

// PickOther is Pick excluding the topic with key exclude. It fails only when no other
// topic exists at all.
func (u *UsedTopicSet) PickOther(cands []types.TrendCandidate, exclude string, rnd Rand) (types.TrendCandidate, bool) {
	return u.pick(cands, rnd, exclude)
}

func (u *UsedTopicSet) pick(cands []types.TrendCandidate, rnd Rand, exclude string) (types.TrendCandidate, bool) {
	var pool, all []types.TrendCandidate
	for _, c := range cands {
		k := c.Key()
		if k == "" || k == exclude {
			continue
		}
		all = append(all, c)
		if !u.used[k] {
			pool = append(pool, c)
		}
	}
	if len(all) == 0 {
		return types.TrendCandidate{}, false
	}
	if len(pool) == 0 {
		u.used = map[string]bool{}
		pool = all
	}
	c := pool[rnd.Intn(len(pool))]
	u.used[c.Key()] = true
	return c, true
}
