// Package selection picks and orders the questions shown for one attempt of
// a QTI assessment test.
package selection

import (
	"hash/fnv"
	"math/rand/v2"
	"slices"

	"github.com/bjornpagen/nice-sub010/internal/qti"
	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
)

// Options selects the rotation mode. An empty BaseSeed means random mode.
type Options struct {
	BaseSeed      string
	AttemptNumber int
}

func (o Options) Deterministic() bool { return o.BaseSeed != "" }

type group struct {
	id      string
	items   []qti.ResolvedQuestion
	sel     int
	shuffle *bool
}

// Apply returns the questions to present, section by section in document order.
//
// In deterministic mode every section pool is permuted once per BaseSeed and
// each attempt takes the next window of that permutation, so a given
// (seed, attempt) always yields the same questions and consecutive attempts
// never yield the same sequence for a pool of two or more distinct items.
// When every section holds a single item, the sections form one pool in
// both modes.
func Apply(st parser.TestStructure, questions []qti.ResolvedQuestion, opts Options) []qti.ResolvedQuestion {
	groups := groupBySection(st, questions)
	if allSingletons(groups) {
		groups = []group{{items: questions}}
	}
	out := make([]qti.ResolvedQuestion, 0, len(questions))
	for _, g := range groups {
		out = append(out, pick(g, opts)...)
	}
	return out
}

func groupBySection(st parser.TestStructure, questions []qti.ResolvedQuestion) []group {
	index := map[string]int{}
	var groups []group
	for _, q := range questions {
		i, ok := index[q.Reference.Section]
		if !ok {
			g := group{id: q.Reference.Section}
			if sec, found := st.Section(g.id); found {
				g.sel, g.shuffle = sec.Select, sec.Shuffle
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[g.id] = i
		}
		groups[i].items = append(groups[i].items, q)
	}
	return groups
}

// allSingletons reports whether no section has anything to rotate on its own
// while the test as a whole does.
func allSingletons(groups []group) bool {
	total := 0
	for _, g := range groups {
		if len(g.items) > 1 || (g.shuffle != nil && !*g.shuffle) {
			return false
		}
		total += len(g.items)
	}
	return total > 1
}

func pick(g group, opts Options) []qti.ResolvedQuestion {
	n := len(g.items)
	if n == 0 {
		return nil
	}
	count := n
	if g.sel > 0 && g.sel < n {
		count = g.sel
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	swap := func(i, j int) { perm[i], perm[j] = perm[j], perm[i] }

	var chosen []int
	if !opts.Deterministic() {
		rand.Shuffle(n, swap)
		chosen = perm[:count]
	} else {
		seeded(opts.BaseSeed+"|"+g.id).Shuffle(n, swap)
		attempt := max(opts.AttemptNumber, 1)
		step := count
		if count == n {
			step = 1
		}
		offset := ((attempt - 1) % n) * step % n
		chosen = make([]int, count)
		for i := range chosen {
			chosen[i] = perm[(offset+i)%n]
		}
	}

	if g.shuffle != nil && !*g.shuffle {
		slices.Sort(chosen)
	}
	out := make([]qti.ResolvedQuestion, len(chosen))
	for i, idx := range chosen {
		out[i] = g.items[idx]
	}
	return out
}

func seeded(seed string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	s1 := h.Sum64()
	_, _ = h.Write([]byte{0xff})
	return rand.New(rand.NewPCG(s1, h.Sum64()))
}
