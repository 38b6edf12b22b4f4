package propagation

import (
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/config"
)

// StepOptions narrows the walk from the origin document.
type StepOptions struct {
	// MaxDepth limits how many pairs away from the origin a step may be.
	// Zero or less means unlimited.
	MaxDepth int
	// SkipDocs are document types left out of the plan.
	SkipDocs []string
}

// ComputeSteps plans the propagation of a change made to origin.
//
// Upstream documents come first, furthest from the origin first, so that
// the root of the chain is reconsidered before its dependants. Downstream
// documents follow, nearest first. All steps start pending.
func ComputeSteps(pairs []config.Pair, origin string, opts StepOptions) []changes.PropagationStep {
	skip := make(map[string]bool, len(opts.SkipDocs))
	for _, d := range opts.SkipDocs {
		skip[d] = true
	}

	upstream := walk(pairs, origin, changes.DirectionUpstream, opts.MaxDepth)
	downstream := walk(pairs, origin, changes.DirectionDownstream, opts.MaxDepth)

	steps := []changes.PropagationStep{}
	for i := len(upstream) - 1; i >= 0; i-- {
		if skip[upstream[i]] {
			continue
		}
		steps = append(steps, changes.PropagationStep{
			DocType:   upstream[i],
			Direction: changes.DirectionUpstream,
			Status:    changes.StepPending,
		})
	}
	for _, doc := range downstream {
		if skip[doc] {
			continue
		}
		steps = append(steps, changes.PropagationStep{
			DocType:   doc,
			Direction: changes.DirectionDownstream,
			Status:    changes.StepPending,
		})
	}
	return steps
}

// walk is a breadth-first search over pairs in one direction. The result
// is ordered by distance from origin and never contains origin itself.
func walk(pairs []config.Pair, origin string, dir changes.Direction, maxDepth int) []string {
	type node struct {
		doc   string
		depth int
	}

	visited := map[string]bool{origin: true}
	queue := []node{{doc: origin}}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, p := range pairs {
			from, to := p.Upstream, p.Downstream
			if dir == changes.DirectionUpstream {
				from, to = p.Downstream, p.Upstream
			}
			if from != cur.doc || visited[to] {
				continue
			}
			visited[to] = true
			out = append(out, to)
			queue = append(queue, node{doc: to, depth: cur.depth + 1})
		}
	}
	return out
}
