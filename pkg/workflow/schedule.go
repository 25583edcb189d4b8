package workflow

import (
	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// topologicalOrder computes the execution order for a step set using Kahn's
// algorithm: every step appears after all of its dependencies. The ready
// queue is seeded and drained in declaration order, so the result is
// deterministic for a given step list. A produced order shorter than the
// step count means the graph holds a cycle that survived validation; that is
// reported rather than silently dropping steps.
func topologicalOrder(steps []Step) ([]string, error) {
	inDegree := make(map[string]int, len(steps))
	for _, step := range steps {
		inDegree[step.ID] = len(step.Dependencies)
	}

	queue := make([]string, 0, len(steps))
	for _, step := range steps {
		if inDegree[step.ID] == 0 {
			queue = append(queue, step.ID)
		}
	}

	order := make([]string, 0, len(steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		// Release dependents, scanning in declaration order.
		for _, step := range steps {
			for _, dep := range step.Dependencies {
				if dep != id {
					continue
				}
				inDegree[step.ID]--
				if inDegree[step.ID] == 0 {
					queue = append(queue, step.ID)
				}
			}
		}
	}

	if len(order) != len(steps) {
		return nil, &enginerrors.GraphError{Kind: enginerrors.GraphCycle}
	}

	return order, nil
}
