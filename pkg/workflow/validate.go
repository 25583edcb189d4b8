package workflow

import (
	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// Validate checks a step set for structural correctness. It fails with a
// GraphError when the set is empty, a step id is declared twice, a
// dependency names an absent step, or the dependency relation contains a
// cycle. Validation runs before any step executes.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return &enginerrors.GraphError{Kind: enginerrors.GraphEmpty}
	}

	declared := make(map[string]bool, len(steps))
	for _, step := range steps {
		if declared[step.ID] {
			return &enginerrors.GraphError{
				Kind:   enginerrors.GraphDuplicateStep,
				StepID: step.ID,
			}
		}
		declared[step.ID] = true
	}

	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if !declared[dep] {
				return &enginerrors.GraphError{
					Kind:         enginerrors.GraphUnknownDependency,
					StepID:       step.ID,
					DependencyID: dep,
				}
			}
		}
	}

	return detectCycle(steps)
}

// detectCycle performs a depth-first traversal over the dependency relation
// with two markers per node: fully explored, and on the active path. Reaching
// a node that is already on the active path signals a cycle. The traversal
// uses an explicit stack so arbitrarily deep graphs cannot overflow the
// goroutine stack.
func detectCycle(steps []Step) error {
	deps := make(map[string][]string, len(steps))
	for _, step := range steps {
		deps[step.ID] = step.Dependencies
	}

	visited := make(map[string]bool, len(steps))
	onPath := make(map[string]bool, len(steps))

	// Each frame revisits its node twice: first to expand dependencies
	// (enter), then to retire it from the active path (leave).
	type frame struct {
		id    string
		enter bool
	}

	for _, step := range steps {
		if visited[step.ID] {
			continue
		}

		stack := []frame{{id: step.ID, enter: true}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if !top.enter {
				onPath[top.id] = false
				visited[top.id] = true
				continue
			}

			if visited[top.id] {
				continue
			}
			if onPath[top.id] {
				return &enginerrors.GraphError{
					Kind:   enginerrors.GraphCycle,
					StepID: top.id,
				}
			}

			onPath[top.id] = true
			stack = append(stack, frame{id: top.id, enter: false})
			for _, dep := range deps[top.id] {
				if visited[dep] {
					continue
				}
				if onPath[dep] {
					return &enginerrors.GraphError{
						Kind:   enginerrors.GraphCycle,
						StepID: dep,
					}
				}
				stack = append(stack, frame{id: dep, enter: true})
			}
		}
	}

	return nil
}
