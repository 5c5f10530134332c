package opt

import "context"

type sinkKey struct{}

// WithMetricsSink returns a ctx under which every engine run reports its
// Metrics to fn. fn may be called from the engine's goroutine.
func WithMetricsSink(ctx context.Context, fn func(Metrics)) context.Context {
	return context.WithValue(ctx, sinkKey{}, fn)
}

func emit(ctx context.Context, m Metrics) {
	if fn, ok := ctx.Value(sinkKey{}).(func(Metrics)); ok && fn != nil {
		fn(m)
	}
}

// Map flattens m for storage.
func (m Metrics) Map() map[string]any {
	snaps := make([]map[string]any, 0, len(m.Snapshots))
	for _, s := range m.Snapshots {
		snaps = append(snaps, map[string]any{
			"iteration": s.Iteration,
			"removal":   []float64{s.Removal[0], s.Removal[1]},
			"insertion": []float64{s.Insertion[0], s.Insertion[1]},
		})
	}
	return map[string]any{
		"iterations":            m.Iterations,
		"improvements":          m.Improvements,
		"acceptedWorse":         m.AcceptedWorse,
		"removalSelects":        []int{m.RemovalSelects[0], m.RemovalSelects[1]},
		"insertSelects":         []int{m.InsertSelects[0], m.InsertSelects[1]},
		"seedCost":              m.SeedCost,
		"bestCost":              m.BestCost,
		"finalRemovalWeights":   []float64{m.FinalRemovalWeights[0], m.FinalRemovalWeights[1]},
		"finalInsertionWeights": []float64{m.FinalInsertionWeights[0], m.FinalInsertionWeights[1]},
		"elapsedMs":             m.Elapsed.Milliseconds(),
		"snapshots":             snaps,
	}
}
