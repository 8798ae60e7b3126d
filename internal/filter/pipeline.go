package filter

// Stat records what one stage of a Run did.
type Stat struct {
	Name         string `json:"name"`
	InputCount   int    `json:"inputCount"`
	KeptCount    int    `json:"keptCount"`
	RemovedCount int    `json:"removedCount"`
}

// Result is the outcome of Run: the survivors of the last stage, every item
// removed along the way, and one Stat per stage in order.
type Result[T any] struct {
	Output  []T
	Removed []T
	Stats   []Stat
}

// Run applies filters left to right, feeding each stage's kept items into
// the next. Items are attributed to the first stage that removes them.
func Run[T any](items []T, filters ...Filter[T]) Result[T] {
	res := Result[T]{
		Output:  items,
		Removed: make([]T, 0),
		Stats:   make([]Stat, 0, len(filters)),
	}
	for _, f := range filters {
		p := f.Apply(res.Output)
		res.Stats = append(res.Stats, Stat{
			Name:         f.Name(),
			InputCount:   len(res.Output),
			KeptCount:    len(p.Kept),
			RemovedCount: len(p.Removed),
		})
		res.Output = p.Kept
		res.Removed = append(res.Removed, p.Removed...)
	}
	return res
}

// RemovedBy counts the items a stage with the given name removed, summed over
// all stats carrying that name.
func RemovedBy(stats []Stat, name string) int {
	n := 0
	for _, s := range stats {
		if s.Name == name {
			n += s.RemovedCount
		}
	}
	return n
}
