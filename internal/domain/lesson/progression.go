package lesson

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// Pure derivation of lock/unlock state for a lesson list. Lock evaluation
// reads completion state only, never XP: a user who somehow gained XP but
// skipped a lesson is still locked out of the ones behind it.
// ══════════════════════════════════════════════════════════════════════════════

// State is a lesson decorated with the user's progression flags.
type State struct {
	Lesson    Lesson
	Completed bool
	Locked    bool
}

// DeriveStates returns the lessons in ascending order-index order, each with
// its completed and locked flags for the given set of completed lesson ids.
//
// A lesson with order index 1 is always unlocked. A lesson with order index
// k > 1 is locked iff the lesson with order index k-1 within the same module
// is not completed. When no lesson carries index k-1 (a gap in the sequence)
// the lesson stays unlocked.
func DeriveStates(lessons []Lesson, completedIDs map[int64]bool) []State {
	ordered := make([]Lesson, len(lessons))
	copy(ordered, lessons)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	byIndex := make(map[int]Lesson, len(ordered))
	for _, l := range ordered {
		byIndex[l.OrderIndex] = l
	}

	states := make([]State, 0, len(ordered))
	for _, l := range ordered {
		locked := false
		if l.OrderIndex > 1 {
			if prev, ok := byIndex[l.OrderIndex-1]; ok && !completedIDs[prev.ID] {
				locked = true
			}
		}

		states = append(states, State{
			Lesson:    l,
			Completed: completedIDs[l.ID],
			Locked:    locked,
		})
	}

	return states
}
