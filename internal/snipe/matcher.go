package snipe

import (
	"sort"
	"time"

	"github.com/example/resy-sniper/internal/resy"
)

// Closest returns the slot whose start time is nearest to target. slots must
// be non-empty and sorted by start time ascending, which the availability
// endpoint guarantees. Ties resolve to the earlier slot.
func Closest(slots []resy.Slot, target time.Time) resy.Slot {
	i := sort.Search(len(slots), func(i int) bool {
		return !slots[i].Start.Before(target)
	})
	if i == 0 {
		return slots[0]
	}
	if i == len(slots) {
		return slots[len(slots)-1]
	}
	before, after := slots[i-1], slots[i]
	if after.Start.Sub(target) < target.Sub(before.Start) {
		return after
	}
	return before
}
