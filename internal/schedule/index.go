package schedule

import (
	"fmt"
	"sort"

	"service-scheduling/internal/domain"
)

type resourceKey string

func venueKey(venueID int64) resourceKey {
	return resourceKey(fmt.Sprintf("venue:%d", venueID))
}

func staffKey(staffID int64) resourceKey {
	return resourceKey(fmt.Sprintf("staff:%d", staffID))
}

func cohortKey(departmentID, levelID int64) resourceKey {
	return resourceKey(fmt.Sprintf("cohort:%d:%d", departmentID, levelID))
}

// interval is one reservation on a resource: a half-open minute range on
// one day, tagged with the item that holds it so conflicts can be named.
type interval struct {
	Day    domain.Day
	Start  int
	End    int
	ItemID int64
}

func (iv interval) before(other interval) bool {
	if iv.Day != other.Day {
		return iv.Day.Less(other.Day)
	}
	return iv.Start < other.Start
}

// overlaps reports whether two reservations collide. Intervals are
// half-open, so [a,b) and [b,c) do not overlap; cross-day intervals
// never overlap.
func (iv interval) overlaps(other interval) bool {
	if iv.Day != other.Day {
		return false
	}
	return iv.Start < other.End && other.Start < iv.End
}

// availabilityIndex tracks, per resource, the intervals already reserved
// during one generation run or one update attempt. Interval lists are kept
// sorted by (day, start) so the overlap probe only has to inspect the
// insertion point's neighbours.
type availabilityIndex struct {
	reserved map[resourceKey][]interval
}

func newAvailabilityIndex() *availabilityIndex {
	return &availabilityIndex{reserved: make(map[resourceKey][]interval)}
}

func (x *availabilityIndex) insertionPoint(ivs []interval, iv interval) int {
	return sort.Search(len(ivs), func(i int) bool { return !ivs[i].before(iv) })
}

// occupant returns the existing reservation that would collide with the
// candidate interval, if any.
func (x *availabilityIndex) occupant(key resourceKey, iv interval) (interval, bool) {
	ivs := x.reserved[key]
	pos := x.insertionPoint(ivs, iv)
	if pos > 0 && ivs[pos-1].overlaps(iv) {
		return ivs[pos-1], true
	}
	if pos < len(ivs) && ivs[pos].overlaps(iv) {
		return ivs[pos], true
	}
	return interval{}, false
}

func (x *availabilityIndex) isFree(key resourceKey, iv interval) bool {
	_, occupied := x.occupant(key, iv)
	return !occupied
}

// reserve inserts the interval, keeping the list sorted. Callers must
// check isFree first; reserving an occupied interval is a no-op error.
func (x *availabilityIndex) reserve(key resourceKey, iv interval) error {
	ivs := x.reserved[key]
	pos := x.insertionPoint(ivs, iv)
	if pos > 0 && ivs[pos-1].overlaps(iv) {
		return domain.ErrAlreadyReserved
	}
	if pos < len(ivs) && ivs[pos].overlaps(iv) {
		return domain.ErrAlreadyReserved
	}
	ivs = append(ivs, interval{})
	copy(ivs[pos+1:], ivs[pos:])
	ivs[pos] = iv
	x.reserved[key] = ivs
	return nil
}

// release removes the reservation matching (day, start, end) exactly.
// Used when replacing a slot: the old interval is released before the
// candidate is validated.
func (x *availabilityIndex) release(key resourceKey, iv interval) bool {
	ivs := x.reserved[key]
	for i, existing := range ivs {
		if existing.Day == iv.Day && existing.Start == iv.Start && existing.End == iv.End {
			x.reserved[key] = append(ivs[:i], ivs[i+1:]...)
			return true
		}
	}
	return false
}
