package schedule

import (
	"sort"

	"service-scheduling/internal/domain"
)

// placementItem is one course or exam course awaiting a slot: its
// duration, its preferred venue, and the fixed resource keys it contends
// on regardless of which venue it lands in.
type placementItem struct {
	ItemID      int64
	CourseCode  string
	Requirement string
	Duration    int
	VenueID     int64
	FixedKeys   []resourceKey
}

const maxRecordedConflicts = 3

// allocate places every item on the grid, or fails the whole run. The
// search is a deterministic greedy with a venue-substitution fallback:
// items are ordered compulsory-first then by id, candidates are tried in
// canonical (venue, day, start) order with the preferred venue first, and
// the first legal candidate wins. No backtracking: accepted output is
// conflict-free, but a packing a smarter solver could find may still be
// reported unschedulable.
func allocate(index *availabilityIndex, grid Grid, venueIDs []int64, items []placementItem) ([]domain.Slot, error) {
	ordered := make([]placementItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := requirementRank(ordered[i].Requirement), requirementRank(ordered[j].Requirement)
		if ri != rj {
			return ri < rj
		}
		return ordered[i].ItemID < ordered[j].ItemID
	})

	pool := make([]int64, len(venueIDs))
	copy(pool, venueIDs)
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })

	slots := make([]domain.Slot, 0, len(ordered))
	for _, item := range ordered {
		slot, err := place(index, grid, pool, item)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func place(index *availabilityIndex, grid Grid, pool []int64, item placementItem) (domain.Slot, error) {
	unsched := &domain.UnschedulableError{ItemID: item.ItemID, CourseCode: item.CourseCode}

	for _, vid := range venueOrder(item.VenueID, pool) {
		unsched.TriedVenues++
		for _, gridDay := range grid.Days {
			for start := gridDay.MinStart; start+item.Duration <= gridDay.MaxEnd; start += grid.Step {
				unsched.TriedSlots++
				cand := candidate{
					ItemID:    item.ItemID,
					Day:       gridDay.Day,
					Start:     start,
					End:       start + item.Duration,
					VenueID:   vid,
					FixedKeys: item.FixedKeys,
				}
				if conflict := checkSlot(index, cand); conflict != nil {
					if len(unsched.LastConflicts) < maxRecordedConflicts {
						unsched.LastConflicts = append(unsched.LastConflicts, conflict.Error())
					}
					continue
				}
				if err := commit(index, cand); err != nil {
					return domain.Slot{}, err
				}
				return domain.Slot{
					ItemID:      cand.ItemID,
					Day:         cand.Day,
					StartMinute: cand.Start,
					EndMinute:   cand.End,
					VenueID:     cand.VenueID,
				}, nil
			}
		}
	}
	return domain.Slot{}, unsched
}

// venueOrder yields the preferred venue first, then the rest of the
// institution's venues ascending by id.
func venueOrder(preferred int64, pool []int64) []int64 {
	order := make([]int64, 0, len(pool)+1)
	order = append(order, preferred)
	for _, vid := range pool {
		if vid != preferred {
			order = append(order, vid)
		}
	}
	return order
}

func requirementRank(requirement string) int {
	if requirement == domain.RequirementCompulsory {
		return 0
	}
	return 1
}
