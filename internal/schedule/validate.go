package schedule

import (
	"strings"

	"service-scheduling/internal/domain"
)

// candidate is a slot under consideration: an item bound to a day, an
// interval and a venue, plus the fixed resource keys (staff, cohort) the
// item contends on regardless of venue.
type candidate struct {
	ItemID    int64
	Day       domain.Day
	Start     int
	End       int
	VenueID   int64
	FixedKeys []resourceKey
}

func (c candidate) interval() interval {
	return interval{Day: c.Day, Start: c.Start, End: c.End, ItemID: c.ItemID}
}

func resourceKindOf(key resourceKey) string {
	prefix, _, _ := strings.Cut(string(key), ":")
	return prefix
}

// checkSlot decides legality of a candidate against the current index.
// Stateless with respect to the candidate: on success the index is
// untouched, and the caller decides whether to reserve. On collision the
// returned error names the resource and the occupying item, for
// user-facing messages.
func checkSlot(index *availabilityIndex, c candidate) *domain.ConflictError {
	iv := c.interval()
	keys := make([]resourceKey, 0, len(c.FixedKeys)+1)
	keys = append(keys, venueKey(c.VenueID))
	keys = append(keys, c.FixedKeys...)

	for _, key := range keys {
		occ, occupied := index.occupant(key, iv)
		if !occupied {
			continue
		}
		return &domain.ConflictError{
			Resource:    resourceKindOf(key),
			ResourceKey: string(key),
			WithItemID:  occ.ItemID,
			Day:         occ.Day,
			StartMinute: occ.Start,
			EndMinute:   occ.End,
		}
	}
	return nil
}

// commit reserves every resource key of an accepted candidate. The
// candidate must have passed checkSlot against the same index.
func commit(index *availabilityIndex, c candidate) error {
	iv := c.interval()
	if err := index.reserve(venueKey(c.VenueID), iv); err != nil {
		return err
	}
	for _, key := range c.FixedKeys {
		if err := index.reserve(key, iv); err != nil {
			return err
		}
	}
	return nil
}
