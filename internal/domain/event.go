package domain

type SchedulingEvent struct {
	EventType string
	Payload   any
}

type SlotPayload struct {
	ItemID    int64
	Day       string
	StartTime string
	EndTime   string
	VenueID   int64
}

// TimetableGeneratedPayload is emitted in the same transaction that
// persists the timetable's slots. The artifact is rendered afterwards,
// so the payload carries no artifact reference; consumers fetch by title.
type TimetableGeneratedPayload struct {
	TimetableID int64
	Title       string
	Kind        string
	SlotCount   int
}

type SlotUpdatedPayload struct {
	TimetableID int64
	Title       string
	Slot        SlotPayload
}

func SlotToPayload(slot Slot) SlotPayload {
	return SlotPayload{
		ItemID:    slot.ItemID,
		Day:       slot.Day.String(),
		StartTime: FormatMinute(slot.StartMinute),
		EndTime:   FormatMinute(slot.EndMinute),
		VenueID:   slot.VenueID,
	}
}
