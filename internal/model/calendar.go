package model

// CalendarDaySummary is a derived read view of one date's slot counts,
// always recomputed from live slot data.
type CalendarDaySummary struct {
	Date           string `json:"date" db:"date"`
	HasSlots       bool   `json:"has_slots" db:"has_slots"`
	AvailableCount int    `json:"available_count" db:"available_count"`
	BookedCount    int    `json:"booked_count" db:"booked_count"`
}
