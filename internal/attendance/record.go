package attendance

import "time"

// Kind distinguishes the two record types in the log.
type Kind string

const (
	KindIn  Kind = "IN"
	KindOut Kind = "OUT"
)

// Record is one append-only entry in the attendance log. Records are never
// mutated or deleted once written; every report is a projection over them.
type Record struct {
	ID             string
	UserID         int64
	SiteID         *int64
	Kind           Kind
	Timestamp      time.Time
	Day            string // calendar day in the configured timezone, "2006-01-02"
	Lat            float64
	Lon            float64
	DistanceMeters float64
	Late           bool // meaningful only for IN records
	CreatedAt      time.Time
}
