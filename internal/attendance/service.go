package attendance

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/geo"
)

// Code identifies a domain rejection. Rejections are outcomes, not errors:
// the error return of the service methods is reserved for system failures.
type Code string

const (
	CodeAlreadyCheckedIn  Code = "ALREADY_CHECKED_IN"
	CodeNoCheckInYet      Code = "NO_CHECK_IN_YET"
	CodeAlreadyCheckedOut Code = "ALREADY_CHECKED_OUT"
	CodeNoSiteConfigured  Code = "NO_SITE_CONFIGURED"
	CodeOutOfRange        Code = "OUT_OF_RANGE"
)

// State is the user's position in the per-day attendance lifecycle.
type State string

const (
	StateAbsent    State = "absent"
	StatePresent   State = "present"
	StateCompleted State = "completed"
)

// Log is the append-only record store the state machine writes to. The bool
// returned by Append is false when the per-day uniqueness constraint rejected
// the insert.
type Log interface {
	Append(ctx context.Context, rec Record) (Record, bool, error)
	DayRecord(ctx context.Context, userID int64, day string, kind Kind) (*Record, error)
}

// SiteSource supplies the active geofence sites.
type SiteSource interface {
	ActiveSites(ctx context.Context) ([]geo.Site, error)
}

// Rules are the wall-clock attendance rules. All day and lateness math runs
// in Loc.
type Rules struct {
	WorkStartHour   int
	WorkStartMinute int
	LateThreshold   time.Duration
	Loc             *time.Location
}

// CheckInResult reports the outcome of a check-in attempt. On
// AlreadyCheckedIn, Record carries the existing IN record.
type CheckInResult struct {
	OK           bool
	Code         Code
	Record       *Record
	Site         *geo.Site
	Distance     float64
	RadiusMeters float64
	Late         bool
	MinutesLate  int
}

// CheckOutResult reports the outcome of a check-out attempt.
type CheckOutResult struct {
	OK           bool
	Code         Code
	Record       *Record
	Site         *geo.Site
	Distance     float64
	RadiusMeters float64
	WorkDuration time.Duration
}

// DayStatus is a snapshot of one user's state for a calendar day.
type DayStatus struct {
	State        State
	In           *Record
	Out          *Record
	WorkDuration time.Duration
}

// Service enforces the per-user per-day check-in/check-out state machine.
type Service struct {
	log   Log
	sites SiteSource
	rules Rules
}

// NewService creates the state machine over the given log and site source.
func NewService(log Log, sites SiteSource, rules Rules) *Service {
	if rules.Loc == nil {
		rules.Loc = time.UTC
	}
	return &Service{log: log, sites: sites, rules: rules}
}

// day formats the calendar day for a timestamp in the configured timezone.
func (s *Service) day(t time.Time) string {
	return t.In(s.rules.Loc).Format("2006-01-02")
}

// workStart returns the scheduled start of the working day containing t.
func (s *Service) workStart(t time.Time) time.Time {
	local := t.In(s.rules.Loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		s.rules.WorkStartHour, s.rules.WorkStartMinute, 0, 0, s.rules.Loc)
}

// lateness computes the late flag and minutes late for a check-in time.
// Minutes late count from the scheduled start, not from the grace boundary.
func (s *Service) lateness(t time.Time) (bool, int) {
	start := s.workStart(t)
	if !t.After(start.Add(s.rules.LateThreshold)) {
		return false, 0
	}
	return true, int(t.Sub(start).Minutes())
}

// resolveSite finds the nearest active site and checks the geofence.
func (s *Service) resolveSite(ctx context.Context, coord geo.Point) (*geo.Site, float64, Code, error) {
	sites, err := s.sites.ActiveSites(ctx)
	if err != nil {
		return nil, 0, "", fmt.Errorf("load active sites: %w", err)
	}
	site, dist := geo.NearestSite(coord, sites)
	if site == nil {
		return nil, 0, CodeNoSiteConfigured, nil
	}
	if dist > site.RadiusMeters {
		return site, dist, CodeOutOfRange, nil
	}
	return site, dist, "", nil
}

// CheckIn records an IN for the user's calendar day. The eventTime is the
// authoritative server timestamp of the submission.
func (s *Service) CheckIn(ctx context.Context, userID int64, coord geo.Point, eventTime time.Time) (CheckInResult, error) {
	site, dist, code, err := s.resolveSite(ctx, coord)
	if err != nil {
		return CheckInResult{}, err
	}
	if code == CodeNoSiteConfigured {
		return CheckInResult{Code: code}, nil
	}
	if code == CodeOutOfRange {
		return CheckInResult{Code: code, Site: site, Distance: dist, RadiusMeters: site.RadiusMeters}, nil
	}

	day := s.day(eventTime)

	// Fast path; the log's uniqueness constraint is the real guard.
	existing, err := s.log.DayRecord(ctx, userID, day, KindIn)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("read check-in state: %w", err)
	}
	if existing != nil {
		return CheckInResult{Code: CodeAlreadyCheckedIn, Record: existing, Site: site, Distance: dist}, nil
	}

	late, minutesLate := s.lateness(eventTime)
	siteID := site.ID
	rec := Record{
		UserID:         userID,
		SiteID:         &siteID,
		Kind:           KindIn,
		Timestamp:      eventTime,
		Day:            day,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		DistanceMeters: dist,
		Late:           late,
	}
	inserted, ok, err := s.log.Append(ctx, rec)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("append check-in: %w", err)
	}
	if !ok {
		// Lost a race against a concurrent check-in for the same day.
		existing, err := s.log.DayRecord(ctx, userID, day, KindIn)
		if err != nil {
			return CheckInResult{}, fmt.Errorf("read check-in after conflict: %w", err)
		}
		return CheckInResult{Code: CodeAlreadyCheckedIn, Record: existing, Site: site, Distance: dist}, nil
	}

	return CheckInResult{
		OK:          true,
		Record:      &inserted,
		Site:        site,
		Distance:    dist,
		Late:        late,
		MinutesLate: minutesLate,
	}, nil
}

// CheckOut records an OUT for the user's calendar day. Check-out also
// requires physical presence inside a geofence, matching check-in.
func (s *Service) CheckOut(ctx context.Context, userID int64, coord geo.Point, eventTime time.Time) (CheckOutResult, error) {
	day := s.day(eventTime)

	out, err := s.log.DayRecord(ctx, userID, day, KindOut)
	if err != nil {
		return CheckOutResult{}, fmt.Errorf("read check-out state: %w", err)
	}
	if out != nil {
		return CheckOutResult{Code: CodeAlreadyCheckedOut, Record: out}, nil
	}

	in, err := s.log.DayRecord(ctx, userID, day, KindIn)
	if err != nil {
		return CheckOutResult{}, fmt.Errorf("read check-in state: %w", err)
	}
	if in == nil {
		return CheckOutResult{Code: CodeNoCheckInYet}, nil
	}

	site, dist, code, err := s.resolveSite(ctx, coord)
	if err != nil {
		return CheckOutResult{}, err
	}
	if code == CodeNoSiteConfigured {
		return CheckOutResult{Code: code}, nil
	}
	if code == CodeOutOfRange {
		return CheckOutResult{Code: code, Site: site, Distance: dist, RadiusMeters: site.RadiusMeters}, nil
	}

	siteID := site.ID
	rec := Record{
		UserID:         userID,
		SiteID:         &siteID,
		Kind:           KindOut,
		Timestamp:      eventTime,
		Day:            day,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		DistanceMeters: dist,
	}
	inserted, ok, err := s.log.Append(ctx, rec)
	if err != nil {
		return CheckOutResult{}, fmt.Errorf("append check-out: %w", err)
	}
	if !ok {
		out, err := s.log.DayRecord(ctx, userID, day, KindOut)
		if err != nil {
			return CheckOutResult{}, fmt.Errorf("read check-out after conflict: %w", err)
		}
		return CheckOutResult{Code: CodeAlreadyCheckedOut, Record: out}, nil
	}

	return CheckOutResult{
		OK:           true,
		Record:       &inserted,
		Site:         site,
		Distance:     dist,
		WorkDuration: eventTime.Sub(in.Timestamp),
	}, nil
}

// Status reports the user's state for the day containing now.
func (s *Service) Status(ctx context.Context, userID int64, now time.Time) (DayStatus, error) {
	day := s.day(now)

	in, err := s.log.DayRecord(ctx, userID, day, KindIn)
	if err != nil {
		return DayStatus{}, fmt.Errorf("read check-in state: %w", err)
	}
	if in == nil {
		return DayStatus{State: StateAbsent}, nil
	}

	out, err := s.log.DayRecord(ctx, userID, day, KindOut)
	if err != nil {
		return DayStatus{}, fmt.Errorf("read check-out state: %w", err)
	}
	if out == nil {
		return DayStatus{State: StatePresent, In: in}, nil
	}
	return DayStatus{
		State:        StateCompleted,
		In:           in,
		Out:          out,
		WorkDuration: out.Timestamp.Sub(in.Timestamp),
	}, nil
}

// FormatDuration renders a duration the way outcome messages show it.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
