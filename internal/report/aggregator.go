// Package report builds read-only projections over the attendance log:
// daily summaries, the monthly per-user day matrix, and per-user monthly
// statistics. Projections never mutate the log; running one twice over an
// unchanged log yields identical output.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/roster"
)

// LogReader is the read side of the attendance log.
type LogReader interface {
	RecordsBetween(ctx context.Context, from, to string) ([]attendance.Record, error)
}

// Roster supplies the active users reports are joined against.
type Roster interface {
	ActiveUsers(ctx context.Context) ([]roster.User, error)
}

// DailySummary is the per-day roll-up across the active roster.
type DailySummary struct {
	Date             time.Time
	TotalActiveUsers int
	CheckedIn        int
	OnTime           int
	Late             int
	NotCheckedIn     int
	CheckedOut       int
	Present          []PresentEntry
	Absent           []string
	LateArrivals     []LateEntry
}

// PresentEntry is one checked-in user in a daily summary.
type PresentEntry struct {
	Name       string
	CheckIn    time.Time
	Late       bool
	CheckedOut bool
}

// LateEntry is one late arrival in a daily summary.
type LateEntry struct {
	Name        string
	CheckIn     time.Time
	MinutesLate int
}

// DayCell is one (user, day) pair in the monthly matrix.
type DayCell struct {
	In   *time.Time
	Out  *time.Time
	Late bool
}

// UserMonth is one user's row of the monthly matrix plus their totals.
type UserMonth struct {
	UserID           int64
	Name             string
	Days             map[int]DayCell // keyed by day of month, 1-based
	DaysPresent      int
	DaysLate         int
	TotalLateMinutes int
}

// MonthlyMatrix is the full active-roster view of one month.
type MonthlyMatrix struct {
	Year        int
	Month       time.Month
	DaysInMonth int
	Users       []UserMonth
}

// UserSummary is one user's monthly statistics.
type UserSummary struct {
	UserID           int64
	DaysPresent      int
	DaysLate         int
	TotalLateMinutes int
	// AttendanceRate is DaysPresent over the day count of the month, as a
	// percentage.
	AttendanceRate float64
}

// Aggregator computes projections. It shares the attendance rules so
// late-minute math matches what the state machine recorded.
type Aggregator struct {
	log    LogReader
	roster Roster
	rules  attendance.Rules
}

// NewAggregator builds an aggregator over the given log and roster.
func NewAggregator(log LogReader, r Roster, rules attendance.Rules) *Aggregator {
	if rules.Loc == nil {
		rules.Loc = time.UTC
	}
	return &Aggregator{log: log, roster: r, rules: rules}
}

func (a *Aggregator) dayKey(t time.Time) string {
	return t.In(a.rules.Loc).Format("2006-01-02")
}

func (a *Aggregator) workStart(t time.Time) time.Time {
	local := t.In(a.rules.Loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		a.rules.WorkStartHour, a.rules.WorkStartMinute, 0, 0, a.rules.Loc)
}

func (a *Aggregator) minutesLate(in time.Time) int {
	m := int(in.Sub(a.workStart(in)).Minutes())
	if m < 0 {
		return 0
	}
	return m
}

// Daily builds the summary for the calendar day containing date.
func (a *Aggregator) Daily(ctx context.Context, date time.Time) (DailySummary, error) {
	users, err := a.roster.ActiveUsers(ctx)
	if err != nil {
		return DailySummary{}, fmt.Errorf("load roster: %w", err)
	}

	day := a.dayKey(date)
	records, err := a.log.RecordsBetween(ctx, day, day)
	if err != nil {
		return DailySummary{}, fmt.Errorf("load records: %w", err)
	}

	ins := make(map[int64]attendance.Record)
	outs := make(map[int64]attendance.Record)
	for _, rec := range records {
		switch rec.Kind {
		case attendance.KindIn:
			if cur, ok := ins[rec.UserID]; !ok || rec.Timestamp.Before(cur.Timestamp) {
				ins[rec.UserID] = rec
			}
		case attendance.KindOut:
			if cur, ok := outs[rec.UserID]; !ok || rec.Timestamp.After(cur.Timestamp) {
				outs[rec.UserID] = rec
			}
		}
	}

	sum := DailySummary{
		Date:             date.In(a.rules.Loc),
		TotalActiveUsers: len(users),
	}
	for _, u := range users {
		in, ok := ins[u.ID]
		if !ok {
			sum.Absent = append(sum.Absent, u.Name)
			continue
		}
		sum.CheckedIn++
		_, out := outs[u.ID]
		if out {
			sum.CheckedOut++
		}
		entry := PresentEntry{
			Name:       u.Name,
			CheckIn:    in.Timestamp.In(a.rules.Loc),
			Late:       in.Late,
			CheckedOut: out,
		}
		sum.Present = append(sum.Present, entry)
		if in.Late {
			sum.Late++
			sum.LateArrivals = append(sum.LateArrivals, LateEntry{
				Name:        u.Name,
				CheckIn:     entry.CheckIn,
				MinutesLate: a.minutesLate(in.Timestamp),
			})
		} else {
			sum.OnTime++
		}
	}
	sum.NotCheckedIn = len(sum.Absent)

	sort.Slice(sum.Present, func(i, j int) bool { return sum.Present[i].CheckIn.Before(sum.Present[j].CheckIn) })
	sort.Slice(sum.LateArrivals, func(i, j int) bool { return sum.LateArrivals[i].MinutesLate > sum.LateArrivals[j].MinutesLate })
	sort.Strings(sum.Absent)

	return sum, nil
}

// Monthly builds the per-user day matrix for a whole month.
func (a *Aggregator) Monthly(ctx context.Context, year int, month time.Month) (MonthlyMatrix, error) {
	users, err := a.roster.ActiveUsers(ctx)
	if err != nil {
		return MonthlyMatrix{}, fmt.Errorf("load roster: %w", err)
	}

	days := daysInMonth(year, month)
	from := fmt.Sprintf("%04d-%02d-01", year, month)
	to := fmt.Sprintf("%04d-%02d-%02d", year, month, days)
	records, err := a.log.RecordsBetween(ctx, from, to)
	if err != nil {
		return MonthlyMatrix{}, fmt.Errorf("load records: %w", err)
	}

	byUser := make(map[int64]map[int]DayCell)
	for _, rec := range records {
		local := rec.Timestamp.In(a.rules.Loc)
		dom := local.Day()
		cells, ok := byUser[rec.UserID]
		if !ok {
			cells = make(map[int]DayCell)
			byUser[rec.UserID] = cells
		}
		cell := cells[dom]
		switch rec.Kind {
		case attendance.KindIn:
			if cell.In == nil || local.Before(*cell.In) {
				t := local
				cell.In = &t
				cell.Late = rec.Late
			}
		case attendance.KindOut:
			if cell.Out == nil || local.After(*cell.Out) {
				t := local
				cell.Out = &t
			}
		}
		cells[dom] = cell
	}

	matrix := MonthlyMatrix{Year: year, Month: month, DaysInMonth: days}
	for _, u := range users {
		um := UserMonth{UserID: u.ID, Name: u.Name, Days: byUser[u.ID]}
		if um.Days == nil {
			um.Days = make(map[int]DayCell)
		}
		for _, cell := range um.Days {
			if cell.In == nil {
				continue
			}
			um.DaysPresent++
			if cell.Late {
				um.DaysLate++
				um.TotalLateMinutes += a.minutesLate(*cell.In)
			}
		}
		matrix.Users = append(matrix.Users, um)
	}
	return matrix, nil
}

// UserMonthly computes one user's statistics for a month.
func (a *Aggregator) UserMonthly(ctx context.Context, userID int64, year int, month time.Month) (UserSummary, error) {
	matrix, err := a.Monthly(ctx, year, month)
	if err != nil {
		return UserSummary{}, err
	}
	sum := UserSummary{UserID: userID}
	for _, u := range matrix.Users {
		if u.UserID != userID {
			continue
		}
		sum.DaysPresent = u.DaysPresent
		sum.DaysLate = u.DaysLate
		sum.TotalLateMinutes = u.TotalLateMinutes
		break
	}
	sum.AttendanceRate = float64(sum.DaysPresent) / float64(matrix.DaysInMonth) * 100
	return sum, nil
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
