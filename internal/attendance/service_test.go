package attendance

import (
	"context"
	"testing"
	"time"

	"rollcall/internal/geo"
)

// memLog is an in-memory Log with the same per-day uniqueness semantics as
// the Postgres table.
type memLog struct {
	records []Record
}

func (m *memLog) Append(_ context.Context, rec Record) (Record, bool, error) {
	for _, r := range m.records {
		if r.UserID == rec.UserID && r.Day == rec.Day && r.Kind == rec.Kind {
			return Record{}, false, nil
		}
	}
	if rec.ID == "" {
		rec.ID = time.Now().Format("20060102150405.000000000")
	}
	rec.CreatedAt = rec.Timestamp
	m.records = append(m.records, rec)
	return rec, true, nil
}

func (m *memLog) DayRecord(_ context.Context, userID int64, day string, kind Kind) (*Record, error) {
	for i := range m.records {
		r := m.records[i]
		if r.UserID == userID && r.Day == day && r.Kind == kind {
			return &r, nil
		}
	}
	return nil, nil
}

type memSites struct {
	sites []geo.Site
}

func (m *memSites) ActiveSites(context.Context) ([]geo.Site, error) {
	return m.sites, nil
}

var hq = geo.Site{
	ID:           1,
	Name:         "HQ",
	Center:       geo.Point{Lat: 21.0285, Lon: 105.8542},
	RadiusMeters: 50,
	Active:       true,
}

func testRules() Rules {
	return Rules{
		WorkStartHour:   9,
		WorkStartMinute: 0,
		LateThreshold:   15 * time.Minute,
		Loc:             time.UTC,
	}
}

func newTestService(sites ...geo.Site) (*Service, *memLog) {
	log := &memLog{}
	return NewService(log, &memSites{sites: sites}, testRules()), log
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestCheckInOnTime(t *testing.T) {
	svc, log := newTestService(hq)

	res, err := svc.CheckIn(context.Background(), 1, hq.Center, at(8, 55))
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("check-in rejected: %+v", res)
	}
	if res.Late || res.MinutesLate != 0 {
		t.Errorf("08:55 should be on time, got late=%v minutes=%d", res.Late, res.MinutesLate)
	}
	if len(log.records) != 1 || log.records[0].Kind != KindIn {
		t.Fatalf("expected one IN record, got %+v", log.records)
	}
}

func TestCheckInLateness(t *testing.T) {
	cases := []struct {
		name        string
		hour, min   int
		wantLate    bool
		wantMinutes int
	}{
		{"inside grace", 9, 14, false, 0},
		{"boundary of grace", 9, 15, false, 0},
		{"just past grace", 9, 16, true, 16},
		{"an hour late", 10, 0, true, 60},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc, _ := newTestService(hq)
			res, err := svc.CheckIn(context.Background(), 1, hq.Center, at(c.hour, c.min))
			if err != nil {
				t.Fatal(err)
			}
			if res.Late != c.wantLate || res.MinutesLate != c.wantMinutes {
				t.Errorf("%02d:%02d: late=%v minutes=%d, want late=%v minutes=%d",
					c.hour, c.min, res.Late, res.MinutesLate, c.wantLate, c.wantMinutes)
			}
		})
	}
}

func TestCheckInTwiceSameDay(t *testing.T) {
	svc, log := newTestService(hq)
	ctx := context.Background()

	first, err := svc.CheckIn(ctx, 1, hq.Center, at(9, 0))
	if err != nil || !first.OK {
		t.Fatalf("first check-in: %+v, %v", first, err)
	}

	second, err := svc.CheckIn(ctx, 1, hq.Center, at(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if second.OK || second.Code != CodeAlreadyCheckedIn {
		t.Fatalf("second check-in: got %+v, want ALREADY_CHECKED_IN", second)
	}
	if second.Record == nil || second.Record.ID != first.Record.ID {
		t.Error("ALREADY_CHECKED_IN should carry the existing IN record")
	}
	if len(log.records) != 1 {
		t.Errorf("log has %d records, want 1", len(log.records))
	}
}

func TestCheckInNextDayAllowed(t *testing.T) {
	svc, _ := newTestService(hq)
	ctx := context.Background()

	if res, _ := svc.CheckIn(ctx, 1, hq.Center, at(9, 0)); !res.OK {
		t.Fatalf("day one: %+v", res)
	}
	res, err := svc.CheckIn(ctx, 1, hq.Center, at(9, 0).AddDate(0, 0, 1))
	if err != nil || !res.OK {
		t.Fatalf("day two should start Absent again: %+v, %v", res, err)
	}
}

func TestCheckInNoSiteConfigured(t *testing.T) {
	svc, _ := newTestService()
	res, err := svc.CheckIn(context.Background(), 1, hq.Center, at(9, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeNoSiteConfigured {
		t.Errorf("got %+v, want NO_SITE_CONFIGURED", res)
	}
}

func TestCheckInOutOfRange(t *testing.T) {
	svc, log := newTestService(hq)

	far := geo.Point{Lat: hq.Center.Lat + 0.01, Lon: hq.Center.Lon}
	res, err := svc.CheckIn(context.Background(), 1, far, at(9, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeOutOfRange {
		t.Fatalf("got %+v, want OUT_OF_RANGE", res)
	}
	if res.Distance <= res.RadiusMeters {
		t.Errorf("OUT_OF_RANGE with distance %.1f inside radius %.1f", res.Distance, res.RadiusMeters)
	}
	if len(log.records) != 0 {
		t.Error("rejected check-in must not append to the log")
	}
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	svc, _ := newTestService(hq)
	res, err := svc.CheckOut(context.Background(), 1, hq.Center, at(17, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeNoCheckInYet {
		t.Errorf("got %+v, want NO_CHECK_IN_YET", res)
	}
}

func TestCheckOutHappyPath(t *testing.T) {
	svc, _ := newTestService(hq)
	ctx := context.Background()

	if res, _ := svc.CheckIn(ctx, 1, hq.Center, at(9, 0)); !res.OK {
		t.Fatalf("check-in: %+v", res)
	}
	res, err := svc.CheckOut(ctx, 1, hq.Center, at(17, 30))
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("check-out rejected: %+v", res)
	}
	if want := 8*time.Hour + 30*time.Minute; res.WorkDuration != want {
		t.Errorf("work duration = %s, want %s", res.WorkDuration, want)
	}
}

func TestCheckOutTwice(t *testing.T) {
	svc, _ := newTestService(hq)
	ctx := context.Background()

	svc.CheckIn(ctx, 1, hq.Center, at(9, 0))
	svc.CheckOut(ctx, 1, hq.Center, at(17, 0))

	res, err := svc.CheckOut(ctx, 1, hq.Center, at(18, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeAlreadyCheckedOut {
		t.Errorf("got %+v, want ALREADY_CHECKED_OUT", res)
	}
}

func TestCheckOutRequiresGeofence(t *testing.T) {
	svc, _ := newTestService(hq)
	ctx := context.Background()

	svc.CheckIn(ctx, 1, hq.Center, at(9, 0))

	far := geo.Point{Lat: hq.Center.Lat + 0.01, Lon: hq.Center.Lon}
	res, err := svc.CheckOut(ctx, 1, far, at(17, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeOutOfRange {
		t.Errorf("got %+v, want OUT_OF_RANGE on check-out", res)
	}
}

func TestStatusLifecycle(t *testing.T) {
	svc, _ := newTestService(hq)
	ctx := context.Background()

	st, err := svc.Status(ctx, 1, at(8, 0))
	if err != nil || st.State != StateAbsent {
		t.Fatalf("before check-in: %+v, %v", st, err)
	}

	svc.CheckIn(ctx, 1, hq.Center, at(9, 0))
	st, _ = svc.Status(ctx, 1, at(12, 0))
	if st.State != StatePresent || st.In == nil {
		t.Fatalf("after check-in: %+v", st)
	}

	svc.CheckOut(ctx, 1, hq.Center, at(17, 0))
	st, _ = svc.Status(ctx, 1, at(18, 0))
	if st.State != StateCompleted || st.Out == nil {
		t.Fatalf("after check-out: %+v", st)
	}
	if want := 8 * time.Hour; st.WorkDuration != want {
		t.Errorf("work duration = %s, want %s", st.WorkDuration, want)
	}
}

// conflictLog simulates losing the insert race: the state read sees no IN,
// but the append hits the uniqueness constraint.
type conflictLog struct {
	memLog
	reads int
}

func (c *conflictLog) DayRecord(ctx context.Context, userID int64, day string, kind Kind) (*Record, error) {
	c.reads++
	if kind == KindIn && c.reads == 1 {
		return nil, nil
	}
	return c.memLog.DayRecord(ctx, userID, day, kind)
}

func (c *conflictLog) Append(_ context.Context, rec Record) (Record, bool, error) {
	return Record{}, false, nil
}

func TestCheckInRaceResolvesToAlreadyCheckedIn(t *testing.T) {
	log := &conflictLog{}
	winner := Record{ID: "winner", UserID: 1, Kind: KindIn, Day: "2025-03-10", Timestamp: at(9, 0)}
	log.memLog.records = append(log.memLog.records, winner)

	svc := NewService(log, &memSites{sites: []geo.Site{hq}}, testRules())
	res, err := svc.CheckIn(context.Background(), 1, hq.Center, at(9, 1))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Code != CodeAlreadyCheckedIn {
		t.Fatalf("got %+v, want ALREADY_CHECKED_IN after losing the race", res)
	}
	if res.Record == nil || res.Record.ID != "winner" {
		t.Error("result should carry the record that won the race")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{8*time.Hour + 30*time.Minute, "8h 30m"},
		{2 * time.Hour, "2h"},
		{45 * time.Minute, "45m"},
		{0, "0m"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.d); got != c.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", c.d, got, c.want)
		}
	}
}
