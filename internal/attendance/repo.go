package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists the attendance log in Postgres. The table carries a
// UNIQUE (user_id, day, kind) constraint; that constraint, not the service's
// state read, is the authoritative guard against a duplicate IN.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts a record. The returned bool is false when the uniqueness
// constraint rejected the insert (another record of the same kind already
// exists for that user and day).
func (r *Repository) Append(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, user_id, site_id, kind, occurred_at, day, latitude, longitude, distance_m, late)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id, day, kind) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.SiteID, rec.Kind, rec.Timestamp, rec.Day,
		rec.Lat, rec.Lon, rec.DistanceMeters, rec.Late)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

// DayRecord returns the user's record of the given kind for a calendar day,
// or nil when none exists.
func (r *Repository) DayRecord(ctx context.Context, userID int64, day string, kind Kind) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, site_id, kind, occurred_at, day, latitude, longitude, distance_m, late, created_at
		FROM attendance_records
		WHERE user_id = $1 AND day = $2 AND kind = $3
	`, userID, day, kind)
	var rec Record
	if err := scanRecord(row, &rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// RecordsBetween returns all records in [from, to] day range, ordered by
// timestamp ascending. Used by the report projections.
func (r *Repository) RecordsBetween(ctx context.Context, from, to string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, site_id, kind, occurred_at, day, latitude, longitude, distance_m, late, created_at
		FROM attendance_records
		WHERE day >= $1 AND day <= $2
		ORDER BY occurred_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UserRecordsBetween returns one user's records in [from, to], ordered by
// timestamp ascending.
func (r *Repository) UserRecordsBetween(ctx context.Context, userID int64, from, to string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, site_id, kind, occurred_at, day, latitude, longitude, distance_m, late, created_at
		FROM attendance_records
		WHERE user_id = $1 AND day >= $2 AND day <= $3
		ORDER BY occurred_at ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, rec *Record) error {
	var siteID sql.NullInt64
	var day time.Time
	if err := s.Scan(&rec.ID, &rec.UserID, &siteID, &rec.Kind, &rec.Timestamp, &day,
		&rec.Lat, &rec.Lon, &rec.DistanceMeters, &rec.Late, &rec.CreatedAt); err != nil {
		return err
	}
	rec.Day = day.Format("2006-01-02")
	if siteID.Valid {
		id := siteID.Int64
		rec.SiteID = &id
	}
	return nil
}

// SaveReportJob records a queued monthly export.
func (r *Repository) SaveReportJob(ctx context.Context, id string, year, month int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO report_jobs (id, year, month, status)
		VALUES ($1, $2, $3, 'pending')
	`, id, year, month)
	return err
}

// ReportJob describes a monthly export request and its progress.
type ReportJob struct {
	ID        string
	Year      int
	Month     int
	Status    string
	FilePath  *string
	CreatedAt time.Time
}

// GetReportJob returns a job by id, or nil when unknown.
func (r *Repository) GetReportJob(ctx context.Context, id string) (*ReportJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, year, month, status, file_path, created_at
		FROM report_jobs WHERE id = $1
	`, id)
	var job ReportJob
	if err := row.Scan(&job.ID, &job.Year, &job.Month, &job.Status, &job.FilePath, &job.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// UpdateReportJob moves a job to done or failed, recording the output path.
func (r *Repository) UpdateReportJob(ctx context.Context, id, status string, filePath *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE report_jobs
		SET status = $2, file_path = COALESCE($3, file_path)
		WHERE id = $1
	`, id, status, filePath)
	return err
}
