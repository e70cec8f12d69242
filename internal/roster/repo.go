// Package roster provides the active-site and active-user lists the
// attendance core reads, plus the small admin surface that maintains sites.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollcall/internal/geo"
)

// User is a roster member attendance is tracked for.
type User struct {
	ID     int64
	Name   string
	Active bool
}

// Repository persists sites and users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ActiveSites returns all active geofence sites, ordered by id.
func (r *Repository) ActiveSites(ctx context.Context) ([]geo.Site, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, radius_m
		FROM sites
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []geo.Site
	for rows.Next() {
		var s geo.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Center.Lat, &s.Center.Lon, &s.RadiusMeters); err != nil {
			return nil, err
		}
		s.Active = true
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// CreateSite validates and inserts a new geofence site.
func (r *Repository) CreateSite(ctx context.Context, name string, center geo.Point, radiusMeters float64) (geo.Site, error) {
	if !center.Valid() {
		return geo.Site{}, fmt.Errorf("invalid coordinate (%g, %g)", center.Lat, center.Lon)
	}
	if radiusMeters <= 0 {
		return geo.Site{}, fmt.Errorf("radius must be positive, got %g", radiusMeters)
	}
	if len(name) < 2 {
		return geo.Site{}, errors.New("site name too short")
	}

	site := geo.Site{Name: name, Center: center, RadiusMeters: radiusMeters, Active: true}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sites (name, latitude, longitude, radius_m, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`, name, center.Lat, center.Lon, radiusMeters)
	if err := row.Scan(&site.ID); err != nil {
		return geo.Site{}, err
	}
	return site, nil
}

// DeactivateSite soft-deletes a site; attendance records keep referencing it.
func (r *Repository) DeactivateSite(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sites SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ActiveUsers returns the active roster ordered by name.
func (r *Repository) ActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM users
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		u.Active = true
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns one user, or nil when unknown.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, active FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
