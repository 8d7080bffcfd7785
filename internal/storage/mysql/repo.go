// Package mysql is the durable local mirror of per-user city preferences.
// It is written through on successful toggles and read when the upstream
// preference API is unreachable; the upstream stays the source of truth.
package mysql

import (
	"context"
	"database/sql"

	"nomad_match/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Upsert(ctx context.Context, email, cityName string, action domain.PreferenceAction) error {
	_, err := r.db.ExecContext(ctx, upsertPreferenceSQL, email, cityName, string(action))
	return err
}

func (r *Repo) Delete(ctx context.Context, email, cityName string) error {
	_, err := r.db.ExecContext(ctx, deletePreferenceSQL, email, cityName)
	return err
}

func (r *Repo) List(ctx context.Context, email string) ([]domain.PreferenceEntry, error) {
	rows, err := r.db.QueryContext(ctx, listPreferencesSQL, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PreferenceEntry
	for rows.Next() {
		var e domain.PreferenceEntry
		var action string
		if err := rows.Scan(&e.CityName, &action); err != nil {
			return nil, err
		}
		e.Action = domain.PreferenceAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
