package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/transit"
)

// Preference keys.
const (
	KeyFavoriteStations = "favorite-stations"
	KeyActiveFilters    = "active-filters"
)

// ErrNoProfile is returned when a call is made without a profile id.
var ErrNoProfile = errors.New("profile id is required")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// loadList reads a JSON string list. found is false when the key was never
// written. A value that does not decode is logged and treated as unset.
func (s *Store) loadList(ctx context.Context, q querier, profile, key string) (list []string, found bool, err error) {
	if profile == "" {
		return nil, false, ErrNoProfile
	}
	var raw string
	err = q.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE profile_id = ? AND pref_key = ?`,
		profile, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		logging.LogError(s.logger, "Discarding unreadable preference", err,
			slog.String("profile", profile), slog.String("key", key))
		return nil, false, nil
	}
	return list, true, nil
}

func (s *Store) saveList(ctx context.Context, q querier, profile, key string, list []string) error {
	if profile == "" {
		return ErrNoProfile
	}
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO preferences (profile_id, pref_key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (profile_id, pref_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		profile, key, string(raw), s.clock.NowUnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Favorites returns the profile's favourite station ids in the order they
// were added.
func (s *Store) Favorites(ctx context.Context, profile string) ([]string, error) {
	return s.favorites(ctx, s.db, profile)
}

func (s *Store) favorites(ctx context.Context, q querier, profile string) ([]string, error) {
	list, _, err := s.loadList(ctx, q, profile, KeyFavoriteStations)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (s *Store) IsFavorite(ctx context.Context, profile, stationID string) (bool, error) {
	list, err := s.Favorites(ctx, profile)
	if err != nil {
		return false, err
	}
	return slices.Contains(list, stationID), nil
}

// ToggleFavorite appends stationID when absent and removes it otherwise. It
// returns whether the station is a favourite afterwards.
func (s *Store) ToggleFavorite(ctx context.Context, profile, stationID string) (bool, error) {
	if profile == "" {
		return false, ErrNoProfile
	}
	if stationID == "" {
		return false, errors.New("station id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	list, err := s.favorites(ctx, tx, profile)
	if err != nil {
		return false, err
	}

	favorite := false
	if i := slices.Index(list, stationID); i >= 0 {
		list = slices.Delete(list, i, i+1)
	} else {
		list = append(list, stationID)
		favorite = true
	}

	if err := s.saveList(ctx, tx, profile, KeyFavoriteStations, list); err != nil {
		return false, err
	}
	return favorite, tx.Commit()
}

// ActiveFilters returns the saved mode filters, or transit.DefaultFilters
// when the profile never saved any. A saved empty list stays empty.
func (s *Store) ActiveFilters(ctx context.Context, profile string) ([]string, error) {
	list, found, err := s.loadList(ctx, s.db, profile, KeyActiveFilters)
	if err != nil {
		return nil, err
	}
	if !found {
		return slices.Clone(transit.DefaultFilters), nil
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (s *Store) SaveActiveFilters(ctx context.Context, profile string, filters []string) error {
	return s.saveList(ctx, s.db, profile, KeyActiveFilters, filters)
}
