package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/signcast/internal/domain"
)

// displayColumns must match the Scan order in scanDisplay.
const displayColumns = `id, name, slideshow_id, heartbeat_period_seconds, last_seen_at, show_overlay, rotation, created_at, updated_at`

// DisplayRepo implements domain.DisplayRepository backed by PostgreSQL.
type DisplayRepo struct {
	pool *pgxpool.Pool
}

func NewDisplayRepo(pool *pgxpool.Pool) *DisplayRepo {
	return &DisplayRepo{pool: pool}
}

func scanDisplay(row pgx.Row) (*domain.Display, error) {
	var d domain.Display
	var periodSeconds int
	err := row.Scan(
		&d.ID, &d.Name, &d.SlideshowID, &periodSeconds,
		&d.LastSeenAt, &d.ShowOverlay, &d.Rotation,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.HeartbeatPeriod = time.Duration(periodSeconds) * time.Second
	return &d, nil
}

func (r *DisplayRepo) GetByName(ctx context.Context, name string) (*domain.Display, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+displayColumns+` FROM displays WHERE name = $1`, name)

	display, err := scanDisplay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDisplayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get display by name: %w", err)
	}
	return display, nil
}

func (r *DisplayRepo) List(ctx context.Context) ([]domain.Display, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+displayColumns+` FROM displays ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list displays: %w", err)
	}
	defer rows.Close()

	var displays []domain.Display
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan display: %w", err)
		}
		displays = append(displays, *d)
	}
	return displays, rows.Err()
}

func (r *DisplayRepo) Create(ctx context.Context, name string, heartbeatPeriod time.Duration) (*domain.Display, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO displays (name, heartbeat_period_seconds)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET updated_at = now()
		 RETURNING `+displayColumns,
		name, int(heartbeatPeriod/time.Second))

	display, err := scanDisplay(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create display: %w", err)
	}
	return display, nil
}

func (r *DisplayRepo) UpdateSettings(ctx context.Context, name string, settings domain.DisplaySettings) (*domain.Display, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE displays
		 SET show_overlay = $2,
		     rotation = $3,
		     heartbeat_period_seconds = CASE WHEN $4 > 0 THEN $4 ELSE heartbeat_period_seconds END,
		     updated_at = now()
		 WHERE name = $1
		 RETURNING `+displayColumns,
		name, settings.ShowOverlay, settings.Rotation, int(settings.HeartbeatPeriod/time.Second))

	display, err := scanDisplay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDisplayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update display settings: %w", err)
	}
	return display, nil
}

func (r *DisplayRepo) AssignSlideshow(ctx context.Context, name string, slideshowID *int64) (*domain.Display, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE displays SET slideshow_id = $2, updated_at = now()
		 WHERE name = $1
		 RETURNING `+displayColumns,
		name, slideshowID)

	display, err := scanDisplay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDisplayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign slideshow: %w", err)
	}
	return display, nil
}

// Touch records a liveness ping. GREATEST guards the forward-only
// invariant even when pings arrive out of order from concurrent requests.
func (r *DisplayRepo) Touch(ctx context.Context, name string, seenAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE displays
		 SET last_seen_at = GREATEST(coalesce(last_seen_at, $2), $2)
		 WHERE name = $1`,
		name, seenAt)
	if err != nil {
		return fmt.Errorf("failed to touch display: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDisplayNotFound
	}
	return nil
}

func (r *DisplayRepo) NamesForSlideshow(ctx context.Context, slideshowID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM displays WHERE slideshow_id = $1 ORDER BY name`, slideshowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned displays: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
