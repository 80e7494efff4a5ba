package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/signcast/internal/domain"
)

const slideshowColumns = `id, name, default_duration, created_at, updated_at`

// SlideshowRepo implements domain.SlideshowRepository backed by PostgreSQL.
type SlideshowRepo struct {
	pool *pgxpool.Pool
}

func NewSlideshowRepo(pool *pgxpool.Pool) *SlideshowRepo {
	return &SlideshowRepo{pool: pool}
}

func scanSlideshow(row pgx.Row) (*domain.Slideshow, error) {
	var s domain.Slideshow
	err := row.Scan(&s.ID, &s.Name, &s.DefaultDuration, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SlideshowRepo) GetByID(ctx context.Context, id int64) (*domain.Slideshow, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+slideshowColumns+` FROM slideshows WHERE id = $1`, id)

	slideshow, err := scanSlideshow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSlideshowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slideshow: %w", err)
	}

	slideshow.Items, err = r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return slideshow, nil
}

func (r *SlideshowRepo) List(ctx context.Context) ([]domain.Slideshow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+slideshowColumns+` FROM slideshows ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slideshows: %w", err)
	}
	defer rows.Close()

	var slideshows []domain.Slideshow
	for rows.Next() {
		s, err := scanSlideshow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slideshow: %w", err)
		}
		slideshows = append(slideshows, *s)
	}
	return slideshows, rows.Err()
}

func (r *SlideshowRepo) Update(ctx context.Context, id int64, name string, defaultDuration int) (*domain.Slideshow, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE slideshows
		 SET name = $2, default_duration = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+slideshowColumns,
		id, name, defaultDuration)

	slideshow, err := scanSlideshow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSlideshowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update slideshow: %w", err)
	}

	slideshow.Items, err = r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return slideshow, nil
}

// Delete removes the slideshow and returns the deleted row so callers can
// build the farewell notification. Items cascade; assigned displays fall
// back to no slideshow via ON DELETE SET NULL.
func (r *SlideshowRepo) Delete(ctx context.Context, id int64) (*domain.Slideshow, error) {
	row := r.pool.QueryRow(ctx,
		`DELETE FROM slideshows WHERE id = $1 RETURNING `+slideshowColumns, id)

	slideshow, err := scanSlideshow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSlideshowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete slideshow: %w", err)
	}
	return slideshow, nil
}

func (r *SlideshowRepo) itemsFor(ctx context.Context, slideshowID int64) ([]domain.SlideshowItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, slideshow_id, position, content_ref, duration
		 FROM slideshow_items
		 WHERE slideshow_id = $1
		 ORDER BY position`, slideshowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slideshow items: %w", err)
	}
	defer rows.Close()

	var items []domain.SlideshowItem
	for rows.Next() {
		var it domain.SlideshowItem
		if err := rows.Scan(&it.ID, &it.SlideshowID, &it.Position, &it.ContentRef, &it.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan slideshow item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
