package repository

import (
	"context"

	"cinebook/internal/apperrors"
	"cinebook/internal/models"
	"cinebook/internal/search"
)

// ShowtimeRepository reads the showtime catalog from the search index. The
// cinema service owns the catalog; the reservation core needs existence
// checks and base prices, plus indexing for seeding and admin tooling.
type ShowtimeRepository struct {
	es *search.Client
}

func NewShowtimeRepository(es *search.Client) *ShowtimeRepository {
	return &ShowtimeRepository{es: es}
}

// GetByID returns the showtime or (nil, nil) when absent.
func (r *ShowtimeRepository) GetByID(ctx context.Context, id string) (*models.Showtime, error) {
	showtime, err := r.es.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return showtime, nil
}

func (r *ShowtimeRepository) Search(ctx context.Context, query, cinemaID, date string, page, pageSize int) ([]models.Showtime, error) {
	showtimes, err := r.es.Search(ctx, query, cinemaID, date, page, pageSize)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return showtimes, nil
}

func (r *ShowtimeRepository) Index(ctx context.Context, showtime *models.Showtime) error {
	if err := r.es.IndexShowtime(ctx, showtime); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

func (r *ShowtimeRepository) Delete(ctx context.Context, id string) error {
	if err := r.es.DeleteShowtime(ctx, id); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

func (r *ShowtimeRepository) Count(ctx context.Context, query, cinemaID, date string) (int64, error) {
	count, err := r.es.Count(ctx, query, cinemaID, date)
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return count, nil
}
