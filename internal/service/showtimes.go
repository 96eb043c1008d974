package service

import (
	"context"
	"fmt"

	"cinebook/internal/apperrors"
	"cinebook/internal/models"

	"github.com/google/uuid"
)

// ShowtimeService fronts the showtime catalog for the handlers and for
// seeding tools.
type ShowtimeService struct {
	catalog ShowtimeCatalog
}

func NewShowtimeService(catalog ShowtimeCatalog) *ShowtimeService {
	return &ShowtimeService{catalog: catalog}
}

func (s *ShowtimeService) Create(ctx context.Context, req models.CreateShowtimeRequest) (*models.Showtime, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidArgument)
	}
	if req.BasePrice < 0 {
		return nil, fmt.Errorf("%w: negative base_price", ErrInvalidArgument)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	showtime := &models.Showtime{
		ID:         id,
		MovieID:    req.MovieID,
		MovieTitle: req.MovieTitle,
		CinemaID:   req.CinemaID,
		ScreenID:   req.ScreenID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		BasePrice:  req.BasePrice,
	}
	if err := s.catalog.Index(ctx, showtime); err != nil {
		return nil, err
	}
	return showtime, nil
}

func (s *ShowtimeService) Get(ctx context.Context, id string) (*models.Showtime, error) {
	showtime, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if showtime == nil {
		return nil, apperrors.ErrNotFound
	}
	return showtime, nil
}

func (s *ShowtimeService) Search(ctx context.Context, query, cinemaID, date string, page, pageSize int) ([]models.Showtime, int64, error) {
	showtimes, err := s.catalog.Search(ctx, query, cinemaID, date, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.catalog.Count(ctx, query, cinemaID, date)
	if err != nil {
		return nil, 0, err
	}
	return showtimes, total, nil
}
