// The seed binary populates the showtime catalog with sample screenings so a
// fresh environment has something to book against.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"cinebook/internal/config"
	"cinebook/internal/logger"
	"cinebook/internal/models"
	"cinebook/internal/search"

	"github.com/google/uuid"
)

var sampleMovies = []struct {
	id    string
	title string
	price float64
}{
	{"movie-inception", "Inception", 12.50},
	{"movie-interstellar", "Interstellar", 12.50},
	{"movie-dune-2", "Dune: Part Two", 14.00},
	{"movie-oppenheimer", "Oppenheimer", 13.00},
	{"movie-the-batman", "The Batman", 11.50},
}

func main() {
	days := flag.Int("days", 7, "number of days of showtimes to generate")
	perDay := flag.Int("per-day", 3, "screenings per movie per day")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	esClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	ctx := context.Background()
	start := time.Now().Truncate(24 * time.Hour).Add(10 * time.Hour)

	seeded := 0
	for day := 0; day < *days; day++ {
		for _, movie := range sampleMovies {
			for slot := 0; slot < *perDay; slot++ {
				startTime := start.AddDate(0, 0, day).Add(time.Duration(slot*4) * time.Hour)
				showtime := &models.Showtime{
					ID:         uuid.New().String(),
					MovieID:    movie.id,
					MovieTitle: movie.title,
					CinemaID:   "cinema-central",
					ScreenID:   fmt.Sprintf("screen-%d", slot+1),
					StartTime:  startTime,
					EndTime:    startTime.Add(150 * time.Minute),
					BasePrice:  movie.price,
				}

				if err := esClient.IndexShowtime(ctx, showtime); err != nil {
					logger.Fatal("Failed to index showtime",
						"movie", movie.title, "error", err)
				}
				seeded++
			}
		}
	}

	slog.Info("Seeded showtime catalog", "showtimes", seeded, "days", *days)
}
