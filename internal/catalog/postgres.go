package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vidforge/vidforge/internal/database"
	"github.com/vidforge/vidforge/internal/media"
)

const recordsQuery = `SELECT id::text, title, url, thumbnail_url, duration_seconds, status,
	width, height, size_bytes, created_at
	FROM videos
	ORDER BY created_at DESC, id`

// PostgresSource reads the catalog from a videos table it never writes to.
type PostgresSource struct {
	db database.DBTX
}

func NewPostgresSource(db database.DBTX) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, recordsQuery)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id, title, url, thumb, status string
			seconds                       float64
			width, height                 int
			sizeBytes                     int64
			created                       time.Time
		)
		if err := rows.Scan(&id, &title, &url, &thumb, &seconds, &status, &width, &height, &sizeBytes, &created); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}

		st := Status(status)
		if !st.Valid() {
			slog.Warn("catalog: skipping video with unknown status", "video_id", id, "status", status)
			continue
		}

		records = append(records, Record{
			ID:           id,
			Title:        title,
			URL:          url,
			ThumbnailURL: thumb,
			Duration:     media.FormatTime(seconds),
			Status:       st,
			Resolution:   fmt.Sprintf("%dx%d", width, height),
			Size:         humanize.Bytes(uint64(max(sizeBytes, 0))),
			Created:      created.Format("Jan 2, 2006"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return records, nil
}
