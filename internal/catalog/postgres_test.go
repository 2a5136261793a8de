package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

var videoColumns = []string{"id", "title", "url", "thumbnail_url", "duration_seconds", "status", "width", "height", "size_bytes", "created_at"}

func TestPostgresSource_Records(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	defer mock.Close()

	created := time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id::text, title, url, thumbnail_url, duration_seconds, status`).
		WillReturnRows(pgxmock.NewRows(videoColumns).
			AddRow("10", "Launch Teaser", "https://cdn.example.com/a.mp4", "https://cdn.example.com/a.jpg", 150.4, "processed", 1920, 1080, int64(45_200_000), created).
			AddRow("11", "Legacy Upload", "https://cdn.example.com/b.mp4", "", 10.0, "archived", 640, 480, int64(1000), created).
			AddRow("12", "Broken", "https://cdn.example.com/c.mp4", "", 75.0, "failed", 1280, 720, int64(18_300_000), created))

	records, err := NewPostgresSource(mock).Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected unknown status skipped, got %d records", len(records))
	}
	r := records[0]
	if r.Duration != "2:30" {
		t.Errorf("expected duration 2:30, got %q", r.Duration)
	}
	if r.Resolution != "1920x1080" {
		t.Errorf("expected resolution 1920x1080, got %q", r.Resolution)
	}
	if r.Size != "45 MB" {
		t.Errorf("expected size 45 MB, got %q", r.Size)
	}
	if r.Created != "Apr 15, 2024" {
		t.Errorf("expected created Apr 15, 2024, got %q", r.Created)
	}
	if records[1].Status != StatusFailed {
		t.Errorf("expected failed status, got %q", records[1].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPostgresSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id::text`).WillReturnError(errors.New("connection refused"))

	if _, err := NewPostgresSource(mock).Records(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresSource_FeedsView(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	defer mock.Close()

	created := time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id::text`).
		WillReturnRows(pgxmock.NewRows(videoColumns).
			AddRow("1", "Marketing Campaign", "u", "p", 345.0, "processing", 3840, 2160, int64(128_700_000), created).
			AddRow("2", "Other", "u", "p", 5.0, "processed", 1, 1, int64(1), created))

	v, err := NewView(context.Background(), NewPostgresSource(mock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.SetQuery("marketing")
	if got := v.Results(); len(got) != 1 || got[0].Duration != "5:45" {
		t.Errorf("unexpected results %+v", got)
	}
}
