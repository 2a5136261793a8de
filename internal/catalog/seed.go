package catalog

import (
	"context"
	"slices"
)

const (
	sampleBucket = "https://storage.googleapis.com/gtv-videos-bucket/sample/"
	samplePoster = "https://images.unsplash.com/photo-1536240478700-b869070f9279?ixlib=rb-4.0.3"
)

var seedRecords = []Record{
	{
		ID:           "1",
		Title:        "Product Demo Video",
		URL:          sampleBucket + "BigBuckBunny.mp4",
		ThumbnailURL: samplePoster,
		Duration:     "2:30",
		Status:       StatusProcessed,
		Resolution:   "1920x1080",
		Size:         "45.2 MB",
		Created:      "Apr 15, 2024",
	},
	{
		ID:           "2",
		Title:        "Marketing Campaign",
		URL:          sampleBucket + "ElephantsDream.mp4",
		ThumbnailURL: samplePoster,
		Duration:     "5:45",
		Status:       StatusProcessing,
		Resolution:   "3840x2160",
		Size:         "128.7 MB",
		Created:      "Apr 14, 2024",
	},
	{
		ID:           "3",
		Title:        "Tutorial Series Intro",
		URL:          sampleBucket + "TearsOfSteel.mp4",
		ThumbnailURL: samplePoster,
		Duration:     "1:15",
		Status:       StatusFailed,
		Resolution:   "1280x720",
		Size:         "18.3 MB",
		Created:      "Apr 13, 2024",
	},
}

// Seed returns a copy of the built-in demo catalog.
func Seed() []Record {
	return slices.Clone(seedRecords)
}

type SeedSource struct{}

func (SeedSource) Records(context.Context) ([]Record, error) {
	return Seed(), nil
}
