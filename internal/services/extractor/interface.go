package extractor

import (
	"context"
	"io"

	"github.com/flowtube/flowtube/internal/models"
)

// StreamExtractor resolves watch URLs into stream candidates. The actual
// site parsing is owned by the extraction library; this layer only maps its
// output into models.StreamInfo.
type StreamExtractor interface {
	// IsWatchURL checks if the provided URL points at a playable video page
	IsWatchURL(url string) bool

	// ParseWatchURL extracts the video ID from a watch URL
	ParseWatchURL(url string) (string, error)

	// NormalizeURL reduces a watch URL to its canonical cache-key form
	NormalizeURL(url string) (string, error)

	// Extract resolves all stream candidates for a video
	Extract(ctx context.Context, videoID string) (*models.StreamInfo, error)

	// OpenStream opens the remote track behind a candidate for reading
	OpenStream(ctx context.Context, info *models.StreamInfo, candidate *models.StreamCandidate) (io.ReadCloser, int64, error)
}
