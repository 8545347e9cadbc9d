package downloader

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/selector"
)

// fakeExtractor serves a fixed payload for every candidate.
type fakeExtractor struct {
	payload string
	opened  int
}

func (f *fakeExtractor) IsWatchURL(url string) bool               { return true }
func (f *fakeExtractor) ParseWatchURL(url string) (string, error) { return "vid", nil }
func (f *fakeExtractor) NormalizeURL(url string) (string, error)  { return url, nil }

func (f *fakeExtractor) Extract(ctx context.Context, videoID string) (*models.StreamInfo, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeExtractor) OpenStream(ctx context.Context, info *models.StreamInfo, candidate *models.StreamCandidate) (io.ReadCloser, int64, error) {
	f.opened++
	return io.NopCloser(strings.NewReader(f.payload)), int64(len(f.payload)), nil
}

func testStreamInfo() *models.StreamInfo {
	return &models.StreamInfo{
		ServiceID: "youtube",
		VideoID:   "vid",
		AudioStreams: []models.StreamCandidate{
			{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Container: "mp4", Bitrate: 128000, AudioChannels: 2, AdaptiveOnly: true},
			{Itag: 249, MimeType: `audio/webm; codecs="opus"`, Container: "webm", Bitrate: 50000, AudioChannels: 2, AdaptiveOnly: true},
		},
		VideoStreams: []models.StreamCandidate{
			{Itag: 136, MimeType: `video/mp4; codecs="avc1.4d401f"`, Container: "mp4", Height: 720, Bitrate: 2500000, AdaptiveOnly: true},
		},
		MixedStreams: []models.StreamCandidate{
			{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Container: "mp4", Height: 360, Bitrate: 700000, AudioChannels: 2},
		},
	}
}

func newTestFetcher(payload string, maxFileSize int64) (*Fetcher, *fakeExtractor) {
	ext := &fakeExtractor{payload: payload}
	cfg := &config.PlaybackConfig{
		MaxConcurrentSessions: 2,
		MaxFileSize:           maxFileSize,
	}
	return NewFetcher(ext, selector.New("mp4", "m4a"), cfg), ext
}

func TestDownloadWritesFileAndHash(t *testing.T) {
	payload := "fake video payload bytes"
	fetcher, _ := newTestFetcher(payload, 0)
	dir := t.TempDir()

	var reported int64
	result, err := fetcher.Mixed().Download(context.Background(), testStreamInfo(), selector.Tier{Kind: selector.TierBest}, dir, func(delta int64) {
		reported += delta
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if result.Size != int64(len(payload)) {
		t.Errorf("Expected size %d, got %d", len(payload), result.Size)
	}
	if reported != result.Size {
		t.Errorf("Progress reported %d bytes, file has %d", reported, result.Size)
	}

	wantHash := fmt.Sprintf("%x", sha256.Sum256([]byte(payload)))
	if result.Hash != wantHash {
		t.Errorf("Expected hash %s, got %s", wantHash, result.Hash)
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(data) != payload {
		t.Error("File content does not match the stream payload")
	}
}

func TestDownloadKinds(t *testing.T) {
	testCases := []struct {
		name     string
		kind     string
		wantItag int
	}{
		{name: "audio downloader", kind: "audio", wantItag: 140},
		{name: "video downloader", kind: "video", wantItag: 136},
		{name: "mixed downloader", kind: "mixed", wantItag: 18},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher, _ := newTestFetcher("payload", 0)
			var d StreamDownloader
			switch tc.kind {
			case "audio":
				d = fetcher.Audio()
			case "video":
				d = fetcher.Video()
			case "mixed":
				d = fetcher.Mixed()
			}
			if d.Kind() != tc.kind {
				t.Errorf("Expected kind %s, got %s", tc.kind, d.Kind())
			}

			result, err := d.Download(context.Background(), testStreamInfo(), selector.Tier{Kind: selector.TierBest}, t.TempDir(), nil)
			if err != nil {
				t.Fatalf("Download failed: %v", err)
			}
			if result.Candidate.Itag != tc.wantItag {
				t.Errorf("Expected itag %d, got %d", tc.wantItag, result.Candidate.Itag)
			}
		})
	}
}

func TestAudioDownloadIgnoresVideoTier(t *testing.T) {
	fetcher, _ := newTestFetcher("payload", 0)

	// A 720p request makes no sense as an audio bitrate; the audio
	// downloader takes its best track instead.
	result, err := fetcher.Audio().Download(context.Background(), testStreamInfo(), selector.Tier{Kind: selector.TierTarget, Target: 720}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if result.Candidate.Itag != 140 {
		t.Errorf("Expected best audio itag 140, got %d", result.Candidate.Itag)
	}
}

func TestDownloadEnforcesSizeLimit(t *testing.T) {
	fetcher, _ := newTestFetcher(strings.Repeat("x", 1024), 100)
	dir := t.TempDir()

	_, err := fetcher.Mixed().Download(context.Background(), testStreamInfo(), selector.Tier{Kind: selector.TierBest}, dir, nil)
	if err == nil {
		t.Fatal("Expected size limit error")
	}

	// The partial file must not be left behind.
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("Failed to list dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("Expected partial file to be removed, found %d entries", len(entries))
	}
}

func TestDownloadCancelledContext(t *testing.T) {
	fetcher, _ := newTestFetcher("payload", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Mixed().Download(ctx, testStreamInfo(), selector.Tier{Kind: selector.TierBest}, t.TempDir(), nil)
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}
