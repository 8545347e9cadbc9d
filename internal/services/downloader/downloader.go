// Package downloader fetches selected stream candidates into local files.
// One downloader exists per track kind: audio-only, video-only and mixed.
package downloader

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/extractor"
	"github.com/flowtube/flowtube/internal/services/selector"
	"github.com/flowtube/flowtube/internal/utils"
)

// ProgressFunc receives byte deltas while a track is streaming in.
type ProgressFunc func(delta int64)

// Result describes one fetched track on local disk.
type Result struct {
	Candidate models.StreamCandidate
	Path      string
	Size      int64
	Hash      string
}

// StreamDownloader fetches the best candidate of its kind for a quality
// tier into a file under dir.
type StreamDownloader interface {
	Kind() string
	Download(ctx context.Context, info *models.StreamInfo, tier selector.Tier, dir string, progress ProgressFunc) (*Result, error)
}

// Fetcher holds the pieces shared by all downloader kinds: the extraction
// client, the selection heuristics, the size limit and the concurrency
// semaphore.
type Fetcher struct {
	extractor   extractor.StreamExtractor
	selector    *selector.Selector
	maxFileSize int64
	semaphore   chan struct{}
}

func NewFetcher(ext extractor.StreamExtractor, sel *selector.Selector, cfg *config.PlaybackConfig) *Fetcher {
	maxConcurrent := 5
	var maxFileSize int64
	if cfg != nil {
		if cfg.MaxConcurrentSessions > 0 {
			maxConcurrent = cfg.MaxConcurrentSessions
		}
		maxFileSize = cfg.MaxFileSize
	}
	return &Fetcher{
		extractor:   ext,
		selector:    sel,
		maxFileSize: maxFileSize,
		semaphore:   make(chan struct{}, maxConcurrent),
	}
}

// Audio returns the audio-only downloader.
func (f *Fetcher) Audio() StreamDownloader { return &AudioStreamDownloader{fetcher: f} }

// Video returns the video-only downloader.
func (f *Fetcher) Video() StreamDownloader { return &VideoStreamDownloader{fetcher: f} }

// Mixed returns the muxed-track downloader.
func (f *Fetcher) Mixed() StreamDownloader { return &MixedStreamDownloader{fetcher: f} }

type AudioStreamDownloader struct {
	fetcher *Fetcher
}

func (d *AudioStreamDownloader) Kind() string { return "audio" }

func (d *AudioStreamDownloader) Download(ctx context.Context, info *models.StreamInfo, tier selector.Tier, dir string, progress ProgressFunc) (*Result, error) {
	// Video tiers carry a frame height; audio always takes its best track.
	audioTier := tier
	if tier.Kind == selector.TierTarget {
		audioTier = selector.Tier{Kind: selector.TierBest}
	}
	candidate, err := d.fetcher.selector.SelectAudio(info.AudioStreams, audioTier)
	if err != nil {
		return nil, err
	}
	return d.fetcher.transfer(ctx, info, candidate, filepath.Join(dir, "audio."+candidate.Container), progress)
}

type VideoStreamDownloader struct {
	fetcher *Fetcher
}

func (d *VideoStreamDownloader) Kind() string { return "video" }

func (d *VideoStreamDownloader) Download(ctx context.Context, info *models.StreamInfo, tier selector.Tier, dir string, progress ProgressFunc) (*Result, error) {
	candidate, err := d.fetcher.selector.SelectVideo(info.VideoStreams, tier)
	if err != nil {
		return nil, err
	}
	return d.fetcher.transfer(ctx, info, candidate, filepath.Join(dir, "video."+candidate.Container), progress)
}

type MixedStreamDownloader struct {
	fetcher *Fetcher
}

func (d *MixedStreamDownloader) Kind() string { return "mixed" }

func (d *MixedStreamDownloader) Download(ctx context.Context, info *models.StreamInfo, tier selector.Tier, dir string, progress ProgressFunc) (*Result, error) {
	candidate, err := d.fetcher.selector.SelectMixed(info.MixedStreams, tier)
	if err != nil {
		return nil, err
	}
	return d.fetcher.transfer(ctx, info, candidate, filepath.Join(dir, "mixed."+candidate.Container), progress)
}

// transfer streams one candidate to disk, hashing while copying and
// enforcing the configured size limit.
func (f *Fetcher) transfer(ctx context.Context, info *models.StreamInfo, candidate *models.StreamCandidate, outputPath string, progress ProgressFunc) (*Result, error) {
	select {
	case f.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-f.semaphore }()

	stream, _, err := f.extractor.OpenStream(ctx, info, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := copyWithProgress(ctx, file, stream, hasher, f.maxFileSize, progress)
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	utils.LogDebug(ctx, "Track downloaded", utils.Fields{
		"video_id": info.VideoID,
		"itag":     candidate.Itag,
		"bytes":    size,
		"path":     outputPath,
	})

	return &Result{
		Candidate: *candidate,
		Path:      outputPath,
		Size:      size,
		Hash:      fmt.Sprintf("%x", hasher.Sum(nil)),
	}, nil
}

// copyWithProgress copies src to dst in chunks, feeding the hash and the
// progress callback and aborting past the size limit or on context cancel.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, hasher hash.Hash, maxSize int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 256*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if maxSize > 0 && total > maxSize {
				return total, fmt.Errorf("stream exceeds maximum file size of %d bytes", maxSize)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("failed to write stream to file: %w", err)
			}
			hasher.Write(buf[:n])
			if progress != nil {
				progress(int64(n))
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}
