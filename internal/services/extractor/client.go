package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/models"
)

// ServiceID identifies the only extraction service currently wired in.
const ServiceID = "youtube"

// ErrRestricted marks content the service refuses to serve without a signed
// in viewer, such as age gated or private videos. Callers detect it with
// errors.Is and answer with a restricted-content error instead of a generic
// extraction failure.
var ErrRestricted = errors.New("content is restricted")

var (
	watchURLPatterns = []string{
		`^https?://(www\.)?youtube\.com/watch\?`,
		`^https?://(www\.)?youtube\.com/embed/[\w-]+`,
		`^https?://(www\.)?youtube\.com/shorts/[\w-]+`,
		`^https?://youtu\.be/[\w-]+`,
		`^https?://(www\.)?youtube\.com/v/[\w-]+`,
		`^https?://(m\.)?youtube\.com/watch\?`,
	}
	videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/|youtube\.com/v/)([a-zA-Z0-9_-]{11})`)
)

type Client struct {
	client     *youtube.Client
	httpClient *http.Client
}

// NewClient creates a new stream extractor backed by the YouTube
// extraction library.
func NewClient(cfg *config.ExtractorConfig) *Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.RequestTimeout > 0 {
		timeout = cfg.RequestTimeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	ytClient := &youtube.Client{
		HTTPClient: httpClient,
	}

	return &Client{
		client:     ytClient,
		httpClient: httpClient,
	}
}

// IsWatchURL checks if the provided URL is a supported watch URL
func (c *Client) IsWatchURL(url string) bool {
	for _, pattern := range watchURLPatterns {
		matched, _ := regexp.MatchString(pattern, url)
		if matched {
			return true
		}
	}
	return false
}

// ParseWatchURL extracts the video ID from a watch URL
func (c *Client) ParseWatchURL(url string) (string, error) {
	matches := videoIDPattern.FindStringSubmatch(url)
	if len(matches) > 1 {
		return matches[1], nil
	}
	return "", fmt.Errorf("could not extract video ID from watch URL: %s", url)
}

// NormalizeURL reduces host variants, mobile links and tracking parameters
// to the canonical watch URL used as the cache key.
func (c *Client) NormalizeURL(url string) (string, error) {
	videoID, err := c.ParseWatchURL(url)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID), nil
}

// Extract resolves stream candidates for a video and groups them into
// audio-only, video-only and mixed lists.
func (c *Client) Extract(ctx context.Context, videoID string) (*models.StreamInfo, error) {
	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if isRestrictedError(err) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrRestricted)
		}
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	info := &models.StreamInfo{
		ServiceID:   ServiceID,
		VideoID:     video.ID,
		Title:       video.Title,
		Author:      video.Author,
		Description: video.Description,
		Duration:    video.Duration,
		ExtractedAt: time.Now(),
	}

	if len(video.Thumbnails) > 0 {
		info.ThumbnailURL = video.Thumbnails[0].URL
	}

	for _, format := range video.Formats {
		candidate := mapFormat(&format)
		if candidate == nil {
			continue
		}
		switch {
		case !candidate.AdaptiveOnly:
			info.MixedStreams = append(info.MixedStreams, *candidate)
		case strings.HasPrefix(candidate.MimeType, "audio"):
			info.AudioStreams = append(info.AudioStreams, *candidate)
		default:
			info.VideoStreams = append(info.VideoStreams, *candidate)
		}
	}

	if len(info.AudioStreams) == 0 && len(info.VideoStreams) == 0 && len(info.MixedStreams) == 0 {
		return nil, fmt.Errorf("no playable streams reported for video %s", videoID)
	}

	return info, nil
}

// isRestrictedError reports whether the library refused the video because a
// viewer account is required to see it.
func isRestrictedError(err error) bool {
	return errors.Is(err, youtube.ErrLoginRequired) || errors.Is(err, youtube.ErrVideoPrivate)
}

// OpenStream opens the remote track behind a candidate. The video is
// re-fetched so the library can refresh short-lived track URLs.
func (c *Client) OpenStream(ctx context.Context, info *models.StreamInfo, candidate *models.StreamCandidate) (io.ReadCloser, int64, error) {
	video, err := c.client.GetVideoContext(ctx, info.VideoID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to refresh video: %w", err)
	}

	var format *youtube.Format
	for i := range video.Formats {
		if video.Formats[i].ItagNo == candidate.Itag {
			format = &video.Formats[i]
			break
		}
	}
	if format == nil {
		return nil, 0, fmt.Errorf("itag %d no longer offered for video %s", candidate.Itag, info.VideoID)
	}

	stream, size, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get stream: %w", err)
	}
	return stream, size, nil
}

// mapFormat converts a library format into a stream candidate. Formats
// with no direct URL (encrypted signatures the library could not solve)
// are skipped.
func mapFormat(format *youtube.Format) *models.StreamCandidate {
	if format.MimeType == "" {
		return nil
	}

	hasVideo := strings.HasPrefix(format.MimeType, "video")
	hasAudio := strings.HasPrefix(format.MimeType, "audio") || format.AudioChannels > 0

	candidate := &models.StreamCandidate{
		URL:           format.URL,
		Itag:          format.ItagNo,
		MimeType:      format.MimeType,
		Container:     parseContainer(format.MimeType),
		QualityLabel:  format.QualityLabel,
		Height:        format.Height,
		FPS:           format.FPS,
		Bitrate:       format.Bitrate,
		AudioChannels: format.AudioChannels,
		ContentLength: format.ContentLength,
		AdaptiveOnly:  !(hasVideo && hasAudio),
	}

	return candidate
}

// parseContainer pulls the container name out of a mime type like
// `video/mp4; codecs="avc1.4d401f"`.
func parseContainer(mimeType string) string {
	base := mimeType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	if idx := strings.Index(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSpace(base)
}
