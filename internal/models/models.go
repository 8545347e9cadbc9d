package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamCandidate is a single playable audio or video track as reported by
// the extraction library. AdaptiveOnly marks DASH tracks that carry either
// audio or video but not both and must be merged before playback.
type StreamCandidate struct {
	URL           string `json:"url" bson:"url"`
	Itag          int    `json:"itag" bson:"itag"`
	MimeType      string `json:"mime_type" bson:"mime_type"`
	Container     string `json:"container" bson:"container"`
	QualityLabel  string `json:"quality_label,omitempty" bson:"quality_label,omitempty"`
	Height        int    `json:"height,omitempty" bson:"height,omitempty"`
	FPS           int    `json:"fps,omitempty" bson:"fps,omitempty"`
	Bitrate       int    `json:"bitrate" bson:"bitrate"`
	AudioChannels int    `json:"audio_channels,omitempty" bson:"audio_channels,omitempty"`
	ContentLength int64  `json:"content_length,omitempty" bson:"content_length,omitempty"`
	AdaptiveOnly  bool   `json:"adaptive_only" bson:"adaptive_only"`
}

// StreamInfo is the result of resolving a watch URL: video metadata plus
// the candidate tracks grouped by kind.
type StreamInfo struct {
	ServiceID    string            `json:"service_id" bson:"service_id"`
	VideoID      string            `json:"video_id" bson:"video_id"`
	Title        string            `json:"title" bson:"title"`
	Author       string            `json:"author" bson:"author"`
	Description  string            `json:"description,omitempty" bson:"description,omitempty"`
	Duration     time.Duration     `json:"duration" bson:"duration"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty" bson:"thumbnail_url,omitempty"`
	AudioStreams []StreamCandidate `json:"audio_streams" bson:"audio_streams"`
	VideoStreams []StreamCandidate `json:"video_streams" bson:"video_streams"`
	MixedStreams []StreamCandidate `json:"mixed_streams" bson:"mixed_streams"`
	ExtractedAt  time.Time         `json:"extracted_at" bson:"extracted_at"`
}

// ContentType classifies what a cached extraction result describes.
type ContentType string

const (
	ContentTypeStream   ContentType = "stream"
	ContentTypeChannel  ContentType = "channel"
	ContentTypePlaylist ContentType = "playlist"
	ContentTypeComments ContentType = "comments"
)

// RestrictionSensitive reports whether entries of this type must be dropped
// when the per-service restricted content mode flips. Stream URLs and
// comments differ under restricted mode; channel and playlist listings do not.
func (t ContentType) RestrictionSensitive() bool {
	return t == ContentTypeStream || t == ContentTypeComments
}

type SessionState string

const (
	SessionStatePending     SessionState = "pending"
	SessionStateResolving   SessionState = "resolving"
	SessionStateDownloading SessionState = "downloading"
	SessionStateMerging     SessionState = "merging"
	SessionStateReady       SessionState = "ready"
	SessionStateFailed      SessionState = "failed"
	SessionStateCancelled   SessionState = "cancelled"
)

// Terminal reports whether a session in this state will never change again.
func (s SessionState) Terminal() bool {
	return s == SessionStateReady || s == SessionStateFailed || s == SessionStateCancelled
}

// PlaybackSession tracks one prepare-for-playback pipeline run.
type PlaybackSession struct {
	ID           uuid.UUID     `json:"id" bson:"_id"`
	SessionID    string        `json:"session_id" bson:"session_id"`
	VideoID      string        `json:"video_id" bson:"video_id"`
	SourceURL    string        `json:"source_url" bson:"source_url"`
	Title        string        `json:"title" bson:"title"`
	Author       string        `json:"author" bson:"author"`
	Quality      string        `json:"quality" bson:"quality"`
	State        SessionState  `json:"state" bson:"state"`
	Mixed        bool          `json:"mixed" bson:"mixed"`
	AudioItag    int           `json:"audio_itag,omitempty" bson:"audio_itag,omitempty"`
	VideoItag    int           `json:"video_itag,omitempty" bson:"video_itag,omitempty"`
	Progress     Progress      `json:"progress" bson:"progress"`
	TotalSize    int64         `json:"total_size" bson:"total_size"`
	FileHash     string        `json:"file_hash,omitempty" bson:"file_hash,omitempty"`
	S3Bucket     string        `json:"s3_bucket,omitempty" bson:"s3_bucket,omitempty"`
	S3Key        string        `json:"s3_key,omitempty" bson:"s3_key,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at"`
	Duration     time.Duration `json:"duration,omitempty" bson:"duration,omitempty"`
}

// ResolutionRecord is the audit row written for every fresh extraction.
// Cache hits are not recorded.
type ResolutionRecord struct {
	ID            uuid.UUID `json:"id" bson:"_id"`
	ServiceID     string    `json:"service_id" bson:"service_id"`
	VideoID       string    `json:"video_id" bson:"video_id"`
	NormalizedURL string    `json:"normalized_url" bson:"normalized_url"`
	Title         string    `json:"title" bson:"title"`
	Author        string    `json:"author" bson:"author"`
	AudioCount    int       `json:"audio_count" bson:"audio_count"`
	VideoCount    int       `json:"video_count" bson:"video_count"`
	MixedCount    int       `json:"mixed_count" bson:"mixed_count"`
	Restricted    bool      `json:"restricted" bson:"restricted"`
	ExtractedAt   time.Time `json:"extracted_at" bson:"extracted_at"`
}

// Progress carries the buffered byte counters updated while the session
// downloads its tracks.
type Progress struct {
	BufferedBytes int64   `json:"buffered_bytes" bson:"buffered_bytes"`
	ExpectedBytes int64   `json:"expected_bytes" bson:"expected_bytes"`
	Percent       float64 `json:"percent" bson:"percent"`
}

type PaginationOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort"`
}

// Request/response payloads.

type ResolveRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality string `json:"quality,omitempty"`
}

type ResolveResponse struct {
	Info          *StreamInfo      `json:"info"`
	SelectedAudio *StreamCandidate `json:"selected_audio,omitempty"`
	SelectedVideo *StreamCandidate `json:"selected_video,omitempty"`
	SelectedMixed *StreamCandidate `json:"selected_mixed,omitempty"`
	FromCache     bool             `json:"from_cache"`
}

type PlayRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality string `json:"quality,omitempty"`
}

type PlayResponse struct {
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	SessionID string       `json:"session_id"`
	State     SessionState `json:"state"`
}

type SessionListResponse struct {
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Sessions []SessionListItem `json:"sessions"`
}

type SessionListItem struct {
	SessionID string       `json:"session_id"`
	VideoID   string       `json:"video_id"`
	Title     string       `json:"title"`
	Quality   string       `json:"quality"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
}

type GetMediaRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type GetMediaURIRequest struct {
	SessionID     string `json:"session_id" binding:"required"`
	ExpiryMinutes int    `json:"expiry_minutes,omitempty"`
}

type GetMediaURIResponse struct {
	SessionID string    `json:"session_id"`
	S3URL     string    `json:"s3_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CacheStatsResponse struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
	MaxEntries  int   `json:"max_entries"`
}

type CacheInvalidateRequest struct {
	ServiceID   string `json:"service_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type CacheInvalidateResponse struct {
	Status  string `json:"status"`
	Evicted int    `json:"evicted"`
}

type RestrictedModeRequest struct {
	ServiceID  string `json:"service_id" binding:"required"`
	Restricted *bool  `json:"restricted" binding:"required"`
}

type RestrictedModeResponse struct {
	ServiceID  string `json:"service_id"`
	Restricted bool   `json:"restricted"`
	Evicted    int    `json:"evicted"`
}
