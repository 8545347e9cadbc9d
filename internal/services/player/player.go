// Package player orchestrates playback sessions: resolve through the info
// cache, download the selected tracks, merge DASH audio and video with
// ffmpeg and publish the artifact to object storage.
package player

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/services/downloader"
	"github.com/flowtube/flowtube/internal/services/extractor"
	"github.com/flowtube/flowtube/internal/services/infocache"
	"github.com/flowtube/flowtube/internal/services/selector"
	"github.com/flowtube/flowtube/internal/services/storage"
	"github.com/flowtube/flowtube/internal/utils"
)

// SessionStore is the session persistence surface the manager depends on.
// *database.MongoDB implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.PlaybackSession) error
	UpdateSession(ctx context.Context, session *models.PlaybackSession) error
	// UpdateSessionProgress writes only the progress fields of a live
	// session. It must never touch the state field.
	UpdateSessionProgress(ctx context.Context, sessionID string, progress models.Progress) error
	GetSessionByID(ctx context.Context, sessionID string) (*models.PlaybackSession, error)
	GetSessionByVideoQuality(ctx context.Context, videoID, quality string) (*models.PlaybackSession, error)
	ListSessions(ctx context.Context, opts models.PaginationOptions) ([]models.PlaybackSession, int64, error)
	RecordResolution(ctx context.Context, record *models.ResolutionRecord) error
}

// Manager owns the playback session lifecycle.
type Manager struct {
	db        SessionStore
	storage   storage.StorageInterface
	extractor extractor.StreamExtractor
	cache     infocache.InfoCache
	fetcher   *downloader.Fetcher
	selector  *selector.Selector
	cfg       *config.PlaybackConfig
	cacheCfg  *config.CacheConfig

	mu     sync.Mutex
	active map[string]*activeSession
	byKey  map[string]*models.PlaybackSession // dedup key -> snapshot of the in-flight session
	wg     sync.WaitGroup
	closed bool
}

// activeSession tracks an in-flight pipeline: its cancel handle and the live
// byte counters the progress loop publishes. The session struct itself is
// owned by the run goroutine; everyone else reads these atomics.
type activeSession struct {
	key      string
	cancel   context.CancelFunc
	buffered atomic.Int64
	expected atomic.Int64
}

func NewManager(db SessionStore, store storage.StorageInterface, ext extractor.StreamExtractor, cache infocache.InfoCache, fetcher *downloader.Fetcher, sel *selector.Selector, cfg *config.PlaybackConfig, cacheCfg *config.CacheConfig) *Manager {
	return &Manager{
		db:        db,
		storage:   store,
		extractor: ext,
		cache:     cache,
		fetcher:   fetcher,
		selector:  sel,
		cfg:       cfg,
		cacheCfg:  cacheCfg,
		active:    make(map[string]*activeSession),
		byKey:     make(map[string]*models.PlaybackSession),
	}
}

// Resolve fetches stream info for a watch URL through the cache and picks
// candidates for the requested quality. It backs the resolve endpoint and
// the first stage of the playback pipeline.
func (m *Manager) Resolve(ctx context.Context, url, quality string) (*models.ResolveResponse, error) {
	if !m.extractor.IsWatchURL(url) {
		return nil, utils.NewInvalidURLError(url)
	}
	videoID, err := m.extractor.ParseWatchURL(url)
	if err != nil {
		return nil, utils.NewInvalidURLError(url)
	}
	tier, err := selector.ParseVideoTier(quality)
	if err != nil {
		return nil, utils.NewValidationError("Invalid quality tier", map[string]interface{}{
			"quality": quality,
		})
	}

	info, fromCache, err := m.resolveInfo(ctx, url, videoID)
	if err != nil {
		return nil, err
	}

	resp := &models.ResolveResponse{
		Info:      info,
		FromCache: fromCache,
	}
	if audio, err := m.selector.SelectAudio(info.AudioStreams, selector.Tier{Kind: selector.TierBest}); err == nil {
		resp.SelectedAudio = audio
	}
	if video, err := m.selector.SelectVideo(info.VideoStreams, tier); err == nil {
		resp.SelectedVideo = video
	}
	if mixed, err := m.selector.SelectMixed(info.MixedStreams, tier); err == nil {
		resp.SelectedMixed = mixed
	}

	if resp.SelectedAudio == nil && resp.SelectedVideo == nil && resp.SelectedMixed == nil {
		return nil, utils.NewNoSuitableStreamError(quality)
	}

	return resp, nil
}

// resolveInfo is the cache-through extraction path shared by Resolve and
// the pipeline.
func (m *Manager) resolveInfo(ctx context.Context, url, videoID string) (*models.StreamInfo, bool, error) {
	normalized, err := m.extractor.NormalizeURL(url)
	if err != nil {
		return nil, false, utils.NewInvalidURLError(url)
	}

	key := infocache.Key{
		ServiceID:   extractor.ServiceID,
		URL:         normalized,
		ContentType: models.ContentTypeStream,
	}

	if info, found := m.cache.Get(key); found {
		return info, true, nil
	}

	info, err := m.extractor.Extract(ctx, videoID)
	if err != nil {
		if errors.Is(err, extractor.ErrRestricted) {
			return nil, false, utils.NewRestrictedContentError(videoID)
		}
		utils.LogError(ctx, "Extraction failed", err, utils.Fields{"video_id": videoID})
		return nil, false, utils.NewExtractionError(videoID)
	}

	m.cache.Set(key, info, m.cacheCfg.StreamTTL)

	record := &models.ResolutionRecord{
		ID:            uuid.New(),
		ServiceID:     extractor.ServiceID,
		VideoID:       info.VideoID,
		NormalizedURL: normalized,
		Title:         info.Title,
		Author:        info.Author,
		AudioCount:    len(info.AudioStreams),
		VideoCount:    len(info.VideoStreams),
		MixedCount:    len(info.MixedStreams),
		Restricted:    m.cache.RestrictedMode(extractor.ServiceID),
		ExtractedAt:   info.ExtractedAt,
	}
	if err := m.db.RecordResolution(ctx, record); err != nil {
		utils.LogWarn(ctx, "Failed to record resolution", utils.Fields{"video_id": info.VideoID})
	}

	return info, false, nil
}

func dedupKey(videoID, quality string) string {
	return videoID + "|" + quality
}

// Prepare creates or reuses a playback session for a watch URL. The heavy
// pipeline runs asynchronously; callers poll the session state. The
// returned session is a snapshot, never the struct the pipeline mutates.
func (m *Manager) Prepare(ctx context.Context, url, quality string) (*models.PlaybackSession, error) {
	if !m.extractor.IsWatchURL(url) {
		return nil, utils.NewInvalidURLError(url)
	}
	videoID, err := m.extractor.ParseWatchURL(url)
	if err != nil {
		return nil, utils.NewInvalidURLError(url)
	}
	if quality == "" {
		quality = "best"
	}
	tier, err := selector.ParseVideoTier(quality)
	if err != nil {
		return nil, utils.NewValidationError("Invalid quality tier", map[string]interface{}{
			"quality": quality,
		})
	}

	key := dedupKey(videoID, quality)

	// An in-flight session for this pair wins over anything in the store.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, utils.NewInternalError()
	}
	if snapshot, inFlight := m.byKey[key]; inFlight {
		m.mu.Unlock()
		reuse := *snapshot
		return &reuse, nil
	}
	m.mu.Unlock()

	// Reuse ready or queued sessions from the store; retry failed and
	// cancelled ones with a fresh session.
	existing, err := m.db.GetSessionByVideoQuality(ctx, videoID, quality)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if existing != nil && existing.State != models.SessionStateFailed && existing.State != models.SessionStateCancelled {
		return existing, nil
	}

	session := &models.PlaybackSession{
		ID:        uuid.New(),
		SessionID: utils.GenerateSessionID(),
		VideoID:   videoID,
		SourceURL: url,
		Quality:   quality,
		State:     models.SessionStatePending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	snapshot := *session

	// Registering the dedup snapshot and the insert decision happen under
	// one lock so concurrent Play requests for the same pair cannot
	// double-create.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, utils.NewInternalError()
	}
	if other, inFlight := m.byKey[key]; inFlight {
		m.mu.Unlock()
		reuse := *other
		return &reuse, nil
	}
	pipelineCtx, cancel := context.WithTimeout(context.Background(), m.cfg.SessionTimeout)
	state := &activeSession{key: key, cancel: cancel}
	m.active[session.SessionID] = state
	m.byKey[key] = &snapshot
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.db.CreateSession(ctx, session); err != nil {
		m.finishTracking(session.SessionID, state)
		return nil, utils.NewDatabaseError(err)
	}

	go m.run(pipelineCtx, session, tier, state)

	result := snapshot
	return &result, nil
}

// plan pre-selects candidates so the session records the chosen itags and a
// byte estimate before the downloads start. Downloaders re-run the same
// deterministic selection later.
func (m *Manager) plan(session *models.PlaybackSession, info *models.StreamInfo, tier selector.Tier) (mixed bool, expected int64) {
	audio, audioErr := m.selector.SelectAudio(info.AudioStreams, selector.Tier{Kind: selector.TierBest})
	video, videoErr := m.selector.SelectVideo(info.VideoStreams, tier)

	if audioErr == nil && videoErr == nil {
		session.AudioItag = audio.Itag
		session.VideoItag = video.Itag
		return false, audio.ContentLength + video.ContentLength
	}

	if muxed, err := m.selector.SelectMixed(info.MixedStreams, tier); err == nil {
		session.Mixed = true
		session.VideoItag = muxed.Itag
		return true, muxed.ContentLength
	}

	// Leave the decision to the pipeline, which will fail the session with
	// a proper error message.
	return audioErr != nil || videoErr != nil, 0
}

// run executes the pipeline for one session. The session struct is owned by
// this goroutine from here on.
func (m *Manager) run(ctx context.Context, session *models.PlaybackSession, tier selector.Tier, state *activeSession) {
	defer m.finishTracking(session.SessionID, state)

	m.transition(ctx, session, models.SessionStateResolving)

	info, _, err := m.resolveInfo(ctx, session.SourceURL, session.VideoID)
	if err != nil {
		m.fail(session, err)
		return
	}

	session.Title = info.Title
	session.Author = info.Author
	session.Duration = info.Duration

	mixed, expected := m.plan(session, info, tier)
	state.expected.Store(expected)

	workDir, err := os.MkdirTemp(m.cfg.WorkDir, "flowtube_session_*")
	if err != nil {
		m.fail(session, fmt.Errorf("failed to create work directory: %w", err))
		return
	}
	defer os.RemoveAll(workDir)

	m.transition(ctx, session, models.SessionStateDownloading)

	stopProgress := m.startProgressLoop(session.SessionID, state)
	defer stopProgress()

	progress := func(delta int64) { state.buffered.Add(delta) }

	var merged string
	if mixed {
		merged, err = m.runMixed(ctx, info, tier, workDir, progress)
	} else {
		merged, err = m.runAdaptive(ctx, session, info, tier, workDir, progress)
	}
	if err != nil {
		m.fail(session, err)
		return
	}

	hash, size, err := hashFile(merged)
	if err != nil {
		m.fail(session, fmt.Errorf("failed to hash merged file: %w", err))
		return
	}

	s3Key := fmt.Sprintf("playback/%s/%s.mp4", session.VideoID, session.SessionID)
	metadata := map[string]string{
		"session_id": session.SessionID,
		"video_id":   session.VideoID,
		"title":      session.Title,
		"author":     session.Author,
		"quality":    session.Quality,
	}

	// Record the artifact location before uploading so a failed upload
	// cleans up whatever landed.
	session.S3Bucket = m.storage.BucketName()
	session.S3Key = s3Key

	if err := m.storage.UploadFile(ctx, s3Key, merged, "video/mp4", metadata); err != nil {
		m.fail(session, fmt.Errorf("failed to upload artifact: %w", err))
		return
	}

	// Stop progress writes before the terminal update so a late tick
	// cannot land after the ready row.
	stopProgress()

	session.FileHash = hash
	session.TotalSize = size
	session.Progress = models.Progress{
		BufferedBytes: state.buffered.Load(),
		ExpectedBytes: state.expected.Load(),
		Percent:       100,
	}
	m.transition(ctx, session, models.SessionStateReady)

	utils.LogInfo(ctx, "Playback session ready", utils.Fields{
		"session_id": session.SessionID,
		"video_id":   session.VideoID,
		"quality":    session.Quality,
		"bytes":      size,
	})
}

// runAdaptive downloads the audio and video tracks in parallel and merges
// them into a single container.
func (m *Manager) runAdaptive(ctx context.Context, session *models.PlaybackSession, info *models.StreamInfo, tier selector.Tier, workDir string, progress downloader.ProgressFunc) (string, error) {
	var (
		wg          sync.WaitGroup
		audioResult *downloader.Result
		videoResult *downloader.Result
	)
	errChan := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := m.fetcher.Audio().Download(ctx, info, tier, workDir, progress)
		if err != nil {
			errChan <- fmt.Errorf("audio track: %w", err)
			return
		}
		audioResult = result
	}()
	go func() {
		defer wg.Done()
		result, err := m.fetcher.Video().Download(ctx, info, tier, workDir, progress)
		if err != nil {
			errChan <- fmt.Errorf("video track: %w", err)
			return
		}
		videoResult = result
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return "", err
		}
	}

	m.transition(ctx, session, models.SessionStateMerging)

	outputPath := filepath.Join(workDir, "merged.mp4")
	if err := m.mergeTracks(ctx, videoResult.Path, audioResult.Path, outputPath); err != nil {
		return "", utils.NewMergeError(err)
	}
	return outputPath, nil
}

// runMixed fetches a muxed track; no merge step is needed.
func (m *Manager) runMixed(ctx context.Context, info *models.StreamInfo, tier selector.Tier, workDir string, progress downloader.ProgressFunc) (string, error) {
	result, err := m.fetcher.Mixed().Download(ctx, info, tier, workDir, progress)
	if err != nil {
		return "", fmt.Errorf("mixed track: %w", err)
	}
	return result.Path, nil
}

// mergeTracks merges video and audio files using ffmpeg.
func (m *Manager) mergeTracks(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if _, err := exec.LookPath(m.cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", m.cfg.FFmpegPath, err)
	}

	cmd := exec.CommandContext(ctx, m.cfg.FFmpegPath,
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy", // Copy video stream without re-encoding
		"-c:a", "aac", // Encode audio to AAC
		"-strict", "experimental",
		"-y", // Overwrite output file
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, string(output))
	}

	return nil
}

// startProgressLoop publishes the buffered-byte counters at the configured
// interval until the returned stop func runs. It only ever writes the
// progress fields of the row, never the full session.
func (m *Manager) startProgressLoop(sessionID string, state *activeSession) func() {
	interval := m.cfg.ProgressInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				buffered := state.buffered.Load()
				expected := state.expected.Load()
				progress := models.Progress{
					BufferedBytes: buffered,
					ExpectedBytes: expected,
					Percent:       percent(buffered, expected),
				}
				updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := m.db.UpdateSessionProgress(updateCtx, sessionID, progress); err != nil {
					utils.LogWarn(updateCtx, "Failed to publish session progress", utils.Fields{
						"session_id": sessionID,
					})
				}
				cancel()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// Session returns one session, overlaying live progress for in-flight runs.
func (m *Manager) Session(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	session, err := m.db.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if session == nil {
		return nil, utils.NewSessionNotFoundError(sessionID)
	}

	m.mu.Lock()
	state, running := m.active[session.SessionID]
	m.mu.Unlock()
	if running {
		buffered := state.buffered.Load()
		expected := state.expected.Load()
		session.Progress = models.Progress{
			BufferedBytes: buffered,
			ExpectedBytes: expected,
			Percent:       percent(buffered, expected),
		}
	}

	return session, nil
}

// List returns sessions with pagination.
func (m *Manager) List(ctx context.Context, opts models.PaginationOptions) ([]models.PlaybackSession, int64, error) {
	sessions, total, err := m.db.ListSessions(ctx, opts)
	if err != nil {
		return nil, 0, utils.NewDatabaseError(err)
	}
	return sessions, total, nil
}

// Cancel stops an in-flight session or marks a queued one cancelled.
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	session, err := m.db.GetSessionByID(ctx, sessionID)
	if err != nil {
		return utils.NewDatabaseError(err)
	}
	if session == nil {
		return utils.NewSessionNotFoundError(sessionID)
	}
	if session.State.Terminal() {
		return nil
	}

	m.mu.Lock()
	state, running := m.active[sessionID]
	m.mu.Unlock()
	if running {
		state.cancel()
	}

	session.State = models.SessionStateCancelled
	session.UpdatedAt = time.Now()
	if err := m.db.UpdateSession(ctx, session); err != nil {
		return utils.NewDatabaseError(err)
	}
	return nil
}

// Close drains in-flight sessions, honoring the context deadline.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown deadline reached with sessions still in flight: %w", ctx.Err())
	}
}

func (m *Manager) transition(ctx context.Context, session *models.PlaybackSession, state models.SessionState) {
	session.State = state
	session.UpdatedAt = time.Now()
	updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.db.UpdateSession(updateCtx, session); err != nil {
		utils.LogError(ctx, "Failed to update session state", err, utils.Fields{
			"session_id": session.SessionID,
			"state":      string(state),
		})
	}
}

func (m *Manager) fail(session *models.PlaybackSession, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	utils.LogError(ctx, "Playback session failed", cause, utils.Fields{
		"session_id": session.SessionID,
		"video_id":   session.VideoID,
	})

	// Remove a half-uploaded artifact so a retry starts clean.
	if session.S3Key != "" {
		if err := m.storage.Delete(ctx, session.S3Key); err != nil {
			utils.LogWarn(ctx, "Failed to remove partial artifact", utils.Fields{
				"s3_key": session.S3Key,
			})
		}
		session.S3Bucket = ""
		session.S3Key = ""
	}

	state := models.SessionStateFailed
	if errors.Is(cause, context.Canceled) {
		state = models.SessionStateCancelled
	}

	errMsg := cause.Error()
	session.ErrorMessage = &errMsg
	session.State = state
	session.UpdatedAt = time.Now()
	if err := m.db.UpdateSession(ctx, session); err != nil {
		utils.LogError(ctx, "Failed to record session failure", err, utils.Fields{
			"session_id": session.SessionID,
		})
	}
}

func (m *Manager) finishTracking(sessionID string, state *activeSession) {
	state.cancel()
	m.mu.Lock()
	delete(m.active, sessionID)
	delete(m.byKey, state.key)
	m.mu.Unlock()
	m.wg.Done()
}

func percent(buffered, expected int64) float64 {
	if expected <= 0 {
		return 0
	}
	p := float64(buffered) / float64(expected) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// hashFile computes the sha256 of a file on disk.
func hashFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), size, nil
}
