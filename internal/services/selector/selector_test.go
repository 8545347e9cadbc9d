package selector

import (
	"errors"
	"testing"

	"github.com/flowtube/flowtube/internal/models"
)

func videoCandidates() []models.StreamCandidate {
	return []models.StreamCandidate{
		{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Container: "mp4", Height: 1080, FPS: 30, Bitrate: 4500000, AdaptiveOnly: true},
		{Itag: 248, MimeType: `video/webm; codecs="vp9"`, Container: "webm", Height: 1080, FPS: 30, Bitrate: 3800000, AdaptiveOnly: true},
		{Itag: 136, MimeType: `video/mp4; codecs="avc1.4d401f"`, Container: "mp4", Height: 720, FPS: 30, Bitrate: 2500000, AdaptiveOnly: true},
		{Itag: 135, MimeType: `video/mp4; codecs="avc1.4d401e"`, Container: "mp4", Height: 480, FPS: 30, Bitrate: 1200000, AdaptiveOnly: true},
		{Itag: 160, MimeType: `video/mp4; codecs="avc1.4d400c"`, Container: "mp4", Height: 144, FPS: 15, Bitrate: 110000, AdaptiveOnly: true},
	}
}

func audioCandidates() []models.StreamCandidate {
	return []models.StreamCandidate{
		{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Container: "mp4", Bitrate: 128000, AudioChannels: 2, AdaptiveOnly: true},
		{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Container: "webm", Bitrate: 160000, AudioChannels: 2, AdaptiveOnly: true},
		{Itag: 249, MimeType: `audio/webm; codecs="opus"`, Container: "webm", Bitrate: 50000, AudioChannels: 2, AdaptiveOnly: true},
	}
}

func TestSelectVideoLadder(t *testing.T) {
	s := New("mp4", "m4a")
	candidates := videoCandidates()

	testCases := []struct {
		name     string
		quality  string
		wantItag int
	}{
		{
			name:     "best picks the highest resolution in preferred container",
			quality:  "best",
			wantItag: 137,
		},
		{
			name:     "worst picks the lowest resolution",
			quality:  "worst",
			wantItag: 160,
		},
		{
			name:     "exact tier match",
			quality:  "720p",
			wantItag: 136,
		},
		{
			name:     "nearest below when the tier is missing",
			quality:  "600p",
			wantItag: 135,
		},
		{
			name:     "nearest above when nothing is below",
			quality:  "100p",
			wantItag: 160,
		},
		{
			name:     "bare number works like a p suffix",
			quality:  "480",
			wantItag: 135,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tier, err := ParseVideoTier(tc.quality)
			if err != nil {
				t.Fatalf("ParseVideoTier(%q) failed: %v", tc.quality, err)
			}
			pick, err := s.SelectVideo(candidates, tier)
			if err != nil {
				t.Fatalf("SelectVideo failed: %v", err)
			}
			if pick.Itag != tc.wantItag {
				t.Errorf("Expected itag %d, got %d (%s)", tc.wantItag, pick.Itag, pick.QualityLabel)
			}
		})
	}
}

func TestSelectVideoContainerPreference(t *testing.T) {
	s := New("webm", "m4a")

	tier, _ := ParseVideoTier("best")
	pick, err := s.SelectVideo(videoCandidates(), tier)
	if err != nil {
		t.Fatalf("SelectVideo failed: %v", err)
	}
	if pick.Itag != 248 {
		t.Errorf("Expected webm itag 248, got %d", pick.Itag)
	}
}

func TestSelectVideoDeterministicUnderPermutation(t *testing.T) {
	s := New("mp4", "m4a")
	tier, _ := ParseVideoTier("720p")

	base := videoCandidates()
	reference, err := s.SelectVideo(base, tier)
	if err != nil {
		t.Fatalf("SelectVideo failed: %v", err)
	}

	// Rotate the input a few times; the pick must never change.
	for shift := 1; shift < len(base); shift++ {
		rotated := append(append([]models.StreamCandidate{}, base[shift:]...), base[:shift]...)
		pick, err := s.SelectVideo(rotated, tier)
		if err != nil {
			t.Fatalf("SelectVideo on rotated input failed: %v", err)
		}
		if pick.Itag != reference.Itag {
			t.Errorf("Rotation %d changed the pick: %d vs %d", shift, pick.Itag, reference.Itag)
		}
	}
}

func TestSelectAudio(t *testing.T) {
	s := New("mp4", "m4a")
	candidates := audioCandidates()

	testCases := []struct {
		name     string
		quality  string
		wantItag int
	}{
		{
			name:     "best prefers the mp4 track even at lower bitrate",
			quality:  "best",
			wantItag: 140,
		},
		{
			name:     "worst within preferred container",
			quality:  "worst",
			wantItag: 140,
		},
		{
			name:     "exact bitrate with k suffix",
			quality:  "128k",
			wantItag: 140,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tier, err := ParseAudioTier(tc.quality)
			if err != nil {
				t.Fatalf("ParseAudioTier(%q) failed: %v", tc.quality, err)
			}
			pick, err := s.SelectAudio(candidates, tier)
			if err != nil {
				t.Fatalf("SelectAudio failed: %v", err)
			}
			if pick.Itag != tc.wantItag {
				t.Errorf("Expected itag %d, got %d", tc.wantItag, pick.Itag)
			}
		})
	}
}

func TestSelectAudioFallsBackOutsideContainer(t *testing.T) {
	s := New("mp4", "m4a")
	candidates := []models.StreamCandidate{
		{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Container: "webm", Bitrate: 160000, AudioChannels: 2, AdaptiveOnly: true},
	}

	tier, _ := ParseAudioTier("best")
	pick, err := s.SelectAudio(candidates, tier)
	if err != nil {
		t.Fatalf("SelectAudio failed: %v", err)
	}
	if pick.Itag != 251 {
		t.Errorf("Expected fallback to itag 251, got %d", pick.Itag)
	}
}

func TestSelectMixedSkipsAdaptiveOnly(t *testing.T) {
	s := New("mp4", "m4a")
	candidates := []models.StreamCandidate{
		{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Container: "mp4", Height: 1080, Bitrate: 4500000, AdaptiveOnly: true},
		{Itag: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Container: "mp4", Height: 720, Bitrate: 2000000, AudioChannels: 2},
		{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Container: "mp4", Height: 360, Bitrate: 700000, AudioChannels: 2},
	}

	tier, _ := ParseVideoTier("best")
	pick, err := s.SelectMixed(candidates, tier)
	if err != nil {
		t.Fatalf("SelectMixed failed: %v", err)
	}
	if pick.Itag != 22 {
		t.Errorf("Expected muxed itag 22, got %d", pick.Itag)
	}
	if pick.AdaptiveOnly {
		t.Error("SelectMixed returned an adaptive-only candidate")
	}
}

func TestSelectNoCandidate(t *testing.T) {
	s := New("mp4", "m4a")
	tier, _ := ParseVideoTier("best")

	if _, err := s.SelectVideo(nil, tier); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("Expected ErrNoCandidate for empty input, got %v", err)
	}
	if _, err := s.SelectAudio(videoCandidates(), tier); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("Expected ErrNoCandidate for audio over video-only input, got %v", err)
	}
	if _, err := s.SelectMixed(videoCandidates(), tier); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("Expected ErrNoCandidate for mixed over adaptive-only input, got %v", err)
	}
}

func TestParseTierErrors(t *testing.T) {
	testCases := []struct {
		name    string
		quality string
		audio   bool
	}{
		{name: "garbage video tier", quality: "ultra"},
		{name: "garbage audio tier", quality: "loud", audio: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.audio {
				_, err = ParseAudioTier(tc.quality)
			} else {
				_, err = ParseVideoTier(tc.quality)
			}
			if err == nil {
				t.Errorf("Expected parse error for %q", tc.quality)
			}
		})
	}
}
