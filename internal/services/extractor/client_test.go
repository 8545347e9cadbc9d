package extractor

import (
	"testing"

	"github.com/kkdai/youtube/v2"
)

func TestIsWatchURL(t *testing.T) {
	client := NewClient(nil)

	testCases := []struct {
		name    string
		url     string
		isWatch bool
	}{
		{
			name:    "Standard watch URL",
			url:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Short youtu.be URL",
			url:     "https://youtu.be/dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Embed URL",
			url:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Shorts URL",
			url:     "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Mobile URL",
			url:     "https://m.youtube.com/watch?v=dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Plain http",
			url:     "http://youtube.com/watch?v=dQw4w9WgXcQ",
			isWatch: true,
		},
		{
			name:    "Channel page is not a watch URL",
			url:     "https://www.youtube.com/@somechannel",
			isWatch: false,
		},
		{
			name:    "Other domain",
			url:     "https://example.com/watch?v=dQw4w9WgXcQ",
			isWatch: false,
		},
		{
			name:    "Not a URL",
			url:     "dQw4w9WgXcQ",
			isWatch: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := client.IsWatchURL(tc.url); got != tc.isWatch {
				t.Errorf("IsWatchURL(%q) = %v, want %v", tc.url, got, tc.isWatch)
			}
		})
	}
}

func TestParseWatchURL(t *testing.T) {
	client := NewClient(nil)

	testCases := []struct {
		name        string
		url         string
		wantID      string
		expectError bool
	}{
		{
			name:   "Standard watch URL",
			url:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantID: "dQw4w9WgXcQ",
		},
		{
			name:   "Watch URL with extra parameters",
			url:    "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&t=42",
			wantID: "dQw4w9WgXcQ",
		},
		{
			name:   "Short URL",
			url:    "https://youtu.be/dQw4w9WgXcQ?si=tracking",
			wantID: "dQw4w9WgXcQ",
		},
		{
			name:   "Shorts URL",
			url:    "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			wantID: "dQw4w9WgXcQ",
		},
		{
			name:        "No video ID",
			url:         "https://www.youtube.com/feed/subscriptions",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := client.ParseWatchURL(tc.url)
			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error for %q, got ID %q", tc.url, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWatchURL(%q) failed: %v", tc.url, err)
			}
			if id != tc.wantID {
				t.Errorf("Expected ID %q, got %q", tc.wantID, id)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	client := NewClient(nil)
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	variants := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
	}

	for _, url := range variants {
		normalized, err := client.NormalizeURL(url)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) failed: %v", url, err)
		}
		if normalized != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", url, normalized, want)
		}
	}
}

func TestParseContainer(t *testing.T) {
	testCases := []struct {
		mimeType string
		want     string
	}{
		{`video/mp4; codecs="avc1.4d401f"`, "mp4"},
		{`audio/webm; codecs="opus"`, "webm"},
		{"video/3gpp", "3gpp"},
		{"audio/mp4", "mp4"},
	}

	for _, tc := range testCases {
		if got := parseContainer(tc.mimeType); got != tc.want {
			t.Errorf("parseContainer(%q) = %q, want %q", tc.mimeType, got, tc.want)
		}
	}
}

func TestMapFormat(t *testing.T) {
	testCases := []struct {
		name         string
		format       youtube.Format
		adaptiveOnly bool
		skip         bool
	}{
		{
			name: "Muxed track carries audio and video",
			format: youtube.Format{
				ItagNo:        22,
				MimeType:      `video/mp4; codecs="avc1.64001F, mp4a.40.2"`,
				AudioChannels: 2,
				Height:        720,
			},
			adaptiveOnly: false,
		},
		{
			name: "Video-only track is adaptive",
			format: youtube.Format{
				ItagNo:   137,
				MimeType: `video/mp4; codecs="avc1.640028"`,
				Height:   1080,
			},
			adaptiveOnly: true,
		},
		{
			name: "Audio-only track is adaptive",
			format: youtube.Format{
				ItagNo:        140,
				MimeType:      `audio/mp4; codecs="mp4a.40.2"`,
				AudioChannels: 2,
			},
			adaptiveOnly: true,
		},
		{
			name:   "Format without mime type is skipped",
			format: youtube.Format{ItagNo: 0},
			skip:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			candidate := mapFormat(&tc.format)
			if tc.skip {
				if candidate != nil {
					t.Errorf("Expected format to be skipped, got %+v", candidate)
				}
				return
			}
			if candidate == nil {
				t.Fatal("Expected a candidate")
			}
			if candidate.AdaptiveOnly != tc.adaptiveOnly {
				t.Errorf("Expected AdaptiveOnly=%v, got %v", tc.adaptiveOnly, candidate.AdaptiveOnly)
			}
			if candidate.Itag != tc.format.ItagNo {
				t.Errorf("Expected itag %d, got %d", tc.format.ItagNo, candidate.Itag)
			}
		})
	}
}
