// Package selector implements deterministic quality selection over stream
// candidates. The fallback ladder is: exact tier, then nearest below, then
// nearest above, then any candidate at all.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/flowtube/flowtube/internal/models"
)

// ErrNoCandidate is returned when the candidate list holds nothing playable
// for the requested kind.
var ErrNoCandidate = errors.New("no suitable stream candidate")

// TierKind discriminates how a Tier constrains selection.
type TierKind int

const (
	TierBest TierKind = iota
	TierWorst
	TierTarget
)

// Tier is a parsed quality request. For video the target is a frame height,
// for audio a bitrate in bits per second.
type Tier struct {
	Kind   TierKind
	Target int
}

var qualityNumber = regexp.MustCompile(`(\d+)`)

// ParseVideoTier parses quality strings like "best", "worst", "720p", "720".
func ParseVideoTier(quality string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "", "best":
		return Tier{Kind: TierBest}, nil
	case "worst":
		return Tier{Kind: TierWorst}, nil
	}
	matches := qualityNumber.FindStringSubmatch(quality)
	if len(matches) > 1 {
		if target, err := strconv.Atoi(matches[1]); err == nil && target > 0 {
			return Tier{Kind: TierTarget, Target: target}, nil
		}
	}
	return Tier{}, fmt.Errorf("unrecognized quality tier: %q", quality)
}

// ParseAudioTier parses audio tiers like "best", "worst", "128k", "160000".
func ParseAudioTier(quality string) (Tier, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	switch q {
	case "", "best":
		return Tier{Kind: TierBest}, nil
	case "worst":
		return Tier{Kind: TierWorst}, nil
	}
	matches := qualityNumber.FindStringSubmatch(q)
	if len(matches) > 1 {
		if target, err := strconv.Atoi(matches[1]); err == nil && target > 0 {
			if strings.HasSuffix(q, "k") {
				target *= 1000
			}
			return Tier{Kind: TierTarget, Target: target}, nil
		}
	}
	return Tier{}, fmt.Errorf("unrecognized audio tier: %q", quality)
}

// Selector applies container preferences from configuration on top of the
// pure selection ladder.
type Selector struct {
	videoContainer string
	audioContainer string
}

func New(videoContainer, audioContainer string) *Selector {
	if videoContainer == "" {
		videoContainer = "mp4"
	}
	if audioContainer == "" {
		audioContainer = "m4a"
	}
	return &Selector{
		videoContainer: videoContainer,
		audioContainer: audioContainer,
	}
}

// SelectVideo picks a video-only candidate for the tier. Candidates in the
// preferred container win over others; within a container the ladder runs on
// frame height with fps then bitrate as tie breakers.
func (s *Selector) SelectVideo(candidates []models.StreamCandidate, tier Tier) (*models.StreamCandidate, error) {
	pool := filter(candidates, func(c *models.StreamCandidate) bool {
		return strings.HasPrefix(c.MimeType, "video") && c.AudioChannels == 0
	})
	if len(pool) == 0 {
		return nil, ErrNoCandidate
	}

	preferred := filter(pool, func(c *models.StreamCandidate) bool {
		return containerMatches(c.Container, s.videoContainer)
	})
	if pick := pickByMetric(preferred, tier, videoMetric); pick != nil {
		return pick, nil
	}
	if pick := pickByMetric(pool, tier, videoMetric); pick != nil {
		return pick, nil
	}
	return nil, ErrNoCandidate
}

// SelectAudio picks an audio-only candidate by bitrate with the same ladder.
func (s *Selector) SelectAudio(candidates []models.StreamCandidate, tier Tier) (*models.StreamCandidate, error) {
	pool := filter(candidates, func(c *models.StreamCandidate) bool {
		return strings.HasPrefix(c.MimeType, "audio")
	})
	if len(pool) == 0 {
		return nil, ErrNoCandidate
	}

	preferred := filter(pool, func(c *models.StreamCandidate) bool {
		return containerMatches(c.Container, s.audioContainer) || containerMatches(c.Container, "mp4")
	})
	if pick := pickByMetric(preferred, tier, audioMetric); pick != nil {
		return pick, nil
	}
	if pick := pickByMetric(pool, tier, audioMetric); pick != nil {
		return pick, nil
	}
	return nil, ErrNoCandidate
}

// SelectMixed picks a muxed candidate carrying both audio and video.
// Adaptive-only tracks are never considered.
func (s *Selector) SelectMixed(candidates []models.StreamCandidate, tier Tier) (*models.StreamCandidate, error) {
	pool := filter(candidates, func(c *models.StreamCandidate) bool {
		return !c.AdaptiveOnly
	})
	if len(pool) == 0 {
		return nil, ErrNoCandidate
	}

	preferred := filter(pool, func(c *models.StreamCandidate) bool {
		return containerMatches(c.Container, s.videoContainer)
	})
	if pick := pickByMetric(preferred, tier, videoMetric); pick != nil {
		return pick, nil
	}
	if pick := pickByMetric(pool, tier, videoMetric); pick != nil {
		return pick, nil
	}
	return nil, ErrNoCandidate
}

func containerMatches(container, want string) bool {
	return strings.EqualFold(strings.TrimSpace(container), strings.TrimSpace(want))
}

func filter(candidates []models.StreamCandidate, keep func(*models.StreamCandidate) bool) []models.StreamCandidate {
	out := make([]models.StreamCandidate, 0, len(candidates))
	for i := range candidates {
		if keep(&candidates[i]) {
			out = append(out, candidates[i])
		}
	}
	return out
}

// videoMetric orders video candidates by frame height.
func videoMetric(c *models.StreamCandidate) int {
	return c.Height
}

// audioMetric orders audio candidates by bitrate.
func audioMetric(c *models.StreamCandidate) int {
	return c.Bitrate
}

// pickByMetric runs the fallback ladder over a candidate pool. The pool is
// copied and sorted with itag as the final tie breaker so selection is
// stable under input permutation.
func pickByMetric(pool []models.StreamCandidate, tier Tier, metric func(*models.StreamCandidate) int) *models.StreamCandidate {
	if len(pool) == 0 {
		return nil
	}

	sorted := make([]models.StreamCandidate, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if m1, m2 := metric(a), metric(b); m1 != m2 {
			return m1 > m2
		}
		if a.FPS != b.FPS {
			return a.FPS > b.FPS
		}
		if a.Bitrate != b.Bitrate {
			return a.Bitrate > b.Bitrate
		}
		return a.Itag < b.Itag
	})

	switch tier.Kind {
	case TierBest:
		return &sorted[0]
	case TierWorst:
		return &sorted[len(sorted)-1]
	}

	// Exact match first.
	for i := range sorted {
		if metric(&sorted[i]) == tier.Target {
			return &sorted[i]
		}
	}

	// Nearest below: the list is descending, so the first entry under the
	// target is the closest one.
	for i := range sorted {
		if m := metric(&sorted[i]); m > 0 && m < tier.Target {
			return &sorted[i]
		}
	}

	// Nearest above: the last entry over the target.
	for i := len(sorted) - 1; i >= 0; i-- {
		if metric(&sorted[i]) > tier.Target {
			return &sorted[i]
		}
	}

	// Any: whatever is left (entries without metric information).
	return &sorted[0]
}
