package scraper

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// contextSeparator joins category and rank in a trend's header line, e.g. "Sports · Trending".
const contextSeparator = "·"

// ClassifyFragments turns the text lines of one trend block into a candidate.
// A line mentioning posts or an abbreviated count is the volume, a line with the
// separator glyph is the context, and the first other meaningful line is the topic.
func ClassifyFragments(fragments []string) (types.TrendCandidate, bool) {
	var c types.TrendCandidate
	var rest []string

	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		switch {
		case c.VolumeLabel == "" && isVolume(f):
			c.VolumeLabel = f
		case c.ContextLabel == "" && strings.Contains(f, contextSeparator):
			c.ContextLabel = f
		default:
			rest = append(rest, f)
		}
	}

	for _, f := range rest {
		if utf8.RuneCountInString(f) < 2 || isNumber(f) {
			continue
		}
		c.Topic = f
		return c, true
	}
	return c, false
}

func isVolume(f string) bool {
	l := strings.ToLower(f)
	if strings.Contains(l, "posts") || strings.Contains(l, "tweets") {
		return true
	}
	fields := strings.Fields(l)
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	if !strings.HasSuffix(first, "k") && !strings.HasSuffix(first, "m") {
		return false
	}
	return ParseCount(first) > 0
}

func isNumber(f string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(f, ",", ""), 64)
	return err == nil
}

// ParseCount converts abbreviated counts like "1.2K", "5.7M", or "1,234" to integers.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	if strings.HasSuffix(strings.ToUpper(s), "K") {
		multiplier = 1000
		s = s[:len(s)-1]
	} else if strings.HasSuffix(strings.ToUpper(s), "M") {
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

// Dedupe drops candidates whose lowercase topic was already seen, keeping first occurrences.
func Dedupe(cands []types.TrendCandidate) []types.TrendCandidate {
	seen := make(map[string]bool, len(cands))
	out := make([]types.TrendCandidate, 0, len(cands))
	for _, c := range cands {
		k := c.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
