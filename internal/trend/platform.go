package trend

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Platform string

const (
	All       Platform = "All Platforms"
	YouTube   Platform = "YouTube"
	TikTok    Platform = "TikTok"
	Twitter   Platform = "X (Twitter)"
	Instagram Platform = "Instagram"
)

// Platforms lists the concrete platforms a record can carry, in display order.
var Platforms = []Platform{YouTube, TikTok, Twitter, Instagram}

type TimeRange string

const (
	Today     TimeRange = "Today"
	ThisWeek  TimeRange = "This Week"
	ThisMonth TimeRange = "This Month"
)

var TimeRanges = []TimeRange{Today, ThisWeek, ThisMonth}

var (
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnknownTimeRange = errors.New("unknown time range")
)

// Slug is the short form used in query parameters and metric labels.
func (p Platform) Slug() string {
	switch p {
	case YouTube:
		return "youtube"
	case TikTok:
		return "tiktok"
	case Twitter:
		return "x"
	case Instagram:
		return "instagram"
	default:
		return "all"
	}
}

func (r TimeRange) Slug() string {
	switch r {
	case ThisWeek:
		return "week"
	case ThisMonth:
		return "month"
	default:
		return "today"
	}
}

// ParsePlatform parses a selector value. An empty string selects all platforms.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all platforms":
		return All, nil
	case "youtube":
		return YouTube, nil
	case "tiktok":
		return TikTok, nil
	case "x", "twitter", "x (twitter)":
		return Twitter, nil
	case "instagram":
		return Instagram, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// ParseTimeRange parses a selector value. An empty string selects today.
func ParseTimeRange(s string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today", "day", "24h":
		return Today, nil
	case "week", "this week", "7days":
		return ThisWeek, nil
	case "month", "this month", "30days":
		return ThisMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeRange, s)
}

// MapLabel classifies a free-text platform label from a model reply.
// Matching is a case-insensitive substring test in fixed priority order and
// falls back to YouTube. The bare "x" token matches any label containing the
// letter x (e.g. "Xbox Live" maps to Twitter); this looseness is deliberate.
func MapLabel(label string) Platform {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "youtube") || strings.Contains(lower, "you tube"):
		return YouTube
	case strings.Contains(lower, "tiktok") || strings.Contains(lower, "tik tok"):
		return TikTok
	case strings.Contains(lower, "twitter") || strings.Contains(lower, "x"):
		return Twitter
	case strings.Contains(lower, "instagram") || strings.Contains(lower, "insta"):
		return Instagram
	}
	return YouTube
}

// FallbackURL builds a platform search URL for title. It never returns an
// empty string.
func FallbackURL(p Platform, title string) string {
	q := encodeComponent(title)
	switch p {
	case YouTube:
		return "https://www.youtube.com/results?search_query=" + q
	case TikTok:
		return "https://www.tiktok.com/search?q=" + q
	case Twitter:
		return "https://twitter.com/search?q=" + q
	case Instagram:
		return "https://www.instagram.com/explore/tags/" + q + "/"
	default:
		return "https://www.google.com/search?q=" + q
	}
}

// componentUnescaper undoes QueryEscape for the characters URI component
// encoding leaves alone, and writes spaces as %20.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent escapes s for use inside a path segment or query value.
// Only A-Z a-z 0-9 and - _ . ! ~ * ' ( ) are left as is.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
