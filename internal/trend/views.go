package trend

import (
	"strconv"
	"strings"
)

// PlatformCount is the number of records seen for one platform.
type PlatformCount struct {
	Platform Platform `json:"platform"`
	Count    int      `json:"count"`
}

// Stats is the dashboard summary of a result.
type Stats struct {
	TotalViews  string          `json:"total_views"`
	TopPlatform string          `json:"top_platform"`
	Topic       string          `json:"topic"`
	Counts      []PlatformCount `json:"counts"`
}

// FormatViews condenses an aggregate view count into a short label.
func FormatViews(n float64) string {
	switch {
	case n == 0:
		return "N/A"
	case n >= 1e9:
		return strconv.FormatFloat(n/1e9, 'f', 1, 64) + "B"
	case n >= 1e6:
		return strconv.FormatFloat(n/1e6, 'f', 1, 64) + "M"
	case n >= 1e3:
		return strconv.FormatFloat(n/1e3, 'f', 1, 64) + "K"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseViews estimates the number behind a view label such as "1.2M",
// "500K+" or "3,400". Labels without a number ("Viral") count as zero.
func ParseViews(label string) float64 {
	s := strings.ToUpper(label)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")

	num, ok := leadingNumber(s)
	if !ok {
		return 0
	}
	switch {
	case strings.Contains(s, "M") || strings.Contains(s, "MILLION"):
		return num * 1e6
	case strings.Contains(s, "K") || strings.Contains(s, "THOUSAND"):
		return num * 1e3
	case strings.Contains(s, "B") || strings.Contains(s, "BILLION"):
		return num * 1e9
	}
	return num
}

// leadingNumber parses the first run of digits in s, allowing one decimal
// point.
func leadingNumber(s string) (float64, bool) {
	start := strings.IndexAny(s, "0123456789.")
	if start < 0 {
		return 0, false
	}
	end := start
	dot := false
	digits := false
	for end < len(s) {
		c := s[end]
		if c == '.' {
			if dot {
				break
			}
			dot = true
		} else if c >= '0' && c <= '9' {
			digits = true
		} else {
			break
		}
		end++
	}
	if !digits {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[start:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TotalViews sums the parsed view labels of records.
func TotalViews(records []Record) float64 {
	var total float64
	for _, r := range records {
		total += ParseViews(r.Views)
	}
	return total
}

// CountByPlatform groups records by platform in order of first appearance.
func CountByPlatform(records []Record) []PlatformCount {
	idx := make(map[Platform]int)
	var counts []PlatformCount
	for _, r := range records {
		i, ok := idx[r.Platform]
		if !ok {
			i = len(counts)
			idx[r.Platform] = i
			counts = append(counts, PlatformCount{Platform: r.Platform})
		}
		counts[i].Count++
	}
	return counts
}

func Summarize(res Result) Stats {
	counts := CountByPlatform(res.Records)
	top := "N/A"
	best := 0
	for _, c := range counts {
		if c.Count > best {
			best = c.Count
			top = string(c.Platform)
		}
	}
	topic := res.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return Stats{
		TotalViews:  FormatViews(TotalViews(res.Records)),
		TopPlatform: top,
		Topic:       topic,
		Counts:      counts,
	}
}
