package trend

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	videoPrefix = "VIDEO|"
	topicPrefix = "TOPIC|"

	minVideoFields = 6
	maxSeed        = 1000
)

// Parser converts reply text into records. The zero value is not usable; use
// NewParser.
type Parser struct {
	now  func() time.Time
	seed func(n int) int
}

type ParserOption func(*Parser)

// WithClock sets the clock used for record IDs.
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) { p.now = now }
}

// WithSeedSource sets the source of thumbnail seeds. It is called with an
// exclusive upper bound.
func WithSeedSource(seed func(n int) int) ParserOption {
	return func(p *Parser) { p.seed = seed }
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		now:  time.Now,
		seed: rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads VIDEO and TOPIC lines from text. Malformed lines are skipped,
// so the worst case is an empty result with the default topic.
func (p *Parser) Parse(text string, refs []GroundingRef) Result {
	stamp := p.now().UnixMilli()
	res := Result{Records: []Record{}, Topic: DefaultTopic}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, videoPrefix):
			rec, ok := p.parseVideo(line, refs)
			if !ok {
				continue
			}
			rec.ID = fmt.Sprintf("vid-%d-%d", stamp, i)
			rec.ThumbnailSeed = p.seed(maxSeed) + i
			res.Records = append(res.Records, rec)
		case strings.HasPrefix(line, topicPrefix):
			parts := strings.Split(line, "|")
			if topic := strings.TrimSpace(parts[1]); topic != "" {
				res.Topic = topic
			}
		}
	}
	return res
}

func (p *Parser) parseVideo(line string, refs []GroundingRef) (Record, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < minVideoFields {
		return Record{}, false
	}

	label := field(parts, 1, string(YouTube))
	rec := Record{
		Platform:    MapLabel(label),
		Creator:     field(parts, 2, DefaultCreator),
		Title:       field(parts, 3, DefaultTitle),
		Views:       field(parts, 4, DefaultViews),
		Description: field(parts, 5, DefaultDescription),
		Category:    field(parts, 6, ""),
	}
	rec.URL, rec.Grounded = ResolveURL(rec.Platform, rec.Title, rec.Creator, refs)
	return rec, true
}

// field returns the trimmed i-th part, or def when it is missing or blank.
func field(parts []string, i int, def string) string {
	if i >= len(parts) {
		return def
	}
	if v := strings.TrimSpace(parts[i]); v != "" {
		return v
	}
	return def
}
