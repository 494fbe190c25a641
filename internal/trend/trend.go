// Package trend turns search-grounded model replies into trending video records.
package trend

const (
	DefaultTopic       = "General Trends"
	DefaultTitle       = "Untitled Video"
	DefaultCreator     = "Unknown Creator"
	DefaultViews       = "Viral"
	DefaultDescription = "Trending content"
)

// Record is one trending item parsed from a reply.
type Record struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Creator       string   `json:"creator"`
	Views         string   `json:"views"`
	Description   string   `json:"description"`
	Platform      Platform `json:"platform"`
	Category      string   `json:"category,omitempty"`
	URL           string   `json:"url"`
	Grounded      bool     `json:"grounded"`
	ThumbnailSeed int      `json:"thumbnail_seed"`
}

type Result struct {
	Records []Record `json:"records"`
	Topic   string   `json:"topic"`
}

// GroundingRef is a web source the model consulted. Either field may be empty.
type GroundingRef struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Reply is the raw output of one search-grounded generation call.
type Reply struct {
	Text       string
	References []GroundingRef
}

// Query selects what to ask for. The zero value means all platforms, today.
type Query struct {
	Platform Platform  `json:"platform"`
	Range    TimeRange `json:"range"`
}

func (q Query) Normalize() Query {
	if q.Platform == "" {
		q.Platform = All
	}
	if q.Range == "" {
		q.Range = Today
	}
	return q
}
