package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/chyiyaqing/trendscope/internal/ai"
	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

var tmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
}).Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>TrendScope - {{.Selection.Platform}} ({{.Selection.Range}})</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #0f1115; color: #e6e6e6; }
  .container { max-width: 1120px; margin: 0 auto; padding: 20px; }
  h1 { margin-bottom: 16px; font-size: 24px; }
  .tabs { display: flex; flex-wrap: wrap; gap: 8px; margin-bottom: 12px; }
  .tabs a {
    padding: 8px 18px; border-radius: 6px; text-decoration: none;
    background: #1d2027; color: #aaa; font-weight: 500; font-size: 14px;
  }
  .tabs a.active { background: #e8453c; color: #fff; }
  .tabs a:hover:not(.active) { background: #2a2e37; }
  .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 12px; margin: 20px 0; }
  .stat { background: #1d2027; border-radius: 8px; padding: 14px 18px; }
  .stat .label { font-size: 12px; color: #888; text-transform: uppercase; }
  .stat .value { font-size: 22px; font-weight: 700; margin-top: 4px; }
  .bar { display: flex; align-items: center; gap: 8px; font-size: 13px; margin-top: 6px; }
  .bar span.fill { display: inline-block; height: 8px; background: #e8453c; border-radius: 4px; }
  .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 16px; }
  .card { background: #1d2027; border-radius: 8px; overflow: hidden; }
  .card img { width: 100%; aspect-ratio: 16 / 9; object-fit: cover; display: block; }
  .card .body { padding: 12px 16px 16px; }
  .badge { font-size: 12px; padding: 2px 8px; border-radius: 4px; background: #2a2e37; }
  .badge.youtube { background: #c4302b; }
  .badge.tiktok { background: #25f4ee; color: #000; }
  .badge.x { background: #1d9bf0; }
  .badge.instagram { background: #c13584; }
  .title a { display: block; margin-top: 8px; font-size: 16px; font-weight: 600; color: #fff; text-decoration: none; }
  .title a:hover { text-decoration: underline; }
  .meta { font-size: 13px; color: #999; margin-top: 6px; }
  .desc { font-size: 13px; color: #bbb; margin-top: 8px; line-height: 1.5; }
  .notice { text-align: center; padding: 60px 20px; color: #999; }
  .notice.error { color: #e8453c; }
  .notice form { margin-top: 16px; }
  .notice button { padding: 8px 20px; border: 0; border-radius: 6px; background: #e8453c; color: #fff; cursor: pointer; }
  .footer { font-size: 12px; color: #666; margin-top: 24px; }
</style>
</head>
<body>
<div class="container">
  <h1>TrendScope</h1>
  <div class="tabs">
    {{range .Platforms}}<a href="{{.Href}}" {{if .Active}}class="active"{{end}}>{{.Label}}</a>{{end}}
  </div>
  <div class="tabs">
    {{range .Windows}}<a href="{{.Href}}" {{if .Active}}class="active"{{end}}>{{.Label}}</a>{{end}}
  </div>

  {{if eq .State "error"}}
  <div class="notice error">
    {{if .MissingKey}}The trend service is not configured. Set GEMINI_API_KEY and restart.{{else}}The trend service is unavailable right now.{{end}}
    <div class="meta">{{.Error}}</div>
    <form method="get" action="/"><input type="hidden" name="platform" value="{{.PlatformSlug}}"><input type="hidden" name="window" value="{{.WindowSlug}}"><input type="hidden" name="refresh" value="1"><button type="submit">Retry</button></form>
  </div>
  {{else if eq .State "loading"}}
  <div class="notice">Scanning the web for trends&hellip; reload in a moment.</div>
  {{else if eq .State "empty"}}
  <div class="notice">No specific trends found for this selection. Try another platform or time window.</div>
  {{else}}
  <div class="stats">
    <div class="stat"><div class="label">Est. total views</div><div class="value">{{.Stats.TotalViews}}</div></div>
    <div class="stat"><div class="label">Top platform</div><div class="value">{{.Stats.TopPlatform}}</div></div>
    <div class="stat"><div class="label">Dominant topic</div><div class="value">{{.Stats.Topic}}</div></div>
    <div class="stat"><div class="label">By platform</div>
      {{range .Bars}}<div class="bar"><span class="fill" style="width: {{.Width}}px"></span>{{.Platform}} ({{.Count}})</div>{{end}}
    </div>
  </div>
  <div class="grid">
    {{range $i, $c := .Cards}}
    <div class="card">
      <a href="{{$c.URL}}" target="_blank" rel="noopener"><img src="{{$c.Thumbnail}}" alt="" loading="lazy"></a>
      <div class="body">
        <span class="badge {{$c.Slug}}">{{$c.Platform}}</span>
        {{if $c.Category}}<span class="badge">#{{$c.Category}}</span>{{end}}
        <div class="title"><a href="{{$c.URL}}" target="_blank" rel="noopener">{{add $i 1}}. {{$c.Title}}</a></div>
        <div class="meta">{{$c.Creator}} &middot; {{$c.Views}} views{{if not $c.Grounded}} &middot; search link{{end}}</div>
        <div class="desc">{{$c.Description}}</div>
      </div>
    </div>
    {{end}}
  </div>
  {{end}}
  <div class="footer">Updated {{fmtTime .UpdatedAt}}{{if .Pending}} &middot; refreshing&hellip;{{end}}</div>
</div>
</body>
</html>`

type tab struct {
	Label  string
	Href   string
	Active bool
}

type card struct {
	trend.Record
	Slug      string
	Thumbnail string
}

type bar struct {
	trend.PlatformCount
	Width int
}

type dashboardData struct {
	Selection    trend.Query
	PlatformSlug string
	WindowSlug   string
	Platforms    []tab
	Windows      []tab
	State        string
	Error        string
	MissingKey   bool
	Stats        trend.Stats
	Bars         []bar
	Cards        []card
	UpdatedAt    time.Time
	Pending      bool
}

// GET /?platform=&window=[&refresh=1]
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := selectionFrom(r, s.board.Selection())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := s.board.Current()
	changed := s.board.Select(q)
	forced := r.URL.Query().Get("refresh") != ""
	switch {
	case !changed && snap.Pending && !forced:
		// A refresh of this selection is already running; don't cut it off.
		if !snap.Loaded() || snap.Selection != q {
			snap = pipeline.Snapshot{Selection: q, Pending: true}
		}
	case changed || !snap.Loaded() || snap.Selection != q || forced:
		if _, err := s.board.Refresh(r.Context(), q); err != nil && !errors.Is(err, pipeline.ErrSuperseded) {
			s.logger.Warn("dashboard refresh", "platform", q.Platform, "window", q.Range, "error", err)
		}
		snap = s.board.Current()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, buildDashboard(snap)); err != nil {
		s.logger.Error("render dashboard", "error", err)
	}
}

func buildDashboard(snap pipeline.Snapshot) dashboardData {
	sel := snap.Selection
	d := dashboardData{
		Selection:    sel,
		PlatformSlug: sel.Platform.Slug(),
		WindowSlug:   sel.Range.Slug(),
		UpdatedAt:    snap.UpdatedAt,
		Pending:      snap.Pending,
	}

	for _, p := range append([]trend.Platform{trend.All}, trend.Platforms...) {
		d.Platforms = append(d.Platforms, tab{
			Label:  string(p),
			Href:   "/?platform=" + p.Slug() + "&window=" + d.WindowSlug,
			Active: p == sel.Platform,
		})
	}
	for _, tr := range trend.TimeRanges {
		d.Windows = append(d.Windows, tab{
			Label:  string(tr),
			Href:   "/?platform=" + d.PlatformSlug + "&window=" + tr.Slug(),
			Active: tr == sel.Range,
		})
	}

	switch {
	case snap.Err != nil:
		d.State = "error"
		d.Error = snap.Err.Error()
		d.MissingKey = errors.Is(snap.Err, ai.ErrMissingAPIKey)
		return d
	case snap.Run == nil:
		d.State = "loading"
		return d
	case len(snap.Run.Result.Records) == 0:
		d.State = "empty"
		return d
	}

	d.State = "ready"
	d.Stats = snap.Run.Stats
	top := 1
	for _, c := range d.Stats.Counts {
		top = max(top, c.Count)
	}
	for _, c := range d.Stats.Counts {
		d.Bars = append(d.Bars, bar{PlatformCount: c, Width: c.Count * 120 / top})
	}
	for _, rec := range snap.Run.Result.Records {
		d.Cards = append(d.Cards, card{
			Record:    rec,
			Slug:      rec.Platform.Slug(),
			Thumbnail: thumbnailURL(rec),
		})
	}
	return d
}

func thumbnailURL(rec trend.Record) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s%d/600/338", rec.ID, rec.ThumbnailSeed)
}
