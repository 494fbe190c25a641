package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

func TestNew_RequiresTokenAndChat(t *testing.T) {
	assert.Nil(t, New("", "1"))
	assert.Nil(t, New("tok", ""))
	assert.NotNil(t, New("tok", "1"))
}

func TestSend_PostsHTMLMessage(t *testing.T) {
	var got []sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		var req sendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("tok", "42")
	c.apiBase = srv.URL

	require.NoError(t, c.Send(context.Background(), "Cats & Dogs", "body"))

	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ChatID)
	assert.Equal(t, "HTML", got[0].ParseMode)
	assert.Equal(t, "<b>Cats &amp; Dogs</b>\n\nbody", got[0].Text)
}

func TestSend_SplitsLongMessages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("tok", "42")
	c.apiBase = srv.URL
	body := strings.Repeat(strings.Repeat("a", 1000)+"\n\n", 6)

	require.NoError(t, c.Send(context.Background(), "", body))
	assert.Equal(t, 2, calls)
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := New("tok", "42")
	c.apiBase = srv.URL

	err := c.Send(context.Background(), "", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitMessage("aaaa\n\nbbbb", 8))
	assert.Equal(t, []string{"aaaa", "bb"}, splitMessage("aaaabb", 4))

	// Never cut inside a multi-byte rune.
	for _, chunk := range splitMessage(strings.Repeat("é", 10), 5) {
		assert.True(t, len(chunk) <= 5)
		assert.Equal(t, 0, len(chunk)%2)
	}
}

func TestFormatDigest(t *testing.T) {
	run := &pipeline.Run{
		Query: trend.Query{Platform: trend.All, Range: trend.Today},
		Result: trend.Result{
			Topic: "Music <Live>",
			Records: []trend.Record{
				{Title: "Song A", Creator: "Band", Views: "2M", Platform: trend.YouTube, Category: "Music", URL: "https://youtu.be/a"},
				{Title: "Dance B", Creator: "@b", Views: "Viral", Platform: trend.TikTok, URL: "https://www.tiktok.com/search?q=Dance%20B"},
			},
		},
		Stats: trend.Stats{TotalViews: "2.0M", TopPlatform: "YouTube"},
	}

	title, body := Digest(run)

	assert.Equal(t, "📈 Trending on All Platforms (Today)", title)
	assert.Contains(t, body, "<b>Topic:</b> Music &lt;Live&gt;")
	assert.Contains(t, body, "<b>Total views:</b> 2.0M")
	assert.Contains(t, body, "<b>1.</b> Song A\n   YouTube · Band · 2M views\n   #Music\n")
	assert.Contains(t, body, "<b>2.</b> Dance B")
	assert.NotContains(t, body, "#\n")
}

func TestFormatDigest_Empty(t *testing.T) {
	run := &pipeline.Run{Result: trend.Result{Topic: trend.DefaultTopic, Records: []trend.Record{}}}

	assert.Contains(t, FormatDigest(run), "No specific trends found")
}
