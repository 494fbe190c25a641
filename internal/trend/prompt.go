package trend

import (
	"fmt"
	"time"
)

const promptTemplate = `Current Date: %s.

Task: Use the Google Search tool to find the top 6-9 trending videos or viral posts on %s for %s.
You MUST use real data found in the search results. Do not fabricate videos.

Return the data in the following strictly structured format (one entry per line):
VIDEO|PlatformName|Creator/Channel|Video Title|Exact View Count (e.g. 2.5M, 500K)|Short Description (max 10 words)|TopicCategory

After listing the videos, add exactly one line for the overall trending topic:
TOPIC|Dominant Trend or Theme

Requirements:
1. "PlatformName" must be one of: YouTube, TikTok, Twitter, Instagram.
2. If exact views aren't in the snippet, estimate based on the context (e.g. "Viral", "1M+").
3. Ensure diversity in content if possible.
4. "TopicCategory" should be a single word tag like "Music", "Politics", "Gaming", "Sports".
5. Do not use the "|" character inside any field.`

// BuildPrompt renders the query sent to the search-grounded model. The reply
// grammar it asks for is the one Parser understands.
func BuildPrompt(p Platform, r TimeRange, now time.Time) string {
	scope := string(p)
	if p == All || p == "" {
		scope = "YouTube, TikTok, Twitter (X), and Instagram"
	}
	if r == "" {
		r = Today
	}
	return fmt.Sprintf(promptTemplate, now.Format("Monday, January 2, 2006"), scope, r)
}
