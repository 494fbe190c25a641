package trend

import "strings"

// ResolveURL picks a link for a record. The first reference whose title
// contains the record title, or contains the creator together with the word
// "video", wins. References without a URI are skipped. When nothing matches
// the platform search URL is returned and grounded is false.
func ResolveURL(p Platform, title, creator string, refs []GroundingRef) (link string, grounded bool) {
	if u, ok := FindGroundedURL(title, creator, refs); ok {
		return u, true
	}
	return FallbackURL(p, title), false
}

func FindGroundedURL(title, creator string, refs []GroundingRef) (string, bool) {
	t := strings.ToLower(title)
	c := strings.ToLower(creator)

	for _, ref := range refs {
		if ref.URI == "" || ref.Title == "" {
			continue
		}
		refTitle := strings.ToLower(ref.Title)
		if strings.Contains(refTitle, t) ||
			(strings.Contains(refTitle, c) && strings.Contains(refTitle, "video")) {
			return ref.URI, true
		}
	}
	return "", false
}
