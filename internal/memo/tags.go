package memo

import (
	"regexp"
	"strings"
)

var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]{1,32})`)

// ExtractTags returns the distinct lowercase hashtags of content in order of
// first appearance, capped at 20.
func ExtractTags(content string) []string {
	matches := hashtagRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(matches))

	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		t := strings.ToLower(m[1])
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)

		if len(out) >= 20 { // cap
			break
		}
	}

	return out
}

// MergeTags appends the tags of extra missing from tags, keeping order.
func MergeTags(tags []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags)+len(extra))
	for _, t := range append(append([]string(nil), tags...), extra...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
