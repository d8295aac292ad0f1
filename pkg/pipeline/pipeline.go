// Package pipeline post-processes the per-page OCR text of one document.
//
// A pipeline is an ordered list of Transform values. Each transform maps the
// full list of page texts to a new list of the same length; Apply folds the
// pages through them in order and Join glues the result into one body.
//
// The reference chain is AddPageMarkers followed by JoinHyphenatedWords.
// Hyphen repair runs page by page, so a word split across a page boundary is
// left as is.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Transform names one page-list transform.
type Transform int

const (
	// AddPageMarkers prefixes each page with "\n[p.N]\n", N being 1-based.
	AddPageMarkers Transform = iota + 1
	// JoinHyphenatedWords rejoins words split by a hyphen at the end of a line.
	JoinHyphenatedWords
)

// Default is the reference chain.
var Default = []Transform{AddPageMarkers, JoinHyphenatedWords}

var hyphenBreak = regexp.MustCompile(`-\n([\p{L}\p{N}_]+ *)`)

// String returns the configuration name of the transform.
func (t Transform) String() string {
	switch t {
	case AddPageMarkers:
		return "page-markers"
	case JoinHyphenatedWords:
		return "join-hyphens"
	default:
		return fmt.Sprintf("Transform(%d)", int(t))
	}
}

// ParseTransform resolves a configuration name.
func ParseTransform(name string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "page-markers":
		return AddPageMarkers, nil
	case "join-hyphens":
		return JoinHyphenatedWords, nil
	default:
		return 0, fmt.Errorf("unknown transform %q", name)
	}
}

// ParseTransforms resolves a comma separated list such as
// "page-markers,join-hyphens". Empty items are ignored.
func ParseTransforms(list string) ([]Transform, error) {
	var out []Transform
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, err := ParseTransform(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Apply runs pages through each transform in order. The input slice is not
// modified.
func Apply(pages []string, transforms ...Transform) []string {
	out := append([]string(nil), pages...)
	for _, t := range transforms {
		out = t.apply(out)
	}
	return out
}

// Join concatenates page texts with a single space.
func Join(pages []string) string {
	return strings.Join(pages, " ")
}

func (t Transform) apply(pages []string) []string {
	switch t {
	case AddPageMarkers:
		return addPageMarkers(pages)
	case JoinHyphenatedWords:
		return joinHyphenatedWords(pages)
	default:
		return pages
	}
}

func addPageMarkers(pages []string) []string {
	out := make([]string, len(pages))
	for i, text := range pages {
		out[i] = fmt.Sprintf("\n[p.%d]\n%s", i+1, text)
	}
	return out
}

// joinHyphenatedWords moves the line break after the rejoined word:
// "inter-\nnational est" becomes "international\n est".
func joinHyphenatedWords(pages []string) []string {
	out := make([]string, len(pages))
	for i, text := range pages {
		out[i] = hyphenBreak.ReplaceAllString(text, "${1}\n")
	}
	return out
}
