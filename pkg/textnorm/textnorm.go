// Package textnorm cleans OCR output before it is stored in XML.
//
// Every string that ends up in a document (title, body, table of contents)
// goes through Normalize. The pass is pure and total: any input, including
// the empty string, yields a string, and applying it twice gives the same
// result as applying it once.
//
// Steps, in order:
//
// - Remove control characters that XML 1.0 cannot carry (plus caller extras)
// - Replace typographic apostrophes, optionally expand the œ ligature
// - Trim and compose to Unicode NFC
// - Collapse runs of "\n\n " (double-spaced scan artifacts) into one space
// - Rejoin lines wrapped after a letter or after , ; - into one space
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Options tunes a Normalizer.
type Options struct {
	ExtraChars      string // Additional characters to delete in the first step
	ExpandLigatures bool   // Replace œ with "oe"
}

// Normalizer holds the precompiled tables for one set of Options.
type Normalizer struct {
	extra    string
	replacer *strings.Replacer
}

var blankLineSpace = regexp.MustCompile(`(\n\n )+`)

var defaultNormalizer = New(Options{})

// New builds a Normalizer for the given options.
func New(opts Options) *Normalizer {
	pairs := []string{
		"’", "'",
		"‘", "'",
	}
	if opts.ExpandLigatures {
		pairs = append(pairs, "œ", "oe")
	}
	return &Normalizer{
		extra:    opts.ExtraChars,
		replacer: strings.NewReplacer(pairs...),
	}
}

// Normalize runs the default normalizer (no extra characters, ligatures kept).
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize applies the full cleaning pass to text.
func (n *Normalizer) Normalize(text string) string {
	// Replacements run before NFC: "œ" plus a combining accent must compose
	// as "oé" in this pass, not in the next one.
	text = n.replacer.Replace(n.stripChars(text))
	text = norm.NFC.String(strings.TrimSpace(text))
	text = collapseBlankLines(text)
	return joinWrappedLines(text)
}

// stripChars drops XML-illegal control characters and the configured extras.
func (n *Normalizer) stripChars(text string) string {
	return strings.Map(func(r rune) rune {
		if isIllegalControl(r) || (n.extra != "" && strings.ContainsRune(n.extra, r)) {
			return -1
		}
		return r
	}, text)
}

func isIllegalControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r == 0x0B || r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r == 0x7F:
		return true
	}
	return false
}

// collapseBlankLines replaces "\n\n " runs until none remain. A single
// replacement can expose a new run ("\n\n\n\n  " becomes "\n\n  ").
func collapseBlankLines(text string) string {
	for strings.Contains(text, "\n\n ") {
		text = blankLineSpace.ReplaceAllString(text, " ")
	}
	return text
}

// joinWrappedLines turns every newline run that sits between a wrap
// character and a non-space character into a single space.
func joinWrappedLines(text string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\n' || i == 0 || !isWrapChar(runes[i-1]) {
			b.WriteRune(r)
			continue
		}
		j := i
		for j < len(runes) && runes[j] == '\n' {
			j++
		}
		if j < len(runes) && !isSpace(runes[j]) {
			b.WriteByte(' ')
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j - 1
	}
	return b.String()
}

func isWrapChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	}
	return strings.ContainsRune("àâçéèêëîïôûùüÿñæœ,;-", r)
}

// isSpace is unicode.IsSpace plus the information separators U+001C to
// U+001F.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x1C, 0x1D, 0x1E, 0x1F, 0x85, 0xA0,
		0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

// StripExt removes the directory and the last extension from a file name.
//
//	StripExt("scans/Volume_12_1868.pdf") == "Volume_12_1868"
func StripExt(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
