package hocr

import (
	"strings"
)

// Words returns every word of the page in reading order
func (p Page) Words() []Word {
	var words []Word
	for _, line := range p.Lines {
		words = append(words, line.Words...)
	}
	return words
}

// MeanConfidence averages x_wconf over the non-empty words of a page.
// A page without words has confidence 0.
func (p Page) MeanConfidence() float64 {
	var sum float64
	var n int
	for _, w := range p.Words() {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		sum += w.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MeanConfidence averages word confidence over all pages of the document
func MeanConfidence(doc HOCR) float64 {
	var sum float64
	var n int
	for _, page := range doc.Pages {
		for _, w := range page.Words() {
			if strings.TrimSpace(w.Text) == "" {
				continue
			}
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
