package gdocai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/scanxml/pkg/hocr"
)

// PageFromProto converts a Document AI page into an hOCR page: one line per
// Document AI line, one word per token inside it, with confidence on the
// 0-100 scale.
func PageFromProto(page *documentaipb.Document_Page, fullText string) hocr.Page {
	var out hocr.Page
	if page == nil {
		return out
	}
	for _, line := range page.Lines {
		out.Lines = append(out.Lines, convertLineFromProto(line, page, fullText))
	}
	return out
}

// isElementInParent reports whether the first text segment of element lies
// within the first text segment of parent
func isElementInParent(elementLayout, parentLayout *documentaipb.Document_Page_Layout) bool {
	if elementLayout == nil || parentLayout == nil ||
		elementLayout.TextAnchor == nil || parentLayout.TextAnchor == nil ||
		len(elementLayout.TextAnchor.TextSegments) == 0 || len(parentLayout.TextAnchor.TextSegments) == 0 {
		return false
	}

	elementStart := elementLayout.TextAnchor.TextSegments[0].StartIndex
	elementEnd := elementLayout.TextAnchor.TextSegments[0].EndIndex
	parentStart := parentLayout.TextAnchor.TextSegments[0].StartIndex
	parentEnd := parentLayout.TextAnchor.TextSegments[0].EndIndex

	return elementStart >= parentStart && elementEnd <= parentEnd
}

// Convert a proto line to an hOCR line
func convertLineFromProto(line *documentaipb.Document_Page_Line, page *documentaipb.Document_Page, fullText string) hocr.Line {
	var ocrLine hocr.Line

	// Find tokens that belong to this line
	for _, token := range page.Tokens {
		if !isElementInParent(token.Layout, line.Layout) {
			continue
		}

		cleanText := strings.TrimSpace(textFromLayout(token.Layout, fullText))
		cleanText = strings.ReplaceAll(cleanText, "\n", " ")
		cleanText = strings.ReplaceAll(cleanText, "\r", "")

		word := hocr.Word{Text: cleanText}
		if token.Layout != nil {
			word.Confidence = float64(token.Layout.Confidence * 100)
		}
		ocrLine.Words = append(ocrLine.Words, word)
	}

	return ocrLine
}
