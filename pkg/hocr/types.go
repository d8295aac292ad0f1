package hocr

// HOCR represents the entire hOCR document structure
type HOCR struct {
	Pages []Page // Pages in the document
}

// Page is one page of recognized text
// Corresponds to hOCR element with class: 'ocr_page'
type Page struct {
	Lines []Line // Text lines in reading order
}

// Line represents a line of text
// Corresponds to hOCR elements with class 'ocr_line', 'ocr_header',
// 'ocr_caption' or 'ocr_textfloat'
type Line struct {
	Words []Word // Words in this line
}

// Word is a recognized word
// Corresponds to hOCR element with class: 'ocrx_word'
type Word struct {
	Text       string  // The actual text content
	Confidence float64 // Recognition confidence (0-100), from x_wconf
}
