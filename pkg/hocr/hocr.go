// Package hocr reads hOCR, the HTML format Tesseract and other engines use to
// report recognized words together with their position and confidence.
//
// The object model keeps the part of the hOCR hierarchy needed to score a
// page: Document → Pages → Lines → Words, each word carrying its x_wconf
// confidence. Areas and paragraphs are flattened into the page's line list
// in reading order. Positions (bbox, baseline) are not kept.
//
// Main Functions:
//
// - ParseHOCR: Parses hOCR data from HTML into the object model
// - MeanConfidence: Average word confidence of a page or document
package hocr
