// Package document turns the recognized text of a document into its XML
// record and writes it to the output directory.
//
// A record is an ordered list of tags serialized as children of a
// <document> root:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<document>
//	  <id>0</id>
//	  <title>Volume_12_1868</title>
//	  <body>...</body>
//	  <toc>N/A</toc>
//	  <vol>12</vol>
//	  <year>1868</year>
//	</document>
package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Tag is one child element of the record.
type Tag struct {
	Name  string
	Value string
}

// Assemble builds the base record: id, title, body and toc in that order.
func Assemble(id int, title, body, toc string) []Tag {
	return []Tag{
		{Name: "id", Value: strconv.Itoa(id)},
		{Name: "title", Value: title},
		{Name: "body", Value: body},
		{Name: "toc", Value: toc},
	}
}

// Value returns the value of the first tag called name.
func Value(tags []Tag, name string) (string, bool) {
	for _, t := range tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// TagTransform derives extra tags from a record.
type TagTransform int

const (
	// VolumeInfo appends vol and year when the title reads
	// Volume_<vol>_<year>. The first group is greedy, so
	// Volume_1_2_1900 gives vol "1_2".
	VolumeInfo TagTransform = iota + 1
)

// DefaultTagTransforms is the chain applied when none is configured.
var DefaultTagTransforms = []TagTransform{VolumeInfo}

var volumeTitle = regexp.MustCompile(`^Volume_(.*)_(.*)`)

func (t TagTransform) String() string {
	switch t {
	case VolumeInfo:
		return "volume-info"
	default:
		return fmt.Sprintf("TagTransform(%d)", int(t))
	}
}

// ParseTagTransform resolves a configuration name.
func ParseTagTransform(name string) (TagTransform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "volume-info", "volume_info":
		return VolumeInfo, nil
	default:
		return 0, fmt.Errorf("unknown tag transform %q", name)
	}
}

// ParseTagTransforms resolves a comma separated list of names, keeping its
// order. Empty items are ignored.
func ParseTagTransforms(list string) ([]TagTransform, error) {
	var out []TagTransform
	for _, n := range strings.Split(list, ",") {
		if strings.TrimSpace(n) == "" {
			continue
		}
		t, err := ParseTagTransform(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Apply runs the transforms in order and returns the resulting record.
// tags is not modified.
func (t TagTransform) Apply(tags []Tag) []Tag {
	switch t {
	case VolumeInfo:
		title, _ := Value(tags, "title")
		m := volumeTitle.FindStringSubmatch(title)
		if m == nil {
			return tags
		}
		out := make([]Tag, len(tags), len(tags)+2)
		copy(out, tags)
		return append(out, Tag{Name: "vol", Value: m[1]}, Tag{Name: "year", Value: m[2]})
	default:
		return tags
	}
}

// ApplyTransforms chains transforms over tags.
func ApplyTransforms(tags []Tag, transforms ...TagTransform) []Tag {
	for _, t := range transforms {
		tags = t.Apply(tags)
	}
	return tags
}

// Marshal serializes the record with an XML declaration and two-space
// indentation. Markup characters are escaped, line breaks are kept.
func Marshal(tags []Tag) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	root := xml.StartElement{Name: xml.Name{Local: "document"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	for _, t := range tags {
		// CharData keeps line breaks literal; EncodeElement would write &#xA;.
		start := xml.StartElement{Name: xml.Name{Local: t.Name}}
		for _, tok := range []xml.Token{start, xml.CharData(t.Value), start.End()} {
			if err := enc.EncodeToken(tok); err != nil {
				return nil, fmt.Errorf("encode tag %s: %w", t.Name, err)
			}
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
