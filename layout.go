/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Punctuation that may be swallowed at a line break, like whitespace.
const breakPunctuation = "，。！？；"

// MeasureFunc returns the rendered width of s in pixels.
type MeasureFunc func(s string) float64

// Measurer reports how wide a string renders at a given font size.
type Measurer interface {
	Measure(s string, size float64) float64
}

// FontTier is one step of the font size fallback. If wrapping at this tier
// produces more than MaxLines lines the next tier is tried; zero means the
// tier is always accepted.
type FontTier struct {
	Size       float64
	LineHeight float64
	MaxLines   int
}

// Frame describes where wish text may be drawn on a card.
type Frame struct {
	TextX    float64
	TextTop  float64
	MaxWidth float64
	Tiers    []FontTier

	MaxLines int
	Ellipsis string

	TimeMinY     float64
	TimeGap      float64
	BottomMargin float64
}

func defaultFrame() Frame {
	return Frame{
		TextX:    40,
		TextTop:  350,
		MaxWidth: 460,
		Tiers: []FontTier{
			{Size: 24, LineHeight: 35, MaxLines: 15},
			{Size: 20, LineHeight: 30, MaxLines: 18},
			{Size: 18, LineHeight: 28},
		},
		MaxLines:     20,
		Ellipsis:     "...",
		TimeMinY:     850,
		TimeGap:      80,
		BottomMargin: 930,
	}
}

// Line is one line of text and the baseline it is drawn at.
type Line struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// CardLayout is the result of fitting a wish into a Frame. When Truncated is
// set the last entry of Lines is the ellipsis marker.
type CardLayout struct {
	Lines      []Line  `json:"lines"`
	FontSize   float64 `json:"fontSize"`
	LineHeight float64 `json:"lineHeight"`
	Truncated  bool    `json:"truncated"`
	TimeY      float64 `json:"timeY"`
}

func isBreakRune(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(breakPunctuation, r)
}

// wrap breaks text into lines no wider than maxWidth. Explicit newlines
// always break, and blank paragraphs stay as empty lines. Within a
// paragraph runes are added one at a time; when the next rune would
// overflow, the line is closed and the rune either starts the next line or,
// if it is whitespace or break punctuation, is dropped. A closed line made
// only of spaces is kept as an empty line.
func wrap(text string, maxWidth float64, measure MeasureFunc) []string {
	lines := []string{}

	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSuffix(paragraph, "\r")

		if strings.TrimSpace(paragraph) == "" {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, r := range paragraph {
			candidate := current + string(r)

			if current == "" || measure(candidate) <= maxWidth {
				current = candidate
				continue
			}

			lines = append(lines, strings.TrimSpace(current))

			if isBreakRune(r) {
				current = ""
			} else {
				current = string(r)
			}
		}

		if rest := strings.TrimSpace(current); rest != "" {
			lines = append(lines, rest)
		}
	}

	return lines
}

// layoutText fits text into frame, stepping down through the frame's font
// tiers until the text fits. Text that still has more than frame.MaxLines
// lines is cut off and ends with the ellipsis.
func layoutText(text string, frame Frame, m Measurer) CardLayout {
	var (
		lines []string
		tier  FontTier
	)

	for i, t := range frame.Tiers {
		tier = t
		lines = wrap(text, frame.MaxWidth, func(s string) float64 {
			return m.Measure(s, t.Size)
		})

		if t.MaxLines == 0 || len(lines) <= t.MaxLines || i == len(frame.Tiers)-1 {
			break
		}
	}

	layout := CardLayout{
		FontSize:   tier.Size,
		LineHeight: tier.LineHeight,
	}

	shown := lines
	if frame.MaxLines > 0 && len(lines) > frame.MaxLines {
		shown = lines[:frame.MaxLines]
		layout.Truncated = true
	}

	layout.Lines = make([]Line, 0, len(shown)+1)
	for i, s := range shown {
		layout.Lines = append(layout.Lines, Line{
			Text: s,
			X:    frame.TextX,
			Y:    frame.TextTop + float64(i)*tier.LineHeight,
		})
	}

	textEnd := frame.TextTop + float64(len(shown))*tier.LineHeight

	if layout.Truncated {
		layout.Lines = append(layout.Lines, Line{
			Text: frame.Ellipsis,
			X:    frame.TextX,
			Y:    textEnd,
		})
	}

	layout.TimeY = min(max(frame.TimeMinY, textEnd+frame.TimeGap), frame.BottomMargin)

	return layout
}

// eastAsianWidth estimates a rune's advance without a font: wide and
// fullwidth runes take a full em, everything else half of one.
func eastAsianWidth(r rune, size float64) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return size
	default:
		return size / 2
	}
}

// cellMeasurer measures text by East Asian width alone.
type cellMeasurer struct{}

func (cellMeasurer) Measure(s string, size float64) float64 {
	total := 0.0
	for _, r := range s {
		total += eastAsianWidth(r, size)
	}
	return total
}
