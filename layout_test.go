/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellWidth(size float64) MeasureFunc {
	return func(s string) float64 {
		return cellMeasurer{}.Measure(s, size)
	}
}

func TestEastAsianWidth(t *testing.T) {
	assert.Equal(t, 24.0, eastAsianWidth('愿', 24))
	assert.Equal(t, 24.0, eastAsianWidth('！', 24))
	assert.Equal(t, 12.0, eastAsianWidth('a', 24))
	assert.Equal(t, 12.0, eastAsianWidth(' ', 24))
}

func TestWrap(t *testing.T) {
	cjk19 := strings.Repeat("愿", 19)
	ascii38 := strings.Repeat("a", 38)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "short", text: "你好 world", want: []string{"你好 world"}},
		{name: "empty", text: "", want: []string{""}},
		{name: "wraps wide runes", text: strings.Repeat("愿", 30), want: []string{cjk19, strings.Repeat("愿", 11)}},
		{name: "keeps blank lines", text: "a\n\nb", want: []string{"a", "", "b"}},
		{name: "whitespace only paragraph", text: "a\n   \nb", want: []string{"a", "", "b"}},
		{name: "crlf", text: "a\r\nb", want: []string{"a", "b"}},
		{name: "drops space at break", text: ascii38 + " b", want: []string{ascii38, "b"}},
		{name: "drops punctuation at break", text: cjk19 + "，好", want: []string{cjk19, "好"}},
		{name: "keeps other punctuation at break", text: cjk19 + "、好", want: []string{cjk19, "、好"}},
		{name: "trims line edges", text: "  hello  ", want: []string{"hello"}},
		{name: "space run closes blank line", text: "a" + strings.Repeat(" ", 100) + "b", want: []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrap(tt.text, 460, cellWidth(24)))
		})
	}
}

func TestWrap_LinesFitOrAreSingleRunes(t *testing.T) {
	texts := []string{
		strings.Repeat("新年快乐，万事如意！", 20),
		strings.Repeat("lighthouse ", 60),
		strings.Repeat("混合 mixed 文本。", 30),
		strings.Repeat("x", 200),
	}

	for _, text := range texts {
		for _, size := range []float64{24, 20, 18} {
			measure := cellWidth(size)
			for _, line := range wrap(text, 460, measure) {
				if utf8.RuneCountInString(line) > 1 {
					assert.LessOrEqual(t, measure(line), 460.0, "line %q at size %v", line, size)
				}
			}
		}
	}
}

func TestWrap_PreservesContent(t *testing.T) {
	text := strings.Repeat("星光点点照亮前路", 12)

	lines := wrap(text, 460, cellWidth(24))

	assert.Equal(t, text, strings.Join(lines, ""))
}

func paragraphs(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "愿"
	}
	return strings.Join(lines, "\n")
}

func TestLayoutText_FontTiers(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		size       float64
		lineHeight float64
		lines      int
	}{
		{name: "one line", text: "hello", size: 24, lineHeight: 35, lines: 1},
		{name: "fifteen lines", text: paragraphs(15), size: 24, lineHeight: 35, lines: 15},
		{name: "sixteen lines", text: paragraphs(16), size: 20, lineHeight: 30, lines: 16},
		{name: "eighteen lines", text: paragraphs(18), size: 20, lineHeight: 30, lines: 18},
		{name: "nineteen lines", text: paragraphs(19), size: 18, lineHeight: 28, lines: 19},
		{name: "twenty lines", text: paragraphs(20), size: 18, lineHeight: 28, lines: 20},
		// 19 wide runes per line at 24 gives 27 lines, 23 at 20 gives 22
		// lines, and 25 at 18 gives exactly 20.
		{name: "long wide text", text: strings.Repeat("愿", 500), size: 18, lineHeight: 28, lines: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := layoutText(tt.text, defaultFrame(), cellMeasurer{})

			assert.Equal(t, tt.size, layout.FontSize)
			assert.Equal(t, tt.lineHeight, layout.LineHeight)
			assert.False(t, layout.Truncated)
			require.Len(t, layout.Lines, tt.lines)

			for i, line := range layout.Lines {
				assert.Equal(t, 40.0, line.X)
				assert.Equal(t, 350+float64(i)*tt.lineHeight, line.Y)
			}
		})
	}
}

func TestLayoutText_Truncates(t *testing.T) {
	frame := defaultFrame()

	layout := layoutText(paragraphs(40), frame, cellMeasurer{})

	assert.True(t, layout.Truncated)
	assert.Equal(t, 18.0, layout.FontSize)
	require.Len(t, layout.Lines, frame.MaxLines+1)

	last := layout.Lines[len(layout.Lines)-1]
	assert.Equal(t, "...", last.Text)
	assert.Equal(t, 350+20*28.0, last.Y)

	for _, line := range layout.Lines[:frame.MaxLines] {
		assert.Equal(t, "愿", line.Text)
	}

	assert.Equal(t, 930.0, layout.TimeY)
}

func TestLayoutText_TimestampPosition(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		timeY float64
	}{
		// 350 + 35 + 80 is above the minimum.
		{name: "short text uses minimum", text: "hi", timeY: 850},
		// 350 + 15*35 + 80 = 955 is past the bottom margin.
		{name: "long text is clamped", text: paragraphs(15), timeY: 930},
		// 350 + 12*35 + 80 = 850.
		{name: "follows text", text: paragraphs(12), timeY: 850},
		// 350 + 13*35 + 80 = 885.
		{name: "below text", text: paragraphs(13), timeY: 885},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := layoutText(tt.text, defaultFrame(), cellMeasurer{})
			assert.Equal(t, tt.timeY, layout.TimeY)
		})
	}
}

func TestLayoutText_LastTierAlwaysAccepted(t *testing.T) {
	frame := defaultFrame()
	frame.Tiers = []FontTier{
		{Size: 24, LineHeight: 35, MaxLines: 1},
		{Size: 20, LineHeight: 30, MaxLines: 1},
	}
	frame.MaxLines = 0

	layout := layoutText(paragraphs(5), frame, cellMeasurer{})

	assert.Equal(t, 20.0, layout.FontSize)
	assert.Len(t, layout.Lines, 5)
	assert.False(t, layout.Truncated)
}

func TestWrap_RoundTripKeepsVisibleRunes(t *testing.T) {
	visible := func(s string) string {
		return strings.Map(func(r rune) rune {
			if isBreakRune(r) {
				return -1
			}
			return r
		}, s)
	}

	texts := []string{
		"愿你出走半生，归来仍是少年。\n\nMay the road rise up to meet you, and the wind be always at your back!",
		strings.Repeat("前程似锦；", 40),
		strings.Repeat("word ", 120),
		"第一行\r\n第二行\n\n\n第五行",
	}

	for _, text := range texts {
		for _, size := range []float64{24, 20, 18} {
			lines := wrap(text, 460, cellWidth(size))
			assert.Equal(t, visible(text), visible(strings.Join(lines, "")))
		}
	}
}
