/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"archive/zip"
	"bytes"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *CardRenderer {
	t.Helper()

	r, err := newCardRenderer("", CardTheme{
		Title:    "Lighthouse Wish Wall",
		Subtitle: "Future Wish Card",
		Footer:   "Light up your life and career",
		Tagline:  "Living Upward",
	})
	require.NoError(t, err)

	return r
}

func TestCardRenderer_RendersPNG(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		name string
		wish Wish
	}{
		{name: "latin", wish: Wish{ID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Name: "Ada", Text: "May every light find its way home.", CreatedAt: testEpoch}},
		{name: "cjk", wish: Wish{ID: "2", Name: "小明", Text: strings.Repeat("愿所有的光都找到回家的路。", 20), CreatedAt: testEpoch}},
		{name: "many lines", wish: Wish{ID: "3", Name: "Bob", Text: paragraphs(40), CreatedAt: testEpoch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, tt.wish))

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, cardWidth, img.Bounds().Dx())
			assert.Equal(t, cardHeight, img.Bounds().Dy())
		})
	}
}

func TestCardRenderer_IsDeterministic(t *testing.T) {
	r := newTestRenderer(t)
	wish := Wish{ID: "abc", Name: "Ada", Text: "same every time", CreatedAt: testEpoch}

	var first, second bytes.Buffer
	require.NoError(t, r.Render(&first, wish))
	require.NoError(t, r.Render(&second, wish))

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestNewCardRenderer_BadFont(t *testing.T) {
	_, err := newCardRenderer(filepath.Join(t.TempDir(), "missing.ttf"), CardTheme{})
	assert.Error(t, err)
}

func TestCardFileName(t *testing.T) {
	tests := []struct {
		index int
		wish  Wish
		want  string
	}{
		{0, Wish{ID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Name: "Jane Doe"}, "001_Jane_Doe_1b4e28ba.png"},
		{9, Wish{ID: "short", Name: "小明!"}, "010_小明_short.png"},
		{41, Wish{ID: "x", Name: "../../etc"}, "042_etc_x.png"},
		{0, Wish{ID: "x", Name: "???"}, "001_wish_x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, cardFileName(tt.index, tt.wish))
		})
	}
}

func TestExportCards(t *testing.T) {
	r := newTestRenderer(t)

	wishes := []Wish{
		{ID: "aaaaaaaa-1", Name: "Ada", Text: "one", CreatedAt: testEpoch},
		{ID: "bbbbbbbb-2", Name: "Bob", Text: "two", CreatedAt: testEpoch},
		{ID: "cccccccc-3", Name: "Cy", Text: "三", CreatedAt: testEpoch},
	}

	var buf bytes.Buffer
	require.NoError(t, exportCards(&buf, r, wishes))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	assert.Equal(t, "001_Ada_aaaaaaaa.png", zr.File[0].Name)
	assert.Equal(t, "002_Bob_bbbbbbbb.png", zr.File[1].Name)
	assert.Equal(t, "003_Cy_cccccccc.png", zr.File[2].Name)

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, cardWidth, img.Bounds().Dx())
	}
}

func TestExportCards_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportCards(&buf, newTestRenderer(t), nil))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
