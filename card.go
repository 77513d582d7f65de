/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth  = 540
	cardHeight = 960

	cardTimeFormat = "2006-01-02 15:04:05"
)

var (
	colorTitle  = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	colorText   = color.NRGBA{0xf0, 0xf0, 0xf0, 0xff}
	colorTime   = color.NRGBA{0xd0, 0xd0, 0xd0, 0xff}
	colorFooter = color.NRGBA{0xff, 0xff, 0xff, 0x99}

	colorSkyTop    = color.NRGBA{0x0b, 0x10, 0x26, 0xff}
	colorSkyBottom = color.NRGBA{0x2b, 0x1a, 0x4a, 0xff}
)

// CardTheme holds the fixed text printed on every card.
type CardTheme struct {
	Title    string
	Subtitle string
	Footer   string
	Tagline  string
}

func themeFromConfig(cfg *Config) CardTheme {
	return CardTheme{
		Title:    cfg.cardTitle,
		Subtitle: cfg.cardSubtitle,
		Footer:   cfg.cardFooter,
		Tagline:  cfg.cardTagline,
	}
}

// CardRenderer draws wishes onto 540x960 PNG cards.
type CardRenderer struct {
	frame Frame
	theme CardTheme

	regular *sfnt.Font
	bold    *sfnt.Font
	italic  *sfnt.Font
}

// newCardRenderer uses the Go fonts, or the font at fontPath for all text
// when it is set. The Go fonts have no CJK glyphs, so a CJK capable font
// should be supplied for events where wishes are written in Chinese.
func newCardRenderer(fontPath string, theme CardTheme) (*CardRenderer, error) {
	r := &CardRenderer{
		frame: defaultFrame(),
		theme: theme,
	}

	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, err
		}

		f, err := opentype.Parse(data)
		if err != nil {
			return nil, err
		}

		r.regular, r.bold, r.italic = f, f, f

		return r, nil
	}

	var err error
	if r.regular, err = opentype.Parse(goregular.TTF); err != nil {
		return nil, err
	}
	if r.bold, err = opentype.Parse(gobold.TTF); err != nil {
		return nil, err
	}
	if r.italic, err = opentype.Parse(goitalic.TTF); err != nil {
		return nil, err
	}

	return r, nil
}

// fontMeasurer measures and draws text with one font at any size. Runes the
// font has no glyph for are measured by East Asian width and left blank.
// It is not safe for concurrent use.
type fontMeasurer struct {
	font  *sfnt.Font
	buf   sfnt.Buffer
	faces map[float64]font.Face
}

func newFontMeasurer(f *sfnt.Font) *fontMeasurer {
	return &fontMeasurer{
		font:  f,
		faces: make(map[float64]font.Face),
	}
}

func (m *fontMeasurer) face(size float64) font.Face {
	if face, ok := m.faces[size]; ok {
		return face
	}

	face, err := opentype.NewFace(m.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil
	}
	m.faces[size] = face

	return face
}

func (m *fontMeasurer) hasGlyph(r rune) bool {
	i, err := m.font.GlyphIndex(&m.buf, r)
	return err == nil && i != 0
}

func (m *fontMeasurer) advance(face font.Face, r rune, size float64) fixed.Int26_6 {
	if face != nil && m.hasGlyph(r) {
		if adv, ok := face.GlyphAdvance(r); ok {
			return adv
		}
	}

	return fixed.Int26_6(math.Round(eastAsianWidth(r, size) * 64))
}

func (m *fontMeasurer) Measure(s string, size float64) float64 {
	face := m.face(size)

	var total fixed.Int26_6
	for _, r := range s {
		total += m.advance(face, r, size)
	}

	return float64(total) / 64
}

// draw writes s with its baseline starting at (x, y).
func (m *fontMeasurer) draw(dst *image.RGBA, s string, size, x, y float64, c color.Color) {
	face := m.face(size)
	if face == nil {
		return
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}

	for _, r := range s {
		if m.hasGlyph(r) {
			d.DrawString(string(r))
			continue
		}
		d.Dot.X += m.advance(face, r, size)
	}
}

func (m *fontMeasurer) drawCentered(dst *image.RGBA, s string, size, cx, y float64, c color.Color) {
	m.draw(dst, s, size, cx-m.Measure(s, size)/2, y, c)
}

func (m *fontMeasurer) drawRight(dst *image.RGBA, s string, size, right, y float64, c color.Color) {
	m.draw(dst, s, size, right-m.Measure(s, size), y, c)
}

func (m *fontMeasurer) Close() {
	for _, face := range m.faces {
		_ = face.Close()
	}
}

// Render draws wish as a PNG card to w.
func (r *CardRenderer) Render(w io.Writer, wish Wish) error {
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))

	drawSky(img)
	drawStarField(img, starSeed(wish.ID))

	regular := newFontMeasurer(r.regular)
	defer regular.Close()
	bold := newFontMeasurer(r.bold)
	defer bold.Close()
	italic := newFontMeasurer(r.italic)
	defer italic.Close()

	bold.drawCentered(img, r.theme.Title, 32, cardWidth/2, 80, colorTitle)
	bold.drawCentered(img, r.theme.Subtitle, 32, cardWidth/2, 120, colorTitle)

	italic.draw(img, "To "+wish.Name+",", 28, r.frame.TextX, 290, colorTitle)

	layout := layoutText(wish.Text, r.frame, italic)
	for _, line := range layout.Lines {
		italic.draw(img, line.Text, layout.FontSize, line.X, line.Y, colorText)
	}

	regular.drawRight(img, wish.CreatedAt.In(time.Local).Format(cardTimeFormat), 18, cardWidth-40, layout.TimeY, colorTime)

	regular.drawCentered(img, r.theme.Footer, 16, cardWidth/2, 890, colorFooter)
	regular.drawCentered(img, r.theme.Tagline, 16, cardWidth/2, 920, colorFooter)

	if err := png.Encode(w, img); err != nil {
		return err
	}

	cardsRenderedTotal.Inc()

	return nil
}

func drawSky(img *image.RGBA) {
	h := img.Bounds().Dy()

	for y := range h {
		t := float64(y) / float64(h-1)
		c := color.RGBA{
			R: lerp(colorSkyTop.R, colorSkyBottom.R, t),
			G: lerp(colorSkyTop.G, colorSkyBottom.G, t),
			B: lerp(colorSkyTop.B, colorSkyBottom.B, t),
			A: 0xff,
		}
		for x := range img.Bounds().Dx() {
			img.SetRGBA(x, y, c)
		}
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// starSeed makes the starfield depend only on the wish, so a card looks the
// same every time it is rendered.
func starSeed(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func drawStarField(img *image.RGBA, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	layers := []struct {
		count     int
		minRadius float64
		spread    float64
		alpha     float64
	}{
		{30, 1, 2, 0.9},
		{50, 0.5, 1.5, 0.7},
		{80, 0.3, 0.7, 0.5},
	}

	for _, layer := range layers {
		for range layer.count {
			x, y := rng.Float64()*w, rng.Float64()*h
			radius := layer.minRadius + rng.Float64()*layer.spread
			fillCircle(img, x, y, radius, color.RGBA{0xff, 0xff, 0xff, 0xff}, layer.alpha)
		}
	}

	for range 15 {
		x, y := rng.Float64()*w, rng.Float64()*h
		fillCircle(img, x, y, 1.5, color.RGBA{0xff, 0xff, 0xc8, 0xff}, 0.8)
		for d := 2.0; d <= 6; d++ {
			blendPixel(img, int(x+d), int(y), color.RGBA{0xff, 0xff, 0xc8, 0xff}, 0.8*(1-d/7))
			blendPixel(img, int(x-d), int(y), color.RGBA{0xff, 0xff, 0xc8, 0xff}, 0.8*(1-d/7))
			blendPixel(img, int(x), int(y+d), color.RGBA{0xff, 0xff, 0xc8, 0xff}, 0.8*(1-d/7))
			blendPixel(img, int(x), int(y-d), color.RGBA{0xff, 0xff, 0xc8, 0xff}, 0.8*(1-d/7))
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, radius float64, c color.RGBA, alpha float64) {
	for y := int(cy - radius - 1); y <= int(cy+radius+1); y++ {
		for x := int(cx - radius - 1); x <= int(cx+radius+1); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			coverage := math.Max(0, math.Min(1, radius-d+0.5))
			if coverage > 0 {
				blendPixel(img, x, y, c, alpha*coverage)
			}
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, c color.RGBA, alpha float64) {
	if !(image.Point{x, y}.In(img.Bounds())) {
		return
	}

	dst := img.RGBAAt(x, y)
	mix := func(s, d uint8) uint8 {
		return uint8(math.Round(float64(s)*alpha + float64(d)*(1-alpha)))
	}

	img.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, dst.R),
		G: mix(c.G, dst.G),
		B: mix(c.B, dst.B),
		A: 0xff,
	})
}
