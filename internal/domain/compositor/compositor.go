// Package compositor renders the square sticker frame: a background colour or
// cover-scaled image with centred, word-wrapped lyric text on top.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/forPelevin/stickercut/internal/types"
)

const (
	// FrameSize is the side of the square frame in pixels.
	FrameSize       = 1080
	// TextMargin is the horizontal padding on each side of the text.
	TextMargin      = 100
	// LineHeightRatio scales the font size into the line advance.
	LineHeightRatio = 1.25
	// Placeholder is drawn at half opacity when the text is blank.
	Placeholder     = "Lyrics Preview"
)

var (
	washColor        = color.NRGBA{A: 102} // 40% black
	placeholderAlpha = uint8(0x80)
)

// Compositor rasterizes sticker frames with a single font.
type Compositor struct {
	font *opentype.Font
}

// New uses the bundled Go Bold face.
func New() (*Compositor, error) {
	return NewWithFont(gobold.TTF)
}

// NewWithFont parses a TrueType/OpenType font used for all text.
func NewWithFont(ttf []byte) (*Compositor, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Compositor{font: f}, nil
}

func (c *Compositor) face(sizePx int) (font.Face, error) {
	return opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Lines returns the wrapped text lines for style, or nil when the text is
// blank and the placeholder would be drawn instead.
func (c *Compositor) Lines(style types.StickerStyle) ([]string, error) {
	if strings.TrimSpace(style.Text) == "" {
		return nil, nil
	}
	face, err := c.face(types.ClampFontSize(style.FontSizePx))
	if err != nil {
		return nil, err
	}
	defer face.Close()
	return Wrap(style.Text, FrameSize-2*TextMargin, measurer(face)), nil
}

// Render draws a new FrameSize x FrameSize frame. Output depends only on style.
func (c *Compositor) Render(style types.StickerStyle) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, FrameSize, FrameSize))
	drawBackground(dst, style)

	size := types.ClampFontSize(style.FontSizePx)
	face, err := c.face(size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	tc := style.TextColor
	if strings.TrimSpace(style.Text) == "" {
		src := image.NewUniform(color.NRGBA{R: tc.R, G: tc.G, B: tc.B, A: placeholderAlpha})
		drawCentered(dst, face, src, Placeholder, FrameSize/2)
		return dst, nil
	}

	lines := Wrap(style.Text, FrameSize-2*TextMargin, measurer(face))
	src := image.NewUniform(color.NRGBA{R: tc.R, G: tc.G, B: tc.B, A: 0xff})
	for i, y := range Baselines(len(lines), size, FrameSize) {
		drawCentered(dst, face, src, lines[i], y)
	}
	return dst, nil
}

func (c *Compositor) RenderPNG(style types.StickerStyle) ([]byte, error) {
	img, err := c.Render(style)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBackground(dst *image.RGBA, style types.StickerStyle) {
	if style.BackgroundImage == nil {
		bg := style.BackgroundColor
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{R: bg.R, G: bg.G, B: bg.B, A: 0xff}), image.Point{}, draw.Src)
		return
	}
	src := style.BackgroundImage
	b := src.Bounds()
	xdraw.CatmullRom.Scale(dst, coverRect(b.Dx(), b.Dy(), FrameSize, FrameSize), src, b, xdraw.Over, nil)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(washColor), image.Point{}, draw.Over)
}

// drawCentered places s horizontally centred with its em box vertically
// centred on midY.
func drawCentered(dst draw.Image, face font.Face, src image.Image, s string, midY float64) {
	m := face.Metrics()
	width := font.MeasureString(face, s)
	x := fixed.I(FrameSize)/2 - width/2
	y := fixed.Int26_6(midY*64) + (m.Ascent-m.Descent)/2
	d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.Point26_6{X: x, Y: y}}
	d.DrawString(s)
}

func measurer(face font.Face) func(string) float64 {
	return func(s string) float64 {
		return float64(font.MeasureString(face, s)) / 64
	}
}
