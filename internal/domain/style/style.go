package style

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/stickercut/internal/types"
)

// Spec is the serialisable form of a sticker style, as written in style
// files and sent by the editor.
type Spec struct {
	Text            string `yaml:"text" json:"text"`
	BackgroundColor string `yaml:"background_color" json:"background_color"`
	TextColor       string `yaml:"text_color" json:"text_color"`
	BackgroundImage string `yaml:"background_image,omitempty" json:"-"`
	FontSize        int    `yaml:"font_size" json:"font_size"`
}

func Default() Spec {
	return Spec{
		Text:            "",
		BackgroundColor: "#1a1a2e",
		TextColor:       "#ffffff",
		FontSize:        80,
	}
}

// ApplyDefaults fills empty fields from def.
func (s *Spec) ApplyDefaults(def Spec) {
	if s.BackgroundColor == "" {
		s.BackgroundColor = def.BackgroundColor
	}
	if s.TextColor == "" {
		s.TextColor = def.TextColor
	}
	if s.FontSize == 0 {
		s.FontSize = def.FontSize
	}
}

// Resolve parses colours and clamps the font size. The background image path
// is not loaded here; see LoadFile.
func (s Spec) Resolve() (types.StickerStyle, error) {
	bg, err := ParseColor(s.BackgroundColor)
	if err != nil {
		return types.StickerStyle{}, fmt.Errorf("background_color: %w", err)
	}
	fg, err := ParseColor(s.TextColor)
	if err != nil {
		return types.StickerStyle{}, fmt.Errorf("text_color: %w", err)
	}
	return types.StickerStyle{
		Text:            s.Text,
		BackgroundColor: bg,
		TextColor:       fg,
		FontSizePx:      types.ClampFontSize(s.FontSize),
	}, nil
}

// FromStyle is the inverse of Resolve for everything except the image.
func FromStyle(st types.StickerStyle) Spec {
	return Spec{
		Text:            st.Text,
		BackgroundColor: FormatColor(st.BackgroundColor),
		TextColor:       FormatColor(st.TextColor),
		FontSize:        st.FontSizePx,
	}
}

// LoadFile reads a YAML style file. A relative background_image is resolved
// against the style file's directory.
func LoadFile(path string, def Spec) (types.StickerStyle, Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.StickerStyle{}, Spec{}, fmt.Errorf("read style: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return types.StickerStyle{}, Spec{}, fmt.Errorf("unmarshal style: %w", err)
	}
	spec.ApplyDefaults(def)
	st, err := spec.Resolve()
	if err != nil {
		return types.StickerStyle{}, Spec{}, err
	}
	if spec.BackgroundImage != "" {
		imgPath := spec.BackgroundImage
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(filepath.Dir(path), imgPath)
			spec.BackgroundImage = imgPath
		}
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return types.StickerStyle{}, Spec{}, fmt.Errorf("read background image: %w", err)
		}
		if st.BackgroundImage, err = DecodeImage(data); err != nil {
			return types.StickerStyle{}, Spec{}, err
		}
	}
	return st, spec, nil
}

// MaxImageSide bounds either side of a background image before decoding.
const MaxImageSide = 8192

// DecodeImage accepts PNG, JPEG, GIF and WebP up to MaxImageSide per side.
func DecodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a supported image: %v", types.ErrInputRejected, err)
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide {
		return nil, fmt.Errorf("%w: image is %dx%d, max %dx%d",
			types.ErrInputRejected, cfg.Width, cfg.Height, MaxImageSide, MaxImageSide)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a supported image: %v", types.ErrInputRejected, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", types.ErrInputRejected)
	}
	return img, nil
}

var errBadColor = errors.New("expected #rgb or #rrggbb")

func ParseColor(s string) (types.RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return types.RGB{}, fmt.Errorf("%q: %w", s, errBadColor)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return types.RGB{}, fmt.Errorf("%q: %w", s, errBadColor)
	}
	return types.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func FormatColor(c types.RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
