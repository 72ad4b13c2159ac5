package types

import (
	"errors"
	"image"
	"strconv"
	"time"
)

// ErrInputRejected marks an upload that is not usable media (not audio, not an image).
var ErrInputRejected = errors.New("input rejected")

type RGB struct {
	R uint8
	G uint8
	B uint8
}

type Selection struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Selection) Duration() float64 { return s.End - s.Start }

const (
	MinFontSize = 40
	MaxFontSize = 150
)

// ClampFontSize pins px into [MinFontSize, MaxFontSize].
func ClampFontSize(px int) int {
	if px < MinFontSize {
		return MinFontSize
	}
	if px > MaxFontSize {
		return MaxFontSize
	}
	return px
}

type StickerStyle struct {
	Text            string
	BackgroundColor RGB
	TextColor       RGB
	// BackgroundImage replaces BackgroundColor when set.
	BackgroundImage image.Image
	FontSizePx      int
}

type SourceAudio struct {
	Name string
	Data []byte
}

type AudioInfo struct {
	Duration float64 `json:"duration"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
}

type ArtifactKind string

const (
	ArtifactAudio ArtifactKind = "audio"
	ArtifactVideo ArtifactKind = "video"
)

type Artifact struct {
	Kind ArtifactKind
	Data []byte
}

func (a Artifact) Ext() string {
	if a.Kind == ArtifactVideo {
		return "mp4"
	}
	return "mp3"
}

func (a Artifact) ContentType() string {
	if a.Kind == ArtifactVideo {
		return "video/mp4"
	}
	return "audio/mpeg"
}

// FileName is the download name: sticker-<unix-millis>.<ext>.
func (a Artifact) FileName(at time.Time) string {
	return "sticker-" + strconv.FormatInt(at.UnixMilli(), 10) + "." + a.Ext()
}

type ClipMeta struct {
	Title  string
	Lyrics string
}

type ExportRecord struct {
	Kind     ArtifactKind `json:"kind"`
	File     string       `json:"file"`
	Bytes    int          `json:"bytes"`
	StartSec float64      `json:"start_sec"`
	EndSec   float64      `json:"end_sec"`
	At       time.Time    `json:"at"`
}
