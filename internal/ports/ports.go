package ports

import (
	"context"

	"github.com/forPelevin/stickercut/internal/types"
)

// Transcoder is the narrow contract over the external media engine.
type Transcoder interface {
	Load(ctx context.Context) error
	Trim(ctx context.Context, src types.SourceAudio, start, end float64) ([]byte, error)
	Mux(ctx context.Context, imagePNG, audioMP3 []byte) ([]byte, error)
}

type AudioInspector interface {
	Inspect(ctx context.Context, src types.SourceAudio) (types.AudioInfo, error)
}

type MetadataReader interface {
	Read(data []byte) (title, artist string)
}

type Tagger interface {
	Tag(ctx context.Context, mp3 []byte, meta types.ClipMeta) ([]byte, error)
}

type FrameRenderer interface {
	RenderPNG(style types.StickerStyle) ([]byte, error)
}
