package id3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2/v2"

	"github.com/forPelevin/stickercut/internal/types"
)

// Tagger writes clip metadata into exported MP3 bytes. It works on a scratch
// file because id3v2 rewrites the tag in place.
type Tagger struct {
	workDir string
}

func New(workDir string) *Tagger { return &Tagger{workDir: workDir} }

func (t *Tagger) Tag(ctx context.Context, mp3 []byte, meta types.ClipMeta) ([]byte, error) {
	if meta == (types.ClipMeta{}) {
		return mp3, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(t.workDir, "stickercut-tag-*")
	if err != nil {
		return nil, fmt.Errorf("create tag scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(path, mp3, 0o600); err != nil {
		return nil, fmt.Errorf("write tag input: %w", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("open mp3 tag: %w", err)
	}
	// id3v2 writes frames in map order, so the tag is rebuilt with at most one
	// text frame and one lyrics frame to keep repeated exports byte-identical.
	tag.DeleteAllFrames()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Lyrics != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "",
			Lyrics:            meta.Lyrics,
		})
	}
	if err := tag.Save(); err != nil {
		tag.Close()
		return nil, fmt.Errorf("save mp3 tag: %w", err)
	}
	if err := tag.Close(); err != nil {
		return nil, fmt.Errorf("close mp3 tag: %w", err)
	}
	return os.ReadFile(path)
}
