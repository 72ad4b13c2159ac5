package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/stickercut/internal/domain/compositor"
	"github.com/forPelevin/stickercut/internal/domain/style"
	"github.com/forPelevin/stickercut/internal/events"
	"github.com/forPelevin/stickercut/internal/ports"
	"github.com/forPelevin/stickercut/internal/ports/adapters/audiotag"
	"github.com/forPelevin/stickercut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/stickercut/internal/ports/adapters/id3"
	"github.com/forPelevin/stickercut/internal/session"
	"github.com/forPelevin/stickercut/internal/types"
	"github.com/forPelevin/stickercut/internal/usecase"
)

type Config struct {
	FFmpegPath       string
	FFprobePath      string
	VideoCodec       string
	AudioCodec       string
	AudioBitrateKbps int
	WorkDir          string

	// FontFile replaces the bundled face when set.
	FontFile     string
	TagMetadata  bool
	DefaultStyle style.Spec

	Logf func(format string, args ...any)
}

func (c Config) Validate() error {
	if c.FFmpegPath == "" {
		return errors.New("ffmpeg path is empty")
	}
	if c.FFprobePath == "" {
		return errors.New("ffprobe path is empty")
	}
	if c.AudioBitrateKbps <= 0 {
		return fmt.Errorf("audio bitrate must be > 0")
	}
	if c.FontFile != "" {
		if _, err := os.Stat(c.FontFile); err != nil {
			return fmt.Errorf("stat font: %w", err)
		}
	}
	return nil
}

// Runtime holds the wired adapters shared by every session.
type Runtime struct {
	Transcoder *ffmpeg.Adapter
	Processor  *usecase.Processor
	Frames     *compositor.Compositor
	Metadata   audiotag.Reader
	// Tagger is nil when metadata tagging is disabled.
	Tagger ports.Tagger

	cfg Config
}

func Build(cfg Config) (*Runtime, error) {
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tc := ffmpeg.New(ffmpeg.Options{
		FFmpegPath:       cfg.FFmpegPath,
		FFprobePath:      cfg.FFprobePath,
		VideoCodec:       cfg.VideoCodec,
		AudioCodec:       cfg.AudioCodec,
		AudioBitrateKbps: cfg.AudioBitrateKbps,
		WorkDir:          cfg.WorkDir,
	})

	var (
		frames *compositor.Compositor
		err    error
	)
	if cfg.FontFile != "" {
		ttf, rerr := os.ReadFile(cfg.FontFile)
		if rerr != nil {
			return nil, fmt.Errorf("read font: %w", rerr)
		}
		frames, err = compositor.NewWithFont(ttf)
	} else {
		frames, err = compositor.New()
	}
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}

	rt := &Runtime{
		Transcoder: tc,
		Processor:  usecase.NewProcessor(tc),
		Frames:     frames,
		Metadata:   audiotag.New(),
		cfg:        cfg,
	}
	if cfg.TagMetadata {
		rt.Tagger = id3.New(cfg.WorkDir)
	}
	return rt, nil
}

// SessionDeps wires the runtime into sessions. bus may be nil.
func (rt *Runtime) SessionDeps(bus *events.Broadcaster) session.Deps {
	return session.Deps{
		Inspector:    rt.Transcoder,
		Metadata:     rt.Metadata,
		Frames:       rt.Frames,
		Processor:    rt.Processor,
		Tagger:       rt.Tagger,
		Events:       bus,
		DefaultStyle: rt.cfg.DefaultStyle,
		Logf:         rt.cfg.Logf,
	}
}

type ExportInput struct {
	Input string
	Kind  types.ArtifactKind
	// Selection overrides the default selection when set.
	Selection *types.Selection
	// Style replaces the session default when set.
	Style  *types.StickerStyle
	OutDir string
}

type Written struct {
	Path   string
	Record types.ExportRecord
}

// Export runs one export through a throwaway session and writes the
// artifact to OutDir as sticker-<unix-millis>.<ext>.
func Export(ctx context.Context, d session.Deps, in ExportInput) (Written, error) {
	logf := d.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	data, err := os.ReadFile(in.Input)
	if err != nil {
		return Written{}, fmt.Errorf("read input: %w", err)
	}

	sess, err := session.New("cli", d)
	if err != nil {
		return Written{}, err
	}
	if _, err := sess.LoadAudio(ctx, filepath.Base(in.Input), data); err != nil {
		return Written{}, err
	}
	if in.Selection != nil {
		if _, err := sess.CreateSelection(*in.Selection); err != nil {
			return Written{}, fmt.Errorf("selection: %w", err)
		}
	}
	if in.Style != nil {
		sess.ReplaceStyle(*in.Style)
	}

	start := time.Now()
	out, err := sess.Export(ctx, in.Kind)
	if err != nil {
		return Written{}, err
	}
	if out.Skipped {
		return Written{}, errors.New("nothing to export")
	}
	logf("%s export took %s", in.Kind, time.Since(start).Round(time.Millisecond))

	path, err := WriteFile(in.OutDir, out.FileName, out.Artifact.Data)
	if err != nil {
		return Written{}, err
	}
	rec := sess.Snapshot().Export.Last
	if rec == nil {
		return Written{}, errors.New("export not recorded")
	}
	return Written{Path: path, Record: *rec}, nil
}

// WriteFile writes data to dir/name through a temp file and rename, so a
// reader never sees a partial artifact.
func WriteFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "out"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// ensure adapters implement ports
var _ ports.Transcoder = (*ffmpeg.Adapter)(nil)
var _ ports.AudioInspector = (*ffmpeg.Adapter)(nil)
var _ ports.MetadataReader = audiotag.Reader{}
var _ ports.Tagger = (*id3.Tagger)(nil)
var _ ports.FrameRenderer = (*compositor.Compositor)(nil)
