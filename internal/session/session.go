package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/forPelevin/stickercut/internal/domain/selection"
	"github.com/forPelevin/stickercut/internal/domain/style"
	"github.com/forPelevin/stickercut/internal/events"
	"github.com/forPelevin/stickercut/internal/ports"
	"github.com/forPelevin/stickercut/internal/types"
	"github.com/forPelevin/stickercut/internal/usecase"
)

type Deps struct {
	Inspector ports.AudioInspector
	Metadata  ports.MetadataReader
	Frames    ports.FrameRenderer
	Processor *usecase.Processor
	Tagger    ports.Tagger
	Events    *events.Broadcaster

	DefaultStyle style.Spec
	Now          func() time.Time
	Logf         func(format string, args ...any)
}

// Session is one editing session: the uploaded audio, its single selection,
// the sticker style and the export state.
type Session struct {
	id string
	d  Deps

	exporter *usecase.Exporter

	mu       sync.Mutex
	audio    *types.SourceAudio
	info     types.AudioInfo
	slot     selection.Slot
	style    types.StickerStyle
	last     *types.ExportRecord
	lastSeen time.Time
}

func New(id string, d Deps) (*Session, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	def := d.DefaultStyle
	def.ApplyDefaults(style.Default())
	st, err := def.Resolve()
	if err != nil {
		return nil, fmt.Errorf("default style: %w", err)
	}
	s := &Session{
		id:       id,
		d:        d,
		style:    st,
		lastSeen: d.Now(),
	}
	s.exporter = usecase.New(usecase.Deps{
		Processor: d.Processor,
		Frames:    d.Frames,
		Tagger:    d.Tagger,
	}, func(format string, args ...any) {
		d.Logf("[%s] "+format, append([]any{id}, args...)...)
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

// LoadAudio replaces the source audio. A rejected upload leaves the session
// untouched; an accepted one clears the selection and creates the default.
func (s *Session) LoadAudio(ctx context.Context, name string, data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty upload", types.ErrInputRejected)
	}
	src := types.SourceAudio{Name: name, Data: data}
	info, err := s.d.Inspector.Inspect(ctx, src)
	if err != nil {
		return Snapshot{}, err
	}
	if s.d.Metadata != nil {
		info.Title, info.Artist = s.d.Metadata.Read(data)
	}

	s.mu.Lock()
	s.audio = &src
	s.info = info
	s.slot.Reset(info.Duration)
	_, err = s.slot.CreateDefault()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	s.d.Logf("[%s] loaded %q (%.3fs)", s.id, name, info.Duration)
	s.publish(events.TypeAudio, snap.Audio)
	s.publish(events.TypeSelection, snap.Selection)
	return snap, nil
}

func (s *Session) RemoveAudio() Snapshot {
	s.mu.Lock()
	s.audio = nil
	s.info = types.AudioInfo{}
	s.slot.Reset(0)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeAudio, nil)
	s.publish(events.TypeSelection, nil)
	return snap
}

// CreateSelection handles the widget's region-created event.
func (s *Session) CreateSelection(c types.Selection) (Snapshot, error) {
	return s.mutateSelection(func() error {
		_, err := s.slot.CreateOrReplace(c)
		return err
	})
}

// UpdateSelection handles the widget's region-updated event.
func (s *Session) UpdateSelection(c types.Selection) (Snapshot, error) {
	return s.mutateSelection(func() error {
		_, err := s.slot.Update(c)
		return err
	})
}

func (s *Session) ClearSelection() Snapshot {
	snap, _ := s.mutateSelection(func() error {
		s.slot.Clear()
		return nil
	})
	return snap
}

func (s *Session) mutateSelection(fn func() error) (Snapshot, error) {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeSelection, snap.Selection)
	return snap, nil
}

// StylePatch carries the style fields a client changed; nil means unchanged.
type StylePatch struct {
	Text            *string `json:"text"`
	BackgroundColor *string `json:"background_color"`
	TextColor       *string `json:"text_color"`
	FontSize        *int    `json:"font_size"`
}

func (s *Session) SetStyle(p StylePatch) (Snapshot, error) {
	var bg, fg types.RGB
	var err error
	if p.BackgroundColor != nil {
		if bg, err = style.ParseColor(*p.BackgroundColor); err != nil {
			return Snapshot{}, fmt.Errorf("background_color: %w", err)
		}
	}
	if p.TextColor != nil {
		if fg, err = style.ParseColor(*p.TextColor); err != nil {
			return Snapshot{}, fmt.Errorf("text_color: %w", err)
		}
	}

	s.mu.Lock()
	if p.Text != nil {
		s.style.Text = *p.Text
	}
	if p.BackgroundColor != nil {
		s.style.BackgroundColor = bg
	}
	if p.TextColor != nil {
		s.style.TextColor = fg
	}
	if p.FontSize != nil {
		s.style.FontSizePx = types.ClampFontSize(*p.FontSize)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeStyle, snap.Style)
	return snap, nil
}

// ReplaceStyle swaps in a fully resolved style, e.g. one read from a style file.
func (s *Session) ReplaceStyle(st types.StickerStyle) Snapshot {
	st.FontSizePx = types.ClampFontSize(st.FontSizePx)
	s.mu.Lock()
	s.style = st
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeStyle, snap.Style)
	return snap
}

func (s *Session) SetBackgroundImage(data []byte) (Snapshot, error) {
	img, err := style.DecodeImage(data)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.style.BackgroundImage = img
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeStyle, snap.Style)
	return snap, nil
}

func (s *Session) ClearBackgroundImage() Snapshot {
	s.mu.Lock()
	s.style.BackgroundImage = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(events.TypeStyle, snap.Style)
	return snap
}

// Preview renders the current frame as PNG.
func (s *Session) Preview() ([]byte, error) {
	s.mu.Lock()
	st := s.style
	s.touchLocked()
	s.mu.Unlock()
	return s.d.Frames.RenderPNG(st)
}

type Export struct {
	Artifact types.Artifact
	FileName string
	Skipped  bool
}

// Export runs an audio or video export of the current selection. The session
// lock is not held while transcoding.
func (s *Session) Export(ctx context.Context, kind types.ArtifactKind) (Export, error) {
	s.mu.Lock()
	src := s.audio
	var sel *types.Selection
	if cur, ok := s.slot.Current(); ok {
		sel = &cur
	}
	st := s.style
	meta := types.ClipMeta{}
	if s.d.Tagger != nil {
		meta = types.ClipMeta{Title: s.info.Title, Lyrics: strings.TrimSpace(st.Text)}
	}
	s.touchLocked()
	s.mu.Unlock()

	var (
		res usecase.Result
		err error
	)
	if src != nil && sel != nil && s.d.Processor != nil && s.d.Processor.Ready() && !s.exporter.Busy() {
		s.publish(events.TypeExport, map[string]any{"kind": kind, "state": usecase.StateExporting})
	}
	switch kind {
	case types.ArtifactAudio:
		res, err = s.exporter.ExportAudio(ctx, usecase.AudioRequest{Source: src, Selection: sel, Meta: meta})
	case types.ArtifactVideo:
		res, err = s.exporter.ExportVideo(ctx, usecase.VideoRequest{Source: src, Selection: sel, Style: st})
	default:
		return Export{}, fmt.Errorf("unknown export kind %q", kind)
	}
	if err != nil {
		if errors.Is(err, usecase.ErrProcessingFailed) {
			s.publish(events.TypeExport, map[string]any{"kind": kind, "state": usecase.StateFailed})
		}
		return Export{}, err
	}
	if res.Skipped {
		return Export{Skipped: true}, nil
	}

	at := s.d.Now()
	out := Export{Artifact: res.Artifact, FileName: res.Artifact.FileName(at)}
	rec := &types.ExportRecord{
		Kind:     kind,
		File:     out.FileName,
		Bytes:    len(res.Artifact.Data),
		StartSec: sel.Start,
		EndSec:   sel.End,
		At:       at,
	}
	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()
	s.d.Logf("[%s] exported %s (%.3fs clip)", s.id, out.FileName, sel.Duration())

	s.publish(events.TypeExport, map[string]any{"kind": kind, "state": usecase.StateReady, "file": out.FileName})
	return out, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touchLocked() { s.lastSeen = s.d.Now() }

func (s *Session) publish(t events.Type, payload any) {
	if s.d.Events == nil {
		return
	}
	s.d.Events.Publish(events.Event{Session: s.id, Type: t, Payload: payload})
}
