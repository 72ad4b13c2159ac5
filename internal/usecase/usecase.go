package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/forPelevin/stickercut/internal/ports"
	"github.com/forPelevin/stickercut/internal/types"
)

var (
	ErrProcessorUnavailable = errors.New("media processor is not ready")
	ErrProcessingFailed     = errors.New("export failed")
	ErrBusy                 = errors.New("an export is already running")
)

type Deps struct {
	Processor *Processor
	Frames    ports.FrameRenderer
	// Tagger is optional; nil leaves trimmed audio untouched.
	Tagger ports.Tagger
}

// Exporter runs one export at a time for a single editing session:
// Ready → Exporting → Ready | Failed. A second request while Exporting is
// rejected with ErrBusy, never queued.
type Exporter struct {
	d    Deps
	logf func(format string, args ...any)

	mu      sync.Mutex
	state   State
	lastErr error
}

func New(d Deps, logf func(format string, args ...any)) *Exporter {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Exporter{d: d, logf: logf, state: StateReady}
}

type Result struct {
	Artifact types.Artifact
	// Skipped is set when there was no audio or no selection; nothing ran.
	Skipped bool
}

type AudioRequest struct {
	Source    *types.SourceAudio
	Selection *types.Selection
	Meta      types.ClipMeta
}

type VideoRequest struct {
	Source    *types.SourceAudio
	Selection *types.Selection
	Style     types.StickerStyle
}

func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Exporter) LastErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Exporter) Busy() bool { return e.State() == StateExporting }

func (e *Exporter) ExportAudio(ctx context.Context, req AudioRequest) (Result, error) {
	if req.Source == nil || req.Selection == nil {
		return Result{Skipped: true}, nil
	}
	if err := e.begin(); err != nil {
		return Result{}, err
	}

	sel := *req.Selection
	e.logf("trimming %q [%.3f, %.3f]", req.Source.Name, sel.Start, sel.End)
	data, err := e.trim(ctx, *req.Source, sel, req.Meta)
	if err != nil {
		return Result{}, e.fail(err)
	}
	e.finish()
	e.logf("audio export ready (%d bytes)", len(data))
	return Result{Artifact: types.Artifact{Kind: types.ArtifactAudio, Data: data}}, nil
}

// ExportVideo renders the frame, trims the audio and only then muxes the
// still frame with the trimmed audio. A mux failure discards the trim.
func (e *Exporter) ExportVideo(ctx context.Context, req VideoRequest) (Result, error) {
	if req.Source == nil || req.Selection == nil {
		return Result{Skipped: true}, nil
	}
	if err := e.begin(); err != nil {
		return Result{}, err
	}

	sel := *req.Selection
	e.logf("rendering frame")
	frame, err := e.d.Frames.RenderPNG(req.Style)
	if err != nil {
		return Result{}, e.fail(fmt.Errorf("render frame: %w", err))
	}

	e.logf("trimming %q [%.3f, %.3f]", req.Source.Name, sel.Start, sel.End)
	audio, err := e.trim(ctx, *req.Source, sel, types.ClipMeta{})
	if err != nil {
		return Result{}, e.fail(err)
	}

	e.logf("muxing %d-byte frame with %d-byte audio", len(frame), len(audio))
	video, err := e.d.Processor.Transcoder().Mux(ctx, frame, audio)
	if err != nil {
		return Result{}, e.fail(fmt.Errorf("mux: %w", err))
	}
	e.finish()
	e.logf("video export ready (%d bytes)", len(video))
	return Result{Artifact: types.Artifact{Kind: types.ArtifactVideo, Data: video}}, nil
}

func (e *Exporter) trim(ctx context.Context, src types.SourceAudio, sel types.Selection, meta types.ClipMeta) ([]byte, error) {
	data, err := e.d.Processor.Transcoder().Trim(ctx, src, sel.Start, sel.End)
	if err != nil {
		return nil, fmt.Errorf("trim: %w", err)
	}
	if e.d.Tagger != nil && meta != (types.ClipMeta{}) {
		if data, err = e.d.Tagger.Tag(ctx, data, meta); err != nil {
			return nil, fmt.Errorf("tag: %w", err)
		}
	}
	return data, nil
}

func (e *Exporter) begin() error {
	if e.d.Processor == nil || !e.d.Processor.Ready() {
		return ErrProcessorUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateExporting {
		return ErrBusy
	}
	e.state, e.lastErr = StateExporting, nil
	return nil
}

func (e *Exporter) finish() {
	e.mu.Lock()
	e.state = StateReady
	e.mu.Unlock()
}

func (e *Exporter) fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrProcessingFailed, cause)
	e.mu.Lock()
	e.state, e.lastErr = StateFailed, err
	e.mu.Unlock()
	e.logf("export failed: %v", cause)
	return err
}
