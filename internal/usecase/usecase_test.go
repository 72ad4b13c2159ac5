package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/stickercut/internal/types"
)

type call struct {
	op         string
	start, end float64
	image      []byte
	audio      []byte
}

type fakeTranscoder struct {
	mu      sync.Mutex
	calls   []call
	loadErr error
	trimErr error
	muxErr  error
	// block, when set, holds Trim until closed.
	block chan struct{}
}

func (f *fakeTranscoder) Load(context.Context) error { return f.loadErr }

func (f *fakeTranscoder) Trim(_ context.Context, src types.SourceAudio, start, end float64) ([]byte, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "trim", start: start, end: end})
	if f.trimErr != nil {
		return nil, f.trimErr
	}
	return append([]byte("trimmed:"), src.Data...), nil
}

func (f *fakeTranscoder) Mux(_ context.Context, image, audio []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "mux", image: image, audio: audio})
	if f.muxErr != nil {
		return nil, f.muxErr
	}
	return append(append([]byte("video:"), image...), audio...), nil
}

func (f *fakeTranscoder) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

type fakeFrames struct{ renders int }

func (f *fakeFrames) RenderPNG(st types.StickerStyle) ([]byte, error) {
	f.renders++
	return []byte("png:" + st.Text), nil
}

type fakeTagger struct{ metas []types.ClipMeta }

func (f *fakeTagger) Tag(_ context.Context, mp3 []byte, meta types.ClipMeta) ([]byte, error) {
	f.metas = append(f.metas, meta)
	return append([]byte("tagged:"), mp3...), nil
}

func readyExporter(t *testing.T, tr *fakeTranscoder) (*Exporter, *fakeFrames) {
	t.Helper()
	p := NewProcessor(tr)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	frames := &fakeFrames{}
	return New(Deps{Processor: p, Frames: frames}, nil), frames
}

func src() *types.SourceAudio { return &types.SourceAudio{Name: "song.mp3", Data: []byte("pcm")} }

func TestExport_SkipsWithoutSourceOrSelection(t *testing.T) {
	t.Parallel()

	sel := &types.Selection{Start: 1, End: 2}
	cases := []struct {
		name   string
		source *types.SourceAudio
		sel    *types.Selection
	}{
		{"no source", nil, sel},
		{"no selection", src(), nil},
		{"neither", nil, nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tr := &fakeTranscoder{}
			ex, frames := readyExporter(t, tr)
			res, err := ex.ExportAudio(context.Background(), AudioRequest{Source: tc.source, Selection: tc.sel})
			if err != nil || !res.Skipped {
				t.Fatalf("audio: expected skip, got %+v, %v", res, err)
			}
			res, err = ex.ExportVideo(context.Background(), VideoRequest{Source: tc.source, Selection: tc.sel})
			if err != nil || !res.Skipped {
				t.Fatalf("video: expected skip, got %+v, %v", res, err)
			}
			if len(tr.ops()) != 0 {
				t.Fatalf("transcoder must not be called, got %v", tr.ops())
			}
			if frames.renders != 0 {
				t.Fatalf("frame must not be rendered on skip")
			}
		})
	}
}

func TestExportAudio_TrimsSelection(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{}
	ex, _ := readyExporter(t, tr)
	res, err := ex.ExportAudio(context.Background(), AudioRequest{
		Source:    src(),
		Selection: &types.Selection{Start: 5, End: 12},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(tr.calls) != 1 || tr.calls[0].op != "trim" || tr.calls[0].start != 5 || tr.calls[0].end != 12 {
		t.Fatalf("unexpected calls: %+v", tr.calls)
	}
	if res.Artifact.Kind != types.ArtifactAudio || string(res.Artifact.Data) != "trimmed:pcm" {
		t.Fatalf("unexpected artifact: %+v", res.Artifact)
	}
	if ex.State() != StateReady {
		t.Fatalf("state = %s, want ready", ex.State())
	}
}

func TestExportAudio_TagsWhenMetaPresent(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{}
	p := NewProcessor(tr)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	tagger := &fakeTagger{}
	ex := New(Deps{Processor: p, Frames: &fakeFrames{}, Tagger: tagger}, nil)

	sel := &types.Selection{Start: 0, End: 3}
	res, err := ex.ExportAudio(context.Background(), AudioRequest{Source: src(), Selection: sel, Meta: types.ClipMeta{Lyrics: "la la"}})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(res.Artifact.Data) != "tagged:trimmed:pcm" {
		t.Fatalf("unexpected artifact: %q", res.Artifact.Data)
	}
	if _, err := ex.ExportAudio(context.Background(), AudioRequest{Source: src(), Selection: sel}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(tagger.metas) != 1 {
		t.Fatalf("expected tagger to run only when metadata is present, ran %d times", len(tagger.metas))
	}
}

func TestExportVideo_TrimBeforeMux(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{}
	ex, frames := readyExporter(t, tr)
	res, err := ex.ExportVideo(context.Background(), VideoRequest{
		Source:    src(),
		Selection: &types.Selection{Start: 2, End: 4},
		Style:     types.StickerStyle{Text: "hi"},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := tr.ops(); len(got) != 2 || got[0] != "trim" || got[1] != "mux" {
		t.Fatalf("expected trim then mux, got %v", got)
	}
	if !bytes.Equal(tr.calls[1].audio, []byte("trimmed:pcm")) {
		t.Fatalf("mux audio = %q, want the trim output", tr.calls[1].audio)
	}
	if !bytes.Equal(tr.calls[1].image, []byte("png:hi")) {
		t.Fatalf("mux image = %q, want rendered frame", tr.calls[1].image)
	}
	if frames.renders != 1 {
		t.Fatalf("expected one render, got %d", frames.renders)
	}
	if res.Artifact.Kind != types.ArtifactVideo || res.Artifact.Ext() != "mp4" {
		t.Fatalf("unexpected artifact: %+v", res.Artifact)
	}
}

func TestExport_Idempotent(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{}
	ex, _ := readyExporter(t, tr)
	req := VideoRequest{Source: src(), Selection: &types.Selection{Start: 1, End: 3}, Style: types.StickerStyle{Text: "x"}}
	a, err := ex.ExportVideo(context.Background(), req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := ex.ExportVideo(context.Background(), req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.Equal(a.Artifact.Data, b.Artifact.Data) {
		t.Fatalf("identical requests produced different artifacts")
	}
}

func TestExportVideo_MuxFailureDiscardsTrim(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{muxErr: errors.New("encoder exploded")}
	ex, _ := readyExporter(t, tr)
	res, err := ex.ExportVideo(context.Background(), VideoRequest{Source: src(), Selection: &types.Selection{Start: 0, End: 1}})
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("expected ErrProcessingFailed, got %v", err)
	}
	if res.Artifact.Data != nil {
		t.Fatalf("no partial artifact may be returned")
	}
	if ex.State() != StateFailed {
		t.Fatalf("state = %s, want failed", ex.State())
	}

	// Failure is terminal only for that attempt.
	tr.mu.Lock()
	tr.muxErr = nil
	tr.mu.Unlock()
	if _, err := ex.ExportVideo(context.Background(), VideoRequest{Source: src(), Selection: &types.Selection{Start: 0, End: 1}}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if ex.State() != StateReady {
		t.Fatalf("state = %s, want ready", ex.State())
	}
}

func TestExportAudio_TrimFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{trimErr: errors.New("bad input")}
	ex, _ := readyExporter(t, tr)
	_, err := ex.ExportAudio(context.Background(), AudioRequest{Source: src(), Selection: &types.Selection{Start: 0, End: 1}})
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("expected ErrProcessingFailed, got %v", err)
	}
	if !errors.Is(ex.LastErr(), ErrProcessingFailed) {
		t.Fatalf("last error not recorded: %v", ex.LastErr())
	}
}

func TestExport_RejectsConcurrentRequest(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{block: make(chan struct{})}
	ex, _ := readyExporter(t, tr)
	req := AudioRequest{Source: src(), Selection: &types.Selection{Start: 0, End: 1}}

	done := make(chan error, 1)
	go func() {
		_, err := ex.ExportAudio(context.Background(), req)
		done <- err
	}()

	waitFor(t, func() bool { return ex.Busy() })
	if _, err := ex.ExportAudio(context.Background(), req); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(tr.block)
	if err := <-done; err != nil {
		t.Fatalf("first export: %v", err)
	}
	if n := len(tr.ops()); n != 1 {
		t.Fatalf("rejected request must not reach the transcoder, got %d calls", n)
	}
}

func TestExport_ProcessorUnavailable(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{loadErr: errors.New("no ffmpeg")}
	p := NewProcessor(tr)
	if err := p.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if p.State() != StateUnavailable {
		t.Fatalf("state = %s, want unavailable", p.State())
	}
	ex := New(Deps{Processor: p, Frames: &fakeFrames{}}, nil)
	_, err := ex.ExportAudio(context.Background(), AudioRequest{Source: src(), Selection: &types.Selection{Start: 0, End: 1}})
	if !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("expected ErrProcessorUnavailable, got %v", err)
	}
	if len(tr.ops()) != 0 {
		t.Fatalf("transcoder must not be called")
	}
}

func TestProcessor_Transitions(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscoder{loadErr: errors.New("missing")}
	p := NewProcessor(tr)
	var seen []State
	p.OnState(func(s State) { seen = append(seen, s) })

	if p.State() != StateIdle {
		t.Fatalf("initial state = %s", p.State())
	}
	_ = p.Load(context.Background())
	tr.loadErr = nil
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load when ready: %v", err)
	}
	want := []State{StateLoading, StateUnavailable, StateLoading, StateReady}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met")
}
