package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/stickercut/internal/types"
)

type Options struct {
	FFmpegPath       string
	FFprobePath      string
	VideoCodec       string
	AudioCodec       string
	AudioBitrateKbps int
	// WorkDir is the parent for per-call scratch dirs; empty means os.TempDir().
	WorkDir string
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	vcodec  string
	acodec  string
	bitrate string
	workDir string
}

func New(o Options) *Adapter {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.VideoCodec == "" {
		o.VideoCodec = "libx264"
	}
	if o.AudioCodec == "" {
		o.AudioCodec = "aac"
	}
	if o.AudioBitrateKbps <= 0 {
		o.AudioBitrateKbps = 192
	}
	return &Adapter{
		ffmpeg:  o.FFmpegPath,
		ffprobe: o.FFprobePath,
		vcodec:  o.VideoCodec,
		acodec:  o.AudioCodec,
		bitrate: strconv.Itoa(o.AudioBitrateKbps) + "k",
		workDir: o.WorkDir,
	}
}

// Load resolves both binaries and checks that ffmpeg actually runs.
func (a *Adapter) Load(ctx context.Context) error {
	ff, err := exec.LookPath(a.ffmpeg)
	if err != nil {
		return fmt.Errorf("locate ffmpeg: %w", err)
	}
	fp, err := exec.LookPath(a.ffprobe)
	if err != nil {
		return fmt.Errorf("locate ffprobe: %w", err)
	}
	b, err := exec.CommandContext(ctx, ff, "-hide_banner", "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg -version: %w\n%s", err, string(b))
	}
	a.ffmpeg, a.ffprobe = ff, fp
	return nil
}

func (a *Adapter) Trim(ctx context.Context, src types.SourceAudio, start, end float64) ([]byte, error) {
	dir, err := a.scratch()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inName := "input." + inputExt(src.Name)
	if err := os.WriteFile(filepath.Join(dir, inName), src.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write trim input: %w", err)
	}
	const outName = "output.mp3"
	if err := a.run(ctx, dir, "trim", trimArgs(inName, outName, start, end, a.bitrate)); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, outName))
}

func (a *Adapter) Mux(ctx context.Context, imagePNG, audioMP3 []byte) ([]byte, error) {
	dir, err := a.scratch()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	const (
		imageName = "input_image.png"
		audioName = "input_audio.mp3"
		outName   = "output_video.mp4"
	)
	if err := os.WriteFile(filepath.Join(dir, imageName), imagePNG, 0o600); err != nil {
		return nil, fmt.Errorf("write mux image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, audioName), audioMP3, 0o600); err != nil {
		return nil, fmt.Errorf("write mux audio: %w", err)
	}
	args := muxArgs(imageName, audioName, outName, a.vcodec, a.acodec, a.bitrate)
	if err := a.run(ctx, dir, "mux", args); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, outName))
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Inspect rejects anything ffprobe cannot read as audio.
func (a *Adapter) Inspect(ctx context.Context, src types.SourceAudio) (types.AudioInfo, error) {
	dir, err := a.scratch()
	if err != nil {
		return types.AudioInfo{}, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "probe."+inputExt(src.Name))
	if err := os.WriteFile(in, src.Data, 0o600); err != nil {
		return types.AudioInfo{}, fmt.Errorf("write probe input: %w", err)
	}
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		in,
	)
	b, err := cmd.Output()
	if err != nil {
		return types.AudioInfo{}, fmt.Errorf("%w: ffprobe could not read %q", types.ErrInputRejected, src.Name)
	}
	return parseProbe(b, src.Name)
}

func parseProbe(b []byte, name string) (types.AudioInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.AudioInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	hasAudio := false
	for _, s := range out.Streams {
		if s.CodecType == "audio" {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return types.AudioInfo{}, fmt.Errorf("%w: %q has no audio stream", types.ErrInputRejected, name)
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || sec <= 0 {
		return types.AudioInfo{}, fmt.Errorf("%w: %q has no usable duration", types.ErrInputRejected, name)
	}
	return types.AudioInfo{Duration: sec}, nil
}

func (a *Adapter) scratch() (string, error) {
	dir, err := os.MkdirTemp(a.workDir, "stickercut-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

func (a *Adapter) run(ctx context.Context, dir, step string, args []string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	cmd.Dir = dir
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w\n%s", step, err, string(b))
	}
	return nil
}
