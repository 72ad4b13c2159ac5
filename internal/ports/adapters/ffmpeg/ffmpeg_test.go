package ffmpeg

import (
	"errors"
	"reflect"
	"testing"

	"github.com/forPelevin/stickercut/internal/types"
)

func TestTrimArgs(t *testing.T) {
	got := trimArgs("input.wav", "output.mp3", 5, 12, "192k")
	want := []string{"-y", "-i", "input.wav", "-ss", "5.000", "-to", "12.000", "-b:a", "192k", "output.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("trimArgs = %v, want %v", got, want)
	}
}

func TestMuxArgs(t *testing.T) {
	got := muxArgs("input_image.png", "input_audio.mp3", "output_video.mp4", "libx264", "aac", "192k")
	want := []string{
		"-y", "-loop", "1",
		"-i", "input_image.png",
		"-i", "input_audio.mp3",
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"output_video.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("muxArgs = %v, want %v", got, want)
	}
}

func TestFmtSeconds(t *testing.T) {
	tests := map[float64]string{
		0:       "0.000",
		1.5:     "1.500",
		12.3456: "12.346",
	}
	for in, want := range tests {
		if got := fmtSeconds(in); got != want {
			t.Fatalf("fmtSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestInputExt(t *testing.T) {
	tests := map[string]string{
		"song.MP3":         "mp3",
		"voice.m4a":        "m4a",
		"noext":            "bin",
		"weird.m p3":       "bin",
		"../../etc/passwd": "bin",
		"x.verylongext":    "bin",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := inputExt(in); got != want {
				t.Fatalf("inputExt(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     float64
		rejected bool
	}{
		{"audio", `{"streams":[{"codec_type":"audio"}],"format":{"duration":"30.000000"}}`, 30, false},
		{"video with audio", `{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"duration":"4.5"}}`, 4.5, false},
		{"image only", `{"streams":[{"codec_type":"video"}],"format":{"duration":"N/A"}}`, 0, true},
		{"no duration", `{"streams":[{"codec_type":"audio"}],"format":{}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseProbe([]byte(tt.in), "x")
			if tt.rejected {
				if !errors.Is(err, types.ErrInputRejected) {
					t.Fatalf("expected ErrInputRejected, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Duration != tt.want {
				t.Fatalf("duration = %v, want %v", info.Duration, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	a := New(Options{})
	if a.ffmpeg != "ffmpeg" || a.ffprobe != "ffprobe" {
		t.Fatalf("unexpected binaries: %q %q", a.ffmpeg, a.ffprobe)
	}
	if a.vcodec != "libx264" || a.acodec != "aac" || a.bitrate != "192k" {
		t.Fatalf("unexpected codec defaults: %q %q %q", a.vcodec, a.acodec, a.bitrate)
	}
}
