package ffmpeg

import (
	"path/filepath"
	"strconv"
	"strings"
)

// trimArgs re-encodes instead of stream-copying so cuts are not snapped to
// frame boundaries.
func trimArgs(in, out string, start, end float64, bitrate string) []string {
	return []string{
		"-y",
		"-i", in,
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-b:a", bitrate,
		out,
	}
}

func muxArgs(image, audio, out, vcodec, acodec, bitrate string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", image,
		"-i", audio,
		"-c:v", vcodec,
		"-tune", "stillimage",
		"-c:a", acodec,
		"-b:a", bitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		out,
	}
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// inputExt keeps the container hint from the upload name so ffmpeg can pick a
// demuxer, and drops anything that is not a plain alphanumeric extension.
func inputExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || len(ext) > 8 {
		return "bin"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "bin"
		}
	}
	return ext
}
