package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/forPelevin/stickercut/internal/domain/style"
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"console": true, "json": true}
)

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", c.Server.Addr, err)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0")
	}
	if c.Server.SessionTTLSec < 0 {
		return fmt.Errorf("server.session_ttl_s must be >= 0")
	}
	if strings.TrimSpace(c.Transcoder.FFmpegPath) == "" {
		return fmt.Errorf("transcoder.ffmpeg_path is required")
	}
	if strings.TrimSpace(c.Transcoder.FFprobePath) == "" {
		return fmt.Errorf("transcoder.ffprobe_path is required")
	}
	if c.Transcoder.AudioBitrateKbps <= 0 {
		return fmt.Errorf("transcoder.audio_bitrate_kbps must be > 0")
	}
	if c.Transcoder.WorkDir != "" {
		if st, err := os.Stat(c.Transcoder.WorkDir); err != nil || !st.IsDir() {
			return fmt.Errorf("transcoder.work_dir %q is not a directory", c.Transcoder.WorkDir)
		}
	}
	if _, err := style.ParseColor(c.Style.BackgroundColor); err != nil {
		return fmt.Errorf("style.background_color: %w", err)
	}
	if _, err := style.ParseColor(c.Style.TextColor); err != nil {
		return fmt.Errorf("style.text_color: %w", err)
	}
	if c.Style.FontFile != "" {
		if _, err := os.Stat(c.Style.FontFile); err != nil {
			return fmt.Errorf("style.font_file: %w", err)
		}
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q: want debug, info, warn or error", c.Logging.Level)
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format %q: want console or json", c.Logging.Format)
	}
	return nil
}
