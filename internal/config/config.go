package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/stickercut/internal/domain/style"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "stickercut.yaml"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Transcoder TranscoderConfig `yaml:"transcoder"`
	Export     ExportConfig     `yaml:"export"`
	Style      StyleConfig      `yaml:"style"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	SessionTTLSec  int      `yaml:"session_ttl_s"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLSec) * time.Second
}

func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

type TranscoderConfig struct {
	FFmpegPath       string `yaml:"ffmpeg_path"`
	FFprobePath      string `yaml:"ffprobe_path"`
	VideoCodec       string `yaml:"video_codec"`
	AudioCodec       string `yaml:"audio_codec"`
	AudioBitrateKbps int    `yaml:"audio_bitrate_kbps"`
	// WorkDir holds per-call scratch directories; empty means the OS temp dir.
	WorkDir string `yaml:"work_dir,omitempty"`
}

type ExportConfig struct {
	OutDir      string `yaml:"out_dir"`
	TagMetadata *bool  `yaml:"tag_metadata,omitempty"`
}

// TagMetadataValue defaults to true.
func (e ExportConfig) TagMetadataValue() bool {
	if e.TagMetadata == nil {
		return true
	}
	return *e.TagMetadata
}

type StyleConfig struct {
	Text            string `yaml:"text"`
	BackgroundColor string `yaml:"background_color"`
	TextColor       string `yaml:"text_color"`
	FontSize        int    `yaml:"font_size"`
	// FontFile replaces the bundled Go Bold face.
	FontFile string `yaml:"font_file,omitempty"`
}

func (s StyleConfig) Spec() style.Spec {
	return style.Spec{
		Text:            s.Text,
		BackgroundColor: s.BackgroundColor,
		TextColor:       s.TextColor,
		FontSize:        s.FontSize,
	}
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	def := style.Default()
	return Config{
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			MaxUploadMB:   64,
			SessionTTLSec: 3600,
		},
		Transcoder: TranscoderConfig{
			FFmpegPath:       "ffmpeg",
			FFprobePath:      "ffprobe",
			VideoCodec:       "libx264",
			AudioCodec:       "aac",
			AudioBitrateKbps: 192,
		},
		Export: ExportConfig{
			OutDir:      "out",
			TagMetadata: boolPtr(true),
		},
		Style: StyleConfig{
			Text:            def.Text,
			BackgroundColor: def.BackgroundColor,
			TextColor:       def.TextColor,
			FontSize:        def.FontSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML configuration if it exists, otherwise returns the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (Config, error) {
	cfg := Default()
	contents, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyDefaults fills fields the YAML left empty.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Transcoder.FFmpegPath == "" {
		c.Transcoder.FFmpegPath = d.Transcoder.FFmpegPath
	}
	if c.Transcoder.FFprobePath == "" {
		c.Transcoder.FFprobePath = d.Transcoder.FFprobePath
	}
	if c.Transcoder.VideoCodec == "" {
		c.Transcoder.VideoCodec = d.Transcoder.VideoCodec
	}
	if c.Transcoder.AudioCodec == "" {
		c.Transcoder.AudioCodec = d.Transcoder.AudioCodec
	}
	if c.Transcoder.AudioBitrateKbps == 0 {
		c.Transcoder.AudioBitrateKbps = d.Transcoder.AudioBitrateKbps
	}
	if c.Export.OutDir == "" {
		c.Export.OutDir = d.Export.OutDir
	}
	if c.Export.TagMetadata == nil {
		c.Export.TagMetadata = boolPtr(true)
	}
	if c.Style.BackgroundColor == "" {
		c.Style.BackgroundColor = d.Style.BackgroundColor
	}
	if c.Style.TextColor == "" {
		c.Style.TextColor = d.Style.TextColor
	}
	if c.Style.FontSize == 0 {
		c.Style.FontSize = d.Style.FontSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// ApplyEnv overrides selected fields from STICKERCUT_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("STICKERCUT_ADDR", &c.Server.Addr)
	set("STICKERCUT_FFMPEG", &c.Transcoder.FFmpegPath)
	set("STICKERCUT_FFPROBE", &c.Transcoder.FFprobePath)
	set("STICKERCUT_LOG_LEVEL", &c.Logging.Level)
	set("STICKERCUT_OUT_DIR", &c.Export.OutDir)
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func boolPtr(v bool) *bool {
	return &v
}
