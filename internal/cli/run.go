package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/forPelevin/stickercut/internal/config"
	"github.com/forPelevin/stickercut/internal/logx"
	"github.com/forPelevin/stickercut/internal/pipeline"
)

// env is what every command starts from: validated config, a logger and
// the wired runtime.
type env struct {
	cfg config.Config
	log *zap.Logger
	rt  *pipeline.Runtime
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setup() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logx.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	rt, err := pipeline.Build(pipelineConfig(cfg, logx.Logf(log)))
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &env{cfg: cfg, log: log, rt: rt}, nil
}

func (e *env) close() { _ = e.log.Sync() }

func pipelineConfig(cfg config.Config, logf func(string, ...any)) pipeline.Config {
	return pipeline.Config{
		FFmpegPath:       cfg.Transcoder.FFmpegPath,
		FFprobePath:      cfg.Transcoder.FFprobePath,
		VideoCodec:       cfg.Transcoder.VideoCodec,
		AudioCodec:       cfg.Transcoder.AudioCodec,
		AudioBitrateKbps: cfg.Transcoder.AudioBitrateKbps,
		WorkDir:          cfg.Transcoder.WorkDir,
		FontFile:         cfg.Style.FontFile,
		TagMetadata:      cfg.Export.TagMetadataValue(),
		DefaultStyle:     cfg.Style.Spec(),
		Logf:             logf,
	}
}
