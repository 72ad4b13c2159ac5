package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/forPelevin/stickercut/internal/config"
	"github.com/forPelevin/stickercut/internal/pipeline"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, font and the ffmpeg/ffprobe toolchain",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string
	Status  string // "ok", "warning", "error"
	Summary string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	var checks []healthCheck

	cfg, err := loadConfig()
	if err != nil {
		checks = append(checks, healthCheck{Name: "Config", Status: "error", Summary: err.Error()})
		return writeDoctorResult(cmd.OutOrStdout(), checks)
	}
	checks = append(checks, checkConfig(cfg))

	rt, err := pipeline.Build(pipelineConfig(cfg, nil))
	if err != nil {
		checks = append(checks, healthCheck{Name: "Font", Status: "error", Summary: err.Error()})
		return writeDoctorResult(cmd.OutOrStdout(), checks)
	}
	font := "bundled Go Bold"
	if cfg.Style.FontFile != "" {
		font = cfg.Style.FontFile
	}
	checks = append(checks, healthCheck{Name: "Font", Status: "ok", Summary: font})

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	if err := rt.Processor.Load(ctx); err != nil {
		checks = append(checks, healthCheck{Name: "Processor", Status: "error", Summary: err.Error()})
	} else {
		checks = append(checks, healthCheck{
			Name:    "Processor",
			Status:  "ok",
			Summary: fmt.Sprintf("%s (%s/%s)", rt.Processor.State(), cfg.Transcoder.VideoCodec, cfg.Transcoder.AudioCodec),
		})
	}

	checks = append(checks, checkOutDir(cfg.Export.OutDir))
	return writeDoctorResult(cmd.OutOrStdout(), checks)
}

func checkConfig(cfg config.Config) healthCheck {
	src := configPath
	if _, err := os.Stat(configPath); err != nil {
		src = "defaults"
	}
	return healthCheck{
		Name:    "Config",
		Status:  "ok",
		Summary: fmt.Sprintf("%s (addr %s, log %s)", src, cfg.Server.Addr, cfg.Logging.Level),
	}
}

func checkOutDir(dir string) healthCheck {
	st, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return healthCheck{Name: "Output", Status: "warning", Summary: dir + " will be created on first export"}
	case err != nil:
		return healthCheck{Name: "Output", Status: "error", Summary: err.Error()}
	case !st.IsDir():
		return healthCheck{Name: "Output", Status: "error", Summary: dir + " is not a directory"}
	}
	return healthCheck{Name: "Output", Status: "ok", Summary: dir}
}

func writeDoctorResult(out io.Writer, checks []healthCheck) error {
	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	fmt.Fprintln(out, bold.Render("STICKERCUT HEALTH"))

	failed := 0
	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
			failed++
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
