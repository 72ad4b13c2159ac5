package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/stickercut/internal/config"
	"github.com/forPelevin/stickercut/internal/domain/compositor"
	"github.com/forPelevin/stickercut/internal/logx"
	"github.com/forPelevin/stickercut/internal/pipeline"
	"github.com/forPelevin/stickercut/internal/watch"
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the sticker frame to a PNG",
		Args:  cobra.NoArgs,
		RunE:  runPreview,
	}
	addStyleFlags(cmd)
	cmd.Flags().String("out", "preview.png", "Output PNG path")
	cmd.Flags().Bool("watch", false, "Re-render whenever the style file or background image changes")
	return cmd
}

func runPreview(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	out, _ := cmd.Flags().GetString("out")
	render := func() ([]string, error) {
		files, lines, err := renderPreview(cmd, e.cfg, e.rt.Frames, out)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(cmd.OutOrStdout(), previewSummary(out, lines))
		return files, nil
	}

	watched, err := render()
	if err != nil {
		return err
	}

	if on, _ := cmd.Flags().GetBool("watch"); !on {
		return nil
	}
	if len(watched) == 0 {
		return fmt.Errorf("--watch needs --style or --bg-image")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logf := logx.Logf(e.log)
	var w *watch.Watcher
	w, err = watch.New(func(context.Context) error {
		files, err := render()
		if err != nil {
			return err
		}
		// The style file may point at a new background image.
		for _, f := range files {
			if err := w.Watch(f); err != nil {
				return err
			}
		}
		return nil
	}, 0, logf)
	if err != nil {
		return err
	}
	defer w.Close()
	for _, f := range watched {
		if err := w.Watch(f); err != nil {
			return err
		}
	}
	logf("watching %v", watched)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// renderPreview writes the frame and returns the files it was built from
// together with the wrapped text lines.
func renderPreview(cmd *cobra.Command, cfg config.Config, frames *compositor.Compositor, out string) ([]string, []string, error) {
	st, spec, err := resolveStyle(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	lines, err := frames.Lines(st)
	if err != nil {
		return nil, nil, err
	}
	png, err := frames.RenderPNG(st)
	if err != nil {
		return nil, nil, err
	}
	if err := writePreview(out, png); err != nil {
		return nil, nil, err
	}

	var files []string
	if path, _ := cmd.Flags().GetString("style"); path != "" {
		files = append(files, path)
	}
	if spec.BackgroundImage != "" {
		files = append(files, spec.BackgroundImage)
	}
	return files, lines, nil
}

func previewSummary(out string, lines []string) string {
	switch len(lines) {
	case 0:
		return out + " (placeholder)"
	case 1:
		return out + " (1 line)"
	}
	return fmt.Sprintf("%s (%d lines)", out, len(lines))
}

func writePreview(out string, png []byte) error {
	_, err := pipeline.WriteFile(filepath.Dir(out), filepath.Base(out), png)
	return err
}
