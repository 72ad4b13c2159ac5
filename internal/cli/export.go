package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/forPelevin/stickercut/internal/config"
	"github.com/forPelevin/stickercut/internal/domain/style"
	"github.com/forPelevin/stickercut/internal/pipeline"
	"github.com/forPelevin/stickercut/internal/types"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the selected region as MP3 or as an MP4 sticker",
	}
	cmd.AddCommand(
		newExportKindCmd(types.ArtifactAudio, "Trim the region to an MP3"),
		newExportKindCmd(types.ArtifactVideo, "Render the frame and mux it with the trimmed region into an MP4"),
	)
	return cmd
}

func newExportKindCmd(kind types.ArtifactKind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind) + " <input>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, kind, args[0])
		},
	}
	cmd.Flags().Float64("start", 0, "Region start in seconds (default 0)")
	cmd.Flags().Float64("end", 0, "Region end in seconds (default min(duration, 10))")
	cmd.Flags().String("out", "", "Output directory (overrides export.out_dir)")
	if kind == types.ArtifactVideo {
		addStyleFlags(cmd)
	}
	return cmd
}

func addStyleFlags(cmd *cobra.Command) {
	cmd.Flags().String("style", "", "YAML style file")
	cmd.Flags().String("text", "", "Sticker text")
	cmd.Flags().String("bg-color", "", "Background colour (#rrggbb)")
	cmd.Flags().String("text-color", "", "Text colour (#rrggbb)")
	cmd.Flags().String("bg-image", "", "Background image (PNG, JPEG, GIF or WebP)")
	cmd.Flags().Int("font-size", 0, "Font size in px (40-150)")
}

func runExport(cmd *cobra.Command, kind types.ArtifactKind, input string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	in := pipeline.ExportInput{
		Input:  absIn,
		Kind:   kind,
		OutDir: e.cfg.Export.OutDir,
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		in.OutDir = v
	}
	if sel, ok, err := selectionFlags(cmd); err != nil {
		return err
	} else if ok {
		in.Selection = &sel
	}
	if kind == types.ArtifactVideo {
		st, _, err := resolveStyle(cmd, e.cfg)
		if err != nil {
			return err
		}
		in.Style = &st
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	if err := e.rt.Processor.Load(ctx); err != nil {
		return fmt.Errorf("media processor unavailable: %w", err)
	}

	w, err := pipeline.Export(ctx, e.rt.SessionDeps(nil), in)
	if err != nil {
		return err
	}
	printExport(cmd, w)
	return nil
}

// selectionFlags reports whether --start or --end was given. A missing
// bound falls back to the default selection's bound.
func selectionFlags(cmd *cobra.Command) (types.Selection, bool, error) {
	fs := cmd.Flags()
	if !fs.Changed("start") && !fs.Changed("end") {
		return types.Selection{}, false, nil
	}
	start, _ := fs.GetFloat64("start")
	end, _ := fs.GetFloat64("end")
	if !fs.Changed("end") {
		end = start + 10
	}
	if end <= start {
		return types.Selection{}, false, fmt.Errorf("--end (%.3f) must be after --start (%.3f)", end, start)
	}
	return types.Selection{Start: start, End: end}, true, nil
}

// resolveStyle layers config defaults, the --style file and individual flags.
func resolveStyle(cmd *cobra.Command, cfg config.Config) (types.StickerStyle, style.Spec, error) {
	fs := cmd.Flags()
	spec := cfg.Style.Spec()

	var (
		st  types.StickerStyle
		err error
	)
	if path, _ := fs.GetString("style"); path != "" {
		st, spec, err = style.LoadFile(path, spec)
		if err != nil {
			return types.StickerStyle{}, style.Spec{}, err
		}
	}

	if fs.Changed("text") {
		spec.Text, _ = fs.GetString("text")
	}
	if fs.Changed("bg-color") {
		spec.BackgroundColor, _ = fs.GetString("bg-color")
	}
	if fs.Changed("text-color") {
		spec.TextColor, _ = fs.GetString("text-color")
	}
	if fs.Changed("font-size") {
		spec.FontSize, _ = fs.GetInt("font-size")
	}
	img := st.BackgroundImage
	if path, _ := fs.GetString("bg-image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return types.StickerStyle{}, style.Spec{}, fmt.Errorf("read background image: %w", err)
		}
		if img, err = style.DecodeImage(data); err != nil {
			return types.StickerStyle{}, style.Spec{}, err
		}
		spec.BackgroundImage = path
	}

	st, err = spec.Resolve()
	if err != nil {
		return types.StickerStyle{}, style.Spec{}, err
	}
	st.BackgroundImage = img
	return st, spec, nil
}

func printExport(cmd *cobra.Command, w pipeline.Written) {
	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	dim := lipgloss.NewStyle().Faint(true).Inline(true)

	r := w.Record
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
		green.Render("EXPORTED"),
		bold.Render(w.Path),
		dim.Render(fmt.Sprintf("(%s, %.3fs to %.3fs, %d bytes)", r.Kind, r.StartSec, r.EndSec, r.Bytes)),
	)
}
