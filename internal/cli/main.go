package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stickercut",
		Short:         "Cut a song region into a lyric sticker (MP3 or MP4)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "stickercut.yaml", "Config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	root.AddCommand(
		newServeCmd(),
		newExportCmd(),
		newPreviewCmd(),
		newDoctorCmd(),
		newConfigCmd(),
	)
	return root
}
