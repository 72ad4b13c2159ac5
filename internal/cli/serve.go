package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/stickercut/internal/events"
	"github.com/forPelevin/stickercut/internal/server"
	"github.com/forPelevin/stickercut/internal/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editing HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	addr := e.cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBroadcaster()
	store := session.NewStore(e.rt.SessionDeps(bus), e.cfg.Server.SessionTTL())
	srv := server.New(store, e.rt.Processor, bus, e.log, server.Options{
		Addr:           addr,
		MaxUploadBytes: e.cfg.Server.MaxUploadBytes(),
		AllowedOrigins: e.cfg.Server.AllowedOrigins,
	})

	// Exports stay disabled until the transcoder has loaded.
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := e.rt.Processor.Load(loadCtx); err != nil {
			e.log.Warn("media processor unavailable", zap.Error(err))
			return
		}
		e.log.Info("media processor ready")
	}()

	return srv.Run(ctx)
}
