// Package server exposes editing sessions over HTTP and streams session
// events over a websocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forPelevin/stickercut/internal/events"
	"github.com/forPelevin/stickercut/internal/session"
	"github.com/forPelevin/stickercut/internal/usecase"
)

type Options struct {
	Addr           string
	MaxUploadBytes int64
	// AllowedOrigins enables CORS and cross-origin websockets for these
	// origins. "*" allows any origin.
	AllowedOrigins []string
	SweepInterval  time.Duration
}

type Server struct {
	store *session.Store
	proc  *usecase.Processor
	bus   *events.Broadcaster
	log   *zap.Logger
	opts  Options

	upgrader websocket.Upgrader
}

func New(store *session.Store, proc *usecase.Processor, bus *events.Broadcaster, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	s := &Server{store: store, proc: proc, bus: bus, log: log, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(opts.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		}
	}
	if proc != nil && bus != nil {
		proc.OnState(func(st usecase.State) {
			bus.Publish(events.Event{Type: events.TypeProcessor, Payload: st})
		})
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/processor", s.handleProcessor)
	mux.HandleFunc("POST /api/processor/load", s.handleProcessorLoad)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleSnapshot))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("PUT /api/sessions/{id}/audio", s.withSession(s.handleUploadAudio))
	mux.HandleFunc("DELETE /api/sessions/{id}/audio", s.withSession(s.handleRemoveAudio))

	mux.HandleFunc("POST /api/sessions/{id}/region", s.withSession(s.handleCreateRegion))
	mux.HandleFunc("PATCH /api/sessions/{id}/region", s.withSession(s.handleUpdateRegion))
	mux.HandleFunc("DELETE /api/sessions/{id}/region", s.withSession(s.handleClearRegion))

	mux.HandleFunc("PATCH /api/sessions/{id}/style", s.withSession(s.handlePatchStyle))
	mux.HandleFunc("PUT /api/sessions/{id}/background", s.withSession(s.handleUploadBackground))
	mux.HandleFunc("DELETE /api/sessions/{id}/background", s.withSession(s.handleClearBackground))
	mux.HandleFunc("GET /api/sessions/{id}/preview.png", s.withSession(s.handlePreview))

	mux.HandleFunc("POST /api/sessions/{id}/export/{kind}", s.withSession(s.handleExport))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.withSession(s.handleEvents))

	return s.logRequests(s.cors(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.store.Run(janitorCtx, s.opts.SweepInterval)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) cors(next http.Handler) http.Handler {
	if len(s.opts.AllowedOrigins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
