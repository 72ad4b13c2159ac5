package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/stickercut/internal/session"
	"github.com/forPelevin/stickercut/internal/types"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"sessions":    s.store.Len(),
		"subscribers": s.bus.Count(),
	})
}

type processorView struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func (s *Server) processorView() processorView {
	v := processorView{State: string(s.proc.State())}
	if err := s.proc.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func (s *Server) handleProcessor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.processorView())
}

// handleProcessorLoad retries a failed load. Loading is not tied to the
// request lifetime.
func (s *Server) handleProcessorLoad(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
	defer cancel()
	if err := s.proc.Load(ctx); err != nil {
		s.log.Warn("processor load failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, s.processorView())
		return
	}
	writeJSON(w, http.StatusOK, s.processorView())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Create()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("session created", zap.String("session", sess.ID()))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	// Open event streams of the session end here.
	s.bus.UnsubscribeSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.LoadAudio(r.Context(), name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRemoveAudio(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.RemoveAudio())
}

func (s *Server) handleCreateRegion(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var sel types.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := sess.CreateSelection(sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpdateRegion(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var sel types.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := sess.UpdateSelection(sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClearRegion(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.ClearSelection())
}

func (s *Server) handlePatchStyle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p session.StylePatch
	if err := decodeJSON(r, &p); err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := sess.SetStyle(p)
	if err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUploadBackground(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.SetBackgroundImage(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClearBackground(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.ClearBackgroundImage())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	png, err := sess.Preview()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	kind := types.ArtifactKind(r.PathValue("kind"))
	if kind != types.ArtifactAudio && kind != types.ArtifactVideo {
		writeStatus(w, http.StatusNotFound, fmt.Sprintf("unknown export kind %q", kind))
		return
	}

	// A started transcode runs to completion even if the client goes away.
	start := time.Now()
	out, err := sess.Export(context.WithoutCancel(r.Context()), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out.Skipped {
		s.writeError(w, r, errNothingToExport)
		return
	}
	s.log.Info("export ready",
		zap.String("session", sess.ID()),
		zap.String("kind", string(kind)),
		zap.String("file", out.FileName),
		zap.Int("bytes", len(out.Artifact.Data)),
		zap.Duration("took", time.Since(start)),
	)

	h := w.Header()
	h.Set("Content-Type", out.Artifact.ContentType())
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	h.Set("Content-Length", strconv.Itoa(len(out.Artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Artifact.Data)
}

// readUpload accepts a multipart "file" field or a raw body named by ?name=.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return "", nil, maxErr
			}
			return "", nil, fmt.Errorf("%w: %v", types.ErrInputRejected, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		return hdr.Filename, data, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r.Body); err != nil {
		return "", nil, err
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}
	return name, buf.Bytes(), nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
