// Package server serves stored files over HTTP. Only records with public
// access are reachable.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/database"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/pkg/models"
	"go.uber.org/zap"
)

type Records interface {
	GetByFileName(ctx context.Context, name string) (*models.File, error)
}

type Files interface {
	Open(name string) (*os.File, error)
}

type fileHandler struct {
	records Records
	files   Files
}

func NewHandler(records Records, files Files, lg *zap.Logger) http.Handler {
	h := &fileHandler{records: records, files: files}

	mux := chi.NewRouter()
	mux.Use(chimiddleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Range"},
		MaxAge:         86400,
	}))
	mux.Use(chimiddleware.RealIP)
	mux.Use(InjectLogger(lg))
	mux.Use(RequestLogger(lg, "/metrics", "/healthz"))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/{name}", h.serveFile)
	mux.Head("/{name}", h.serveFile)
	return mux
}

func New(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// pathName returns the decoded {name} parameter. chi matches on the raw
// path when the URL carries one.
func pathName(r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, true
	}
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return "", false
	}
	return decoded, true
}

func (h *fileHandler) serveFile(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	name, ok := pathName(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	rec, err := h.records.GetByFileName(r.Context(), name)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !rec.PublicAccess) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("lookup file", zap.String("name", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	f, err := h.files.Open(rec.FileName)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("open file", zap.String("name", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		logger.Error("stat file", zap.String("name", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": rec.FileName}))
	http.ServeContent(w, r, rec.FileName, stat.ModTime(), f)
}
