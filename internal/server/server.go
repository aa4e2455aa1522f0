// Package server exposes stored fragments over HTTP.
//
//	PUT    /fragments/{key...}?ttl=30s   store a payload
//	GET    /fragments/{key...}?mode=ssr  render a stored payload
//	DELETE /fragments/{key...}           drop a payload and its memo entry
//	GET    /{user}/{repo}/readme         render the repository readme fragment
//	GET    /healthz, /metrics
//
// Rendering goes through a fresh error boundary per request, so a broken
// payload yields a fallback panel instead of a failed response. Requests
// that accept text/event-stream get the HTML as a datastar element patch.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/IvanBrykalov/fragcache/boundary"
	"github.com/IvanBrykalov/fragcache/cachekey"
	"github.com/IvanBrykalov/fragcache/resolver"
	"github.com/IvanBrykalov/fragcache/store"
)

// DefaultMaxPayloadBytes bounds PUT bodies when Options.MaxPayloadBytes is unset.
const DefaultMaxPayloadBytes = 1 << 20

// Options wires the handler.
type Options struct {
	Resolver *resolver.Resolver
	Store    store.Store
	// PayloadTTL is the freshness window for PUTs without ?ttl.
	PayloadTTL      time.Duration
	MaxPayloadBytes int64

	Logger   *slog.Logger
	Observer boundary.Observer
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Health reports readiness of external dependencies; nil means healthy.
	Health func(ctx context.Context) error
}

type handler struct {
	opt Options
	log *slog.Logger
}

// New returns the HTTP handler.
func New(opt Options) http.Handler {
	if opt.MaxPayloadBytes <= 0 {
		opt.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	h := &handler{opt: opt, log: opt.Logger}
	if h.log == nil {
		h.log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, h.requestLog, middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	if opt.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opt.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/fragments", func(r chi.Router) {
		r.Put("/*", h.putFragment)
		r.Get("/*", h.getFragment)
		r.Delete("/*", h.deleteFragment)
	})
	r.Get("/{user}/{repo}/readme", h.readme)
	return r
}

func (h *handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opt.Health != nil {
		if err := h.opt.Health(r.Context()); err != nil {
			h.log.WarnContext(r.Context(), "health check failed", "err", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func fragmentKey(r *http.Request) string { return chi.URLParam(r, "*") }

func (h *handler) putFragment(w http.ResponseWriter, r *http.Request) {
	key := fragmentKey(r)
	if key == "" {
		http.Error(w, "missing fragment key", http.StatusBadRequest)
		return
	}
	ttl := h.opt.PayloadTTL
	if s := r.URL.Query().Get("ttl"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
		ttl = d
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opt.MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 || !utf8.Valid(body) {
		http.Error(w, "payload must be non-empty UTF-8", http.StatusBadRequest)
		return
	}

	// A replaced payload gets a new memo key; drop the old one.
	if old, err := h.opt.Store.Get(r.Context(), key); err == nil && old != string(body) {
		h.opt.Resolver.Forget(old)
	}
	if err := h.opt.Store.Put(r.Context(), key, string(body), ttl); err != nil {
		h.log.ErrorContext(r.Context(), "store payload", "key", key, "err", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getFragment(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, fragmentKey(r))
}

func (h *handler) readme(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, cachekey.Readme(chi.URLParam(r, "user"), chi.URLParam(r, "repo")))
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, key string) {
	mode, err := resolver.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, "mode must be ssr or csr", http.StatusBadRequest)
		return
	}
	payload, err := h.opt.Store.Get(r.Context(), key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "fragment not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "load payload", "key", key, "err", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	b := boundary.New(boundary.Options{Mode: mode, Logger: h.log, Observer: h.opt.Observer})
	c := b.Wrap(h.opt.Resolver.Component(mode, payload, key))

	if isEventStream(r) {
		sse := datastar.NewSSE(w, r)
		if err := sse.PatchElementTempl(c,
			datastar.WithSelector("#"+fragmentID(key)),
			datastar.WithMode(datastar.ElementPatchModeInner),
		); err != nil {
			h.log.WarnContext(r.Context(), "patch fragment", "key", key, "err", err)
		}
		return
	}
	templ.Handler(c).ServeHTTP(w, r)
}

func (h *handler) deleteFragment(w http.ResponseWriter, r *http.Request) {
	key := fragmentKey(r)
	payload, err := h.opt.Store.Get(r.Context(), key)
	if err == nil {
		h.opt.Resolver.Forget(payload)
	}
	if err := h.opt.Store.Delete(r.Context(), key); err != nil {
		h.log.ErrorContext(r.Context(), "delete payload", "key", key, "err", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// fragmentID is the DOM id a fragment is patched into.
func fragmentID(key string) string { return "fragment-" + cachekey.Digest(key) }
