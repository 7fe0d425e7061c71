// Package httpapi is the HTTP front door (spec §2 component 7): request
// authentication, validation, and admission into the extraction pipeline.
package httpapi

import (
	"net/http"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
	"github.com/law-makers/hlsextract/internal/config"
	"github.com/law-makers/hlsextract/internal/extract"
	"github.com/law-makers/hlsextract/internal/ratelimit"
	"github.com/law-makers/hlsextract/internal/reqctx"
	"github.com/rs/zerolog/log"
)

// Server wires the extraction pipeline, the pool's health snapshot, and
// per-client rate limiting behind a plain http.Handler.
type Server struct {
	cfg      *config.Config
	pipeline *extract.Pipeline
	pool     *browser.Pool
	limiter  *ratelimit.ClientLimiter
	mux      *http.ServeMux
}

func NewServer(cfg *config.Config, pipeline *extract.Pipeline, pool *browser.Pool, limiter *ratelimit.ClientLimiter) *Server {
	s := &Server{cfg: cfg, pipeline: pipeline, pool: pool, limiter: limiter}

	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux

	return s
}

// Handler returns the request-logged handler to mount on an http.Server.
func (s *Server) Handler() http.Handler {
	return withRequestLogging(s.mux)
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithRequestContext(r.Context())
		rc := reqctx.GetRequestContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
		log.Debug().
			Str("request_id", rc.RequestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", clientIP(r)).
			Dur("duration", time.Since(rc.StartTime)).
			Msg("httpapi: request handled")
	})
}
