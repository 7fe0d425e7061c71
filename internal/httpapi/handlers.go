package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
	"github.com/law-makers/hlsextract/internal/config"
	"github.com/law-makers/hlsextract/internal/extract"
	"github.com/law-makers/hlsextract/internal/reqctx"
	urlutil "github.com/law-makers/hlsextract/internal/utils/url"
	"github.com/law-makers/hlsextract/pkg/models"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.cfg.Secret == "" {
		writeJSONError(w, http.StatusInternalServerError, "extraction secret not configured")
		return
	}
	if !checkBearer(r, s.cfg.Secret) {
		writeJSONError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}

	ip := clientIP(r)
	if s.limiter != nil && !s.limiter.Allow(ip) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := urlutil.ValidateURL(req.EmbedURL); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid embed URL: "+err.Error())
		return
	}
	if err := urlutil.ValidateNotSSRF(req.EmbedURL); err != nil {
		writeJSONError(w, http.StatusBadRequest, "embed URL is blocked: "+err.Error())
		return
	}

	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeout := time.Duration(req.Timeout) * time.Millisecond
	if req.Timeout <= 0 {
		timeout = config.DefaultExtractTimeout
	}

	extractCtx, cancel := context.WithTimeout(r.Context(), timeout+5*time.Second)
	defer cancel()

	result, err := s.pipeline.Extract(extractCtx, extract.Request{
		EmbedURL: req.EmbedURL,
		Timeout:  timeout,
		Priority: int(priority),
	})
	if err != nil {
		s.writeExtractionError(w, r.Context(), req.EmbedURL, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ExtractResponse{
		Success: true,
		URL:     req.EmbedURL,
		M3U8URL: result.ManifestURL,
		Headers: result.Headers,
		Cookies: result.Cookies,
	})
}

// writeExtractionError maps a pipeline failure to an HTTP status (spec §6
// "HTTP status mapping"): a plain timeout still answers 200 with
// success=false, everything else that isn't recoverable answers 503.
func (s *Server) writeExtractionError(w http.ResponseWriter, ctx context.Context, embedURL string, err error) {
	if errors.Is(err, extract.ErrTimeout) {
		writeJSON(w, http.StatusOK, models.ExtractResponse{
			Success: false,
			URL:     embedURL,
			Error:   "m3u8 extraction failed: no manifest request sighted before timeout",
		})
		return
	}

	var circuitErr *browser.CircuitOpenError
	if errors.As(err, &circuitErr) {
		writeJSONError(w, http.StatusServiceUnavailable, circuitErr.Error())
		return
	}

	var extractionErr *extract.ExtractionError
	if errors.As(err, &extractionErr) {
		writeJSONError(w, http.StatusServiceUnavailable, extractionErr.Error())
		return
	}

	wrapped := reqctx.NewRequestError(ctx, err)
	log.Error().Err(wrapped).Str("embedUrl", embedURL).Msg("extract: unclassified failure")
	writeJSONError(w, http.StatusServiceUnavailable, "extraction failed")
}
