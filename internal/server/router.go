package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vkarpovich/shopglance/internal/marketplace"
)

// maxPageBytes bounds the request body on /augment. Catalog pages are large
// but not unbounded.
const maxPageBytes = 8 << 20

// Augmenter runs one scan pass over a raw HTML document and returns it with
// price badges injected.
type Augmenter interface {
	AugmentPage(ctx context.Context, rawHTML string) (string, error)
}

// PriceLookup resolves a product name to a marketplace offer, cache-first.
type PriceLookup interface {
	GetPriceData(ctx context.Context, name string) (*marketplace.Offer, error)
}

// HandlerConfig wires the routing facade to the pipeline components.
type HandlerConfig struct {
	Augmenter Augmenter
	Lookup    PriceLookup
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

type lookupResponse struct {
	Found bool               `json:"found"`
	Offer *marketplace.Offer `json:"offer,omitempty"`
}

// NewHandler returns the HTTP surface: POST /augment, GET /lookup,
// GET /healthz, and optionally GET /metrics. Routing stays here so the
// pipeline never sees URLs.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "http"))

	mux := http.NewServeMux()
	mux.HandleFunc("/augment", func(w http.ResponseWriter, r *http.Request) {
		serveAugment(w, r, cfg.Augmenter, logger)
	})
	mux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		serveLookup(w, r, cfg.Lookup, logger)
	})
	mux.HandleFunc("/healthz", serveHealth)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	return mux
}

func serveAugment(w http.ResponseWriter, r *http.Request, augmenter Augmenter, logger *slog.Logger) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "augment requires POST")
		return
	}
	if augmenter == nil {
		writeError(w, http.StatusServiceUnavailable, "augmenter unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(body) > maxPageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "page exceeds size limit")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty page body")
		return
	}

	augmented, err := augmenter.AugmentPage(r.Context(), string(body))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "augmentation cancelled")
			return
		}
		logger.Error("page augmentation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "page augmentation failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, augmented)
}

func serveLookup(w http.ResponseWriter, r *http.Request, lookup PriceLookup, logger *slog.Logger) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "lookup requires GET")
		return
	}
	if lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "lookup unavailable")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "query parameter \"name\" required")
		return
	}

	offer, err := lookup.GetPriceData(r.Context(), name)
	if err != nil {
		logger.Warn("lookup failed", slog.String("product", name), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "marketplace lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, lookupResponse{Found: offer != nil, Offer: offer})
}

func serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "health requires GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
