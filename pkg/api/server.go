// Package api serves the read-only query surface over the event store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/defillama"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 50

	defaultAddress         = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

type ITVLProvider interface {
	GetProtocolTVL(ctx context.Context, slug string) (*defillama.ProtocolTVL, error)
}

type ServerConfig struct {
	Address string
	ChainId config.ChainId
}

type Server struct {
	config  *ServerConfig
	store   chainPoller.IEventStore
	tvl     ITVLProvider
	metrics *metrics.IndexerMetrics
	logger  *zap.Logger

	httpServer *http.Server
}

type StatusResponse struct {
	ChainId            config.ChainId `json:"chainId"`
	LastProcessedBlock *uint64        `json:"lastProcessedBlock"`
	EventCount         uint64         `json:"eventCount"`
}

type TVLResponse struct {
	Protocol string  `json:"protocol"`
	TVL      *string `json:"tvl"`
	Date     int64   `json:"date,omitempty"`
	Source   string  `json:"source"`
}

// NewServer builds the router. tvl and m may be nil, in which case the TVL route always answers
// with the unavailable body and /metrics is not mounted.
func NewServer(cfg *ServerConfig, store chainPoller.IEventStore, tvl ITVLProvider, m *metrics.IndexerMetrics, logger *zap.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	s := &Server{
		config:  cfg,
		store:   store,
		tvl:     tvl,
		metrics: m,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(sr chi.Router) {
		sr.Get("/events/recent", s.handleRecentEvents)
		sr.Get("/status", s.handleStatus)
		sr.Get("/protocols/{slug}/tvl", s.handleProtocolTVL)
	})
	return r
}

// Start serves until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Sugar().Infow("Starting query server", zap.String("address", s.config.Address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("query server failed: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.store.ListRecentEvents(r.Context(), limit)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list recent events", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, errors.New("failed to list events"))
		return
	}
	if events == nil {
		events = []*chainPoller.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := StatusResponse{ChainId: s.config.ChainId}

	watermark, err := s.store.GetLastProcessedBlock(r.Context(), s.config.ChainId)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		// nothing ingested yet, lastProcessedBlock stays null
	case err != nil:
		s.logger.Sugar().Errorw("Failed to read watermark", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, errors.New("failed to read status"))
		return
	default:
		res.LastProcessedBlock = &watermark
	}

	count, err := s.store.CountEvents(r.Context())
	if err != nil {
		s.logger.Sugar().Errorw("Failed to count events", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, errors.New("failed to read status"))
		return
	}
	res.EventCount = count
	writeJSON(w, http.StatusOK, res)
}

// handleProtocolTVL always answers 200; an aggregator failure yields a null tvl.
func (s *Server) handleProtocolTVL(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	unavailable := TVLResponse{Protocol: slug, Source: "unavailable"}

	if s.tvl == nil {
		writeJSON(w, http.StatusOK, unavailable)
		return
	}
	tvl, err := s.tvl.GetProtocolTVL(r.Context(), slug)
	if err != nil {
		s.logger.Sugar().Warnw("TVL lookup failed", zap.String("slug", slug), zap.Error(err))
		writeJSON(w, http.StatusOK, unavailable)
		return
	}

	value := tvl.TVL.String()
	writeJSON(w, http.StatusOK, TVLResponse{
		Protocol: tvl.Protocol,
		TVL:      &value,
		Date:     tvl.Date,
		Source:   "defillama",
	})
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRecentLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
