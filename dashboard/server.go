// Package dashboard serves the browser UI: static assets, SSE streams
// for incremental chart updates, and the JSON API.
package dashboard

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/botwatch/internal/chart"
	"github.com/vadiminshakov/botwatch/internal/domain"
	"github.com/vadiminshakov/botwatch/internal/refprice"
	"github.com/vadiminshakov/botwatch/internal/view"
	"github.com/vadiminshakov/botwatch/pkg/indicators"
	"github.com/vadiminshakov/botwatch/pkg/retrier"
)

const snapshotPollInterval = 2 * time.Second

// latestEventsLimit caps the cross-account event feed on the summary.
const latestEventsLimit = 50

// StateSource is the poller's read model.
type StateSource interface {
	Latest() *domain.StateSnapshot
	LastError() error
}

// Commander forwards control commands to the bot backend.
type Commander interface {
	SendCommand(ctx context.Context, cmd domain.Command) (*domain.CommandReceipt, error)
}

// Config collects the server's dependencies and knobs.
type Config struct {
	Addr          string
	StaticDir     string
	AccountOrder  []string
	Thresholds    view.Thresholds
	OverlayPeriod int
}

// Server exposes HTTP endpoints serving the HTML UI, SSE streams and
// the JSON API.
type Server struct {
	addr          string
	staticDir     string
	order         []string
	thresholds    view.Thresholds
	overlayPeriod int

	state     StateSource
	book      *chart.Book
	commander Commander
	checker   *refprice.Checker

	retrier  *retrier.Retrier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a new web server instance. checker may be nil when
// no reference price platform is configured.
func NewServer(cfg Config, state StateSource, book *chart.Book, commander Commander, checker *refprice.Checker, logger *zap.Logger) *Server {
	if cfg.StaticDir == "" {
		cfg.StaticDir = "dashboard/static"
	}
	if cfg.OverlayPeriod <= 0 {
		cfg.OverlayPeriod = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:          cfg.Addr,
		staticDir:     cfg.StaticDir,
		order:         cfg.AccountOrder,
		thresholds:    cfg.Thresholds,
		overlayPeriod: cfg.OverlayPeriod,
		state:         state,
		book:          book,
		commander:     commander,
		checker:       checker,
		retrier:       retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(200*time.Millisecond)),
		upgrader:      websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:        logger,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", s.staticHandler())
	mux.HandleFunc("/equity/stream", s.handleEquityStream)
	mux.HandleFunc("/events/stream", s.handleEventStream)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/live", s.handleLive)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	// HTTP server on port 80 for ACME challenges and HTTP->HTTPS redirects.
	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	// shutdown both servers when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	// start HTTP (ACME) server in the background.
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleEquityStream streams one account's equity curve as SSE. Every
// point carries its stable index as the event id, so a reconnecting
// client resumes via Last-Event-ID and never re-renders what it
// already drew. The "g" field of a point bumps when the backend
// restarted; the client rebuilds the series only then.
func (s *Server) handleEquityStream(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account query parameter is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setSSEHeaders(w)

	// send a comment heartbeat every 20s so proxies keep connection
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(s.logger, r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	isFirstLoad := lastIndex == 0
	sendPoints := func() error {
		var records []chart.Record
		if isFirstLoad {
			// initial page load gets the thinned backfill; everything
			// after that is exact incremental appends
			records = s.book.Backfill(account)
			isFirstLoad = false
		} else {
			records = s.book.PointsAfter(account, lastIndex)
		}

		for _, record := range records {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: equity\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendPoints(); err != nil {
		s.logger.Warn("equity stream initial load", zap.String("account", account), zap.Error(err))
		return
	}

	// after initial load, if no points were sent, let client know so it
	// can update UI from 'loading' to 'no data yet' state.
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendPoints(); err != nil {
				s.logger.Warn("equity stream poll err", zap.String("account", account), zap.Error(err))
			}
		}
	}
}

// handleEventStream streams trade events as SSE, resuming from the
// backend-assigned event id.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setSSEHeaders(w)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastID := parseLastEventID(s.logger, r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendEvents := func() error {
		snapshot := s.state.Latest()
		if snapshot == nil {
			return nil
		}

		fresh := make([]domain.TradeEvent, 0, len(snapshot.Events))
		for _, ev := range snapshot.Events {
			if ev.ID > lastID {
				ev.Kind = domain.NormalizeEventKind(ev.Kind)
				fresh = append(fresh, ev)
			}
		}
		sortEventsAsc(fresh)

		for _, ev := range fresh {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", ev.ID)
			fmt.Fprintf(w, "event: trade\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastID = ev.ID
		}
		return nil
	}

	if err := sendEvents(); err != nil {
		s.logger.Warn("event stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.logger.Warn("event stream poll err", zap.Error(err))
			}
		}
	}
}

type summaryResponse struct {
	Timestamp    time.Time                       `json:"ts"`
	Status       domain.BotStatus                `json:"status"`
	Pair         string                          `json:"pair"`
	Overall      view.HealthLevel                `json:"overall"`
	Accounts     []view.AccountSummary           `json:"accounts"`
	Health       []view.HealthStatus             `json:"health"`
	Events       []view.EventGroup               `json:"events"`
	LatestEvents []domain.TradeEvent             `json:"latest_events,omitempty"`
	Overlays     map[string][]indicators.Overlay `json:"overlays,omitempty"`
	MaxDrawdown  map[string]decimal.Decimal      `json:"max_drawdown,omitempty"`
	Drift        []refprice.FeedDrift            `json:"drift,omitempty"`
	LastError    string                          `json:"last_error,omitempty"`
}

// handleSummary returns everything the page needs besides the chart
// points: account summaries, grouped events, health, overlays and the
// reference price drift.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	snapshot := s.state.Latest()
	statuses := view.HealthFor(snapshot, now, s.thresholds)

	resp := summaryResponse{
		Overall: view.Overall(statuses),
		Health:  statuses,
	}
	if err := s.state.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	if snapshot != nil {
		resp.Timestamp = snapshot.Timestamp
		resp.Status = snapshot.Status
		resp.Pair = snapshot.Pair
		resp.Accounts = view.Summaries(snapshot, s.order)
		resp.Events = view.GroupEvents(snapshot.Events, s.order)
		resp.LatestEvents = view.LatestEvents(snapshot.Events, latestEventsLimit)

		resp.Overlays = make(map[string][]indicators.Overlay)
		resp.MaxDrawdown = make(map[string]decimal.Decimal)
		for _, account := range s.book.Accounts() {
			values := s.book.Values(account)
			resp.MaxDrawdown[account] = indicators.MaxDrawdown(values)
			if len(values) >= s.overlayPeriod {
				overlays, err := indicators.EquityOverlays(values, s.overlayPeriod)
				if err != nil {
					s.logger.Warn("overlay computation failed", zap.String("account", account), zap.Error(err))
					continue
				}
				resp.Overlays[account] = overlays
			}
		}

		if s.checker != nil {
			drift, err := s.checker.Compare(r.Context(), snapshot)
			if err != nil {
				s.logger.Warn("reference price check failed", zap.Error(err))
			} else {
				resp.Drift = drift
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type commandRequest struct {
	Name    string `json:"name"`
	Account string `json:"account,omitempty"`
}

// handleCommand validates a control command and forwards it to the
// backend. Commands carry a fresh UUID, so the forward is retried on
// transient backend errors without risk of double application.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid command payload", http.StatusBadRequest)
		return
	}

	cmd, err := domain.NewCommand(domain.CommandName(req.Name), req.Account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// a command targeting one account must name one the bot reports
	if req.Account != "" {
		if snapshot := s.state.Latest(); snapshot != nil {
			if _, ok := snapshot.Account(req.Account); !ok {
				http.Error(w, "unknown account: "+req.Account, http.StatusBadRequest)
				return
			}
		}
	}

	receipt, err := retrier.DoWithData(s.retrier, r.Context(), func(ctx context.Context) (*domain.CommandReceipt, error) {
		return s.commander.SendCommand(ctx, cmd)
	})
	if err != nil {
		s.logger.Error("command forward failed", zap.String("command", req.Name), zap.Error(err))
		http.Error(w, "backend rejected command", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleLive mirrors the summary payload over a websocket for clients
// that prefer push over polling the JSON API.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(snapshotPollInterval)
	defer ticker.Stop()

	// drain client frames so close handshakes are noticed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snapshot := s.state.Latest()
			statuses := view.HealthFor(snapshot, time.Now(), s.thresholds)
			resp := summaryResponse{
				Overall: view.Overall(statuses),
				Health:  statuses,
			}
			if snapshot != nil {
				resp.Timestamp = snapshot.Timestamp
				resp.Status = snapshot.Status
				resp.Pair = snapshot.Pair
				resp.Accounts = view.Summaries(snapshot, s.order)
			}

			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}
}

func (s *Server) staticHandler() http.Handler {
	fileServer := http.StripPrefix("/", http.FileServer(http.Dir(s.staticDir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetPath := r.URL.Path
		if assetPath == "" || assetPath == "/" {
			assetPath = "/index.html"
		}

		if !shouldCompress(assetPath) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fileServer.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		fileServer.ServeHTTP(gzw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

func shouldCompress(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return true
	}
	switch ext {
	case ".html", ".css", ".js", ".json", ".svg", ".txt":
		return true
	default:
		return false
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sortEventsAsc(events []domain.TradeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].ID < events[j].ID
	})
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(logger *zap.Logger, headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		logger.Warn("invalid last event id", zap.String("value", idStr), zap.Error(err))
		return 0
	}
	return id
}
