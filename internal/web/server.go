package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/extract"
	"github.com/quotedesk/quotedesk/internal/history"
	"github.com/quotedesk/quotedesk/internal/whatsapp"
)

const (
	defaultRateWindow = time.Minute
	maxWebhookBody    = 1 << 20
)

// RateLimiter is a per-key sliding window limiter for webhook ingress.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. Allow keeps working after Stop; only the
// background pruning ends.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	n := 0
	for _, t := range times {
		if t.After(windowStart) {
			times[n] = t
			n++
		}
	}
	return times[:n]
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.filterRecent(rl.requests[key], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

// Server is the webhook listener. Inbound notifications are acked
// immediately and handed to the queue; processing happens in the workers.
type Server struct {
	config       *config.Config
	historyStore *history.Store
	queue        *Queue
	rateLimiter  *RateLimiter
	httpServer   *http.Server
}

func NewServer(cfg *config.Config, historyStore *history.Store, queue *Queue) *Server {
	return &Server{
		config:       cfg,
		historyStore: historyStore,
		queue:        queue,
		rateLimiter:  NewRateLimiter(cfg.Options.RateLimit, defaultRateWindow),
	}
}

func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("webhook listening on :%d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/webhook", s.handleVerify)
	r.Post("/webhook", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/quotes", s.handleAPIQuotes)
		r.Get("/stats", s.handleAPIStats)
		r.Post("/parse", s.handleAPIParse)
	})

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"queued": s.queue.Len(),
	})
}

// handleVerify answers the Cloud API subscription handshake: echo the
// challenge when the verify token matches.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != s.config.Server.VerifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// handleWebhook acks every notification with 200. The Cloud API retries
// non-200 responses and a retry storm helps nobody: malformed payloads,
// full queues, and unparseable messages are all handled (or dropped) after
// the ack.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimiter.Allow(clientIP(r)) {
		// Still a 200: the limiter protects the workers, not the ack.
		s.writeAck(w, 0, "rate limited")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeAck(w, 0, "unreadable body")
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("webhook: malformed payload: %v", err)
		s.writeAck(w, 0, "malformed payload")
		return
	}

	msgs := payload.TextMessages()
	if len(msgs) == 0 {
		// A bare {"text": "..."} body works too, for testing without the
		// full Cloud API envelope. No sender, so no reply goes out.
		var direct struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &direct); err == nil && strings.TrimSpace(direct.Text) != "" {
			msgs = []whatsapp.IncomingText{{Body: direct.Text}}
		}
	}

	accepted := 0
	for _, msg := range msgs {
		if _, ok := s.queue.Enqueue(msg); !ok {
			log.Printf("webhook: queue full, dropping message %s", msg.MessageID)
			continue
		}
		accepted++
	}
	s.writeAck(w, accepted, "")
}

func (s *Server) writeAck(w http.ResponseWriter, accepted int, note string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := map[string]any{"accepted": accepted}
	if note != "" {
		resp["note"] = note
	}
	json.NewEncoder(w).Encode(resp)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type quoteView struct {
	ID           int64                `json:"id"`
	MessageID    string               `json:"message_id"`
	Sender       string               `json:"sender"`
	Quote        extract.QuoteRequest `json:"quote"`
	Extractor    string               `json:"extractor"`
	Status       string               `json:"status"`
	Error        string               `json:"error,omitempty"`
	ArtifactPath string               `json:"artifact_path,omitempty"`
	ProcessedAt  time.Time            `json:"processed_at"`
}

func (s *Server) handleAPIQuotes(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var records []history.Record
	var err error
	if sender := r.URL.Query().Get("sender"); sender != "" {
		records, err = s.historyStore.GetBySender(sender, limit)
	} else {
		records, err = s.historyStore.GetRecent(limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]quoteView, 0, len(records))
	for _, rec := range records {
		views = append(views, quoteView{
			ID:           rec.ID,
			MessageID:    rec.MessageID,
			Sender:       rec.Sender,
			Quote:        rec.Quote,
			Extractor:    string(rec.Extractor),
			Status:       string(rec.Status),
			Error:        rec.Error,
			ArtifactPath: rec.ArtifactPath,
			ProcessedAt:  rec.ProcessedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	total, sent, failed, err := s.historyStore.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	monthSent, monthFailed, err := s.historyStore.GetMonthlyStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":        total,
		"sent":         sent,
		"failed":       failed,
		"month_sent":   monthSent,
		"month_failed": monthFailed,
		"queued":       s.queue.Len(),
	})
}

// handleAPIParse runs extraction synchronously without side effects. Useful
// for checking what a message would produce before sending it for real.
func (s *Server) handleAPIParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	q, err := extract.Extract(req.Text)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(q)
}
