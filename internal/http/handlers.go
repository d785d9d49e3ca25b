package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"vet/internal/archive"
	applog "vet/internal/log"
)

type appMetrics struct {
	uptime        time.Time
	syncRequests  int64
	archivedItems int64
	syncFailures  int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// syncResponse is the acknowledgement the client reconciles against.
type syncResponse struct {
	Saved int              `json:"saved"`
	Items []archive.Record `json:"items"`
}

// handleSync archives a pushed batch and echoes the stored items.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	atomic.AddInt64(&s.appMetrics.syncRequests, 1)

	items, err := ParseSyncPayload(w, r, s.maxPayload)
	switch {
	case errors.Is(err, archive.ErrNoPayload):
		BadRequestError("No payload").Write(w)
		return
	case errors.Is(err, ErrPayloadTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "Payload too large").Write(w)
		return
	case err != nil:
		logger.WarnContext(ctx, "Rejected sync payload", applog.FieldError, err.Error())
		BadRequestError("Invalid payload").Write(w)
		return
	}

	records, err := s.archive.Ingest(ctx, items)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.syncFailures, 1)
		s.structured.LogError(ctx, "Failed to archive synced expenses", err, applog.OpArchive,
			applog.NewFields().WithCount(len(items)))
		InternalServerError("Failed to save").Write(w)
		return
	}

	atomic.AddInt64(&s.listGeneration, 1)
	s.listCache.Purge()
	atomic.AddInt64(&s.appMetrics.archivedItems, int64(len(records)))
	s.structured.LogArchived(ctx, len(records))

	NewJSONResponse().
		Body(syncResponse{Saved: len(records), Items: records}).
		Write(w)
}

const expensesCacheKey = "expenses"

// handleExpenses returns the whole archive.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if body, ok := s.listCache.Get(expensesCacheKey); ok {
		NewJSONResponse().RawBody(body).Write(w)
		return
	}

	gen := atomic.LoadInt64(&s.listGeneration)
	records, err := s.archive.List()
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to read archive", err, applog.OpList, nil)
		InternalServerError("Failed to read data").Write(w)
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to encode archive", err, applog.OpList, nil)
		InternalServerError("Failed to read data").Write(w)
		return
	}
	// a batch archived while reading makes this body stale
	if atomic.LoadInt64(&s.listGeneration) == gen {
		s.listCache.Set(expensesCacheKey, body)
	}
	NewJSONResponse().RawBody(body).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]bool{"ok": true}).Write(w)
}

// handleMetrics provides request and archive counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	fmt.Fprintf(w, "# HELP vet_uptime_seconds Server uptime\n")
	fmt.Fprintf(w, "vet_uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
	fmt.Fprintf(w, "# HELP vet_http_requests_total HTTP requests served\n")
	fmt.Fprintf(w, "vet_http_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# HELP vet_http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "vet_http_response_time_avg_microseconds %d\n", traceMetrics.AverageResponseTime)
	fmt.Fprintf(w, "# HELP vet_sync_requests_total Sync requests received\n")
	fmt.Fprintf(w, "vet_sync_requests_total %d\n", atomic.LoadInt64(&s.appMetrics.syncRequests))
	fmt.Fprintf(w, "# HELP vet_sync_failures_total Sync requests that failed to archive\n")
	fmt.Fprintf(w, "vet_sync_failures_total %d\n", atomic.LoadInt64(&s.appMetrics.syncFailures))
	fmt.Fprintf(w, "# HELP vet_archived_items_total Expenses archived\n")
	fmt.Fprintf(w, "vet_archived_items_total %d\n", atomic.LoadInt64(&s.appMetrics.archivedItems))

	cs := s.listCache.Stats()
	fmt.Fprintf(w, "# HELP vet_list_cache_hits_total Archive listings served from cache\n")
	fmt.Fprintf(w, "vet_list_cache_hits_total %d\n", cs.Hits)
	fmt.Fprintf(w, "vet_list_cache_misses_total %d\n", cs.Misses)

	if s.rateLimiter != nil {
		rl := s.rateLimiter.GetMetrics()
		fmt.Fprintf(w, "# HELP vet_rate_limit_rejected_total Sync requests rejected by rate limiting\n")
		fmt.Fprintf(w, "vet_rate_limit_rejected_total %d\n", rl.Rejected)
		fmt.Fprintf(w, "vet_rate_limit_clients %d\n", rl.ClientCount)
	}
}
