// Package api exposes the daemon's HTTP surface: patch submission,
// validation, graph and report reads, webhook management, and metrics.
package api

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/reports"
	"github.com/rmax-ai/netlord/pkg/rules"
	"github.com/rmax-ai/netlord/pkg/store"
	"github.com/rmax-ai/netlord/pkg/validate"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// Interfaces for dependencies to enable mocking

// ValidatorInterface is the patch-then-check pipeline the server drives.
type ValidatorInterface interface {
	ApplyAndValidate(ctx context.Context, base int64, batch *patch.Batch, ruleSet string) (*validate.Result, error)
	ValidateOnly(ctx context.Context, version int64, ruleSet string) (*rules.Report, error)
	Store() *graph.Store
	Engine() *rules.Engine
}

// ArchiveInterface is the slice of the SQLite archive the server touches.
type ArchiveInterface interface {
	SaveVersion(ctx context.Context, rec *store.VersionRecord) error
	SaveReport(ctx context.Context, rec *store.ReportRecord) error
	ListVersions(ctx context.Context, limit int) ([]*store.VersionRecord, error)
	GetVersion(ctx context.Context, version int64) (*store.VersionRecord, error)
	GetLatestReport(ctx context.Context, ruleSet string) (*store.ReportRecord, error)
	PruneVersions(ctx context.Context, keep int) (int64, error)

	// Webhooks
	RegisterWebhook(ctx context.Context, cfg *store.WebhookConfig) error
	ListWebhooks(ctx context.Context) ([]*store.WebhookConfig, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// ElectionInterface gates mutations to the elected writer.
type ElectionInterface interface {
	IsLeader() bool
}

// Server encapsulates the HTTP API server
type Server struct {
	validator ValidatorInterface
	archive   ArchiveInterface
	server    *http.Server
	retain    int

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string

	// Optional bearer token guarding mutations; empty disables auth.
	authTokenHash string

	// Cap on rule evaluation per request; zero means the request context.
	validateTimeout time.Duration

	// High Availability
	election ElectionInterface
}

// NewServer creates a new API server instance.
func NewServer(validator ValidatorInterface, archive ArchiveInterface, addr string, retain int) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s := &Server{
		validator: validator,
		archive:   archive,
		retain:    retain,
	}

	mux.HandleFunc("/v1/patch", s.withLeaderCheck(s.withAuth(s.handlePatch)))
	mux.HandleFunc("/v1/netlist", s.withLeaderCheck(s.withAuth(s.handleNetlist)))
	mux.HandleFunc("/v1/validate", s.handleValidate)
	mux.HandleFunc("/v1/graph", s.handleGraph)
	mux.HandleFunc("/v1/versions", s.handleVersions)
	mux.HandleFunc("/v1/report", s.handleReport)
	mux.HandleFunc("/v1/rulesets", s.handleRuleSets)
	mux.HandleFunc("/v1/webhooks", s.withLeaderCheck(s.withAuth(s.handleWebhooks)))
	mux.HandleFunc("/v1/webhooks/", s.withLeaderCheck(s.withAuth(s.handleWebhooks)))

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := withLogging(withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = ":8090"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// SetAuthToken guards mutating endpoints with a bearer token.
func (s *Server) SetAuthToken(token string) {
	if token == "" {
		s.authTokenHash = ""
		return
	}
	s.authTokenHash = hashToken(token)
}

// SetValidateTimeout caps rule evaluation per request.
func (s *Server) SetValidateTimeout(d time.Duration) {
	s.validateTimeout = d
}

// SetElection sets the election manager for HA routing.
func (s *Server) SetElection(e ElectionInterface) {
	s.election = e
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		fmt.Printf(`{"level":"info","msg":"server_starting_tls","addr":"%s"}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != http.ErrServerClosed {
			return err
		}
	} else {
		fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

// handlePatch applies a patch batch and validates the result.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.Batch == nil {
		http.Error(w, `{"error":"missing_batch"}`, http.StatusBadRequest)
		return
	}

	s.applyAndRespond(w, r, req.Base, req.Batch, req.RuleSet)
}

// handleNetlist imports a netlist document as one atomic batch.
func (s *Server) handleNetlist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req NetlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.Netlist == nil {
		http.Error(w, `{"error":"missing_netlist"}`, http.StatusBadRequest)
		return
	}

	batch, err := req.Netlist.ToPatch()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_netlist", err)
		return
	}

	s.applyAndRespond(w, r, req.Base, batch, req.RuleSet)
}

// applyAndRespond runs the pipeline, archives the outcome, and writes the
// shared response shape of the mutation endpoints.
func (s *Server) applyAndRespond(w http.ResponseWriter, r *http.Request, base int64, batch *patch.Batch, ruleSet string) {
	if ruleSet == "" {
		ruleSet = rules.SetAll
	}

	ctx := r.Context()
	if s.validateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.validateTimeout)
		defer cancel()
	}

	result, err := s.validator.ApplyAndValidate(ctx, base, batch, ruleSet)
	if result == nil && err != nil {
		writePipelineError(w, r, err)
		return
	}

	resp := PatchResponse{
		Version: result.Version.N,
		Report:  result.Report,
		Inverse: result.Inverse,
	}
	var unavailable *validate.ValidationUnavailableError
	if errors.As(err, &unavailable) {
		resp.ValidationUnavailable = true
		resp.ValidationError = unavailable.Cause.Error()
	}

	s.archiveResult(r.Context(), batch.Namespace, result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// archiveResult persists the committed version and its report, pruning old
// versions per the retention policy. Archive failures are logged, never
// surfaced: durability is decoupled from the commit.
func (s *Server) archiveResult(ctx context.Context, namespace string, result *validate.Result) {
	if s.archive == nil {
		return
	}

	payload, err := json.Marshal(result.Version)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_version","error":"%v"}`+"\n", err)
		return
	}
	rec := &store.VersionRecord{
		Version:     result.Version.N,
		TsCommitted: time.Now().UTC(),
		Namespace:   namespace,
		NodeCount:   len(result.Version.Nodes),
		EdgeCount:   len(result.Version.Edges),
		Payload:     payload,
	}
	if err := s.archive.SaveVersion(ctx, rec); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_archive_version","version":%d,"error":"%v"}`+"\n", result.Version.N, err)
	}
	if s.retain > 0 {
		if _, err := s.archive.PruneVersions(ctx, s.retain); err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_prune_versions","error":"%v"}`+"\n", err)
		}
	}

	if result.Report == nil {
		return
	}
	reportPayload, err := json.Marshal(result.Report)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_report","error":"%v"}`+"\n", err)
		return
	}
	reportRec := &store.ReportRecord{
		Version: result.Report.Version,
		RuleSet: result.Report.RuleSet,
		TsRun:   time.Now().UTC(),
		Valid:   result.Report.Valid,
		Payload: reportPayload,
	}
	if err := s.archive.SaveReport(ctx, reportRec); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_archive_report","version":%d,"error":"%v"}`+"\n", result.Report.Version, err)
	}
}

// handleValidate re-runs a rule set against an existing version, no mutation.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.RuleSet == "" {
		req.RuleSet = rules.SetAll
	}
	version := req.Version
	if version == 0 {
		version = s.validator.Store().Latest().N
	}

	ctx := r.Context()
	if s.validateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.validateTimeout)
		defer cancel()
	}

	report, err := s.validator.ValidateOnly(ctx, version, req.RuleSet)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	if s.archive != nil {
		if payload, merr := json.Marshal(report); merr == nil {
			rec := &store.ReportRecord{
				Version: report.Version,
				RuleSet: report.RuleSet,
				TsRun:   time.Now().UTC(),
				Valid:   report.Valid,
				Payload: payload,
			}
			if err := s.archive.SaveReport(r.Context(), rec); err != nil {
				fmt.Printf(`{"level":"error","msg":"failed_to_archive_report","version":%d,"error":"%v"}`+"\n", report.Version, err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// handleGraph returns a graph version (latest by default).
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	gs := s.validator.Store()
	version := gs.Latest()

	if vq := r.URL.Query().Get("version"); vq != "" {
		n, err := strconv.ParseInt(vq, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid_version"}`, http.StatusBadRequest)
			return
		}
		version, err = gs.Get(n)
		if err != nil {
			// In-memory window may have pruned it; the archive keeps more.
			if s.archive != nil {
				if rec, aerr := s.archive.GetVersion(r.Context(), n); aerr == nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusOK)
					w.Write(rec.Payload)
					return
				}
			}
			http.Error(w, `{"error":"version_not_found"}`, http.StatusNotFound)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(version); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_graph","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// handleVersions lists archived version metadata, newest first.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, `{"error":"archive_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	recs, err := s.archive.ListVersions(r.Context(), limit)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_list_versions","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_versions","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// handleReport serves the latest archived report as JSON, or exports CSV via
// the report generators when format=csv.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, `{"error":"archive_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	if q.Get("format") == "csv" {
		reportType := reports.ReportType(q.Get("type"))
		if reportType == "" {
			reportType = reports.ReportTypeViolations
		}
		params := reports.ReportParams{
			RuleSet:     q.Get("rule_set"),
			MinSeverity: q.Get("min_severity"),
		}
		if l := q.Get("limit"); l != "" {
			if val, err := strconv.Atoi(l); err == nil && val > 0 {
				params.Limit = val
			}
		}

		gen, err := reports.NewReportGenerator(reportType, s.archive)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_report_type", err)
			return
		}
		reader, err := gen.Generate(r.Context(), params)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"report_not_found"}`, http.StatusNotFound)
				return
			}
			fmt.Printf(`{"level":"error","msg":"failed_to_generate_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
			http.Error(w, `{"error":"report_generation_failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		filename := fmt.Sprintf("report_%s_%d.csv", reportType, time.Now().Unix())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		if _, err := io.Copy(w, reader); err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_stream_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		}
		return
	}

	rec, err := s.archive.GetLatestReport(r.Context(), q.Get("rule_set"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"report_not_found"}`, http.StatusNotFound)
			return
		}
		fmt.Printf(`{"level":"error","msg":"failed_to_get_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Payload)
}

// handleRuleSets lists the configured rule set names.
func (s *Server) handleRuleSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.validator.Engine().RuleSets()); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_rulesets","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writePipelineError maps pipeline failures onto HTTP status codes: stale
// base conflicts are 409, malformed or invariant-breaking batches 422,
// missing versions 404, unknown rule sets 400.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var stale *graph.StaleBaseError
	if errors.As(err, &stale) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "stale_base",
			"base":   stale.Base,
			"latest": stale.Latest,
		})
		return
	}

	var schema *patch.SchemaError
	if errors.As(err, &schema) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "invalid_batch",
			"issues": schema.Issues,
		})
		return
	}

	var structural *graph.StructuralError
	if errors.As(err, &structural) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error":    "structural_error",
			"op_index": structural.OpIndex,
			"reason":   structural.Reason,
		})
		return
	}

	var unknownSet *rules.UnknownRuleSetError
	if errors.As(err, &unknownSet) {
		writeError(w, http.StatusBadRequest, "unknown_rule_set", err)
		return
	}

	if errors.Is(err, graph.ErrVersionNotFound) {
		http.Error(w, `{"error":"version_not_found"}`, http.StatusNotFound)
		return
	}

	fmt.Printf(`{"level":"error","msg":"pipeline_error","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"details": err.Error(),
	})
}

// Middleware: Auth
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authTokenHash == "" {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error":"unauthorized","reason":"missing_token"}`, http.StatusUnauthorized)
			return
		}

		const prefix = "Bearer "
		if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
			http.Error(w, `{"error":"unauthorized","reason":"invalid_token_format"}`, http.StatusUnauthorized)
			return
		}

		hash := hashToken(authHeader[len(prefix):])
		if subtle.ConstantTimeCompare([]byte(hash), []byte(s.authTokenHash)) != 1 {
			http.Error(w, `{"error":"unauthorized","reason":"invalid_token"}`, http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()) // Fallback
	}
	return hex.EncodeToString(b)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// Middleware: Leader Check (rejects writes on followers)
func (s *Server) withLeaderCheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip check if no election configured (standalone mode)
		if s.election == nil {
			next(w, r)
			return
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch || r.Method == http.MethodDelete {
			if !s.election.IsLeader() {
				http.Error(w, `{"error":"service_unavailable","reason":"not_leader"}`, http.StatusServiceUnavailable)
				return
			}
		}

		next(w, r)
	}
}
