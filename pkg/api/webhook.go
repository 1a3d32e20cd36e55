package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rmax-ai/netlord/pkg/store"
)

// handleWebhooks manages webhook registration for report notifications.
func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createWebhook(w, r)
	case http.MethodGet:
		s.listWebhooks(w, r)
	case http.MethodDelete:
		s.deleteWebhook(w, r)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		http.Error(w, `{"error":"missing_url"}`, http.StatusBadRequest)
		return
	}

	// Auto-generate ID and Secret
	webhookID := "wh_" + fmt.Sprintf("%d", time.Now().UnixNano())
	secret := generateToken()

	cfg := &store.WebhookConfig{
		WebhookID: webhookID,
		URL:       req.URL,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	if err := s.archive.RegisterWebhook(r.Context(), cfg); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_register_webhook","error":"%v"}`+"\n", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	resp := WebhookResponse{WebhookID: webhookID, Secret: secret}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","error":"%v"}`+"\n", err)
	}
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.archive.ListWebhooks(r.Context())
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_list_webhooks","error":"%v"}`+"\n", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	// Secrets are write-only after registration.
	type listed struct {
		WebhookID string    `json:"webhook_id"`
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
		Active    bool      `json:"active"`
	}
	out := make([]listed, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, listed{WebhookID: h.WebhookID, URL: h.URL, CreatedAt: h.CreatedAt, Active: h.Active})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_webhooks","error":"%v"}`+"\n", err)
	}
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/webhooks")
	id = strings.TrimPrefix(id, "/")
	if id == "" {
		http.Error(w, `{"error":"missing_webhook_id"}`, http.StatusBadRequest)
		return
	}

	if err := s.archive.DeleteWebhook(r.Context(), id); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_delete_webhook","error":"%v"}`+"\n", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
