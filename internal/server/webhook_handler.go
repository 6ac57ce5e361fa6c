package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/webhook"
)

// GitHub caps payloads at 25 MB; reject anything larger outright.
const maxPayloadBytes = 25 << 20

// handleWebhook verifies the delivery signature, hands the payload to
// the dispatcher, and acknowledges. Unroutable events are acknowledged
// with 200 so GitHub does not retry them; only a bad signature or an
// unparsable payload is rejected.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxPayloadBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	delivery := r.Header.Get("X-GitHub-Delivery")
	eventType := r.Header.Get("X-GitHub-Event")

	if s.cfg.VerifySignatures {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !webhook.VerifySignature(body, signature, s.cfg.WebhookSecret) {
			s.logger.LogWarning(r.Context(), "webhook signature rejected", map[string]interface{}{
				"delivery": delivery,
				"event":    eventType,
			})
			s.writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
	}

	result, err := s.dispatcher.Dispatch(r.Context(), eventType, body)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.LogError(r.Context(), "webhook dispatch failed", map[string]interface{}{
			"delivery": delivery,
			"event":    eventType,
			"error":    err.Error(),
		})
		s.writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	resp := map[string]interface{}{"outcome": string(result.Outcome)}
	if result.PullRequest != nil {
		resp["pull_request_id"] = result.PullRequest.ID
	}
	s.writeJSON(w, http.StatusOK, resp)
}
