// Package httpapi exposes the REST surface of the membership layer.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/VanityClub/membership_layer/internal/app"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/metrics"
	"github.com/VanityClub/membership_layer/internal/app/services/payments"
	"github.com/VanityClub/membership_layer/internal/app/storage"
	"github.com/VanityClub/membership_layer/internal/gateway"
	"github.com/VanityClub/membership_layer/internal/middleware"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	maxWebhookBody   = 1 << 20
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/tiers", h.tiers).Methods(http.MethodGet)
	r.HandleFunc("/payments/create-intent", h.createIntent).Methods(http.MethodPost)
	r.HandleFunc("/payments/verify/{paymentIntentId}", h.verifyPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/webhook", h.webhook).Methods(http.MethodPost)
	r.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/user/{userId}", h.leaderboardUser).Methods(http.MethodGet)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": h.app.Catalog.All()})
}

func (h *handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tier     string `json:"tier"`
		UserID   string `json:"userId"`
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.UserID == "" {
		writeError(w, http.StatusBadRequest, errors.New("userId is required"))
		return
	}
	if !sessionMatches(r, payload.UserID) {
		writeError(w, http.StatusForbidden, errors.New("userId does not match session"))
		return
	}

	handle, err := h.app.Payments.CreateIntent(r.Context(), tier.ID(payload.Tier), payload.UserID, payments.Contact{
		Email:    payload.Email,
		Username: payload.Username,
	})
	if err != nil {
		writeError(w, statusForPaymentError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

func (h *handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	intentID := mux.Vars(r)["paymentIntentId"]

	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.UserID == "" {
		writeError(w, http.StatusBadRequest, errors.New("userId is required"))
		return
	}
	if !sessionMatches(r, payload.UserID) {
		writeError(w, http.StatusForbidden, errors.New("userId does not match session"))
		return
	}

	verification, err := h.app.Payments.ConfirmIntent(r.Context(), intentID, payload.UserID)
	if err != nil {
		metrics.RecordVerification("error")
		writeError(w, statusForPaymentError(err), err)
		return
	}

	if !verification.Verified {
		metrics.RecordVerification(string(verification.Status))
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"verified": false,
			"status":   verification.Status,
		})
		return
	}

	metrics.RecordVerification("verified")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": true,
		"userId":   payload.UserID,
		"tier":     verification.TierID,
		"amount":   verification.AmountMinorUnits,
	})
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.Body.Close()

	receipt, err := h.app.Ingestor.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gateway.ErrInvalidSignature) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	index := h.app.Ledger.Index()
	total := index.Len()
	entries := index.Page((page-1)*limit, limit)

	pages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
		"pagination": map[string]int{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

func (h *handler) leaderboardUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	index := h.app.Ledger.Index()
	entry, ok := index.Entry(userID)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("user has no ranked purchases"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": index.Page(0, defaultPageLimit),
		"user":        entry,
	})
}

// sessionMatches enforces that an authenticated session acts only on its own
// user. Anonymous requests pass; intent ownership is still checked downstream.
func sessionMatches(r *http.Request, userID string) bool {
	session := middleware.GetUserID(r.Context())
	return session == "" || session == userID
}

// statusForPaymentError maps the verifier's error taxonomy to HTTP statuses.
func statusForPaymentError(err error) int {
	switch {
	case errors.Is(err, payments.ErrUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, payments.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, payments.ErrIntentOwnershipMismatch):
		return http.StatusForbidden
	case errors.Is(err, payments.ErrGatewayUnavailable), errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
