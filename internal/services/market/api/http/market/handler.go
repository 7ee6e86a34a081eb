// Package market exposes the marketplace operations over HTTP.
package market

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/longhan2109/nft-marketplace/internal/errors"
	marketdomain "github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/platform/pagination"
	"github.com/longhan2109/nft-marketplace/internal/platform/requestctx"
	"github.com/longhan2109/nft-marketplace/internal/services/market/service"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// Handler serves the marketplace HTTP API.
//
// Mutating operations are serialized through a single mutex so listing
// transitions and balance updates observe each other in order.
type Handler struct {
	svc *service.Service
	mu  sync.Mutex
}

// NewHandler creates a marketplace HTTP handler backed by the service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the HTTP mux with all marketplace routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/listings", h.createListing)
	mux.HandleFunc("GET /v1/listings", h.listListings)
	mux.HandleFunc("GET /v1/listings/{collection}/{token}", h.getListing)
	mux.HandleFunc("PATCH /v1/listings/{collection}/{token}", h.updateListing)
	mux.HandleFunc("DELETE /v1/listings/{collection}/{token}", h.cancelListing)
	mux.HandleFunc("POST /v1/purchases", h.createPurchase)
	mux.HandleFunc("POST /v1/withdrawals", h.createWithdrawal)
	mux.HandleFunc("GET /v1/proceeds/{seller}", h.getProceeds)
	mux.HandleFunc("GET /v1/events", h.listEvents)
	mux.HandleFunc("GET /healthz", h.healthz)
	return withLocale(mux)
}

// withLocale stores the caller's preferred locale so error rendering can
// pick the right message catalog.
func withLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestctx.WithLocale(r.Context(), r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type listingRequest struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Price      uint64 `json:"price"`
	Caller     string `json:"caller"`
}

type listingResponse struct {
	Collection string    `json:"collection"`
	TokenID    uint64    `json:"token_id"`
	Price      uint64    `json:"price"`
	Seller     string    `json:"seller,omitempty"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

type purchaseRequest struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Payment    uint64 `json:"payment"`
	Caller     string `json:"caller"`
}

type receiptResponse struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Price      uint64 `json:"price"`
	Payment    uint64 `json:"payment"`
	Seller     string `json:"seller"`
	Buyer      string `json:"buyer"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type withdrawalResponse struct {
	Seller string `json:"seller"`
	Amount uint64 `json:"amount"`
}

type proceedsResponse struct {
	Seller  string `json:"seller"`
	Balance uint64 `json:"balance"`
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if !decode(w, r, &req) {
		return
	}
	key := marketdomain.AssetKey{Collection: req.Collection, TokenID: req.TokenID}

	h.mu.Lock()
	rec, err := h.svc.List(r.Context(), key, req.Price, req.Caller)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse{
		Collection: rec.Key.Collection,
		TokenID:    rec.Key.TokenID,
		Price:      rec.Price,
		Seller:     rec.Seller,
		Active:     true,
		UpdatedAt:  rec.UpdatedAt,
	})
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	listing, err := h.svc.GetListing(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse{
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Price:      listing.Price,
		Seller:     listing.Seller,
		Active:     listing.Active(),
	})
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	var req listingRequest
	if !decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	rec, err := h.svc.UpdateListing(r.Context(), key, req.Price, req.Caller)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse{
		Collection: rec.Key.Collection,
		TokenID:    rec.Key.TokenID,
		Price:      rec.Price,
		Seller:     rec.Seller,
		Active:     rec.Price > 0,
		UpdatedAt:  rec.UpdatedAt,
	})
}

func (h *Handler) cancelListing(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	err := h.svc.Cancel(r.Context(), key, req.Caller)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	key := marketdomain.AssetKey{Collection: req.Collection, TokenID: req.TokenID}

	h.mu.Lock()
	receipt, err := h.svc.Buy(r.Context(), key, req.Payment, req.Caller)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receiptResponse{
		Collection: receipt.Key.Collection,
		TokenID:    receipt.Key.TokenID,
		Price:      receipt.Price,
		Payment:    receipt.Payment,
		Seller:     receipt.Seller,
		Buyer:      receipt.Buyer,
	})
}

func (h *Handler) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	amount, err := h.svc.Withdraw(r.Context(), req.Caller)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse{Seller: req.Caller, Amount: amount})
}

func (h *Handler) getProceeds(w http.ResponseWriter, r *http.Request) {
	seller := r.PathValue("seller")
	balance, err := h.svc.GetProceeds(r.Context(), seller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proceedsResponse{Seller: seller, Balance: balance})
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	size, token := pageParams(r)
	page, err := h.svc.ListListings(r.Context(), size, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]listingResponse, 0, len(page.Listings))
	for _, rec := range page.Listings {
		items = append(items, listingResponse{
			Collection: rec.Key.Collection,
			TokenID:    rec.Key.TokenID,
			Price:      rec.Price,
			Seller:     rec.Seller,
			Active:     rec.Price > 0,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Listings      []listingResponse `json:"listings"`
		NextPageToken string            `json:"next_page_token,omitempty"`
	}{items, page.NextPageToken})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	size, token := pageParams(r)
	page, err := h.svc.ListEvents(r.Context(), size, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Events        []eventResponse `json:"events"`
		NextPageToken string          `json:"next_page_token,omitempty"`
	}{eventResponses(page.Events), page.NextPageToken})
}

type eventResponse struct {
	Seq        uint64    `json:"seq"`
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	TokenID    uint64    `json:"token_id"`
	Actor      string    `json:"actor"`
	Price      uint64    `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}

func eventResponses(events []event.Event) []eventResponse {
	items := make([]eventResponse, 0, len(events))
	for _, evt := range events {
		items = append(items, eventResponse{
			Seq:        evt.Seq,
			Type:       string(evt.Type),
			Collection: evt.Key.Collection,
			TokenID:    evt.Key.TokenID,
			Actor:      evt.Actor,
			Price:      evt.Price,
			Timestamp:  evt.Timestamp,
		})
	}
	return items
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{"ok"})
}

func pathKey(w http.ResponseWriter, r *http.Request) (marketdomain.AssetKey, bool) {
	collection := r.PathValue("collection")
	tokenID, err := strconv.ParseUint(r.PathValue("token"), 10, 64)
	if err != nil {
		writeError(w, r, marketdomain.ErrInvalidAssetKey.WithMetadata(map[string]string{
			"collection": collection,
			"token_id":   r.PathValue("token"),
		}))
		return marketdomain.AssetKey{}, false
	}
	return marketdomain.AssetKey{Collection: collection, TokenID: tokenID}, true
}

func pageParams(r *http.Request) (int, string) {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	size = pagination.ClampPageSize(size, pagination.PageSizeConfig{
		Default: defaultPageSize,
		Max:     maxPageSize,
	})
	return size, r.URL.Query().Get("page_token")
}

func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, apperrors.Response{
			Code:    apperrors.CodeUnknown,
			Message: "request body is not valid JSON",
		})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apperrors.HandleError(err, requestctx.LocaleFromContext(r.Context()))
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}
