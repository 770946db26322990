package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/fastcapital/internal/business"
	"github.com/jonathan/fastcapital/internal/model"
)

// BusinessServiceInterface は事業者ハンドラーが必要とするサービスインターフェース。
type BusinessServiceInterface interface {
	List(ctx context.Context) ([]*model.Business, error)
	Get(ctx context.Context, id string) (*model.Business, error)
	Create(ctx context.Context, ownerID string, input business.CreateInput) (*model.Business, error)
	Patch(ctx context.Context, id string, input business.PatchInput) (*model.Business, error)
	ListFinancials(ctx context.Context, businessID string) ([]*model.FinancialRecord, error)
	AddFinancial(ctx context.Context, businessID string, date time.Time, amount float64, recordType model.FinancialType) (*model.FinancialRecord, error)
}

// BusinessHandler は事業者管理のHTTPハンドラー。
type BusinessHandler struct {
	service BusinessServiceInterface
}

// NewBusinessHandler はBusinessHandlerを生成する。
func NewBusinessHandler(service BusinessServiceInterface) *BusinessHandler {
	return &BusinessHandler{service: service}
}

type businessResponse struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

func toBusinessResponse(b *model.Business) businessResponse {
	return businessResponse{
		ID:         b.ID,
		OwnerID:    b.OwnerID,
		Name:       b.Name,
		WebsiteURL: b.WebsiteURL,
		Address1:   b.Address1,
		Address2:   b.Address2,
		City:       b.City,
		State:      b.State,
		PostalCode: b.PostalCode,
	}
}

// ListBusinesses は全事業者を返す。
// GET /api/businesses
func (h *BusinessHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]businessResponse, 0, len(businesses))
	for _, b := range businesses {
		resp = append(resp, toBusinessResponse(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetBusiness は事業者詳細を返す。
// GET /api/businesses/{id}
func (h *BusinessHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBusinessResponse(b))
}

type createBusinessRequest struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// CreateBusiness は事業者を登録する。
// POST /api/businesses
func (h *BusinessHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	b, err := h.service.Create(r.Context(), ownerID, business.CreateInput{
		Name:       req.Name,
		WebsiteURL: req.WebsiteURL,
		Address1:   req.Address1,
		Address2:   req.Address2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBusinessResponse(b))
}

type patchBusinessRequest struct {
	Name       *string `json:"name"`
	WebsiteURL *string `json:"website_url"`
	Address1   *string `json:"address1"`
	Address2   *string `json:"address2"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postal_code"`
}

// PatchBusiness は事業者情報を部分更新する。
// PATCH /api/businesses/{id}
func (h *BusinessHandler) PatchBusiness(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req patchBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	b, err := h.service.Patch(r.Context(), chi.URLParam(r, "id"), business.PatchInput{
		Name:       req.Name,
		WebsiteURL: req.WebsiteURL,
		Address1:   req.Address1,
		Address2:   req.Address2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBusinessResponse(b))
}

type financialResponse struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
	Type       string    `json:"type"`
}

// ListFinancials は事業者の財務レコードを返す。
// GET /api/businesses/{id}/financials
func (h *BusinessHandler) ListFinancials(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListFinancials(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]financialResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, financialResponse{
			ID:         rec.ID,
			BusinessID: rec.BusinessID,
			Date:       rec.Date,
			Amount:     rec.Amount,
			Type:       string(rec.Type),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type addFinancialRequest struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Type   string    `json:"type"`
}

// AddFinancial は財務レコードを追加する。
// POST /api/businesses/{id}/financials
func (h *BusinessHandler) AddFinancial(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req addFinancialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	rec, err := h.service.AddFinancial(r.Context(), chi.URLParam(r, "id"), req.Date, req.Amount, model.FinancialType(req.Type))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(financialResponse{
		ID:         rec.ID,
		BusinessID: rec.BusinessID,
		Date:       rec.Date,
		Amount:     rec.Amount,
		Type:       string(rec.Type),
	})
}
