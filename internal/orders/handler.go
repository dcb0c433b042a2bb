package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/barmanlink/barmanlink/internal/catalog"
	"github.com/barmanlink/barmanlink/internal/platform/httpx"
	"github.com/barmanlink/barmanlink/internal/roles"
	"github.com/barmanlink/barmanlink/internal/shared"
)

// Handler exposes the workflow engine over JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   catalog.Resolver
	validator *validator.Validate
	printer   *message.Printer
}

// NewHandler builds a Handler instance. The catalog resolver is optional;
// without it item lines render without product names.
func NewHandler(logger *slog.Logger, service *Service, cat catalog.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		catalog:   cat,
		validator: validator.New(),
		printer:   message.NewPrinter(language.English),
	}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Put("/{id}/items", h.replaceItems)
	r.Post("/{id}/transitions", h.transition)
	r.Post("/{id}/pricing", h.upsertPricing)
	r.Get("/{id}/approvals", h.listApprovals)
}

type itemPayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Qty       int   `json:"qty" validate:"required,gt=0"`
}

type createOrderRequest struct {
	PharmacyID int64         `json:"pharmacy_id" validate:"required,gt=0"`
	Notes      string        `json:"notes"`
	Items      []itemPayload `json:"items" validate:"required,min=1,dive"`
}

type replaceItemsRequest struct {
	Items []itemPayload `json:"items" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	Action        string     `json:"action" validate:"required"`
	Notes         string     `json:"notes"`
	Reason        string     `json:"reason"`
	ProofRef      string     `json:"proof_ref"`
	PaymentMethod string     `json:"payment_method"`
	PaymentDate   *time.Time `json:"payment_date"`
}

type pricingLinePayload struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	TotalPrice      float64 `json:"total_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	Notes           string  `json:"notes"`
}

type pricingRequest struct {
	Lines []pricingLinePayload `json:"lines" validate:"required,min=1,dive"`
}

type orderResponse struct {
	ID            string  `json:"id"`
	PharmacyID    int64   `json:"pharmacy_id"`
	CreatedBy     int64   `json:"created_by"`
	Status        string  `json:"status"`
	TotalItems    int     `json:"total_items"`
	TotalAmount   *string `json:"total_amount,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	ProofRef      string  `json:"proof_ref,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	PaymentDate   *string `json:"payment_date,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type itemResponse struct {
	ProductID    int64  `json:"product_id"`
	Qty          int    `json:"qty"`
	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Category     string `json:"category"`
}

type pricingResponse struct {
	ProductID       int64   `json:"product_id"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

type approvalResponse struct {
	ActorID    int64  `json:"actor_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *Handler) orderView(o Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID.String(),
		PharmacyID:    o.PharmacyID,
		CreatedBy:     o.CreatedBy,
		Status:        string(o.Status),
		TotalItems:    o.TotalItems,
		Notes:         o.Notes,
		ProofRef:      o.ProofRef,
		PaymentMethod: o.PaymentMethod,
		Reason:        o.Reason,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
	if o.TotalPriced {
		amount := h.printer.Sprintf("%.2f", o.TotalAmount)
		resp.TotalAmount = &amount
	}
	if !o.PaymentDate.IsZero() {
		date := o.PaymentDate.Format(time.RFC3339)
		resp.PaymentDate = &date
	}
	return resp
}

// actor extracts the acting user from headers populated by the outer auth
// layer. The engine itself never reads ambient session state.
func actor(r *http.Request) (int64, roles.Role, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errors.New("missing or invalid X-Actor-ID header")
	}
	role, err := roles.ParseRole(r.Header.Get("X-Actor-Role"))
	if err != nil {
		return 0, "", err
	}
	return id, role, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrPermission):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Concurrent Modification", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("orders handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return errors.New("malformed JSON body")
	}
	if err := h.validator.Struct(target); err != nil {
		return err
	}
	return nil
}

func orderID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actorID, role, err := actor(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if role == roles.RoleAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin does not participate in the order workflow")
		return
	}
	var req createOrderRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemInput{ProductID: item.ProductID, Qty: item.Qty})
	}
	order, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		PharmacyID: req.PharmacyID,
		CreatorID:  actorID,
		Notes:      req.Notes,
		Items:      items,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.orderView(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	pharmacyID, _ := strconv.ParseInt(q.Get("pharmacy_id"), 10, 64)
	filters := ListFilters{
		Status:     q.Get("status"),
		PharmacyID: pharmacyID,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	items, total, err := h.service.ListOrders(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]orderResponse, 0, len(items))
	for _, o := range items {
		views = append(views, h.orderView(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     views,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	detail, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":   h.orderView(detail.Order),
		"items":   h.itemViews(r, detail.Items),
		"pricing": pricingViews(detail.Pricing),
	})
}

// itemViews resolves product info for display and sums duplicate product
// lines into the per-product quantities; stored lines stay unmerged.
func (h *Handler) itemViews(r *http.Request, items []OrderItem) []itemResponse {
	summed := make(map[int64]int, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := summed[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		summed[item.ProductID] += item.Qty
	}
	views := make([]itemResponse, 0, len(order))
	for _, productID := range order {
		view := itemResponse{ProductID: productID, Qty: summed[productID], Category: "unknown"}
		if h.catalog != nil {
			if info, err := h.catalog.Resolve(r.Context(), productID); err == nil {
				view.Name = info.Name
				view.Manufacturer = info.Manufacturer
				view.Category = string(info.Category)
			}
		}
		views = append(views, view)
	}
	return views
}

func pricingViews(entries []PricingEntry) []pricingResponse {
	views := make([]pricingResponse, 0, len(entries))
	for _, e := range entries {
		views = append(views, pricingResponse{
			ProductID:       e.ProductID,
			UnitPrice:       e.UnitPrice,
			TotalPrice:      e.TotalPrice,
			DiscountPercent: e.DiscountPercent,
			Notes:           e.Notes,
		})
	}
	return views
}

func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	actorID, _, err := actor(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req replaceItemsRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemInput{ProductID: item.ProductID, Qty: item.Qty})
	}
	order, err := h.service.ReplaceItems(r.Context(), id, actorID, items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.orderView(order))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	actorID, role, err := actor(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req transitionRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payload := TransitionPayload{
		Notes:         req.Notes,
		Reason:        req.Reason,
		ProofRef:      req.ProofRef,
		PaymentMethod: req.PaymentMethod,
	}
	if req.PaymentDate != nil {
		payload.PaymentDate = *req.PaymentDate
	}
	order, err := h.service.Transition(r.Context(), id, actorID, role, Action(req.Action), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.orderView(order))
}

func (h *Handler) upsertPricing(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	actorID, role, err := actor(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var req pricingRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]PricingInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, PricingInput{
			ProductID:       line.ProductID,
			UnitPrice:       line.UnitPrice,
			TotalPrice:      line.TotalPrice,
			DiscountPercent: line.DiscountPercent,
			Notes:           line.Notes,
		})
	}
	order, err := h.service.UpsertPricing(r.Context(), id, actorID, role, lines)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.orderView(order))
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	actorID, role, err := actor(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entries, err := h.service.ListApprovalLog(r.Context(), id, role, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]approvalResponse, 0, len(entries))
	for _, e := range entries {
		views = append(views, approvalResponse{
			ActorID:    e.ActorID,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Notes:      e.Notes,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": views})
}
