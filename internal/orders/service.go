package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barmanlink/barmanlink/internal/roles"
	"github.com/barmanlink/barmanlink/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, []OrderItem, error)
	GetPricing(ctx context.Context, id uuid.UUID) ([]PricingEntry, error)
	ListApprovalLog(ctx context.Context, id uuid.UUID) ([]ApprovalLogEntry, error)
	ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error)
}

// TxRepository exposes the mutations that must share one transaction.
type TxRepository interface {
	CreateOrder(ctx context.Context, order Order) error
	InsertItem(ctx context.Context, item OrderItem) error
	DeleteItems(ctx context.Context, orderID uuid.UUID) error
	SetTotalItems(ctx context.Context, orderID uuid.UUID, total int) error
	// UpdateStatus writes the new status only when the current status still
	// equals expected; it reports whether a row was affected.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, expected, next Status) (bool, error)
	SetReason(ctx context.Context, orderID uuid.UUID, reason string) error
	SetPayment(ctx context.Context, orderID uuid.UUID, proofRef, method string, date time.Time) error
	UpsertPricing(ctx context.Context, entry PricingEntry) error
	SumPricing(ctx context.Context, orderID uuid.UUID) (float64, error)
	SetTotalAmount(ctx context.Context, orderID uuid.UUID, amount float64) error
	AppendLog(ctx context.Context, entry ApprovalLogEntry) error
}

// AuditPort records non-workflow mutations to the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier delivers transition events to the next reviewer's channel.
// Implementations must not fail the transition; delivery is best effort.
type Notifier interface {
	OrderMoved(ctx context.Context, evt TransitionEvent)
}

// TransitionEvent describes a committed status change.
type TransitionEvent struct {
	OrderID    uuid.UUID
	ActorID    int64
	FromStatus Status
	ToStatus   Status
	NextRole   roles.Role
}

// ListFilters narrows and sorts order listings.
type ListFilters struct {
	Status     string
	PharmacyID int64
	Search     string
	SortBy     string
	SortDir    string
}

// OrderDetail aggregates an order with its lines and pricing.
type OrderDetail struct {
	Order   Order
	Items   []OrderItem
	Pricing []PricingEntry
}

// Service is the workflow engine: it validates and applies every order
// mutation, keeping status, items, pricing, and the approval log in step.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
}

// NewService constructs the workflow service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier}
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID int64
	Qty       int
}

// CreateOrderInput describes the creation payload.
type CreateOrderInput struct {
	PharmacyID int64
	CreatorID  int64
	Notes      string
	Items      []ItemInput
}

// PricingInput is one priced line in an upsert batch.
type PricingInput struct {
	ProductID       int64
	UnitPrice       float64
	TotalPrice      float64
	DiscountPercent float64
	Notes           string
}

func validateItems(items []ItemInput) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	total := 0
	for _, item := range items {
		if item.ProductID <= 0 || item.Qty <= 0 {
			return 0, fmt.Errorf("%w: product id and positive quantity required", ErrValidation)
		}
		total += item.Qty
	}
	return total, nil
}

// CreateOrder persists a new order with its lines in status pending.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if input.PharmacyID <= 0 || input.CreatorID <= 0 {
		return Order{}, fmt.Errorf("%w: pharmacy and creator required", ErrValidation)
	}
	totalItems, err := validateItems(input.Items)
	if err != nil {
		return Order{}, err
	}
	order := Order{
		ID:         uuid.New(),
		PharmacyID: input.PharmacyID,
		CreatedBy:  input.CreatorID,
		Status:     StatusPending,
		TotalItems: totalItems,
		Notes:      input.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		for _, item := range input.Items {
			if err := tx.InsertItem(ctx, OrderItem{OrderID: order.ID, ProductID: item.ProductID, Qty: item.Qty}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.CreatorID, "ORDER_CREATE", order.ID, map[string]any{"total_items": totalItems})
	s.notify(ctx, TransitionEvent{OrderID: order.ID, ActorID: input.CreatorID, ToStatus: StatusPending})
	created, _, err := s.repo.GetOrder(ctx, order.ID)
	if err != nil {
		return order, nil
	}
	return created, nil
}

// ReplaceItems swaps an order's lines wholesale. Permitted only while the
// order is editable; the edit resets the status to pending.
func (s *Service) ReplaceItems(ctx context.Context, orderID uuid.UUID, actorID int64, items []ItemInput) (Order, error) {
	totalItems, err := validateItems(items)
	if err != nil {
		return Order{}, err
	}
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Status.Editable() {
		return Order{}, fmt.Errorf("%w: cannot edit items in status %s", ErrInvalidState, order.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Same-value update when already pending; either way the WHERE
		// clause on the old status is the optimistic concurrency check.
		ok, err := tx.UpdateStatus(ctx, orderID, order.Status, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s", ErrConflict, orderID)
		}
		if err := tx.DeleteItems(ctx, orderID); err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.InsertItem(ctx, OrderItem{OrderID: orderID, ProductID: item.ProductID, Qty: item.Qty}); err != nil {
				return err
			}
		}
		if err := tx.SetTotalItems(ctx, orderID, totalItems); err != nil {
			return err
		}
		if order.Status != StatusPending {
			return tx.AppendLog(ctx, ApprovalLogEntry{
				OrderID:    orderID,
				ActorID:    actorID,
				FromStatus: order.Status,
				ToStatus:   StatusPending,
				Notes:      "items revised",
			})
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "ORDER_ITEMS_REPLACE", orderID, map[string]any{"total_items": totalItems})
	if order.Status != StatusPending {
		s.notify(ctx, TransitionEvent{OrderID: orderID, ActorID: actorID, FromStatus: order.Status, ToStatus: StatusPending})
	}
	updated, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// Transition validates and applies one workflow action. The status change,
// any payload-driven field writes, and the approval-log append commit as a
// single transaction; a failure leaves the order untouched.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, actorID int64, role roles.Role, action Action, payload TransitionPayload) (Order, error) {
	rule, err := lookupRule(action, role)
	if err != nil {
		if err == ErrValidation {
			return Order{}, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
		}
		return Order{}, fmt.Errorf("%w: %s may not %s", ErrPermission, role, action)
	}
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !rule.allowsFrom(order.Status) {
		return Order{}, fmt.Errorf("%w: %s not allowed from status %s", ErrInvalidState, action, order.Status)
	}
	if rule.requireReason && strings.TrimSpace(payload.Reason) == "" {
		return Order{}, fmt.Errorf("%w: %s requires a reason", ErrValidation, action)
	}
	if rule.requireNotes && strings.TrimSpace(payload.Notes) == "" {
		return Order{}, fmt.Errorf("%w: %s requires review notes", ErrValidation, action)
	}
	proofRef := payload.ProofRef
	if proofRef == "" {
		proofRef = order.ProofRef
	}
	if rule.requireProof && proofRef == "" {
		return Order{}, fmt.Errorf("%w: %s requires an uploaded payment proof", ErrValidation, action)
	}
	if rule.requirePriced && (!order.TotalPriced || order.TotalAmount <= 0) {
		return Order{}, fmt.Errorf("%w: pricing must be committed before %s", ErrInvalidState, action)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.UpdateStatus(ctx, orderID, order.Status, rule.to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s", ErrConflict, orderID)
		}
		if rule.requireReason {
			if err := tx.SetReason(ctx, orderID, payload.Reason); err != nil {
				return err
			}
		}
		if action == ActionConfirmPayment {
			date := payload.PaymentDate
			if date.IsZero() {
				date = time.Now()
			}
			if err := tx.SetPayment(ctx, orderID, proofRef, payload.PaymentMethod, date); err != nil {
				return err
			}
		}
		notes := payload.Notes
		if notes == "" {
			notes = payload.Reason
		}
		return tx.AppendLog(ctx, ApprovalLogEntry{
			OrderID:    orderID,
			ActorID:    actorID,
			FromStatus: order.Status,
			ToStatus:   rule.to,
			Notes:      notes,
		})
	})
	if err != nil {
		return Order{}, err
	}
	evt := TransitionEvent{OrderID: orderID, ActorID: actorID, FromStatus: order.Status, ToStatus: rule.to}
	if next, ok := NextReviewer(rule.to); ok {
		evt.NextRole = next
	}
	s.notify(ctx, evt)
	updated, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// UpsertPricing writes a batch of priced lines and recomputes the order
// total inside one transaction. Distributor-manager only, and only while
// no invoice is in force.
func (s *Service) UpsertPricing(ctx context.Context, orderID uuid.UUID, actorID int64, role roles.Role, lines []PricingInput) (Order, error) {
	if role != roles.RoleBarmanManager {
		return Order{}, fmt.Errorf("%w: %s may not price orders", ErrPermission, role)
	}
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("%w: at least one pricing line required", ErrValidation)
	}
	for _, line := range lines {
		if line.ProductID <= 0 || line.UnitPrice < 0 || line.TotalPrice < 0 {
			return Order{}, fmt.Errorf("%w: pricing line requires product and non-negative prices", ErrValidation)
		}
		if line.DiscountPercent < 0 || line.DiscountPercent > 100 {
			return Order{}, fmt.Errorf("%w: discount percent out of range", ErrValidation)
		}
	}
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !pricingStatuses[order.Status] {
		return Order{}, fmt.Errorf("%w: cannot price order in status %s", ErrInvalidState, order.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Same-value status write doubles as the optimistic check against a
		// concurrent transition.
		ok, err := tx.UpdateStatus(ctx, orderID, order.Status, order.Status)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s", ErrConflict, orderID)
		}
		for _, line := range lines {
			entry := PricingEntry{
				OrderID:         orderID,
				ProductID:       line.ProductID,
				UnitPrice:       line.UnitPrice,
				TotalPrice:      line.TotalPrice,
				DiscountPercent: line.DiscountPercent,
				Notes:           line.Notes,
			}
			if err := tx.UpsertPricing(ctx, entry); err != nil {
				return err
			}
		}
		total, err := tx.SumPricing(ctx, orderID)
		if err != nil {
			return err
		}
		return tx.SetTotalAmount(ctx, orderID, total)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "ORDER_PRICING_SAVE", orderID, map[string]any{"lines": len(lines)})
	updated, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// GetOrder returns the full aggregate: order, items, and pricing.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (OrderDetail, error) {
	order, items, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	pricing, err := s.repo.GetPricing(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	return OrderDetail{Order: order, Items: items, Pricing: pricing}, nil
}

// ListOrders returns a filtered, sorted page of orders with the total count.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// ListApprovalLog returns the approval trail filtered for the viewer: their
// own entries plus entries handing the order to their role. This is a
// presentation filter, not a security boundary; the full log is retained.
func (s *Service) ListApprovalLog(ctx context.Context, orderID uuid.UUID, viewerRole roles.Role, viewerID int64) ([]ApprovalLogEntry, error) {
	entries, err := s.repo.ListApprovalLog(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewerRole == roles.RoleAdmin {
		return entries, nil
	}
	var visible []ApprovalLogEntry
	for _, entry := range entries {
		if entry.ActorID == viewerID {
			visible = append(visible, entry)
			continue
		}
		if reviewer, ok := NextReviewer(entry.ToStatus); ok && reviewer == viewerRole {
			visible = append(visible, entry)
		}
	}
	return visible, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "orders", EntityID: orderID.String(), Meta: meta})
}

func (s *Service) notify(ctx context.Context, evt TransitionEvent) {
	if s.notifier == nil {
		return
	}
	if evt.NextRole == "" {
		if next, ok := NextReviewer(evt.ToStatus); ok {
			evt.NextRole = next
		}
	}
	s.notifier.OrderMoved(ctx, evt)
}
