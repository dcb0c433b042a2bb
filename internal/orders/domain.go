package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the order workflow states.
type Status string

const (
	StatusPending         Status = "pending"
	StatusNeedsRevisionPS Status = "needs_revision_ps"
	StatusNeedsRevisionPM Status = "needs_revision_pm"
	StatusApprovedPM      Status = "approved_pm"
	StatusNeedsRevisionBS Status = "needs_revision_bs"
	StatusApprovedBS      Status = "approved_bs"
	StatusInvoiceIssued   Status = "invoice_issued"
	StatusNeedsRevisionPA Status = "needs_revision_pa"
	StatusPaymentUploaded Status = "payment_uploaded"
	StatusPaymentRejected Status = "payment_rejected"
	StatusPaymentVerified Status = "payment_verified"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// AllStatuses lists every workflow status.
var AllStatuses = []Status{
	StatusPending,
	StatusNeedsRevisionPS,
	StatusNeedsRevisionPM,
	StatusApprovedPM,
	StatusNeedsRevisionBS,
	StatusApprovedBS,
	StatusInvoiceIssued,
	StatusNeedsRevisionPA,
	StatusPaymentUploaded,
	StatusPaymentRejected,
	StatusPaymentVerified,
	StatusCompleted,
	StatusRejected,
}

// Valid reports whether s is a known workflow status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Editable reports whether line items may still be replaced.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusNeedsRevisionPS
}

// Order is one procurement request moving through the approval chain.
type Order struct {
	ID            uuid.UUID
	PharmacyID    int64
	CreatedBy     int64
	Status        Status
	TotalItems    int
	TotalAmount   float64
	TotalPriced   bool
	Notes         string
	ProofRef      string
	PaymentMethod string
	PaymentDate   time.Time
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is one product line. Duplicate product lines are allowed and
// summed only at presentation time.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	ProductID int64
	Qty       int
}

// PricingEntry holds the distributor-set price for one (order, product)
// pair. TotalPrice is stored independently of UnitPrice so it can carry a
// negotiated discount.
type PricingEntry struct {
	ID              int64
	OrderID         uuid.UUID
	ProductID       int64
	UnitPrice       float64
	TotalPrice      float64
	DiscountPercent float64
	Notes           string
	UpdatedAt       time.Time
}

// ApprovalLogEntry is one immutable audit record of a status transition.
type ApprovalLogEntry struct {
	ID         int64
	OrderID    uuid.UUID
	ActorID    int64
	FromStatus Status
	ToStatus   Status
	Notes      string
	CreatedAt  time.Time
}

var (
	// ErrValidation indicates malformed input; nothing was mutated.
	ErrValidation = errors.New("orders: invalid input")
	// ErrPermission indicates the actor's role may not perform the action.
	ErrPermission = errors.New("orders: role not permitted")
	// ErrInvalidState indicates the order's current status is not a valid
	// source for the requested action.
	ErrInvalidState = errors.New("orders: invalid state for action")
	// ErrConflict indicates the order moved between read and write; the
	// caller should refetch and retry.
	ErrConflict = errors.New("orders: concurrent modification")
	// ErrNotFound indicates an unknown order or pricing entry.
	ErrNotFound = errors.New("orders: not found")
)
