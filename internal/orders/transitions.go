package orders

import (
	"time"

	"github.com/barmanlink/barmanlink/internal/roles"
)

// Action names a workflow transition an actor can request.
type Action string

const (
	ActionApprove                Action = "approve"
	ActionReject                 Action = "reject"
	ActionRequestRevision        Action = "request_revision"
	ActionIssueInvoice           Action = "issue_invoice"
	ActionConfirmPayment         Action = "confirm_payment"
	ActionVerifyPayment          Action = "verify_payment"
	ActionRejectPayment          Action = "reject_payment"
	ActionRequestReceiptRevision Action = "request_receipt_revision"
	ActionComplete               Action = "complete"
)

// TransitionPayload carries the supporting data an action may require.
type TransitionPayload struct {
	Notes         string
	Reason        string
	ProofRef      string
	PaymentMethod string
	PaymentDate   time.Time
}

type transitionRule struct {
	from          []Status
	to            Status
	requireReason bool
	requireNotes  bool
	requireProof  bool
	requirePriced bool
}

type ruleKey struct {
	action Action
	role   roles.Role
}

// transitionTable is the single source of truth for which role may move an
// order between which statuses, and what supporting data the move needs.
var transitionTable = map[ruleKey]transitionRule{
	{ActionApprove, roles.RolePharmacyManager}: {
		from: []Status{StatusPending, StatusNeedsRevisionPM},
		to:   StatusApprovedPM,
	},
	{ActionReject, roles.RolePharmacyManager}: {
		from:          []Status{StatusPending, StatusNeedsRevisionPM},
		to:            StatusRejected,
		requireReason: true,
	},
	{ActionRequestRevision, roles.RolePharmacyManager}: {
		from:          []Status{StatusPending, StatusNeedsRevisionPM},
		to:            StatusNeedsRevisionPS,
		requireReason: true,
	},

	{ActionApprove, roles.RoleBarmanStaff}: {
		from: []Status{StatusApprovedPM, StatusNeedsRevisionBS},
		to:   StatusApprovedBS,
	},
	{ActionReject, roles.RoleBarmanStaff}: {
		from:          []Status{StatusApprovedPM, StatusNeedsRevisionBS},
		to:            StatusRejected,
		requireReason: true,
	},
	{ActionRequestRevision, roles.RoleBarmanStaff}: {
		from:          []Status{StatusApprovedPM, StatusNeedsRevisionBS},
		to:            StatusNeedsRevisionPM,
		requireReason: true,
	},

	{ActionIssueInvoice, roles.RoleBarmanManager}: {
		from:          []Status{StatusApprovedBS, StatusNeedsRevisionPA},
		to:            StatusInvoiceIssued,
		requirePriced: true,
	},
	{ActionReject, roles.RoleBarmanManager}: {
		from:          []Status{StatusApprovedBS, StatusNeedsRevisionPA},
		to:            StatusRejected,
		requireReason: true,
	},
	{ActionRequestRevision, roles.RoleBarmanManager}: {
		from:          []Status{StatusApprovedBS},
		to:            StatusNeedsRevisionPM,
		requireReason: true,
	},
	{ActionComplete, roles.RoleBarmanManager}: {
		from: []Status{StatusPaymentVerified},
		to:   StatusCompleted,
	},

	{ActionConfirmPayment, roles.RolePharmacyAccountant}: {
		from:         []Status{StatusInvoiceIssued, StatusPaymentRejected},
		to:           StatusPaymentUploaded,
		requireProof: true,
	},
	{ActionReject, roles.RolePharmacyAccountant}: {
		from:          []Status{StatusInvoiceIssued, StatusPaymentRejected},
		to:            StatusRejected,
		requireReason: true,
	},
	{ActionRequestRevision, roles.RolePharmacyAccountant}: {
		from:          []Status{StatusInvoiceIssued, StatusPaymentRejected},
		to:            StatusNeedsRevisionPA,
		requireReason: true,
	},

	{ActionVerifyPayment, roles.RoleBarmanAccountant}: {
		from:         []Status{StatusPaymentUploaded},
		to:           StatusPaymentVerified,
		requireNotes: true,
	},
	{ActionRejectPayment, roles.RoleBarmanAccountant}: {
		from:          []Status{StatusPaymentUploaded},
		to:            StatusPaymentRejected,
		requireReason: true,
	},
	{ActionRequestReceiptRevision, roles.RoleBarmanAccountant}: {
		from:          []Status{StatusPaymentUploaded},
		to:            StatusInvoiceIssued,
		requireReason: true,
	},
}

// knownActions guards the validation-vs-permission distinction: an unknown
// action is a validation failure, a known action with the wrong role is a
// permission failure.
var knownActions = map[Action]bool{
	ActionApprove:                true,
	ActionReject:                 true,
	ActionRequestRevision:        true,
	ActionIssueInvoice:           true,
	ActionConfirmPayment:         true,
	ActionVerifyPayment:          true,
	ActionRejectPayment:          true,
	ActionRequestReceiptRevision: true,
	ActionComplete:               true,
}

func lookupRule(action Action, role roles.Role) (transitionRule, error) {
	if !knownActions[action] {
		return transitionRule{}, ErrValidation
	}
	rule, ok := transitionTable[ruleKey{action, role}]
	if !ok {
		return transitionRule{}, ErrPermission
	}
	return rule, nil
}

func (r transitionRule) allowsFrom(s Status) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

// pricingStatuses are the statuses in which the distributor manager may
// still attach or correct pricing: strictly before an invoice is in force.
var pricingStatuses = map[Status]bool{
	StatusApprovedBS:      true,
	StatusNeedsRevisionPA: true,
}

// nextReviewer maps a status to the role the order is handed to for review.
// Terminal statuses have no next reviewer.
var nextReviewer = map[Status]roles.Role{
	StatusPending:         roles.RolePharmacyManager,
	StatusNeedsRevisionPS: roles.RolePharmacyStaff,
	StatusNeedsRevisionPM: roles.RolePharmacyManager,
	StatusApprovedPM:      roles.RoleBarmanStaff,
	StatusNeedsRevisionBS: roles.RoleBarmanStaff,
	StatusApprovedBS:      roles.RoleBarmanManager,
	StatusInvoiceIssued:   roles.RolePharmacyAccountant,
	StatusNeedsRevisionPA: roles.RoleBarmanManager,
	StatusPaymentUploaded: roles.RoleBarmanAccountant,
	StatusPaymentRejected: roles.RolePharmacyAccountant,
	StatusPaymentVerified: roles.RoleBarmanManager,
}

// NextReviewer returns the role that reviews orders sitting in the given
// status, and whether one exists.
func NextReviewer(s Status) (roles.Role, bool) {
	r, ok := nextReviewer[s]
	return r, ok
}
