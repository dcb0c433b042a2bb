package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsSound(t *testing.T) {
	for key, rule := range transitionTable {
		require.NotEmpty(t, rule.from, "%s/%s has no source statuses", key.action, key.role)
		require.True(t, rule.to.Valid(), "%s/%s targets unknown status %s", key.action, key.role, rule.to)
		require.True(t, knownActions[key.action], "%s missing from knownActions", key.action)
		for _, from := range rule.from {
			require.True(t, from.Valid(), "%s/%s reads unknown status %s", key.action, key.role, from)
			require.False(t, from.Terminal(), "%s/%s moves out of terminal status %s", key.action, key.role, from)
			require.NotEqual(t, from, rule.to, "%s/%s is a self loop on %s", key.action, key.role, from)
		}
	}
}

func TestEveryNonTerminalStatusHasAReviewer(t *testing.T) {
	for _, status := range AllStatuses {
		if status.Terminal() {
			_, ok := NextReviewer(status)
			require.False(t, ok, "terminal status %s should have no reviewer", status)
			continue
		}
		_, ok := NextReviewer(status)
		require.True(t, ok, "status %s has no assigned reviewer", status)
	}
}

func TestEveryNonTerminalStatusHasAWayOut(t *testing.T) {
	outgoing := make(map[Status]bool)
	for _, rule := range transitionTable {
		for _, from := range rule.from {
			outgoing[from] = true
		}
	}
	// needs_revision_ps exits via an item edit, not a workflow action.
	outgoing[StatusNeedsRevisionPS] = true
	for _, status := range AllStatuses {
		if status.Terminal() {
			continue
		}
		require.True(t, outgoing[status], "status %s is a dead end", status)
	}
}

func TestRevisionReasonsAreMandatory(t *testing.T) {
	for key, rule := range transitionTable {
		switch key.action {
		case ActionReject, ActionRequestRevision, ActionRejectPayment, ActionRequestReceiptRevision:
			require.True(t, rule.requireReason, "%s/%s must require a reason", key.action, key.role)
		}
	}
}
