package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditEntryValidation(t *testing.T) {
	cases := []struct {
		name  string
		entry AuditEntry
		ok    bool
	}{
		{"complete", AuditEntry{Action: "receipt.posted", Entity: EntityPurchaseReceipt, EntityID: "42"}, true},
		{"missing action", AuditEntry{Entity: EntityTransfer, EntityID: "1"}, false},
		{"missing entity", AuditEntry{Action: "transfer.approved", EntityID: "1"}, false},
		{"missing entity id", AuditEntry{Action: "transfer.approved", Entity: EntityTransfer}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.entry.validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAuditRecordWithoutPool(t *testing.T) {
	var nilLogger *AuditLogger
	entry := AuditEntry{Action: "po.created", Entity: EntityPurchaseOrder, EntityID: "7"}

	require.Error(t, nilLogger.Record(context.Background(), entry))
	require.Error(t, (&AuditLogger{}).Record(context.Background(), entry))
}
