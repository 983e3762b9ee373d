package shared

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// NextDocNumber reserves the next document number for a prefix, formatted as
// the prefix followed by a ten digit zero padded sequence (PO0000000001).
// Must be called inside the transaction that persists the document so an
// aborted create does not burn a visible number gap in the same commit.
func NextDocNumber(ctx context.Context, tx pgx.Tx, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("docnum: prefix required")
	}
	var seq int64
	err := tx.QueryRow(ctx, `INSERT INTO doc_sequences (prefix, last_value)
VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, prefix).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("docnum: next %s: %w", prefix, err)
	}
	return FormatDocNumber(prefix, seq), nil
}

// FormatDocNumber renders a document number without touching the database.
func FormatDocNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%010d", prefix, seq)
}
