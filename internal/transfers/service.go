package transfers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/shared"
)

// StockPoster is the slice of the inventory service the approval flow needs.
type StockPoster interface {
	TransferTx(ctx context.Context, tx inventory.TxRepository, input inventory.TransferInput) (inventory.TransferResult, error)
	InvalidateOnhand(ctx context.Context, warehouseID, itemID int64)
}

// AuditPort records who decided what.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

type Service struct {
	logger *slog.Logger
	repo   Repository
	stock  StockPoster
	audit  AuditPort
}

func NewService(logger *slog.Logger, repo Repository, stock StockPoster, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, stock: stock, audit: audit}
}

// LineInput is one requested item position.
type LineInput struct {
	ItemID int64
	Qty    float64
}

// CreateInput is the validated request payload.
type CreateInput struct {
	SourceID      int64
	DestinationID int64
	Note          string
	RequestedBy   int64
	Lines         []LineInput
}

// ApprovalResult is the decided transfer plus per-line balance outcomes.
type ApprovalResult struct {
	Transfer Transfer     `json:"transfer"`
	Results  []LineResult `json:"results"`
}

// Create registers a pending transfer request. No stock moves here.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, error) {
	if input.SourceID == input.DestinationID {
		return Transfer{}, ErrSameWarehouse
	}
	if len(input.Lines) == 0 {
		return Transfer{}, ErrNoLines
	}
	seen := make(map[int64]struct{}, len(input.Lines))
	lines := make([]Line, 0, len(input.Lines))
	for _, l := range input.Lines {
		if l.Qty <= 0 {
			return Transfer{}, ErrInvalidQuantity
		}
		if _, dup := seen[l.ItemID]; dup {
			return Transfer{}, ErrDuplicateItem
		}
		seen[l.ItemID] = struct{}{}
		lines = append(lines, Line{ItemID: l.ItemID, Qty: l.Qty})
	}
	t, err := s.repo.Create(ctx, Transfer{
		SourceID:      input.SourceID,
		DestinationID: input.DestinationID,
		Note:          input.Note,
		RequestedBy:   input.RequestedBy,
		Lines:         lines,
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, input.RequestedBy, "transfer.requested", t)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	return s.repo.List(ctx, filter)
}

// Approve posts both ledger legs of every line and flips the request to
// APPROVED in one transaction. A request that already left PENDING returns
// ErrAlreadyDecided and stock is untouched. An unknown or inactive item on
// any line aborts the whole approval.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (ApprovalResult, error) {
	var results []LineResult
	decided, err := s.repo.Decide(ctx, id, Decision{Status: StatusApproved, ActorID: actorID},
		func(ctx context.Context, tx inventory.TxRepository, t Transfer) error {
			results = results[:0]
			for _, line := range t.Lines {
				res, err := s.stock.TransferTx(ctx, tx, inventory.TransferInput{
					Code:         t.DocNumber,
					ItemID:       line.ItemID,
					Qty:          line.Qty,
					SrcWarehouse: t.SourceID,
					DstWarehouse: t.DestinationID,
					Note:         t.Note,
					ActorID:      actorID,
					RefModule:    "transfers",
					RefID:        fmt.Sprintf("%d", t.ID),
				})
				if err != nil {
					return err
				}
				results = append(results, LineResult{
					ItemID:             res.ItemID,
					ItemCode:           res.ItemCode,
					Qty:                line.Qty,
					SourceBalance:      res.SourceBalance,
					DestinationBalance: res.DestinationBalance,
				})
			}
			return nil
		})
	if err != nil {
		return ApprovalResult{}, err
	}
	for _, line := range decided.Lines {
		s.stock.InvalidateOnhand(ctx, decided.SourceID, line.ItemID)
		s.stock.InvalidateOnhand(ctx, decided.DestinationID, line.ItemID)
	}
	s.recordAudit(ctx, actorID, "transfer.approved", decided)
	return ApprovalResult{Transfer: decided, Results: results}, nil
}

// Reject flips the request to REJECTED without touching stock.
func (s *Service) Reject(ctx context.Context, id, actorID int64, reason string) (Transfer, error) {
	decided, err := s.repo.Decide(ctx, id, Decision{Status: StatusRejected, ActorID: actorID, Reason: reason}, nil)
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, actorID, "transfer.rejected", decided)
	return decided, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, t Transfer) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.EntityTransfer,
		EntityID: fmt.Sprintf("%d", t.ID),
		Meta: map[string]any{
			"doc_number":  t.DocNumber,
			"lines":       len(t.Lines),
			"source":      t.SourceID,
			"destination": t.DestinationID,
		},
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
