package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records procurement activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages purchase documents and reconciles PO, GRN and bill quantities.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the procurement service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreatePurchaseOrder persists a purchase order and its lines.
func (s *Service) CreatePurchaseOrder(ctx context.Context, tenantID int64, input CreatePurchaseOrderInput) (PurchaseOrder, error) {
	if input.SupplierID <= 0 {
		return PurchaseOrder{}, shared.Errorf(shared.ErrValidation, "procurement: supplier required")
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, shared.Errorf(shared.ErrValidation, "procurement: minimal 1 line")
	}
	po := PurchaseOrder{
		TenantID:   tenantID,
		SupplierID: input.SupplierID,
		Number:     defaultString(strings.TrimSpace(input.Number), generateNumber("PO")),
		OrderDate:  defaultTime(input.OrderDate),
		CreatedBy:  input.CreatedBy,
	}
	for idx, line := range input.Lines {
		if err := validateQty(idx, line.Description, line.Qty); err != nil {
			return PurchaseOrder{}, err
		}
		if line.UnitPrice < 0 {
			return PurchaseOrder{}, shared.Errorf(shared.ErrValidation, "procurement: line %d unit price negative", idx+1)
		}
		po.Lines = append(po.Lines, POLine{Description: strings.TrimSpace(line.Description), Qty: line.Qty, UnitPrice: line.UnitPrice})
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		return s.record(ctx, tenantID, input.CreatedBy, "po.create", "purchase_order", fmt.Sprintf("%d", created.ID), map[string]any{"number": created.Number})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return created, nil
}

// CreateGoodsReceipt persists a goods receipt. When it references a purchase order,
// the order must belong to the same supplier and line references must point into it.
func (s *Service) CreateGoodsReceipt(ctx context.Context, tenantID int64, input CreateGoodsReceiptInput) (GoodsReceipt, error) {
	if input.SupplierID <= 0 {
		return GoodsReceipt{}, shared.Errorf(shared.ErrValidation, "procurement: supplier required")
	}
	if len(input.Lines) == 0 {
		return GoodsReceipt{}, shared.Errorf(shared.ErrValidation, "procurement: minimal 1 line")
	}
	grn := GoodsReceipt{
		TenantID:     tenantID,
		SupplierID:   input.SupplierID,
		POID:         input.POID,
		Number:       defaultString(strings.TrimSpace(input.Number), generateNumber("GRN")),
		ReceivedDate: defaultTime(input.ReceivedDate),
		CreatedBy:    input.CreatedBy,
	}
	for idx, line := range input.Lines {
		if err := validateQty(idx, line.Description, line.Qty); err != nil {
			return GoodsReceipt{}, err
		}
		if line.POLineID != nil && input.POID == nil {
			return GoodsReceipt{}, shared.Errorf(shared.ErrValidation, "procurement: line %d references a PO line without a purchase order", idx+1)
		}
		grn.Lines = append(grn.Lines, GRNLine{POLineID: line.POLineID, Description: strings.TrimSpace(line.Description), Qty: line.Qty})
	}

	var created GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.POID != nil {
			supplierID, lineIDs, err := tx.PurchaseOrderLines(ctx, tenantID, *input.POID)
			if err != nil {
				return err
			}
			if supplierID != input.SupplierID {
				return shared.Errorf(shared.ErrValidation, "procurement: purchase order %d belongs to another supplier", *input.POID)
			}
			for idx, line := range grn.Lines {
				if line.POLineID != nil && !containsID(lineIDs, *line.POLineID) {
					return shared.Errorf(shared.ErrValidation, "procurement: line %d references PO line %d outside the order", idx+1, *line.POLineID)
				}
			}
		}
		var err error
		created, err = tx.InsertGoodsReceipt(ctx, grn)
		if err != nil {
			return err
		}
		return s.record(ctx, tenantID, input.CreatedBy, "grn.create", "goods_receipt", fmt.Sprintf("%d", created.ID), map[string]any{"number": created.Number})
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	return created, nil
}

// GetPurchaseOrder returns a purchase order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, tenantID, id)
}

// GetGoodsReceipt returns a goods receipt with its lines.
func (s *Service) GetGoodsReceipt(ctx context.Context, tenantID, id int64) (GoodsReceipt, error) {
	return s.repo.GetGoodsReceipt(ctx, tenantID, id)
}

// ListAvailable returns the PO, GRN and bill lines of a supplier that still have
// quantity to match. The three sides are read concurrently.
func (s *Service) ListAvailable(ctx context.Context, tenantID, supplierID int64) (Available, error) {
	var out Available
	g, ctx := errgroup.WithContext(ctx)
	targets := map[Side]*[]MatchableLine{
		SidePO:   &out.POLines,
		SideGRN:  &out.GRNLines,
		SideBill: &out.BillLines,
	}
	for side, dst := range targets {
		g.Go(func() error {
			lines, err := s.repo.ListAvailable(ctx, tenantID, supplierID, side)
			if err != nil {
				return fmt.Errorf("procurement: list %s: %w", side, err)
			}
			if lines == nil {
				lines = []MatchableLine{}
			}
			*dst = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Available{}, err
	}
	return out, nil
}

// ApplyMatches validates a batch of matches against persisted availability and
// applies it as a whole. Referenced rows are locked side by side in a fixed
// order and ascending id, so concurrent batches serialise without deadlocking.
// Any invalid match rejects the batch with ErrMatchValidation naming its index.
func (s *Service) ApplyMatches(ctx context.Context, tenantID, actorID int64, matches []MatchInput) (int, error) {
	if len(matches) == 0 {
		return 0, shared.Errorf(shared.ErrMatchValidation, "procurement: no matches submitted")
	}
	for idx, m := range matches {
		if !m.Qty.IsPositive() {
			return 0, matchError(idx, "quantity must be positive")
		}
		if len(m.sides()) == 0 {
			return 0, matchError(idx, "at least one line required")
		}
	}

	batchID := uuid.New()
	var inserted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked := make(map[Side]map[int64]LockedLine, len(lockOrder))
		for _, side := range lockOrder {
			ids := referencedIDs(matches, side)
			if len(ids) == 0 {
				continue
			}
			lines, err := tx.LockLines(ctx, tenantID, side, ids)
			if err != nil {
				return err
			}
			byID := make(map[int64]LockedLine, len(lines))
			for _, l := range lines {
				byID[l.ID] = l
			}
			locked[side] = byID
		}

		demand := make(map[Side]map[int64]decimal.Decimal, len(lockOrder))
		for idx, m := range matches {
			refs := m.sides()
			var supplierID int64
			for _, side := range lockOrder {
				id, ok := refs[side]
				if !ok {
					continue
				}
				line, ok := locked[side][id]
				if !ok {
					return matchError(idx, "%s %d not found", side, id)
				}
				if supplierID != 0 && line.SupplierID != supplierID {
					return matchError(idx, "lines belong to different suppliers")
				}
				supplierID = line.SupplierID
				if demand[side] == nil {
					demand[side] = make(map[int64]decimal.Decimal)
				}
				requested := demand[side][id].Add(m.Qty)
				if requested.GreaterThan(line.Available()) {
					return matchError(idx, "%s %d has %s available, batch requests %s", side, id, line.Available(), requested)
				}
				demand[side][id] = requested
			}
		}

		for _, side := range lockOrder {
			if len(demand[side]) == 0 {
				continue
			}
			if err := tx.AddMatched(ctx, side, demand[side]); err != nil {
				return err
			}
		}
		rows := make([]Match, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, Match{
				TenantID:   tenantID,
				BatchID:    batchID,
				POLineID:   m.POLineID,
				GRNLineID:  m.GRNLineID,
				BillLineID: m.BillLineID,
				Qty:        m.Qty,
				CreatedBy:  actorID,
			})
		}
		var err error
		inserted, err = tx.InsertMatches(ctx, rows)
		if err != nil {
			return err
		}
		return s.record(ctx, tenantID, actorID, "three_way.apply", "three_way_batch", batchID.String(), map[string]any{"matches": len(rows)})
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("three-way matches applied", slog.Int64("tenant_id", tenantID), slog.String("batch_id", batchID.String()), slog.Int64("inserted", inserted))
	return int(inserted), nil
}

func matchError(idx int, format string, args ...any) error {
	return shared.Errorf(shared.ErrMatchValidation, "procurement: matches[%d]: "+format, append([]any{idx}, args...)...)
}

func validateQty(idx int, description string, qty decimal.Decimal) error {
	if strings.TrimSpace(description) == "" {
		return shared.Errorf(shared.ErrValidation, "procurement: line %d description required", idx+1)
	}
	if !qty.IsPositive() {
		return shared.Errorf(shared.ErrValidation, "procurement: line %d quantity must be positive", idx+1)
	}
	return nil
}

func referencedIDs(matches []MatchInput, side Side) []int64 {
	seen := make(map[int64]struct{})
	for _, m := range matches {
		if id, ok := m.sides()[side]; ok {
			seen[id] = struct{}{}
		}
	}
	return sortedIDs(seen)
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Service) record(ctx context.Context, tenantID, actorID int64, action, entity, entityID string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{TenantID: tenantID, ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return value
}
