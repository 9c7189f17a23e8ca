package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultAllocationCandidates = 5
	defaultPageSize             = 50
	maxPageSize                 = 500
	searchLimit                 = 50
)

// UnitService is the unit ledger and sale allocator for serialized stock.
type UnitService interface {
	ReceiveUnit(ctx context.Context, parentID uuid.UUID, req dto.ReceiveUnitRequest) (*dto.UnitResponse, error)
	ReceiveUnits(ctx context.Context, parentID uuid.UUID, req dto.ReceiveUnitsRequest) (*dto.ReceiveUnitsResponse, error)
	AllocateUnit(ctx context.Context, parentID uuid.UUID, req dto.AllocateUnitRequest) (*dto.UnitResponse, error)
	SellUnit(ctx context.Context, unitID uuid.UUID, req dto.AllocateUnitRequest) (*dto.UnitResponse, error)
	ReturnUnit(ctx context.Context, unitID uuid.UUID, req dto.ReturnUnitRequest) (*dto.UnitResponse, error)
	RemoveUnit(ctx context.Context, unitID uuid.UUID, reason string) error
	UpdateUnit(ctx context.Context, unitID uuid.UUID, req dto.UpdateUnitRequest) (*dto.UnitResponse, error)
	GetAvailableUnits(ctx context.Context, parentID uuid.UUID, cursor string, limit int) (*dto.UnitPage, error)
	ListUnits(ctx context.Context, parentID uuid.UUID, state string) ([]dto.UnitResponse, error)
	FindUnitBySerial(ctx context.Context, serial string) (*dto.UnitResponse, error)
	SerialHistory(ctx context.Context, serial string) ([]dto.UnitResponse, error)
	SearchUnits(ctx context.Context, term, scope string) ([]dto.UnitResponse, error)
}

type unitService struct {
	agg        *aggregator
	candidates int
	now        func() time.Time
}

func NewUnitService(variants repository.VariantRepository, movements repository.StockMovementRepository, candidates int) UnitService {
	if candidates <= 0 {
		candidates = defaultAllocationCandidates
	}
	return &unitService{
		agg:        &aggregator{variants: variants, movements: movements},
		candidates: candidates,
		now:        utcNow,
	}
}

// errSerialTaken carries a unique-index rejection out of the rolled back
// transaction; it is resolved into DuplicateIdentifierError afterwards.
var errSerialTaken = errors.New("serial taken")

// ── ReceiveUnit ──────────────────────────────────────────────────────────────
// One transaction:
//   1. lock the parent (ParentNotFound if missing, not a parent, or inactive)
//   2. resolve prices from the parent
//   3. insert the unit; the partial unique index is the only duplicate check
//   4. recompute the parent before commit

func (s *unitService) ReceiveUnit(ctx context.Context, parentID uuid.UUID, req dto.ReceiveUnitRequest) (*dto.UnitResponse, error) {
	serial := strings.TrimSpace(req.Serial)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial is required", ErrInvalidInput)
	}

	var unit *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, parentID)
		if err != nil {
			return err
		}

		cost, selling := ResolvePrices(req.CostPrice, req.SellingPrice, parent)
		condition := strings.TrimSpace(req.Condition)
		if condition == "" {
			condition = model.DefaultCondition
		}
		unit = s.newUnit(parent, serial, cost, selling, condition)
		unit.SecondarySerial = trimmedOrNil(req.SecondarySerial)
		unit.ReceiptKey = trimmedOrNil(req.ReceiptKey)

		if err := s.agg.variants.CreateTx(tx, unit); err != nil {
			if repository.IsUniqueViolation(err) {
				return errSerialTaken
			}
			return err
		}
		_, err = s.agg.recomputeTx(tx, parent, model.MovementReceive, "received "+serial, &unit.ID)
		return err
	})
	if errors.Is(err, errSerialTaken) {
		return s.resolveDuplicate(ctx, parentID, serial, req.ReceiptKey)
	}
	if err != nil {
		return nil, storeErr("receive unit", err)
	}

	log.Debug().
		Str("parent_id", parentID.String()).
		Str("unit_id", unit.ID.String()).
		Str("serial", serial).
		Msg("unit received")
	resp := unitToResponse(unit)
	return &resp, nil
}

// resolveDuplicate turns a unique-index rejection into either an idempotent
// replay (same parent and same receipt key) or DuplicateIdentifierError.
func (s *unitService) resolveDuplicate(ctx context.Context, parentID uuid.UUID, serial string, receiptKey *string) (*dto.UnitResponse, error) {
	existing, err := s.agg.variants.FindActiveUnitBySerial(ctx, serial)
	if err != nil {
		if repository.IsNotFound(err) {
			// The holder was sold or removed in between; the caller may retry.
			return nil, &DuplicateIdentifierError{Serial: serial}
		}
		return nil, storeErr("receive unit", err)
	}
	key := trimmedOrNil(receiptKey)
	if key != nil && existing.ReceiptKey != nil && *existing.ReceiptKey == *key &&
		existing.ParentID != nil && *existing.ParentID == parentID {
		resp := unitToResponse(existing)
		return &resp, nil
	}
	log.Warn().
		Str("serial", serial).
		Str("parent_id", parentID.String()).
		Str("existing_unit_id", existing.ID.String()).
		Msg("duplicate serial rejected")
	return nil, &DuplicateIdentifierError{Serial: serial, ExistingUnitID: existing.ID}
}

// ReceiveUnits receives each serial in its own transaction and reports the
// outcome per serial; one rejection does not roll back the others.
func (s *unitService) ReceiveUnits(ctx context.Context, parentID uuid.UUID, req dto.ReceiveUnitsRequest) (*dto.ReceiveUnitsResponse, error) {
	resp := &dto.ReceiveUnitsResponse{Results: make([]dto.ReceiveResult, 0, len(req.Units))}
	for _, u := range req.Units {
		unit, err := s.ReceiveUnit(ctx, parentID, u)
		if err != nil {
			// A missing parent or a storage outage fails every remaining item the same way.
			if errors.Is(err, ErrParentNotFound) || errors.Is(err, ErrUnavailable) {
				return nil, err
			}
			resp.Failed++
			resp.Results = append(resp.Results, dto.ReceiveResult{Serial: u.Serial, Error: err.Error()})
			continue
		}
		resp.Created++
		resp.Results = append(resp.Results, dto.ReceiveResult{Serial: unit.Serial, UnitID: unit.ID})
	}
	return resp, nil
}

// ── AllocateUnit ─────────────────────────────────────────────────────────────
// Oldest-received-first. The available→sold transition is a conditional
// update; a candidate lost to a concurrent sale is skipped and the next one
// tried. The parent is recomputed before commit.

func (s *unitService) AllocateUnit(ctx context.Context, parentID uuid.UUID, req dto.AllocateUnitRequest) (*dto.UnitResponse, error) {
	var sold *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, parentID)
		if err != nil {
			return err
		}

		var tried []uuid.UUID
		for {
			ids, err := s.agg.variants.AvailableUnitIDsTx(tx, parentID, tried, s.candidates)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return &OutOfStockError{ParentID: parentID}
			}
			for _, id := range ids {
				ok, err := s.agg.variants.MarkSoldTx(tx, id, req.SaleRef, s.now())
				if err != nil {
					return err
				}
				if ok {
					if sold, err = s.agg.variants.FindByIDTx(tx, id); err != nil {
						return err
					}
					_, err = s.agg.recomputeTx(tx, parent, model.MovementSale, saleReason(req.SaleRef), &id)
					return err
				}
				tried = append(tried, id)
			}
		}
	})
	if err != nil {
		return nil, storeErr("allocate unit", err)
	}

	log.Info().
		Str("parent_id", parentID.String()).
		Str("unit_id", sold.ID.String()).
		Str("serial", sold.SerialValue()).
		Msg("unit allocated")
	resp := unitToResponse(sold)
	return &resp, nil
}

// SellUnit sells one specific unit, e.g. a device scanned at the counter.
func (s *unitService) SellUnit(ctx context.Context, unitID uuid.UUID, req dto.AllocateUnitRequest) (*dto.UnitResponse, error) {
	unit, err := s.findUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	err = runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, *unit.ParentID)
		if err != nil {
			return err
		}
		ok, err := s.agg.variants.MarkSoldTx(tx, unitID, req.SaleRef, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionErrTx(tx, unitID)
		}
		if unit, err = s.agg.variants.FindByIDTx(tx, unitID); err != nil {
			return err
		}
		_, err = s.agg.recomputeTx(tx, parent, model.MovementSale, saleReason(req.SaleRef), &unitID)
		return err
	})
	if err != nil {
		return nil, storeErr("sell unit", err)
	}
	resp := unitToResponse(unit)
	return &resp, nil
}

// ── ReturnUnit ───────────────────────────────────────────────────────────────
// A sold record is closed for good. A returned device re-enters as a NEW
// available unit with the same serial, linked to the closed record. The
// uniqueness guard only sees active units, so the device's own history never
// blocks it; a second return of the same sale is refused.

func (s *unitService) ReturnUnit(ctx context.Context, unitID uuid.UUID, req dto.ReturnUnitRequest) (*dto.UnitResponse, error) {
	old, err := s.findUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if old.State != model.UnitSold {
		return nil, fmt.Errorf("%w: unit %s is %s, only sold units can be returned", ErrInvalidTransition, unitID, old.State)
	}

	var unit *model.Variant
	err = runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, *old.ParentID)
		if err != nil {
			return err
		}
		returned, err := s.agg.variants.HasReturnTx(tx, unitID)
		if err != nil {
			return err
		}
		if returned {
			return fmt.Errorf("%w: unit %s was already returned", ErrInvalidTransition, unitID)
		}

		cost, selling := ResolvePrices(&old.CostPrice, &old.SellingPrice, parent)
		condition := strings.TrimSpace(req.Condition)
		if condition == "" {
			condition = old.Condition
		}
		unit = s.newUnit(parent, old.SerialValue(), cost, selling, condition)
		unit.SecondarySerial = old.SecondarySerial
		unit.ReturnedFromID = &old.ID

		if err := s.agg.variants.CreateTx(tx, unit); err != nil {
			if repository.IsUniqueViolation(err) {
				return errSerialTaken
			}
			return err
		}
		reason := "return of " + old.SerialValue()
		if req.Reason != "" {
			reason += ": " + req.Reason
		}
		_, err = s.agg.recomputeTx(tx, parent, model.MovementReturn, reason, &unit.ID)
		return err
	})
	if errors.Is(err, errSerialTaken) {
		holder, ferr := s.agg.variants.FindActiveUnitBySerial(ctx, old.SerialValue())
		if ferr == nil {
			return nil, &DuplicateIdentifierError{Serial: old.SerialValue(), ExistingUnitID: holder.ID}
		}
		return nil, &DuplicateIdentifierError{Serial: old.SerialValue()}
	}
	if err != nil {
		return nil, storeErr("return unit", err)
	}
	resp := unitToResponse(unit)
	return &resp, nil
}

// RemoveUnit soft-deletes an available unit (e.g. a mis-keyed serial) and
// recomputes its parent. Sold units are history and cannot be removed.
func (s *unitService) RemoveUnit(ctx context.Context, unitID uuid.UUID, reason string) error {
	unit, err := s.findUnit(ctx, unitID)
	if err != nil {
		return err
	}
	err = runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, *unit.ParentID)
		if err != nil {
			return err
		}
		ok, err := s.agg.variants.RemoveUnitTx(tx, unitID)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionErrTx(tx, unitID)
		}
		if reason == "" {
			reason = "removed " + unit.SerialValue()
		}
		_, err = s.agg.recomputeTx(tx, parent, model.MovementRemoval, reason, &unitID)
		return err
	})
	return storeErr("remove unit", err)
}

// UpdateUnit corrects the condition, prices or secondary serial of an
// available unit. Sold and removed units are history and stay as they are.
// Quantities do not change, so no recompute is needed.
func (s *unitService) UpdateUnit(ctx context.Context, unitID uuid.UUID, req dto.UpdateUnitRequest) (*dto.UnitResponse, error) {
	fields := repository.UnitFields{
		SecondarySerial: trimmedOrNil(req.SecondarySerial),
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
	}
	if req.Condition != nil {
		if fields.Condition = trimmedOrNil(req.Condition); fields.Condition == nil {
			return nil, fmt.Errorf("%w: condition must not be blank", ErrInvalidInput)
		}
	}
	for _, p := range []*decimal.Decimal{fields.CostPrice, fields.SellingPrice} {
		if p != nil && p.IsNegative() {
			return nil, fmt.Errorf("%w: prices must not be negative", ErrInvalidInput)
		}
	}
	if fields == (repository.UnitFields{}) {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if _, err := s.findUnit(ctx, unitID); err != nil {
		return nil, err
	}

	var unit *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		ok, err := s.agg.variants.UpdateUnitTx(tx, unitID, fields)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionErrTx(tx, unitID)
		}
		unit, err = s.agg.variants.FindByIDTx(tx, unitID)
		return err
	})
	if err != nil {
		return nil, storeErr("update unit", err)
	}
	resp := unitToResponse(unit)
	return &resp, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

// GetAvailableUnits pages through available units oldest-first. The cursor is
// a keyset position, so a listing can be resumed from any page even while
// units are being received or sold.
func (s *unitService) GetAvailableUnits(ctx context.Context, parentID uuid.UUID, cursor string, limit int) (*dto.UnitPage, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	parent, err := s.agg.variants.FindByID(ctx, parentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &ParentNotFoundError{ParentID: parentID}
		}
		return nil, storeErr("get available units", err)
	}
	if !parent.IsParent() {
		return nil, &ParentNotFoundError{ParentID: parentID, Reason: "variant kind is " + parent.Kind}
	}

	units, err := s.agg.variants.ListAvailableUnits(ctx, parentID, after, limit)
	if err != nil {
		return nil, storeErr("get available units", err)
	}
	page := &dto.UnitPage{Data: make([]dto.UnitResponse, 0, len(units))}
	for i := range units {
		page.Data = append(page.Data, unitToResponse(&units[i]))
	}
	if len(units) == limit {
		last := units[len(units)-1]
		page.NextCursor = encodeCursor(repository.UnitCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *unitService) ListUnits(ctx context.Context, parentID uuid.UUID, state string) ([]dto.UnitResponse, error) {
	if state != "" && state != model.UnitAvailable && state != model.UnitSold {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, state)
	}
	units, err := s.agg.variants.ListUnits(ctx, parentID, state)
	if err != nil {
		return nil, storeErr("list units", err)
	}
	out := make([]dto.UnitResponse, 0, len(units))
	for i := range units {
		out = append(out, unitToResponse(&units[i]))
	}
	return out, nil
}

func (s *unitService) FindUnitBySerial(ctx context.Context, serial string) (*dto.UnitResponse, error) {
	unit, err := s.agg.variants.FindActiveUnitBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: no active unit with serial %q", ErrUnitNotFound, serial)
		}
		return nil, storeErr("find unit by serial", err)
	}
	resp := unitToResponse(unit)
	return &resp, nil
}

// SerialHistory lists every record a serial has had, oldest first: the
// closed sold records followed by the current one, if any.
func (s *unitService) SerialHistory(ctx context.Context, serial string) ([]dto.UnitResponse, error) {
	units, err := s.agg.variants.ListUnitsBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		return nil, storeErr("serial history", err)
	}
	out := make([]dto.UnitResponse, 0, len(units))
	for i := range units {
		out = append(out, unitToResponse(&units[i]))
	}
	return out, nil
}

// SearchUnits finds units of any state whose serial or secondary serial
// contains term, ignoring case. Newest first, at most searchLimit results.
func (s *unitService) SearchUnits(ctx context.Context, term, scope string) ([]dto.UnitResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	units, err := s.agg.variants.SearchUnits(ctx, term, strings.TrimSpace(scope), searchLimit)
	if err != nil {
		return nil, storeErr("search units", err)
	}
	out := make([]dto.UnitResponse, 0, len(units))
	for i := range units {
		out = append(out, unitToResponse(&units[i]))
	}
	return out, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *unitService) newUnit(parent *model.Variant, serial string, cost, selling decimal.Decimal, condition string) *model.Variant {
	parentID := parent.ID
	return &model.Variant{
		ID:           uuid.New(),
		ProductID:    parent.ProductID,
		ParentID:     &parentID,
		Kind:         model.KindUnit,
		Name:         parent.Name,
		SKU:          parent.SKU + "-" + serial,
		CostPrice:    cost,
		SellingPrice: selling,
		Quantity:     1,
		Active:       true,
		Scope:        parent.Scope,
		Serial:       &serial,
		Condition:    condition,
		State:        model.UnitAvailable,
		CreatedAt:    s.now(),
	}
}

// findUnit loads a unit outside any transaction to learn its parent, which
// must be locked before the unit itself is touched.
func (s *unitService) findUnit(ctx context.Context, unitID uuid.UUID) (*model.Variant, error) {
	unit, err := s.agg.variants.FindByID(ctx, unitID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
		}
		return nil, storeErr("find unit", err)
	}
	if !unit.IsUnit() || unit.ParentID == nil {
		return nil, fmt.Errorf("%w: %s is a %s variant", ErrUnitNotFound, unitID, unit.Kind)
	}
	return unit, nil
}

// transitionErrTx explains why a conditional update on a unit matched no row.
func (s *unitService) transitionErrTx(tx *gorm.DB, unitID uuid.UUID) error {
	current, err := s.agg.variants.FindByIDTx(tx, unitID)
	if err != nil {
		return err
	}
	if !current.Active {
		return fmt.Errorf("%w: unit %s was removed", ErrInvalidTransition, unitID)
	}
	return fmt.Errorf("%w: unit %s is %s", ErrInvalidTransition, unitID, current.State)
}

func saleReason(saleRef *string) string {
	if saleRef == nil || *saleRef == "" {
		return "sale"
	}
	return "sale " + *saleRef
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Cursors are opaque to clients: base64url of "<unix nanos>:<unit id>".
func encodeCursor(c repository.UnitCursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (*repository.UnitCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	return &repository.UnitCursor{CreatedAt: time.Unix(0, n).UTC(), ID: uid}, nil
}
