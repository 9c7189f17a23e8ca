package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReceiveAllocateScenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "95000", "120000")

	first := e.receive(t, parentID, "356789012345671")
	e.receive(t, parentID, "356789012345672")
	e.receive(t, parentID, "356789012345673")

	assert.True(t, first.CostPrice.Equal(dec("95000")))
	assert.True(t, first.SellingPrice.Equal(dec("120000")))
	assert.Equal(t, model.UnitAvailable, first.State)
	assert.Equal(t, model.DefaultCondition, first.Condition)
	assert.Equal(t, 3, e.storedQty(t, parentID))

	sold, err := e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, sold.ID, "oldest received unit is allocated first")
	assert.Equal(t, model.UnitSold, sold.State)
	assert.NotNil(t, sold.SoldAt)
	assert.Equal(t, 2, e.storedQty(t, parentID))

	_, err = e.units.ReceiveUnit(ctx, parentID, dto.ReceiveUnitRequest{Serial: "356789012345672"})
	var dup *DuplicateIdentifierError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "356789012345672", dup.Serial)
	assert.NotEqual(t, uuid.Nil, dup.ExistingUnitID)
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
	assert.Equal(t, 2, e.storedQty(t, parentID))
}

func TestReceiveUnit_SuppliedPricesKept(t *testing.T) {
	e := newTestEnv(t)
	parentID := e.newParent(t, "95000", "120000")

	u, err := e.units.ReceiveUnit(context.Background(), parentID, dto.ReceiveUnitRequest{
		Serial:       "A1",
		CostPrice:    decPtr("90000"),
		SellingPrice: decPtr("0"),
		Condition:    "refurbished",
	})
	require.NoError(t, err)
	assert.True(t, u.CostPrice.Equal(dec("90000")))
	assert.True(t, u.SellingPrice.Equal(dec("120000")))
	assert.Equal(t, "refurbished", u.Condition)
}

func TestReceiveUnit_DuplicateAcrossParents(t *testing.T) {
	e := newTestEnv(t)
	a := e.newParent(t, "10", "20")
	b := e.newParent(t, "10", "20")

	held := e.receive(t, a, "SER-1")
	_, err := e.units.ReceiveUnit(context.Background(), b, dto.ReceiveUnitRequest{Serial: "SER-1"})

	var dup *DuplicateIdentifierError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, held.ID, dup.ExistingUnitID.String())
	assert.Equal(t, 1, e.storedQty(t, a))
	assert.Equal(t, 0, e.storedQty(t, b))
}

func TestReceiveUnit_ReceiptKeyReplay(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	key := "grn-77/line-3"

	req := dto.ReceiveUnitRequest{Serial: "SER-9", ReceiptKey: &key}
	first, err := e.units.ReceiveUnit(ctx, parentID, req)
	require.NoError(t, err)

	again, err := e.units.ReceiveUnit(ctx, parentID, req)
	require.NoError(t, err, "a retried submission with the same receipt key is not a duplicate")
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, e.storedQty(t, parentID))

	other := "grn-78/line-1"
	_, err = e.units.ReceiveUnit(ctx, parentID, dto.ReceiveUnitRequest{Serial: "SER-9", ReceiptKey: &other})
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
}

func TestReceiveUnit_ParentNotFound(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.units.ReceiveUnit(ctx, uuid.New(), dto.ReceiveUnitRequest{Serial: "X"})
	assert.ErrorIs(t, err, ErrParentNotFound)

	p, err := e.products.CreateProduct(ctx, dto.CreateProductRequest{Name: "Cable", NoVariants: true})
	require.NoError(t, err)
	standardID := uuid.MustParse(p.Variants[0].ID)

	_, err = e.units.ReceiveUnit(ctx, standardID, dto.ReceiveUnitRequest{Serial: "X"})
	var pnf *ParentNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, standardID, pnf.ParentID)

	_, err = e.units.ReceiveUnit(ctx, standardID, dto.ReceiveUnitRequest{Serial: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAllocateUnit_OutOfStock(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")

	_, err := e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, parentID, oos.ParentID)

	e.receive(t, parentID, "ONLY")
	ref := "sale-1"
	u, err := e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{SaleRef: &ref})
	require.NoError(t, err)
	require.NotNil(t, u.SaleRef)
	assert.Equal(t, ref, *u.SaleRef)

	_, err = e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 0, e.storedQty(t, parentID))
}

func TestAllocateUnit_ConcurrentCallsNeverShareAUnit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	for _, s := range []string{"C1", "C2", "C3"} {
		e.receive(t, parentID, s)
	}

	const callers = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		empty int
	)
	sold := map[string]int{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sold[u.ID]++
			case errors.Is(err, ErrOutOfStock):
				empty++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sold, 3)
	for id, n := range sold {
		assert.Equal(t, 1, n, "unit %s allocated more than once", id)
	}
	assert.Equal(t, callers-3, empty)
	assert.Equal(t, 0, e.storedQty(t, parentID))
}

func TestReceiveUnit_ConcurrentSameSerial(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parents := []uuid.UUID{
		e.newParent(t, "10", "20"),
		e.newParent(t, "10", "20"),
		e.newParent(t, "10", "20"),
		e.newParent(t, "10", "20"),
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for _, p := range parents {
		wg.Add(1)
		go func(p uuid.UUID) {
			defer wg.Done()
			_, err := e.units.ReceiveUnit(ctx, p, dto.ReceiveUnitRequest{Serial: "RACE-1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateIdentifier):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, len(parents)-1, dups)

	total := 0
	for _, p := range parents {
		total += e.storedQty(t, p)
	}
	assert.Equal(t, 1, total)
}

func TestSellUnit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	e.receive(t, parentID, "S1")
	second := e.receive(t, parentID, "S2")

	sold, err := e.units.SellUnit(ctx, uuid.MustParse(second.ID), dto.AllocateUnitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "S2", sold.Serial)
	assert.Equal(t, 1, e.storedQty(t, parentID))

	_, err = e.units.SellUnit(ctx, uuid.MustParse(second.ID), dto.AllocateUnitRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.units.SellUnit(ctx, parentID, dto.AllocateUnitRequest{})
	assert.ErrorIs(t, err, ErrUnitNotFound, "a parent id is not a unit")
}

func TestReturnUnit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "95000", "120000")
	u := e.receive(t, parentID, "RET-1")
	unitID := uuid.MustParse(u.ID)

	_, err := e.units.ReturnUnit(ctx, unitID, dto.ReturnUnitRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "an available unit cannot be returned")

	_, err = e.units.SellUnit(ctx, unitID, dto.AllocateUnitRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, e.storedQty(t, parentID))

	back, err := e.units.ReturnUnit(ctx, unitID, dto.ReturnUnitRequest{Condition: "used", Reason: "customer changed mind"})
	require.NoError(t, err)
	assert.NotEqual(t, u.ID, back.ID, "a return creates a new record")
	assert.Equal(t, "RET-1", back.Serial)
	assert.Equal(t, model.UnitAvailable, back.State)
	assert.Equal(t, "used", back.Condition)
	require.NotNil(t, back.ReturnedFromID)
	assert.Equal(t, u.ID, *back.ReturnedFromID)
	assert.True(t, back.SellingPrice.Equal(dec("120000")))
	assert.Equal(t, 1, e.storedQty(t, parentID))

	_, err = e.units.ReturnUnit(ctx, unitID, dto.ReturnUnitRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "the same sale cannot be returned twice")

	history, err := e.units.SerialHistory(ctx, "RET-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.UnitSold, history[0].State)
	assert.Equal(t, model.UnitAvailable, history[1].State)
}

func TestReturnUnit_SerialReusedMeanwhile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	u := e.receive(t, parentID, "RE-2")
	_, err := e.units.SellUnit(ctx, uuid.MustParse(u.ID), dto.AllocateUnitRequest{})
	require.NoError(t, err)

	// A sold serial no longer blocks a new receipt.
	e.receive(t, parentID, "RE-2")

	_, err = e.units.ReturnUnit(ctx, uuid.MustParse(u.ID), dto.ReturnUnitRequest{})
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
	assert.Equal(t, 1, e.storedQty(t, parentID))
}

func TestRemoveUnit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	u := e.receive(t, parentID, "TYPO-1")
	unitID := uuid.MustParse(u.ID)

	require.NoError(t, e.units.RemoveUnit(ctx, unitID, "mis-keyed serial"))
	assert.Equal(t, 0, e.storedQty(t, parentID))

	_, err := e.units.FindUnitBySerial(ctx, "TYPO-1")
	assert.ErrorIs(t, err, ErrUnitNotFound)

	assert.ErrorIs(t, e.units.RemoveUnit(ctx, unitID, ""), ErrInvalidTransition)
	assert.ErrorIs(t, e.units.RemoveUnit(ctx, uuid.New(), ""), ErrUnitNotFound)

	// The serial is free again.
	e.receive(t, parentID, "TYPO-1")
}

func TestGetAvailableUnits_KeysetPagination(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	serials := []string{"P1", "P2", "P3", "P4", "P5"}
	for _, s := range serials {
		e.receive(t, parentID, s)
	}

	var (
		got    []string
		cursor string
		pages  int
	)
	for {
		page, err := e.units.GetAvailableUnits(ctx, parentID, cursor, 2)
		require.NoError(t, err)
		pages++
		for _, u := range page.Data {
			got = append(got, u.Serial)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
		require.Less(t, pages, 10, "listing must terminate")
	}
	assert.Equal(t, serials, got)
	assert.Equal(t, 3, pages)

	// Resuming from an earlier cursor after a sale skips the sold unit.
	first, err := e.units.GetAvailableUnits(ctx, parentID, "", 2)
	require.NoError(t, err)
	_, err = e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{}) // sells P1
	require.NoError(t, err)
	rest, err := e.units.GetAvailableUnits(ctx, parentID, first.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, rest.Data, 3)
	assert.Equal(t, "P3", rest.Data[0].Serial)
	assert.Empty(t, rest.NextCursor)

	_, err = e.units.GetAvailableUnits(ctx, parentID, "not-a-cursor!", 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCursorRoundTrip(t *testing.T) {
	want := repository.UnitCursor{CreatedAt: newFakeClock().Now(), ID: uuid.New()}
	got, err := decodeCursor(encodeCursor(want))
	require.NoError(t, err)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.ID, got.ID)

	none, err := decodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReceiveUnits_PerSerialOutcome(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	e.receive(t, parentID, "B2")

	resp, err := e.units.ReceiveUnits(ctx, parentID, dto.ReceiveUnitsRequest{Units: []dto.ReceiveUnitRequest{
		{Serial: "B1"}, {Serial: "B2"}, {Serial: "B3"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Created)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.NotEmpty(t, resp.Results[0].UnitID)
	assert.Contains(t, resp.Results[1].Error, "B2")
	assert.Equal(t, 3, e.storedQty(t, parentID))

	_, err = e.units.ReceiveUnits(ctx, uuid.New(), dto.ReceiveUnitsRequest{Units: []dto.ReceiveUnitRequest{{Serial: "Z"}}})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestUnitMutationsWriteMovements(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")
	e.receive(t, parentID, "M1")
	e.receive(t, parentID, "M2")
	_, err := e.units.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
	require.NoError(t, err)

	list, err := e.stock.ListMovements(ctx, repository.StockMovementFilter{VariantID: &parentID})
	require.NoError(t, err)
	require.EqualValues(t, 3, list.Total)

	byType := map[string][]dto.StockMovementResponse{}
	for _, m := range list.Data {
		byType[m.Type] = append(byType[m.Type], m)
	}
	require.Len(t, byType[model.MovementReceive], 2)
	require.Len(t, byType[model.MovementSale], 1)
	sale := byType[model.MovementSale][0]
	assert.Equal(t, -1, sale.Delta)
	assert.Equal(t, 2, sale.QtyBefore)
	assert.Equal(t, 1, sale.QtyAfter)
	assert.NotNil(t, sale.Reference)
}

// contendedVariants sells candidates behind the allocator's back, the way a
// writer that skips the parent lock would, so the allocator finds them gone
// when it tries its conditional update.
type contendedVariants struct {
	repository.VariantRepository
	steal  int
	stolen []uuid.UUID
}

func (r *contendedVariants) AvailableUnitIDsTx(tx *gorm.DB, parentID uuid.UUID, exclude []uuid.UUID, limit int) ([]uuid.UUID, error) {
	ids, err := r.VariantRepository.AvailableUnitIDsTx(tx, parentID, exclude, limit)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if r.steal == 0 {
			break
		}
		other := "elsewhere"
		ok, err := r.VariantRepository.MarkSoldTx(tx, id, &other, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if ok {
			r.steal--
			r.stolen = append(r.stolen, id)
		}
	}
	return ids, nil
}

func TestAllocateUnit_SkipsCandidatesSoldInBetween(t *testing.T) {
	cases := []struct {
		name  string
		steal int
		want  string
	}{
		{"first candidate lost", 1, "SKIP-2"},
		// Both candidates of the first batch are gone; the next batch is read.
		{"whole batch lost", 2, "SKIP-3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			parentID := e.newParent(t, "10", "20")
			for _, serial := range []string{"SKIP-1", "SKIP-2", "SKIP-3", "SKIP-4"} {
				e.receive(t, parentID, serial)
			}

			contended := &contendedVariants{VariantRepository: e.variants, steal: tc.steal}
			us := NewUnitService(contended, repository.NewStockMovementRepository(e.db), 2).(*unitService)
			us.now = newFakeClock().Now

			sold, err := us.AllocateUnit(ctx, parentID, dto.AllocateUnitRequest{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, sold.Serial)
			assert.Len(t, contended.stolen, tc.steal)
			assert.NotContains(t, contended.stolen, uuid.MustParse(sold.ID))
			assert.Equal(t, 4-1-tc.steal, e.storedQty(t, parentID))
		})
	}
}

func TestAllocateUnit_AllCandidatesLost(t *testing.T) {
	e := newTestEnv(t)
	parentID := e.newParent(t, "10", "20")
	e.receive(t, parentID, "GONE-1")
	e.receive(t, parentID, "GONE-2")

	contended := &contendedVariants{VariantRepository: e.variants, steal: 2}
	us := NewUnitService(contended, repository.NewStockMovementRepository(e.db), 2)

	_, err := us.AllocateUnit(context.Background(), parentID, dto.AllocateUnitRequest{})
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestUpdateUnit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "95000", "120000")
	unit := e.receive(t, parentID, "EDIT-1")
	unitID := uuid.MustParse(unit.ID)

	refurb, imei2 := "refurbished", " 990000862471854 "
	got, err := e.units.UpdateUnit(ctx, unitID, dto.UpdateUnitRequest{
		Condition:       &refurb,
		SecondarySerial: &imei2,
		SellingPrice:    decPtr("99000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "refurbished", got.Condition)
	require.NotNil(t, got.SecondarySerial)
	assert.Equal(t, "990000862471854", *got.SecondarySerial)
	assert.True(t, got.SellingPrice.Equal(dec("99000")))
	assert.True(t, got.CostPrice.Equal(dec("95000")), "omitted fields are kept")
	assert.Equal(t, "EDIT-1", got.Serial)
	assert.Equal(t, model.UnitAvailable, got.State)
	assert.Equal(t, 1, e.storedQty(t, parentID))

	t.Run("nothing to update", func(t *testing.T) {
		_, err := e.units.UpdateUnit(ctx, unitID, dto.UpdateUnitRequest{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := e.units.UpdateUnit(ctx, unitID, dto.UpdateUnitRequest{CostPrice: decPtr("-1")})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := e.units.UpdateUnit(ctx, uuid.New(), dto.UpdateUnitRequest{Condition: &refurb})
		assert.ErrorIs(t, err, ErrUnitNotFound)
	})

	t.Run("sold unit is history", func(t *testing.T) {
		_, err := e.units.SellUnit(ctx, unitID, dto.AllocateUnitRequest{})
		require.NoError(t, err)

		used := "used"
		_, err = e.units.UpdateUnit(ctx, unitID, dto.UpdateUnitRequest{Condition: &used, SellingPrice: decPtr("1")})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		history, err := e.units.SerialHistory(ctx, "EDIT-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "refurbished", history[0].Condition)
		assert.True(t, history[0].SellingPrice.Equal(dec("99000")))
	})
}

func TestSearchUnits(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	parentID := e.newParent(t, "10", "20")

	older := e.receive(t, parentID, "356789012345671")
	second := "SN-AbC-777"
	_, err := e.units.ReceiveUnit(ctx, parentID, dto.ReceiveUnitRequest{Serial: "356789012345672", SecondarySerial: &second})
	require.NoError(t, err)
	e.receive(t, parentID, "990000862471854")
	e.receive(t, parentID, "IMEI_50%")
	_, err = e.units.SellUnit(ctx, uuid.MustParse(older.ID), dto.AllocateUnitRequest{})
	require.NoError(t, err)

	serials := func(units []dto.UnitResponse) []string {
		out := make([]string, 0, len(units))
		for _, u := range units {
			out = append(out, u.Serial)
		}
		return out
	}

	got, err := e.units.SearchUnits(ctx, "35678901234567", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"356789012345672", "356789012345671"}, serials(got), "newest first, sold units included")

	got, err = e.units.SearchUnits(ctx, "abc-7", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"356789012345672"}, serials(got), "secondary serial, any case")

	// LIKE wildcards in the term are literals.
	got, err = e.units.SearchUnits(ctx, "_50%", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"IMEI_50%"}, serials(got))
	got, err = e.units.SearchUnits(ctx, "%", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"IMEI_50%"}, serials(got))

	got, err = e.units.SearchUnits(ctx, "3567", "other-branch")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.units.SearchUnits(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchUnits_Capped(t *testing.T) {
	e := newTestEnv(t)
	parentID := e.newParent(t, "10", "20")
	req := dto.ReceiveUnitsRequest{}
	for i := 0; i < searchLimit+5; i++ {
		req.Units = append(req.Units, dto.ReceiveUnitRequest{Serial: fmt.Sprintf("CAP-%03d", i)})
	}
	res, err := e.units.ReceiveUnits(context.Background(), parentID, req)
	require.NoError(t, err)
	require.Equal(t, searchLimit+5, res.Created)

	got, err := e.units.SearchUnits(context.Background(), "cap-", "")
	require.NoError(t, err)
	require.Len(t, got, searchLimit)
	assert.Equal(t, fmt.Sprintf("CAP-%03d", searchLimit+4), got[0].Serial)
}
