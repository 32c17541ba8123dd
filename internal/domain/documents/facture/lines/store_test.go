package lines

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/core/id"
)

func newTestStore(t *testing.T, initial []LineItem, opts Options) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DefaultServiceCode = "CONSEIL"
	return NewStore(cfg, testCatalog(), initial, opts)
}

func TestStore_NewInvoiceStartsWithBlankLine(t *testing.T) {
	s := newTestStore(t, nil, Options{})

	require.Equal(t, 1, s.Len())
	line, _ := s.Line(0)
	assert.Equal(t, 1, line.Order)
	assert.Equal(t, "CONSEIL", line.ServiceCode)
	assert.Equal(t, "HEURE", line.UnitCode, "linked default unit is preselected")
	require.NotNil(t, line.Unit)
	assert.Equal(t, "Heure", line.Unit.Name)
	assert.True(t, dec("1").Equal(line.Quantity.Decimal))
	assert.True(t, s.Expanded(0))
	assert.Contains(t, s.Errors(), 0, "initial validation flags the blank description")
}

func TestStore_Initialize(t *testing.T) {
	keep := &ServiceRef{Code: "CONSEIL", Name: "Conseil (cached)"}
	a := conseilLine("Second", "1", "10")
	a.Order = 2
	a.Service = keep
	b := conseilLine("First", "1", "10")
	b.Order = 1
	c := conseilLine("Unnumbered", "1", "10")

	s := newTestStore(t, []LineItem{c, a, b}, Options{EditingExisting: true})

	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "First", lines[0].Description)
	assert.Equal(t, "Second", lines[1].Description)
	assert.Equal(t, "Unnumbered", lines[2].Description)
	assertDenseOrder(t, lines)

	assert.Equal(t, "Conseil (cached)", lines[1].Service.Name, "matching descriptors are preserved")
	assert.Equal(t, "Conseil", lines[0].Service.Name)
	assert.Equal(t, []bool{false, false, false}, s.ExpansionStates())
	assert.Empty(t, s.Errors())
}

func TestStore_InitializeRecomputesStoredTotals(t *testing.T) {
	stale := conseilLine("Audit", "2", "150")
	stale.LineTotal = dec("999")
	blank := conseilLine("Support", "1", "80")
	blank.Quantity.Valid = false

	s := newTestStore(t, []LineItem{stale, blank}, Options{EditingExisting: true})

	lines := s.Lines()
	assert.Equal(t, "300", lines[0].LineTotal.String())
	assert.True(t, lines[1].LineTotal.IsZero(), "a missing quantity yields a zero total")
	assert.Equal(t, "300", s.Total().String())

	require.Equal(t, ResultOK, s.Replace([]LineItem{stale}))
	assert.Equal(t, "300", s.Lines()[0].LineTotal.String())
}

func TestStore_ReadOnly(t *testing.T) {
	var notified int
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{
		ReadOnly: true,
		OnChange: func([]LineItem) { notified++ },
	})

	assert.Equal(t, ResultRejected, s.AddLine("", nil))
	assert.Equal(t, ResultRejected, s.UpdateField(0, FieldDescription, "x"))
	assert.Equal(t, ResultRejected, s.CopyLine(0))
	assert.Equal(t, ResultRejected, s.Reorder(0, 0))
	assert.Equal(t, ResultRejected, s.Replace(nil))
	assert.Equal(t, "Audit", s.Lines()[0].Description)
	assert.False(t, s.Expanded(0))

	assert.Equal(t, ResultOK, s.ToggleExpansion(0), "expansion is presentational")
	assert.True(t, s.Expanded(0))
	assert.Zero(t, notified)
}

func TestStore_ReadOnlyEmptyHasNoLines(t *testing.T) {
	s := newTestStore(t, nil, Options{ReadOnly: true})
	assert.Zero(t, s.Len())
}

func TestStore_AddLine(t *testing.T) {
	var got []LineItem
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{
		EditingExisting: true,
		OnChange:        func(l []LineItem) { got = l },
	})

	require.Equal(t, ResultOK, s.AddLine("FORFAIT", nil))
	require.Equal(t, ResultOK, s.AddLine("CONSEIL", map[string]string{"CONSEIL": "JOUR"}))
	require.Equal(t, ResultOK, s.AddLine("", nil))

	lines := s.Lines()
	require.Len(t, lines, 4)
	assertDenseOrder(t, lines)
	assert.Equal(t, "UNITE", lines[1].UnitCode)
	assert.Equal(t, "JOUR", lines[2].UnitCode, "explicit default table wins")
	assert.Empty(t, lines[3].ServiceCode)
	assert.Empty(t, lines[3].UnitCode)
	assert.Equal(t, []bool{false, true, true, true}, s.ExpansionStates())
	assert.Equal(t, lines, got)
}

func TestStore_AddLineUnresolvableDefault(t *testing.T) {
	s := newTestStore(t, nil, Options{})

	require.Equal(t, ResultOK, s.AddLine("DIVERS", nil))
	line, _ := s.Line(1)
	assert.Equal(t, "DIVERS", line.ServiceCode)
	assert.Empty(t, line.UnitCode)
	assert.Nil(t, line.Unit)
}

func TestStore_TotalFollowsQuantityAndPrice(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "2", "150")}, Options{})

	steps := []struct {
		field Field
		value any
		want  string
	}{
		{FieldQuantity, "3", "450"},
		{FieldUnitPrice, "99,99", "299.97"},
		{FieldQuantity, 1.5, "149.99"},
		{FieldUnitPrice, "abc", "0"},
		{FieldUnitPrice, 10, "15"},
	}

	for _, step := range steps {
		require.Equal(t, ResultOK, s.UpdateField(0, step.field, step.value))
		line, _ := s.Line(0)
		assert.True(t, dec(step.want).Equal(line.LineTotal), "after %s=%v got %s", step.field, step.value, line.LineTotal)
		assert.True(t, line.LineTotal.Equal(LineTotal(line.Quantity, line.UnitPrice)))
	}
}

func TestStore_UpdateFieldsIsAtomic(t *testing.T) {
	var notifications [][]LineItem
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{
		OnChange: func(l []LineItem) { notifications = append(notifications, l) },
	})
	before := s.Version()

	res := s.UpdateFields(0, Patch{
		UnitPrice: lo.ToPtr(nd("20")),
		Quantity:  lo.ToPtr(nd("3")),
	})

	require.Equal(t, ResultOK, res)
	assert.Equal(t, before+1, s.Version(), "one settled state")
	require.Len(t, notifications, 1)
	assert.True(t, dec("60").Equal(notifications[0][0].LineTotal))
}

func TestStore_ServiceChangeCascadesUnit(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})

	require.Equal(t, ResultOK, s.UpdateField(0, FieldServiceCode, "FORFAIT"))
	line, _ := s.Line(0)
	assert.Equal(t, "FORFAIT", line.ServiceCode)
	assert.Equal(t, "Forfait", line.Service.Name)
	assert.Equal(t, "UNITE", line.UnitCode)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldServiceCode, "DIVERS"))
	line, _ = s.Line(0)
	assert.Empty(t, line.UnitCode, "stale unit is cleared when no default resolves")
	assert.Nil(t, line.Unit)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldServiceCode, "GHOST"))
	line, _ = s.Line(0)
	assert.True(t, line.Service.Unknown)
}

func TestStore_ServiceAndUnitInOnePatch(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})

	svc, unitCode := "FORFAIT", "JOUR"
	require.Equal(t, ResultOK, s.UpdateFields(0, Patch{ServiceCode: &svc, UnitCode: &unitCode}))

	line, _ := s.Line(0)
	assert.Equal(t, "JOUR", line.UnitCode, "explicit unit wins over the service default")
}

func TestStore_SameServiceKeepsUnit(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})
	require.Equal(t, ResultOK, s.UpdateField(0, FieldUnitCode, "JOUR"))

	require.Equal(t, ResultOK, s.UpdateField(0, FieldServiceCode, "CONSEIL"))
	line, _ := s.Line(0)
	assert.Equal(t, "JOUR", line.UnitCode)
}

func TestStore_UnitUpdates(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})

	require.Equal(t, ResultOK, s.UpdateField(0, FieldUnitCode, "MOIS"))
	line, _ := s.Line(0)
	assert.Equal(t, UnitRef{Code: "MOIS", Name: "MOIS", Synthesized: true}, *line.Unit)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldUnit, UnitRef{Code: "JOUR", Name: "day"}))
	line, _ = s.Line(0)
	assert.Equal(t, "JOUR", line.UnitCode)
	assert.Equal(t, "Jour", line.Unit.Name)
}

func TestStore_UpdateFieldRejectsLineTotal(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})
	before := s.Version()

	assert.Equal(t, ResultRejected, s.UpdateField(0, FieldLineTotal, "999"))
	assert.Equal(t, ResultRejected, s.UpdateField(0, FieldQuantity, struct{}{}))
	assert.Equal(t, before, s.Version())
}

func TestStore_DatesDescriptionDerivesQuantity(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "100")}, Options{})

	require.Equal(t, ResultOK, s.UpdateField(0, FieldDatesDescription, "03.05.2024, 04.05.2024, 05.05.2024"))
	line, _ := s.Line(0)
	assert.True(t, dec("3").Equal(line.Quantity.Decimal))
	assert.True(t, dec("300").Equal(line.LineTotal))

	require.Equal(t, ResultOK, s.UpdateField(0, FieldDatesDescription, "mornings only"))
	line, _ = s.Line(0)
	assert.True(t, dec("3").Equal(line.Quantity.Decimal), "text without dates leaves quantity alone")

	dates := "03.05.2024"
	qty := nd("7")
	require.Equal(t, ResultOK, s.UpdateFields(0, Patch{DatesDescription: &dates, Quantity: &qty}))
	line, _ = s.Line(0)
	assert.True(t, dec("7").Equal(line.Quantity.Decimal), "explicit quantity wins")
}

func TestStore_IndexOutOfRange(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})
	before := s.Version()

	assert.Equal(t, ResultIndexOutOfRange, s.UpdateField(5, FieldDescription, "x"))
	assert.Equal(t, ResultIndexOutOfRange, s.UpdateField(-1, FieldDescription, "x"))
	assert.Equal(t, ResultIndexOutOfRange, s.RemoveLine(3))
	assert.Equal(t, ResultIndexOutOfRange, s.CopyLine(1))
	assert.Equal(t, ResultIndexOutOfRange, s.ToggleExpansion(1))
	assert.Equal(t, ResultIndexOutOfRange, s.Reorder(0, 1))
	_, res := s.ValidateLine(2)
	assert.Equal(t, ResultIndexOutOfRange, res)
	assert.Equal(t, before, s.Version())
}

func TestStore_RemoveLine(t *testing.T) {
	s := newTestStore(t, []LineItem{
		conseilLine("A", "1", "10"),
		conseilLine("", "1", "10"),
		conseilLine("C", "1", "10"),
		conseilLine("", "1", "10"),
	}, Options{})
	require.Contains(t, s.Errors(), 1)
	require.Contains(t, s.Errors(), 3)
	require.Equal(t, ResultOK, s.ToggleExpansion(2))

	require.Equal(t, ResultOK, s.RemoveLine(1))

	lines := s.Lines()
	require.Len(t, lines, 3)
	assertDenseOrder(t, lines)
	assert.Equal(t, []string{"A", "C", ""}, []string{lines[0].Description, lines[1].Description, lines[2].Description})

	errs := s.Errors()
	assert.NotContains(t, errs, 1, "errors of the removed line are dropped")
	assert.Contains(t, errs, 2, "later errors shift down")
	assert.Equal(t, []bool{true, false, true}, s.ExpansionStates())
}

func TestStore_RemoveLastLineIsRejected(t *testing.T) {
	s := newTestStore(t, nil, Options{})

	assert.Equal(t, ResultRejected, s.RemoveLine(0))
	assert.Equal(t, 1, s.Len())
}

func TestStore_CopyLine(t *testing.T) {
	persisted := id.New()
	line := conseilLine("Site visit", "2", "150")
	line.ID = &persisted
	s := newTestStore(t, []LineItem{line}, Options{EditingExisting: true})

	require.Equal(t, ResultOK, s.CopyLine(0))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Copy of Site visit", lines[1].Description)
	assert.Equal(t, 2, lines[1].Order)
	assert.Nil(t, lines[1].ID)
	assert.NotNil(t, lines[0].ID)
	assert.True(t, lines[1].LineTotal.Equal(lines[0].LineTotal))
	assert.True(t, s.Expanded(1))
}

func TestStore_CopyLineTruncatesDescription(t *testing.T) {
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'é'
	}
	s := newTestStore(t, []LineItem{conseilLine(string(long), "1", "10")}, Options{})

	require.Equal(t, ResultOK, s.CopyLine(0))
	line, _ := s.Line(1)
	assert.Len(t, []rune(line.Description), 200)
	assert.Equal(t, "Copy of ", string([]rune(line.Description)[:8]))
}

func TestStore_ToggleExpansionDoesNotNotify(t *testing.T) {
	var notified int
	s := newTestStore(t, nil, Options{OnChange: func([]LineItem) { notified++ }})
	before := s.Version()

	require.Equal(t, ResultOK, s.ToggleExpansion(0))
	assert.False(t, s.Expanded(0))
	assert.Equal(t, before+1, s.Version())
	assert.Zero(t, notified)
}

func TestStore_Reorder(t *testing.T) {
	s := newTestStore(t, []LineItem{
		conseilLine("A", "1", "10"),
		conseilLine("B", "1", "10"),
		conseilLine("", "1", "10"),
		conseilLine("D", "1", "10"),
	}, Options{EditingExisting: true})
	require.Equal(t, ResultOK, s.ToggleExpansion(2))

	require.Equal(t, ResultOK, s.Reorder(2, 0))

	lines := s.Lines()
	assertDenseOrder(t, lines)
	assert.Equal(t, "", lines[0].Description)
	assert.Equal(t, "A", lines[1].Description)
	assert.Equal(t, "B", lines[2].Description)
	assert.Equal(t, "D", lines[3].Description)
	assert.Contains(t, s.Errors(), 0, "errors travel with the line")
	assert.NotContains(t, s.Errors(), 2)
	assert.Equal(t, []bool{true, false, false, false}, s.ExpansionStates())

	require.Equal(t, ResultOK, s.Reorder(0, 3))
	lines = s.Lines()
	assertDenseOrder(t, lines)
	assert.Equal(t, "", lines[3].Description)
	assert.Contains(t, s.Errors(), 3)
}

func TestStore_ReorderSameIndexIsNoop(t *testing.T) {
	var notified int
	s := newTestStore(t, nil, Options{OnChange: func([]LineItem) { notified++ }})
	before := s.Version()

	assert.Equal(t, ResultOK, s.Reorder(0, 0))
	assert.Equal(t, before, s.Version())
	assert.Zero(t, notified)
}

func TestStore_OrderStaysDense(t *testing.T) {
	s := newTestStore(t, nil, Options{})

	ops := []func() Result{
		func() Result { return s.AddLine("CONSEIL", nil) },
		func() Result { return s.AddLine("FORFAIT", nil) },
		func() Result { return s.CopyLine(1) },
		func() Result { return s.Reorder(3, 0) },
		func() Result { return s.RemoveLine(2) },
		func() Result { return s.AddLine("", nil) },
		func() Result { return s.Reorder(0, 3) },
		func() Result { return s.RemoveLine(0) },
		func() Result { return s.RemoveLine(0) },
		func() Result { return s.RemoveLine(0) },
		func() Result { return s.RemoveLine(0) },
	}

	for i, op := range ops {
		op()
		assertDenseOrder(t, s.Lines())
		require.NotZero(t, s.Len(), "step %d emptied the collection", i)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_EditClearsFieldErrors(t *testing.T) {
	line := conseilLine("", "0", "10")
	s := newTestStore(t, []LineItem{line}, Options{})
	require.Contains(t, s.Errors()[0], FieldDescription)
	require.Contains(t, s.Errors()[0], FieldQuantity)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldDescription, "Audit"))
	errs := s.Errors()
	assert.NotContains(t, errs[0], FieldDescription)
	assert.Contains(t, errs[0], FieldQuantity)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldQuantity, "2"))
	assert.NotContains(t, s.Errors(), 0)
}

func TestStore_ValidateOnDemand(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})
	require.Empty(t, s.Errors())

	require.Equal(t, ResultOK, s.UpdateField(0, FieldQuantity, "-2"))
	assert.Empty(t, s.Errors(), "edits do not validate by themselves")

	errs, res := s.ValidateLine(0)
	require.Equal(t, ResultOK, res)
	assert.Contains(t, errs, FieldQuantity)
	assert.Contains(t, s.Errors(), 0)

	require.Equal(t, ResultOK, s.UpdateField(0, FieldQuantity, "2"))
	assert.Empty(t, s.Validate())
	assert.True(t, s.IsSubmittable())
}

func TestStore_Replace(t *testing.T) {
	var notified int
	s := newTestStore(t, nil, Options{OnChange: func([]LineItem) { notified++ }})

	require.Equal(t, ResultOK, s.Replace([]LineItem{
		conseilLine("A", "1", "10"),
		conseilLine("B", "2", "10"),
	}))
	assert.Equal(t, 2, s.Len())
	assert.True(t, dec("30").Equal(s.Total()))
	assert.Equal(t, 1, notified)

	require.Equal(t, ResultOK, s.Replace(nil))
	assert.Equal(t, 1, s.Len(), "an empty replacement still leaves one line")
}

func TestStore_LinesAreCopies(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})

	lines := s.Lines()
	lines[0].Description = "mutated"

	line, _ := s.Line(0)
	assert.Equal(t, "Audit", line.Description)
}

func TestStore_Warnings(t *testing.T) {
	s := newTestStore(t, []LineItem{conseilLine("Audit", "1", "10")}, Options{})
	assert.Empty(t, s.Warnings())

	require.Equal(t, ResultOK, s.UpdateField(0, FieldUnitCode, "UNITE"))
	assert.Len(t, s.Warnings(), 1)
}

func TestStore_AssignIDs(t *testing.T) {
	var notified int
	kept := id.New()
	first := conseilLine("Audit", "1", "10")
	first.ID = &kept
	s := newTestStore(t, []LineItem{first, conseilLine("Support", "1", "10")}, Options{
		EditingExisting: true,
		OnChange:        func([]LineItem) { notified++ },
	})
	version := s.Version()

	assigned := id.New()
	s.AssignIDs([]*id.ID{lo.ToPtr(id.New()), &assigned, lo.ToPtr(id.New())})

	lines := s.Lines()
	assert.Equal(t, kept, *lines[0].ID, "existing identities are kept")
	require.NotNil(t, lines[1].ID)
	assert.Equal(t, assigned, *lines[1].ID)
	assert.Equal(t, version, s.Version())
	assert.Zero(t, notified)
}
