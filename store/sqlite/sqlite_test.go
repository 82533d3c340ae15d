package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
	"github.com/banca/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(d int) time.Time {
	return time.Date(2026, time.August, d, 0, 0, 0, 0, time.UTC)
}

func saveTicket(t *testing.T, store *sqlite.Store, ticket report.Ticket) {
	require.NoError(t, store.SaveTicket(context.Background(), ticket))
}

func saveJugada(t *testing.T, store *sqlite.Store, j report.Jugada) {
	require.NoError(t, store.SaveJugada(context.Background(), j))
}

func testTicket(id string, businessDay int) report.Ticket {
	return report.Ticket{
		ID:           report.TicketID(id),
		WindowID:     "window-1",
		SellerID:     "seller-1",
		BankID:       "bank-1",
		LotteryID:    "lot-1",
		DrawID:       "draw-1",
		Status:       report.StatusActive,
		Active:       true,
		BusinessDate: day(businessDay),
	}
}

func testJugada(id, ticketID string, sale, percent float64) report.Jugada {
	s := dec(sale)
	p := dec(percent)
	origin := commission.OriginSeller
	return report.Jugada{
		ID:                report.JugadaID(id),
		TicketID:          report.TicketID(ticketID),
		BetType:           commission.BetNumero,
		Sale:              s,
		CommissionPercent: p,
		CommissionAmount:  commission.CommissionAmount(s, p),
		CommissionOrigin:  &origin,
	}
}

// =============================================================================
// ACTOR / POLICY STORE
// =============================================================================

func TestActorPolicy_RoundTrip(t *testing.T) {
	// GIVEN: An actor saved with a policy blob
	// WHEN: Loading the policy
	// THEN: The blob comes back byte-for-byte

	store := newTestStore(t)
	ctx := context.Background()

	raw := commission.MarshalPolicy(commission.FlatPolicy(5))
	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{
		ID: "seller-1", Tier: commission.OriginSeller, Name: "Vendedor Uno", Policy: raw,
	}))

	loaded, err := store.ActorPolicy(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, raw, loaded)
}

func TestActorPolicy_NoPolicy_NilWithoutError(t *testing.T) {
	// GIVEN: An actor saved with no policy
	// WHEN: Loading the policy
	// THEN: nil blob, nil error - an existing actor without a policy is fine

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{
		ID: "window-1", Tier: commission.OriginWindow, Name: "Ventanilla",
	}))

	loaded, err := store.ActorPolicy(ctx, "window-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestActorPolicy_UnknownActor_NotFound(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Loading a policy for an unknown actor
	// THEN: ErrActorNotFound

	store := newTestStore(t)

	_, err := store.ActorPolicy(context.Background(), "ghost")
	assert.ErrorIs(t, err, commission.ErrActorNotFound)
}

func TestSaveActor_Upsert_ReplacesPolicy(t *testing.T) {
	// GIVEN: An actor saved twice with different policies
	// WHEN: Loading
	// THEN: The second policy wins

	store := newTestStore(t)
	ctx := context.Background()

	first := commission.MarshalPolicy(commission.FlatPolicy(5))
	second := commission.MarshalPolicy(commission.FlatPolicy(7))
	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{ID: "s-1", Tier: commission.OriginSeller, Name: "A", Policy: first}))
	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{ID: "s-1", Tier: commission.OriginSeller, Name: "A", Policy: second}))

	loaded, err := store.ActorPolicy(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

// =============================================================================
// LINE STORE
// =============================================================================

func TestLinesForTickets_RoundTripsAllFields(t *testing.T) {
	// GIVEN: A ticket with a fully-populated jugada
	// WHEN: Reading it back
	// THEN: Every field round-trips, money exactly at céntimo precision

	store := newTestStore(t)
	ctx := context.Background()

	saveTicket(t, store, testTicket("t-1", 10))

	m := dec(42.5)
	ruleID := "r-1"
	j := testJugada("j-1", "t-1", 1234.56, 5.5)
	j.BetType = commission.BetReventado
	j.FinalMultiplier = &m
	j.CommissionRuleID = &ruleID
	j.ListeroAmount = dec(12.34)
	saveJugada(t, store, j)

	lines, err := store.LinesForTickets(ctx, []report.TicketID{"t-1"})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	got := lines[0].Jugada
	assert.True(t, got.Sale.Equal(dec(1234.56)), "sale: %v", got.Sale)
	assert.True(t, got.CommissionPercent.Equal(dec(5.5)), "percent: %v", got.CommissionPercent)
	assert.True(t, got.ListeroAmount.Equal(dec(12.34)), "listero: %v", got.ListeroAmount)
	require.NotNil(t, got.FinalMultiplier)
	assert.True(t, got.FinalMultiplier.Equal(m))
	require.NotNil(t, got.CommissionRuleID)
	assert.Equal(t, ruleID, *got.CommissionRuleID)
	require.NotNil(t, got.CommissionOrigin)
	assert.Equal(t, commission.OriginSeller, *got.CommissionOrigin)

	ticket := lines[0].Ticket
	assert.Equal(t, report.StatusActive, ticket.Status)
	assert.True(t, ticket.Active)
	assert.True(t, ticket.BusinessDate.Equal(day(10)))
}

func TestLinesForTickets_EmptyInput_NoQuery(t *testing.T) {
	store := newTestStore(t)

	lines, err := store.LinesForTickets(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLinesForPeriod_BaseEligibilityApplied(t *testing.T) {
	// GIVEN: Eligible, cancelled, inactive and soft-deleted tickets
	// WHEN: Reading an open period
	// THEN: Only the eligible ticket's lines come back

	store := newTestStore(t)
	ctx := context.Background()

	saveTicket(t, store, testTicket("t-live", 10))
	saveJugada(t, store, testJugada("j-live", "t-live", 100, 5))

	cancelled := testTicket("t-cancelled", 10)
	cancelled.Status = report.StatusCancelled
	saveTicket(t, store, cancelled)
	saveJugada(t, store, testJugada("j-cancelled", "t-cancelled", 100, 5))

	inactive := testTicket("t-inactive", 10)
	inactive.Active = false
	saveTicket(t, store, inactive)
	saveJugada(t, store, testJugada("j-inactive", "t-inactive", 100, 5))

	deleted := testTicket("t-deleted", 10)
	at := day(11)
	deleted.DeletedAt = &at
	saveTicket(t, store, deleted)
	saveJugada(t, store, testJugada("j-deleted", "t-deleted", 100, 5))

	saveTicket(t, store, testTicket("t-gone-line", 10))
	goneLine := testJugada("j-gone", "t-gone-line", 100, 5)
	goneLine.DeletedAt = &at
	saveJugada(t, store, goneLine)

	lines, err := store.LinesForPeriod(ctx, report.Filter{})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, report.JugadaID("j-live"), lines[0].Jugada.ID)
}

func TestLinesForPeriod_InclusiveDateBounds(t *testing.T) {
	// GIVEN: Tickets on days 10, 11 and 12
	// WHEN: Filtering [day 10, day 11]
	// THEN: Both boundary days are included, day 12 is not

	store := newTestStore(t)
	ctx := context.Background()

	for i, d := range []int{10, 11, 12} {
		id := []string{"t-a", "t-b", "t-c"}[i]
		saveTicket(t, store, testTicket(id, d))
		saveJugada(t, store, testJugada("j-"+id, id, 100, 5))
	}

	from := day(10)
	to := day(11)
	lines, err := store.LinesForPeriod(ctx, report.Filter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

// =============================================================================
// GROUPED READER
// =============================================================================

func TestAggregateBy_GroupedSums(t *testing.T) {
	// GIVEN: Two sellers with integer-céntimo snapshots
	// WHEN: Aggregating by seller with the pushed-down query
	// THEN: Sums, distinct ticket counts and jugada counts are exact

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{ID: "seller-1", Tier: commission.OriginSeller, Name: "Vendedor Uno"}))
	require.NoError(t, store.SaveActor(ctx, sqlite.Actor{ID: "seller-2", Tier: commission.OriginSeller, Name: "Vendedor Dos"}))

	saveTicket(t, store, testTicket("t-1", 10))
	saveJugada(t, store, testJugada("j-1", "t-1", 1000, 5)) // 50
	saveJugada(t, store, testJugada("j-2", "t-1", 500, 5))  // 25

	other := testTicket("t-2", 10)
	other.SellerID = "seller-2"
	saveTicket(t, store, other)
	saveJugada(t, store, testJugada("j-3", "t-2", 2000, 4)) // 80

	groups, err := store.AggregateBy(ctx, report.DimSeller, report.Filter{})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	s1 := groups["seller-1"]
	assert.True(t, s1.TotalSales.Equal(dec(1500)), "sales: %v", s1.TotalSales)
	assert.True(t, s1.TotalCommission.Equal(dec(75)), "commission: %v", s1.TotalCommission)
	assert.True(t, s1.TotalVendorCommission.Equal(dec(75)), "vendor: %v", s1.TotalVendorCommission)
	assert.Equal(t, int64(1), s1.TicketCount)
	assert.Equal(t, int64(2), s1.JugadaCount)
	assert.Equal(t, "Vendedor Uno", s1.DisplayName)

	s2 := groups["seller-2"]
	assert.True(t, s2.TotalCommission.Equal(dec(80)), "commission: %v", s2.TotalCommission)
}

func TestAggregateBy_VendorColumnOnlySellerOrigin(t *testing.T) {
	// GIVEN: One seller-origin and one window-origin commission
	// WHEN: Aggregating the grand total
	// THEN: Total includes both, the vendor column only the seller one

	store := newTestStore(t)
	ctx := context.Background()

	saveTicket(t, store, testTicket("t-1", 10))
	saveJugada(t, store, testJugada("j-1", "t-1", 1000, 5)) // seller, 50

	windowPaid := testJugada("j-2", "t-1", 1000, 3) // 30
	windowOrigin := commission.OriginWindow
	windowPaid.CommissionOrigin = &windowOrigin
	saveJugada(t, store, windowPaid)

	groups, err := store.AggregateBy(ctx, report.DimTotal, report.Filter{})
	require.NoError(t, err)
	require.Contains(t, groups, "")

	total := groups[""]
	assert.True(t, total.TotalCommission.Equal(dec(80)), "total: %v", total.TotalCommission)
	assert.True(t, total.TotalVendorCommission.Equal(dec(50)), "vendor: %v", total.TotalVendorCommission)
	assert.Equal(t, report.TotalDisplayName, total.DisplayName)
}

func TestAggregateBy_MatchesInMemoryFold(t *testing.T) {
	// GIVEN: The same rows
	// WHEN: Aggregating via the SQL GROUP BY and via report.Fold
	// THEN: The two paths agree exactly

	store := newTestStore(t)
	ctx := context.Background()

	saveTicket(t, store, testTicket("t-1", 10))
	saveJugada(t, store, testJugada("j-1", "t-1", 1234.56, 5))
	saveJugada(t, store, testJugada("j-2", "t-1", 78.9, 7))

	grouped, err := store.AggregateBy(ctx, report.DimWindow, report.Filter{})
	require.NoError(t, err)

	lines, err := store.LinesForPeriod(ctx, report.Filter{})
	require.NoError(t, err)
	folded := report.Fold(report.DimWindow, lines)

	require.Len(t, grouped, len(folded))
	for key, f := range folded {
		g := grouped[key]
		assert.True(t, g.TotalSales.Equal(f.TotalSales), "sales %q: %v vs %v", key, g.TotalSales, f.TotalSales)
		assert.True(t, g.TotalCommission.Equal(f.TotalCommission), "commission %q", key)
		assert.Equal(t, f.TicketCount, g.TicketCount)
		assert.Equal(t, f.JugadaCount, g.JugadaCount)
	}
}

// =============================================================================
// COMMISSION UPDATER
// =============================================================================

func TestUpdateJugadaCommission_RewritesSnapshot(t *testing.T) {
	// GIVEN: A frozen snapshot at 5%
	// WHEN: The administrative recompute rewrites it to 8%
	// THEN: The new percent, amount and rule id persist

	store := newTestStore(t)
	ctx := context.Background()

	saveTicket(t, store, testTicket("t-1", 10))
	saveJugada(t, store, testJugada("j-1", "t-1", 1000, 5))

	origin := commission.OriginSeller
	ruleID := "r-new"
	require.NoError(t, store.UpdateJugadaCommission(ctx, "j-1", dec(8), dec(80), &origin, &ruleID))

	lines, err := store.LinesForTickets(ctx, []report.TicketID{"t-1"})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	j := lines[0].Jugada
	assert.True(t, j.CommissionPercent.Equal(dec(8)))
	assert.True(t, j.CommissionAmount.Equal(dec(80)))
	require.NotNil(t, j.CommissionRuleID)
	assert.Equal(t, "r-new", *j.CommissionRuleID)
}

func TestUpdateJugadaCommission_UnknownJugada_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateJugadaCommission(context.Background(), "ghost", dec(8), dec(80), nil, nil)
	assert.ErrorIs(t, err, commission.ErrJugadaNotFound)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestAuditLog_AppendAndQuery(t *testing.T) {
	// GIVEN: Resolved and rule-missing events for two actors
	// WHEN: Querying by actor and by action
	// THEN: Filters narrow correctly and fields round-trip

	store := newTestStore(t)
	ctx := context.Background()

	m := dec(50)
	ruleID := "r-1"
	at := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, commission.AuditEvent{
		At: at, Action: commission.AuditResolved,
		ActorID: "seller-1", LotteryID: "lot-1", BetType: commission.BetNumero,
		FinalMultiplier: &m, Percent: dec(5), Origin: commission.OriginSeller, RuleID: &ruleID,
	}))
	require.NoError(t, store.Append(ctx, commission.AuditEvent{
		At: at.Add(time.Minute), Action: commission.AuditRuleMissing,
		ActorID: "seller-2", LotteryID: "lot-1", BetType: commission.BetReventado,
		Percent: dec(0), Origin: commission.OriginSeller,
		ErrorCode: commission.CodeCommissionRuleMissing,
	}))

	actor := commission.ActorID("seller-1")
	events, err := store.Query(ctx, commission.AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, commission.AuditResolved, e.Action)
	assert.True(t, e.At.Equal(at))
	assert.True(t, e.Percent.Equal(dec(5)))
	require.NotNil(t, e.FinalMultiplier)
	assert.True(t, e.FinalMultiplier.Equal(m))
	require.NotNil(t, e.RuleID)
	assert.Equal(t, "r-1", *e.RuleID)

	missing, err := store.Query(ctx, commission.AuditFilter{
		Actions: []commission.AuditAction{commission.AuditRuleMissing},
	})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, commission.CodeCommissionRuleMissing, missing[0].ErrorCode)
}

func TestAuditLog_FractionalSecondBoundary(t *testing.T) {
	// GIVEN: An event stamped on a whole second and one a second later
	// WHEN: Querying with a fractional-second upper bound between them
	// THEN: The whole-second event is included; stored timestamps must
	//       compare chronologically even when the bound carries a fraction

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{base, base.Add(time.Second)} {
		require.NoError(t, store.Append(ctx, commission.AuditEvent{
			At: at, Action: commission.AuditResolved,
			ActorID: commission.ActorID([]string{"seller-1", "seller-2"}[i]),
			Percent: dec(5), Origin: commission.OriginSeller,
		}))
	}

	to := base.Add(500 * time.Millisecond)
	events, err := store.Query(ctx, commission.AuditFilter{To: &to})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, commission.ActorID("seller-1"), events[0].ActorID)

	from := base.Add(500 * time.Millisecond)
	events, err = store.Query(ctx, commission.AuditFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, commission.ActorID("seller-2"), events[0].ActorID)
}

func TestAuditLog_TimeRangeFilter(t *testing.T) {
	// GIVEN: Events one hour apart
	// WHEN: Querying a window around the first
	// THEN: Only the first comes back

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, commission.AuditEvent{
			At: base.Add(time.Duration(i) * time.Hour), Action: commission.AuditResolved,
			ActorID: "seller-1", Percent: dec(5), Origin: commission.OriginSeller,
		}))
	}

	from := base.Add(-time.Minute)
	to := base.Add(time.Minute)
	events, err := store.Query(ctx, commission.AuditFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
