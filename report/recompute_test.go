package report_test

import (
	"context"
	"errors"
	"testing"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
	"github.com/banca/commission-engine/store/memory"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

// recomputeFixture holds a seller whose policy has moved from the 5%
// frozen on the stored snapshots to a flat 8%.
func recomputeFixture(enforce bool) (*memory.Store, *report.Recomputer) {
	store := memory.New()
	store.SaveActor("seller-1", "Vendedor Uno", commission.MarshalPolicy(commission.FlatPolicy(8)))

	store.SaveTicket(ticket("t-1", "seller-1"))
	store.SaveJugada(jugada("j-1", "t-1", 1000, 5, 0))
	store.SaveJugada(jugada("j-2", "t-1", 500, 5, 0))

	resolver := commission.NewResolver(store, store, commission.OriginSeller, enforce)
	return store, report.NewRecomputer(store, store, resolver, store)
}

// =============================================================================
// DRY RUN
// =============================================================================

func TestRecompute_DryRun_ProposesWithoutWriting(t *testing.T) {
	// GIVEN: Snapshots frozen at 5% while current policy says 8%
	// WHEN: Recomputing with apply=false
	// THEN: Changes are proposed but nothing in the store moves

	store, recomputer := recomputeFixture(false)
	changes, err := recomputer.Recompute(context.Background(), []report.TicketID{"t-1"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("expected 2 proposed changes, got %d", len(changes))
	}
	for _, c := range changes {
		if c.Applied {
			t.Errorf("dry run must not mark changes applied: %+v", c)
		}
		if !c.OldPercent.Equal(dec(5)) || !c.NewPercent.Equal(dec(8)) {
			t.Errorf("expected 5%% -> 8%%, got %v -> %v", c.OldPercent, c.NewPercent)
		}
	}

	// The stored snapshots are untouched.
	lines, err := store.LinesForTickets(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, line := range lines {
		if !line.Jugada.CommissionPercent.Equal(dec(5)) {
			t.Errorf("dry run mutated a snapshot: %+v", line.Jugada)
		}
	}
}

// =============================================================================
// APPLY
// =============================================================================

func TestRecompute_Apply_RewritesAndAudits(t *testing.T) {
	// GIVEN: The same drifted snapshots
	// WHEN: Recomputing with apply=true
	// THEN: Snapshots are rewritten and each rewrite is audited

	store, recomputer := recomputeFixture(false)
	changes, err := recomputer.Recompute(context.Background(), []report.TicketID{"t-1"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range changes {
		if !c.Applied {
			t.Errorf("expected applied change, got %+v", c)
		}
	}

	lines, err := store.LinesForTickets(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, line := range lines {
		j := line.Jugada
		if !j.CommissionPercent.Equal(dec(8)) {
			t.Errorf("expected rewritten percent 8, got %v", j.CommissionPercent)
		}
		if !j.CommissionAmount.Equal(commission.CommissionAmount(j.Sale, dec(8))) {
			t.Errorf("amount not recomputed: %+v", j)
		}
	}

	events, err := store.Query(context.Background(), commission.AuditFilter{
		Actions: []commission.AuditAction{commission.AuditRecomputed},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 recompute audit events, got %d", len(events))
	}
	for _, e := range events {
		if e.Reference == "" {
			t.Errorf("recompute audit event must reference its jugada: %+v", e)
		}
	}
}

// =============================================================================
// ALL-OR-NOTHING
// =============================================================================

func TestRecompute_ResolutionFailure_AbortsBeforeWrites(t *testing.T) {
	// GIVEN: A reventado line that resolves to 0% with enforcement on
	// WHEN: Recomputing with apply=true
	// THEN: The batch fails and no snapshot is touched

	store := memory.New()
	store.SaveActor("seller-1", "Vendedor Uno", commission.MarshalPolicy(commission.FlatPolicy(0)))
	store.SaveTicket(ticket("t-1", "seller-1"))

	reventado := jugada("j-1", "t-1", 1000, 5, 0)
	reventado.BetType = commission.BetReventado
	m := dec(50)
	reventado.FinalMultiplier = &m
	store.SaveJugada(reventado)
	store.SaveJugada(jugada("j-2", "t-1", 500, 5, 0))

	resolver := commission.NewResolver(store, store, commission.OriginSeller, true)
	recomputer := report.NewRecomputer(store, store, resolver, store)

	_, err := recomputer.Recompute(context.Background(), []report.TicketID{"t-1"}, true)
	if !errors.Is(err, commission.ErrCommissionRuleMissing) {
		t.Fatalf("expected ErrCommissionRuleMissing, got %v", err)
	}

	lines, err := store.LinesForTickets(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, line := range lines {
		if !line.Jugada.CommissionPercent.Equal(dec(5)) {
			t.Errorf("aborted batch must not write: %+v", line.Jugada)
		}
	}
}
