package report_test

import (
	"context"
	"testing"

	"github.com/banca/commission-engine/report"
	"github.com/banca/commission-engine/store/memory"
)

// =============================================================================
// SNAPSHOT CONSISTENCY
// =============================================================================

func TestValidate_ConsistentSnapshots_Valid(t *testing.T) {
	// GIVEN: Snapshots whose stored amounts match sale*percent/100 exactly
	// WHEN: Validating
	// THEN: The report is valid with empty findings

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))
	store.SaveJugada(jugada("j-1", "t-1", 1000, 5, 0))
	store.SaveJugada(jugada("j-2", "t-1", 250, 8, 0))

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("expected valid report, got %+v", result)
	}
	if len(result.MissingSnapshots) != 0 || len(result.InvalidSnapshots) != 0 {
		t.Errorf("expected empty findings, got %+v", result)
	}
}

func TestValidate_DriftedAmount_Invalid(t *testing.T) {
	// GIVEN: A stored amount off by a whole unit (expected 50, stored 51)
	// WHEN: Validating
	// THEN: The jugada is reported as a mismatch

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))

	drifted := jugada("j-1", "t-1", 1000, 5, 0)
	drifted.CommissionAmount = dec(51)
	store.SaveJugada(drifted)

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("expected invalid report")
	}
	if len(result.InvalidSnapshots) != 1 {
		t.Fatalf("expected one mismatch, got %d", len(result.InvalidSnapshots))
	}
	m := result.InvalidSnapshots[0]
	if !m.Expected.Equal(dec(50)) || !m.Stored.Equal(dec(51)) {
		t.Errorf("unexpected mismatch: expected=%v stored=%v", m.Expected, m.Stored)
	}
}

func TestValidate_DriftWithinTolerance_Valid(t *testing.T) {
	// GIVEN: Expected 10.00, stored 10.009 (within the 0.01 tolerance)
	// WHEN: Validating
	// THEN: The céntimo-rounding drift is accepted

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))

	rounded := jugada("j-1", "t-1", 100, 10, 0)
	rounded.CommissionAmount = dec(10.009)
	store.SaveJugada(rounded)

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected drift within tolerance to pass, got %+v", result)
	}
}

func TestValidate_DriftJustOverTolerance_Invalid(t *testing.T) {
	// GIVEN: Expected 10.00, stored 10.011 (just over the 0.01 tolerance)
	// WHEN: Validating
	// THEN: The snapshot is invalid

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))

	drifted := jugada("j-1", "t-1", 100, 10, 0)
	drifted.CommissionAmount = dec(10.011)
	store.SaveJugada(drifted)

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Errorf("expected drift over tolerance to fail, got %+v", result)
	}
}

func TestValidate_UnknownTicket_ReportedMissing(t *testing.T) {
	// GIVEN: One known and one unknown ticket id
	// WHEN: Validating both
	// THEN: The unknown one is missing; the report is invalid, not errored

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))
	store.SaveJugada(jugada("j-1", "t-1", 100, 5, 0))

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1", "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("expected invalid report")
	}
	if len(result.MissingSnapshots) != 1 || result.MissingSnapshots[0] != "ghost" {
		t.Errorf("expected 'ghost' reported missing, got %+v", result.MissingSnapshots)
	}
}

func TestValidate_OnlyDeletedJugadas_ReportedMissing(t *testing.T) {
	// GIVEN: A ticket whose only jugada is soft-deleted
	// WHEN: Validating
	// THEN: Zero eligible rows means missing, same as an unknown ticket

	store := memory.New()
	store.SaveTicket(ticket("t-1", "seller-1"))

	deleted := jugada("j-1", "t-1", 100, 5, 0)
	at := day(11)
	deleted.DeletedAt = &at
	store.SaveJugada(deleted)

	validator := report.NewValidator(store)
	result, err := validator.Validate(context.Background(), []report.TicketID{"t-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid || len(result.MissingSnapshots) != 1 {
		t.Errorf("expected ticket reported missing, got %+v", result)
	}
}
