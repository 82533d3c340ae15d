// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
)

// =============================================================================
// MEMORY STORE - Implements every storage interface of the engine
// =============================================================================

// Store is a thread-safe in-memory implementation of
// commission.PolicyStore, commission.AuditLog, report.LineStore,
// report.GroupedReader and report.CommissionUpdater.
type Store struct {
	mu sync.RWMutex

	actors    map[commission.ActorID]actorRecord
	lotteries map[commission.LotteryID]string
	draws     map[report.DrawID]string

	tickets map[report.TicketID]report.Ticket
	jugadas map[report.TicketID][]report.Jugada

	audit []commission.AuditEvent
}

type actorRecord struct {
	Name   string
	Policy []byte // nil = actor has no policy
}

func New() *Store {
	return &Store{
		actors:    make(map[commission.ActorID]actorRecord),
		lotteries: make(map[commission.LotteryID]string),
		draws:     make(map[report.DrawID]string),
		tickets:   make(map[report.TicketID]report.Ticket),
		jugadas:   make(map[report.TicketID][]report.Jugada),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) SaveActor(id commission.ActorID, name string, policy []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[id] = actorRecord{Name: name, Policy: policy}
}

func (s *Store) SaveLottery(id commission.LotteryID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lotteries[id] = name
}

func (s *Store) SaveDraw(id report.DrawID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws[id] = name
}

func (s *Store) SaveTicket(t report.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
}

func (s *Store) SaveJugada(j report.Jugada) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jugadas[j.TicketID] = append(s.jugadas[j.TicketID], j)
}

// =============================================================================
// POLICY STORE
// =============================================================================

func (s *Store) ActorPolicy(_ context.Context, actorID commission.ActorID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actor, ok := s.actors[actorID]
	if !ok {
		return nil, commission.ErrActorNotFound
	}
	if actor.Policy == nil {
		return nil, nil
	}
	out := make([]byte, len(actor.Policy))
	copy(out, actor.Policy)
	return out, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(_ context.Context, event commission.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, event)
	return nil
}

func (s *Store) Query(_ context.Context, filter commission.AuditFilter) ([]commission.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []commission.AuditEvent
	for _, event := range s.audit {
		if !matchesAudit(event, filter) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func matchesAudit(event commission.AuditEvent, filter commission.AuditFilter) bool {
	if filter.ActorID != nil && event.ActorID != *filter.ActorID {
		return false
	}
	if len(filter.Actions) > 0 {
		found := false
		for _, action := range filter.Actions {
			if event.Action == action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.From != nil && event.At.Before(*filter.From) {
		return false
	}
	if filter.To != nil && event.At.After(*filter.To) {
		return false
	}
	return true
}

// =============================================================================
// LINE STORE
// =============================================================================

func (s *Store) LinesForTickets(_ context.Context, ids []report.TicketID) ([]report.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []report.Line
	for _, id := range ids {
		ticket, ok := s.tickets[id]
		if !ok {
			continue
		}
		for _, j := range s.jugadas[id] {
			out = append(out, report.Line{Ticket: ticket, Jugada: j})
		}
	}
	return out, nil
}

func (s *Store) LinesForPeriod(_ context.Context, filter report.Filter) ([]report.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eligibleLines(filter), nil
}

// eligibleLines mirrors the SQL predicate: base eligibility plus the
// filter's equality and inclusive date constraints.
func (s *Store) eligibleLines(filter report.Filter) []report.Line {
	var out []report.Line
	for id, ticket := range s.tickets {
		if !report.MatchesFilter(ticket, filter) {
			continue
		}
		for _, j := range s.jugadas[id] {
			line := report.Line{Ticket: ticket, Jugada: j}
			if line.EligibleForPeriod() {
				out = append(out, line)
			}
		}
	}
	return out
}

// =============================================================================
// GROUPED READER
// =============================================================================

func (s *Store) AggregateBy(_ context.Context, dim report.Dimension, filter report.Filter) (map[string]report.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := report.Fold(dim, s.eligibleLines(filter))

	// The fold only knows ids; fill in display names where we have them.
	for key, agg := range groups {
		if name := s.displayName(dim, key); name != "" {
			agg.DisplayName = name
			groups[key] = agg
		}
	}
	return groups, nil
}

func (s *Store) displayName(dim report.Dimension, key string) string {
	switch dim {
	case report.DimWindow, report.DimSeller:
		return s.actors[commission.ActorID(key)].Name
	case report.DimLottery:
		return s.lotteries[commission.LotteryID(key)]
	case report.DimDraw:
		return s.draws[report.DrawID(key)]
	default:
		return ""
	}
}

// =============================================================================
// COMMISSION UPDATER - Administrative recompute only
// =============================================================================

func (s *Store) UpdateJugadaCommission(_ context.Context, id report.JugadaID, percent, amount decimal.Decimal, origin *commission.Origin, ruleID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ticketID, jugadas := range s.jugadas {
		for i := range jugadas {
			if jugadas[i].ID != id {
				continue
			}
			jugadas[i].CommissionPercent = percent
			jugadas[i].CommissionAmount = amount
			jugadas[i].CommissionOrigin = origin
			jugadas[i].CommissionRuleID = ruleID
			s.jugadas[ticketID] = jugadas
			return nil
		}
	}
	return commission.ErrJugadaNotFound
}
