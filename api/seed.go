/*
seed.go - Development seed data

PURPOSE:
  Loads a small, deterministic data set so a fresh database has actors,
  policies, tickets and bet lines to exercise every endpoint. Intended
  for local development only; production databases are populated by the
  bet-capture pipeline.

DATA SET:
  - One bank, two windows, two sellers. Sellers carry policies built
    from the presets: one flat, one banded with a reventado section.
  - Two lotteries, one draw each.
  - Four tickets across two business dates, with their commission
    snapshots frozen through the real resolver so seeded data is
    consistent with what the engine would have written.

SEE ALSO:
  - commission/presets.go: Policy document builders
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
	"github.com/banca/commission-engine/store/sqlite"
)

// Seed populates the store with the development data set. It is
// idempotent: actors and tickets are upserts keyed by id.
func Seed(ctx context.Context, store *sqlite.Store) error {
	if err := seedActors(ctx, store); err != nil {
		return err
	}
	if err := seedLotteries(ctx, store); err != nil {
		return err
	}
	return seedTickets(ctx, store)
}

func seedActors(ctx context.Context, store *sqlite.Store) error {
	flat := commission.MarshalPolicy(commission.FlatPolicy(5))
	banded := commission.MarshalPolicy(commission.ReventadoPolicy(4, []commission.Band{
		{Min: 1, Max: 50, Percent: 3},
		{Min: 51, Max: 200, Percent: 6},
	}))

	actors := []sqlite.Actor{
		{ID: "bank-1", Tier: commission.OriginBank, Name: "Banca Central"},
		{ID: "window-1", Tier: commission.OriginWindow, Name: "Ventanilla Centro"},
		{ID: "window-2", Tier: commission.OriginWindow, Name: "Ventanilla Mercado"},
		{ID: "seller-1", Tier: commission.OriginSeller, Name: "Vendedor Uno", Policy: flat},
		{ID: "seller-2", Tier: commission.OriginSeller, Name: "Vendedor Dos", Policy: banded},
	}
	for _, a := range actors {
		if err := store.SaveActor(ctx, a); err != nil {
			return fmt.Errorf("seed actor %s: %w", a.ID, err)
		}
	}
	return nil
}

func seedLotteries(ctx context.Context, store *sqlite.Store) error {
	if err := store.SaveLottery(ctx, "lot-nac", "Nacional"); err != nil {
		return err
	}
	if err := store.SaveLottery(ctx, "lot-tie", "Tiempos"); err != nil {
		return err
	}
	if err := store.SaveDraw(ctx, "draw-nac-noche", "lot-nac", "Nacional Noche"); err != nil {
		return err
	}
	return store.SaveDraw(ctx, "draw-tie-tarde", "lot-tie", "Tiempos Tarde")
}

type seedBet struct {
	jugadaID   report.JugadaID
	betType    commission.BetType
	sale       decimal.Decimal
	multiplier *decimal.Decimal
	listero    decimal.Decimal
}

func seedTickets(ctx context.Context, store *sqlite.Store) error {
	resolver := commission.NewResolver(store, store, commission.OriginSeller, false)

	day1 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	mult := func(f float64) *decimal.Decimal {
		d := decimal.NewFromFloat(f)
		return &d
	}

	tickets := []struct {
		ticket report.Ticket
		bets   []seedBet
	}{
		{
			ticket: report.Ticket{
				ID: "ticket-1", WindowID: "window-1", SellerID: "seller-1", BankID: "bank-1",
				LotteryID: "lot-nac", DrawID: "draw-nac-noche",
				Status: report.StatusActive, Active: true, BusinessDate: day1,
			},
			bets: []seedBet{
				{jugadaID: "jugada-1a", betType: commission.BetNumero, sale: decimal.NewFromInt(1000), listero: decimal.NewFromInt(20)},
				{jugadaID: "jugada-1b", betType: commission.BetNumero, sale: decimal.NewFromInt(500), listero: decimal.Zero},
			},
		},
		{
			ticket: report.Ticket{
				ID: "ticket-2", WindowID: "window-1", SellerID: "seller-2", BankID: "bank-1",
				LotteryID: "lot-nac", DrawID: "draw-nac-noche",
				Status: report.StatusEvaluated, Active: true, BusinessDate: day1,
			},
			bets: []seedBet{
				{jugadaID: "jugada-2a", betType: commission.BetReventado, sale: decimal.NewFromInt(2000), multiplier: mult(100), listero: decimal.NewFromInt(50)},
			},
		},
		{
			ticket: report.Ticket{
				ID: "ticket-3", WindowID: "window-2", SellerID: "seller-2", BankID: "bank-1",
				LotteryID: "lot-tie", DrawID: "draw-tie-tarde",
				Status: report.StatusPaid, Active: true, BusinessDate: day2,
			},
			bets: []seedBet{
				{jugadaID: "jugada-3a", betType: commission.BetNumero, sale: decimal.NewFromInt(750), listero: decimal.Zero},
				{jugadaID: "jugada-3b", betType: commission.BetReventado, sale: decimal.NewFromInt(300), multiplier: mult(25), listero: decimal.NewFromInt(10)},
			},
		},
		{
			// Cancelled ticket: stays out of every report.
			ticket: report.Ticket{
				ID: "ticket-4", WindowID: "window-2", SellerID: "seller-1", BankID: "bank-1",
				LotteryID: "lot-tie", DrawID: "draw-tie-tarde",
				Status: report.StatusCancelled, Active: true, BusinessDate: day2,
			},
			bets: []seedBet{
				{jugadaID: "jugada-4a", betType: commission.BetNumero, sale: decimal.NewFromInt(100), listero: decimal.Zero},
			},
		},
	}

	for _, entry := range tickets {
		if err := store.SaveTicket(ctx, entry.ticket); err != nil {
			return fmt.Errorf("seed ticket %s: %w", entry.ticket.ID, err)
		}
		for _, bet := range entry.bets {
			res, err := resolver.Resolve(ctx, commission.ResolutionInput{
				ActorID:         entry.ticket.SellerID,
				LotteryID:       entry.ticket.LotteryID,
				BetType:         bet.betType,
				FinalMultiplier: bet.multiplier,
			})
			if err != nil {
				return fmt.Errorf("seed resolve %s: %w", bet.jugadaID, err)
			}
			origin := res.Origin
			jugada := report.Jugada{
				ID:                bet.jugadaID,
				TicketID:          entry.ticket.ID,
				BetType:           bet.betType,
				Sale:              bet.sale,
				FinalMultiplier:   bet.multiplier,
				CommissionPercent: res.Percent,
				CommissionAmount:  commission.CommissionAmount(bet.sale, res.Percent),
				CommissionOrigin:  &origin,
				CommissionRuleID:  res.RuleID,
				ListeroAmount:     bet.listero,
			}
			if err := store.SaveJugada(ctx, jugada); err != nil {
				return fmt.Errorf("seed jugada %s: %w", bet.jugadaID, err)
			}
		}
	}
	return nil
}
