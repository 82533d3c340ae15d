/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (commission.PolicyStore,
  commission.AuditLog, report.LineStore, report.GroupedReader,
  report.CommissionUpdater) using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

MONEY REPRESENTATION:
  Sale, commission and listero amounts persist as INTEGER céntimos, so
  grouped SUMs stay exact integers: re-running an aggregation over
  unchanged data yields identical totals with no ordering-dependent
  float drift. Percents persist as TEXT decimals; SQL never does
  arithmetic on them.

AGGREGATION PUSHDOWN:
  report.GroupedReader is answered with a single GROUP BY query per
  dimension. All five dimensions share one predicate builder
  (periodPredicate), which also serves LinesForPeriod - an absent filter
  field appends no clause.

KEY TABLES:
  actors:     Distribution network participants; nullable policy blob
  lotteries:  Lottery products (display names)
  draws:      Scheduled drawing events (display names)
  tickets:    Purchase receipts with routing ids, status, business date
  jugadas:    Bet lines with frozen commission snapshot fields
  audit_log:  Append-only trail of commission decisions

IMMUTABILITY:
  jugadas' snapshot columns are written at insert and touched again only
  by UpdateJugadaCommission, which exists solely for the explicitly
  labeled administrative recompute. audit_log has no UPDATE or DELETE.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  during writes.

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - report/snapshot.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Distribution network participants (sellers, windows, banks)
	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		name TEXT NOT NULL,
		policy_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lotteries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS draws (
		id TEXT PRIMARY KEY,
		lottery_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	-- Purchase receipts
	CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		window_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		bank_id TEXT NOT NULL,
		lottery_id TEXT NOT NULL,
		draw_id TEXT NOT NULL,
		status TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		business_date TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_business_date
		ON tickets(business_date);
	CREATE INDEX IF NOT EXISTS idx_tickets_window
		ON tickets(window_id, business_date);
	CREATE INDEX IF NOT EXISTS idx_tickets_seller
		ON tickets(seller_id, business_date);
	CREATE INDEX IF NOT EXISTS idx_tickets_draw
		ON tickets(draw_id);

	-- Bet lines; snapshot columns are frozen at insert
	CREATE TABLE IF NOT EXISTS jugadas (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL REFERENCES tickets(id),
		bet_type TEXT NOT NULL,
		sale_cents INTEGER NOT NULL,
		final_multiplier TEXT,
		commission_percent TEXT NOT NULL,
		commission_cents INTEGER NOT NULL,
		commission_origin TEXT,
		commission_rule_id TEXT,
		listero_cents INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_jugadas_ticket
		ON jugadas(ticket_id);

	-- Append-only audit trail: no UPDATE, no DELETE
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT,
		lottery_id TEXT,
		bet_type TEXT,
		final_multiplier TEXT,
		percent TEXT NOT NULL,
		origin TEXT NOT NULL,
		rule_id TEXT,
		error_code TEXT,
		reference TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_actor
		ON audit_log(actor_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MONEY CONVERSION - INTEGER céntimos in SQL, decimal in Go
// =============================================================================

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

const dateLayout = "2006-01-02"

// auditTimeLayout keeps fractional seconds fixed-width so the audit_log's
// TEXT timestamps sort lexicographically in chronological order; RFC3339Nano
// trims trailing zeros and breaks range comparisons at whole seconds.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// ACTORS / POLICY STORE
// =============================================================================

// Actor is a row of the actors table.
type Actor struct {
	ID     commission.ActorID
	Tier   commission.Origin
	Name   string
	Policy []byte // nil = no policy
}

func (s *Store) SaveActor(ctx context.Context, actor Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var policy any
	if actor.Policy != nil {
		policy = string(actor.Policy)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (id, tier, name, policy_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tier=excluded.tier, name=excluded.name, policy_json=excluded.policy_json`,
		string(actor.ID), string(actor.Tier), actor.Name, policy, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ActorPolicy returns the raw policy blob, nil when the actor carries none.
// Unknown actors surface commission.ErrActorNotFound.
func (s *Store) ActorPolicy(ctx context.Context, actorID commission.ActorID) ([]byte, error) {
	var policy sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT policy_json FROM actors WHERE id = ?`, string(actorID)).Scan(&policy)
	if err == sql.ErrNoRows {
		return nil, commission.ErrActorNotFound
	}
	if err != nil {
		return nil, err
	}
	if !policy.Valid {
		return nil, nil
	}
	return []byte(policy.String), nil
}

func (s *Store) SaveLottery(ctx context.Context, id commission.LotteryID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lotteries (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`, string(id), name)
	return err
}

func (s *Store) SaveDraw(ctx context.Context, id report.DrawID, lotteryID commission.LotteryID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO draws (id, lottery_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET lottery_id=excluded.lottery_id, name=excluded.name`,
		string(id), string(lotteryID), name)
	return err
}

// =============================================================================
// TICKETS AND JUGADAS
// =============================================================================

func (s *Store) SaveTicket(ctx context.Context, t report.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, window_id, seller_id, bank_id, lottery_id, draw_id, status, active, business_date, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, active=excluded.active, deleted_at=excluded.deleted_at`,
		string(t.ID), string(t.WindowID), string(t.SellerID), string(t.BankID),
		string(t.LotteryID), string(t.DrawID), string(t.Status),
		boolToInt(t.Active), t.BusinessDate.UTC().Format(dateLayout), nullTime(t.DeletedAt))
	return err
}

func (s *Store) SaveJugada(ctx context.Context, j report.Jugada) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jugadas (id, ticket_id, bet_type, sale_cents, final_multiplier,
			commission_percent, commission_cents, commission_origin, commission_rule_id,
			listero_cents, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(j.ID), string(j.TicketID), string(j.BetType), toCents(j.Sale),
		nullDecimal(j.FinalMultiplier), j.CommissionPercent.String(), toCents(j.CommissionAmount),
		nullOrigin(j.CommissionOrigin), nullString(j.CommissionRuleID),
		toCents(j.ListeroAmount), nullTime(j.DeletedAt))
	return err
}

// UpdateJugadaCommission rewrites a jugada's snapshot fields. Reserved for
// the administrative recompute; nothing else mutates snapshots.
func (s *Store) UpdateJugadaCommission(ctx context.Context, id report.JugadaID, percent, amount decimal.Decimal, origin *commission.Origin, ruleID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jugadas
		SET commission_percent = ?, commission_cents = ?, commission_origin = ?, commission_rule_id = ?
		WHERE id = ?`,
		percent.String(), toCents(amount), nullOrigin(origin), nullString(ruleID), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return commission.ErrJugadaNotFound
	}
	return nil
}

// =============================================================================
// LINE STORE
// =============================================================================

const lineColumns = `
	t.id, t.window_id, t.seller_id, t.bank_id, t.lottery_id, t.draw_id,
	t.status, t.active, t.business_date, t.deleted_at,
	j.id, j.ticket_id, j.bet_type, j.sale_cents, j.final_multiplier,
	j.commission_percent, j.commission_cents, j.commission_origin,
	j.commission_rule_id, j.listero_cents, j.deleted_at`

func (s *Store) LinesForTickets(ctx context.Context, ids []report.TicketID) ([]report.Line, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM jugadas j
		JOIN tickets t ON t.id = j.ticket_id
		WHERE t.id IN (%s)
		ORDER BY t.id, j.id`, lineColumns, placeholders)

	return s.queryLines(ctx, query, args)
}

func (s *Store) LinesForPeriod(ctx context.Context, filter report.Filter) ([]report.Line, error) {
	predicate, args := periodPredicate(filter)
	query := fmt.Sprintf(`
		SELECT %s
		FROM jugadas j
		JOIN tickets t ON t.id = j.ticket_id
		WHERE %s
		ORDER BY t.business_date, t.id, j.id`, lineColumns, predicate)

	return s.queryLines(ctx, query, args)
}

func (s *Store) queryLines(ctx context.Context, query string, args []any) ([]report.Line, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []report.Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanLine(rows *sql.Rows) (report.Line, error) {
	var (
		t report.Ticket
		j report.Jugada

		active            int
		businessDate      string
		ticketDeleted     sql.NullString
		saleCents         int64
		finalMultiplier   sql.NullString
		commissionPercent string
		commissionCents   int64
		commissionOrigin  sql.NullString
		commissionRuleID  sql.NullString
		listeroCents      int64
		jugadaDeleted     sql.NullString
	)

	err := rows.Scan(
		&t.ID, &t.WindowID, &t.SellerID, &t.BankID, &t.LotteryID, &t.DrawID,
		&t.Status, &active, &businessDate, &ticketDeleted,
		&j.ID, &j.TicketID, &j.BetType, &saleCents, &finalMultiplier,
		&commissionPercent, &commissionCents, &commissionOrigin,
		&commissionRuleID, &listeroCents, &jugadaDeleted,
	)
	if err != nil {
		return report.Line{}, err
	}

	t.Active = active != 0
	if t.BusinessDate, err = time.Parse(dateLayout, businessDate); err != nil {
		return report.Line{}, err
	}
	if t.DeletedAt, err = parseNullTime(ticketDeleted); err != nil {
		return report.Line{}, err
	}

	j.Sale = fromCents(saleCents)
	j.CommissionAmount = fromCents(commissionCents)
	j.ListeroAmount = fromCents(listeroCents)
	if j.CommissionPercent, err = decimal.NewFromString(commissionPercent); err != nil {
		return report.Line{}, err
	}
	if finalMultiplier.Valid {
		m, err := decimal.NewFromString(finalMultiplier.String)
		if err != nil {
			return report.Line{}, err
		}
		j.FinalMultiplier = &m
	}
	if commissionOrigin.Valid {
		origin := commission.Origin(commissionOrigin.String)
		j.CommissionOrigin = &origin
	}
	if commissionRuleID.Valid {
		ruleID := commissionRuleID.String
		j.CommissionRuleID = &ruleID
	}
	if j.DeletedAt, err = parseNullTime(jugadaDeleted); err != nil {
		return report.Line{}, err
	}

	return report.Line{Ticket: t, Jugada: j}, nil
}

// =============================================================================
// GROUPED READER - One GROUP BY query per dimension
// =============================================================================

func (s *Store) AggregateBy(ctx context.Context, dim report.Dimension, filter report.Filter) (map[string]report.Aggregate, error) {
	keyExpr, nameExpr, nameJoin := groupExprs(dim)
	predicate, args := periodPredicate(filter)

	query := fmt.Sprintf(`
		SELECT %s AS group_key,
			COALESCE(%s, %s) AS display_name,
			COALESCE(SUM(j.sale_cents), 0),
			COALESCE(SUM(j.commission_cents), 0),
			COALESCE(SUM(CASE WHEN j.commission_origin = ? THEN j.commission_cents ELSE 0 END), 0),
			COALESCE(SUM(j.listero_cents), 0),
			COUNT(DISTINCT t.id),
			COUNT(j.id)
		FROM jugadas j
		JOIN tickets t ON t.id = j.ticket_id
		%s
		WHERE %s
		GROUP BY %s`,
		keyExpr, nameExpr, keyExpr, nameJoin, predicate, keyExpr)

	args = append([]any{string(commission.OriginSeller)}, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[string]report.Aggregate)
	for rows.Next() {
		var (
			agg     report.Aggregate
			sales   int64
			total   int64
			vendor  int64
			listero int64
		)
		if err := rows.Scan(&agg.GroupKey, &agg.DisplayName, &sales, &total, &vendor, &listero, &agg.TicketCount, &agg.JugadaCount); err != nil {
			return nil, err
		}
		agg.TotalSales = fromCents(sales)
		agg.TotalCommission = fromCents(total)
		agg.TotalVendorCommission = fromCents(vendor)
		agg.TotalListeroCommission = fromCents(listero)
		if dim == report.DimTotal {
			agg.DisplayName = report.TotalDisplayName
		}
		groups[agg.GroupKey] = agg
	}
	return groups, rows.Err()
}

func groupExprs(dim report.Dimension) (keyExpr, nameExpr, nameJoin string) {
	switch dim {
	case report.DimWindow:
		return "t.window_id", "a.name", "LEFT JOIN actors a ON a.id = t.window_id"
	case report.DimSeller:
		return "t.seller_id", "a.name", "LEFT JOIN actors a ON a.id = t.seller_id"
	case report.DimLottery:
		return "t.lottery_id", "l.name", "LEFT JOIN lotteries l ON l.id = t.lottery_id"
	case report.DimDraw:
		return "t.draw_id", "d.name", "LEFT JOIN draws d ON d.id = t.draw_id"
	default:
		return "''", "NULL", ""
	}
}

// periodPredicate is the single predicate builder shared by every period
// read and all five aggregation dimensions. Base eligibility always
// applies; filter fields append clauses only when present.
func periodPredicate(f report.Filter) (string, []any) {
	clauses := []string{
		"j.deleted_at IS NULL",
		"t.deleted_at IS NULL",
		"t.active = 1",
		"t.status IN ('ACTIVE', 'EVALUATED', 'PAID', 'SETTLED')",
	}
	var args []any

	if f.WindowID != nil {
		clauses = append(clauses, "t.window_id = ?")
		args = append(args, string(*f.WindowID))
	}
	if f.SellerID != nil {
		clauses = append(clauses, "t.seller_id = ?")
		args = append(args, string(*f.SellerID))
	}
	if f.BankID != nil {
		clauses = append(clauses, "t.bank_id = ?")
		args = append(args, string(*f.BankID))
	}
	if f.DrawID != nil {
		clauses = append(clauses, "t.draw_id = ?")
		args = append(args, string(*f.DrawID))
	}
	if f.LotteryID != nil {
		clauses = append(clauses, "t.lottery_id = ?")
		args = append(args, string(*f.LotteryID))
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "t.business_date >= ?")
		args = append(args, f.DateFrom.UTC().Format(dateLayout))
	}
	if f.DateTo != nil {
		clauses = append(clauses, "t.business_date <= ?")
		args = append(args, f.DateTo.UTC().Format(dateLayout))
	}

	return strings.Join(clauses, " AND "), args
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, event commission.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (at, action, actor_id, lottery_id, bet_type,
			final_multiplier, percent, origin, rule_id, error_code, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.At.UTC().Format(auditTimeLayout), string(event.Action),
		string(event.ActorID), string(event.LotteryID), string(event.BetType),
		nullDecimal(event.FinalMultiplier), event.Percent.String(), string(event.Origin),
		nullString(event.RuleID), event.ErrorCode, event.Reference)
	return err
}

func (s *Store) Query(ctx context.Context, filter commission.AuditFilter) ([]commission.AuditEvent, error) {
	clauses := []string{"1=1"}
	var args []any

	if filter.ActorID != nil {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, string(*filter.ActorID))
	}
	if len(filter.Actions) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Actions)), ",")
		clauses = append(clauses, fmt.Sprintf("action IN (%s)", placeholders))
		for _, action := range filter.Actions {
			args = append(args, string(action))
		}
	}
	if filter.From != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, filter.From.UTC().Format(auditTimeLayout))
	}
	if filter.To != nil {
		clauses = append(clauses, "at <= ?")
		args = append(args, filter.To.UTC().Format(auditTimeLayout))
	}

	query := fmt.Sprintf(`
		SELECT at, action, actor_id, lottery_id, bet_type, final_multiplier,
			percent, origin, rule_id, error_code, reference
		FROM audit_log
		WHERE %s
		ORDER BY id`, strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []commission.AuditEvent
	for rows.Next() {
		var (
			event      commission.AuditEvent
			at         string
			multiplier sql.NullString
			percent    string
			ruleID     sql.NullString
		)
		if err := rows.Scan(&at, &event.Action, &event.ActorID, &event.LotteryID,
			&event.BetType, &multiplier, &percent, &event.Origin, &ruleID,
			&event.ErrorCode, &event.Reference); err != nil {
			return nil, err
		}
		if event.At, err = time.Parse(auditTimeLayout, at); err != nil {
			return nil, err
		}
		if event.Percent, err = decimal.NewFromString(percent); err != nil {
			return nil, err
		}
		if multiplier.Valid {
			m, err := decimal.NewFromString(multiplier.String)
			if err != nil {
				return nil, err
			}
			event.FinalMultiplier = &m
		}
		if ruleID.Valid {
			id := ruleID.String
			event.RuleID = &id
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// =============================================================================
// NULL HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullOrigin(o *commission.Origin) any {
	if o == nil {
		return nil
	}
	return string(*o)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
