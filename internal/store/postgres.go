package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgQueries{db: tx})
	})
}

func (s *PostgresStore) View(_ context.Context, fn func(q Queries) error) error {
	return fn(&pgQueries{db: s.pool, readOnly: true})
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	db       querier
	readOnly bool
}

func (q *pgQueries) writable() error {
	if q.readOnly {
		return errReadOnly
	}
	return nil
}

// mapErr translates driver errors into domain sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, model.ErrDuplicateEntry)
		case "23514":
			if pgErr.ConstraintName == "wallets_balance_check" {
				return fmt.Errorf("%s: %w", op, model.ErrInsufficientFunds)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := dec(*s)
	return &d
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Wallets & ledger ---

func (q *pgQueries) LockWallet(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := q.writable(); err != nil {
		return decimal.Zero, err
	}
	if _, err := q.db.Exec(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, now())
		 ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return decimal.Zero, mapErr("ensure wallet", err)
	}

	var bal string
	err := q.db.QueryRow(ctx,
		`SELECT balance::TEXT FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&bal)
	if err != nil {
		return decimal.Zero, mapErr("lock wallet "+userID, err)
	}
	return dec(bal), nil
}

func (q *pgQueries) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal string
	err := q.db.QueryRow(ctx,
		`SELECT balance::TEXT FROM wallets WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, mapErr("get balance", err)
	}
	return dec(bal), nil
}

func (q *pgQueries) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	if err := q.writable(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2::NUMERIC, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()
		 WHERE wallets.balance + EXCLUDED.balance >= 0`,
		userID, delta.String())
	if err != nil {
		return mapErr("adjust balance", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInsufficientFunds
	}
	return nil
}

func (q *pgQueries) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	if err := q.writable(); err != nil {
		return err
	}
	meta, err := metaJSON(t.Metadata)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::JSONB, $7, $8)`,
		t.ID, t.UserID, string(t.Type), t.Amount.String(), string(t.Status),
		meta, t.CreatedAt, t.UpdatedAt,
	)
	return mapErr("insert transaction", err)
}

func metaJSON(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

const transactionCols = `id, user_id, type, amount::TEXT, status, metadata::TEXT, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var typ, status, amount, meta string
	if err := row.Scan(&t.ID, &t.UserID, &typ, &amount, &status, &meta, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(typ)
	t.Status = model.TransactionStatus(status)
	t.Amount = dec(amount)
	t.Metadata = map[string]string{}
	_ = json.Unmarshal([]byte(meta), &t.Metadata)
	return &t, nil
}

func (q *pgQueries) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get transaction "+id, err)
	}
	return t, nil
}

func (q *pgQueries) LockTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr("lock transaction "+id, err)
	}
	return t, nil
}

func (q *pgQueries) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus, metadata map[string]string) error {
	if err := q.writable(); err != nil {
		return err
	}
	meta, err := metaJSON(metadata)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE transactions SET status = $2, metadata = $3::JSONB, updated_at = now() WHERE id = $1`,
		id, string(status), meta)
	if err != nil {
		return mapErr("update transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (q *pgQueries) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	const where = `WHERE ($1::TEXT = '' OR user_id = $1) AND ($2::TEXT = '' OR type = $2) AND ($3::TEXT = '' OR status = $3)`
	args := []any{f.UserID, string(f.Type), string(f.Status)}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapErr("count transactions", err)
	}

	p := f.Page.Normalize()
	rows, err := q.db.Query(ctx,
		`SELECT `+transactionCols+` FROM transactions `+where+`
		 ORDER BY created_at DESC, id LIMIT $4 OFFSET $5`,
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, mapErr("list transactions", err)
	}
	defer rows.Close()

	out := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// --- Chances ---

func (q *pgQueries) InsertChance(ctx context.Context, c *model.Chance) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO chances (id, user_id, source, source_id, used, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		c.ID, c.UserID, c.Source, nullable(c.SourceID), c.CreatedAt)
	return mapErr("insert chance", err)
}

func (q *pgQueries) ChanceSummary(ctx context.Context, userID string) (model.ChanceSummary, error) {
	var s model.ChanceSummary
	err := q.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE used), count(*) FILTER (WHERE NOT used)
		 FROM chances WHERE user_id = $1`, userID).Scan(&s.Total, &s.Used, &s.Available)
	return s, mapErr("chance summary", err)
}

func (q *pgQueries) OldestUnusedChances(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id FROM chances WHERE user_id = $1 AND NOT used
		 ORDER BY created_at, seq LIMIT $2 FOR UPDATE`, userID, limit)
	if err != nil {
		return nil, mapErr("select unused chances", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *pgQueries) MarkChancesUsed(ctx context.Context, ids []string, usedFor string, at time.Time) (int, error) {
	if err := q.writable(); err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE chances SET used = TRUE, used_for = $2, used_at = $3
		 WHERE id = ANY($1) AND NOT used`, ids, usedFor, at)
	if err != nil {
		return 0, mapErr("mark chances used", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *pgQueries) ListChances(ctx context.Context, userID string, p model.Page) ([]model.Chance, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM chances WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapErr("count chances", err)
	}

	p = p.Normalize()
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, source, source_id, used, used_for, used_at, created_at
		 FROM chances WHERE user_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`,
		userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, mapErr("list chances", err)
	}
	defer rows.Close()

	out := []model.Chance{}
	for rows.Next() {
		var c model.Chance
		var sourceID, usedFor *string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Source, &sourceID, &c.Used, &usedFor, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		c.SourceID = deref(sourceID)
		c.UsedFor = deref(usedFor)
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (q *pgQueries) CountChancesBySource(ctx context.Context, userID, source string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM chances WHERE user_id = $1 AND source = $2`, userID, source).Scan(&n)
	return n, mapErr("count chances by source", err)
}

// --- Tickets ---

func (q *pgQueries) InsertTicket(ctx context.Context, t *model.Ticket) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO tickets (id, user_id, lottery_id, base_price, discount_percent, final_price,
		                      chance_granted, cashback_given, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7, $8, $9)`,
		t.ID, t.UserID, nullable(t.LotteryID), t.BasePrice.String(), t.DiscountPercent,
		t.FinalPrice.String(), t.ChanceGranted, t.CashbackGiven, t.CreatedAt)
	return mapErr("insert ticket", err)
}

const ticketCols = `id, user_id, lottery_id, base_price::TEXT, discount_percent, final_price::TEXT,
	chance_granted, cashback_given, created_at`

func scanTickets(rows pgx.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		var t model.Ticket
		var lotteryID *string
		var base, final string
		if err := rows.Scan(&t.ID, &t.UserID, &lotteryID, &base, &t.DiscountPercent, &final,
			&t.ChanceGranted, &t.CashbackGiven, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.LotteryID = deref(lotteryID)
		t.BasePrice = dec(base)
		t.FinalPrice = dec(final)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *pgQueries) ListTickets(ctx context.Context, userID, lotteryID string) ([]model.Ticket, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ticketCols+` FROM tickets
		 WHERE user_id = $1 AND ($2::TEXT = '' OR lottery_id = $2)
		 ORDER BY created_at DESC`, userID, lotteryID)
	if err != nil {
		return nil, mapErr("list tickets", err)
	}
	return scanTickets(rows)
}

func (q *pgQueries) UncashedTickets(ctx context.Context, lotteryID, userID string) ([]model.Ticket, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ticketCols+` FROM tickets
		 WHERE user_id = $1 AND lottery_id = $2 AND NOT cashback_given
		 ORDER BY created_at FOR UPDATE`, userID, lotteryID)
	if err != nil {
		return nil, mapErr("uncashed tickets", err)
	}
	return scanTickets(rows)
}

func (q *pgQueries) MarkCashbackGiven(ctx context.Context, ticketID string) (bool, error) {
	if err := q.writable(); err != nil {
		return false, err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE tickets SET cashback_given = TRUE WHERE id = $1 AND NOT cashback_given`, ticketID)
	if err != nil {
		return false, mapErr("mark cashback", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Lotteries ---

func (q *pgQueries) InsertLottery(ctx context.Context, l *model.Lottery) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO lotteries (id, title, description, status, start_date, end_date, draw_date, max_entries, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.Title, l.Description, string(l.Status), l.StartDate, l.EndDate,
		l.DrawDate, l.MaxEntries, l.CreatedAt)
	return mapErr("insert lottery", err)
}

const lotteryCols = `id, title, description, status, start_date, end_date, draw_date, max_entries, created_at`

func scanLottery(row pgx.Row) (*model.Lottery, error) {
	var l model.Lottery
	var status string
	if err := row.Scan(&l.ID, &l.Title, &l.Description, &status, &l.StartDate, &l.EndDate,
		&l.DrawDate, &l.MaxEntries, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = model.LotteryStatus(status)
	return &l, nil
}

func (q *pgQueries) GetLottery(ctx context.Context, id string) (*model.Lottery, error) {
	l, err := scanLottery(q.db.QueryRow(ctx, `SELECT `+lotteryCols+` FROM lotteries WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get lottery "+id, err)
	}
	return l, nil
}

func (q *pgQueries) LockLottery(ctx context.Context, id string) (*model.Lottery, error) {
	l, err := scanLottery(q.db.QueryRow(ctx, `SELECT `+lotteryCols+` FROM lotteries WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr("lock lottery "+id, err)
	}
	return l, nil
}

func (q *pgQueries) ListLotteries(ctx context.Context, status model.LotteryStatus) ([]model.Lottery, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+lotteryCols+` FROM lotteries WHERE ($1::TEXT = '' OR status = $1) ORDER BY created_at DESC`,
		string(status))
	if err != nil {
		return nil, mapErr("list lotteries", err)
	}
	defer rows.Close()

	out := []model.Lottery{}
	for rows.Next() {
		l, err := scanLottery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (q *pgQueries) TransitionLottery(ctx context.Context, id string, from, to model.LotteryStatus, drawDate *time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE lotteries SET status = $3, draw_date = COALESCE($4, draw_date)
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), drawDate)
	if err != nil {
		return mapErr("transition lottery", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := q.GetLottery(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("lottery %s is not %s: %w", id, from, model.ErrInvalidState)
	}
	return nil
}

func (q *pgQueries) InsertPrize(ctx context.Context, p *model.Prize) error {
	if err := q.writable(); err != nil {
		return err
	}
	var value *string
	if p.Value != nil {
		s := p.Value.String()
		value = &s
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO prizes (id, lottery_id, type, name, rank_from, rank_to, value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC)`,
		p.ID, p.LotteryID, string(p.Type), p.Name, p.RankFrom, p.RankTo, value)
	return mapErr("insert prize", err)
}

func (q *pgQueries) ListPrizes(ctx context.Context, lotteryID string) ([]model.Prize, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, lottery_id, type, name, rank_from, rank_to, value::TEXT
		 FROM prizes WHERE lottery_id = $1 ORDER BY rank_from`, lotteryID)
	if err != nil {
		return nil, mapErr("list prizes", err)
	}
	defer rows.Close()

	out := []model.Prize{}
	for rows.Next() {
		var p model.Prize
		var typ string
		var value *string
		if err := rows.Scan(&p.ID, &p.LotteryID, &typ, &p.Name, &p.RankFrom, &p.RankTo, &value); err != nil {
			return nil, err
		}
		p.Type = model.PrizeType(typ)
		p.Value = decPtr(value)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *pgQueries) InsertEntry(ctx context.Context, e *model.LotteryEntry) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO lottery_entries (id, lottery_id, user_id, chances_used, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.LotteryID, e.UserID, e.ChancesUsed, e.CreatedAt)
	return mapErr("insert entry", err)
}

const entryCols = `id, lottery_id, user_id, rank, prize_id, chances_used, created_at`

func scanEntry(row pgx.Row) (*model.LotteryEntry, error) {
	var e model.LotteryEntry
	var prizeID *string
	if err := row.Scan(&e.ID, &e.LotteryID, &e.UserID, &e.Rank, &prizeID, &e.ChancesUsed, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.PrizeID = deref(prizeID)
	return &e, nil
}

func (q *pgQueries) queryEntries(ctx context.Context, op, sql string, args ...any) ([]model.LotteryEntry, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := []model.LotteryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (q *pgQueries) GetEntry(ctx context.Context, lotteryID, userID string) (*model.LotteryEntry, error) {
	e, err := scanEntry(q.db.QueryRow(ctx,
		`SELECT `+entryCols+` FROM lottery_entries WHERE lottery_id = $1 AND user_id = $2`,
		lotteryID, userID))
	if err != nil {
		return nil, mapErr("get entry", err)
	}
	return e, nil
}

func (q *pgQueries) CountEntries(ctx context.Context, lotteryID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM lottery_entries WHERE lottery_id = $1`, lotteryID).Scan(&n)
	return n, mapErr("count entries", err)
}

func (q *pgQueries) ListEntries(ctx context.Context, lotteryID string) ([]model.LotteryEntry, error) {
	return q.queryEntries(ctx, "list entries",
		`SELECT `+entryCols+` FROM lottery_entries WHERE lottery_id = $1
		 ORDER BY rank NULLS LAST, created_at, id`, lotteryID)
}

func (q *pgQueries) ListUserEntries(ctx context.Context, userID string) ([]model.LotteryEntry, error) {
	return q.queryEntries(ctx, "list user entries",
		`SELECT `+entryCols+` FROM lottery_entries WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (q *pgQueries) SetEntryRank(ctx context.Context, entryID string, rank int) error {
	if err := q.writable(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE lottery_entries SET rank = $2 WHERE id = $1 AND rank IS NULL`, entryID, rank)
	if err != nil {
		return mapErr("set entry rank", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s missing or already ranked: %w", entryID, model.ErrInvalidState)
	}
	return nil
}

func (q *pgQueries) SetEntryPrize(ctx context.Context, entryID, prizeID string) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx, `UPDATE lottery_entries SET prize_id = $2 WHERE id = $1`, entryID, prizeID)
	return mapErr("set entry prize", err)
}

// --- Wheel ---

func (q *pgQueries) InsertWheelPrize(ctx context.Context, p *model.WheelPrize) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO wheel_prizes (id, name, type, value, probability, sort_order, is_active, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		p.ID, p.Name, string(p.Type), p.Value.String(), p.Probability.String(), p.Order, p.IsActive, p.CreatedAt)
	return mapErr("insert wheel prize", err)
}

func (q *pgQueries) UpdateWheelPrize(ctx context.Context, p *model.WheelPrize) error {
	if err := q.writable(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE wheel_prizes SET name = $2, type = $3, value = $4::NUMERIC, probability = $5::NUMERIC,
		        sort_order = $6, is_active = $7
		 WHERE id = $1`,
		p.ID, p.Name, string(p.Type), p.Value.String(), p.Probability.String(), p.Order, p.IsActive)
	if err != nil {
		return mapErr("update wheel prize", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wheel prize %s: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

const wheelPrizeCols = `id, name, type, value::TEXT, probability::TEXT, sort_order, is_active, created_at`

func scanWheelPrize(row pgx.Row) (*model.WheelPrize, error) {
	var p model.WheelPrize
	var typ, value, prob string
	if err := row.Scan(&p.ID, &p.Name, &typ, &value, &prob, &p.Order, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Type = model.PrizeType(typ)
	p.Value = dec(value)
	p.Probability = dec(prob)
	return &p, nil
}

func (q *pgQueries) GetWheelPrize(ctx context.Context, id string) (*model.WheelPrize, error) {
	p, err := scanWheelPrize(q.db.QueryRow(ctx, `SELECT `+wheelPrizeCols+` FROM wheel_prizes WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get wheel prize "+id, err)
	}
	return p, nil
}

func (q *pgQueries) ListWheelPrizes(ctx context.Context, activeOnly bool) ([]model.WheelPrize, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+wheelPrizeCols+` FROM wheel_prizes WHERE (NOT $1::BOOLEAN OR is_active)
		 ORDER BY sort_order, id`, activeOnly)
	if err != nil {
		return nil, mapErr("list wheel prizes", err)
	}
	defer rows.Close()

	out := []model.WheelPrize{}
	for rows.Next() {
		p, err := scanWheelPrize(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q *pgQueries) InsertWheelSpin(ctx context.Context, s *model.WheelSpin) error {
	if err := q.writable(); err != nil {
		return err
	}
	result, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("marshal spin result: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO wheel_spins (id, user_id, prize_id, chances_used, result, created_at)
		 VALUES ($1, $2, $3, $4, $5::JSONB, $6)`,
		s.ID, s.UserID, s.PrizeID, s.ChancesUsed, string(result), s.CreatedAt)
	return mapErr("insert wheel spin", err)
}

func (q *pgQueries) ListWheelSpins(ctx context.Context, userID string, p model.Page) ([]model.WheelSpin, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM wheel_spins WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapErr("count wheel spins", err)
	}

	p = p.Normalize()
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, prize_id, chances_used, result::TEXT, created_at
		 FROM wheel_spins WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, mapErr("list wheel spins", err)
	}
	defer rows.Close()

	out := []model.WheelSpin{}
	for rows.Next() {
		var s model.WheelSpin
		var result string
		if err := rows.Scan(&s.ID, &s.UserID, &s.PrizeID, &s.ChancesUsed, &result, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(result), &s.Result)
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// --- Slide ---

func (q *pgQueries) InsertSlideRound(ctx context.Context, r *model.SlideRound) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO slide_rounds (id, target_number, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.TargetNumber, r.CreatedAt, r.ExpiresAt)
	return mapErr("insert slide round", err)
}

func (q *pgQueries) CurrentSlideRound(ctx context.Context, now time.Time) (*model.SlideRound, error) {
	var r model.SlideRound
	var wonBy *string
	lock := ""
	if !q.readOnly {
		lock = " FOR UPDATE"
	}
	err := q.db.QueryRow(ctx,
		`SELECT id, target_number, created_at, expires_at, won_by, won_at
		 FROM slide_rounds
		 ORDER BY created_at DESC, seq DESC LIMIT 1`+lock).
		Scan(&r.ID, &r.TargetNumber, &r.CreatedAt, &r.ExpiresAt, &wonBy, &r.WonAt)
	if err != nil {
		return nil, mapErr("current slide round", err)
	}
	if !r.Open(now) {
		return nil, fmt.Errorf("current slide round %s closed: %w", r.ID, model.ErrNotFound)
	}
	r.WonBy = deref(wonBy)
	return &r, nil
}

func (q *pgQueries) MarkSlideRoundWon(ctx context.Context, roundID, userID string, at time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE slide_rounds SET won_by = $2, won_at = $3 WHERE id = $1 AND won_at IS NULL`,
		roundID, userID, at)
	if err != nil {
		return mapErr("mark slide round won", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("slide round %s already won: %w", roundID, model.ErrInvalidState)
	}
	return nil
}

func (q *pgQueries) InsertSlideGame(ctx context.Context, g *model.SlideGame) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO slide_games (id, user_id, mode, round_id, target_number, user_number,
		                          is_winner, chances_used, payout, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10)`,
		g.ID, g.UserID, string(g.Mode), nullable(g.RoundID), g.TargetNumber, g.UserNumber,
		g.IsWinner, g.ChancesUsed, g.Payout.String(), g.CreatedAt)
	return mapErr("insert slide game", err)
}

const slideGameCols = `id, user_id, mode, round_id, target_number, user_number, is_winner,
	chances_used, payout::TEXT, created_at`

func scanSlideGames(rows pgx.Rows) ([]model.SlideGame, error) {
	defer rows.Close()
	out := []model.SlideGame{}
	for rows.Next() {
		var g model.SlideGame
		var mode, payout string
		var roundID *string
		if err := rows.Scan(&g.ID, &g.UserID, &mode, &roundID, &g.TargetNumber, &g.UserNumber,
			&g.IsWinner, &g.ChancesUsed, &payout, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Mode = model.SlideMode(mode)
		g.RoundID = deref(roundID)
		g.Payout = dec(payout)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (q *pgQueries) ListSlideGames(ctx context.Context, userID string, p model.Page) ([]model.SlideGame, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM slide_games WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapErr("count slide games", err)
	}

	p = p.Normalize()
	rows, err := q.db.Query(ctx,
		`SELECT `+slideGameCols+` FROM slide_games WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, mapErr("list slide games", err)
	}
	games, err := scanSlideGames(rows)
	return games, total, err
}

func (q *pgQueries) RecentSlideWinners(ctx context.Context, limit int) ([]model.SlideGame, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+slideGameCols+` FROM slide_games WHERE is_winner
		 ORDER BY created_at DESC, seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr("recent slide winners", err)
	}
	return scanSlideGames(rows)
}

// --- Referrals ---

func (q *pgQueries) InsertReferralCode(ctx context.Context, rc *model.ReferralCode) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO referral_codes (user_id, code, created_at) VALUES ($1, $2, $3)`,
		rc.UserID, rc.Code, rc.CreatedAt)
	return mapErr("insert referral code", err)
}

func (q *pgQueries) GetReferralCode(ctx context.Context, userID string) (*model.ReferralCode, error) {
	var rc model.ReferralCode
	err := q.db.QueryRow(ctx,
		`SELECT user_id, code, created_at FROM referral_codes WHERE user_id = $1`, userID).
		Scan(&rc.UserID, &rc.Code, &rc.CreatedAt)
	if err != nil {
		return nil, mapErr("get referral code", err)
	}
	return &rc, nil
}

func (q *pgQueries) FindReferralCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	var rc model.ReferralCode
	err := q.db.QueryRow(ctx,
		`SELECT user_id, code, created_at FROM referral_codes WHERE code = $1`, code).
		Scan(&rc.UserID, &rc.Code, &rc.CreatedAt)
	if err != nil {
		return nil, mapErr("find referral code", err)
	}
	return &rc, nil
}

func (q *pgQueries) InsertReferral(ctx context.Context, r *model.Referral) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO referrals (id, referrer_id, referred_id, code, ip_address, device_fingerprint,
		                        suspicious, is_active, chance_granted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.ReferrerID, r.ReferredID, r.Code, r.IPAddress, r.DeviceFingerprint,
		r.Suspicious, r.IsActive, r.ChanceGranted, r.CreatedAt)
	return mapErr("insert referral", err)
}

const referralCols = `id, referrer_id, referred_id, code, ip_address, device_fingerprint,
	suspicious, is_active, chance_granted, created_at`

func scanReferral(row pgx.Row) (*model.Referral, error) {
	var r model.Referral
	if err := row.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.Code, &r.IPAddress, &r.DeviceFingerprint,
		&r.Suspicious, &r.IsActive, &r.ChanceGranted, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *pgQueries) GetReferralByReferred(ctx context.Context, referredID string) (*model.Referral, error) {
	r, err := scanReferral(q.db.QueryRow(ctx,
		`SELECT `+referralCols+` FROM referrals WHERE referred_id = $1`, referredID))
	if err != nil {
		return nil, mapErr("get referral", err)
	}
	return r, nil
}

func (q *pgQueries) ListReferrals(ctx context.Context, referrerID string, limit int) ([]model.Referral, int, error) {
	var total int
	if err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&total); err != nil {
		return nil, 0, mapErr("count referrals", err)
	}

	rows, err := q.db.Query(ctx,
		`SELECT `+referralCols+` FROM referrals WHERE referrer_id = $1
		 ORDER BY created_at DESC LIMIT NULLIF($2::INT, 0)`, referrerID, limit)
	if err != nil {
		return nil, 0, mapErr("list referrals", err)
	}
	defer rows.Close()

	out := []model.Referral{}
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func (q *pgQueries) CountReferralsFrom(ctx context.Context, referrerID, ip, device string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM referrals WHERE referrer_id = $1
		 AND (($2::TEXT <> '' AND ip_address = $2) OR ($3::TEXT <> '' AND device_fingerprint = $3))`,
		referrerID, ip, device).Scan(&n)
	return n, mapErr("count referrals from", err)
}

func (q *pgQueries) MarkReferralChanceGranted(ctx context.Context, id string) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx, `UPDATE referrals SET chance_granted = TRUE WHERE id = $1`, id)
	return mapErr("mark referral chance granted", err)
}

// --- Settings ---

func (q *pgQueries) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	err := q.db.QueryRow(ctx,
		`SELECT key, value, description, updated_by, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr("get setting "+key, err)
	}
	return &s, nil
}

func (q *pgQueries) PutSetting(ctx context.Context, s *model.Setting) error {
	if err := q.writable(); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO settings (key, value, description, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, description = EXCLUDED.description,
		     updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		s.Key, s.Value, s.Description, s.UpdatedBy, s.UpdatedAt)
	return mapErr("put setting", err)
}

// --- Reporting ---

func (q *pgQueries) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var st model.DashboardStats
	var deposits, balance string
	err := q.db.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM wallets),
			(SELECT count(*) FROM transactions),
			(SELECT count(*) FROM transactions WHERE type = 'WITHDRAWAL' AND status = 'PENDING'),
			(SELECT count(*) FROM lotteries),
			(SELECT count(*) FROM lotteries WHERE status = 'ACTIVE'),
			(SELECT count(*) FROM tickets),
			(SELECT COALESCE(SUM(amount), 0)::TEXT FROM transactions WHERE type = 'DEPOSIT' AND status = 'COMPLETED'),
			(SELECT COALESCE(SUM(balance), 0)::TEXT FROM wallets)`).
		Scan(&st.Wallets, &st.Transactions, &st.PendingWithdrawals, &st.Lotteries,
			&st.ActiveLotteries, &st.Tickets, &deposits, &balance)
	if err != nil {
		return st, mapErr("dashboard stats", err)
	}
	st.TotalDeposits = dec(deposits)
	st.TotalBalance = dec(balance)
	return st, nil
}
