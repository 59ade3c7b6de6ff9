package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/model"
)

var errReadOnly = errors.New("store: write attempted in read-only view")

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// A unit of work holds the store lock for its whole duration and runs
// against a copy of the state that replaces the live state on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type seqChance struct {
	model.Chance
	seq int64
}

type seqRound struct {
	model.SlideRound
	seq int64
}

type memState struct {
	seq          int64
	wallets      map[string]model.Wallet
	transactions map[string]model.Transaction
	txOrder      []string
	chances      map[string]seqChance
	tickets      map[string]model.Ticket
	lotteries    map[string]model.Lottery
	prizes       map[string]model.Prize
	entries      map[string]model.LotteryEntry
	wheelPrizes  map[string]model.WheelPrize
	spins        []model.WheelSpin
	rounds       map[string]seqRound
	games        []model.SlideGame
	codes        map[string]model.ReferralCode // by user id
	referrals    map[string]model.Referral
	settings     map[string]model.Setting
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		wallets:      make(map[string]model.Wallet),
		transactions: make(map[string]model.Transaction),
		chances:      make(map[string]seqChance),
		tickets:      make(map[string]model.Ticket),
		lotteries:    make(map[string]model.Lottery),
		prizes:       make(map[string]model.Prize),
		entries:      make(map[string]model.LotteryEntry),
		wheelPrizes:  make(map[string]model.WheelPrize),
		rounds:       make(map[string]seqRound),
		codes:        make(map[string]model.ReferralCode),
		referrals:    make(map[string]model.Referral),
		settings:     make(map[string]model.Setting),
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		seq:          s.seq,
		wallets:      maps.Clone(s.wallets),
		transactions: maps.Clone(s.transactions),
		txOrder:      append([]string(nil), s.txOrder...),
		chances:      maps.Clone(s.chances),
		tickets:      maps.Clone(s.tickets),
		lotteries:    maps.Clone(s.lotteries),
		prizes:       maps.Clone(s.prizes),
		entries:      maps.Clone(s.entries),
		wheelPrizes:  maps.Clone(s.wheelPrizes),
		spins:        append([]model.WheelSpin(nil), s.spins...),
		rounds:       maps.Clone(s.rounds),
		games:        append([]model.SlideGame(nil), s.games...),
		codes:        maps.Clone(s.codes),
		referrals:    maps.Clone(s.referrals),
		settings:     maps.Clone(s.settings),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memQueries{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memQueries{st: s.state, readOnly: true})
}

// memQueries implements Queries over one memState.
type memQueries struct {
	st       *memState
	readOnly bool
}

func (q *memQueries) writable() error {
	if q.readOnly {
		return errReadOnly
	}
	return nil
}

func (q *memQueries) next() int64 {
	q.st.seq++
	return q.st.seq
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
}

// --- Wallets & ledger ---

func (q *memQueries) LockWallet(_ context.Context, userID string) (decimal.Decimal, error) {
	w, ok := q.st.wallets[userID]
	if !ok {
		if err := q.writable(); err != nil {
			return decimal.Zero, err
		}
		w = model.Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
		q.st.wallets[userID] = w
	}
	return w.Balance, nil
}

func (q *memQueries) GetBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	return q.st.wallets[userID].Balance, nil
}

func (q *memQueries) AdjustBalance(_ context.Context, userID string, delta decimal.Decimal) error {
	if err := q.writable(); err != nil {
		return err
	}
	w, ok := q.st.wallets[userID]
	if !ok {
		w = model.Wallet{UserID: userID, Balance: decimal.Zero}
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return model.ErrInsufficientFunds
	}
	w.Balance = next
	w.UpdatedAt = time.Now().UTC()
	q.st.wallets[userID] = w
	return nil
}

func (q *memQueries) InsertTransaction(_ context.Context, t *model.Transaction) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s: %w", t.ID, model.ErrDuplicateEntry)
	}
	cp := *t
	cp.Metadata = maps.Clone(t.Metadata)
	q.st.transactions[t.ID] = cp
	q.st.txOrder = append(q.st.txOrder, t.ID)
	return nil
}

func (q *memQueries) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	t, ok := q.st.transactions[id]
	if !ok {
		return nil, notFound("transaction", id)
	}
	t.Metadata = maps.Clone(t.Metadata)
	return &t, nil
}

func (q *memQueries) LockTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *memQueries) UpdateTransactionStatus(_ context.Context, id string, status model.TransactionStatus, metadata map[string]string) error {
	if err := q.writable(); err != nil {
		return err
	}
	t, ok := q.st.transactions[id]
	if !ok {
		return notFound("transaction", id)
	}
	t.Status = status
	t.Metadata = maps.Clone(metadata)
	t.UpdatedAt = time.Now().UTC()
	q.st.transactions[id] = t
	return nil
}

func (q *memQueries) ListTransactions(_ context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	var matched []model.Transaction
	// Newest first.
	for i := len(q.st.txOrder) - 1; i >= 0; i-- {
		t := q.st.transactions[q.st.txOrder[i]]
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		t.Metadata = maps.Clone(t.Metadata)
		matched = append(matched, t)
	}
	return paginate(matched, f.Page), len(matched), nil
}

func paginate[T any](items []T, p model.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// --- Chances ---

func (q *memQueries) InsertChance(_ context.Context, c *model.Chance) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.chances[c.ID] = seqChance{Chance: *c, seq: q.next()}
	return nil
}

func (q *memQueries) ChanceSummary(_ context.Context, userID string) (model.ChanceSummary, error) {
	var sum model.ChanceSummary
	for _, c := range q.st.chances {
		if c.UserID != userID {
			continue
		}
		sum.Total++
		if c.Used {
			sum.Used++
		} else {
			sum.Available++
		}
	}
	return sum, nil
}

func (q *memQueries) userChances(userID string) []seqChance {
	var out []seqChance
	for _, c := range q.st.chances {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (q *memQueries) OldestUnusedChances(_ context.Context, userID string, limit int) ([]string, error) {
	var ids []string
	for _, c := range q.userChances(userID) {
		if len(ids) == limit {
			break
		}
		if !c.Used {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (q *memQueries) MarkChancesUsed(_ context.Context, ids []string, usedFor string, at time.Time) (int, error) {
	if err := q.writable(); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		c, ok := q.st.chances[id]
		if !ok || c.Used {
			continue
		}
		usedAt := at
		c.Used = true
		c.UsedFor = usedFor
		c.UsedAt = &usedAt
		q.st.chances[id] = c
		n++
	}
	return n, nil
}

func (q *memQueries) ListChances(_ context.Context, userID string, p model.Page) ([]model.Chance, int, error) {
	all := q.userChances(userID)
	out := make([]model.Chance, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i].Chance)
	}
	return paginate(out, p), len(out), nil
}

func (q *memQueries) CountChancesBySource(_ context.Context, userID, source string) (int, error) {
	n := 0
	for _, c := range q.st.chances {
		if c.UserID == userID && c.Source == source {
			n++
		}
	}
	return n, nil
}

// --- Tickets ---

func (q *memQueries) InsertTicket(_ context.Context, t *model.Ticket) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.tickets[t.ID] = *t
	return nil
}

func (q *memQueries) ListTickets(_ context.Context, userID, lotteryID string) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, t := range q.st.tickets {
		if t.UserID != userID {
			continue
		}
		if lotteryID != "" && t.LotteryID != lotteryID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *memQueries) UncashedTickets(_ context.Context, lotteryID, userID string) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, t := range q.st.tickets {
		if t.UserID == userID && t.LotteryID == lotteryID && !t.CashbackGiven {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q *memQueries) MarkCashbackGiven(_ context.Context, ticketID string) (bool, error) {
	if err := q.writable(); err != nil {
		return false, err
	}
	t, ok := q.st.tickets[ticketID]
	if !ok {
		return false, notFound("ticket", ticketID)
	}
	if t.CashbackGiven {
		return false, nil
	}
	t.CashbackGiven = true
	q.st.tickets[ticketID] = t
	return true, nil
}

// --- Lotteries ---

func (q *memQueries) InsertLottery(_ context.Context, l *model.Lottery) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.lotteries[l.ID] = *l
	return nil
}

func (q *memQueries) GetLottery(_ context.Context, id string) (*model.Lottery, error) {
	l, ok := q.st.lotteries[id]
	if !ok {
		return nil, notFound("lottery", id)
	}
	return &l, nil
}

func (q *memQueries) LockLottery(ctx context.Context, id string) (*model.Lottery, error) {
	return q.GetLottery(ctx, id)
}

func (q *memQueries) ListLotteries(_ context.Context, status model.LotteryStatus) ([]model.Lottery, error) {
	var out []model.Lottery
	for _, l := range q.st.lotteries {
		if status != "" && l.Status != status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *memQueries) TransitionLottery(_ context.Context, id string, from, to model.LotteryStatus, drawDate *time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	l, ok := q.st.lotteries[id]
	if !ok {
		return notFound("lottery", id)
	}
	if l.Status != from {
		return fmt.Errorf("lottery %s is %s, want %s: %w", id, l.Status, from, model.ErrInvalidState)
	}
	l.Status = to
	if drawDate != nil {
		d := *drawDate
		l.DrawDate = &d
	}
	q.st.lotteries[id] = l
	return nil
}

func (q *memQueries) InsertPrize(_ context.Context, p *model.Prize) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.prizes[p.ID] = *p
	return nil
}

func (q *memQueries) ListPrizes(_ context.Context, lotteryID string) ([]model.Prize, error) {
	var out []model.Prize
	for _, p := range q.st.prizes {
		if p.LotteryID == lotteryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RankFrom < out[j].RankFrom })
	return out, nil
}

func (q *memQueries) InsertEntry(_ context.Context, e *model.LotteryEntry) error {
	if err := q.writable(); err != nil {
		return err
	}
	for _, existing := range q.st.entries {
		if existing.LotteryID == e.LotteryID && existing.UserID == e.UserID {
			return fmt.Errorf("entry %s/%s: %w", e.LotteryID, e.UserID, model.ErrDuplicateEntry)
		}
	}
	q.st.entries[e.ID] = *e
	return nil
}

func (q *memQueries) GetEntry(_ context.Context, lotteryID, userID string) (*model.LotteryEntry, error) {
	for _, e := range q.st.entries {
		if e.LotteryID == lotteryID && e.UserID == userID {
			return &e, nil
		}
	}
	return nil, notFound("entry", lotteryID+"/"+userID)
}

func (q *memQueries) CountEntries(_ context.Context, lotteryID string) (int, error) {
	n := 0
	for _, e := range q.st.entries {
		if e.LotteryID == lotteryID {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) ListEntries(_ context.Context, lotteryID string) ([]model.LotteryEntry, error) {
	var out []model.LotteryEntry
	for _, e := range q.st.entries {
		if e.LotteryID == lotteryID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// sortEntries orders ranked entries by rank, then unranked ones by creation.
func sortEntries(es []model.LotteryEntry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		switch {
		case a.Rank != nil && b.Rank != nil:
			return *a.Rank < *b.Rank
		case a.Rank != nil:
			return true
		case b.Rank != nil:
			return false
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (q *memQueries) ListUserEntries(_ context.Context, userID string) ([]model.LotteryEntry, error) {
	var out []model.LotteryEntry
	for _, e := range q.st.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *memQueries) SetEntryRank(_ context.Context, entryID string, rank int) error {
	if err := q.writable(); err != nil {
		return err
	}
	e, ok := q.st.entries[entryID]
	if !ok {
		return notFound("entry", entryID)
	}
	if e.Rank != nil {
		return fmt.Errorf("entry %s already ranked: %w", entryID, model.ErrInvalidState)
	}
	r := rank
	e.Rank = &r
	q.st.entries[entryID] = e
	return nil
}

func (q *memQueries) SetEntryPrize(_ context.Context, entryID, prizeID string) error {
	if err := q.writable(); err != nil {
		return err
	}
	e, ok := q.st.entries[entryID]
	if !ok {
		return notFound("entry", entryID)
	}
	e.PrizeID = prizeID
	q.st.entries[entryID] = e
	return nil
}

// --- Wheel ---

func (q *memQueries) InsertWheelPrize(_ context.Context, p *model.WheelPrize) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.wheelPrizes[p.ID] = *p
	return nil
}

func (q *memQueries) UpdateWheelPrize(_ context.Context, p *model.WheelPrize) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.wheelPrizes[p.ID]; !ok {
		return notFound("wheel prize", p.ID)
	}
	q.st.wheelPrizes[p.ID] = *p
	return nil
}

func (q *memQueries) GetWheelPrize(_ context.Context, id string) (*model.WheelPrize, error) {
	p, ok := q.st.wheelPrizes[id]
	if !ok {
		return nil, notFound("wheel prize", id)
	}
	return &p, nil
}

func (q *memQueries) ListWheelPrizes(_ context.Context, activeOnly bool) ([]model.WheelPrize, error) {
	var out []model.WheelPrize
	for _, p := range q.st.wheelPrizes {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].ID < out[j].ID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (q *memQueries) InsertWheelSpin(_ context.Context, s *model.WheelSpin) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.spins = append(q.st.spins, *s)
	return nil
}

func (q *memQueries) ListWheelSpins(_ context.Context, userID string, p model.Page) ([]model.WheelSpin, int, error) {
	var out []model.WheelSpin
	for i := len(q.st.spins) - 1; i >= 0; i-- {
		if q.st.spins[i].UserID == userID {
			out = append(out, q.st.spins[i])
		}
	}
	return paginate(out, p), len(out), nil
}

// --- Slide ---

func (q *memQueries) InsertSlideRound(_ context.Context, r *model.SlideRound) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.rounds[r.ID] = seqRound{SlideRound: *r, seq: q.next()}
	return nil
}

func (q *memQueries) CurrentSlideRound(_ context.Context, now time.Time) (*model.SlideRound, error) {
	var best *seqRound
	for _, r := range q.st.rounds {
		if best == nil || r.CreatedAt.After(best.CreatedAt) ||
			(r.CreatedAt.Equal(best.CreatedAt) && r.seq > best.seq) {
			r := r
			best = &r
		}
	}
	if best == nil || !best.Open(now) {
		return nil, fmt.Errorf("current slide round: %w", model.ErrNotFound)
	}
	out := best.SlideRound
	return &out, nil
}

func (q *memQueries) MarkSlideRoundWon(_ context.Context, roundID, userID string, at time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	r, ok := q.st.rounds[roundID]
	if !ok {
		return notFound("slide round", roundID)
	}
	if r.WonAt != nil {
		return fmt.Errorf("slide round %s already won: %w", roundID, model.ErrInvalidState)
	}
	wonAt := at
	r.WonBy = userID
	r.WonAt = &wonAt
	q.st.rounds[roundID] = r
	return nil
}

func (q *memQueries) InsertSlideGame(_ context.Context, g *model.SlideGame) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.games = append(q.st.games, *g)
	return nil
}

func (q *memQueries) ListSlideGames(_ context.Context, userID string, p model.Page) ([]model.SlideGame, int, error) {
	var out []model.SlideGame
	for i := len(q.st.games) - 1; i >= 0; i-- {
		if q.st.games[i].UserID == userID {
			out = append(out, q.st.games[i])
		}
	}
	return paginate(out, p), len(out), nil
}

func (q *memQueries) RecentSlideWinners(_ context.Context, limit int) ([]model.SlideGame, error) {
	out := []model.SlideGame{}
	for i := len(q.st.games) - 1; i >= 0 && len(out) < limit; i-- {
		if q.st.games[i].IsWinner {
			out = append(out, q.st.games[i])
		}
	}
	return out, nil
}

// --- Referrals ---

func (q *memQueries) InsertReferralCode(_ context.Context, rc *model.ReferralCode) error {
	if err := q.writable(); err != nil {
		return err
	}
	for _, existing := range q.st.codes {
		if existing.Code == rc.Code || existing.UserID == rc.UserID {
			return fmt.Errorf("referral code %s: %w", rc.Code, model.ErrDuplicateEntry)
		}
	}
	q.st.codes[rc.UserID] = *rc
	return nil
}

func (q *memQueries) GetReferralCode(_ context.Context, userID string) (*model.ReferralCode, error) {
	rc, ok := q.st.codes[userID]
	if !ok {
		return nil, notFound("referral code for user", userID)
	}
	return &rc, nil
}

func (q *memQueries) FindReferralCode(_ context.Context, code string) (*model.ReferralCode, error) {
	for _, rc := range q.st.codes {
		if rc.Code == code {
			return &rc, nil
		}
	}
	return nil, notFound("referral code", code)
}

func (q *memQueries) InsertReferral(_ context.Context, r *model.Referral) error {
	if err := q.writable(); err != nil {
		return err
	}
	for _, existing := range q.st.referrals {
		if existing.ReferredID == r.ReferredID {
			return fmt.Errorf("referral of %s: %w", r.ReferredID, model.ErrDuplicateEntry)
		}
	}
	q.st.referrals[r.ID] = *r
	return nil
}

func (q *memQueries) GetReferralByReferred(_ context.Context, referredID string) (*model.Referral, error) {
	for _, r := range q.st.referrals {
		if r.ReferredID == referredID {
			return &r, nil
		}
	}
	return nil, notFound("referral of", referredID)
}

func (q *memQueries) ListReferrals(_ context.Context, referrerID string, limit int) ([]model.Referral, int, error) {
	var out []model.Referral
	for _, r := range q.st.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (q *memQueries) CountReferralsFrom(_ context.Context, referrerID, ip, device string) (int, error) {
	n := 0
	for _, r := range q.st.referrals {
		if r.ReferrerID != referrerID {
			continue
		}
		if (ip != "" && r.IPAddress == ip) || (device != "" && r.DeviceFingerprint == device) {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) MarkReferralChanceGranted(_ context.Context, id string) error {
	if err := q.writable(); err != nil {
		return err
	}
	r, ok := q.st.referrals[id]
	if !ok {
		return notFound("referral", id)
	}
	r.ChanceGranted = true
	q.st.referrals[id] = r
	return nil
}

// --- Settings ---

func (q *memQueries) GetSetting(_ context.Context, key string) (*model.Setting, error) {
	s, ok := q.st.settings[key]
	if !ok {
		return nil, notFound("setting", key)
	}
	return &s, nil
}

func (q *memQueries) PutSetting(_ context.Context, s *model.Setting) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.settings[s.Key] = *s
	return nil
}

// --- Reporting ---

func (q *memQueries) DashboardStats(_ context.Context) (model.DashboardStats, error) {
	stats := model.DashboardStats{
		Wallets:       len(q.st.wallets),
		Transactions:  len(q.st.transactions),
		Lotteries:     len(q.st.lotteries),
		Tickets:       len(q.st.tickets),
		TotalDeposits: decimal.Zero,
		TotalBalance:  decimal.Zero,
	}
	for _, t := range q.st.transactions {
		if t.Type == model.TxWithdrawal && t.Status == model.StatusPending {
			stats.PendingWithdrawals++
		}
		if t.Type == model.TxDeposit && t.Status == model.StatusCompleted {
			stats.TotalDeposits = stats.TotalDeposits.Add(t.Amount)
		}
	}
	for _, l := range q.st.lotteries {
		if l.Status == model.LotteryActive {
			stats.ActiveLotteries++
		}
	}
	for _, w := range q.st.wallets {
		stats.TotalBalance = stats.TotalBalance.Add(w.Balance)
	}
	return stats, nil
}
