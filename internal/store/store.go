// Package store defines the persistence interface for the rewards engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// Store hands out Queries scoped to a unit of work.
//
// InTx runs fn in a single atomic unit of work: every write made through q is
// committed if fn returns nil and discarded otherwise. View runs fn against
// committed state; writes through a View are rejected.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
	View(ctx context.Context, fn func(q Queries) error) error
}

// Queries is the set of persistence operations available inside a unit of
// work. Lock* methods take a row lock that is held until the unit of work
// ends; they serialize concurrent writers touching the same row.
type Queries interface {
	// --- Wallets & ledger ---

	// LockWallet creates the wallet if missing, locks it and returns its
	// balance. Holding the wallet lock serializes every balance and chance
	// mutation for that user.
	LockWallet(ctx context.Context, userID string) (decimal.Decimal, error)

	// GetBalance returns the balance, zero for an unknown wallet.
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)

	// AdjustBalance adds delta to the balance. Returns
	// model.ErrInsufficientFunds if the result would be negative.
	AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error

	InsertTransaction(ctx context.Context, t *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	LockTransaction(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus, metadata map[string]string) error
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error)

	// --- Chances ---

	InsertChance(ctx context.Context, c *model.Chance) error
	ChanceSummary(ctx context.Context, userID string) (model.ChanceSummary, error)

	// OldestUnusedChances returns up to limit unused chance ids, oldest first.
	OldestUnusedChances(ctx context.Context, userID string, limit int) ([]string, error)

	// MarkChancesUsed flips the given unused chances to used and returns how
	// many rows changed.
	MarkChancesUsed(ctx context.Context, ids []string, usedFor string, at time.Time) (int, error)
	ListChances(ctx context.Context, userID string, p model.Page) ([]model.Chance, int, error)

	// --- Tickets ---

	InsertTicket(ctx context.Context, t *model.Ticket) error
	ListTickets(ctx context.Context, userID, lotteryID string) ([]model.Ticket, error)

	// UncashedTickets returns the user's tickets for a lottery whose cashback
	// has not been paid.
	UncashedTickets(ctx context.Context, lotteryID, userID string) ([]model.Ticket, error)

	// MarkCashbackGiven sets the cashback flag; false if it was already set.
	MarkCashbackGiven(ctx context.Context, ticketID string) (bool, error)

	// --- Lotteries ---

	InsertLottery(ctx context.Context, l *model.Lottery) error
	GetLottery(ctx context.Context, id string) (*model.Lottery, error)
	LockLottery(ctx context.Context, id string) (*model.Lottery, error)
	ListLotteries(ctx context.Context, status model.LotteryStatus) ([]model.Lottery, error)

	// TransitionLottery moves a lottery from one status to another. Returns
	// model.ErrInvalidState if the current status is not from.
	TransitionLottery(ctx context.Context, id string, from, to model.LotteryStatus, drawDate *time.Time) error

	InsertPrize(ctx context.Context, p *model.Prize) error
	ListPrizes(ctx context.Context, lotteryID string) ([]model.Prize, error)

	// InsertEntry returns model.ErrDuplicateEntry if the user already entered.
	InsertEntry(ctx context.Context, e *model.LotteryEntry) error
	GetEntry(ctx context.Context, lotteryID, userID string) (*model.LotteryEntry, error)
	CountEntries(ctx context.Context, lotteryID string) (int, error)
	ListEntries(ctx context.Context, lotteryID string) ([]model.LotteryEntry, error)
	ListUserEntries(ctx context.Context, userID string) ([]model.LotteryEntry, error)
	SetEntryRank(ctx context.Context, entryID string, rank int) error
	SetEntryPrize(ctx context.Context, entryID, prizeID string) error

	// --- Wheel ---

	InsertWheelPrize(ctx context.Context, p *model.WheelPrize) error
	UpdateWheelPrize(ctx context.Context, p *model.WheelPrize) error
	GetWheelPrize(ctx context.Context, id string) (*model.WheelPrize, error)

	// ListWheelPrizes returns prizes ordered by Order.
	ListWheelPrizes(ctx context.Context, activeOnly bool) ([]model.WheelPrize, error)
	InsertWheelSpin(ctx context.Context, s *model.WheelSpin) error
	ListWheelSpins(ctx context.Context, userID string, p model.Page) ([]model.WheelSpin, int, error)

	// --- Slide ---

	InsertSlideRound(ctx context.Context, r *model.SlideRound) error

	// CurrentSlideRound locks and returns the latest round if it is unexpired
	// and unwon at now. Older rounds are superseded and never current.
	// Returns model.ErrNotFound otherwise.
	CurrentSlideRound(ctx context.Context, now time.Time) (*model.SlideRound, error)

	// MarkSlideRoundWon returns model.ErrInvalidState if already won.
	MarkSlideRoundWon(ctx context.Context, roundID, userID string, at time.Time) error
	InsertSlideGame(ctx context.Context, g *model.SlideGame) error
	ListSlideGames(ctx context.Context, userID string, p model.Page) ([]model.SlideGame, int, error)
	RecentSlideWinners(ctx context.Context, limit int) ([]model.SlideGame, error)

	// --- Referrals ---

	// InsertReferralCode returns model.ErrDuplicateEntry on a code clash.
	InsertReferralCode(ctx context.Context, rc *model.ReferralCode) error
	GetReferralCode(ctx context.Context, userID string) (*model.ReferralCode, error)
	FindReferralCode(ctx context.Context, code string) (*model.ReferralCode, error)

	// InsertReferral returns model.ErrDuplicateEntry if the user was already referred.
	InsertReferral(ctx context.Context, r *model.Referral) error
	GetReferralByReferred(ctx context.Context, referredID string) (*model.Referral, error)

	// ListReferrals returns up to limit referrals, newest first, and the
	// total count. A zero limit returns all of them.
	ListReferrals(ctx context.Context, referrerID string, limit int) ([]model.Referral, int, error)

	// CountReferralsFrom counts referrals of referrerID sharing the ip or device.
	CountReferralsFrom(ctx context.Context, referrerID, ip, device string) (int, error)
	MarkReferralChanceGranted(ctx context.Context, id string) error
	CountChancesBySource(ctx context.Context, userID, source string) (int, error)

	// --- Settings ---

	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	PutSetting(ctx context.Context, s *model.Setting) error

	// --- Reporting ---

	DashboardStats(ctx context.Context) (model.DashboardStats, error)
}
