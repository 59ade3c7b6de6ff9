// Package model defines the core domain types shared across the rewards engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TxDeposit        TransactionType = "DEPOSIT"
	TxWithdrawal     TransactionType = "WITHDRAWAL"
	TxTicketPurchase TransactionType = "TICKET_PURCHASE"
	TxCashback       TransactionType = "CASHBACK"
	TxPrize          TransactionType = "PRIZE"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxTicketPurchase, TxCashback, TxPrize:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a Transaction. PENDING is the
// only mutable state.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Wallet holds a user's spendable balance. Owned by the ledger.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is the audit record paired with every balance change.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      TransactionType   `json:"type"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TransactionFilter narrows transaction listings. Zero values match everything.
type TransactionFilter struct {
	UserID string
	Type   TransactionType
	Status TransactionStatus
	Page   Page
}

// Page is a 1-based pagination window.
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// Normalize clamps the page into a sane window.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination builds the pagination envelope for a result set.
func NewPagination(p Page, total int) Pagination {
	p = p.Normalize()
	return Pagination{
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}
}

// Chance sources and purposes.
const (
	SourceTicket   = "TICKET"
	SourceReferral = "REFERRAL"
	SourcePrize    = "PRIZE"

	UsedForLottery = "LOTTERY"
	UsedForWheel   = "WHEEL"
	UsedForSlide   = "SLIDE"
)

// Chance is a consumable token spent on games.
type Chance struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Source    string     `json:"source"`
	SourceID  string     `json:"source_id,omitempty"`
	Used      bool       `json:"used"`
	UsedFor   string     `json:"used_for,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChanceSummary counts a user's chances.
type ChanceSummary struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Available int `json:"available"`
}

// Ticket is one purchased lottery ticket.
type Ticket struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	LotteryID       string          `json:"lottery_id,omitempty"`
	BasePrice       decimal.Decimal `json:"base_price"`
	DiscountPercent int             `json:"discount_percent"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	ChanceGranted   bool            `json:"chance_granted"`
	CashbackGiven   bool            `json:"cashback_given"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LotteryStatus is the monotonic lottery lifecycle.
type LotteryStatus string

const (
	LotteryUpcoming  LotteryStatus = "UPCOMING"
	LotteryActive    LotteryStatus = "ACTIVE"
	LotteryDrawing   LotteryStatus = "DRAWING"
	LotteryCompleted LotteryStatus = "COMPLETED"
)

// Lottery is a scheduled draw.
type Lottery struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      LotteryStatus `json:"status"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	DrawDate    *time.Time    `json:"draw_date,omitempty"`
	MaxEntries  *int          `json:"max_entries,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// LotteryEntry is a user's single participation in a lottery.
type LotteryEntry struct {
	ID          string    `json:"id"`
	LotteryID   string    `json:"lottery_id"`
	UserID      string    `json:"user_id"`
	Rank        *int      `json:"rank,omitempty"`
	PrizeID     string    `json:"prize_id,omitempty"`
	ChancesUsed int       `json:"chances_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// PrizeType is shared by lottery bands and wheel slots.
type PrizeType string

const (
	PrizeCash   PrizeType = "CASH"
	PrizeCar    PrizeType = "CAR"
	PrizeGold   PrizeType = "GOLD"
	PrizeChance PrizeType = "CHANCE"
	PrizeTicket PrizeType = "TICKET"
)

// Prize is a lottery rank band [RankFrom, RankTo].
type Prize struct {
	ID        string           `json:"id"`
	LotteryID string           `json:"lottery_id"`
	Type      PrizeType        `json:"type"`
	Name      string           `json:"name"`
	RankFrom  int              `json:"rank_from"`
	RankTo    int              `json:"rank_to"`
	Value     *decimal.Decimal `json:"value,omitempty"`
}

// Covers reports whether rank falls inside the band.
func (p Prize) Covers(rank int) bool {
	return rank >= p.RankFrom && rank <= p.RankTo
}

// WheelPrize is one slot on the prize wheel.
type WheelPrize struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        PrizeType       `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Probability decimal.Decimal `json:"probability"`
	Order       int             `json:"order"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PrizeSnapshot freezes the awarded prize at the time of play.
type PrizeSnapshot struct {
	PrizeID string          `json:"prize_id"`
	Name    string          `json:"name"`
	Type    PrizeType       `json:"type"`
	Value   decimal.Decimal `json:"value"`
}

// WheelSpin is an immutable spin result.
type WheelSpin struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	PrizeID     string        `json:"prize_id"`
	ChancesUsed int           `json:"chances_used"`
	Result      PrizeSnapshot `json:"result"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SlideMode selects how the slide target is chosen.
type SlideMode string

const (
	SlideLive SlideMode = "LIVE"
	SlideAuto SlideMode = "AUTO"
)

// SlideRound is an admin-set shared AUTO target.
type SlideRound struct {
	ID           string     `json:"id"`
	TargetNumber int        `json:"target_number"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	WonBy        string     `json:"won_by,omitempty"`
	WonAt        *time.Time `json:"won_at,omitempty"`
}

// Open reports whether the round can still be won at t.
func (r SlideRound) Open(t time.Time) bool {
	return r.WonAt == nil && t.Before(r.ExpiresAt)
}

// SlideGame is an immutable record of one slide play.
type SlideGame struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Mode         SlideMode       `json:"mode"`
	RoundID      string          `json:"round_id,omitempty"`
	TargetNumber int             `json:"target_number"`
	UserNumber   int             `json:"user_number"`
	IsWinner     bool            `json:"is_winner"`
	ChancesUsed  int             `json:"chances_used"`
	Payout       decimal.Decimal `json:"payout"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReferralCode maps a user to their shareable code.
type ReferralCode struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Referral links a referred user to their referrer.
type Referral struct {
	ID                string    `json:"id"`
	ReferrerID        string    `json:"referrer_id"`
	ReferredID        string    `json:"referred_id"`
	Code              string    `json:"code"`
	IPAddress         string    `json:"ip_address,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	Suspicious        bool      `json:"suspicious"`
	IsActive          bool      `json:"is_active"`
	ChanceGranted     bool      `json:"chance_granted"`
	CreatedAt         time.Time `json:"created_at"`
}

// Setting is an admin-managed key/value pair.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	Wallets            int             `json:"wallets"`
	Transactions       int             `json:"transactions"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
	Lotteries          int             `json:"lotteries"`
	ActiveLotteries    int             `json:"active_lotteries"`
	Tickets            int             `json:"tickets"`
	TotalDeposits      decimal.Decimal `json:"total_deposits"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
}
