package gatekit

import (
	"time"

	"github.com/uptrace/bun"
)

// LimiterConfig holds the per-account rate limiter configuration. Limits are
// enforced over two coupled sliding windows: a discrete block-height window
// and a wall-clock window. Cooldowns gate consecutive accesses independently
// of the window counts.
type LimiterConfig struct {
	bun.BaseModel `bun:"table:limiter_configs,alias:lc"`

	ID      string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account string `bun:"account,notnull,unique"`

	MaxPerBlockWindow int64 `bun:"max_per_block_window,notnull"`
	BlockWindowSize   int64 `bun:"block_window_size,notnull"` // blocks

	MaxPerTimeWindow int64         `bun:"max_per_time_window,notnull"`
	TimeWindow       time.Duration `bun:"time_window_ns,notnull"`

	BlockCooldown int64         `bun:"block_cooldown,notnull"` // blocks
	TimeCooldown  time.Duration `bun:"time_cooldown_ns,notnull"`

	// Admin is the only identity allowed to update limits or reset records.
	Admin string `bun:"admin,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Validate checks the configuration for usable values.
func (c *LimiterConfig) Validate() error {
	if c.MaxPerBlockWindow <= 0 || c.MaxPerTimeWindow <= 0 {
		return NewError(ErrInvalidArgument, "window limits must be positive").WithAccount(c.Account)
	}
	if c.BlockWindowSize <= 0 || c.TimeWindow <= 0 {
		return NewError(ErrInvalidArgument, "window sizes must be positive").WithAccount(c.Account)
	}
	if c.BlockCooldown < 0 || c.TimeCooldown < 0 {
		return NewError(ErrInvalidArgument, "cooldowns must not be negative").WithAccount(c.Account)
	}
	if c.Admin == "" {
		return NewError(ErrInvalidArgument, "limiter admin is required").WithAccount(c.Account)
	}
	return nil
}

// AccessRecord is the per-identity access accounting state for one account.
// It is created lazily on first access and updated on every subsequent
// access; it is never garbage-collected.
type AccessRecord struct {
	bun.BaseModel `bun:"table:access_records,alias:ar"`

	ID       string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account  string `bun:"account,notnull"`
	Identity string `bun:"identity,notnull"`

	LastAccessBlock int64     `bun:"last_access_block,notnull"`
	LastAccessTime  time.Time `bun:"last_access_time,notnull"`

	CountInWindow    int64     `bun:"count_in_window,notnull"`
	WindowStartBlock int64     `bun:"window_start_block,notnull"`
	WindowStartTime  time.Time `bun:"window_start_time,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// AccessPoint is one observation of the two time dimensions the limiter
// tracks: the monotonic block height and the wall clock.
type AccessPoint struct {
	Block int64
	Time  time.Time
}

// NewAccessRecord creates the record for an identity's first access.
func NewAccessRecord(account, identity string, at AccessPoint) *AccessRecord {
	return &AccessRecord{
		Account:          account,
		Identity:         identity,
		LastAccessBlock:  at.Block,
		LastAccessTime:   at.Time,
		CountInWindow:    1,
		WindowStartBlock: at.Block,
		WindowStartTime:  at.Time,
	}
}

// Allows reports whether an access at the given point would be permitted.
// It never mutates the record. A nil record (identity never seen) is always
// allowed. All four gates are ANDed: both cooldowns must have elapsed, and
// in each dimension the window must either have elapsed or still have count
// headroom.
func (c *LimiterConfig) Allows(rec *AccessRecord, at AccessPoint) bool {
	if rec == nil {
		return true
	}
	if at.Block-rec.LastAccessBlock < c.BlockCooldown {
		return false
	}
	if at.Time.Sub(rec.LastAccessTime) < c.TimeCooldown {
		return false
	}
	if !c.blockWindowElapsed(rec, at) && rec.CountInWindow >= c.MaxPerBlockWindow {
		return false
	}
	if !c.timeWindowElapsed(rec, at) && rec.CountInWindow >= c.MaxPerTimeWindow {
		return false
	}
	return true
}

func (c *LimiterConfig) blockWindowElapsed(rec *AccessRecord, at AccessPoint) bool {
	return at.Block-rec.WindowStartBlock >= c.BlockWindowSize
}

func (c *LimiterConfig) timeWindowElapsed(rec *AccessRecord, at AccessPoint) bool {
	return at.Time.Sub(rec.WindowStartTime) >= c.TimeWindow
}

// Advance applies one access to the record. The two window dimensions are
// coupled: when either has elapsed, the count resets to 1 and BOTH window
// anchors move to the current point. The last-access cooldown anchors are
// refreshed on every access.
func (r *AccessRecord) Advance(c *LimiterConfig, at AccessPoint) {
	if c.blockWindowElapsed(r, at) || c.timeWindowElapsed(r, at) {
		r.CountInWindow = 1
		r.WindowStartBlock = at.Block
		r.WindowStartTime = at.Time
	} else {
		r.CountInWindow++
	}
	r.LastAccessBlock = at.Block
	r.LastAccessTime = at.Time
}
