// Package syncer implements the bounded units of work behind the
// resumable sync protocol: activity page fetches and stream backfill
// batches. Each exported call performs at most one page or one batch,
// persists everything it fetched before returning, and holds no state
// between calls, so a caller can stop and re-invoke at any point
// without corrupting anything — only not-yet-done work is lost.
package syncer

import (
	"time"

	"github.com/lildude/stravasync/internal/invalidate"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultBackfillLimit caps a backfill batch when the caller does
	// not supply a limit.
	DefaultBackfillLimit = 5

	// tokenExpiryMargin is how close to expiry a token may get before
	// a unit refreshes it up front.
	tokenExpiryMargin = 60 * time.Second
)

// Syncer runs sync units against the shared store. Units for the same
// owner are serialized through per-owner locks; unrelated owners never
// contend.
type Syncer struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	notifier *invalidate.Notifier
	locks    ownerLocks
}

func New(db *gorm.DB, log logrus.FieldLogger, notifier *invalidate.Notifier) *Syncer {
	return &Syncer{db: db, log: log, notifier: notifier}
}

// PageResult is the outcome of one paging unit. NextPage is set for
// every non-empty page; callers follow it only while Complete is false.
type PageResult struct {
	Synced   int      `json:"synced"`
	Complete bool     `json:"complete"`
	NextPage int      `json:"next_page,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BackfillResult is the outcome of one stream backfill unit.
type BackfillResult struct {
	Synced      int      `json:"synced"`
	Remaining   int      `json:"remaining"`
	Complete    bool     `json:"complete"`
	RateLimited bool     `json:"rateLimited,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}
