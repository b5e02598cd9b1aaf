package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKindLeadReactivation marks notifications produced by the
// reactivation sweep.
const NotificationKindLeadReactivation = "lead_reactivation"

// Notification is a write-once record handed to an external dispatcher.
// The engine guarantees correct construction and exactly one record per
// triggering event; delivery is out of scope.
type Notification struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Kind      string
	Text      string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

// OnOrBeforeDay reports whether t's UTC date is on or before the UTC date of
// ref. Reactivation dueness is compared date-only; time of day is ignored.
func OnOrBeforeDay(t, ref time.Time) bool {
	ty, tm, td := t.UTC().Date()
	ry, rm, rd := ref.UTC().Date()
	tDay := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	rDay := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	return !tDay.After(rDay)
}
