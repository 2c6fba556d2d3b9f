package domain

import "time"

// Extend applies a paid renewal of months to current (nil when no row exists).
//
// A subscription active at now keeps its start and gains months on top of its
// current end. Anything else restarts at now. The result is always ACTIVE and
// never a trial.
func Extend(current *Subscription, now time.Time, months int) Subscription {
	if months < 1 {
		months = 1
	}

	var next Subscription
	if current != nil {
		next = *current
	}

	if current != nil && current.ActiveAt(now) {
		next.EndAt = AddMonths(current.EndAt, months)
	} else {
		next.StartAt = now
		next.EndAt = AddMonths(now, months)
	}
	next.Status = SubscriptionStatusActive
	next.IsTrial = false
	next.UpdatedAt = now
	return next
}

// AddMonths adds calendar months, clamping to the last day of the target
// month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
