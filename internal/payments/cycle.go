package payments

import (
	"time"

	"github.com/gymdesk/gymdesk/internal/students"
)

// NextDueDate derives the next due date from a payment date. Monthly adds one
// calendar month with time.AddDate normalization (Jan 31 rolls into March),
// weekly adds seven days and class passes do not roll forward. Unknown types
// have no next date.
func NextDueDate(reference time.Time, membership students.MembershipType) (time.Time, bool) {
	switch membership {
	case students.MembershipMonthly:
		return reference.AddDate(0, 1, 0), true
	case students.MembershipWeekly:
		return reference.AddDate(0, 0, 7), true
	case students.MembershipClass:
		return reference, true
	default:
		return time.Time{}, false
	}
}

// CycleFrom computes the student cycle from the latest-dated payment. A nil
// payment resets both dates.
func CycleFrom(latest *Payment) students.Cycle {
	if latest == nil {
		return students.Cycle{}
	}
	last := latest.PaymentDate
	cycle := students.Cycle{LastPaymentDate: &last}
	if next, ok := NextDueDate(latest.PaymentDate, latest.PaymentType); ok {
		cycle.NextPaymentDate = &next
	}
	return cycle
}

func sameCycle(a, b students.Cycle) bool {
	return sameTime(a.LastPaymentDate, b.LastPaymentDate) && sameTime(a.NextPaymentDate, b.NextPaymentDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
