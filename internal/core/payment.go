package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrExceedsBalance    = errors.New("payment cannot exceed balance")
	ErrPaymentNotAllowed = errors.New("expense is not payable in its current status")
)

// PaymentPlan is the derived outcome of applying a payment amount to an
// outstanding balance. It is shown to the user as a preview before
// confirmation and re-derived identically at commit time.
type PaymentPlan struct {
	NewBalance Money
	NewStatus  Status
}

// PlanPayment computes the balance and status that result from paying amount
// against balance. It fails without side effects when the amount is
// non-positive or exceeds the balance.
func PlanPayment(balance, amount Money) (PaymentPlan, error) {
	if amount.Kobo <= 0 {
		return PaymentPlan{}, ErrInvalidAmount
	}
	if amount.Kobo > balance.Kobo {
		return PaymentPlan{}, ErrExceedsBalance
	}
	newBalance := balance.Sub(amount)
	plan := PaymentPlan{NewBalance: newBalance, NewStatus: StatusPartPay}
	if newBalance.IsZero() {
		plan.NewStatus = StatusPaid
	}
	return plan, nil
}

// PaymentMemo synthesizes the slash-joined reconciliation token recorded with
// each payment: account/vendor/timestamp/expenseID/amount. Downstream audit
// tooling greps these; nothing in this client parses them back.
func PaymentMemo(account, vendor string, at time.Time, expenseID string, amount Money) string {
	return fmt.Sprintf("%s/%s/%d/%s/%s", account, vendor, at.UnixMilli(), expenseID, amount.String())
}
