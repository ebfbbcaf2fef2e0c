package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// CommissionRates are paid per referral level, level 1 first.
var CommissionRates = []decimal.Decimal{
	decimal.RequireFromString("0.15"),
	decimal.RequireFromString("0.02"),
	decimal.RequireFromString("0.01"),
}

type commission struct {
	level    int
	referrer *models.Account
	amount   decimal.Decimal
}

// planCascade walks the referrer chain above depositor and locks every
// referrer that earns a commission. Amounts are computed from the locked
// snapshots; nothing is written here. A revisited account or a referrer that
// does not exist aborts the whole approval.
func planCascade(ctx context.Context, tx store.Tx, depositor *models.Account, amount decimal.Decimal) ([]commission, error) {
	visited := map[uuid.UUID]struct{}{depositor.ID: {}}
	var plan []commission
	next := depositor.ReferredBy
	for level := 1; level <= len(CommissionRates) && next != nil; level++ {
		id := *next
		if _, seen := visited[id]; seen {
			return nil, apperr.Integrity(apperr.ReasonReferralCycle, "referral chain of account %s loops at %s", depositor.ID, id)
		}
		visited[id] = struct{}{}

		ref, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, integrityIfMissing(err, id)
		}
		plan = append(plan, commission{
			level:    level,
			referrer: ref,
			amount:   amount.Mul(CommissionRates[level-1]),
		})
		next = ref.ReferredBy
	}
	return plan, nil
}

func commissionReference(level int, depositRef string) string {
	return fmt.Sprintf("COMM-L%d-%s", level, depositRef)
}
