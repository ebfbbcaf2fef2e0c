package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/catalog"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// TaskCooldown gates repeatable tasks such as the daily ad watch.
const TaskCooldown = 24 * time.Hour

func (s *service) ClaimTask(ctx context.Context, accountID uuid.UUID, taskID string) (*models.LedgerEntry, error) {
	task, ok := s.tasks.Lookup(taskID)
	if !ok {
		return nil, apperr.NotFound(apperr.ReasonTaskNotFound, "task %q does not exist", taskID)
	}
	var out *models.LedgerEntry
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if _, err := s.accrueLocked(ctx, tx, acc, now); err != nil {
			return err
		}

		switch task.Kind {
		case catalog.TaskReferralGated:
			if acc.HasCompletedTask(task.ID) {
				return apperr.Conflict(apperr.ReasonTaskAlreadyCompleted, "task %q is already completed", task.ID)
			}
			if acc.ReferralCount < s.cfg.ReferralTaskThreshold {
				return apperr.Validation(apperr.ReasonReferralThreshold,
					"you need %d referrals to claim this, you currently have %d", s.cfg.ReferralTaskThreshold, acc.ReferralCount)
			}
		case catalog.TaskRepeatCooldown:
			if acc.LastAdWatch != nil {
				if wait := acc.LastAdWatch.Add(TaskCooldown).Sub(now); wait > 0 {
					return apperr.Validation(apperr.ReasonCooldownActive, "next reward available in %s", wait.Round(time.Minute))
				}
			}
			watched := now
			acc.LastAdWatch = &watched
		default:
			if acc.HasCompletedTask(task.ID) {
				return apperr.Conflict(apperr.ReasonTaskAlreadyCompleted, "task %q is already completed", task.ID)
			}
		}

		acc.Balance = acc.Balance.Add(task.Reward)
		if !acc.HasCompletedTask(task.ID) {
			acc.CompletedTasks = append(acc.CompletedTasks, task.ID)
		}
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		entry := newEntry(acc.ID, models.KindTaskReward, models.StatusCompleted, task.Reward, now)
		entry.Reference = task.ID
		out = entry
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
