package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/models"
)

// Team lists the invitees up to three levels below an account.
type Team struct {
	Level1 []models.AccountSummary `json:"level1"`
	Level2 []models.AccountSummary `json:"level2"`
	Level3 []models.AccountSummary `json:"level3"`
}

func (s *service) Team(ctx context.Context, accountID uuid.UUID) (*Team, error) {
	if _, err := s.store.Account(ctx, accountID); err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]struct{}{accountID: {}}
	levels := make([][]models.AccountSummary, len(CommissionRates))
	frontier := []uuid.UUID{accountID}
	for depth := range levels {
		var next []uuid.UUID
		for _, parent := range frontier {
			kids, err := s.store.Referrals(ctx, parent)
			if err != nil {
				return nil, err
			}
			for _, k := range kids {
				if _, dup := seen[k.ID]; dup {
					continue
				}
				seen[k.ID] = struct{}{}
				levels[depth] = append(levels[depth], k.Summary())
				next = append(next, k.ID)
			}
		}
		frontier = next
	}
	return &Team{
		Level1: nonNil(levels[0]),
		Level2: nonNil(levels[1]),
		Level3: nonNil(levels[2]),
	}, nil
}

func nonNil(s []models.AccountSummary) []models.AccountSummary {
	if s == nil {
		return []models.AccountSummary{}
	}
	return s
}
