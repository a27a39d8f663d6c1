package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/repository"
)

// maxPointsPerTopUp bounds a single add-points call.
const maxPointsPerTopUp = 10000

// Balance is the wallet summary for a user.
type Balance struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
}

// Transaction is a single wallet movement. Only top-ups are recorded in
// this release; history starts empty for existing accounts.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// WalletService exposes the points balance carried on the user record.
type WalletService struct {
	users repository.UserRepository
}

// NewWalletService creates a WalletService.
func NewWalletService(users repository.UserRepository) *WalletService {
	return &WalletService{users: users}
}

// GetBalance returns the user's current points balance.
func (s *WalletService) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/wallet: fetching user %s: %w", userID, err)
	}
	return &Balance{UserID: user.ID, Points: user.PointsBalance}, nil
}

// AddPoints credits points to the user and returns the resulting
// transaction record together with the new balance.
func (s *WalletService) AddPoints(ctx context.Context, userID string, points int, reason string) (*Transaction, *Balance, error) {
	if points <= 0 || points > maxPointsPerTopUp {
		return nil, nil, fmt.Errorf("service/wallet: %w",
			apperror.ValidationFailed("points",
				fmt.Sprintf("points must be between 1 and %d", maxPointsPerTopUp)))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/wallet: fetching user %s: %w", userID, err)
	}

	user.PointsBalance += points
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("service/wallet: crediting user %s: %w", userID, err)
	}

	tx := &Transaction{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Points:    points,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	return tx, &Balance{UserID: user.ID, Points: user.PointsBalance}, nil
}

// ListTransactions returns the user's wallet history. Persistence of
// individual movements is not implemented yet, so the list is empty; the
// endpoint exists so clients can code against the final shape.
func (s *WalletService) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/wallet: fetching user %s: %w", userID, err)
	}
	return []Transaction{}, nil
}
