package service

import (
	"context"

	"devconnector/logger"
	"devconnector/store"
)

type AccountService struct {
	store store.Store
}

func NewAccountService(s store.Store) *AccountService {
	return &AccountService{store: s}
}

// DeleteAccount removes the caller's profile and user record together. A
// caller without a profile is fine.
func (s *AccountService) DeleteAccount(ctx context.Context, who Identity) error {
	if err := s.store.DeleteAccount(ctx, who.UserID); err != nil {
		return storageError(err, "delete account")
	}
	logger.Log.WithField("user", who.UserID.Hex()).Info("account deleted")
	return nil
}
