package services

import (
	"context"

	"pairchat/internal/models"
	"pairchat/internal/store"
)

// ContactService manages per-user contact lists.
type ContactService struct {
	store store.Store
}

func NewContactService(st store.Store) *ContactService {
	return &ContactService{store: st}
}

// AddContact resolves both numbers and appends the contact to the owner's
// list, creating the list document on first use.
func (s *ContactService) AddContact(ctx context.Context, ownerNumber, contactNumber, contactName string) (*models.Contact, error) {
	owner, err := s.store.GetUserByNumber(ctx, ownerNumber)
	if err != nil {
		return nil, err
	}
	contactUser, err := s.store.GetUserByNumber(ctx, contactNumber)
	if err != nil {
		return nil, err
	}

	contact := models.Contact{
		ContactUserID: contactUser.ID,
		Number:        contactNumber,
		Name:          contactName,
	}
	if err := s.store.AddContact(ctx, owner.ID, contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns the user's contacts; store.ErrNoContacts when the
// list was never created.
func (s *ContactService) ListContacts(ctx context.Context, number string) ([]models.Contact, error) {
	user, err := s.store.GetUserByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.store.ListContacts(ctx, user.ID)
}
