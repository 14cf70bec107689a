package preferences

import "context"

// Repository persists one Preferences document per user.
type Repository interface {
	// Get returns ErrNotFound when the user has no saved preferences.
	Get(ctx context.Context, userID string) (*Preferences, error)
	// GetForUpdate is Get with a row lock held until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, userID string) (*Preferences, error)
	Save(ctx context.Context, p *Preferences) error
}
