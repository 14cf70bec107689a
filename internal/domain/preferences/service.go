package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/scribe/internal/platform/secret"
)

// TxFunc runs fn in a transaction.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo      Repository
	catalog   *Catalog
	sealer    secret.Sealer
	serverKey string
	inTx      TxFunc
	logger    zerolog.Logger
}

// NewService wires the preference store. serverKey is the deployment-wide
// generation credential used when a user has not saved their own.
func NewService(repo Repository, catalog *Catalog, sealer secret.Sealer, serverKey string, inTx TxFunc, logger zerolog.Logger) *Service {
	if inTx == nil {
		inTx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		repo:      repo,
		catalog:   catalog,
		sealer:    sealer,
		serverKey: strings.TrimSpace(serverKey),
		inTx:      inTx,
		logger:    logger.With().Str("component", "preferences").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return newPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// update loads, mutates and saves the user's document under a row lock.
func (s *Service) update(ctx context.Context, userID string, fn func(p *Preferences) error) (*Preferences, error) {
	var out *Preferences
	err := s.inTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			p = newPreferences(userID)
		} else if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return v, nil
}

func (s *Service) checkList(p *Preferences, key string) error {
	if _, ok := s.catalog.resolve(p, key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownList, key)
	}
	return nil
}

// AddMenuItem adds a custom item to a list. Items already present, built in
// or custom, are left alone.
func (s *Service) AddMenuItem(ctx context.Context, userID, key, item string) (*Preferences, error) {
	item, err := requireText("item", item)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, userID, func(p *Preferences) error {
		if err := s.checkList(p, key); err != nil {
			return err
		}
		if base, ok := s.catalog.base(key); ok && contains(base.Items, item) {
			return nil
		}
		if !contains(p.CustomItems[key], item) {
			p.CustomItems[key] = append(p.CustomItems[key], item)
		}
		return nil
	})
}

// RemoveMenuItem removes a custom item and its star.
func (s *Service) RemoveMenuItem(ctx context.Context, userID, key, item string) (*Preferences, error) {
	item = strings.TrimSpace(item)
	return s.update(ctx, userID, func(p *Preferences) error {
		if !contains(p.CustomItems[key], item) {
			return fmt.Errorf("%w: %q is not a custom item of %q", ErrNotFound, item, key)
		}
		p.CustomItems[key] = without(p.CustomItems[key], item)
		if len(p.CustomItems[key]) == 0 {
			delete(p.CustomItems, key)
		}
		p.Starred[key] = without(p.Starred[key], item)
		if len(p.Starred[key]) == 0 {
			delete(p.Starred, key)
		}
		return nil
	})
}

// AddSubMenu creates a nested custom list under parent.
func (s *Service) AddSubMenu(ctx context.Context, userID, parent, name string) (*Preferences, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: sub-menu names cannot contain '/'", ErrInvalidInput)
	}
	return s.update(ctx, userID, func(p *Preferences) error {
		if err := s.checkList(p, parent); err != nil {
			return err
		}
		if _, ok := s.catalog.base(parent + "/" + name); ok {
			return fmt.Errorf("%w: %q already exists", ErrInvalidInput, parent+"/"+name)
		}
		if !contains(p.SubMenus[parent], name) {
			p.SubMenus[parent] = append(p.SubMenus[parent], name)
		}
		return nil
	})
}

// ToggleStar pins or unpins an item and reports the new state.
func (s *Service) ToggleStar(ctx context.Context, userID, key, item string) (*Preferences, bool, error) {
	item, err := requireText("item", item)
	if err != nil {
		return nil, false, err
	}
	var starred bool
	p, err := s.update(ctx, userID, func(p *Preferences) error {
		if err := s.checkList(p, key); err != nil {
			return err
		}
		if contains(p.Starred[key], item) {
			p.Starred[key] = without(p.Starred[key], item)
			if len(p.Starred[key]) == 0 {
				delete(p.Starred, key)
			}
			return nil
		}
		p.Starred[key] = append(p.Starred[key], item)
		starred = true
		return nil
	})
	return p, starred, err
}

// Menu returns the merged picker for userID.
func (s *Service) Menu(ctx context.Context, userID string) ([]MenuGroup, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.Menu(p), nil
}

// SetCredential saves the user's generation API key, encrypted.
func (s *Service) SetCredential(ctx context.Context, userID, key string) (*Preferences, error) {
	key, err := requireText("api_key", key)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(userID, key)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}
	p, err := s.update(ctx, userID, func(p *Preferences) error {
		p.SealedCredential = sealed
		return nil
	})
	if err == nil {
		s.logger.Info().Str("user_id", userID).Msg("generation credential saved")
	}
	return p, err
}

func (s *Service) ClearCredential(ctx context.Context, userID string) (*Preferences, error) {
	return s.update(ctx, userID, func(p *Preferences) error {
		p.SealedCredential = ""
		return nil
	})
}

// Credential resolves the generation API key for userID: the saved key if
// any, else the server key. An empty result means no credential is
// configured.
func (s *Service) Credential(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.serverKey, nil
	}
	if err != nil {
		return "", err
	}
	if p.SealedCredential == "" {
		return s.serverKey, nil
	}
	key, err := s.sealer.Open(userID, p.SealedCredential)
	if err != nil {
		// Unreadable keys fall back to the server key.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("saved credential unreadable")
		return s.serverKey, nil
	}
	return key, nil
}
