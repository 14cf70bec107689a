package preferences

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("preferences not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnknownList  = errors.New("unknown menu list")
)

// Preferences is one clinician's picker customisation and saved generation
// credential. Maps are keyed by menu list key (see Catalog).
type Preferences struct {
	UserID      string              `json:"user_id"`
	CustomItems map[string][]string `json:"custom_menu_items"`
	SubMenus    map[string][]string `json:"custom_sub_menus"`
	Starred     map[string][]string `json:"starred_menu_items"`
	// SealedCredential is the encrypted API key, empty when none is saved.
	SealedCredential string    `json:"-"`
	HasCredential    bool      `json:"has_credential"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:      userID,
		CustomItems: map[string][]string{},
		SubMenus:    map[string][]string{},
		Starred:     map[string][]string{},
	}
}

// normalize makes nil maps empty and refreshes HasCredential.
func (p *Preferences) normalize() {
	if p.CustomItems == nil {
		p.CustomItems = map[string][]string{}
	}
	if p.SubMenus == nil {
		p.SubMenus = map[string][]string{}
	}
	if p.Starred == nil {
		p.Starred = map[string][]string{}
	}
	p.HasCredential = p.SealedCredential != ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
