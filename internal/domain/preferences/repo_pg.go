package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/scribe/internal/platform/db"
)

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const prefColumns = `user_id, custom_menu_items, custom_sub_menus, starred_menu_items,
	credential_sealed, created_at, updated_at`

func (r *repoPG) Get(ctx context.Context, userID string) (*Preferences, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prefColumns+` FROM user_preferences WHERE user_id = $1`, userID))
}

func (r *repoPG) GetForUpdate(ctx context.Context, userID string) (*Preferences, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prefColumns+` FROM user_preferences WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *repoPG) Save(ctx context.Context, p *Preferences) error {
	var sealed *string
	if p.SealedCredential != "" {
		sealed = &p.SealedCredential
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_preferences (
			user_id, custom_menu_items, custom_sub_menus, starred_menu_items, credential_sealed
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			custom_menu_items = EXCLUDED.custom_menu_items,
			custom_sub_menus = EXCLUDED.custom_sub_menus,
			starred_menu_items = EXCLUDED.starred_menu_items,
			credential_sealed = EXCLUDED.credential_sealed,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		p.UserID, p.CustomItems, p.SubMenus, p.Starred, sealed,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	p.normalize()
	return nil
}

func (r *repoPG) scan(row pgx.Row) (*Preferences, error) {
	var p Preferences
	var sealed *string
	err := row.Scan(&p.UserID, &p.CustomItems, &p.SubMenus, &p.Starred,
		&sealed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if sealed != nil {
		p.SealedCredential = *sealed
	}
	p.normalize()
	return &p, nil
}
