package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/menucraft/apiserver/types"
)

// itemColumns resolves the canonical owner at read time: rows written by
// older releases carry the owner under user_id only, newer rows under both
// owner_id and user_id. First populated column wins.
const itemColumns = `
	id, name, summary, description, image, category, price, priority,
	available_date, COALESCE(owner_id, user_id, 0) AS owner_id, owner_email,
	created_at, updated_at`

// ItemRepository handles persistence for menu items.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// List returns items for public browsing, newest first. A non-empty search
// narrows by case-insensitive substring on name; a non-empty category
// narrows by case-insensitive exact match. Both filters combine with AND.
func (r *ItemRepository) List(ctx context.Context, search, category string) ([]types.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`

	var conds []string
	var args []any
	if search != "" {
		args = append(args, "%"+escapeLikePattern(search)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListByOwner returns the caller's items, newest first, regardless of which
// legacy column recorded the ownership.
func (r *ItemRepository) ListByOwner(ctx context.Context, ownerID int) ([]types.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM items
		WHERE COALESCE(owner_id, user_id, 0) = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *ItemRepository) Get(ctx context.Context, id int) (types.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

// Create inserts a new item. The owner is written under both the canonical
// owner_id column and the legacy user_id column so pre-migration readers of
// the table keep working.
func (r *ItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `
		INSERT INTO items (name, summary, description, image, category, price, priority,
			available_date, owner_id, user_id, owner_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.Name,
		item.Summary,
		item.Description,
		item.Image,
		item.Category,
		item.Price,
		item.Priority,
		item.AvailableDate,
		item.OwnerID,
		item.OwnerEmail,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID); err != nil {
		return types.Item{}, err
	}
	return item, nil
}

// Update writes the item's mutable fields. Owner columns and created_at are
// never touched; ownership cannot move via update.
func (r *ItemRepository) Update(ctx context.Context, item types.Item) (types.Item, error) {
	item.UpdatedAt = time.Now()

	const query = `
		UPDATE items
		SET name = $1,
			summary = $2,
			description = $3,
			image = $4,
			category = $5,
			price = $6,
			priority = $7,
			available_date = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		item.Name,
		item.Summary,
		item.Description,
		item.Image,
		item.Category,
		item.Price,
		item.Priority,
		item.AvailableDate,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return types.Item{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Item{}, err
	}
	if affected == 0 {
		return types.Item{}, ErrNotFound
	}
	return item, nil
}

// Delete removes an item. Deleting an id that no longer exists reports
// ErrNotFound rather than succeeding silently.
func (r *ItemRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM items WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLikePattern neutralizes the ILIKE metacharacters so a search for
// "100%" matches the literal text instead of everything.
func escapeLikePattern(value string) string {
	return likeEscaper.Replace(value)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var item types.Item
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Summary,
		&item.Description,
		&item.Image,
		&item.Category,
		&item.Price,
		&item.Priority,
		&item.AvailableDate,
		&item.OwnerID,
		&item.OwnerEmail,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func scanItems(rows *sql.Rows) ([]types.Item, error) {
	items := make([]types.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
