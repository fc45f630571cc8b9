package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

// UserMemoryRepo stores each user's memory as a single JSON document.
// The whole document is read and written per turn; concurrent writers
// for the same user are last-writer-wins.
type UserMemoryRepo struct {
	db *sql.DB
}

func NewUserMemoryRepo(db *sql.DB) *UserMemoryRepo {
	return &UserMemoryRepo{db: db}
}

func (r *UserMemoryRepo) Get(ctx context.Context, userID string) (*core.UserMemory, error) {
	query := `SELECT document FROM user_memory WHERE user_id = ?`

	var doc string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user memory: %w", err)
	}

	var mem core.UserMemory
	if err := json.Unmarshal([]byte(doc), &mem); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user memory: %w", err)
	}
	if mem.Facts == nil {
		mem.Facts = make(map[string]core.Fact)
	}

	log.FromCtx(ctx).Debug().Str("user_id", userID).Int("facts", len(mem.Facts)).Msg("loaded user memory")
	return &mem, nil
}

func (r *UserMemoryRepo) Put(ctx context.Context, userID string, mem *core.UserMemory) error {
	doc, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to marshal user memory: %w", err)
	}

	query := `INSERT INTO user_memory (user_id, document) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET document = excluded.document, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, query, userID, string(doc)); err != nil {
		return fmt.Errorf("failed to upsert user memory: %w", err)
	}
	return nil
}

func (r *UserMemoryRepo) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM user_memory ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
