package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/taskdeck/backend/internal/model"
)

const todoColumns = "id, user_id, title, description, completed, created_at, updated_at"

func scanTodo(row pgx.Row) (*model.Todo, error) {
	var todo model.Todo
	err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&todo.Completed,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (db *Postgres) CreateTodo(ctx context.Context, userID int64, title, description string, completed bool) (*model.Todo, error) {
	query := fmt.Sprintf(`
		INSERT INTO todos (user_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING %s
	`, todoColumns)
	return scanTodo(db.Pool.QueryRow(ctx, query, userID, title, description, completed))
}

// GetTodo fetches a todo by id, optionally scoped to an owner. ownerID = 0
// skips the ownership restriction (admin access).
func (db *Postgres) GetTodo(ctx context.Context, todoID, ownerID int64) (*model.Todo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM todos
		WHERE id = $1 AND ($2 = 0 OR user_id = $2)
	`, todoColumns)
	return scanTodo(db.Pool.QueryRow(ctx, query, todoID, ownerID))
}

func (db *Postgres) ListTodos(ctx context.Context, filter model.TodoFilter) ([]model.Todo, int64, error) {
	where := `WHERE ($1 = 0 OR user_id = $1)
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		  AND ($3::boolean IS NULL OR completed = $3)`
	args := []any{filter.UserID, filter.Search, filter.Completed}

	var total int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM todos `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`
		SELECT %s FROM todos %s
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, todoColumns, where)
	args = append(args, filter.Limit, offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	todos := []model.Todo{}
	for rows.Next() {
		var todo model.Todo
		if err := rows.Scan(
			&todo.ID,
			&todo.UserID,
			&todo.Title,
			&todo.Description,
			&todo.Completed,
			&todo.CreatedAt,
			&todo.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		todos = append(todos, todo)
	}
	return todos, total, rows.Err()
}

func (db *Postgres) UpdateTodo(ctx context.Context, todoID, ownerID int64, title, description string, completed bool) (*model.Todo, error) {
	query := fmt.Sprintf(`
		UPDATE todos
		SET title = $3, description = $4, completed = $5, updated_at = NOW()
		WHERE id = $1 AND ($2 = 0 OR user_id = $2)
		RETURNING %s
	`, todoColumns)
	return scanTodo(db.Pool.QueryRow(ctx, query, todoID, ownerID, title, description, completed))
}

func (db *Postgres) DeleteTodo(ctx context.Context, todoID, ownerID int64) error {
	query := `DELETE FROM todos WHERE id = $1 AND ($2 = 0 OR user_id = $2)`
	tag, err := db.Pool.Exec(ctx, query, todoID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
