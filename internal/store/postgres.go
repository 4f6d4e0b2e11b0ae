package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresStore keeps each todolist as one row with its items in a JSONB array,
// so a write always replaces the whole ordered collection.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) ListTodolists(ctx context.Context, owner string) ([]Todolist, error) {
	return s.queryTodolists(ctx, `WHERE owner = $1`, owner)
}

// AllTodolists returns every list regardless of owner.
func (s *PostgresStore) AllTodolists(ctx context.Context) ([]Todolist, error) {
	return s.queryTodolists(ctx, ``)
}

func (s *PostgresStore) queryTodolists(ctx context.Context, where string, args ...any) ([]Todolist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner, items, version, created_at, updated_at
		FROM todolists
	`+where+`
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list todolists: %w", err)
	}
	defer rows.Close()

	lists := make([]Todolist, 0)
	for rows.Next() {
		list, err := scanTodolist(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todolists: %w", err)
	}
	return lists, nil
}

func (s *PostgresStore) GetTodolist(ctx context.Context, id string) (Todolist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner, items, version, created_at, updated_at
		FROM todolists
		WHERE id = $1
	`, id)
	list, err := scanTodolist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Todolist{}, ErrNotFound
	}
	if err != nil {
		return Todolist{}, err
	}
	return list, nil
}

func (s *PostgresStore) InsertTodolist(ctx context.Context, list Todolist) error {
	items, err := marshalItems(list.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todolists (id, name, owner, items, version)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, list.ID, list.Name, list.Owner, items, list.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert todolist: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceItems(ctx context.Context, id string, expectedVersion int64, items []Item) (Todolist, error) {
	payload, err := marshalItems(items)
	if err != nil {
		return Todolist{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE todolists
		SET items = $3::jsonb, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING id, name, owner, items, version, created_at, updated_at
	`, id, expectedVersion, payload)
	list, err := scanTodolist(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row is gone or someone else wrote first.
		if _, getErr := s.GetTodolist(ctx, id); errors.Is(getErr, ErrNotFound) {
			return Todolist{}, ErrNotFound
		}
		return Todolist{}, ErrConflict
	}
	if err != nil {
		return Todolist{}, fmt.Errorf("replace items: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) UpdateTodolistField(ctx context.Context, id string, field ListField, value string) error {
	var query string
	switch field {
	case ListFieldName:
		query = `UPDATE todolists SET name = $2, version = version + 1, updated_at = NOW() WHERE id = $1`
	case ListFieldOwner:
		query = `UPDATE todolists SET owner = $2, version = version + 1, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("update todolist field: %w %q", ErrUnknownField, field)
	}
	result, err := s.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("update todolist field: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update todolist field rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTodolist(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todolists WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete todolist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete todolist rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
	`+where, arg).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodolist(row rowScanner) (Todolist, error) {
	var (
		list  Todolist
		items []byte
	)
	if err := row.Scan(&list.ID, &list.Name, &list.Owner, &items, &list.Version, &list.CreatedAt, &list.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Todolist{}, err
		}
		return Todolist{}, fmt.Errorf("scan todolist: %w", err)
	}
	list.Items = make([]Item, 0)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &list.Items); err != nil {
			return Todolist{}, fmt.Errorf("decode items: %w", err)
		}
	}
	return list, nil
}

func marshalItems(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(payload), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
