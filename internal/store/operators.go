package store

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/germz92/gearbook/internal/model"
)

// CreateOperator creates a backend account. The password is stored hashed.
func CreateOperator(ctx context.Context, db *sql.DB, name, password, role string) (*model.Operator, error) {
	if name == "" || password == "" {
		return nil, fmt.Errorf("operator name and password are required")
	}
	if role == "" {
		role = model.RoleViewer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO operators (name, password_hash, role) VALUES (?, ?, ?)`,
		name, string(hash), role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operator: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting operator id: %w", err)
	}
	return GetOperator(ctx, db, id)
}

// GetOperator returns an operator by ID.
func GetOperator(ctx context.Context, db *sql.DB, id int64) (*model.Operator, error) {
	op := &model.Operator{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, role, created_at, deleted_at
		 FROM operators WHERE id = ?`, id,
	).Scan(&op.ID, &op.Name, &op.PasswordHash, &op.Role, &op.CreatedAt, &op.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator: %w", err)
	}
	return op, nil
}

// GetOperatorByName returns an operator by name, soft-deleted included so
// login can distinguish a disabled account from an unknown one.
func GetOperatorByName(ctx context.Context, db *sql.DB, name string) (*model.Operator, error) {
	op := &model.Operator{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, role, created_at, deleted_at
		 FROM operators WHERE name = ?`, name,
	).Scan(&op.ID, &op.Name, &op.PasswordHash, &op.Role, &op.CreatedAt, &op.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator by name: %w", err)
	}
	return op, nil
}

// CountOperators returns the number of active operators. Used on startup to
// decide whether to seed the initial admin account.
func CountOperators(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operators WHERE deleted_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return n, nil
}

// VerifyOperator checks a name and password pair and returns the account.
// Unknown names, disabled accounts and bad passwords all return nil.
func VerifyOperator(ctx context.Context, db *sql.DB, name, password string) (*model.Operator, error) {
	op, err := GetOperatorByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if op == nil || op.DeletedAt != nil {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return op, nil
}
