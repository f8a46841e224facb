package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/germz92/gearbook/internal/model"
)

// SavePackage inserts or replaces a gear package. A missing ID is generated.
func SavePackage(ctx context.Context, db *sql.DB, pkg model.Package) (*model.Package, error) {
	if pkg.Name == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}

	raw, err := json.Marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("encoding package: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO packages (id, name, doc) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, doc = excluded.doc, deleted_at = NULL`,
		pkg.ID, pkg.Name, string(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("saving package: %w", err)
	}
	return &pkg, nil
}

// GetPackage returns a package by ID, or nil if it does not exist.
func GetPackage(ctx context.Context, db *sql.DB, id string) (*model.Package, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		`SELECT doc FROM packages WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting package: %w", err)
	}

	pkg := &model.Package{}
	if err := json.Unmarshal([]byte(raw), pkg); err != nil {
		return nil, fmt.Errorf("decoding package: %w", err)
	}
	pkg.ID = id
	return pkg, nil
}

// ListPackages returns all packages ordered by name.
func ListPackages(ctx context.Context, db *sql.DB) ([]model.Package, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, doc FROM packages WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	defer rows.Close()

	var pkgs []model.Package
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning package: %w", err)
		}
		var pkg model.Package
		if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
			return nil, fmt.Errorf("decoding package %s: %w", id, err)
		}
		pkg.ID = id
		pkgs = append(pkgs, pkg)
	}
	return pkgs, rows.Err()
}

// DeletePackage soft-deletes a package.
func DeletePackage(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE packages SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting package: %w", err)
	}
	return nil
}
