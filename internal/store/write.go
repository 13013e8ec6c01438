package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/speciate/internal/pregen"
)

// WriteBundle stores a bundle with its units, skipped units and species
// layouts in one transaction. A bundle id that is already stored is
// ignored, as is a species key that is already stored.
func (s *Store) WriteBundle(ctx context.Context, b *pregen.Bundle) error {
	if b.ID == "" {
		return fmt.Errorf("write bundle: empty id")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO bundles (id, section, container, digest)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, b.ID, string(b.Section), b.Container, b.Digest)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return nil
		}

		for i, u := range b.Units {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO units (bundle_id, ord, name, kind, shape, digest, backend, source)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, b.ID, i, u.Name, string(u.Kind), u.Shape, u.Digest, u.Backend, u.Source); err != nil {
				return fmt.Errorf("unit %s: %w", u.Name, err)
			}
		}
		for i, sk := range b.Skipped {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO skipped (bundle_id, ord, name, error)
				VALUES (?, ?, ?, ?)
			`, b.ID, i, sk.Name, sk.Error); err != nil {
				return fmt.Errorf("skipped %s: %w", sk.Name, err)
			}
		}
		for i, l := range b.Layouts {
			if err := writeLayout(ctx, tx, l); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO bundle_species (bundle_id, ord, key)
				VALUES (?, ?, ?)
			`, b.ID, i, l.Key); err != nil {
				return fmt.Errorf("bundle species %q: %w", l.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

// WriteSpecies stores record layouts outside of any bundle.
func (s *Store) WriteSpecies(ctx context.Context, layouts ...pregen.Layout) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range layouts {
			if err := writeLayout(ctx, tx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write species: %w", err)
	}
	return nil
}

func writeLayout(ctx context.Context, tx *sql.Tx, l pregen.Layout) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO species (key, name, source)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, l.Key, l.Name, l.Source)
	if err != nil {
		return fmt.Errorf("species %q: %w", l.Key, err)
	}
	return nil
}
