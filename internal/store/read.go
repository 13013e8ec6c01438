package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/pregen"
)

// BundleInfo summarizes a stored bundle.
type BundleInfo struct {
	Seq       int64          `json:"seq"`
	ID        string         `json:"id"`
	Section   pregen.Section `json:"section"`
	Container string         `json:"container"`
	Digest    string         `json:"digest"`
	Units     int            `json:"units"`
	Skipped   int            `json:"skipped"`
}

// ReadBundles lists stored bundles in insertion order.
func (s *Store) ReadBundles(ctx context.Context) ([]BundleInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.seq, b.id, b.section, b.container, b.digest,
		       (SELECT COUNT(*) FROM units u WHERE u.bundle_id = b.id),
		       (SELECT COUNT(*) FROM skipped k WHERE k.bundle_id = b.id)
		FROM bundles b
		ORDER BY b.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	infos := []BundleInfo{}
	for rows.Next() {
		var info BundleInfo
		var section string
		if err := rows.Scan(&info.Seq, &info.ID, &section, &info.Container,
			&info.Digest, &info.Units, &info.Skipped); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		info.Section = pregen.Section(section)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	return infos, nil
}

// ReadBundle loads a stored bundle and verifies its digest. Units come
// back without invokers.
func (s *Store) ReadBundle(ctx context.Context, id string) (*pregen.Bundle, error) {
	b := &pregen.Bundle{ID: id}
	var section string
	err := s.db.QueryRowContext(ctx, `
		SELECT section, container, digest FROM bundles WHERE id = ?
	`, id).Scan(&section, &b.Container, &b.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read bundle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", id, err)
	}
	b.Section = pregen.Section(section)

	if b.Units, err = s.queryUnits(ctx, `
		SELECT name, kind, shape, digest, backend, source
		FROM units WHERE bundle_id = ?
		ORDER BY ord ASC
	`, id); err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", id, err)
	}
	if b.Skipped, err = s.readSkipped(ctx, id); err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", id, err)
	}
	if b.Layouts, err = s.queryLayouts(ctx, `
		SELECT s.key, s.name, s.source
		FROM bundle_species bs JOIN species s ON s.key = bs.key
		WHERE bs.bundle_id = ?
		ORDER BY bs.ord ASC
	`, id); err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", id, err)
	}

	if err := b.Verify(); err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", id, err)
	}
	return b, nil
}

// ReadUnits lists every stored unit name once, sorted by name. When a
// name occurs in several bundles the earliest bundle wins.
func (s *Store) ReadUnits(ctx context.Context) ([]*codegen.Unit, error) {
	units, err := s.queryUnits(ctx, `
		SELECT u.name, u.kind, u.shape, u.digest, u.backend, u.source
		FROM units u JOIN bundles b ON b.id = u.bundle_id
		WHERE b.seq = (
			SELECT MIN(b2.seq) FROM units u2 JOIN bundles b2 ON b2.id = u2.bundle_id
			WHERE u2.name = u.name
		)
		ORDER BY u.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}
	return units, nil
}

// LookupUnit returns the earliest stored unit with the given name.
func (s *Store) LookupUnit(ctx context.Context, name string) (*codegen.Unit, error) {
	units, err := s.queryUnits(ctx, `
		SELECT u.name, u.kind, u.shape, u.digest, u.backend, u.source
		FROM units u JOIN bundles b ON b.id = u.bundle_id
		WHERE u.name = ?
		ORDER BY b.seq ASC
		LIMIT 1
	`, name)
	if err != nil {
		return nil, fmt.Errorf("lookup unit %s: %w", name, err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("lookup unit %s: %w", name, ErrNotFound)
	}
	return units[0], nil
}

// ReadSpecies lists stored record layouts sorted by signature key.
func (s *Store) ReadSpecies(ctx context.Context) ([]pregen.Layout, error) {
	layouts, err := s.queryLayouts(ctx, `
		SELECT key, name, source FROM species ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read species: %w", err)
	}
	return layouts, nil
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]*codegen.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []*codegen.Unit{}
	for rows.Next() {
		u := &codegen.Unit{}
		var kind string
		if err := rows.Scan(&u.Name, &kind, &u.Shape, &u.Digest, &u.Backend, &u.Source); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.Kind = lform.Kind(kind)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

func (s *Store) queryLayouts(ctx context.Context, query string, args ...any) ([]pregen.Layout, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query species: %w", err)
	}
	defer rows.Close()

	var layouts []pregen.Layout
	for rows.Next() {
		var l pregen.Layout
		if err := rows.Scan(&l.Key, &l.Name, &l.Source); err != nil {
			return nil, fmt.Errorf("scan species: %w", err)
		}
		layouts = append(layouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate species: %w", err)
	}
	return layouts, nil
}

func (s *Store) readSkipped(ctx context.Context, id string) ([]pregen.Skip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, error FROM skipped WHERE bundle_id = ? ORDER BY ord ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query skipped: %w", err)
	}
	defer rows.Close()

	var skipped []pregen.Skip
	for rows.Next() {
		var sk pregen.Skip
		if err := rows.Scan(&sk.Name, &sk.Error); err != nil {
			return nil, fmt.Errorf("scan skipped: %w", err)
		}
		skipped = append(skipped, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skipped: %w", err)
	}
	return skipped, nil
}
