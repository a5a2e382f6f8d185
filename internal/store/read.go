package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetNode returns the live node at p with its child names in stored order.
// Returns an error wrapping content.ErrNotFound if no node exists.
func (s *Store) GetNode(ctx context.Context, p string) (*content.Node, error) {
	if err := content.ValidatePath(p); err != nil {
		return nil, err
	}
	if content.IsArchivePath(p) {
		return s.GetArchiveNode(ctx, p)
	}
	var primaryType, mixins, props string
	err := s.db.QueryRowContext(ctx, `
		SELECT primary_type, mixins, props FROM nodes WHERE path = ?
	`, p).Scan(&primaryType, &mixins, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get node %s: %w", p, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", p, err)
	}
	n, err := s.decodeLive(p, primaryType, mixins, props)
	if err != nil {
		return nil, err
	}
	if n.ChildNames, err = childNames(ctx, s.db, "nodes", p); err != nil {
		return nil, fmt.Errorf("get node %s: %w", p, err)
	}
	return n, nil
}

// ListChildren returns the children of p in stored order. Child nodes
// carry their own child names. A missing parent yields ErrNotFound.
func (s *Store) ListChildren(ctx context.Context, p string) ([]*content.Node, error) {
	if content.IsArchivePath(p) {
		return s.listArchiveChildren(ctx, p)
	}
	if _, err := s.GetNode(ctx, p); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, primary_type, mixins, props FROM nodes
		WHERE parent = ? AND path <> '/'
		ORDER BY ord ASC, path COLLATE BINARY ASC
	`, p)
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", p, err)
	}
	// Collect before issuing the per-child queries; an in-memory store has
	// a single connection.
	children := []*content.Node{}
	for rows.Next() {
		var path, primaryType, mixins, props string
		if err := rows.Scan(&path, &primaryType, &mixins, &props); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list children %s: scan: %w", p, err)
		}
		n, err := s.decodeLive(path, primaryType, mixins, props)
		if err != nil {
			rows.Close()
			return nil, err
		}
		children = append(children, n)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", p, err)
	}
	for _, c := range children {
		if c.ChildNames, err = childNames(ctx, s.db, "nodes", c.Path); err != nil {
			return nil, fmt.Errorf("list children %s: %w", p, err)
		}
	}
	return children, nil
}

// Walk visits the live subtree at root depth-first in stored child order.
// Returning an error from fn stops the walk.
func (s *Store) Walk(ctx context.Context, root string, fn func(*content.Node) error) error {
	n, err := s.GetNode(ctx, root)
	if err != nil {
		return err
	}
	return s.walk(ctx, n, fn)
}

func (s *Store) walk(ctx context.Context, n *content.Node, fn func(*content.Node) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(n); err != nil {
		return err
	}
	if len(n.ChildNames) == 0 {
		return nil
	}
	children, err := s.ListChildren(ctx, n.Path)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.walk(ctx, c, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) decodeLive(path, primaryType, mixinsJSON, propsJSON string) (*content.Node, error) {
	mixins, err := unmarshalMixins(mixinsJSON)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", path, err)
	}
	props, err := unmarshalProps(propsJSON, s.binaryOpener)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", path, err)
	}
	return &content.Node{
		Path:        path,
		PrimaryType: primaryType,
		Mixins:      mixins,
		Properties:  props,
		ChildNames:  []string{},
	}, nil
}

// childNames lists the names of the children of parent in table, ordered.
// Both node tables share the parent/name/ord columns.
func childNames(ctx context.Context, q querier, table, parent string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name FROM `+table+`
		WHERE parent = ? AND path <> '/'
		ORDER BY ord ASC, path COLLATE BINARY ASC
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("child names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("child names: scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("child names: %w", err)
	}
	return names, nil
}
