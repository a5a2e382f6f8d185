package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// PutNode inserts or replaces the node at n.Path. The parent must exist.
// A new node is appended after its existing siblings; a replaced node
// keeps its position and children. n.ChildNames is ignored.
func (s *Store) PutNode(ctx context.Context, n *content.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put node: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := putNodeTx(ctx, tx, n); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put node: commit: %w", err)
	}
	return nil
}

// PutNodes writes nodes in order in one transaction, so parents listed
// before their children are created first.
func (s *Store) PutNodes(ctx context.Context, nodes ...*content.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put nodes: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, n := range nodes {
		if err := putNodeTx(ctx, tx, n); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put nodes: commit: %w", err)
	}
	return nil
}

func putNodeTx(ctx context.Context, tx *sql.Tx, n *content.Node) error {
	if err := content.ValidatePath(n.Path); err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	if content.IsArchivePath(n.Path) {
		return fmt.Errorf("put node %s: archive paths are read-only", n.Path)
	}
	if n.PrimaryType == "" {
		return fmt.Errorf("put node %s: primary type is required", n.Path)
	}
	propsJSON, err := marshalProps(n.Properties)
	if err != nil {
		return fmt.Errorf("put node %s: %w", n.Path, err)
	}
	mixinsJSON, err := marshalMixins(n.Mixins)
	if err != nil {
		return fmt.Errorf("put node %s: %w", n.Path, err)
	}
	var uuid sql.NullString
	if id := n.String(content.PropUUID); id != "" {
		uuid = sql.NullString{String: id, Valid: true}
	}

	parent := content.Parent(n.Path)
	ord := 0
	if n.Path != content.Root {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE path = ?`, parent).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("put node %s: parent %s: %w", n.Path, parent, content.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("put node %s: check parent: %w", n.Path, err)
		}
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(
				(SELECT ord FROM nodes WHERE path = ?),
				(SELECT COALESCE(MAX(ord), -1) + 1 FROM nodes WHERE parent = ?)
			)
		`, n.Path, parent).Scan(&ord)
		if err != nil {
			return fmt.Errorf("put node %s: position: %w", n.Path, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (path, parent, name, ord, primary_type, mixins, uuid, props)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			primary_type = excluded.primary_type,
			mixins = excluded.mixins,
			uuid = excluded.uuid,
			props = excluded.props
	`, n.Path, parent, content.Name(n.Path), ord, n.PrimaryType, mixinsJSON, uuid, propsJSON)
	if err != nil {
		return fmt.Errorf("put node %s: %w", n.Path, err)
	}
	return nil
}

// DeleteTree removes the node at p and all its descendants.
// Deleting an absent node is not an error.
func (s *Store) DeleteTree(ctx context.Context, p string) error {
	if p == content.Root {
		return fmt.Errorf("delete tree: cannot delete the root")
	}
	if err := content.ValidatePath(p); err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	lo, hi := descendantRange(p)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM nodes WHERE path = ? OR (path > ? AND path < ?)
	`, p, lo, hi)
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", p, err)
	}
	return nil
}

// Reorder sets the child order of parent. names must be a permutation of
// the current child names.
func (s *Store) Reorder(ctx context.Context, parent string, names ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reorder: begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := childNames(ctx, tx, "nodes", parent)
	if err != nil {
		return fmt.Errorf("reorder %s: %w", parent, err)
	}
	a, b := slices.Clone(current), slices.Clone(names)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) {
		return fmt.Errorf("reorder %s: %v is not a permutation of %v", parent, names, current)
	}
	for i, name := range names {
		if _, err := tx.ExecContext(ctx, `UPDATE nodes SET ord = ? WHERE path = ?`, i, content.Join(parent, name)); err != nil {
			return fmt.Errorf("reorder %s: %w", parent, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reorder: commit: %w", err)
	}
	return nil
}

// PutBinary stores data and returns a binary value referencing it. The
// key is the SHA-256 of the data, so storing equal data twice is a no-op.
func (s *Store) PutBinary(ctx context.Context, r io.Reader) (content.BinaryValue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return content.BinaryValue{}, fmt.Errorf("put binary: read: %w", err)
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO binaries (key, size, data) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, len(data), data)
	if err != nil {
		return content.BinaryValue{}, fmt.Errorf("put binary: %w", err)
	}
	return content.BinaryValue{Key: key, Size: int64(len(data)), Open: s.binaryOpener(key)}, nil
}

// binaryOpener reads a blob lazily. SQLite has no streaming blob API in
// database/sql, so each open loads the blob once and serves it as a reader.
func (s *Store) binaryOpener(key string) content.Opener {
	return func() (io.ReadCloser, error) {
		var data []byte
		err := s.db.QueryRow(`SELECT data FROM binaries WHERE key = ?`, key).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("binary %s: %w", key, content.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("binary %s: %w", key, err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}
