package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// CaptureVersion copies the versionable subtree at p into the archive and
// attaches labels to the new version. It returns the generated version id.
//
// The captured rows are never updated afterwards. The live jcr:uuid of
// each node is kept as its frozen uuid.
func (s *Store) CaptureVersion(ctx context.Context, p string, labels ...string) (string, error) {
	if p == content.Root || content.IsArchivePath(p) {
		return "", fmt.Errorf("capture version: %s cannot be versioned", p)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("capture version: begin tx: %w", err)
	}
	defer tx.Rollback()

	var mixinsJSON string
	err = tx.QueryRowContext(ctx, `SELECT mixins FROM nodes WHERE path = ?`, p).Scan(&mixinsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("capture version %s: %w", p, content.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("capture version %s: %w", p, err)
	}
	mixins, err := unmarshalMixins(mixinsJSON)
	if err != nil {
		return "", fmt.Errorf("capture version %s: %w", p, err)
	}
	if !(&content.Node{Mixins: mixins}).IsVersionable() {
		return "", fmt.Errorf("capture version %s: node is not %s", p, content.MixinVersionable)
	}

	versionID := s.versionIDs.Generate()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO archive_versions (version_id, origin_path, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM archive_versions))
	`, versionID, p)
	if err != nil {
		return "", fmt.Errorf("capture version %s: %w", p, err)
	}

	lo, hi := descendantRange(p)
	rows, err := tx.QueryContext(ctx, `
		SELECT path, parent, name, ord, primary_type, mixins, uuid, props FROM nodes
		WHERE path = ? OR (path > ? AND path < ?)
		ORDER BY path COLLATE BINARY ASC
	`, p, lo, hi)
	if err != nil {
		return "", fmt.Errorf("capture version %s: read subtree: %w", p, err)
	}
	type capturedRow struct {
		path, parent, name, primaryType, mixins, props string
		ord                                            int
		uuid                                           sql.NullString
	}
	var captured []capturedRow
	for rows.Next() {
		var r capturedRow
		if err := rows.Scan(&r.path, &r.parent, &r.name, &r.ord, &r.primaryType, &r.mixins, &r.uuid, &r.props); err != nil {
			rows.Close()
			return "", fmt.Errorf("capture version %s: scan: %w", p, err)
		}
		captured = append(captured, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return "", fmt.Errorf("capture version %s: %w", p, err)
	}

	frozenRoot := content.FrozenPath(versionID, "")
	for _, r := range captured {
		rel := strings.TrimPrefix(r.path, p)
		archivePath := frozenRoot + rel
		parent := content.Parent(frozenRoot)
		if rel != "" {
			parent = frozenRoot + strings.TrimPrefix(r.parent, p)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO archive_nodes
				(path, version_id, rel_path, parent, name, ord, frozen_primary_type, frozen_mixins, frozen_uuid, props)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, json_remove(?, '$."jcr:uuid"'))
		`, archivePath, versionID, rel, parent, r.name, r.ord, r.primaryType, r.mixins, r.uuid, r.props)
		if err != nil {
			return "", fmt.Errorf("capture version %s: archive %s: %w", p, r.path, err)
		}
	}

	for _, label := range labels {
		if err := addLabelTx(ctx, tx, versionID, label); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("capture version: commit: %w", err)
	}
	return versionID, nil
}

// AddLabel attaches label to a version. A label names at most one version
// per originating path, so the label moves away from any other version of
// the same path.
func (s *Store) AddLabel(ctx context.Context, versionID, label string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add label: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := addLabelTx(ctx, tx, versionID, label); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add label: commit: %w", err)
	}
	return nil
}

func addLabelTx(ctx context.Context, tx *sql.Tx, versionID, label string) error {
	if label == "" {
		return fmt.Errorf("add label to %s: empty label", versionID)
	}
	var origin string
	err := tx.QueryRowContext(ctx, `SELECT origin_path FROM archive_versions WHERE version_id = ?`, versionID).Scan(&origin)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("add label %s: version %s: %w", label, versionID, content.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("add label %s: %w", label, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM archive_labels WHERE label = ? AND origin_path = ?`, label, origin); err != nil {
		return fmt.Errorf("add label %s: %w", label, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO archive_labels (version_id, label, origin_path) VALUES (?, ?, ?)
	`, versionID, label, origin)
	if err != nil {
		return fmt.Errorf("add label %s: %w", label, err)
	}
	return nil
}

// RemoveLabel detaches label from every version.
func (s *Store) RemoveLabel(ctx context.Context, label string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM archive_labels WHERE label = ?`, label); err != nil {
		return fmt.Errorf("remove label %s: %w", label, err)
	}
	return nil
}

// VersionAnchors maps each version carrying label to its originating path.
// Returns an empty map, never nil, for an unknown label.
func (s *Store) VersionAnchors(ctx context.Context, label string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, origin_path FROM archive_labels
		WHERE label = ?
		ORDER BY origin_path COLLATE BINARY ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("version anchors %s: %w", label, err)
	}
	defer rows.Close()

	anchors := make(map[string]string)
	for rows.Next() {
		var id, origin string
		if err := rows.Scan(&id, &origin); err != nil {
			return nil, fmt.Errorf("version anchors %s: scan: %w", label, err)
		}
		anchors[id] = origin
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("version anchors %s: %w", label, err)
	}
	return anchors, nil
}

// GetArchiveNode looks up a captured node by its archive path. The node is
// a frozen node: its primary type is nt:frozenNode and the captured type,
// mixins and uuid are carried in the jcr:frozen* properties.
func (s *Store) GetArchiveNode(ctx context.Context, archivePath string) (*content.Node, error) {
	var primaryType, mixins, props string
	var uuid sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT frozen_primary_type, frozen_mixins, frozen_uuid, props FROM archive_nodes WHERE path = ?
	`, archivePath).Scan(&primaryType, &mixins, &uuid, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get archive node %s: %w", archivePath, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get archive node %s: %w", archivePath, err)
	}
	list, err := unmarshalMixins(mixins)
	if err != nil {
		return nil, fmt.Errorf("archive node %s: %w", archivePath, err)
	}
	n, err := s.decodeFrozen(archivePath, primaryType, list, uuid.String, props)
	if err != nil {
		return nil, err
	}
	if n.ChildNames, err = childNames(ctx, s.db, "archive_nodes", archivePath); err != nil {
		return nil, fmt.Errorf("get archive node %s: %w", archivePath, err)
	}
	return n, nil
}

func (s *Store) listArchiveChildren(ctx context.Context, archivePath string) ([]*content.Node, error) {
	names, err := childNames(ctx, s.db, "archive_nodes", archivePath)
	if err != nil {
		return nil, fmt.Errorf("list archive children %s: %w", archivePath, err)
	}
	children := make([]*content.Node, 0, len(names))
	for _, name := range names {
		c, err := s.GetArchiveNode(ctx, archivePath+"/"+name)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

// decodeFrozen builds a frozen node. mixins may be partial for scan rows.
func (s *Store) decodeFrozen(archivePath, primaryType string, mixins []string, uuid, propsJSON string) (*content.Node, error) {
	props, err := unmarshalProps(propsJSON, s.binaryOpener)
	if err != nil {
		return nil, fmt.Errorf("archive node %s: %w", archivePath, err)
	}
	n := &content.Node{
		Path:        archivePath,
		PrimaryType: content.FrozenNodeType,
		Properties:  props,
		ChildNames:  []string{},
	}
	n.Set(content.Single(content.PropFrozenPrimaryType, content.NewName(primaryType)))
	if len(mixins) > 0 {
		vals := make([]content.Value, len(mixins))
		for i, m := range mixins {
			vals[i] = content.NewName(m)
		}
		n.Set(content.Multi(content.PropFrozenMixinTypes, content.TypeName, vals...))
	}
	if uuid != "" {
		n.Set(content.Single(content.PropFrozenUUID, content.NewString(uuid)))
	}
	return n, nil
}
