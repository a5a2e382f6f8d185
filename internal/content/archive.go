package content

import (
	"fmt"
	"strings"
)

// ArchiveRoot is the subtree holding captured versions. A captured node
// lives at
//
//	/archive/<versionID>/jcr:frozenNode[/<relative path>]
//
// and is only meaningful together with the originating path of its
// version, the anchor the frozen subtree was captured from.
const ArchiveRoot = "/archive"

// FrozenPath returns the archive path of the node captured at rel (a
// relative path below the anchor, "" for the anchor itself).
func FrozenPath(versionID, rel string) string {
	p := ArchiveRoot + "/" + versionID + "/" + FrozenNodeName
	if rel = strings.Trim(rel, "/"); rel != "" {
		p += "/" + rel
	}
	return p
}

// SplitFrozenPath is the inverse of FrozenPath.
func SplitFrozenPath(archivePath string) (versionID, rel string, err error) {
	rest, ok := strings.CutPrefix(archivePath, ArchiveRoot+"/")
	if !ok {
		return "", "", fmt.Errorf("path %q is not inside %s", archivePath, ArchiveRoot)
	}
	versionID, after, ok := strings.Cut(rest, "/")
	if !ok || versionID == "" {
		return "", "", fmt.Errorf("path %q has no version segment", archivePath)
	}
	if after != FrozenNodeName && !strings.HasPrefix(after, FrozenNodeName+"/") {
		return "", "", fmt.Errorf("path %q has no %s marker", archivePath, FrozenNodeName)
	}
	return versionID, strings.TrimPrefix(strings.TrimPrefix(after, FrozenNodeName), "/"), nil
}

// ReconstructOriginalPath maps an archive path back to the live-shaped
// path it was captured from: the suffix following the frozen-node marker
// is appended to the originating anchor. Both inputs must be valid
// absolute paths.
func ReconstructOriginalPath(anchor, archivePath string) (string, error) {
	if err := ValidatePath(anchor); err != nil {
		return "", fmt.Errorf("anchor: %w", err)
	}
	if err := ValidatePath(archivePath); err != nil {
		return "", fmt.Errorf("archive path: %w", err)
	}
	_, rel, err := SplitFrozenPath(archivePath)
	if err != nil {
		return "", err
	}
	return Join(anchor, rel), nil
}

// IsArchivePath reports whether p lies inside the archive.
func IsArchivePath(p string) bool {
	return IsSameOrDescendant(ArchiveRoot, p)
}
