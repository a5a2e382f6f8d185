// Package fingerprint computes attribute fingerprint records: per node a
// map from property name to a short token that changes whenever the
// property's value changes. Two sides of a replication compare records to
// decide which parent nodes need their attributes transferred.
//
// Records are a change detection device, not an integrity guarantee.
package fingerprint

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/ist-dresden/composum-platform-sub002/internal/canonical"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// MaxDirectLength is the longest single value representation that is kept
// verbatim in a token. Longer ones are hashed.
const MaxDirectLength = 64

// hashKey keys the token hash so tokens are not plain BLAKE2b digests of
// content. Both sides of a replication must use the same key.
var hashKey = []byte("versa/fingerprint/token/v1")

// Ignored lists bookkeeping properties that legitimately differ between
// the two sides of a replication.
var Ignored = []string{content.PropChangeNumber, content.PropLastReplicationDate}

// AlwaysIncluded lists properties that are part of every record even
// though the type system protects them.
var AlwaysIncluded = []string{content.PropPrimaryType, content.PropMixinTypes}

// Record is the fingerprint of one node's attributes.
type Record struct {
	Path           string            `json:"path"`
	PropertyHashes map[string]string `json:"propertyHashes"`
}

type options struct {
	mapping func(string) string
	session *Session
}

// Option configures Of.
type Option func(*options)

// WithPathMapping passes the node path through fn before it is recorded,
// e.g. to translate between differing mount roots.
func WithPathMapping(fn func(string) string) Option {
	return func(o *options) { o.mapping = fn }
}

// WithSession resolves protected property names through a session's
// cache instead of the registry.
func WithSession(s *Session) Option {
	return func(o *options) { o.session = s }
}

// Of computes the record for n. Protected properties of the primary type
// and every mixin are resolved through types.
func Of(ctx context.Context, n *content.Node, types *typesys.Registry, opts ...Option) (*Record, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	protected, err := protectedOf(n, types, o.session)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", n.Path, err)
	}

	r := &Record{Path: n.Path, PropertyHashes: make(map[string]string)}
	if o.mapping != nil {
		r.Path = o.mapping(n.Path)
	}
	for _, name := range n.PropertyNames() {
		if !slices.Contains(AlwaysIncluded, name) && (slices.Contains(Ignored, name) || protected[name]) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, _ := n.Property(name)
		token, err := Token(p)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: property %s: %w", n.Path, name, err)
		}
		r.PropertyHashes[name] = token
	}
	return r, nil
}

func protectedOf(n *content.Node, types *typesys.Registry, s *Session) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, t := range append([]string{n.PrimaryType}, n.Mixins...) {
		var names []string
		var err error
		if s != nil {
			names, err = s.Protected(t)
		} else {
			names, err = types.ProtectedProperties(t)
		}
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			out[name] = true
		}
	}
	return out, nil
}

// TypeTag returns the one character tag of t. Numeric types share one tag,
// string-like types another, so a value that changed its subtype in
// transport still compares equal.
func TypeTag(t content.PropertyType) string {
	switch t {
	case content.TypeDate:
		return "C"
	case content.TypeBinary:
		return "B"
	case content.TypeLong, content.TypeDouble:
		return "n"
	case content.TypeDecimal:
		return "D"
	case content.TypeBoolean:
		return "b"
	}
	return "S"
}

// orderInsensitive reports whether a multi-valued property's value order
// carries no meaning.
func orderInsensitive(name string) bool {
	return name == content.PropMixinTypes
}

func newHash() hash.Hash {
	h, err := blake2b.New(16, hashKey)
	if err != nil {
		panic(fmt.Sprintf("blake2b: %v", err)) // only fails for invalid size or key length
	}
	return h
}

func sum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Token is the "<tag>:<representation>" form of p.
func Token(p content.Property) (string, error) {
	tag := TypeTag(p.Type)
	if !p.Multiple {
		v := p.Value()
		if v == nil {
			return tag + ":", nil
		}
		rep, err := valueRep(v)
		if err != nil {
			return "", err
		}
		if len(rep) > MaxDirectLength {
			h := newHash()
			io.WriteString(h, rep)
			rep = sum(h)
		}
		return tag + ":" + rep, nil
	}

	reps := make([]string, len(p.Values))
	for i, v := range p.Values {
		rep, err := valueRep(v)
		if err != nil {
			return "", err
		}
		reps[i] = rep
	}
	if orderInsensitive(p.Name) {
		sort.Strings(reps)
	}
	h := newHash()
	for _, rep := range reps {
		// NUL keeps ["ab","c"] apart from ["a","bc"]
		io.WriteString(h, rep)
		h.Write([]byte{0})
	}
	return tag + ":" + sum(h), nil
}

// valueRep is a representation of v that is unique for its type.
func valueRep(v content.Value) (string, error) {
	switch val := v.(type) {
	case content.DateValue:
		return strconv.FormatInt(val.T.UnixMilli(), 10), nil
	case content.BinaryValue:
		return binaryRep(val)
	}
	return v.String(), nil
}

// binaryRep streams the blob through the hash. The reader is closed on
// every path.
func binaryRep(v content.BinaryValue) (rep string, err error) {
	h := newHash()
	if v.Open == nil {
		return sum(h), nil
	}
	rc, err := v.Open()
	if err != nil {
		return "", fmt.Errorf("open binary %s: %w", v.Key, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close binary %s: %w", v.Key, cerr)
		}
	}()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("read binary %s: %w", v.Key, err)
	}
	return sum(h), nil
}

// Equal compares path and every token.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Path == other.Path && maps.Equal(r.PropertyHashes, other.PropertyHashes)
}

// Difference lists the property names whose tokens differ, sorted.
// Names present on only one side are included.
func (r *Record) Difference(other *Record) []string {
	out := []string{}
	for name := range unionKeys(r.PropertyHashes, other.PropertyHashes) {
		a, aok := r.PropertyHashes[name]
		b, bok := other.PropertyHashes[name]
		if a != b || aok != bok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func unionKeys(a, b map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Describe renders the difference for logs: "name=mine|theirs" per
// differing property.
func (r *Record) Describe(other *Record) string {
	var b strings.Builder
	if r.Path != other.Path {
		b.WriteString("Paths different. ")
	}
	for _, name := range r.Difference(other) {
		fmt.Fprintf(&b, "%s=%s|%s ", name, r.PropertyHashes[name], other.PropertyHashes[name])
	}
	return strings.TrimSpace(b.String())
}

// Digest is a content address of the whole record.
func (r *Record) Digest() (string, error) {
	return canonical.Digest(canonical.DomainFingerprint, map[string]any{
		"path":           r.Path,
		"propertyHashes": r.PropertyHashes,
	})
}
