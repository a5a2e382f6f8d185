// Package fixture loads content trees, archive captures and releases from
// YAML files.
//
// A fixture is an ordered list of steps. Each step does exactly one thing:
//
//	steps:
//	  - put:
//	      - path: /content/site/home
//	        type: cpp:Page
//	        mixins: [mix:title]
//	        properties:
//	          jcr:title: Home
//	          tags: [a, b]
//	          published: {type: Date, value: "2024-05-01T12:00:00.000Z"}
//	  - capture: {path: /content/site/home/jcr:content, labels: [site-r1]}
//	  - delete: /content/site/old
//	  - release: {site_root: /content/site, name: r1, label: site-r1,
//	              content_copy: /var/releases/site/r1, marks: [public]}
//
// Untyped scalars become String, Boolean, Long or Double values after their
// YAML type. Sequences become multi-valued properties.
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/release"
	"github.com/ist-dresden/composum-platform-sub002/internal/store"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// Fixture is a parsed fixture file.
type Fixture struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one fixture action. Exactly one field is set.
type Step struct {
	Put     []NodeSpec   `yaml:"put,omitempty"`
	Capture *CaptureSpec `yaml:"capture,omitempty"`
	Delete  string       `yaml:"delete,omitempty"`
	Reorder *ReorderSpec `yaml:"reorder,omitempty"`
	Release *ReleaseSpec `yaml:"release,omitempty"`
}

// NodeSpec describes one node to write.
type NodeSpec struct {
	Path       string                  `yaml:"path"`
	Type       string                  `yaml:"type"`
	Mixins     []string                `yaml:"mixins,omitempty"`
	Properties map[string]PropertySpec `yaml:"properties,omitempty"`
}

// CaptureSpec captures the versionable at Path into the archive.
type CaptureSpec struct {
	Path   string   `yaml:"path"`
	Labels []string `yaml:"labels,omitempty"`
}

// ReorderSpec sets the child order of Path.
type ReorderSpec struct {
	Path  string   `yaml:"path"`
	Names []string `yaml:"names"`
}

// ReleaseSpec creates a release and points its marks at it.
type ReleaseSpec struct {
	SiteRoot    string   `yaml:"site_root"`
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	ContentCopy string   `yaml:"content_copy"`
	Marks       []string `yaml:"marks,omitempty"`
}

// PropertySpec is the YAML form of a property value.
type PropertySpec struct {
	Type     content.PropertyType
	Multiple bool
	Raw      []string
	// Data holds the content of a Binary property.
	Data []byte
}

// UnmarshalYAML accepts a scalar, a sequence of scalars, or a mapping with
// type plus value, values or data.
func (p *PropertySpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Type = scalarType(node)
		p.Raw = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		p.Multiple = true
		p.Type = content.TypeString
		p.Raw = []string{}
		for i, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: multi-value entries must be scalars", item.Line)
			}
			if i == 0 {
				p.Type = scalarType(item)
			}
			p.Raw = append(p.Raw, item.Value)
		}
		return nil
	case yaml.MappingNode:
		var typed struct {
			Type   string    `yaml:"type"`
			Value  *string   `yaml:"value"`
			Values *[]string `yaml:"values"`
			Data   *string   `yaml:"data"`
		}
		if err := node.Decode(&typed); err != nil {
			return err
		}
		t, err := content.ParsePropertyType(typed.Type)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		p.Type = t
		switch {
		case t == content.TypeBinary:
			if typed.Data == nil {
				return fmt.Errorf("line %d: binary property needs data", node.Line)
			}
			p.Data = []byte(*typed.Data)
		case typed.Values != nil:
			p.Multiple = true
			p.Raw = append([]string{}, *typed.Values...)
		case typed.Value != nil:
			p.Raw = []string{*typed.Value}
		default:
			return fmt.Errorf("line %d: property needs value or values", node.Line)
		}
		return nil
	}
	return fmt.Errorf("line %d: unsupported property form", node.Line)
}

func scalarType(node *yaml.Node) content.PropertyType {
	switch node.ShortTag() {
	case "!!bool":
		return content.TypeBoolean
	case "!!int":
		return content.TypeLong
	case "!!float":
		return content.TypeDouble
	}
	return content.TypeString
}

// BinaryFunc turns binary fixture data into a value.
type BinaryFunc func(ctx context.Context, data []byte) (content.Value, error)

// Property builds the property named name.
func (p PropertySpec) Property(ctx context.Context, name string, binary BinaryFunc) (content.Property, error) {
	if p.Type == content.TypeBinary {
		v, err := binary(ctx, p.Data)
		if err != nil {
			return content.Property{}, fmt.Errorf("property %s: %w", name, err)
		}
		return content.Single(name, v), nil
	}
	vals := make([]content.Value, 0, len(p.Raw))
	for _, raw := range p.Raw {
		v, err := content.ParseValue(p.Type, raw)
		if err != nil {
			return content.Property{}, fmt.Errorf("property %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	if p.Multiple {
		return content.Multi(name, p.Type, vals...), nil
	}
	return content.Single(name, vals[0]), nil
}

// Node builds the node described by s.
func (s NodeSpec) Node(ctx context.Context, binary BinaryFunc) (*content.Node, error) {
	n := content.NewNode(s.Path, s.Type, s.Mixins...)
	for name, spec := range s.Properties {
		prop, err := spec.Property(ctx, name, binary)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", s.Path, err)
		}
		n.Set(prop)
	}
	return n, nil
}

// Load reads and validates a fixture file. Unknown fields are rejected.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixture YAML.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range f.Steps {
		set := 0
		if len(step.Put) > 0 {
			set++
		}
		if step.Capture != nil {
			set++
		}
		if step.Delete != "" {
			set++
		}
		if step.Reorder != nil {
			set++
		}
		if step.Release != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of put, capture, delete, reorder or release is required", i)
		}
		for _, n := range step.Put {
			if n.Path == "" || n.Type == "" {
				return fmt.Errorf("step %d: nodes need path and type", i)
			}
		}
	}
	return nil
}

// Tree builds an in-memory tree. Captures and releases need a store and
// are rejected.
func (f *Fixture) Tree(types *typesys.Registry) (*content.MemTree, error) {
	ctx := context.Background()
	tree := content.NewMemTree(types)
	binary := func(_ context.Context, data []byte) (content.Value, error) {
		return content.NewBytes(fmt.Sprintf("mem:%d", len(data)), data), nil
	}
	for i, step := range f.Steps {
		switch {
		case len(step.Put) > 0:
			for _, spec := range step.Put {
				n, err := spec.Node(ctx, binary)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
				if err := tree.Put(n); err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
			}
		case step.Delete != "":
			tree.Delete(step.Delete)
		case step.Reorder != nil:
			if err := tree.Reorder(step.Reorder.Path, step.Reorder.Names...); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("step %d: captures and releases need a store", i)
		}
	}
	return tree, nil
}

// Summary counts what Apply wrote.
type Summary struct {
	Nodes    int      `json:"nodes"`
	Versions []string `json:"versions"`
	Deleted  int      `json:"deleted"`
	Releases []string `json:"releases"`
}

// Apply runs every step against s.
func (f *Fixture) Apply(ctx context.Context, s *store.Store) (*Summary, error) {
	sum := &Summary{Versions: []string{}, Releases: []string{}}
	releases := release.NewManager(s)
	binary := func(ctx context.Context, data []byte) (content.Value, error) {
		return s.PutBinary(ctx, bytes.NewReader(data))
	}
	for i, step := range f.Steps {
		switch {
		case len(step.Put) > 0:
			nodes := make([]*content.Node, 0, len(step.Put))
			for _, spec := range step.Put {
				n, err := spec.Node(ctx, binary)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
				nodes = append(nodes, n)
			}
			if err := s.PutNodes(ctx, nodes...); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			sum.Nodes += len(nodes)
		case step.Capture != nil:
			id, err := s.CaptureVersion(ctx, step.Capture.Path, step.Capture.Labels...)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			sum.Versions = append(sum.Versions, id)
		case step.Delete != "":
			if err := s.DeleteTree(ctx, step.Delete); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			sum.Deleted++
		case step.Reorder != nil:
			if err := s.Reorder(ctx, step.Reorder.Path, step.Reorder.Names...); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		case step.Release != nil:
			spec := step.Release
			r, err := releases.Create(ctx, release.Release{
				SiteRoot:    spec.SiteRoot,
				Name:        spec.Name,
				Label:       spec.Label,
				ContentCopy: spec.ContentCopy,
			})
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			for _, mark := range spec.Marks {
				if err := releases.SetMark(ctx, r.SiteRoot, mark, r.Name); err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
			}
			sum.Releases = append(sum.Releases, r.String())
		}
	}
	slog.Debug("fixture applied", "name", f.Name, "nodes", sum.Nodes, "versions", len(sum.Versions))
	return sum, nil
}
