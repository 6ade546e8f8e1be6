package main

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
	"github.com/orneryd/gizmo/pkg/mapper"
	"github.com/orneryd/gizmo/pkg/query"
)

// batchFile is the YAML input of compile and apply.
//
//	vertices:
//	  - ref: mark
//	    label: person
//	    unique: [name]
//	    properties: {name: mark, age: 30}
//	edges:
//	  - out: mark
//	    in: "42"
//	    label: knows
//	    properties: {since: 2011}
//	deletes:
//	  - id: 99
//
// Edge endpoints name a vertex ref from the same file or else a server id.
type batchFile struct {
	Vertices []vertexSpec `yaml:"vertices"`
	Edges    []edgeSpec   `yaml:"edges"`
	Deletes  []deleteSpec `yaml:"deletes"`
}

type vertexSpec struct {
	Ref        string         `yaml:"ref"`
	ID         any            `yaml:"id"`
	Label      string         `yaml:"label"`
	Unique     []string       `yaml:"unique"`
	Properties map[string]any `yaml:"properties"`
}

type edgeSpec struct {
	Out        string         `yaml:"out"`
	In         string         `yaml:"in"`
	Label      string         `yaml:"label"`
	Unique     string         `yaml:"unique"`
	Properties map[string]any `yaml:"properties"`
}

type deleteSpec struct {
	ID   any    `yaml:"id"`
	Kind string `yaml:"kind"`
}

func readBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var b batchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	return &b, nil
}

// queue registers one schemaless type per label and saves every entry of b
// into m. Entity types are registered in reg before anything is saved.
func (b *batchFile) queue(m *mapper.Mapper, reg *entity.Registry) error {
	unique := make(map[string][]string)
	for _, v := range b.Vertices {
		if err := ensureType(reg, v.Label, entity.KindVertex); err != nil {
			return err
		}
		for _, f := range v.Unique {
			if !slices.Contains(unique[v.Label], f) {
				unique[v.Label] = append(unique[v.Label], f)
			}
		}
	}
	for label, fields := range unique {
		m.Register(label, &mapper.Hooks{UniqueFields: fields})
	}
	for _, e := range b.Edges {
		if err := ensureType(reg, e.Label, entity.KindEdge); err != nil {
			return err
		}
		if e.Unique != "" {
			m.Register(e.Label, &mapper.Hooks{UniqueEdge: query.Direction(e.Unique)})
		}
	}

	refs := make(map[string]*entity.Entity, len(b.Vertices))
	for i, v := range b.Vertices {
		typ, _ := reg.Lookup(v.Label)
		ent := m.Create(v.Properties, typ)
		if v.ID != nil {
			ent.Hydrate(map[string]any{entity.FieldID: v.ID}, false)
		}
		if v.Ref != "" {
			refs[v.Ref] = ent
		}
		if err := m.Save(ent); err != nil {
			return fmt.Errorf("vertex %d (%s): %w", i, v.Ref, err)
		}
	}
	endpoint := func(s string) any {
		if s == "" {
			return nil
		}
		if e, ok := refs[s]; ok {
			return e
		}
		return s
	}
	for i, e := range b.Edges {
		typ, _ := reg.Lookup(e.Label)
		edge, err := m.Connect(endpoint(e.Out), endpoint(e.In), "", typ, e.Properties)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		if err := m.Save(edge); err != nil {
			return fmt.Errorf("edge %d (%s): %w", i, e.Label, err)
		}
	}
	for i, d := range b.Deletes {
		kind := entity.KindVertex
		if d.Kind == string(entity.KindEdge) {
			kind = entity.KindEdge
		}
		ent := entity.New(entity.Generic(kind), field.Native)
		if d.ID != nil {
			ent.Hydrate(map[string]any{entity.FieldID: d.ID}, true)
		}
		if err := m.Delete(ent); err != nil {
			return fmt.Errorf("delete %d: %w", i, err)
		}
	}
	return nil
}

// ensureType registers a schemaless type whose name and label are label.
func ensureType(reg *entity.Registry, label string, kind entity.Kind) error {
	if label == "" {
		return fmt.Errorf("%s entry without label", kind)
	}
	if t, ok := reg.Lookup(label); ok {
		if t.Kind != kind {
			return fmt.Errorf("label %q used for both vertices and edges", label)
		}
		return nil
	}
	return reg.Register(&entity.Type{Name: label, Kind: kind, Label: label, AllowUndefined: true})
}
