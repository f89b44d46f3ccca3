package bulkload

import (
	"bytes"
	"encoding/json"
	"fmt"

	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// fkRef is one foreign key carried by a record. Empty values on optional
// references are skipped during referential validation.
type fkRef struct {
	Field      string
	Value      string
	TargetType string
	Optional   bool
}

// record is one bulk-load input row of any entity type.
type record interface {
	EntityID() string
	Validate() error
	ForeignKeys() []fkRef
}

// Region is a growing region, the root of the master-data graph.
type Region struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	ClimateZone string `json:"climate_zone,omitempty"`
}

func (r *Region) EntityID() string { return r.ID }

func (r *Region) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func (r *Region) ForeignKeys() []fkRef { return nil }

// Factory is a processing facility located in a region.
type Factory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegionID string `json:"region_id"`
	Capacity int    `json:"capacity_tons,omitempty"`
}

func (f *Factory) EntityID() string { return f.ID }

func (f *Factory) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.RegionID == "" {
		return fmt.Errorf("region_id is required")
	}
	if f.Capacity < 0 {
		return fmt.Errorf("capacity_tons cannot be negative")
	}
	return nil
}

func (f *Factory) ForeignKeys() []fkRef {
	return []fkRef{{Field: "region_id", Value: f.RegionID, TargetType: "regions"}}
}

// CollectionPoint is a produce collection site within a region.
type CollectionPoint struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	RegionID string   `json:"region_id"`
	Crops    []string `json:"crops,omitempty"`
}

func (c *CollectionPoint) EntityID() string { return c.ID }

func (c *CollectionPoint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.RegionID == "" {
		return fmt.Errorf("region_id is required")
	}
	return nil
}

func (c *CollectionPoint) ForeignKeys() []fkRef {
	return []fkRef{{Field: "region_id", Value: c.RegionID, TargetType: "regions"}}
}

// KnowledgeDocument is a seed document loaded as a version-1 draft.
type KnowledgeDocument struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	Domain     string   `json:"domain"`
	Content    string   `json:"content"`
	Author     string   `json:"author,omitempty"`
	Source     string   `json:"source,omitempty"`
	RegionID   string   `json:"region_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func (k *KnowledgeDocument) EntityID() string { return k.DocumentID }

func (k *KnowledgeDocument) Validate() error {
	if k.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if k.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !domdoc.Domain(k.Domain).IsValid() {
		return fmt.Errorf("unknown domain %q", k.Domain)
	}
	if k.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}

func (k *KnowledgeDocument) ForeignKeys() []fkRef {
	return []fkRef{{Field: "region_id", Value: k.RegionID, TargetType: "regions", Optional: true}}
}

// entitySpec ties an input file name to its dependency level and decoder.
// Levels are the ordering-correctness backbone: an entity may only reference
// entities from strictly lower levels.
type entitySpec struct {
	name   string
	level  int
	decode func(raw json.RawMessage) (record, error)
}

var entitySpecs = []entitySpec{
	{name: "regions", level: 0, decode: decodeInto[Region]},
	{name: "factories", level: 1, decode: decodeInto[Factory]},
	{name: "collection_points", level: 1, decode: decodeInto[CollectionPoint]},
	{name: "knowledge_documents", level: 2, decode: decodeInto[KnowledgeDocument]},
}

func specByName(name string) (entitySpec, bool) {
	for _, s := range entitySpecs {
		if s.name == name {
			return s, true
		}
	}
	return entitySpec{}, false
}

func maxLevel() int {
	max := 0
	for _, s := range entitySpecs {
		if s.level > max {
			max = s.level
		}
	}
	return max
}

// decodeInto strictly decodes one record; unknown fields are rejected.
func decodeInto[T any, PT interface {
	*T
	record
}](raw json.RawMessage) (record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return PT(&v), nil
}
