package feature

import (
	_ "embed"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// SampleType is a catalog entry, either predefined or user-defined.
type SampleType struct {
	ID        string         `json:"id" yaml:"id" doc:"Catalog identifier" example:"sponge"`
	Name      string         `json:"name" yaml:"name" required:"true" minLength:"1" doc:"Display name" example:"Sponge"`
	ShapeKind ShapeKind      `json:"shapeKind" yaml:"shapeKind" enum:"point,polygon" doc:"Drawn shape"`
	Custom    bool           `json:"custom" yaml:"custom" doc:"User-defined type"`
	Units     UnitAttributes `json:"units" yaml:"units"`
}

type catalogFile struct {
	SampleTypes []SampleType `yaml:"sampleTypes"`
}

// Catalog is the registry of sample types. It is constructed once and passed
// to every component that needs to resolve a type id.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]SampleType
	order []string
}

// NewCatalog builds a catalog from the given types.
func NewCatalog(types []SampleType) (*Catalog, error) {
	c := &Catalog{types: make(map[string]SampleType, len(types))}
	for _, t := range types {
		if err := c.validate(t, ""); err != nil {
			return nil, eris.Wrapf(err, "catalog: sample type %q", t.Name)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		c.types[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog document.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "catalog: decode yaml")
	}
	return NewCatalog(doc.SampleTypes)
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open file")
	}
	defer f.Close()
	return LoadCatalog(f)
}

// DefaultCatalog returns the embedded predefined sample types.
func DefaultCatalog() *Catalog {
	var doc catalogFile
	if err := yaml.Unmarshal(defaultCatalogYAML, &doc); err != nil {
		panic(err)
	}
	c, err := NewCatalog(doc.SampleTypes)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a sample type by id.
func (c *Catalog) Get(id string) (SampleType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[id]
	return t, ok
}

// FindByName returns a sample type by case-insensitive name.
func (c *Catalog) FindByName(name string) (SampleType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if strings.EqualFold(c.types[id].Name, strings.TrimSpace(name)) {
			return c.types[id], true
		}
	}
	return SampleType{}, false
}

// List returns all sample types in insertion order.
func (c *Catalog) List() []SampleType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SampleType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.types[id])
	}
	return out
}

// AddCustom validates and registers a user-defined sample type.
func (c *Catalog) AddCustom(t SampleType) (SampleType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t.Custom = true
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := c.types[t.ID]; exists {
		return SampleType{}, &ValidationError{Field: "id", Reason: "already exists"}
	}
	if err := c.validate(t, t.ID); err != nil {
		return SampleType{}, err
	}
	c.types[t.ID] = t
	c.order = append(c.order, t.ID)
	return t, nil
}

// UpdateCustom replaces a user-defined sample type.
func (c *Catalog) UpdateCustom(t SampleType) (SampleType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.types[t.ID]
	if !ok {
		return SampleType{}, eris.Errorf("catalog: sample type %q not found", t.ID)
	}
	if !existing.Custom {
		return SampleType{}, &ValidationError{Field: "id", Reason: "predefined sample types cannot be edited"}
	}
	t.Custom = true
	if err := c.validate(t, t.ID); err != nil {
		return SampleType{}, err
	}
	c.types[t.ID] = t
	return t, nil
}

// RemoveCustom deletes a user-defined sample type.
func (c *Catalog) RemoveCustom(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.types[id]
	if !ok {
		return eris.Errorf("catalog: sample type %q not found", id)
	}
	if !t.Custom {
		return &ValidationError{Field: "id", Reason: "predefined sample types cannot be removed"}
	}
	delete(c.types, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// validate checks t against the catalog; self is the id t replaces, if any.
// Callers hold the lock.
func (c *Catalog) validate(t SampleType, self string) error {
	if err := ValidateSampleType(t); err != nil {
		return err
	}
	for id, other := range c.types {
		if id == self {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(other.Name), strings.TrimSpace(t.Name)) {
			return &ValidationError{Field: "name", Reason: "duplicate sample type name"}
		}
	}
	return nil
}
