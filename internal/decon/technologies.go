package decon

import (
	_ "embed"
	"io"
	"strings"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_technologies.yaml
var defaultTechnologiesYAML []byte

type technologyFile struct {
	Technologies []calc.Technology `yaml:"technologies"`
}

// Technologies is an ordered, read-only set of decon technologies.
type Technologies struct {
	byID  map[string]calc.Technology
	order []string
}

// LoadTechnologies reads a YAML technology list.
func LoadTechnologies(r io.Reader) (*Technologies, error) {
	var doc technologyFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "decon: decode technologies")
	}
	t := &Technologies{byID: make(map[string]calc.Technology, len(doc.Technologies))}
	for _, tech := range doc.Technologies {
		if tech.ID == "" || tech.Name == "" {
			return nil, eris.New("decon: technology id and name are required")
		}
		if tech.ApplicationRate <= 0 {
			return nil, eris.Errorf("decon: technology %q: application rate must be greater than 0", tech.ID)
		}
		if _, dup := t.byID[tech.ID]; dup {
			return nil, eris.Errorf("decon: duplicate technology %q", tech.ID)
		}
		t.byID[tech.ID] = tech
		t.order = append(t.order, tech.ID)
	}
	return t, nil
}

// DefaultTechnologies returns the embedded technology list.
func DefaultTechnologies() *Technologies {
	t, err := LoadTechnologies(strings.NewReader(string(defaultTechnologiesYAML)))
	if err != nil {
		panic(err)
	}
	return t
}

// Get returns a technology by id.
func (t *Technologies) Get(id string) (calc.Technology, bool) {
	tech, ok := t.byID[id]
	return tech, ok
}

// List returns the technologies in file order.
func (t *Technologies) List() []calc.Technology {
	out := make([]calc.Technology, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}
