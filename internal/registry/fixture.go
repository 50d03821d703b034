package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/research-agent/internal/model"
)

// LoadSchemaFromFile reads a schema from a YAML or JSON file. The format is
// chosen by extension; anything other than .json is parsed as YAML.
func LoadSchemaFromFile(path string) (*Schema, error) {
	var s Schema
	if err := decodeFile(path, &s); err != nil {
		return nil, eris.Wrap(err, "registry: load schema")
	}
	name := s.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewSchema(name, s.Fields)
}

// Fixture is a set of people and companies used to seed the lookup store.
type Fixture struct {
	Companies []model.Company `json:"companies" yaml:"companies"`
	People    []model.Person  `json:"people" yaml:"people"`
}

// Validate checks that every person references a company in the fixture or
// one already known to the caller.
func (f *Fixture) Validate(known map[string]bool) error {
	ids := make(map[string]bool, len(f.Companies)+len(known))
	for k := range known {
		ids[k] = true
	}
	for _, c := range f.Companies {
		if c.ID == "" {
			return eris.Errorf("registry: company %q has no id", c.Name)
		}
		ids[c.ID] = true
	}
	for _, p := range f.People {
		if p.ID == "" {
			return eris.Errorf("registry: person %q has no id", p.Name)
		}
		if !ids[p.CompanyID] {
			return eris.Errorf("registry: person %s references unknown company %q", p.ID, p.CompanyID)
		}
	}
	return nil
}

// LoadFixtureFromFile reads a seed fixture from a YAML or JSON file.
func LoadFixtureFromFile(path string) (*Fixture, error) {
	var f Fixture
	if err := decodeFile(path, &f); err != nil {
		return nil, eris.Wrap(err, "registry: load fixture")
	}
	if err := f.Validate(nil); err != nil {
		return nil, err
	}
	return &f, nil
}

// DemoFixture returns the small built-in data set used by `seed` when no
// file is given.
func DemoFixture() *Fixture {
	return &Fixture{
		Companies: []model.Company{
			{ID: "company-google", Name: "Google", Domain: "google.com", CampaignID: "campaign-demo"},
			{ID: "company-microsoft", Name: "Microsoft", Domain: "microsoft.com", CampaignID: "campaign-demo"},
		},
		People: []model.Person{
			{ID: "person-alice", Name: "Alice Smith", Email: "alice@google.com", Title: "Product Manager", Role: "decision_maker", CompanyID: "company-google"},
			{ID: "person-bob", Name: "Bob Jones", Email: "bob@microsoft.com", Title: "Engineering Lead", Role: "influencer", CompanyID: "company-microsoft"},
		},
	}
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return eris.Wrap(json.Unmarshal(data, out), "unmarshal json")
	}
	return eris.Wrap(yaml.Unmarshal(data, out), "unmarshal yaml")
}
