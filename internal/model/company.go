// Package model holds the entities shared by the enrichment loop, its sinks
// and the outer CLI/HTTP surfaces.
package model

// Person is a lead record. It is read-only for the duration of a run.
type Person struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Title     string `json:"title,omitempty" yaml:"title"`
	Email     string `json:"email,omitempty" yaml:"email"`
	Role      string `json:"role,omitempty" yaml:"role"`
	CompanyID string `json:"company_id" yaml:"company_id"`
}

// Company is the organisation a Person belongs to.
type Company struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Domain     string `json:"domain,omitempty" yaml:"domain"`
	CampaignID string `json:"campaign_id,omitempty" yaml:"campaign_id"`
}

// EntityType names the kind of entity a context snippet is attached to.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityCompany EntityType = "company"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityPerson || t == EntityCompany
}
