package store

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/pkg/salesforce"
)

// SalesforceLookup resolves people from Contacts and companies from Accounts.
type SalesforceLookup struct {
	client salesforce.Client
}

// NewSalesforceLookup wraps an authenticated Salesforce client.
func NewSalesforceLookup(client salesforce.Client) *SalesforceLookup {
	return &SalesforceLookup{client: client}
}

func (l *SalesforceLookup) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	c, err := salesforce.FindContactByID(ctx, l.client, id)
	if err != nil || c == nil {
		return nil, err
	}
	p := contactToPerson(*c)
	return &p, nil
}

func (l *SalesforceLookup) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	a, err := salesforce.FindAccountByID(ctx, l.client, id)
	if err != nil || a == nil {
		return nil, err
	}
	return &model.Company{ID: a.ID, Name: a.Name, Domain: websiteDomain(a.Website)}, nil
}

func (l *SalesforceLookup) ListPeople(ctx context.Context, limit int) ([]model.Person, error) {
	contacts, err := salesforce.ListContacts(ctx, l.client, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, len(contacts))
	for i, c := range contacts {
		out[i] = contactToPerson(c)
	}
	return out, nil
}

func contactToPerson(c salesforce.Contact) model.Person {
	return model.Person{ID: c.ID, Name: c.Name, Title: c.Title, Email: c.Email, CompanyID: c.AccountID}
}

// websiteDomain reduces an Account website such as "https://www.acme.io/" to "acme.io".
func websiteDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
