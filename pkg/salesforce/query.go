package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	Name      string `json:"Name" salesforce:"Name"`
	Title     string `json:"Title" salesforce:"Title"`
	Email     string `json:"Email" salesforce:"Email"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
}

// Account represents a Salesforce Account record.
type Account struct {
	ID      string `json:"Id" salesforce:"Id"`
	Name    string `json:"Name" salesforce:"Name"`
	Website string `json:"Website" salesforce:"Website"`
}

var (
	contactFields = []string{"Id", "Name", "Title", "Email", "AccountId"}
	accountFields = []string{"Id", "Name", "Website"}
)

// FindContactByID returns the Contact with the given ID, or nil when none exists.
func FindContactByID(ctx context.Context, c Client, id string) (*Contact, error) {
	var contacts []Contact
	if err := c.Query(ctx, selectByID("Contact", contactFields, id), &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact %s", id))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// FindAccountByID returns the Account with the given ID, or nil when none exists.
func FindAccountByID(ctx context.Context, c Client, id string) (*Account, error) {
	var accounts []Account
	if err := c.Query(ctx, selectByID("Account", accountFields, id), &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account %s", id))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// ListContacts returns up to limit Contacts that belong to an Account.
func ListContacts(ctx context.Context, c Client, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 200
	}
	soql := fmt.Sprintf("SELECT %s FROM Contact WHERE AccountId != null ORDER BY Name LIMIT %d",
		strings.Join(contactFields, ", "), limit)
	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, "sf: list contacts")
	}
	return contacts, nil
}

func selectByID(object string, fields []string, id string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE Id = '%s' LIMIT 1",
		strings.Join(fields, ", "), object, escapeSoql(id))
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
