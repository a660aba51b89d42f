package core

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Account is a chart-of-accounts line items can be booked against.
type Account struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

//go:embed accounts.yaml
var accountsYAML []byte

var (
	accountsOnce sync.Once
	accounts     []Account
	accountsErr  error
)

// ParseAccounts decodes an account reference list and returns it sorted by code.
func ParseAccounts(data []byte) ([]Account, error) {
	var doc struct {
		Accounts []Account `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	seen := make(map[string]bool, len(doc.Accounts))
	out := make([]Account, 0, len(doc.Accounts))
	for _, a := range doc.Accounts {
		a.Code = strings.TrimSpace(a.Code)
		if a.Code == "" || seen[a.Code] {
			continue
		}
		seen[a.Code] = true
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Accounts returns the embedded account reference list.
func Accounts() ([]Account, error) {
	accountsOnce.Do(func() {
		accounts, accountsErr = ParseAccounts(accountsYAML)
	})
	return accounts, accountsErr
}

// SearchAccounts returns accounts whose code starts with q or whose name
// contains q, case-insensitively. An empty query returns the whole list.
func SearchAccounts(q string) ([]Account, error) {
	all, err := Accounts()
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return append([]Account(nil), all...), nil
	}
	var out []Account
	for _, a := range all {
		if strings.HasPrefix(a.Code, q) || strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

// LookupAccount finds an account by exact code.
func LookupAccount(code string) (Account, bool) {
	all, err := Accounts()
	if err != nil {
		return Account{}, false
	}
	code = strings.TrimSpace(code)
	i := sort.Search(len(all), func(i int) bool { return all[i].Code >= code })
	if i < len(all) && all[i].Code == code {
		return all[i], true
	}
	return Account{}, false
}
