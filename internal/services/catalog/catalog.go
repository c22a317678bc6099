// Package catalog describes the third-party services an account can link.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"gopkg.in/yaml.v3"
)

// ServiceType identifies a kind of linkable service.
type ServiceType string

const (
	ServiceTypeHoneywell ServiceType = "HONEYWELL"
)

// LoginMethod is how the user authenticates against a service.
type LoginMethod string

const (
	LoginMethodPassword LoginMethod = "PASSWORD"
)

//go:embed default_services.yaml
var defaultServices []byte

type fileConfig struct {
	Services []Entry `yaml:"services"`
}

// Entry is one catalog row, shown to clients as-is.
type Entry struct {
	Name          string      `yaml:"name" json:"name"`
	Identifier    ServiceType `yaml:"identifier" json:"identifier"`
	Icon          string      `yaml:"icon" json:"icon"`
	RequiresLogin bool        `yaml:"requires_login" json:"requires_login"`
	LoginMethod   LoginMethod `yaml:"login_method" json:"login_method"`
}

func (e Entry) validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Identifier, validation.Required, validation.In(ServiceTypeHoneywell)),
		validation.Field(&e.LoginMethod, validation.In(LoginMethodPassword)),
	)
}

// Catalog is the immutable list of linkable services.
type Catalog struct {
	entries []Entry
	byType  map[ServiceType]Entry
}

// Load reads the catalog from path, or the built-in catalog when path is
// empty.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultServices)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("services file %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse services catalog: %w", err)
	}

	c := &Catalog{byType: make(map[ServiceType]Entry, len(cfg.Services))}
	for i, entry := range cfg.Services {
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("service #%d: %w", i, err)
		}
		if _, dup := c.byType[entry.Identifier]; dup {
			return nil, fmt.Errorf("service #%d: duplicate identifier %s", i, entry.Identifier)
		}
		c.byType[entry.Identifier] = entry
		c.entries = append(c.entries, entry)
	}
	return c, nil
}

// Entries returns a copy of every entry in file order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Lookup returns the entry for t.
func (c *Catalog) Lookup(t ServiceType) (Entry, bool) {
	e, ok := c.byType[t]
	return e, ok
}
