package symbols

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSymbol is returned when the catalog has no entry for an id.
var ErrUnknownSymbol = errors.New("unknown symbol")

// catalogFile represents the top-level YAML structure.
type catalogFile struct {
	Symbols []Symbol `yaml:"symbols"`
}

// Catalog is a concurrency-safe lookup of instruments by id.
type Catalog struct {
	mu      sync.RWMutex
	symbols map[string]Symbol
}

// NewCatalog builds a catalog from already-decoded symbols.
func NewCatalog(list []Symbol) (*Catalog, error) {
	c := &Catalog{symbols: make(map[string]Symbol, len(list))}
	for _, s := range list {
		if err := c.Put(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalog reads symbols from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes the YAML document used by LoadCatalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	return NewCatalog(file.Symbols)
}

// Put validates and stores (or replaces) a symbol.
func (c *Catalog) Put(s Symbol) error {
	s.ID = strings.ToUpper(strings.TrimSpace(s.ID))
	if s.ID == "" {
		return errors.New("symbol id is empty")
	}
	ct, err := ParseContractType(string(s.ContractType))
	if err != nil {
		return fmt.Errorf("symbol %s: %w", s.ID, err)
	}
	s.ContractType = ct
	if s.Multiplier < 0 {
		return fmt.Errorf("symbol %s: multiplier must be positive", s.ID)
	}
	if s.Limits != nil {
		for name, r := range map[string]*Range{"price": s.Limits.Price, "cost": s.Limits.Cost, "amount": s.Limits.Amount} {
			if r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return fmt.Errorf("symbol %s: %s min %v > max %v", s.ID, name, *r.Min, *r.Max)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols[s.ID] = s
	return nil
}

// Get returns the symbol for id.
func (c *Catalog) Get(id string) (Symbol, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.symbols[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Symbol{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, id)
	}
	return s, nil
}

// List returns all symbols ordered by id.
func (c *Catalog) List() []Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Symbol, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every symbol id, useful for subscribing price feeds.
func (c *Catalog) IDs() []string {
	list := c.List()
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}
