// Package trade provides the static per-trade configuration: terminology,
// units and default rates.
package trade

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/tradebook/internal/money"
)

// GenericID is the fallback trade.
const GenericID = "generic"

//go:embed trades.yaml
var embeddedCatalog []byte

// Config describes one trade.
type Config struct {
	ID          string            `json:"id" yaml:"-"`
	Label       string            `json:"label" yaml:"label"`
	Terminology map[string]string `json:"terminology" yaml:"terminology"`
	Units       []string          `json:"units" yaml:"units"`
	DefaultUnit string            `json:"default_unit" yaml:"default_unit"`
	DefaultVAT  money.Rate        `json:"default_vat_bp" yaml:"default_vat_bp"`
	HourlyRate  money.Cents       `json:"hourly_rate_cents" yaml:"hourly_rate_cents"`
}

// Term returns the trade's word for key, or key itself.
func (c Config) Term(key string) string {
	if v, ok := c.Terminology[key]; ok && v != "" {
		return v
	}
	return key
}

// AllowsUnit reports whether unit is one of the trade's units.
func (c Config) AllowsUnit(unit string) bool {
	return slices.Contains(c.Units, unit)
}

// Catalog holds trade configurations keyed by id.
type Catalog struct {
	trades map[string]Config
}

type catalogFile struct {
	Trades map[string]Config `yaml:"trades"`
}

// Load parses a YAML catalog and validates it.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode trade catalog: %w", err)
	}
	cat := &Catalog{trades: make(map[string]Config, len(file.Trades))}
	for id, cfg := range file.Trades {
		cfg.ID = id
		cat.trades[id] = cfg
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks that the generic trade exists and that every trade has a
// label and a default unit among its units.
func (c *Catalog) Validate() error {
	if _, ok := c.trades[GenericID]; !ok {
		return fmt.Errorf("trade catalog: missing %q", GenericID)
	}
	for id, cfg := range c.trades {
		if id != normalizeID(id) {
			return fmt.Errorf("trade %q: id must be lower-case ascii", id)
		}
		if strings.TrimSpace(cfg.Label) == "" {
			return fmt.Errorf("trade %q: label is required", id)
		}
		if len(cfg.Units) == 0 {
			return fmt.Errorf("trade %q: units are required", id)
		}
		if !cfg.AllowsUnit(cfg.DefaultUnit) {
			return fmt.Errorf("trade %q: default unit %q not in units", id, cfg.DefaultUnit)
		}
		if !cfg.DefaultVAT.Valid() {
			return fmt.Errorf("trade %q: invalid default vat %d", id, cfg.DefaultVAT)
		}
	}
	return nil
}

// Lookup returns the trade for id, ignoring case and accents. Unknown ids
// fall back to the generic trade; ok reports whether id was known.
func (c *Catalog) Lookup(id string) (Config, bool) {
	if cfg, found := c.trades[normalizeID(id)]; found {
		return cfg, true
	}
	return c.trades[GenericID], false
}

// All returns every trade sorted by id.
func (c *Catalog) All() []Config {
	out := make([]Config, 0, len(c.trades))
	for _, cfg := range c.trades {
		out = append(out, cfg)
	}
	slices.SortFunc(out, func(a, b Config) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// normalizeID lower-cases and strips accents: "Électricien" -> "electricien".
func normalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, id)
	if err != nil {
		return id
	}
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Load(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("load embedded trade catalog: %v", err))
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}

// Lookup resolves id against the embedded catalog.
func Lookup(id string) (Config, bool) {
	return Default().Lookup(id)
}

// All lists the embedded catalog.
func All() []Config {
	return Default().All()
}
