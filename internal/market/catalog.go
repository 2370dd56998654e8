package market

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/cogexchange/internal/domain"
)

var symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)

// Listing is one catalog entry.
type Listing struct {
	Symbol        string   `yaml:"symbol"`
	Name          string   `yaml:"name"`
	Volatility    string   `yaml:"volatility"`
	BaselinePrice int64    `yaml:"baseline_price"` // spurs
	Tags          []string `yaml:"tags,omitempty"` // chat tags attributed to this instrument
}

type catalogFile struct {
	Instruments []Listing `yaml:"instruments"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() []Listing {
	return []Listing{
		{Symbol: "STMP", Name: "Steamworks", Volatility: "medium", BaselinePrice: 2000, Tags: []string{"STMP", "STEAM"}},
		{Symbol: "BRSS", Name: "Brass Foundry", Volatility: "low", BaselinePrice: 3200, Tags: []string{"BRSS", "BRASS"}},
		{Symbol: "GEAR", Name: "Gearwrights", Volatility: "high", BaselinePrice: 960, Tags: []string{"GEAR", "G"}},
		{Symbol: "CLKW", Name: "Clockwork Guild", Volatility: "medium", BaselinePrice: 1600, Tags: []string{"CLKW", "CLOCK"}},
		{Symbol: "VALV", Name: "Valve & Piston", Volatility: "high", BaselinePrice: 1280, Tags: []string{"VALV", "V"}},
	}
}

// LoadCatalog reads a YAML catalog:
//
//	instruments:
//	  - symbol: STMP
//	    name: Steamworks
//	    volatility: medium
//	    baseline_price: 2000
func LoadCatalog(path string) ([]Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) ([]Listing, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := ValidateCatalog(f.Instruments); err != nil {
		return nil, err
	}
	return f.Instruments, nil
}

// ValidateCatalog checks symbols, volatility classes and baselines, and
// that no symbol or tag is listed twice.
func ValidateCatalog(listings []Listing) error {
	if len(listings) == 0 {
		return fmt.Errorf("catalog has no instruments")
	}
	symbols := make(map[string]bool, len(listings))
	tags := make(map[string]string)
	for i, l := range listings {
		if !symbolRegex.MatchString(l.Symbol) {
			return fmt.Errorf("catalog entry %d: symbol %q must match %s", i, l.Symbol, symbolRegex)
		}
		if symbols[l.Symbol] {
			return fmt.Errorf("catalog entry %d: duplicate symbol %s", i, l.Symbol)
		}
		symbols[l.Symbol] = true
		if _, err := domain.ParseVolatility(l.Volatility); err != nil {
			return fmt.Errorf("catalog entry %s: %w", l.Symbol, err)
		}
		if l.BaselinePrice <= 0 {
			return fmt.Errorf("catalog entry %s: baseline_price must be > 0", l.Symbol)
		}
		for _, tag := range l.Tags {
			tag = strings.ToUpper(strings.TrimSpace(tag))
			if owner, dup := tags[tag]; dup && owner != l.Symbol {
				return fmt.Errorf("catalog entry %s: tag %q already belongs to %s", l.Symbol, tag, owner)
			}
			tags[tag] = l.Symbol
		}
	}
	return nil
}
