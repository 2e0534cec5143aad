package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Aliases holds the canonical-vocabulary lookup tables. A value is built
// once at startup (defaults plus an optional overlay file) and passed to
// the Normalizer; it is read-only at run time.
type Aliases struct {
	Tickers    map[string]string // alias -> canonical symbol, keys uppercase
	Biases     map[string]string // alias -> canonical slug, keys lowercase
	Patterns   map[string]string
	Strategies map[string]string
	Companies  map[string]string // lowercase company name -> ticker
}

// aliasFile is the YAML overlay shape for LoadAliasFile.
type aliasFile struct {
	Tickers    map[string]string `yaml:"tickers"`
	Biases     map[string]string `yaml:"biases"`
	Patterns   map[string]string `yaml:"patterns"`
	Strategies map[string]string `yaml:"strategies"`
	Companies  map[string]string `yaml:"companies"`
}

// DefaultAliases returns the built-in vocabulary tables.
func DefaultAliases() *Aliases {
	return &Aliases{
		Tickers: map[string]string{
			"GOOG":  "GOOGL",
			"FB":    "META",
			"SQ":    "XYZ",
			"TWTR":  "X",
			"BRK.A": "BRK-A",
			"BRK.B": "BRK-B",
		},
		Biases: map[string]string{
			"fomo":                "fear-of-missing-out",
			"loss aversion":       "loss-aversion",
			"sunk cost":           "sunk-cost-fallacy",
			"sunk-cost":           "sunk-cost-fallacy",
			"confirmation":        "confirmation-bias",
			"anchoring bias":      "anchoring",
			"recency":             "recency-bias",
			"overconfidence bias": "overconfidence",
		},
		Patterns: map[string]string{
			"head and shoulders":  "head-and-shoulders",
			"cup and handle":      "cup-and-handle",
			"double top":          "double-top",
			"double bottom":       "double-bottom",
			"bull flag":           "bull-flag",
			"bear flag":           "bear-flag",
			"golden cross":        "golden-cross",
			"death cross":         "death-cross",
		},
		Strategies: map[string]string{
			"dca":                  "dollar-cost-averaging",
			"dollar cost average":  "dollar-cost-averaging",
			"buy and hold":         "buy-and-hold",
			"covered call":         "covered-calls",
			"wheel":                "wheel-strategy",
			"momentum trading":     "momentum",
			"mean reversion trade": "mean-reversion",
		},
		Companies: map[string]string{
			"nvidia":                 "NVDA",
			"nvidia corporation":     "NVDA",
			"apple":                  "AAPL",
			"apple inc":              "AAPL",
			"microsoft":              "MSFT",
			"alphabet":               "GOOGL",
			"google":                 "GOOGL",
			"meta":                   "META",
			"meta platforms":         "META",
			"amazon":                 "AMZN",
			"tesla":                  "TSLA",
			"amd":                    "AMD",
			"intel":                  "INTC",
			"intel corporation":      "INTC",
			"advanced micro devices": "AMD",
			"broadcom":               "AVGO",
			"taiwan semiconductor":   "TSM",
			"berkshire hathaway":     "BRK-B",
		},
	}
}

// LoadAliasFile overlays a YAML alias file onto the defaults. Keys are
// case-normalized the same way lookups are (tickers upper, everything else
// lower), so file authors don't have to care.
func LoadAliasFile(path string) (*Aliases, error) {
	a := DefaultAliases()
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias file: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing alias file %s: %w", path, err)
	}

	for k, v := range file.Tickers {
		a.Tickers[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	for k, v := range file.Biases {
		a.Biases[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	for k, v := range file.Patterns {
		a.Patterns[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	for k, v := range file.Strategies {
		a.Strategies[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	for k, v := range file.Companies {
		a.Companies[strings.ToLower(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}

	return a, nil
}
