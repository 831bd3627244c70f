package resolver

import (
	"errors"
	"strings"
)

// Provider identifiers used by the ticker mapper.
const (
	ProviderYahoo      = "yahoo"
	ProviderTwelveData = "twelvedata"
)

// ErrNotSupported signals that a provider has no usable ticker for a
// canonical key. The coordinator treats it as "skip this tier for this
// asset", never as a failure.
var ErrNotSupported = errors.New("resolver: provider does not support this asset")

// tickerOverrides lists explicit per-provider tickers that take precedence
// over the suffix heuristics.
var tickerOverrides = map[string]map[string]string{
	ProviderYahoo: {
		// FX pairs are quoted with Yahoo's =X convention already.
		"USDJPY=X": "USDJPY=X",
		"EURJPY=X": "EURJPY=X",
	},
	ProviderTwelveData: {
		"USDJPY=X": "USD/JPY",
		"EURJPY=X": "EUR/JPY",
		"1326":     "1326:TSE",
	},
}

// TickerMap maps canonical keys to provider tickers. Rules are static
// and table-driven; construction-time overrides extend the tables.
type TickerMap struct {
	overrides map[string]map[string]string
}

func NewTickerMap() *TickerMap {
	return &TickerMap{overrides: tickerOverrides}
}

// ProviderTicker returns the ticker a provider expects for a canonical key.
// Explicit overrides win; otherwise Tokyo-listed numeric codes get the
// provider's exchange suffix, and US-style symbols pass through unchanged.
// Assets a provider cannot quote return ErrNotSupported.
func (m *TickerMap) ProviderTicker(canonicalKey, providerID string) (string, error) {
	if byKey, ok := m.overrides[providerID]; ok {
		if ticker, ok := byKey[canonicalKey]; ok {
			return ticker, nil
		}
	}

	switch providerID {
	case ProviderYahoo:
		if isNumeric(canonicalKey) && !strings.HasSuffix(canonicalKey, ".T") {
			return canonicalKey + ".T", nil
		}
		// Fund codes and already-suffixed or US tickers go through as-is.
		return canonicalKey, nil
	case ProviderTwelveData:
		if isUSSymbol(canonicalKey) {
			return canonicalKey, nil
		}
		return "", ErrNotSupported
	default:
		return "", ErrNotSupported
	}
}

// NativeCurrency reports the currency an asset's prices are quoted in.
// Numeric Tokyo listings and fund codes are JPY; US-style symbols and
// anything unknown defaults per the portfolio's home market.
func (m *TickerMap) NativeCurrency(canonicalKey string) string {
	if isUSSymbol(canonicalKey) {
		return "USD"
	}
	return "JPY"
}

// isNumeric reports whether the key is a bare Tokyo exchange code.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isUSSymbol matches the US-ticker shape: uppercase letters only.
func isUSSymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
