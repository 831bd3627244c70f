// Package resolver normalizes user-supplied asset identifiers into the
// single canonical key the rest of the engine works with, and maps
// canonical keys to the ticker each external provider expects.
package resolver

import (
	"errors"
	"strings"
)

// ErrInvalidIdentifier is returned when neither a symbol nor a name was
// supplied. It is the only resolver failure; an unmapped identifier is
// still usable as-is by later source tiers.
var ErrInvalidIdentifier = errors.New("resolver: neither symbol nor name supplied")

// exchange suffixes recognized when retrying a lookup on the stripped form.
var exchangeSuffixes = []string{".T"}

// defaultAliases maps raw symbols (including exchange-suffixed variants)
// to canonical keys. Fund codes are their own canonical key.
var defaultAliases = map[string]string{
	// Mutual funds (fund codes)
	"0331418A": "0331418A", // eMAXIS Slim 全世界株式(オール・カントリー)
	"03311187": "03311187", // eMAXIS Slim 米国株式(S&P500)
	"0331A172": "0331A172", // eMAXIS Slim 先進国債券インデックス(除く日本)
	"0331219A": "0331219A", // eMAXIS Slim 先進国リートインデックス(除く日本)
	"25314203": "25314203", // NZAM・ベータ 米国REIT
	"4731624C": "4731624C", // たわらノーロード インド株式Nifty50
	"29314233": "29314233", // ニッセイSOX指数インデックスファンド
	"03311112": "03311112", // 三菱UFJ 純金ファンド(ファインゴールド)
	"04311181": "04311181", // iFreeNEXT FANG+インデックス
	"01314133": "01314133", // 野村Jリートファンド

	// Tokyo-listed ETFs and stocks (numeric tickers)
	"1326":   "1326", // SPDRゴールド・シェア
	"1542":   "1542", // 純銀上場信託
	"1674":   "1674", // WT白金上場投信
	"1693":   "1693", // WT銅上場投信
	"1693.T": "1693",
	"2516":   "2516", // 東証グロース250ETF
	"4755":   "4755", // 楽天グループ
	"4755.T": "4755",
}

// defaultNameAliases maps free-text names to canonical keys. Matching is
// by containment on whitespace-stripped names, so CSV variants like
// "eMAXIS Slim 全世界株式(オール・カントリー)(オルカン)" still hit.
var defaultNameAliases = map[string]string{
	"eMAXIS Slim 全世界株式(オール・カントリー)": "0331418A",
	"オルカン":                      "0331418A",
	"eMAXIS Slim 米国株式(S&P500)":  "03311187",
	"米国株式(S&P500)":              "03311187",
	"eMAXIS Slim 先進国債券インデックス(除く日本)": "0331A172",
	"先進国債券インデックス(除く日本)":           "0331A172",
	"eMAXIS Slim 先進国リートインデックス(除く日本)": "0331219A",
	"先進国リートインデックス(除く日本)":           "0331219A",
	"NZAM・ベータ 米国REIT":              "25314203",
	"NZAMベータ 米国REIT":               "25314203",
	"たわらノーロード インド株式Nifty50":        "4731624C",
	"インド株式Nifty50":                 "4731624C",
	"ニッセイSOX指数インデックスファンド":          "29314233",
	"SOX指数インデックスファンド":              "29314233",
	"三菱UFJ 純金ファンド(ファインゴールド)":       "03311112",
	"ファインゴールド":                     "03311112",
	"iFreeNEXT FANG+インデックス":        "04311181",
	"FANG+インデックス":                  "04311181",
	"野村Jリートファンド":                   "01314133",
	"Jリートファンド":                     "01314133",
	"SPDRゴールド・シェア":                 "1326",
	"純銀上場信託":                       "1542",
	"WT白金上場投信":                     "1674",
	"WisdomTree 白金":                "1674",
	"WT銅上場投信":                      "1693",
	"WisdomTree 銅":                 "1693",
	"東証グロース250ETF":                 "2516",
	"楽天グループ":                       "4755",
}

// Resolver turns (symbol, name) pairs into canonical keys. It is built
// from static tables, never mutated after construction, and safe for
// concurrent use without locking.
type Resolver struct {
	aliases     map[string]string
	nameAliases map[string]string
}

// Option customizes a Resolver at construction (config reload path).
type Option func(*Resolver)

// WithAliases merges extra symbol aliases over the built-in table.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range aliases {
			r.aliases[normalizeSymbol(k)] = v
		}
	}
}

// WithNameAliases merges extra name aliases over the built-in table.
func WithNameAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range aliases {
			r.nameAliases[k] = v
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		aliases:     make(map[string]string, len(defaultAliases)),
		nameAliases: make(map[string]string, len(defaultNameAliases)),
	}
	for k, v := range defaultAliases {
		r.aliases[normalizeSymbol(k)] = v
	}
	for k, v := range defaultNameAliases {
		r.nameAliases[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the canonical key for a (symbol, name) pair.
// First match wins: exact symbol alias, name alias, symbol alias after
// stripping a known exchange suffix, then the raw symbol (or name)
// unchanged so unmapped assets remain usable by later tiers.
func (r *Resolver) Resolve(symbol, name string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	name = strings.TrimSpace(name)
	if symbol == "" && name == "" {
		return "", ErrInvalidIdentifier
	}

	norm := normalizeSymbol(symbol)
	if key, ok := r.aliases[norm]; ok {
		return key, nil
	}

	if key, ok := r.resolveName(name); ok {
		return key, nil
	}

	for _, suffix := range exchangeSuffixes {
		if stripped, ok := strings.CutSuffix(norm, suffix); ok {
			if key, ok := r.aliases[stripped]; ok {
				return key, nil
			}
		}
	}

	if symbol != "" {
		return symbol, nil
	}
	return name, nil
}

func (r *Resolver) resolveName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	needle := stripSpaces(name)
	for alias, key := range r.nameAliases {
		if strings.Contains(needle, stripSpaces(alias)) {
			return key, true
		}
	}
	return "", false
}

// normalizeSymbol removes ASCII and ideographic spaces and converts
// full-width alphanumerics to half-width, so CSV exports that use
// full-width codes still match the alias table.
func normalizeSymbol(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c == ' ' || c == '　':
			continue
		case c >= '０' && c <= '９':
			b.WriteRune(c - '０' + '0')
		case c >= 'Ａ' && c <= 'Ｚ':
			b.WriteRune(c - 'Ａ' + 'A')
		case c >= 'ａ' && c <= 'ｚ':
			b.WriteRune(c - 'ａ' + 'a')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func stripSpaces(s string) string {
	return strings.NewReplacer(" ", "", "　", "").Replace(s)
}
