package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_ExactSymbolAlias(t *testing.T) {
	r := NewResolver()

	key, err := r.Resolve("0331418A", "")
	require.NoError(t, err)
	require.Equal(t, "0331418A", key)

	key, err = r.Resolve("4755", "")
	require.NoError(t, err)
	require.Equal(t, "4755", key)
}

func TestResolve_StripsExchangeSuffix(t *testing.T) {
	r := NewResolver()

	key, err := r.Resolve("4755.T", "")
	require.NoError(t, err)
	require.Equal(t, "4755", key)

	key, err = r.Resolve("1693.T", "")
	require.NoError(t, err)
	require.Equal(t, "1693", key)
}

func TestResolve_NormalizesFullWidthSymbols(t *testing.T) {
	r := NewResolver()

	key, err := r.Resolve("４７５５", "")
	require.NoError(t, err)
	require.Equal(t, "4755", key)

	key, err = r.Resolve(" 0331418A ", "")
	require.NoError(t, err)
	require.Equal(t, "0331418A", key)
}

func TestResolve_NameContainment(t *testing.T) {
	r := NewResolver()

	cases := map[string]string{
		"eMAXIS Slim 全世界株式(オール・カントリー)(オルカン)": "0331418A",
		"eMAXIS Slim 米国株式(S&P500)":            "03311187",
		"iFreeNEXT FANG+インデックス(つみたて)":         "04311181",
		"楽天グループ":                              "4755",
	}
	for name, want := range cases {
		key, err := r.Resolve("", name)
		require.NoError(t, err)
		require.Equalf(t, want, key, "name %q", name)
	}
}

func TestResolve_UnknownFallsThroughUnchanged(t *testing.T) {
	r := NewResolver()

	// Totality: every non-empty identifier resolves to something usable.
	key, err := r.Resolve("ZZZZ9", "")
	require.NoError(t, err)
	require.Equal(t, "ZZZZ9", key)

	key, err = r.Resolve("", "未知のファンド")
	require.NoError(t, err)
	require.Equal(t, "未知のファンド", key)
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver()

	for _, in := range []string{"4755.T", "0331418A", "ZZZZ9", "USDJPY=X"} {
		once, err := r.Resolve(in, "")
		require.NoError(t, err)
		twice, err := r.Resolve(once, "")
		require.NoError(t, err)
		require.Equalf(t, once, twice, "resolving a canonical key must be a no-op (%q)", in)
	}
}

func TestResolve_EmptyIdentifier(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve("", "")
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = r.Resolve("  ", " ")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestResolve_CustomAliases(t *testing.T) {
	r := NewResolver(
		WithAliases(map[string]string{"9999.T": "9999"}),
		WithNameAliases(map[string]string{"テストファンド": "TEST01"}),
	)

	key, err := r.Resolve("9999.T", "")
	require.NoError(t, err)
	require.Equal(t, "9999", key)

	key, err = r.Resolve("", "テストファンド(為替ヘッジなし)")
	require.NoError(t, err)
	require.Equal(t, "TEST01", key)
}
