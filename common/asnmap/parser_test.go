package asnmap

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	t.Parallel()
	parsed, err := ParseLine("1.0.0.0\t1.0.0.255\t13335\tUS\tCLOUDFLARENET")
	require.NoError(t, err)
	require.Equal(t, ParsedLine{
		StartIP:      netip.MustParseAddr("1.0.0.0"),
		EndIP:        netip.MustParseAddr("1.0.0.255"),
		ASN:          13335,
		CountryCode:  [2]byte{'U', 'S'},
		Organization: "CLOUDFLARENET",
	}, parsed)
}

func TestParseLineRealData(t *testing.T) {
	t.Parallel()
	parsed, err := ParseLine("2803:c280::\t2803:c280:2:ffff:ffff:ffff:ffff:ffff\t265775\tEC\tAUSTRONET")
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("2803:c280::"), parsed.StartIP)
	require.Equal(t, netip.MustParseAddr("2803:c280:2:ffff:ffff:ffff:ffff:ffff"), parsed.EndIP)
	require.Equal(t, uint32(265775), parsed.ASN)
	require.Equal(t, [2]byte{'E', 'C'}, parsed.CountryCode)
	require.Equal(t, "AUSTRONET", parsed.Organization)

	parsed, err = ParseLine("213.230.0.0\t213.230.0.255\t28938\tSA\tMEDUNET-AS Program for Medical and Educational Telecommunications Riyadh, Saudi Arabia")
	require.NoError(t, err)
	require.Equal(t, "MEDUNET-AS Program for Medical and Educational Telecommunications Riyadh, Saudi Arabia", parsed.Organization)
}

func TestParseLineRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		kind ParseErrorKind
	}{
		{"missing columns", "1.0.0.0\t1.0.0.255\t13335", KindColumnCount},
		{"extra column", "1.0.0.0\t1.0.0.255\t13335\tUS\tCLOUDFLARENET\textra", KindColumnCount},
		{"empty line", "", KindColumnCount},
		{"invalid start IP", "not-an-ip\t1.0.0.255\t13335\tUS\tCLOUDFLARENET", KindInvalidIP},
		{"invalid end IP", "1.0.0.0\tnot-an-ip\t13335\tUS\tCLOUDFLARENET", KindInvalidIP},
		{"family mismatch", "1.0.0.0\t::1\t13335\tUS\tCLOUDFLARENET", KindFamilyMismatch},
		// The family check runs before the ASN check, so a line broken in
		// both ways reports the mismatch.
		{"family mismatch before ASN", "1.0.0.0\t::1\tnot-a-number\tUS\tCLOUDFLARENET", KindFamilyMismatch},
		{"reversed range", "1.0.0.255\t1.0.0.0\t13335\tUS\tCLOUDFLARENET", KindInvalidRange},
		{"invalid ASN", "1.0.0.0\t1.0.0.255\tnot-a-number\tUS\tCLOUDFLARENET", KindInvalidASN},
		{"ASN out of range", "1.0.0.0\t1.0.0.255\t4294967296\tUS\tCLOUDFLARENET", KindInvalidASN},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseLine(test.line)
			require.Error(t, err)
			var parseError *ParseError
			require.ErrorAs(t, err, &parseError)
			require.Equal(t, test.kind, parseError.Kind)
		})
	}
}

func TestCountryCodeNormalization(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value    string
		expected string
	}{
		{"US", "US"},
		{"us", "US"},
		{"Ec", "EC"},
		{"None", "ZZ"},
		{"Unknown", "ZZ"},
		{"", "ZZ"},
		{"USA", "ZZ"},
		{"U1", "ZZ"},
	}
	for _, test := range tests {
		parsed, err := ParseLine("1.0.0.0\t1.0.0.255\t13335\t" + test.value + "\tCLOUDFLARENET")
		require.NoError(t, err)
		require.Equal(t, test.expected, string(parsed.CountryCode[:]), "country code %q", test.value)
	}
}

func TestOrganizationTrimmed(t *testing.T) {
	t.Parallel()
	// A trailing tab splits into six columns instead of padding the name.
	_, err := ParseLine("1.0.0.0\t1.0.0.255\t13335\tUS\t  CLOUDFLARENET \t")
	require.Error(t, err)
	var parseError *ParseError
	require.ErrorAs(t, err, &parseError)
	require.Equal(t, KindColumnCount, parseError.Kind)

	parsed, err := ParseLine("1.0.0.0\t1.0.0.255\t13335\tUS\t  CLOUDFLARENET ")
	require.NoError(t, err)
	require.Equal(t, "CLOUDFLARENET", parsed.Organization)
}
