package asnmap

import (
	"net/netip"
	"strconv"
	"strings"
)

const expectedColumns = 5

// ParsedLine holds the validated fields of one data line, before the
// organization name is interned by the builder.
type ParsedLine struct {
	StartIP      netip.Addr
	EndIP        netip.Addr
	ASN          uint32
	CountryCode  [2]byte
	Organization string
}

// ParseLine validates a single tab-separated record of the iptoasn.com TSV
// format: start_ip, end_ip, asn, country_code, organization. Rejections are
// returned as *ParseError; validations run in the documented kind order, so
// a line can only ever report its first defect.
func ParseLine(line string) (ParsedLine, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != expectedColumns {
		return ParsedLine{}, &ParseError{Kind: KindColumnCount, Expected: expectedColumns, Found: len(fields)}
	}
	startIP, err := netip.ParseAddr(fields[0])
	if err != nil {
		return ParsedLine{}, &ParseError{Kind: KindInvalidIP, Field: "start_ip", Value: fields[0]}
	}
	endIP, err := netip.ParseAddr(fields[1])
	if err != nil {
		return ParsedLine{}, &ParseError{Kind: KindInvalidIP, Field: "end_ip", Value: fields[1]}
	}
	startIP, endIP = startIP.Unmap(), endIP.Unmap()
	if startIP.Is4() != endIP.Is4() {
		return ParsedLine{}, &ParseError{Kind: KindFamilyMismatch}
	}
	if startIP.Compare(endIP) > 0 {
		return ParsedLine{}, &ParseError{Kind: KindInvalidRange, Start: startIP, End: endIP}
	}
	asn, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return ParsedLine{}, &ParseError{Kind: KindInvalidASN, Value: fields[2]}
	}
	return ParsedLine{
		StartIP:      startIP,
		EndIP:        endIP,
		ASN:          uint32(asn),
		CountryCode:  normalizeCountryCode(fields[3]),
		Organization: strings.TrimSpace(fields[4]),
	}, nil
}

// normalizeCountryCode upper-cases well-formed two-letter codes and maps
// everything else, placeholders like "None" and "Unknown" included, to the
// ISO user-assigned code ZZ.
func normalizeCountryCode(value string) [2]byte {
	if len(value) == 2 && isASCIILetter(value[0]) && isASCIILetter(value[1]) {
		return [2]byte{upperASCII(value[0]), upperASCII(value[1])}
	}
	return [2]byte{'Z', 'Z'}
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func upperASCII(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
