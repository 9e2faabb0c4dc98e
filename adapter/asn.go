package adapter

import (
	"net/netip"

	F "github.com/sagernet/sing/common/format"
)

// ASNInfo describes the autonomous system owning a network block.
type ASNInfo struct {
	// Network is the matched network block, not the queried address.
	Network netip.Prefix `json:"network"`
	// ASN is the autonomous system number.
	ASN uint32 `json:"asn"`
	// CountryCode is a two-letter ISO 3166-1 alpha-2 code, "ZZ" when unknown.
	CountryCode string `json:"country_code"`
	// Organization is the common name of the owning organization.
	Organization string `json:"organization"`
}

func (i ASNInfo) String() string {
	return F.ToString("AS", i.ASN, " ", i.Organization, " (", i.CountryCode, ") in ", i.Network)
}

// ASNReader provides ASN lookup over some read-only backend, either a map
// built from TSV data or a MaxMind database. The boolean reports whether any
// network containing addr is known; lookups never fail otherwise.
type ASNReader interface {
	Lookup(addr netip.Addr) (ASNInfo, bool)
}
