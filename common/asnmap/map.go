// Package asnmap builds and queries a read-optimized index from IP address
// to autonomous system information, ingested from iptoasn.com style TSV data.
package asnmap

import (
	"net/netip"
	"strings"

	"github.com/sagernet/sing-asn/adapter"
	"github.com/sagernet/sing-asn/common/lpm"
)

// asnRecord is the per-line payload, stored once and referenced by every
// CIDR block the line's range decomposes into. The organization field is an
// index into the interned organization table.
type asnRecord struct {
	asn          uint32
	countryCode  [2]byte
	organization uint32
}

// Map is a frozen IP-to-ASN index: a longest-prefix-match trie over the
// record table plus the interned organization strings. A Map never changes
// after construction, so any number of goroutines may query it concurrently
// without synchronization. Refreshing data means building a new Map, see
// Shared.
type Map struct {
	index         *lpm.Trie
	records       []asnRecord
	organizations []string
}

var _ adapter.ASNReader = (*Map)(nil)

// New returns an empty Map. Every lookup against it reports a miss.
func New() *Map {
	return &Map{index: lpm.New()}
}

// Lookup returns the most specific stored network containing addr together
// with its AS information. The Organization string is shared with the map's
// interned storage; use LookupOwned when the result must outlive the Map.
func (m *Map) Lookup(addr netip.Addr) (adapter.ASNInfo, bool) {
	network, slot, matched := m.index.Lookup(addr)
	if !matched {
		return adapter.ASNInfo{}, false
	}
	record := m.records[slot]
	return adapter.ASNInfo{
		Network:      network,
		ASN:          record.asn,
		CountryCode:  string(record.countryCode[:]),
		Organization: m.organizations[record.organization],
	}, true
}

// LookupOwned is Lookup with the result strings copied out of the map's
// storage, trading one allocation for a result free of any tie to the Map.
func (m *Map) LookupOwned(addr netip.Addr) (adapter.ASNInfo, bool) {
	info, matched := m.Lookup(addr)
	if !matched {
		return adapter.ASNInfo{}, false
	}
	info.Organization = strings.Clone(info.Organization)
	return info, true
}

// Networks returns the number of stored network blocks.
func (m *Map) Networks() int {
	return m.index.Len()
}

// Organizations returns the number of distinct interned organization names.
func (m *Map) Organizations() int {
	return len(m.organizations)
}
