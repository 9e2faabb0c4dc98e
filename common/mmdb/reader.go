package mmdb

import (
	"net"
	"net/netip"

	"github.com/sagernet/sing-asn/adapter"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/oschwald/maxminddb-golang"
)

// record matches the GeoLite2-ASN database layout.
type record struct {
	AutonomousSystemNumber       uint32 `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// Reader serves ASN lookups from a MaxMind MMDB database, as an alternative
// backend to a Map built from TSV data.
type Reader struct {
	reader *maxminddb.Reader
}

var _ adapter.ASNReader = (*Reader)(nil)

// Open opens an ASN database in MMDB format. GeoLite2-ASN and sing-asn typed
// databases are accepted.
func Open(path string) (*Reader, error) {
	database, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	databaseType := database.Metadata.DatabaseType
	if databaseType != "GeoLite2-ASN" && databaseType != "sing-asn" {
		database.Close()
		return nil, E.New("incorrect database type, expected GeoLite2-ASN or sing-asn, got ", databaseType)
	}
	return &Reader{database}, nil
}

// Lookup implements adapter.ASNReader. ASN databases in MMDB format carry no
// country information, so CountryCode is always "ZZ".
func (r *Reader) Lookup(addr netip.Addr) (adapter.ASNInfo, bool) {
	var entry record
	network, matched, err := r.reader.LookupNetwork(net.IP(addr.Unmap().AsSlice()), &entry)
	if err != nil || !matched || network == nil {
		return adapter.ASNInfo{}, false
	}
	networkAddr, addrOk := netip.AddrFromSlice(network.IP)
	if !addrOk {
		return adapter.ASNInfo{}, false
	}
	bits, _ := network.Mask.Size()
	if networkAddr.Is4In6() {
		networkAddr = networkAddr.Unmap()
		if bits >= 96 {
			bits -= 96
		}
	}
	return adapter.ASNInfo{
		Network:      netip.PrefixFrom(networkAddr, bits),
		ASN:          entry.AutonomousSystemNumber,
		CountryCode:  "ZZ",
		Organization: entry.AutonomousSystemOrganization,
	}, true
}

// Close releases the underlying database.
func (r *Reader) Close() error {
	return r.reader.Close()
}
