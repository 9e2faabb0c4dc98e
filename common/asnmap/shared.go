package asnmap

import (
	"net/netip"
	"sync/atomic"

	"github.com/sagernet/sing-asn/adapter"
)

// Shared is an atomically swappable reference to a frozen Map. A refresh
// builds its replacement off the hot path and publishes it with Store;
// readers in flight keep the consistent snapshot they loaded and are never
// blocked by a swap.
type Shared struct {
	pointer atomic.Pointer[Map]
}

var _ adapter.ASNReader = (*Shared)(nil)

func NewShared(initial *Map) *Shared {
	if initial == nil {
		initial = New()
	}
	shared := new(Shared)
	shared.pointer.Store(initial)
	return shared
}

func (s *Shared) Load() *Map {
	return s.pointer.Load()
}

func (s *Shared) Store(updated *Map) {
	if updated == nil {
		updated = New()
	}
	s.pointer.Store(updated)
}

// Lookup queries the current snapshot.
func (s *Shared) Lookup(addr netip.Addr) (adapter.ASNInfo, bool) {
	return s.Load().Lookup(addr)
}
