// Package lpm implements a binary trie with longest-prefix-match lookups.
//
// Nodes live in a flat arena and reference each other through integer
// handles instead of pointers, which keeps the structure serialization
// friendly and free of recursive ownership. IPv4 and IPv6 prefixes are kept
// under separate roots, so lookups never match across address families.
package lpm

import "net/netip"

const (
	nilNode = int32(-1)
	nilSlot = int32(-1)

	root4 = int32(0)
	root6 = int32(1)
)

// node is a single bit position along a prefix path. children hold arena
// handles, slot holds the record index of a network terminating exactly at
// this node, or nilSlot for purely structural nodes.
type node struct {
	children [2]int32
	slot     int32
}

// Trie is the longest-prefix-match index. The zero value is not usable,
// call New. A Trie is not safe for concurrent mutation; once inserts stop it
// may be read concurrently without locking.
type Trie struct {
	nodes []node
	size  int
}

func New() *Trie {
	trie := &Trie{nodes: make([]node, 0, 2)}
	trie.newNode() // root4
	trie.newNode() // root6
	return trie
}

func (t *Trie) newNode() int32 {
	handle := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{children: [2]int32{nilNode, nilNode}, slot: nilSlot})
	return handle
}

// Len returns the number of stored networks.
func (t *Trie) Len() int {
	return t.size
}

// canonical rewrites a 4-in-6 mapped prefix that fits entirely inside the
// mapped range as its IPv4 form, so it lands under the IPv4 root. Shorter
// mapped prefixes cover unmapped IPv6 space too and stay IPv6.
func canonical(prefix netip.Prefix) netip.Prefix {
	if addr := prefix.Addr(); addr.Is4In6() && prefix.Bits() >= 96 {
		return netip.PrefixFrom(addr.Unmap(), prefix.Bits()-96)
	}
	return prefix
}

// Insert stores slot under the canonical form of prefix, creating trie nodes
// along the prefix bits as needed. Inserting the same canonical prefix again
// overwrites the previous slot. Slots must stay below 1<<31.
func (t *Trie) Insert(prefix netip.Prefix, slot uint32) {
	prefix = canonical(prefix).Masked()
	addr := prefix.Addr()
	current := root6
	addrBytes := addr.As16()
	path := addrBytes[:]
	if addr.Is4() {
		current = root4
		addr4 := addr.As4()
		path = append(path[:0], addr4[:]...)
	}
	for depth := 0; depth < prefix.Bits(); depth++ {
		bit := path[depth>>3] >> (7 - depth&7) & 1
		child := t.nodes[current].children[bit]
		if child == nilNode {
			child = t.newNode()
			t.nodes[current].children[bit] = child
		}
		current = child
	}
	if t.nodes[current].slot == nilSlot {
		t.size++
	}
	t.nodes[current].slot = int32(slot)
}

// Lookup walks the trie along the address bits and returns the network and
// slot of the deepest node carrying a record, which is by construction the
// most specific stored prefix containing addr. The boolean reports whether
// any prefix matched.
func (t *Trie) Lookup(addr netip.Addr) (netip.Prefix, uint32, bool) {
	addr = addr.Unmap()
	current := root6
	width := 128
	addrBytes := addr.As16()
	path := addrBytes[:]
	if addr.Is4() {
		current = root4
		width = 32
		addr4 := addr.As4()
		path = append(path[:0], addr4[:]...)
	}
	bestSlot := nilSlot
	bestDepth := 0
	for depth := 0; ; depth++ {
		visited := t.nodes[current]
		if visited.slot != nilSlot {
			bestSlot = visited.slot
			bestDepth = depth
		}
		if depth == width {
			break
		}
		child := visited.children[path[depth>>3]>>(7-depth&7)&1]
		if child == nilNode {
			break
		}
		current = child
	}
	if bestSlot == nilSlot {
		return netip.Prefix{}, 0, false
	}
	network, _ := addr.Prefix(bestDepth)
	return network, uint32(bestSlot), true
}

// Walk visits every stored (network, slot) pair in deterministic depth-first
// order, IPv4 entries before IPv6 entries. Returning false from fn stops the
// walk early.
func (t *Trie) Walk(fn func(network netip.Prefix, slot uint32) bool) {
	var path [16]byte
	if !t.walk(root4, 0, 32, &path, fn) {
		return
	}
	path = [16]byte{}
	t.walk(root6, 0, 128, &path, fn)
}

func (t *Trie) walk(handle int32, depth int, width int, path *[16]byte, fn func(netip.Prefix, uint32) bool) bool {
	visited := t.nodes[handle]
	if visited.slot != nilSlot {
		var network netip.Prefix
		if width == 32 {
			network = netip.PrefixFrom(netip.AddrFrom4([4]byte(path[:4])), depth)
		} else {
			network = netip.PrefixFrom(netip.AddrFrom16(*path), depth)
		}
		if !fn(network, uint32(visited.slot)) {
			return false
		}
	}
	if depth == width {
		return true
	}
	if child := visited.children[0]; child != nilNode {
		if !t.walk(child, depth+1, width, path, fn) {
			return false
		}
	}
	if child := visited.children[1]; child != nilNode {
		path[depth>>3] |= 1 << (7 - depth&7)
		descended := t.walk(child, depth+1, width, path, fn)
		path[depth>>3] &^= 1 << (7 - depth&7)
		if !descended {
			return false
		}
	}
	return true
}
