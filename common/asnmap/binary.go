package asnmap

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"net/netip"

	"github.com/sagernet/sing-asn/common/lpm"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/cespare/xxhash/v2"
)

var magicBytes = [3]byte{0x53, 0x41, 0x42} // SAB

const formatVersion = 1

// Write serializes a frozen Map into the compact binary form: the magic and
// version, an xxhash64 checksum, then a zlib-compressed payload of the
// organization table, the record table and the stored networks. Read rebuilds
// a Map with identical lookup results; node layout is not preserved.
func Write(writer io.Writer, m *Map) error {
	var compressed bytes.Buffer
	compressor := zlib.NewWriter(&compressed)
	payload := bufio.NewWriter(compressor)
	err := writeBody(payload, m)
	if err == nil {
		err = payload.Flush()
	}
	if err == nil {
		err = compressor.Close()
	}
	if err != nil {
		return E.Cause(err, "encode payload")
	}
	_, err = writer.Write(magicBytes[:])
	if err == nil {
		_, err = writer.Write([]byte{formatVersion})
	}
	if err == nil {
		err = binary.Write(writer, binary.BigEndian, xxhash.Sum64(compressed.Bytes()))
	}
	if err == nil {
		_, err = writer.Write(compressed.Bytes())
	}
	return err
}

func writeBody(writer *bufio.Writer, m *Map) error {
	err := writeUvarint(writer, uint64(len(m.organizations)))
	if err != nil {
		return err
	}
	for _, organization := range m.organizations {
		err = writeUvarint(writer, uint64(len(organization)))
		if err == nil {
			_, err = writer.WriteString(organization)
		}
		if err != nil {
			return err
		}
	}
	err = writeUvarint(writer, uint64(len(m.records)))
	if err != nil {
		return err
	}
	for _, record := range m.records {
		err = writeUvarint(writer, uint64(record.asn))
		if err == nil {
			_, err = writer.Write(record.countryCode[:])
		}
		if err == nil {
			err = writeUvarint(writer, uint64(record.organization))
		}
		if err != nil {
			return err
		}
	}
	err = writeUvarint(writer, uint64(m.index.Len()))
	if err != nil {
		return err
	}
	m.index.Walk(func(network netip.Prefix, slot uint32) bool {
		addr := network.Addr()
		if addr.Is4() {
			addrBytes := addr.As4()
			err = writeNetwork(writer, addrBytes[:], network.Bits(), slot)
		} else {
			addrBytes := addr.As16()
			err = writeNetwork(writer, addrBytes[:], network.Bits(), slot)
		}
		return err == nil
	})
	return err
}

func writeNetwork(writer *bufio.Writer, addr []byte, bits int, slot uint32) error {
	err := writer.WriteByte(byte(len(addr)))
	if err == nil {
		err = writer.WriteByte(byte(bits))
	}
	if err == nil {
		_, err = writer.Write(addr)
	}
	if err == nil {
		err = writeUvarint(writer, uint64(slot))
	}
	return err
}

func writeUvarint(writer *bufio.Writer, value uint64) error {
	var scratch [binary.MaxVarintLen64]byte
	length := binary.PutUvarint(scratch[:], value)
	_, err := writer.Write(scratch[:length])
	return err
}

// Read reconstructs a Map previously serialized with Write.
func Read(reader io.Reader) (*Map, error) {
	var header [12]byte
	_, err := io.ReadFull(reader, header[:])
	if err != nil {
		return nil, E.Cause(err, "read header")
	}
	if [3]byte(header[:3]) != magicBytes {
		return nil, E.New("not a sing-asn binary dataset")
	}
	if header[3] != formatVersion {
		return nil, E.New("unsupported dataset version ", header[3])
	}
	checksum := binary.BigEndian.Uint64(header[4:])
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, E.Cause(err, "read payload")
	}
	if xxhash.Sum64(compressed) != checksum {
		return nil, E.New("payload checksum mismatch")
	}
	decompressor, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, E.Cause(err, "open payload")
	}
	defer decompressor.Close()
	return readBody(bufio.NewReader(decompressor))
}

func readBody(reader *bufio.Reader) (*Map, error) {
	organizationCount, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, E.Cause(err, "read organization count")
	}
	// Counts come from the payload, so preallocation is capped and the
	// slices grow as entries actually decode.
	organizations := make([]string, 0, min(organizationCount, 4096))
	for i := uint64(0); i < organizationCount; i++ {
		length, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, E.Cause(err, "read organization length")
		}
		name := make([]byte, length)
		_, err = io.ReadFull(reader, name)
		if err != nil {
			return nil, E.Cause(err, "read organization")
		}
		organizations = append(organizations, string(name))
	}
	recordCount, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, E.Cause(err, "read record count")
	}
	records := make([]asnRecord, 0, min(recordCount, 4096))
	for i := uint64(0); i < recordCount; i++ {
		asn, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, E.Cause(err, "read record ASN")
		}
		var countryCode [2]byte
		_, err = io.ReadFull(reader, countryCode[:])
		if err != nil {
			return nil, E.Cause(err, "read record country code")
		}
		organization, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, E.Cause(err, "read record organization index")
		}
		if organization >= organizationCount {
			return nil, E.New("record organization index out of range")
		}
		records = append(records, asnRecord{
			asn:          uint32(asn),
			countryCode:  countryCode,
			organization: uint32(organization),
		})
	}
	networkCount, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, E.Cause(err, "read network count")
	}
	index := lpm.New()
	for i := uint64(0); i < networkCount; i++ {
		network, slot, err := readNetwork(reader)
		if err != nil {
			return nil, err
		}
		if slot >= recordCount {
			return nil, E.New("network record index out of range")
		}
		index.Insert(network, uint32(slot))
	}
	return &Map{
		index:         index,
		records:       records,
		organizations: organizations,
	}, nil
}

func readNetwork(reader *bufio.Reader) (netip.Prefix, uint64, error) {
	addrLength, err := reader.ReadByte()
	if err != nil {
		return netip.Prefix{}, 0, E.Cause(err, "read network address length")
	}
	if addrLength != 4 && addrLength != 16 {
		return netip.Prefix{}, 0, E.New("invalid network address length ", addrLength)
	}
	bits, err := reader.ReadByte()
	if err != nil {
		return netip.Prefix{}, 0, E.Cause(err, "read network prefix length")
	}
	if int(bits) > int(addrLength)*8 {
		return netip.Prefix{}, 0, E.New("invalid network prefix length ", bits)
	}
	addr := make([]byte, addrLength)
	_, err = io.ReadFull(reader, addr)
	if err != nil {
		return netip.Prefix{}, 0, E.Cause(err, "read network address")
	}
	slot, err := binary.ReadUvarint(reader)
	if err != nil {
		return netip.Prefix{}, 0, E.Cause(err, "read network record index")
	}
	networkAddr, _ := netip.AddrFromSlice(addr)
	// Write emits IPv4 networks in 4-byte form, so a mapped address here is
	// not something Write produced.
	if networkAddr.Is4In6() {
		return netip.Prefix{}, 0, E.New("mapped IPv4 network address")
	}
	return netip.PrefixFrom(networkAddr, int(bits)), slot, nil
}
