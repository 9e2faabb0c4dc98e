package asnmap

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"net/netip"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	data := testData +
		"2803:c280::\t2803:c280:2:ffff:ffff:ffff:ffff:ffff\t265775\tEC\tAUSTRONET\n" +
		"2a02:fe80:22::\t2a02:fe80:22::ffff\t0\tNone\tNot routed\n"
	built := buildFrom(t, data)

	var serialized bytes.Buffer
	require.NoError(t, Write(&serialized, built))

	restored, err := Read(bytes.NewReader(serialized.Bytes()))
	require.NoError(t, err)
	require.Equal(t, built.Networks(), restored.Networks())
	require.Equal(t, built.Organizations(), restored.Organizations())

	queries := []string{
		"1.0.0.100",
		"1.0.1.0",
		"1.0.3.255",
		"1.0.5.1",
		"8.8.8.8",
		"2803:c280:1::2",
		"2a02:fe80:22::42",
	}
	for _, query := range queries {
		addr := netip.MustParseAddr(query)
		expected, expectedMatch := built.Lookup(addr)
		got, gotMatch := restored.Lookup(addr)
		require.Equal(t, expectedMatch, gotMatch, "query %s", query)
		require.Equal(t, expected, got, "query %s", query)
	}
	for _, query := range []string{"127.0.0.1", "9.9.9.9", "2001:db8::1"} {
		_, matched := restored.Lookup(netip.MustParseAddr(query))
		require.False(t, matched, "query %s", query)
	}
}

func TestBinaryRoundTripEmptyMap(t *testing.T) {
	t.Parallel()
	var serialized bytes.Buffer
	require.NoError(t, Write(&serialized, New()))

	restored, err := Read(bytes.NewReader(serialized.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 0, restored.Networks())
	_, matched := restored.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.False(t, matched)
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	t.Parallel()
	_, err := Read(strings.NewReader("not a dataset at all"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a sing-asn binary dataset")
}

func TestBinaryRejectsCorruptPayload(t *testing.T) {
	t.Parallel()
	var serialized bytes.Buffer
	require.NoError(t, Write(&serialized, buildFrom(t, testData)))

	corrupted := serialized.Bytes()
	corrupted[len(corrupted)-1] ^= 0xff
	_, err := Read(bytes.NewReader(corrupted))
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
}

// sealDataset frames a raw payload the way Write does, so tests can feed
// Read payloads that Write itself never produces.
func sealDataset(t *testing.T, body []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	compressor := zlib.NewWriter(&compressed)
	_, err := compressor.Write(body)
	require.NoError(t, err)
	require.NoError(t, compressor.Close())

	var file bytes.Buffer
	file.Write(magicBytes[:])
	file.WriteByte(formatVersion)
	require.NoError(t, binary.Write(&file, binary.BigEndian, xxhash.Sum64(compressed.Bytes())))
	file.Write(compressed.Bytes())
	return file.Bytes()
}

func TestBinaryRejectsMappedNetwork(t *testing.T) {
	t.Parallel()
	var body bytes.Buffer
	writer := bufio.NewWriter(&body)
	require.NoError(t, writeUvarint(writer, 1))
	require.NoError(t, writeUvarint(writer, 4))
	_, err := writer.WriteString("TEST")
	require.NoError(t, err)
	require.NoError(t, writeUvarint(writer, 1))
	require.NoError(t, writeUvarint(writer, 13335))
	_, err = writer.Write([]byte("US"))
	require.NoError(t, err)
	require.NoError(t, writeUvarint(writer, 0))
	require.NoError(t, writeUvarint(writer, 1))
	mapped := netip.MustParseAddr("::ffff:10.0.0.0").As16()
	require.NoError(t, writeNetwork(writer, mapped[:], 104, 0))
	require.NoError(t, writer.Flush())

	_, err = Read(bytes.NewReader(sealDataset(t, body.Bytes())))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mapped IPv4 network address")
}

func TestBinaryRejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	var serialized bytes.Buffer
	require.NoError(t, Write(&serialized, New()))

	mutated := serialized.Bytes()
	mutated[3] = 0x7f
	_, err := Read(bytes.NewReader(mutated))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported dataset version")
}
