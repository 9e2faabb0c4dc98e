package asnmap

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sagernet/sing-asn/common/intern"
	"github.com/sagernet/sing-asn/common/lpm"
	"github.com/sagernet/sing-asn/common/ranger"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
)

// Builder accumulates line sources and assembles them into a frozen Map.
// The build is single-threaded and blocking; the outcome is strictly either
// a complete Map or an error, never a partially populated map.
type Builder struct {
	sources   []*bufio.Reader
	closers   []io.Closer
	strict    bool
	onWarning func(Warning)
	logger    logger.Logger
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Strict makes the first rejected line abort the whole build with a
// *BuildError instead of skipping it.
func (b *Builder) Strict() *Builder {
	b.strict = true
	return b
}

// OnWarning registers the sink invoked exactly once per skipped line, in
// line order, during a resilient build. It is never invoked when a strict
// build aborts. Without a sink, rejected lines are skipped silently.
func (b *Builder) OnWarning(sink func(Warning)) *Builder {
	b.onWarning = sink
	return b
}

// WithLogger attaches a logger for build progress. Skipped-line reporting
// stays with the OnWarning sink.
func (b *Builder) WithLogger(buildLogger logger.Logger) *Builder {
	b.logger = buildLogger
	return b
}

// AddReader appends a line source. Gzip streams are recognized by their
// magic bytes and decompressed transparently.
func (b *Builder) AddReader(reader io.Reader) error {
	source, err := sniffGzip(bufio.NewReader(reader))
	if err != nil {
		return err
	}
	b.sources = append(b.sources, source)
	return nil
}

// AddFile appends a data file as a line source. The file is closed when
// Build returns.
func (b *Builder) AddFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return E.Cause(err, "open data file")
	}
	b.closers = append(b.closers, file)
	return b.AddReader(file)
}

func sniffGzip(reader *bufio.Reader) (*bufio.Reader, error) {
	header, err := reader.Peek(2)
	if err != nil && err != io.EOF {
		return nil, E.Cause(err, "sniff source header")
	}
	if len(header) == 2 && header[0] == 0x1f && header[1] == 0x8b {
		decompressed, err := gzip.NewReader(reader)
		if err != nil {
			return nil, E.Cause(err, "open gzip source")
		}
		return bufio.NewReader(decompressed), nil
	}
	return reader, nil
}

// Build drains every source in order and freezes the accumulated state into
// an immutable Map. With no sources it returns a valid empty Map.
func (b *Builder) Build() (*Map, error) {
	defer b.closeAll()
	startedAt := time.Now()
	interner := intern.NewTable()
	index := lpm.New()
	var records []asnRecord
	lineTotal := 0
	for _, source := range b.sources {
		lines, err := b.buildSource(source, interner, index, &records)
		lineTotal += lines
		if err != nil {
			return nil, err
		}
	}
	if b.logger != nil {
		b.logger.Info("loaded ", index.Len(), " networks from ", lineTotal, " lines in ", time.Since(startedAt).Round(time.Millisecond))
	}
	return &Map{
		index:         index,
		records:       records,
		organizations: interner.Values(),
	}, nil
}

func (b *Builder) buildSource(source *bufio.Reader, interner *intern.Table, index *lpm.Trie, records *[]asnRecord) (int, error) {
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := ParseLine(line)
		if err != nil {
			if b.strict {
				return lineNumber, &BuildError{LineNumber: lineNumber, Line: line, Err: err}
			}
			if b.onWarning != nil {
				b.onWarning(Warning{LineNumber: lineNumber, Line: line, Err: err})
			}
			continue
		}
		networks, err := ranger.Decompose(parsed.StartIP, parsed.EndIP)
		if err != nil {
			// ParseLine already validated ordering and family agreement.
			return lineNumber, E.Cause(err, "decompose range on line ", lineNumber)
		}
		slot := uint32(len(*records))
		*records = append(*records, asnRecord{
			asn:          parsed.ASN,
			countryCode:  parsed.CountryCode,
			organization: interner.GetOrIntern(parsed.Organization),
		})
		for _, network := range networks {
			index.Insert(network, slot)
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNumber, E.Cause(err, "read data source")
	}
	return lineNumber, nil
}

func (b *Builder) closeAll() {
	for _, closer := range b.closers {
		closer.Close()
	}
	b.closers = nil
	b.sources = nil
}
