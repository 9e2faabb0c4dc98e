package main

import (
	"bufio"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagernet/sing-asn/adapter"
	"github.com/sagernet/sing-asn/common/asnmap"
	"github.com/sagernet/sing-asn/common/mmdb"
	E "github.com/sagernet/sing/common/exceptions"
	F "github.com/sagernet/sing/common/format"
	"github.com/sagernet/sing/common/json"

	"github.com/spf13/cobra"
)

const cachedDatasetName = "ip2asn-combined.tsv.gz"

var commandLookup = &cobra.Command{
	Use:   "lookup [address]...",
	Short: "Look up AS information for IP addresses",
	Long: "Looks up one or more IP addresses against the configured dataset. Addresses\n" +
		"are taken from the arguments, or from standard input one per line.",
	RunE: runLookup,
}

func init() {
	mainCommand.AddCommand(commandLookup)
}

// lookupResult is one line of --json output.
type lookupResult struct {
	IP    string           `json:"ip"`
	Found bool             `json:"found"`
	Info  *adapter.ASNInfo `json:"info,omitempty"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	source, closeSource, err := openReader()
	if err != nil {
		return err
	}
	defer closeSource()
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()
	if len(args) > 0 {
		for _, arg := range args {
			err = lookupOne(source, writer, arg)
			if err != nil {
				return err
			}
		}
		return nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		err = lookupOne(source, writer, scanner.Text())
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

func lookupOne(source adapter.ASNReader, writer *bufio.Writer, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	addr, parseErr := netip.ParseAddr(input)
	if jsonOutput {
		result := lookupResult{IP: input}
		if parseErr == nil {
			if info, matched := source.Lookup(addr); matched {
				result.Found = true
				result.Info = &info
			}
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = writer.Write(append(encoded, '\n'))
		return err
	}
	if parseErr != nil {
		logFactory.NewLogger("lookup").Error("invalid IP address: ", input)
		return nil
	}
	info, matched := source.Lookup(addr)
	var err error
	if matched {
		_, err = writer.WriteString(F.ToString(info.ASN, " | ", addr, " | ", info.Network, " | ", info.Organization, " | ", info.CountryCode, "\n"))
	} else {
		_, err = writer.WriteString(F.ToString(addr, " | not found\n"))
	}
	return err
}

// openReader resolves the dataset path and dispatches on its content: MMDB
// databases by extension, SAB binaries by magic, everything else through the
// TSV builder with transparent gzip handling.
func openReader() (adapter.ASNReader, func(), error) {
	path := dataPath
	if path == "" {
		directory, err := cacheDirectory()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(directory, cachedDatasetName)
		if _, err = os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, nil, E.Cause(err, "stat cached dataset")
			}
			if !globalConfig.AutoUpdate {
				return nil, nil, E.New("dataset not found, run `sing-asn update` to download it")
			}
			err = downloadDataset()
			if err != nil {
				return nil, nil, err
			}
		}
	}
	if strings.HasSuffix(path, ".mmdb") {
		reader, err := mmdb.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return reader, func() { reader.Close() }, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, E.Cause(err, "open dataset")
	}
	buffered := bufio.NewReader(file)
	header, err := buffered.Peek(3)
	if err == nil && string(header) == "SAB" {
		defer file.Close()
		builtMap, err := asnmap.Read(buffered)
		if err != nil {
			return nil, nil, err
		}
		return builtMap, func() {}, nil
	}
	defer file.Close()
	loadLogger := logFactory.NewLogger("loader")
	builder := asnmap.NewBuilder().
		WithLogger(loadLogger).
		OnWarning(func(warning asnmap.Warning) {
			loadLogger.Warn(warning)
		})
	err = builder.AddReader(buffered)
	if err != nil {
		return nil, nil, err
	}
	builtMap, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return builtMap, func() {}, nil
}
