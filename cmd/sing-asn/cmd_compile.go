package main

import (
	"bufio"
	"os"

	"github.com/sagernet/sing-asn/common/asnmap"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/spf13/cobra"
)

var (
	compileOutput string
	compileStrict bool
)

var commandCompile = &cobra.Command{
	Use:   "compile <input>",
	Short: "Compile a TSV dataset into the compact binary format",
	Long: "Ingests a TSV (or gzipped TSV) dataset and writes the compact SAB binary,\n" +
		"which later loads without re-running the ingestion pipeline.",
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	commandCompile.Flags().StringVarP(&compileOutput, "output", "o", "dataset.sab", "output path")
	commandCompile.Flags().BoolVar(&compileStrict, "strict", false, "abort on the first malformed line")
	mainCommand.AddCommand(commandCompile)
}

func runCompile(cmd *cobra.Command, args []string) error {
	compileLogger := logFactory.NewLogger("compile")
	builder := asnmap.NewBuilder().WithLogger(compileLogger)
	if compileStrict {
		builder.Strict()
	} else {
		builder.OnWarning(func(warning asnmap.Warning) {
			compileLogger.Warn(warning)
		})
	}
	err := builder.AddFile(args[0])
	if err != nil {
		return err
	}
	builtMap, err := builder.Build()
	if err != nil {
		return err
	}
	output, err := os.Create(compileOutput)
	if err != nil {
		return E.Cause(err, "create output")
	}
	writer := bufio.NewWriter(output)
	err = asnmap.Write(writer, builtMap)
	if err == nil {
		err = writer.Flush()
	}
	if err != nil {
		output.Close()
		return E.Cause(err, "write output")
	}
	err = output.Close()
	if err != nil {
		return err
	}
	compileLogger.Info("wrote ", builtMap.Networks(), " networks to ", compileOutput)
	return nil
}
