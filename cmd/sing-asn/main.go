package main

import (
	"os"
	"path/filepath"

	"github.com/sagernet/sing-asn/log"
	"github.com/sagernet/sing-asn/option"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/json"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cacheDir   string
	logLevel   string
	dataPath   string
	jsonOutput bool

	logFactory   *log.Factory
	globalConfig option.Config
)

var mainCommand = &cobra.Command{
	Use:   "sing-asn [address]...",
	Short: "Map IP addresses to autonomous system information",
	Long: "sing-asn builds a read-optimized longest-prefix-match index from iptoasn.com\n" +
		"style TSV data and answers IP-to-ASN lookups from it. Without a subcommand it\n" +
		"behaves like `sing-asn lookup`.",
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: preRun,
	RunE:              runLookup,
}

func init() {
	mainCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file path")
	mainCommand.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory")
	mainCommand.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	mainCommand.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "dataset path (TSV, gzipped TSV, SAB binary or MMDB)")
	mainCommand.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "format lookup output as JSON lines")
}

func main() {
	if err := mainCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func preRun(cmd *cobra.Command, args []string) error {
	logFactory = log.NewFactory(os.Stderr)
	config, err := loadConfig()
	if err != nil {
		return err
	}
	globalConfig = config
	level := logLevel
	if !cmd.Flags().Changed("log-level") && config.LogLevel != "" {
		level = config.LogLevel
	}
	parsedLevel, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	logFactory.SetLevel(parsedLevel)
	return nil
}

func loadConfig() (option.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("SING_ASN_CONFIG")
	}
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return option.Config{}, nil
		}
		path = filepath.Join(configDir, "sing-asn", "config.json")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && configPath == "" {
			return option.Config{}, nil
		}
		return option.Config{}, E.Cause(err, "read configuration")
	}
	var config option.Config
	err = json.Unmarshal(content, &config)
	if err != nil {
		return option.Config{}, E.Cause(err, "parse configuration at ", path)
	}
	return config, nil
}

func cacheDirectory() (string, error) {
	if cacheDir != "" {
		return cacheDir, nil
	}
	if globalConfig.CacheDirectory != "" {
		return globalConfig.CacheDirectory, nil
	}
	systemCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", E.Cause(err, "locate cache directory")
	}
	return filepath.Join(systemCacheDir, "sing-asn"), nil
}
