package option

import (
	"github.com/sagernet/sing/common/json/badoption"
)

// Config is the sing-asn CLI configuration file, loaded from
// $XDG_CONFIG_HOME/sing-asn/config.json unless overridden.
type Config struct {
	// AutoUpdate downloads the dataset before a lookup when the cache is
	// missing.
	AutoUpdate bool `json:"auto_update,omitempty"`
	// DataURL overrides the dataset download location.
	DataURL string `json:"data_url,omitempty"`
	// CacheDirectory overrides where downloaded datasets are stored.
	CacheDirectory string `json:"cache_directory,omitempty"`
	// DownloadTimeout bounds a dataset download, 15m by default.
	DownloadTimeout badoption.Duration `json:"download_timeout,omitempty"`
	// LogLevel is used when no --log-level flag is passed.
	LogLevel string `json:"log_level,omitempty"`
}
