package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/spf13/cobra"
)

const defaultDataURL = "https://iptoasn.com/data/ip2asn-combined.tsv.gz"

var commandUpdate = &cobra.Command{
	Use:   "update",
	Short: "Download the latest IP-to-ASN dataset into the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return downloadDataset()
	},
}

func init() {
	mainCommand.AddCommand(commandUpdate)
}

func downloadDataset() error {
	updateLogger := logFactory.NewLogger("update")
	dataURL := globalConfig.DataURL
	if dataURL == "" {
		dataURL = defaultDataURL
	}
	directory, err := cacheDirectory()
	if err != nil {
		return err
	}
	err = os.MkdirAll(directory, 0o755)
	if err != nil {
		return E.Cause(err, "create cache directory")
	}
	timeout := time.Duration(globalConfig.DownloadTimeout)
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	updateLogger.Info("downloading ", dataURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return E.Cause(err, "create request")
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return E.Cause(err, "fetch dataset")
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return E.New("unexpected status fetching dataset: ", response.Status)
	}
	target := filepath.Join(directory, cachedDatasetName)
	// Download into a temporary file and rename, so a failed download never
	// clobbers a usable cached dataset.
	staging, err := os.CreateTemp(directory, cachedDatasetName+".*")
	if err != nil {
		return E.Cause(err, "create staging file")
	}
	_, err = io.Copy(staging, response.Body)
	if err == nil {
		err = staging.Close()
	} else {
		staging.Close()
	}
	if err != nil {
		os.Remove(staging.Name())
		return E.Cause(err, "save dataset")
	}
	err = os.Rename(staging.Name(), target)
	if err != nil {
		os.Remove(staging.Name())
		return E.Cause(err, "replace cached dataset")
	}
	updateLogger.Info("saved dataset to ", target)
	return nil
}
