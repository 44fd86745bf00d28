// Package main provides the adgen CLI, a thin client for the ad generation
// API. It can launch a job, block until it completes, and download the
// finished ad.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var serverURL string

	root := &cobra.Command{
		Use:   "adgen",
		Short: "Generate short marketing videos from a prompt",
		Long: `adgen talks to a running ad generation API server. A job is started
from a video prompt (and optionally a music prompt), polled until both
remote generations finish, and the merged ad is downloaded as an MP4.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the adgen API server")

	root.AddCommand(
		newStartCommand(&serverURL),
		newWaitCommand(&serverURL),
		newDownloadCommand(&serverURL),
	)

	return root
}
