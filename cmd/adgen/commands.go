package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStartCommand(serverURL *string) *cobra.Command {
	var (
		musicPrompt string
		imagePath   string
	)

	cmd := &cobra.Command{
		Use:   "start <video prompt>",
		Short: "Launch an ad-generation job and print its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(*serverURL)

			var imageB64, imageMIME string
			if imagePath != "" {
				data, err := os.ReadFile(imagePath) // #nosec G304 - user-supplied CLI path
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				imageB64 = base64.StdEncoding.EncodeToString(data)
				imageMIME = mimeTypeForPath(imagePath)
			}

			jobID, err := client.Start(cmd.Context(), startRequest{
				VideoPrompt:   args[0],
				MusicPrompt:   musicPrompt,
				ImageBase64:   imageB64,
				ImageMIMEType: imageMIME,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&musicPrompt, "music", "", "optional prompt for background music")
	cmd.Flags().StringVar(&imagePath, "image", "", "optional reference image file")

	return cmd
}

func newWaitCommand(serverURL *string) *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(*serverURL)

			status, err := client.Wait(cmd.Context(), args[0], interval, timeout)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), status.Status)
			if status.Error != "" {
				return fmt.Errorf("job failed: %s", status.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "give up after this long (0 waits forever)")

	return cmd
}

func newDownloadCommand(serverURL *string) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the finished ad to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(*serverURL)

			path := outputPath
			if path == "" {
				path = "ad-" + args[0] + ".mp4"
			}

			if err := client.Download(cmd.Context(), args[0], path); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default ad-<job-id>.mp4)")

	return cmd
}

// mimeTypeForPath guesses a reference image's MIME type from its extension.
func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
