// Package media provides the merge engine that combines a generated video
// with a reconciled-duration audio track using the ffmpeg CLI.
package media

import "context"

// Merger combines a video file with an optional audio file into a single
// deliverable.
type Merger interface {
	// Merge produces a combined media file and returns its path. When
	// audioPath is empty or the file does not exist, videoPath itself is
	// returned unchanged (pass-through, no merge performed). Audio longer
	// than targetSeconds is trimmed to it; audio shorter than targetSeconds
	// is looped with whole repeats until it covers the target. The output
	// replaces the video's original audio track entirely and is written to
	// a new temporary file; inputs are never deleted by the merge.
	Merge(ctx context.Context, videoPath, audioPath string, targetSeconds float64) (string, error)

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}
