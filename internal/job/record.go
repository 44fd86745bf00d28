// Package job provides the ad-generation job aggregate and its orchestration.
// A job tracks two independently-started remote operations (video and
// background music), downloads their artifacts as they complete, and merges
// them into one deliverable. Progress is caller-driven: each Refresh call
// advances the job by at most one step per stage.
package job

import (
	"time"

	"github.com/pitchkit/adgen-api/internal/provider"
)

// VideoStage is the progress state of the video sub-task.
type VideoStage string

const (
	// VideoProcessing indicates the remote video operation is still running.
	VideoProcessing VideoStage = "processing"
	// VideoDownloaded indicates the video artifact is on local disk.
	VideoDownloaded VideoStage = "downloaded"
	// VideoFailed indicates the remote video operation failed. Video failure
	// is fatal to the whole job.
	VideoFailed VideoStage = "failed"
)

// MusicStage is the progress state of the music sub-task.
type MusicStage string

const (
	// MusicProcessing indicates the remote music operation is still running.
	MusicProcessing MusicStage = "processing"
	// MusicDownloaded indicates the audio artifact is on local disk.
	MusicDownloaded MusicStage = "downloaded"
	// MusicSkipped indicates no music was requested or the music start call
	// failed; the job proceeds video-only.
	MusicSkipped MusicStage = "skipped"
	// MusicFailed indicates the remote music operation failed. Music failure
	// is absorbed; the job proceeds video-only.
	MusicFailed MusicStage = "failed"
)

// Terminal reports whether the music stage can make no further progress.
func (s MusicStage) Terminal() bool {
	return s == MusicDownloaded || s == MusicSkipped || s == MusicFailed
}

// OverallStage is the derived aggregate state of a job.
type OverallStage string

const (
	// OverallProcessing indicates at least one sub-task is still in flight.
	OverallProcessing OverallStage = "processing"
	// OverallMerging indicates both artifacts are resolved and the merge is
	// in progress.
	OverallMerging OverallStage = "merging"
	// OverallComplete indicates the final deliverable is ready for download.
	OverallComplete OverallStage = "complete"
	// OverallFailed indicates the job reached a terminal failure.
	OverallFailed OverallStage = "failed"
)

// Record is the aggregate state for one ad-generation request. It is keyed by
// the video operation's identifier, the only externally visible job key.
// Records are mutated exclusively under the store's per-key lock; once the
// overall stage is terminal a record only ever changes by deletion.
type Record struct {
	// Key is the job key, equal to VideoOp.ID.
	Key string
	// VideoPrompt is the prompt the video generation was started with.
	VideoPrompt string
	// MusicPrompt is the optional music prompt; empty when none was supplied.
	MusicPrompt string
	// VideoOp references the remote video operation.
	VideoOp provider.OperationHandle
	// MusicOp references the remote music operation; zero when music was
	// never started.
	MusicOp provider.OperationHandle
	// VideoStage is the video sub-task state.
	VideoStage VideoStage
	// MusicStage is the music sub-task state.
	MusicStage MusicStage
	// Overall is the derived aggregate state.
	Overall OverallStage
	// VideoPath is the downloaded video artifact; owned by this record until
	// cleanup.
	VideoPath string
	// MusicPath is the downloaded audio artifact; owned by this record until
	// cleanup.
	MusicPath string
	// FinalPath is the merged deliverable, set only when Overall is complete.
	FinalPath string
	// PublishedURL is the object-storage URL of the final artifact when
	// publishing is configured.
	PublishedURL string
	// ErrMsg is the human-readable failure message, set only when Overall is
	// failed.
	ErrMsg string
	// CreatedAt is when the job was launched.
	CreatedAt time.Time
}

// NewRecord creates a processing record for a freshly launched job. The music
// stage starts as skipped and is switched to processing by the launcher only
// when a music operation was actually started.
func NewRecord(videoOp provider.OperationHandle, videoPrompt, musicPrompt string) *Record {
	return &Record{
		Key:         videoOp.ID,
		VideoPrompt: videoPrompt,
		MusicPrompt: musicPrompt,
		VideoOp:     videoOp,
		VideoStage:  VideoProcessing,
		MusicStage:  MusicSkipped,
		Overall:     OverallProcessing,
		CreatedAt:   time.Now(),
	}
}

// Terminal reports whether the job can make no further progress.
func (r *Record) Terminal() bool {
	return r.Overall == OverallComplete || r.Overall == OverallFailed
}

// Fail moves the record to the failed terminal state with a message. The
// first failure message wins; later calls do not overwrite it.
func (r *Record) Fail(msg string) {
	if r.ErrMsg == "" {
		r.ErrMsg = msg
	}
	r.Overall = OverallFailed
}

// IntermediatePaths returns the downloaded source artifacts that are not the
// final deliverable. Used by cleanup after a merge resolves either way.
func (r *Record) IntermediatePaths() []string {
	var paths []string
	if r.VideoPath != "" && r.VideoPath != r.FinalPath {
		paths = append(paths, r.VideoPath)
	}
	if r.MusicPath != "" && r.MusicPath != r.FinalPath {
		paths = append(paths, r.MusicPath)
	}
	return paths
}

// Clone creates a copy of the record for safe reads outside the store lock.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
