package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type Format string

const (
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
)

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/epub+zip"
}

// BuildRequest carries every parameter that can change the produced artifact.
type BuildRequest struct {
	Target         Target
	DownloadImages bool
	Format         Format
	Credentials    *Credentials
}

// Fingerprint is the cache and dedup key for this request. It hashes every
// field; credentials enter only as their own fingerprint so the key never
// embeds a password. Stable across processes.
func (r BuildRequest) Fingerprint() string {
	creds := ""
	if r.Credentials != nil {
		creds = r.Credentials.Fingerprint()
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%t|%s|%s",
		r.Target.Kind, r.Target.ID, r.DownloadImages, r.Format, creds))
	return hex.EncodeToString(sum[:])
}

// BuildResult is the finished artifact. Immutable once produced; shared by
// reference with every waiter on the same fingerprint.
type BuildResult struct {
	Data        []byte      `json:"data"`
	ContentType string      `json:"contentType"`
	Filename    string      `json:"filename"`
	Report      BuildReport `json:"report"`
}

// BuildReport records partial failures absorbed during a build. A non-empty
// report still means the build succeeded, just with placeholders inside.
type BuildReport struct {
	FailedChapters []int64  `json:"failedChapters,omitempty"`
	FailedImages   []string `json:"failedImages,omitempty"`
	SkippedStories []string `json:"skippedStories,omitempty"`
}

func (r BuildReport) Degraded() bool {
	return len(r.FailedChapters) > 0 || len(r.FailedImages) > 0 || len(r.SkippedStories) > 0
}

func (r *BuildReport) Merge(other BuildReport) {
	r.FailedChapters = append(r.FailedChapters, other.FailedChapters...)
	r.FailedImages = append(r.FailedImages, other.FailedImages...)
	r.SkippedStories = append(r.SkippedStories, other.SkippedStories...)
}
