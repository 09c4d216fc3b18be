// Package jobs defines the worker's queue payload shapes and the
// dispatcher that routes each parsed Job to its handler, mirroring the
// Rust worker's Job enum and its per-variant processing in main.rs.
package jobs

import (
	"encoding/json"
	"fmt"
)

// Kind names which of the six job shapes a queue payload carries.
type Kind string

const (
	KindAnalyze      Kind = "analyze"
	KindFix          Kind = "fix"
	KindMaster       Kind = "master"
	KindAlbumMaster  Kind = "album-master"
	KindExport       Kind = "export"
	KindCodecPreview Kind = "codec-preview"
)

// envelope is used only to sniff the "type" tag before decoding the full
// shape, matching the serde `#[serde(tag = "type")]` discriminated union.
type envelope struct {
	Type string `json:"type"`
}

// Analyze requests a measurement pass over one track.
type Analyze struct {
	JobID     string `json:"jobId"`
	TrackID   string `json:"trackId"`
	SourceURL string `json:"sourceUrl"`
}

// Fix requests the repair chain over one track.
type Fix struct {
	JobID     string   `json:"jobId"`
	TrackID   string   `json:"trackId"`
	SourceURL string   `json:"sourceUrl"`
	Modules   []string `json:"modules"`
}

// Master requests the mastering chain over one track.
type Master struct {
	JobID          string `json:"jobId"`
	TrackID        string `json:"trackId"`
	SourceURL      string `json:"sourceUrl"`
	Profile        string `json:"profile"`
	LoudnessTarget string `json:"loudnessTarget"`
}

// AlbumMaster requests the mastering chain over every track in a project,
// optionally matched to a common loudness target across the set.
type AlbumMaster struct {
	JobID             string   `json:"jobId"`
	ProjectID         string   `json:"projectId"`
	TrackIDs          []string `json:"trackIds"`
	Profile           string   `json:"profile"`
	LoudnessTarget    string   `json:"loudnessTarget"`
	NormalizeLoudness bool     `json:"normalizeLoudness"`
}

// Export requests re-encodes of a project's mastered tracks into each
// requested delivery format.
type Export struct {
	JobID     string   `json:"jobId"`
	ProjectID string   `json:"projectId"`
	Formats   []string `json:"formats"`
	IncludeQC bool     `json:"includeQc"`
}

// CodecPreview requests round-tripped previews of an already-mastered
// track across one or more "<format>-<bitrate>" codec specs.
type CodecPreview struct {
	JobID     string   `json:"jobId"`
	TrackID   string   `json:"trackId"`
	MasterURL string   `json:"masterUrl"`
	Codecs    []string `json:"codecs"`
}

// Job is the decoded queue payload: exactly one of the pointer fields is
// non-nil, selected by Kind.
type Job struct {
	Kind         Kind
	Analyze      *Analyze
	Fix          *Fix
	Master       *Master
	AlbumMaster  *AlbumMaster
	Export       *Export
	CodecPreview *CodecPreview
}

// JobID returns the identifier every job kind carries, for logging and
// webhook routing.
func (j Job) JobID() string {
	switch j.Kind {
	case KindAnalyze:
		return j.Analyze.JobID
	case KindFix:
		return j.Fix.JobID
	case KindMaster:
		return j.Master.JobID
	case KindAlbumMaster:
		return j.AlbumMaster.JobID
	case KindExport:
		return j.Export.JobID
	case KindCodecPreview:
		return j.CodecPreview.JobID
	default:
		return ""
	}
}

// Parse decodes a raw queue payload into a Job, dispatching on its "type"
// tag the way the Rust worker's serde(tag = "type") enum does.
func Parse(raw []byte) (Job, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Job{}, fmt.Errorf("jobs: decode envelope: %w", err)
	}

	switch Kind(env.Type) {
	case KindAnalyze:
		var a Analyze
		if err := json.Unmarshal(raw, &a); err != nil {
			return Job{}, fmt.Errorf("jobs: decode analyze: %w", err)
		}
		return Job{Kind: KindAnalyze, Analyze: &a}, nil
	case KindFix:
		var f Fix
		if err := json.Unmarshal(raw, &f); err != nil {
			return Job{}, fmt.Errorf("jobs: decode fix: %w", err)
		}
		return Job{Kind: KindFix, Fix: &f}, nil
	case KindMaster:
		var m Master
		if err := json.Unmarshal(raw, &m); err != nil {
			return Job{}, fmt.Errorf("jobs: decode master: %w", err)
		}
		return Job{Kind: KindMaster, Master: &m}, nil
	case KindAlbumMaster:
		var am AlbumMaster
		if err := json.Unmarshal(raw, &am); err != nil {
			return Job{}, fmt.Errorf("jobs: decode album-master: %w", err)
		}
		return Job{Kind: KindAlbumMaster, AlbumMaster: &am}, nil
	case KindExport:
		var e Export
		if err := json.Unmarshal(raw, &e); err != nil {
			return Job{}, fmt.Errorf("jobs: decode export: %w", err)
		}
		return Job{Kind: KindExport, Export: &e}, nil
	case KindCodecPreview:
		var cp CodecPreview
		if err := json.Unmarshal(raw, &cp); err != nil {
			return Job{}, fmt.Errorf("jobs: decode codec-preview: %w", err)
		}
		return Job{Kind: KindCodecPreview, CodecPreview: &cp}, nil
	default:
		return Job{}, fmt.Errorf("jobs: unknown job type %q", env.Type)
	}
}
