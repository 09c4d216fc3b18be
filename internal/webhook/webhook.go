// Package webhook reports job progress and results back to the API,
// mirroring the original worker's reqwest-based WebhookClient: one POST
// per report, an X-Webhook-Secret header, camelCase JSON bodies.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/budi-audio/worker-dsp/internal/analyze"
	"github.com/budi-audio/worker-dsp/internal/repair"
)

// Client posts to <apiURL>/webhooks/jobs/<jobId>/<endpoint>.
type Client struct {
	HTTP   *http.Client
	APIURL string
	Secret string
}

// New returns a Client with a sane request timeout; the dispatcher itself
// has no overall job deadline, but a hung webhook POST must not block a
// worker forever.
func New(apiURL, secret string) *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: 30 * time.Second},
		APIURL: apiURL,
		Secret: secret,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s%s", c.APIURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", c.Secret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// Progress reports a 0-100 progress update.
func (c *Client) Progress(ctx context.Context, jobID string, progress int, message string) error {
	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/progress", jobID), struct {
		Progress int    `json:"progress"`
		Message  string `json:"message"`
	}{progress, message})
}

type analysisData struct {
	IntegratedLUFS    float64  `json:"integratedLufs"`
	LoudnessRange     float64  `json:"loudnessRange"`
	ShortTermMax      float64  `json:"shortTermMax"`
	MomentaryMax      float64  `json:"momentaryMax"`
	SamplePeak        float64  `json:"samplePeak"`
	TruePeak          float64  `json:"truePeak"`
	SpectralCentroid  *float64 `json:"spectralCentroid"`
	SpectralRolloff   *float64 `json:"spectralRolloff"`
	StereoCorrelation *float64 `json:"stereoCorrelation"`
	StereoWidth       *float64 `json:"stereoWidth"`
	HasClipping       bool     `json:"hasClipping"`
	HasDCOffset       bool     `json:"hasDcOffset"`
	DCOffsetValue     *float64 `json:"dcOffsetValue"`
	ClippedSamples    int      `json:"clippedSamples"`
	SampleRate        int      `json:"sampleRate"`
	BitDepth          int      `json:"bitDepth"`
	Channels          int      `json:"channels"`
	DurationSecs      float64  `json:"durationSecs"`
	ReportURL         *string  `json:"reportUrl"`
}

// ReportAnalysis posts an "analyze" job's completion payload.
func (c *Client) ReportAnalysis(ctx context.Context, jobID string, result analyze.Result, reportURL *string) error {
	payload := struct {
		JobID  string       `json:"jobId"`
		Type   string       `json:"type"`
		Status string       `json:"status"`
		Data   analysisData `json:"data"`
	}{
		JobID:  jobID,
		Type:   "analyze",
		Status: "completed",
		Data: analysisData{
			IntegratedLUFS:    result.IntegratedLUFS,
			LoudnessRange:     result.LoudnessRange,
			ShortTermMax:      result.ShortTermMax,
			MomentaryMax:      result.MomentaryMax,
			SamplePeak:        result.SamplePeak,
			TruePeak:          result.TruePeak,
			SpectralCentroid:  result.SpectralCentroid,
			SpectralRolloff:   result.SpectralRolloff,
			StereoCorrelation: result.StereoCorrelation,
			StereoWidth:       result.StereoWidth,
			HasClipping:       result.HasClipping,
			HasDCOffset:       result.HasDCOffset,
			DCOffsetValue:     result.DCOffsetValue,
			ClippedSamples:    result.ClippedSamples,
			SampleRate:        result.SampleRate,
			BitDepth:          result.BitDepth,
			Channels:          result.Channels,
			DurationSecs:      result.DurationSecs,
			ReportURL:         reportURL,
		},
	}
	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/analysis", jobID), payload)
}

type changeEntry struct {
	Module      string `json:"module"`
	Description string `json:"description"`
}

// ReportFix posts a "fix" job's completion payload.
func (c *Client) ReportFix(ctx context.Context, jobID, fixedURL string, changes []repair.Change) error {
	modules := make([]string, len(changes))
	entries := make([]changeEntry, len(changes))
	for i, ch := range changes {
		modules[i] = ch.Module
		entries[i] = changeEntry{Module: ch.Module, Description: ch.Description}
	}

	payload := struct {
		JobID  string `json:"jobId"`
		Type   string `json:"type"`
		Status string `json:"status"`
		Data   struct {
			FixedURL       string        `json:"fixedUrl"`
			AppliedModules []string      `json:"appliedModules"`
			Changes        []changeEntry `json:"changes"`
		} `json:"data"`
	}{
		JobID:  jobID,
		Type:   "fix",
		Status: "completed",
	}
	payload.Data.FixedURL = fixedURL
	payload.Data.AppliedModules = modules
	payload.Data.Changes = entries

	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/fix", jobID), payload)
}

// MasterReport carries the upload locations and QC outcome for a mastered
// track.
type MasterReport struct {
	WavHDURL      string
	Wav16URL      string
	MP3PreviewURL string
	FinalLUFS     float64
	FinalTruePeak float64
	PassesQC      bool
	QCReportURL   *string
}

// ReportMaster posts a "master" job's completion payload.
func (c *Client) ReportMaster(ctx context.Context, jobID string, r MasterReport) error {
	payload := struct {
		JobID  string `json:"jobId"`
		Type   string `json:"type"`
		Status string `json:"status"`
		Data   struct {
			WavHDURL      string  `json:"wavHdUrl"`
			Wav16URL      string  `json:"wav16Url"`
			MP3PreviewURL string  `json:"mp3PreviewUrl"`
			FinalLUFS     float64 `json:"finalLufs"`
			FinalTruePeak float64 `json:"finalTruePeak"`
			PassesQC      bool    `json:"passesQc"`
			QCReportURL   *string `json:"qcReportUrl"`
		} `json:"data"`
	}{
		JobID:  jobID,
		Type:   "master",
		Status: "completed",
	}
	payload.Data.WavHDURL = r.WavHDURL
	payload.Data.Wav16URL = r.Wav16URL
	payload.Data.MP3PreviewURL = r.MP3PreviewURL
	payload.Data.FinalLUFS = r.FinalLUFS
	payload.Data.FinalTruePeak = r.FinalTruePeak
	payload.Data.PassesQC = r.PassesQC
	payload.Data.QCReportURL = r.QCReportURL

	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/master", jobID), payload)
}

// CodecPreviewEntry is one requested codec's round-trip result.
type CodecPreviewEntry struct {
	Format        string  `json:"format"`
	BitrateKbps   int     `json:"bitrateKbps"`
	PreviewURL    string  `json:"previewUrl"`
	ArtifactScore float64 `json:"artifactScore"`
	ClippingRisk  bool    `json:"clippingRisk"`
}

// ReportCodecPreview posts a "codec-preview" job's completion payload.
func (c *Client) ReportCodecPreview(ctx context.Context, jobID string, entries []CodecPreviewEntry) error {
	payload := struct {
		JobID  string              `json:"jobId"`
		Type   string              `json:"type"`
		Status string              `json:"status"`
		Data   []CodecPreviewEntry `json:"data"`
	}{
		JobID:  jobID,
		Type:   "codec-preview",
		Status: "completed",
		Data:   entries,
	}
	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/codec-preview", jobID), payload)
}

// ReportFailure posts a terminal failure for any job kind to that kind's
// result endpoint: analyze to analysis, album-master and export to master
// (they have no endpoint of their own), every other kind to the endpoint
// of the same name.
func (c *Client) ReportFailure(ctx context.Context, jobID, jobType, errMsg string) error {
	payload := struct {
		JobID   string `json:"jobId"`
		Type    string `json:"type"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	}{
		JobID:  jobID,
		Type:   jobType,
		Status: "failed",
		Error:  errMsg,
	}
	endpoint := jobType
	switch jobType {
	case "analyze":
		endpoint = "analysis"
	case "album-master", "export":
		endpoint = "master"
	}
	return c.post(ctx, fmt.Sprintf("/webhooks/jobs/%s/%s", jobID, endpoint), payload)
}
