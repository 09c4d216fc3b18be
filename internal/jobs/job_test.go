package jobs

import "testing"

func TestParseAnalyze(t *testing.T) {
	raw := []byte(`{"type":"analyze","jobId":"j1","trackId":"t1","sourceUrl":"s3://audio/t1/src.wav"}`)
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind != KindAnalyze {
		t.Fatalf("expected KindAnalyze, got %v", job.Kind)
	}
	if job.Analyze.TrackID != "t1" || job.Analyze.SourceURL != "s3://audio/t1/src.wav" {
		t.Errorf("unexpected decoded fields: %+v", job.Analyze)
	}
	if job.JobID() != "j1" {
		t.Errorf("JobID() = %q, want j1", job.JobID())
	}
}

func TestParseFixDecodesModulesList(t *testing.T) {
	raw := []byte(`{"type":"fix","jobId":"j2","trackId":"t2","sourceUrl":"s3://a/b.wav","modules":["normalize","dc_offset"]}`)
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(job.Fix.Modules) != 2 || job.Fix.Modules[0] != "normalize" {
		t.Errorf("unexpected modules: %v", job.Fix.Modules)
	}
}

func TestParseAlbumMaster(t *testing.T) {
	raw := []byte(`{"type":"album-master","jobId":"j3","projectId":"p1","trackIds":["t1","t2"],"profile":"warm","loudnessTarget":"low","normalizeLoudness":true}`)
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind != KindAlbumMaster {
		t.Fatalf("expected KindAlbumMaster, got %v", job.Kind)
	}
	if len(job.AlbumMaster.TrackIDs) != 2 || !job.AlbumMaster.NormalizeLoudness {
		t.Errorf("unexpected decoded fields: %+v", job.AlbumMaster)
	}
}

func TestParseExport(t *testing.T) {
	raw := []byte(`{"type":"export","jobId":"j4","projectId":"p1","formats":["mp3-320","aac-256"],"includeQc":true}`)
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind != KindExport || len(job.Export.Formats) != 2 {
		t.Errorf("unexpected decoded job: %+v", job)
	}
}

func TestParseCodecPreview(t *testing.T) {
	raw := []byte(`{"type":"codec-preview","jobId":"j5","trackId":"t1","masterUrl":"s3://a/master.wav","codecs":["mp3-320"]}`)
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind != KindCodecPreview || job.CodecPreview.MasterURL != "s3://a/master.wav" {
		t.Errorf("unexpected decoded job: %+v", job)
	}
}

func TestParseUnknownTypeErrors(t *testing.T) {
	raw := []byte(`{"type":"bogus"}`)
	if _, err := Parse(raw); err == nil {
		t.Error("expected an error for an unknown job type")
	}
}

func TestParseMalformedJSONErrors(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}
