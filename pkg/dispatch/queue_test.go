package dispatch

import "testing"

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := BackoffPolicy{Initial: 250e6, Max: 15e9} // 250ms / 15s in ns
	for attempt, want := range map[int]int64{
		0: 250e6,
		1: 500e6,
		2: 1000e6,
		6: 15e9, // 250ms * 2^6 = 16s, capped at 15s
	} {
		got := b.next(attempt)
		if got < 0 || int64(got)-want > int64(1*1e9) || int64(got) < want {
			t.Fatalf("attempt %d: got %v, want >= %dns and within 1s jitter", attempt, got, want)
		}
	}
}

func TestDedupIDDiffersPerPipeline(t *testing.T) {
	analysis := dedupID(PipelineAnalysis, "42")
	images := dedupID(PipelineImages, "42")
	if analysis == images {
		t.Fatalf("expected distinct dedup ids per pipeline, got %q for both", analysis)
	}
	if analysis != "wad-analysis-42" {
		t.Fatalf("unexpected analysis dedup id: %s", analysis)
	}
}

func TestPipelineDispatchColumn(t *testing.T) {
	if PipelineAnalysis.dispatchColumn() != "dispatched_analysis_at" {
		t.Fatalf("unexpected analysis column: %s", PipelineAnalysis.dispatchColumn())
	}
	if PipelineImages.dispatchColumn() != "dispatched_images_at" {
		t.Fatalf("unexpected images column: %s", PipelineImages.dispatchColumn())
	}
}
