package batch

import (
	"testing"
)

func TestReduce_FirstChunkDefinesKeys(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"m:sum": 1}, Count: 1},
		{Metrics: map[string]float64{"m:sum": 2, "extra": 9}, Count: 1},
	})
	if merged["m:sum"] != 3 {
		t.Errorf("m:sum = %v, want 3", merged["m:sum"])
	}
	if _, ok := merged["extra"]; ok {
		t.Error("extra present in merged output, want absent (not in first chunk)")
	}
}

func TestReduce_WeightedMean(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"loss:mean": 1.0}, Count: 1},
		{Metrics: map[string]float64{"loss:mean": 3.0}, Count: 3},
	})
	if merged["loss:mean"] != 2.5 {
		t.Errorf("loss:mean = %v, want 2.5", merged["loss:mean"])
	}
}

func TestReduce_DefaultSuffixIsMean(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"loss": 1.0, "acc:bogus": 1.0}, Count: 1},
		{Metrics: map[string]float64{"loss": 3.0, "acc:bogus": 3.0}, Count: 3},
	})
	if merged["loss"] != 2.5 {
		t.Errorf("loss = %v, want 2.5 (no suffix defaults to mean)", merged["loss"])
	}
	if merged["acc:bogus"] != 2.5 {
		t.Errorf("acc:bogus = %v, want 2.5 (unknown suffix defaults to mean)", merged["acc:bogus"])
	}
}

func TestReduce_MinMax(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"lo:min": 5, "hi:max": 5}, Count: 1},
		{Metrics: map[string]float64{"lo:min": 2, "hi:max": 9}, Count: 1},
		{Metrics: map[string]float64{"lo:min": 7, "hi:max": 1}, Count: 1},
	})
	if merged["lo:min"] != 2 {
		t.Errorf("lo:min = %v, want 2", merged["lo:min"])
	}
	if merged["hi:max"] != 9 {
		t.Errorf("hi:max = %v, want 9", merged["hi:max"])
	}
}

func TestReduce_SlackZeroWeight(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"pad:slack": 4}, Count: 0},
		{Metrics: map[string]float64{"pad:slack": 8}, Count: 0},
	})
	if merged["pad:slack"] != 0.0 {
		t.Errorf("pad:slack = %v, want 0.0 on zero total weight", merged["pad:slack"])
	}
}

func TestReduce_Unique(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"seed:unique": 11}, Count: 1},
		{Metrics: map[string]float64{}, Count: 1},
		{Metrics: map[string]float64{"seed:unique": 22}, Count: 1},
		{Metrics: map[string]float64{"seed:unique": 33}, Count: 1},
	})
	if merged["seed:unique"] != 11 {
		t.Errorf("seed:unique = %v, want 11", merged["seed:unique"])
	}
	if merged["seed:unique_2"] != 22 {
		t.Errorf("seed:unique_2 = %v, want 22 (non-reporting chunk skipped)", merged["seed:unique_2"])
	}
	if merged["seed:unique_3"] != 33 {
		t.Errorf("seed:unique_3 = %v, want 33", merged["seed:unique_3"])
	}
}

func TestReduce_AbsentKeyStillAppears(t *testing.T) {
	merged := Reduce([]ChunkResult{
		{Metrics: map[string]float64{"n:sum": 1}, Count: 1},
		{Metrics: map[string]float64{}, Count: 1},
		{Metrics: map[string]float64{"n:sum": 4}, Count: 1},
	})
	if merged["n:sum"] != 5 {
		t.Errorf("n:sum = %v, want 5 (absent chunk contributes nothing, not zero)", merged["n:sum"])
	}
}

func TestReduce_Empty(t *testing.T) {
	merged := Reduce(nil)
	if len(merged) != 0 {
		t.Errorf("Reduce(nil) = %v, want empty map", merged)
	}
}

func TestParseChunkResult(t *testing.T) {
	cr := ParseChunkResult(map[string]any{
		"metrics": map[string]any{"loss:mean": 1.5, "label": "ignored"},
		"outputs": []any{
			map[string]any{"text": "a"},
			map[string]any{"text": "b"},
		},
	}, 2)

	if cr.Count != 2 {
		t.Errorf("Count = %d, want 2", cr.Count)
	}
	if cr.Metrics["loss:mean"] != 1.5 {
		t.Errorf("loss:mean = %v, want 1.5", cr.Metrics["loss:mean"])
	}
	if _, ok := cr.Metrics["label"]; ok {
		t.Error("non-numeric metric kept, want dropped")
	}
	if len(cr.Outputs) != 2 || cr.Outputs[1]["text"] != "b" {
		t.Errorf("Outputs = %v, want two items in order", cr.Outputs)
	}
}
