package batch

import (
	"fmt"
	"strings"
)

// ChunkResult is the decoded outcome of one chunk's future.
type ChunkResult struct {
	// Metrics are the chunk's reported metric values, keyed by name with
	// an optional reduction suffix (":mean", ":sum", ...).
	Metrics map[string]float64

	// Count is the number of logical items the chunk represents; it is
	// the weight used by mean-style reductions.
	Count int

	// Outputs are the chunk's per-item results, in item order.
	Outputs []map[string]any
}

// ParseChunkResult decodes a completed future's result body into a
// ChunkResult. count is the number of items the chunk carried.
func ParseChunkResult(body map[string]any, count int) ChunkResult {
	cr := ChunkResult{
		Metrics: make(map[string]float64),
		Count:   count,
	}
	if metrics, ok := body["metrics"].(map[string]any); ok {
		for k, v := range metrics {
			if f, ok := v.(float64); ok {
				cr.Metrics[k] = f
			}
		}
	}
	if outputs, ok := body["outputs"].([]any); ok {
		for _, o := range outputs {
			if m, ok := o.(map[string]any); ok {
				cr.Outputs = append(cr.Outputs, m)
			}
		}
	}
	return cr
}

// Reduce merges per-chunk metrics into one map. The first chunk's keys
// define the output key set; a later chunk missing a key contributes
// nothing for that chunk. The reduction rule is chosen by the suffix after
// the last ":" in the key, defaulting to a count-weighted mean.
func Reduce(chunks []ChunkResult) map[string]float64 {
	merged := make(map[string]float64)
	if len(chunks) == 0 {
		return merged
	}

	for key := range chunks[0].Metrics {
		switch suffix(key) {
		case "sum":
			merged[key] = reduceSum(chunks, key)
		case "min":
			merged[key] = reduceExtreme(chunks, key, func(a, b float64) bool { return b < a })
		case "max":
			merged[key] = reduceExtreme(chunks, key, func(a, b float64) bool { return b > a })
		case "slack":
			merged[key] = reduceMean(chunks, key, true)
		case "unique":
			reduceUnique(chunks, key, merged)
		default:
			merged[key] = reduceMean(chunks, key, false)
		}
	}
	return merged
}

func suffix(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return ""
}

func reduceSum(chunks []ChunkResult, key string) float64 {
	var total float64
	for _, c := range chunks {
		if v, ok := c.Metrics[key]; ok {
			total += v
		}
	}
	return total
}

func reduceExtreme(chunks []ChunkResult, key string, better func(current, candidate float64) bool) float64 {
	var (
		result float64
		found  bool
	)
	for _, c := range chunks {
		v, ok := c.Metrics[key]
		if !ok {
			continue
		}
		if !found || better(result, v) {
			result, found = v, true
		}
	}
	return result
}

// reduceMean computes the count-weighted mean over the chunks reporting
// the key. With slack set, a zero total weight yields 0 instead of the
// division's NaN.
func reduceMean(chunks []ChunkResult, key string, slack bool) float64 {
	var weighted, weight float64
	for _, c := range chunks {
		if v, ok := c.Metrics[key]; ok {
			weighted += v * float64(c.Count)
			weight += float64(c.Count)
		}
	}
	if slack && weight == 0 {
		return 0.0
	}
	return weighted / weight
}

// reduceUnique keeps every reporting chunk's value: the first under the
// original key, later ones under key_2, key_3, ... in chunk order.
func reduceUnique(chunks []ChunkResult, key string, merged map[string]float64) {
	n := 0
	for _, c := range chunks {
		v, ok := c.Metrics[key]
		if !ok {
			continue
		}
		n++
		if n == 1 {
			merged[key] = v
		} else {
			merged[fmt.Sprintf("%s_%d", key, n)] = v
		}
	}
}
