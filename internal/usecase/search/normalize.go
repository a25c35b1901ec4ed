package search

import (
	"sort"

	"github.com/docdex-io/docdex/internal/domain/search/request"
	"github.com/docdex-io/docdex/internal/domain/search/result"
)

// minMaxNormalize rescales one result list to [0,1]. The scales of different
// engines (BM25 term statistics vs vector similarity) are not comparable, so
// each list is normalized against its own extremes before combination.
// Degenerate lists (one hit, or all scores equal) normalize to 1.0: within its
// own list that hit is the best available evidence.
func minMaxNormalize(hits []result.Hit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}

	norm := make(map[string]float64, len(hits))
	for _, h := range hits {
		if hi == lo {
			norm[h.ChunkID] = 1.0
			continue
		}
		norm[h.ChunkID] = (h.Score - lo) / (hi - lo)
	}
	return norm
}

// singleList converts one sub-query's hits into ranked results. The combined
// score is the normalized list score; the active component keeps the raw
// engine score.
func singleList(hits []result.Hit, keyword bool, topK int) []result.Result {
	norm := minMaxNormalize(hits)

	results := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		var kw, sem result.Component
		if keyword {
			kw = result.NewComponent(h.Score)
		} else {
			sem = result.NewComponent(h.Score)
		}
		results = append(results, result.New(h.ChunkID, h.DocumentName, norm[h.ChunkID], kw, sem, h.Text))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// fuse combines the two sub-query lists into one ranking.
//
// Chunks found by both sub-queries get the weighted mean of their normalized
// scores. A chunk found by only one list keeps that list's normalized score
// unweighted: absence from the other list means the other engine did not rank
// it in its top results, which is weaker evidence than a measured zero, so the
// missing side is excluded from the mean rather than counted against the chunk.
//
// Ties keep keyword sub-query order first, then semantic-only hits in semantic
// order, so repeated identical queries rank identically.
func fuse(kwHits, semHits []result.Hit, w request.Weights) []result.Result {
	kwNorm := minMaxNormalize(kwHits)
	semNorm := minMaxNormalize(semHits)

	kwRaw := make(map[string]float64, len(kwHits))
	for _, h := range kwHits {
		kwRaw[h.ChunkID] = h.Score
	}

	// Merged candidate list in deterministic order.
	merged := make([]result.Hit, 0, len(kwHits)+len(semHits))
	merged = append(merged, kwHits...)
	for _, h := range semHits {
		if _, ok := kwRaw[h.ChunkID]; !ok {
			merged = append(merged, h)
		}
	}

	semRaw := make(map[string]float64, len(semHits))
	for _, h := range semHits {
		semRaw[h.ChunkID] = h.Score
	}

	results := make([]result.Result, 0, len(merged))
	for _, h := range merged {
		var kw, sem result.Component
		var combined float64

		nk, inKw := kwNorm[h.ChunkID]
		ns, inSem := semNorm[h.ChunkID]

		switch {
		case inKw && inSem:
			kw = result.NewComponent(kwRaw[h.ChunkID])
			sem = result.NewComponent(semRaw[h.ChunkID])
			combined = (w.Keyword*nk + w.Semantic*ns) / (w.Keyword + w.Semantic)
		case inKw:
			kw = result.NewComponent(kwRaw[h.ChunkID])
			combined = nk
		default:
			sem = result.NewComponent(semRaw[h.ChunkID])
			combined = ns
		}

		results = append(results, result.New(h.ChunkID, h.DocumentName, combined, kw, sem, h.Text))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	return results
}
