package memory

import (
	"math"
	"strings"
)

// Okapi BM25 parameters. Chosen to match the ranking the rest of the
// system was tuned against; changing them silently reorders results.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// tokenize case-folds and splits on whitespace. Deliberately no stemming
// and no stop-word removal: scores must stay comparable across processes
// that index the same text.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// bm25 is an Okapi BM25 model over a fixed corpus. It is rebuilt from the
// live record set on every search; with the small per-agent corpora this
// store targets, a fresh model is cheaper than keeping an incremental
// index consistent.
type bm25 struct {
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

func newBM25(corpus [][]string) *bm25 {
	b := &bm25{
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]int, len(corpus)),
		idf:       make(map[string]float64),
	}

	totalLen := 0
	docFreq := make(map[string]int)
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, term := range doc {
			freqs[term]++
		}
		b.termFreqs[i] = freqs
		b.docLens[i] = len(doc)
		totalLen += len(doc)
		for term := range freqs {
			docFreq[term]++
		}
	}
	if len(corpus) > 0 {
		b.avgDocLen = float64(totalLen) / float64(len(corpus))
	}

	// Standard Okapi idf is zero or negative for terms in half or more of
	// the corpus; those are floored at epsilon times the average idf so
	// common terms still carry a small positive weight. A term that occurs
	// in a document must never contribute a non-positive score, or that
	// document vanishes from results it should appear in. When the average
	// idf itself is not positive (tiny corpora), epsilon is the floor.
	var idfSum float64
	var nonPositive []string
	n := float64(len(corpus))
	for term, df := range docFreq {
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5))
		b.idf[term] = idf
		idfSum += idf
		if idf <= 0 {
			nonPositive = append(nonPositive, term)
		}
	}
	if len(b.idf) > 0 {
		floor := bm25Epsilon * (idfSum / float64(len(b.idf)))
		if floor <= 0 {
			floor = bm25Epsilon
		}
		for _, term := range nonPositive {
			b.idf[term] = floor
		}
	}
	return b
}

// scores returns one BM25 score per corpus document for the query terms.
func (b *bm25) scores(query []string) []float64 {
	out := make([]float64, len(b.termFreqs))
	for _, term := range query {
		idf, ok := b.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range b.termFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(b.docLens[i])/b.avgDocLen
			out[i] += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
		}
	}
	return out
}
