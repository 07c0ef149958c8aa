package services

import (
	"math"
	"strings"
	"unicode"
)

// The in-process scorer blends character trigram TF-IDF cosine with
// normalized edit distance. Trigrams catch shared word stems; edit distance
// catches transpositions and typos that shift most trigrams.
const (
	ngramSize     = 3
	ngramWeight   = 0.5
	editSimWeight = 0.5
)

// lexicalScorer scores a query against a fixed candidate corpus. IDF is
// computed over the corpus so distinctive fragments outweigh boilerplate.
type lexicalScorer struct {
	idf    map[string]float64
	docs   []map[string]float64
	labels []string
}

// newLexicalScorer indexes candidate texts. labels[i] is the short label used
// for the edit-distance component; texts[i] may append a description.
func newLexicalScorer(labels, texts []string) *lexicalScorer {
	n := len(texts)
	docFreq := make(map[string]int)
	counts := make([]map[string]float64, n)

	for i, text := range texts {
		tf := termFreq(ngrams(text))
		counts[i] = tf
		for gram := range tf {
			docFreq[gram]++
		}
	}

	idf := make(map[string]float64, len(docFreq))
	for gram, df := range docFreq {
		idf[gram] = math.Log(float64(n+1)/float64(df+1)) + 1
	}

	docs := make([]map[string]float64, n)
	for i, tf := range counts {
		docs[i] = weight(tf, idf)
	}

	return &lexicalScorer{idf: idf, docs: docs, labels: labels}
}

// Score returns the blended similarity of query to candidate i, in [0,1].
func (s *lexicalScorer) Score(query string, i int) float64 {
	qvec := weight(termFreq(ngrams(query)), s.idf)
	cos := cosineSparse(qvec, s.docs[i])
	edit := editSimilarity(normalizeText(query), normalizeText(s.labels[i]))
	return ngramWeight*cos + editSimWeight*edit
}

// normalizeText lowercases and collapses non-alphanumeric runs to single
// spaces, so "MARRIED " and "married" tokenize identically.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ngrams returns padded character trigrams of the normalized text.
func ngrams(s string) []string {
	norm := normalizeText(s)
	if norm == "" {
		return nil
	}
	runes := []rune(" " + norm + " ")
	if len(runes) < ngramSize {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-ngramSize+1)
	for i := 0; i+ngramSize <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+ngramSize]))
	}
	return grams
}

func termFreq(grams []string) map[string]float64 {
	tf := make(map[string]float64, len(grams))
	for _, g := range grams {
		tf[g]++
	}
	return tf
}

// weight applies IDF to raw term frequencies. Unknown grams get IDF 1 so a
// query with out-of-corpus fragments still produces a usable vector.
func weight(tf map[string]float64, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(tf))
	for gram, f := range tf {
		w, ok := idf[gram]
		if !ok {
			w = 1
		}
		vec[gram] = f * w
	}
	return vec
}

func cosineSparse(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for gram, wa := range a {
		na += wa * wa
		if wb, ok := b[gram]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		nb += wb * wb
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// editSimilarity is 1 - levenshtein/maxlen, in [0,1].
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ar, br))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// cosine32 computes cosine similarity between two embedding vectors.
func cosine32(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
