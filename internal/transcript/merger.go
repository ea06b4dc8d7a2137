package transcript

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// MergerConfig tunes duplicate detection. The defaults were chosen
// empirically; treat them as starting points, not settled values.
type MergerConfig struct {
	// OverlapThreshold is the minimum intersection, in seconds, of two
	// spans' time windows before they are compared for text similarity.
	OverlapThreshold float64
	// SimilarityThreshold is the minimum character-set Jaccard similarity
	// for two time-overlapping spans to count as duplicates.
	SimilarityThreshold float64
	// Lookback is how many recently accepted spans each new span is
	// compared against.
	Lookback int
}

// DefaultMergerConfig returns the stock thresholds: 0.5s overlap, 0.7
// similarity, lookback of 5.
func DefaultMergerConfig() MergerConfig {
	return MergerConfig{
		OverlapThreshold:    0.5,
		SimilarityThreshold: 0.7,
		Lookback:            5,
	}
}

func (c MergerConfig) withDefaults() MergerConfig {
	d := DefaultMergerConfig()
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = d.OverlapThreshold
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	return c
}

// Merger folds recognition results from overlapping segments into one
// deduplicated transcript. The algorithm is greedy and single-pass: each
// incoming span is compared only against the most recently accepted spans,
// in insertion order, so ingestion order matters. A Merger is owned by one
// pipeline run and is not safe for concurrent use.
type Merger struct {
	cfg      MergerConfig
	spans    []Span
	language string
}

// NewMerger creates a merger; zero-valued config fields fall back to the
// defaults.
func NewMerger(cfg MergerConfig) *Merger {
	return &Merger{cfg: cfg.withDefaults()}
}

// AddResult ingests one recognition result, dropping spans that duplicate
// recently accepted ones.
func (m *Merger) AddResult(result Result) {
	if m.language == "" && result.Language != "" {
		m.language = result.Language
	}
	for _, span := range result.Spans {
		m.addSpan(span)
	}
}

func (m *Merger) addSpan(span Span) {
	if strings.TrimSpace(span.Text) == "" {
		return
	}

	for i := 0; i < m.cfg.Lookback && i < len(m.spans); i++ {
		existing := m.spans[len(m.spans)-1-i]

		overlap := timeOverlap(existing, span)
		if overlap <= m.cfg.OverlapThreshold {
			continue
		}

		similarity := jaccardSimilarity(existing.Text, span.Text)
		if similarity > m.cfg.SimilarityThreshold {
			log.Debug().
				Str("text", truncate(span.Text, 30)).
				Float64("time_overlap", overlap).
				Float64("similarity", similarity).
				Msg("Dropped duplicate span")
			return
		}
	}

	m.spans = append(m.spans, span)
}

// timeOverlap returns the intersection length of two spans' time windows.
func timeOverlap(a, b Span) float64 {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if b.End < end {
		end = b.End
	}
	if end < start {
		return 0
	}
	return end - start
}

// jaccardSimilarity compares the whitespace-stripped character sets of two
// strings: |intersection| / |union|.
func jaccardSimilarity(a, b string) float64 {
	setA := charSet(a)
	setB := charSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Spans returns the accepted spans sorted by start time.
func (m *Merger) Spans() []Span {
	sorted := make([]Span, len(m.spans))
	copy(sorted, m.spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	return sorted
}

// MergedResult returns the deduplicated transcript: spans in start-time
// order, full text joined in that order, and total duration measured from
// the first span's start to the last span's end.
func (m *Merger) MergedResult() Result {
	sorted := m.Spans()

	texts := make([]string, len(sorted))
	for i, span := range sorted {
		texts[i] = span.Text
	}

	var duration float64
	if len(sorted) > 0 {
		duration = sorted[len(sorted)-1].End - sorted[0].Start
	}

	return Result{
		Spans:    sorted,
		FullText: strings.Join(texts, " "),
		Duration: duration,
		Language: m.language,
	}
}

// BySpeaker groups accepted spans by speaker identifier, each group sorted
// by start time. Spans without a speaker land in the UnknownSpeaker bucket.
func (m *Merger) BySpeaker() map[string][]Span {
	groups := make(map[string][]Span)
	for _, span := range m.spans {
		speaker := span.Speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		groups[speaker] = append(groups[speaker], span)
	}
	for speaker := range groups {
		spans := groups[speaker]
		sort.SliceStable(spans, func(i, j int) bool {
			return spans[i].Start < spans[j].Start
		})
	}
	return groups
}

// Count reports the number of accepted spans.
func (m *Merger) Count() int {
	return len(m.spans)
}

// Clear discards all accepted spans.
func (m *Merger) Clear() {
	m.spans = nil
	m.language = ""
}
