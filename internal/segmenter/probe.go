package segmenter

import "strings"

// MarkerReport tells whether a marker occurs in a document and where.
type MarkerReport struct {
	Marker string
	Found  bool
	Offset int
}

// ProbeMarkers lists the markers worth checking when segmentation misbehaves.
func (c Config) ProbeMarkers() []string {
	markers := []string{
		c.HeaderWord + " I",
		c.HeaderWord + " II",
		"DOWN THE RABBIT-HOLE",
		"[" + c.MarkerLabel + ":",
		c.TOCStart,
		c.StartSentinel,
	}
	out := markers[:0]
	for _, m := range markers {
		if strings.TrimSpace(m) != "" {
			out = append(out, m)
		}
	}
	return out
}

// Probe reports the first offset of each marker in text, or -1.
func Probe(text string, markers []string) []MarkerReport {
	text = normalizeNewlines(text)
	reports := make([]MarkerReport, 0, len(markers))
	for _, m := range markers {
		off := strings.Index(text, m)
		reports = append(reports, MarkerReport{Marker: m, Found: off >= 0, Offset: off})
	}
	return reports
}

// StrategyReport is the outcome of one strategy on a document.
type StrategyReport struct {
	Strategy string
	Sections []string
}

// Explain runs every strategy, not only the first successful one, and
// reports the section titles each would produce.
func (s *Segmenter) Explain(text string) []StrategyReport {
	text = normalizeNewlines(text)
	reports := make([]StrategyReport, 0, len(s.strategies))
	for _, st := range s.strategies {
		r := StrategyReport{Strategy: st.Name()}
		for _, sec := range st.Extract(text) {
			r.Sections = append(r.Sections, sec.Title)
		}
		reports = append(reports, r)
	}
	return reports
}
