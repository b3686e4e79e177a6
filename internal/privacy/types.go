package privacy

// TextSpan is one rule match inside a page's extracted text. Offsets are in bytes.
type TextSpan struct {
	PatternName string `json:"patternName"`
	Text        string `json:"-"` // never serialize matched PII
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// Finding counts the spans produced by one rule.
type Finding struct {
	EntityType string `json:"entityType"`
	Count      int    `json:"count"`
}

// Summarize counts spans per rule, in first-seen order.
func Summarize(spans []TextSpan) []Finding {
	index := make(map[string]int)
	var findings []Finding
	for _, s := range spans {
		i, ok := index[s.PatternName]
		if !ok {
			i = len(findings)
			index[s.PatternName] = i
			findings = append(findings, Finding{EntityType: s.PatternName})
		}
		findings[i].Count++
	}
	return findings
}
