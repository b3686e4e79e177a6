package privacy

// FindMatches runs every rule over text, in rule order and then position order within a rule.
// Spans of different rules may overlap; nothing is deduplicated.
func FindMatches(text string, rules []Rule) []TextSpan {
	var spans []TextSpan
	for _, rule := range rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, TextSpan{
				PatternName: rule.Name,
				Text:        text[loc[0]:loc[1]],
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return spans
}
