package privacy

import "regexp"

// Tier gates which rules run for a document.
type Tier int

const (
	TierStandard Tier = iota
	TierPremium
)

func (t Tier) String() string {
	if t == TierPremium {
		return "premium"
	}
	return "standard"
}

// ParseTier maps a stored tier name to a Tier. Anything unknown is standard.
func ParseTier(s string) Tier {
	if s == "premium" {
		return TierPremium
	}
	return TierStandard
}

// Rule is a named, case-insensitive PII pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Tier    Tier
}

func rule(name, pattern string, tier Tier) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Tier: tier}
}

var standardRules = []Rule{
	rule("SSN Full", `\b\d{3}-\d{2}-\d{4}\b`, TierStandard),
	rule("SSN Partial", `\b[X*]{3,5}-?[X*]{2}-?\d{4}\b|\b\d{3}-?[X*]{2}-?[X*]{4}\b`, TierStandard),
	rule("SSN Last 4", `\b(?:SSN|SS#?|Social)[\s:]*[X*]*\d{4}\b`, TierStandard),
	rule("Date of Birth", `\b(?:DOB|Date of Birth|Birth Date|Born)[\s:]*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`, TierStandard),
	rule("Generic Date", `\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`, TierStandard),
	rule("Driver's License", `\b(?:DL|Driver'?s?\s*License|License\s*#?)[\s:]*[A-Z]?\d{6,12}\b`, TierStandard),
	rule("Phone Number", `\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`, TierStandard),
	rule("Email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`, TierStandard),
	rule("Account Number", `\b(?:Account|Acct)[\s#:]*[X*]*\d{4,}\b|\b[X*]{4,}\d{4}\b`, TierStandard),
}

var premiumRules = []Rule{
	rule("Street Address", `\b\d{1,6}\s+(?:[A-Za-z0-9.]+\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl|Terrace|Circle)\b\.?`, TierPremium),
	rule("Zip Code", `\b\d{5}(?:-\d{4})?\b`, TierPremium),
	rule("Credit Card", `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, TierPremium),
}

// StandardRules returns the baseline rule set in registry order.
func StandardRules() []Rule {
	return append([]Rule(nil), standardRules...)
}

// AllRules returns the baseline rules, followed by the premium ones when includePremium is set.
func AllRules(includePremium bool) []Rule {
	rules := StandardRules()
	if includePremium {
		rules = append(rules, premiumRules...)
	}
	return rules
}
