package privacy

import (
	"reflect"
	"testing"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func ruleNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

func TestRegistry(t *testing.T) {
	t.Run("standard rules", func(t *testing.T) {
		want := []string{
			"SSN Full", "SSN Partial", "SSN Last 4", "Date of Birth", "Generic Date",
			"Driver's License", "Phone Number", "Email", "Account Number",
		}
		if got := ruleNames(StandardRules()); !reflect.DeepEqual(got, want) {
			t.Errorf("Unexpected standard rules: %v", got)
		}
	})

	t.Run("premium rules follow the baseline", func(t *testing.T) {
		all := AllRules(true)
		if len(all) != 12 {
			t.Fatalf("Expected 12 rules, got %d", len(all))
		}
		if got := ruleNames(all[9:]); !reflect.DeepEqual(got, []string{"Street Address", "Zip Code", "Credit Card"}) {
			t.Errorf("Unexpected premium rules: %v", got)
		}
		for _, r := range all[9:] {
			if r.Tier != TierPremium {
				t.Errorf("Rule %s should be premium", r.Name)
			}
		}
		if len(AllRules(false)) != 9 {
			t.Error("Expected AllRules(false) to return only the baseline")
		}
	})

	t.Run("names are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for _, r := range AllRules(true) {
			if seen[r.Name] {
				t.Errorf("Duplicate rule name %s", r.Name)
			}
			seen[r.Name] = true
		}
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		rules := StandardRules()
		rules[0].Name = "changed"
		if StandardRules()[0].Name != "SSN Full" {
			t.Error("Registry was mutated through a returned slice")
		}
	})
}

func TestRulePatterns(t *testing.T) {
	tests := []struct {
		rule  string
		text  string
		match string
	}{
		{"SSN Full", "SSN: 123-45-6789", "123-45-6789"},
		{"SSN Partial", "ssn XXX-XX-1234", "XXX-XX-1234"},
		{"SSN Partial", "ssn 123-XX-XXXX", "123-XX-XXXX"},
		{"SSN Last 4", "SS# ***1234", "SS# ***1234"},
		{"Date of Birth", "DOB: 01/02/1990", "DOB: 01/02/1990"},
		{"Date of Birth", "born 1-2-90", "born 1-2-90"},
		{"Generic Date", "signed 12/31/2023", "12/31/2023"},
		{"Driver's License", "Driver's License: D1234567", "Driver's License: D1234567"},
		{"Phone Number", "call 555-123-4567", "555-123-4567"},
		{"Phone Number", "tel (555) 123-4567", "555) 123-4567"},
		{"Email", "mail JANE.DOE@Example.org now", "JANE.DOE@Example.org"},
		{"Account Number", "Acct #: 00123456", "Acct #: 00123456"},
		{"Account Number", "card XXXX1234", "XXXX1234"},
		{"Street Address", "lives at 221 Baker Street today", "221 Baker Street"},
		{"Zip Code", "Springfield 62704-1234", "62704-1234"},
		{"Credit Card", "card 4111 1111 1111 1111", "4111 1111 1111 1111"},
	}

	rules := map[string]Rule{}
	for _, r := range AllRules(true) {
		rules[r.Name] = r
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.text, func(t *testing.T) {
			got := rules[tt.rule].Pattern.FindString(tt.text)
			if got != tt.match {
				t.Errorf("Expected %q, got %q", tt.match, got)
			}
		})
	}
}

func TestFindMatches(t *testing.T) {
	t.Run("ssn and phone scenario", func(t *testing.T) {
		spans := FindMatches("SSN: 123-45-6789, call 555-123-4567", StandardRules())
		if len(spans) != 2 {
			t.Fatalf("Expected 2 spans, got %d: %+v", len(spans), spans)
		}
		if spans[0].PatternName != "SSN Full" || spans[0].Text != "123-45-6789" {
			t.Errorf("Unexpected first span %+v", spans[0])
		}
		if spans[1].PatternName != "Phone Number" || spans[1].Text != "555-123-4567" {
			t.Errorf("Unexpected second span %+v", spans[1])
		}
	})

	t.Run("rule order then position order", func(t *testing.T) {
		text := "DOB: 01/02/1990 and 03/04/2005"
		spans := FindMatches(text, StandardRules())
		var got []string
		for _, s := range spans {
			got = append(got, s.PatternName+"="+s.Text)
		}
		want := []string{
			"Date of Birth=DOB: 01/02/1990",
			"Generic Date=01/02/1990",
			"Generic Date=03/04/2005",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
		for _, s := range spans {
			if text[s.Start:s.End] != s.Text {
				t.Errorf("Offsets %d..%d do not match %q", s.Start, s.End, s.Text)
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		text := "jane@example.com 555-123-4567 123-45-6789 jane@example.com"
		first := FindMatches(text, AllRules(true))
		second := FindMatches(text, AllRules(true))
		if !reflect.DeepEqual(first, second) {
			t.Error("Expected identical results for identical input")
		}
	})

	t.Run("street address only with premium", func(t *testing.T) {
		text := "Deliver to 742 Evergreen Terrace"
		if spans := FindMatches(text, AllRules(false)); len(spans) != 0 {
			t.Errorf("Expected no standard matches, got %+v", spans)
		}
		spans := FindMatches(text, AllRules(true))
		if len(spans) != 1 || spans[0].PatternName != "Street Address" {
			t.Errorf("Expected one street address, got %+v", spans)
		}
	})
}

func TestSummarize(t *testing.T) {
	spans := []TextSpan{
		{PatternName: "Email"}, {PatternName: "SSN Full"}, {PatternName: "Email"},
	}
	want := []Finding{{EntityType: "Email", Count: 2}, {EntityType: "SSN Full", Count: 1}}
	if got := Summarize(spans); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestDetector(t *testing.T) {
	t.Run("all detectors", func(t *testing.T) {
		d, err := New(config.DetectionConfig{Detectors: []string{"all"}}, testLogger())
		if err != nil {
			t.Fatalf("Failed to create detector: %v", err)
		}
		if len(d.Rules(false)) != 9 || len(d.Rules(true)) != 12 {
			t.Errorf("Unexpected rule counts %d/%d", len(d.Rules(false)), len(d.Rules(true)))
		}
	})

	t.Run("subset", func(t *testing.T) {
		d, err := New(config.DetectionConfig{Detectors: []string{"Email", "Zip Code"}}, testLogger())
		if err != nil {
			t.Fatalf("Failed to create detector: %v", err)
		}
		if got := ruleNames(d.Rules(false)); !reflect.DeepEqual(got, []string{"Email"}) {
			t.Errorf("Expected only Email for standard tier, got %v", got)
		}
		if got := d.GetEnabledRules(); !reflect.DeepEqual(got, []string{"Email", "Zip Code"}) {
			t.Errorf("Unexpected enabled rules %v", got)
		}
		spans := d.FindMatches("a@b.io 90210", true)
		if len(spans) != 2 {
			t.Errorf("Expected 2 spans, got %+v", spans)
		}
	})

	t.Run("unknown detector", func(t *testing.T) {
		if _, err := New(config.DetectionConfig{Detectors: []string{"Passport"}}, testLogger()); err == nil {
			t.Error("Expected an error for an unknown detector")
		}
	})

	t.Run("enable and disable", func(t *testing.T) {
		d, _ := New(config.DetectionConfig{}, testLogger())
		if len(d.Rules(true)) != 0 {
			t.Fatal("Expected no rules enabled")
		}
		if err := d.EnableRule("Email"); err != nil {
			t.Fatalf("EnableRule failed: %v", err)
		}
		if err := d.DisableRule("Email"); err != nil {
			t.Fatalf("DisableRule failed: %v", err)
		}
		if err := d.EnableRule("nope"); err == nil {
			t.Error("Expected error for unknown rule")
		}
	})

	t.Run("holder swap", func(t *testing.T) {
		first, _ := New(config.DetectionConfig{Detectors: []string{"all"}}, testLogger())
		second, _ := New(config.DetectionConfig{Detectors: []string{"Email"}}, testLogger())
		h := NewHolder(first)
		h.Swap(second)
		if h.Load() != second {
			t.Error("Expected swapped detector")
		}
	})
}
