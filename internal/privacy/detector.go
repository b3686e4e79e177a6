package privacy

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"go.uber.org/zap"
)

// Detector runs the enabled subset of the rule registry over page text
type Detector struct {
	rules   []Rule
	mu      sync.RWMutex
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a new PII detector instance
func New(cfg config.DetectionConfig, log *logger.Logger) (*Detector, error) {
	detector := &Detector{
		rules:   AllRules(true),
		enabled: make(map[string]bool),
		logger:  log,
	}

	// Configure enabled detectors
	if err := detector.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("PII detector initialized",
		zap.Int("total_rules", len(detector.rules)),
		zap.Int("enabled_rules", detector.countEnabledRules()),
	)

	return detector, nil
}

// configureDetectors enables/disables detectors based on configuration
func (d *Detector) configureDetectors(detectors []string) error {
	// Disable all rules by default
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		found := false
		for _, rule := range d.rules {
			if rule.Name == detector {
				d.enabled[rule.Name] = true
				found = true
				break
			}
		}

		if !found {
			return fmt.Errorf("unknown detector: %s", detector)
		}
	}

	return nil
}

// Rules returns the enabled rules of the resolved tier, in registry order
func (d *Detector) Rules(includePremium bool) []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var rules []Rule
	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}
		if rule.Tier == TierPremium && !includePremium {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

// FindMatches scans one page's text with the enabled rules
func (d *Detector) FindMatches(text string, includePremium bool) []TextSpan {
	spans := FindMatches(text, d.Rules(includePremium))

	for _, f := range Summarize(spans) {
		d.logger.Debug("PII detected",
			zap.String("entity_type", f.EntityType),
			zap.Int("count", f.Count),
		)
	}

	return spans
}

// countEnabledRules returns the number of enabled detection rules
func (d *Detector) countEnabledRules() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, enabled := range d.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// GetEnabledRules returns the enabled rule names in registry order
func (d *Detector) GetEnabledRules() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var enabled []string
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			enabled = append(enabled, rule.Name)
		}
	}
	return enabled
}

// EnableRule enables a specific detection rule
func (d *Detector) EnableRule(ruleName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, rule := range d.rules {
		if rule.Name == ruleName {
			d.enabled[ruleName] = true
			d.logger.Info("Detection rule enabled", zap.String("rule", ruleName))
			return nil
		}
	}
	return fmt.Errorf("unknown rule: %s", ruleName)
}

// DisableRule disables a specific detection rule
func (d *Detector) DisableRule(ruleName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}

	d.enabled[ruleName] = false
	d.logger.Info("Detection rule disabled", zap.String("rule", ruleName))
	return nil
}

// Holder publishes the current detector. A config reload swaps the whole detector;
// scans already running keep the one they loaded.
type Holder struct {
	current atomic.Pointer[Detector]
}

// NewHolder returns a holder serving d.
func NewHolder(d *Detector) *Holder {
	h := &Holder{}
	h.current.Store(d)
	return h
}

// Load returns the current detector.
func (h *Holder) Load() *Detector {
	return h.current.Load()
}

// Swap replaces the current detector.
func (h *Holder) Swap(d *Detector) {
	h.current.Store(d)
}
