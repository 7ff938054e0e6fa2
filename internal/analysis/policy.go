// Package analysis folds the insights of a project's completed files into a
// single ProjectAnalysis.
package analysis

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"dealdossier/internal/domain"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// DedupMode selects which observation of a metric wins.
type DedupMode string

const (
	DedupLatestUpload   DedupMode = "latest_upload_wins"
	DedupSourcePriority DedupMode = "source_priority"
)

// Thresholds drive the metric-based risk and opportunity rules and the recency score.
// Growth and margin values are percentages.
type Thresholds struct {
	NegativeGrowth  float64 `yaml:"negative_growth"`
	HighGrowth      float64 `yaml:"high_growth"`
	LowMargin       float64 `yaml:"low_margin"`
	HighMargin      float64 `yaml:"high_margin"`
	RecencyFullDays int     `yaml:"recency_full_days"`
	RecencyZeroDays int     `yaml:"recency_zero_days"`
}

// AreaRule scores coverage of one data area.
type AreaRule struct {
	Target   int      `yaml:"target"`
	Keywords []string `yaml:"keywords"`
}

type CoverageRules struct {
	Financial   AreaRule `yaml:"financial"`
	Operational AreaRule `yaml:"operational"`
	Market      AreaRule `yaml:"market"`
	Legal       AreaRule `yaml:"legal"`
}

// KeywordRule raises a risk or an opportunity when any keyword appears in a file.
// Level is a severity for risks and a potential for opportunities.
type KeywordRule struct {
	Category    string   `yaml:"category"`
	Title       string   `yaml:"title"`
	Level       string   `yaml:"level"`
	Keywords    []string `yaml:"keywords"`
	Description string   `yaml:"description"`
	Mitigation  string   `yaml:"mitigation,omitempty"`
	Timeline    string   `yaml:"timeline,omitempty"`
}

// Policy holds every tunable of the aggregation.
type Policy struct {
	Name           string            `yaml:"name"`
	Dedup          DedupMode         `yaml:"dedup"`
	SourcePriority []domain.Strategy `yaml:"source_priority"`
	Similarity     float64           `yaml:"similarity"`
	Thresholds     Thresholds        `yaml:"thresholds"`
	Aliases        map[string]string `yaml:"aliases"`
	Coverage       CoverageRules     `yaml:"coverage"`
	Risks          []KeywordRule     `yaml:"risks"`
	Opportunities  []KeywordRule     `yaml:"opportunities"`
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("analysis: embedded policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file. An empty path yields the embedded default.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analysis.LoadPolicy: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("analysis.LoadPolicy: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("analysis.LoadPolicy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes YAML, fills unset scalars with defaults and validates the result.
// Rule lists and aliases are taken as given.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) applyDefaults() {
	if p.Name == "" {
		p.Name = "custom"
	}
	if p.Dedup == "" {
		p.Dedup = DedupLatestUpload
	}
	if len(p.SourcePriority) == 0 {
		p.SourcePriority = append([]domain.Strategy(nil), domain.StrategyPDF, domain.StrategySpreadsheet,
			domain.StrategyDocx, domain.StrategyCSV, domain.StrategyJSON, domain.StrategyAudio)
	}
	if p.Similarity == 0 {
		p.Similarity = 0.85
	}
	if p.Thresholds.RecencyFullDays == 0 {
		p.Thresholds.RecencyFullDays = 30
	}
	if p.Thresholds.RecencyZeroDays == 0 {
		p.Thresholds.RecencyZeroDays = 365
	}
	for _, a := range []*AreaRule{&p.Coverage.Financial, &p.Coverage.Operational, &p.Coverage.Market, &p.Coverage.Legal} {
		if a.Target <= 0 {
			a.Target = 1
		}
	}
}

// Validate checks the policy for values the engine cannot work with.
func (p *Policy) Validate() error {
	switch p.Dedup {
	case DedupLatestUpload, DedupSourcePriority:
	default:
		return fmt.Errorf("%w: unknown dedup mode %q", domain.ErrValidation, p.Dedup)
	}
	for _, s := range p.SourcePriority {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown strategy %q in source_priority", domain.ErrValidation, s)
		}
	}
	if p.Similarity <= 0 || p.Similarity > 1 {
		return fmt.Errorf("%w: similarity must be in (0,1], got %v", domain.ErrValidation, p.Similarity)
	}
	if p.Thresholds.RecencyFullDays >= p.Thresholds.RecencyZeroDays {
		return fmt.Errorf("%w: recency_full_days must be below recency_zero_days", domain.ErrValidation)
	}
	for _, r := range p.Risks {
		switch domain.Severity(r.Level) {
		case domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow:
		default:
			return fmt.Errorf("%w: risk %q has unknown level %q", domain.ErrValidation, r.Title, r.Level)
		}
	}
	return nil
}

// priority returns the rank of s in the source priority list.
func (p *Policy) priority(s domain.Strategy) int {
	for i, v := range p.SourcePriority {
		if v == s {
			return i
		}
	}
	return len(p.SourcePriority)
}
