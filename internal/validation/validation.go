// Package validation measures retrieval quality against an indexed
// document. Queries are data-driven, loaded from a YAML suite, so they can
// be changed without rebuilding:
//
//	document: biology
//	limit: 5
//	tier1:
//	  - id: T1-Q1
//	    query: what does an enzyme do
//	    expected_pages: [1]
//	tier2:
//	  - id: T2-Q1
//	    query: energy from glucose
//	    expected_text: ["cellular respiration"]
//	negative:
//	  - id: N-Q1
//	    query: "%%%"
//
// Tier 1 queries must pass for a suite to pass. Tier 2 queries are tracked
// but not required. Negative queries only need to complete without crashing;
// a validation error is an acceptable outcome.
package validation

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/studyrag/internal/search"
)

// DefaultLimit is the result depth a query is judged on.
const DefaultLimit = 5

// QuerySpec defines a test query with expected results.
type QuerySpec struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name,omitempty"`
	Query string `yaml:"query" json:"query"`

	// ExpectedPages passes when any result comes from one of these pages.
	ExpectedPages []int `yaml:"expected_pages" json:"expected_pages,omitempty"`

	// ExpectedText passes when any result contains one of these strings,
	// compared case-insensitively.
	ExpectedText []string `yaml:"expected_text" json:"expected_text,omitempty"`

	Notes string `yaml:"notes" json:"-"`
	Tier  int    `yaml:"-" json:"tier"`
}

// QueryConfig is a query suite loaded from YAML.
type QueryConfig struct {
	Document string      `yaml:"document"`
	Limit    int         `yaml:"limit"`
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

// LoadQueries reads and checks a query suite.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file %s: %w", path, err)
	}
	return ParseQueries(data)
}

// ParseQueries parses a query suite, assigning tiers by section.
func ParseQueries(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse queries YAML: %w", err)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	seen := make(map[string]bool)
	sections := []struct {
		specs []QuerySpec
		tier  int
	}{{cfg.Tier1, 1}, {cfg.Tier2, 2}, {cfg.Negative, 0}}
	for _, s := range sections {
		for i := range s.specs {
			spec := &s.specs[i]
			spec.Tier = s.tier
			if spec.ID == "" {
				return nil, fmt.Errorf("query %q has no id", spec.Query)
			}
			if seen[spec.ID] {
				return nil, fmt.Errorf("duplicate query id %s", spec.ID)
			}
			seen[spec.ID] = true
			if s.tier != 0 && len(spec.ExpectedPages) == 0 && len(spec.ExpectedText) == 0 {
				return nil, fmt.Errorf("query %s expects nothing; set expected_pages or expected_text", spec.ID)
			}
		}
	}
	return &cfg, nil
}

// TestResult captures the outcome of a single query test.
type TestResult struct {
	Spec     QuerySpec     `json:"spec"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ns"`
	TopPages []int         `json:"top_pages"`

	// MatchedAt is the rank of the first matching result, -1 if none.
	MatchedAt int    `json:"matched_at"`
	Degraded  bool   `json:"degraded,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ValidationResult captures results of a full validation run.
type ValidationResult struct {
	Timestamp  time.Time    `json:"timestamp"`
	Document   string       `json:"document"`
	Limit      int          `json:"limit"`
	Tier1      []TestResult `json:"tier1"`
	Tier2      []TestResult `json:"tier2"`
	Negative   []TestResult `json:"negative"`
	Tier1Pass  int          `json:"tier1_pass"`
	Tier1Total int          `json:"tier1_total"`
	Tier2Pass  int          `json:"tier2_pass"`
	Tier2Total int          `json:"tier2_total"`
	NegPass    int          `json:"negative_pass"`
	NegTotal   int          `json:"negative_total"`

	// MRR is the mean reciprocal rank over tier 1 and tier 2 queries.
	MRR float64 `json:"mrr"`
}

// Passed reports whether every tier 1 and negative query passed.
func (r *ValidationResult) Passed() bool {
	return r.Tier1Pass == r.Tier1Total && r.NegPass == r.NegTotal
}

// Validator runs query suites against one document.
type Validator struct {
	engine     search.StudyEngine
	documentID string
	limit      int
}

// NewValidator creates a validator for documentID. limit <= 0 uses
// DefaultLimit.
func NewValidator(engine search.StudyEngine, documentID string, limit int) (*Validator, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if err := search.ValidateDocumentID(documentID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Validator{engine: engine, documentID: documentID, limit: limit}, nil
}

// RunQuery executes a single query and returns the result.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{
		Spec:      spec,
		MatchedAt: -1,
	}

	resp, err := v.engine.Search(ctx, search.SearchRequest{
		DocumentID: v.documentID,
		Query:      spec.Query,
		Limit:      v.limit,
	})
	result.Duration = time.Since(start)

	if err != nil {
		// Negative queries may be rejected.
		if spec.Tier == 0 {
			result.Passed = true
		} else {
			result.Error = err.Error()
		}
		return result
	}

	result.Degraded = resp.Degraded
	for _, r := range resp.Results {
		result.TopPages = append(result.TopPages, r.Page)
	}

	if spec.Tier == 0 {
		result.Passed = true
		return result
	}
	result.MatchedAt = firstMatch(resp.Results, spec)
	result.Passed = result.MatchedAt >= 0
	return result
}

// RunAll executes every query in cfg and returns results.
func (v *Validator) RunAll(ctx context.Context, cfg *QueryConfig) *ValidationResult {
	result := &ValidationResult{
		Timestamp: time.Now(),
		Document:  v.documentID,
		Limit:     v.limit,
	}

	var reciprocal float64
	ranked := 0
	run := func(specs []QuerySpec, out *[]TestResult, pass, total *int) {
		for _, spec := range specs {
			if ctx.Err() != nil {
				return
			}
			tr := v.RunQuery(ctx, spec)
			*out = append(*out, tr)
			*total++
			if tr.Passed {
				*pass++
			}
			if spec.Tier != 0 {
				ranked++
				if tr.MatchedAt >= 0 {
					reciprocal += 1 / float64(tr.MatchedAt+1)
				}
			}
		}
	}

	run(cfg.Tier1, &result.Tier1, &result.Tier1Pass, &result.Tier1Total)
	run(cfg.Tier2, &result.Tier2, &result.Tier2Pass, &result.Tier2Total)
	run(cfg.Negative, &result.Negative, &result.NegPass, &result.NegTotal)

	if ranked > 0 {
		result.MRR = reciprocal / float64(ranked)
	}
	return result
}

// firstMatch returns the rank of the first result meeting spec, or -1.
func firstMatch(results []search.Result, spec QuerySpec) int {
	for i, r := range results {
		if slices.Contains(spec.ExpectedPages, r.Page) {
			return i
		}
		content := strings.ToLower(r.Content)
		for _, text := range spec.ExpectedText {
			if strings.Contains(content, strings.ToLower(text)) {
				return i
			}
		}
	}
	return -1
}
