// Package rules provides the immutable classification tables used by the
// source adapters: category metadata, event keyword rules and the payroll
// concept map.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// CategoryMapping describes a category code and its display metadata.
type CategoryMapping struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// KeywordRule maps event category text to an income category code.
type KeywordRule struct {
	Code     string   `yaml:"code"`
	Keywords []string `yaml:"keywords"`
}

// ConceptMapping maps a payroll concept code to an expense category code.
type ConceptMapping struct {
	ConceptCode  string `yaml:"concept_code"`
	CategoryCode string `yaml:"category_code"`
}

// Config represents the complete rules document.
type Config struct {
	Categories struct {
		Income  []CategoryMapping `yaml:"income"`
		Expense []CategoryMapping `yaml:"expense"`
	} `yaml:"categories"`
	Events struct {
		DefaultCode  string        `yaml:"default_code"`
		KeywordRules []KeywordRule `yaml:"keyword_rules"`
	} `yaml:"events"`
	Payroll struct {
		DefaultCode string           `yaml:"default_code"`
		Concepts    []ConceptMapping `yaml:"concepts"`
	} `yaml:"payroll"`
	Sponsorship struct {
		CategoryCode string `yaml:"category_code"`
	} `yaml:"sponsorship"`
}

// Rules is the compiled, read-only form of a Config.
// It is safe for concurrent use.
type Rules struct {
	income       map[string]ledger.CategoryMeta
	expense      map[string]ledger.CategoryMeta
	keywordRules []KeywordRule // keywords normalized
	eventDefault string
	concepts     map[string]string
	payrollCode  string
	sponsorCode  string
}

// Default returns the rules embedded in the binary.
func Default() *Rules {
	r, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// Load reads rules from a YAML file. An empty path returns Default().
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", path, err)
	}
	return r, nil
}

// Parse compiles a YAML rules document.
func Parse(data []byte) (*Rules, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return compile(config)
}

func compile(config Config) (*Rules, error) {
	r := &Rules{
		income:       make(map[string]ledger.CategoryMeta),
		expense:      make(map[string]ledger.CategoryMeta),
		concepts:     make(map[string]string),
		eventDefault: strings.TrimSpace(config.Events.DefaultCode),
		payrollCode:  strings.TrimSpace(config.Payroll.DefaultCode),
		sponsorCode:  strings.TrimSpace(config.Sponsorship.CategoryCode),
	}

	if r.eventDefault == "" {
		return nil, fmt.Errorf("events.default_code is required")
	}
	if r.payrollCode == "" {
		return nil, fmt.Errorf("payroll.default_code is required")
	}
	if r.sponsorCode == "" {
		return nil, fmt.Errorf("sponsorship.category_code is required")
	}

	for _, mapping := range config.Categories.Income {
		if mapping.Code == "" {
			return nil, fmt.Errorf("income category without code")
		}
		r.income[mapping.Code] = ledger.CategoryMeta{Name: mapping.Name, Description: mapping.Description}
	}
	for _, mapping := range config.Categories.Expense {
		if mapping.Code == "" {
			return nil, fmt.Errorf("expense category without code")
		}
		r.expense[mapping.Code] = ledger.CategoryMeta{Name: mapping.Name, Description: mapping.Description}
	}

	for i, rule := range config.Events.KeywordRules {
		if rule.Code == "" {
			return nil, fmt.Errorf("keyword rule %d has no code", i)
		}
		compiled := KeywordRule{Code: rule.Code}
		for _, keyword := range rule.Keywords {
			if k := Normalize(keyword); k != "" {
				compiled.Keywords = append(compiled.Keywords, k)
			}
		}
		if len(compiled.Keywords) == 0 {
			return nil, fmt.Errorf("keyword rule %s has no keywords", rule.Code)
		}
		r.keywordRules = append(r.keywordRules, compiled)
	}

	for _, mapping := range config.Payroll.Concepts {
		if mapping.ConceptCode == "" || mapping.CategoryCode == "" {
			return nil, fmt.Errorf("payroll concept mapping needs concept_code and category_code")
		}
		r.concepts[strings.ToUpper(mapping.ConceptCode)] = mapping.CategoryCode
	}

	return r, nil
}

// CategoryMeta returns the display metadata for a category code.
// It implements ledger.Catalog.
func (r *Rules) CategoryMeta(kind ledger.Kind, code string) (ledger.CategoryMeta, bool) {
	var meta ledger.CategoryMeta
	var ok bool
	switch kind {
	case ledger.KindIncome:
		meta, ok = r.income[code]
	case ledger.KindExpense:
		meta, ok = r.expense[code]
	}
	return meta, ok
}

// ClassifyEvent maps free-text event category to an income category code.
//
// Rules are tried in document order and the first rule with a matching
// keyword wins. A keyword matches when a word of the normalized text starts
// with it. Text that matches nothing gets the events default code.
func (r *Rules) ClassifyEvent(categoryText string) string {
	words := strings.FieldsFunc(Normalize(categoryText), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	if len(words) == 0 {
		return r.eventDefault
	}

	for _, rule := range r.keywordRules {
		for _, keyword := range rule.Keywords {
			for _, word := range words {
				if strings.HasPrefix(word, keyword) {
					return rule.Code
				}
			}
		}
	}
	return r.eventDefault
}

// EventDefaultCode returns the code used for unclassified events.
func (r *Rules) EventDefaultCode() string {
	return r.eventDefault
}

// PayrollCategory returns the expense category for a payroll concept code,
// falling back to the payroll default code.
func (r *Rules) PayrollCategory(conceptCode string) string {
	if code, ok := r.concepts[strings.ToUpper(strings.TrimSpace(conceptCode))]; ok {
		return code
	}
	return r.payrollCode
}

// SponsorshipCode returns the income category for sponsorships.
func (r *Rules) SponsorshipCode() string {
	return r.sponsorCode
}

// Normalize lowercases s and strips diacritics, so "Fútbol" and "futbol" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
