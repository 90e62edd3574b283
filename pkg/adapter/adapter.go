// Package adapter translates operational source records into ledger facts.
//
// Adapters are pure: they read nothing and write nothing. Classification
// tables are injected at construction, and a nil fact means there is nothing
// to post.
package adapter

// EventClassifier maps free-text event categories to income category codes.
type EventClassifier interface {
	ClassifyEvent(categoryText string) string
}

// PayrollClassifier maps payroll concept codes to expense category codes.
type PayrollClassifier interface {
	PayrollCategory(conceptCode string) string
}

// SponsorshipClassifier names the income category of sponsorships.
type SponsorshipClassifier interface {
	SponsorshipCode() string
}
