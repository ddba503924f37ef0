/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submission

import (
	"fmt"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// MaxTaglineLen is the App Store limit for the tagline field.
const MaxTaglineLen = 62

// DefaultProhibitedPhrases are marketing claims the App Store review rejects listings for.
var DefaultProhibitedPhrases = []string{
	"shopify approved",
	"shopify certified",
	"the best app",
	"number one",
	"#1 app",
	"world's first",
	"guaranteed sales",
	"top rated",
}

// ValidationError lists the problems that keep a submission from being exported.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submission is not ready for export: %s", strings.Join(e.Issues, "; "))
}

// Screener finds prohibited phrases in listing text.
// Phrases are matched with a single Aho-Corasick pass over the lowercased input.
type Screener struct {
	phrases []string
	matcher *ahocorasick.Matcher
}

// NewScreener creates a Screener for the given phrase dictionary.
// DefaultProhibitedPhrases is used when the dictionary is empty.
func NewScreener(phrases []string) *Screener {
	if len(phrases) == 0 {
		phrases = DefaultProhibitedPhrases
	}
	lowered := make([]string, len(phrases))
	for i, phrase := range phrases {
		lowered[i] = strings.ToLower(phrase)
	}
	return &Screener{phrases: lowered, matcher: ahocorasick.NewStringMatcher(lowered)}
}

// Find returns prohibited phrases present in the text, each at most once.
func (s *Screener) Find(text string) []string {
	hits := s.matcher.MatchThreadSafe([]byte(strings.ToLower(text)))
	found := make([]string, 0, len(hits))
	for _, idx := range hits {
		found = append(found, s.phrases[idx])
	}
	return found
}

// Validate checks that the submission is complete and its listing passes screening.
// A *ValidationError with the full issue list is returned for an incomplete submission.
func (sub *Submission) Validate(screener *Screener) error {
	var issues []string

	if sub.Listing.AppName == "" {
		issues = append(issues, "app name is required")
	}
	if sub.Listing.Tagline == "" {
		issues = append(issues, "tagline is required")
	} else if len(sub.Listing.Tagline) > MaxTaglineLen {
		issues = append(issues, fmt.Sprintf("tagline is longer than %d characters", MaxTaglineLen))
	}
	if sub.Listing.Description == "" {
		issues = append(issues, "description is required")
	}
	if sub.Listing.Category == "" {
		issues = append(issues, "category is required")
	}
	if sub.Listing.SupportEmail == "" {
		issues = append(issues, "support email is required")
	}

	if screener != nil {
		listingText := strings.Join([]string{
			sub.Listing.AppName,
			sub.Listing.Tagline,
			sub.Listing.Description,
			strings.Join(sub.Listing.Features, " "),
			strings.Join(sub.Listing.Keywords, " "),
		}, "\n")
		for _, phrase := range screener.Find(listingText) {
			issues = append(issues, fmt.Sprintf("listing contains prohibited phrase %q", phrase))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
