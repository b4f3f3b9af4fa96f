// Package classify infers a technology category for a bookmark from its URL
// and title. Classification is a pure function over two static, ordered
// tables: a technology pattern table and a domain table.
package classify

import (
	"strings"
	"unicode"
)

type CategoryType string

const (
	TypeTechnology    CategoryType = "technology"
	TypeRepository    CategoryType = "repository"
	TypeDocumentation CategoryType = "documentation"
	TypePackage       CategoryType = "package"
	TypeGeneral       CategoryType = "general"
)

// Category is the inferred classification of a bookmark. It is ephemeral:
// computed on demand and only persisted embedded in an association record.
type Category struct {
	Type       CategoryType `json:"type"`
	Tech       string       `json:"tech"`
	Confidence float64      `json:"confidence"`
}

// Classify returns the category for a (url, title) pair, or false when
// neither table matches.
//
// Technology entries are tried first, in table order, and the first entry
// with any pattern present in the lowercased "url title" search string wins
// outright; confidence scales with how often that specific pattern occurs,
// capped at 0.9. Domain rules are tried second against the URL alone with a
// fixed confidence of 0.8. First match wins in both tables; the iteration
// order is the tie-break, not the confidence.
func Classify(url, title string) (Category, bool) {
	search := strings.ToLower(strings.TrimSpace(url + " " + title))
	if search == "" {
		return Category{}, false
	}
	for _, entry := range techPatterns {
		for _, pattern := range entry.Patterns {
			count := strings.Count(search, pattern)
			if count == 0 {
				continue
			}
			confidence := patternConfidenceStep * float64(count)
			if confidence > maxPatternConfidence {
				confidence = maxPatternConfidence
			}
			return Category{Type: TypeTechnology, Tech: entry.Tech, Confidence: confidence}, true
		}
	}
	loweredURL := strings.ToLower(url)
	for _, rule := range domainRules {
		if strings.Contains(loweredURL, rule.Domain) {
			return Category{Type: rule.Type, Tech: rule.Tech, Confidence: domainConfidence}, true
		}
	}
	return Category{}, false
}

// FolderName maps a category to the display name of the folder a classified
// bookmark belongs in.
func FolderName(c Category) string {
	switch c.Type {
	case TypeTechnology:
		return "Dev - " + capitalize(c.Tech)
	case TypeRepository:
		return "Dev - Repositories"
	case TypeDocumentation:
		return "Dev - Documentation"
	case TypePackage:
		return "Dev - Packages"
	default:
		return "Dev - General"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
