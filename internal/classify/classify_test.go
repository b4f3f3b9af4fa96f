package classify

import (
	"math"
	"testing"
)

func TestClassifyGitHubRepositoryDomain(t *testing.T) {
	cat, ok := Classify("https://github.com/acme/widget", "Widget Repo")
	if !ok {
		t.Fatalf("expected a domain match for github.com")
	}
	if cat.Type != TypeRepository || cat.Tech != "git" {
		t.Fatalf("expected repository/git, got %s/%s", cat.Type, cat.Tech)
	}
	if cat.Confidence != 0.8 {
		t.Fatalf("expected domain confidence 0.8, got %f", cat.Confidence)
	}
}

func TestClassifyNpmPackageDomain(t *testing.T) {
	cat, ok := Classify("https://npmjs.com/package/left-pad", "left-pad")
	if !ok {
		t.Fatalf("expected a domain match for npmjs.com")
	}
	if cat.Type != TypePackage || cat.Tech != "node" {
		t.Fatalf("expected package/node, got %s/%s", cat.Type, cat.Tech)
	}
	if cat.Confidence != 0.8 {
		t.Fatalf("expected domain confidence 0.8, got %f", cat.Confidence)
	}
}

func TestClassifyTechnologyPatternCountsOccurrences(t *testing.T) {
	cat, ok := Classify("https://example.com/react-tutorial", "Learn React and JSX")
	if !ok {
		t.Fatalf("expected a technology match")
	}
	if cat.Type != TypeTechnology || cat.Tech != "react" {
		t.Fatalf("expected technology/react, got %s/%s", cat.Type, cat.Tech)
	}
	// "react" occurs twice in the lowercased search string; "jsx" never
	// contributes because the first matching pattern decides the score.
	if math.Abs(cat.Confidence-0.6) > 1e-9 {
		t.Fatalf("expected confidence 0.6, got %f", cat.Confidence)
	}
}

func TestClassifyConfidenceClamp(t *testing.T) {
	cat, ok := Classify("https://example.com/python", "python python python python python")
	if !ok {
		t.Fatalf("expected a technology match")
	}
	if cat.Confidence != 0.9 {
		t.Fatalf("expected clamped confidence 0.9, got %f", cat.Confidence)
	}
}

func TestClassifyMiss(t *testing.T) {
	if cat, ok := Classify("https://example.com/cooking", "Sourdough Basics"); ok {
		t.Fatalf("expected no match, got %+v", cat)
	}
	if _, ok := Classify("", ""); ok {
		t.Fatalf("expected no match for empty inputs")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	url, title := "https://example.com/vue-and-react", "Comparing React with Vue"
	first, ok := Classify(url, title)
	if !ok {
		t.Fatalf("expected a match")
	}
	for i := 0; i < 10; i++ {
		next, ok := Classify(url, title)
		if !ok || next != first {
			t.Fatalf("classification drifted on call %d: %+v vs %+v", i, next, first)
		}
	}
	// react is listed before vue, so react wins even though both match.
	if first.Tech != "react" {
		t.Fatalf("expected first-listed technology react, got %s", first.Tech)
	}
}

func TestClassifyDomainMatchIgnoresTitle(t *testing.T) {
	// The domain table only inspects the URL, so a domain name appearing in
	// the title alone must not trigger it.
	if _, ok := Classify("https://example.com/links", "my github.com favourites"); ok {
		t.Fatalf("expected no match when the domain is only in the title")
	}
}

func TestFolderName(t *testing.T) {
	cases := []struct {
		cat  Category
		want string
	}{
		{Category{Type: TypeTechnology, Tech: "react"}, "Dev - React"},
		{Category{Type: TypeTechnology, Tech: "python"}, "Dev - Python"},
		{Category{Type: TypeRepository, Tech: "git"}, "Dev - Repositories"},
		{Category{Type: TypeDocumentation, Tech: "general"}, "Dev - Documentation"},
		{Category{Type: TypePackage, Tech: "node"}, "Dev - Packages"},
		{Category{Type: TypeGeneral, Tech: "general"}, "Dev - General"},
	}
	for _, tc := range cases {
		if got := FolderName(tc.cat); got != tc.want {
			t.Fatalf("FolderName(%+v) = %q, want %q", tc.cat, got, tc.want)
		}
		if again := FolderName(tc.cat); again != tc.want {
			t.Fatalf("FolderName not stable for %+v", tc.cat)
		}
	}
}
