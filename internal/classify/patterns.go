package classify

const (
	patternConfidenceStep = 0.3
	maxPatternConfidence  = 0.9
	domainConfidence      = 0.8
)

type techEntry struct {
	Tech     string
	Patterns []string
}

type domainRule struct {
	Domain string
	Type   CategoryType
	Tech   string
}

// techPatterns is iterated in order and the first matching technology wins.
// The ordering is part of the contract: callers rely on reproducible
// tie-breaks, so this stays a slice rather than a map.
var techPatterns = []techEntry{
	{Tech: "react", Patterns: []string{"react", "jsx", "next.js", "redux"}},
	{Tech: "vue", Patterns: []string{"vue", "nuxt", "vuex"}},
	{Tech: "angular", Patterns: []string{"angular", "rxjs"}},
	{Tech: "svelte", Patterns: []string{"svelte"}},
	{Tech: "node", Patterns: []string{"node", "express", "nestjs", "fastify"}},
	{Tech: "typescript", Patterns: []string{"typescript", "tsconfig"}},
	{Tech: "javascript", Patterns: []string{"javascript", "ecmascript"}},
	{Tech: "python", Patterns: []string{"python", "django", "flask", "jupyter", "pandas"}},
	{Tech: "go", Patterns: []string{"golang", "goroutine", "go module"}},
	{Tech: "rust", Patterns: []string{"rust", "cargo"}},
	{Tech: "java", Patterns: []string{"java", "spring boot", "maven"}},
	{Tech: "kotlin", Patterns: []string{"kotlin"}},
	{Tech: "ruby", Patterns: []string{"ruby", "rails"}},
	{Tech: "php", Patterns: []string{"php", "laravel"}},
	{Tech: "csharp", Patterns: []string{"c#", "csharp", "dotnet"}},
	{Tech: "docker", Patterns: []string{"docker", "dockerfile"}},
	{Tech: "kubernetes", Patterns: []string{"kubernetes", "k8s", "kubectl", "helm chart"}},
	{Tech: "aws", Patterns: []string{"aws", "amazon web services", "cloudformation"}},
	{Tech: "database", Patterns: []string{"postgres", "mysql", "mongodb", "redis", "sqlite", "database"}},
	{Tech: "linux", Patterns: []string{"linux", "ubuntu", "debian", "bash script"}},
	{Tech: "git", Patterns: []string{"git tutorial", "git branch", "git merge", "version control"}},
}

// domainRules is checked only after no technology pattern fired, against the
// URL alone. Bare tokens like "git" or "npm" deliberately do not appear in
// techPatterns so hosting domains land here instead.
var domainRules = []domainRule{
	{Domain: "github.com", Type: TypeRepository, Tech: "git"},
	{Domain: "gitlab.com", Type: TypeRepository, Tech: "git"},
	{Domain: "bitbucket.org", Type: TypeRepository, Tech: "git"},
	{Domain: "npmjs.com", Type: TypePackage, Tech: "node"},
	{Domain: "pypi.org", Type: TypePackage, Tech: "python"},
	{Domain: "pkg.go.dev", Type: TypePackage, Tech: "go"},
	{Domain: "crates.io", Type: TypePackage, Tech: "rust"},
	{Domain: "stackoverflow.com", Type: TypeDocumentation, Tech: "general"},
	{Domain: "developer.mozilla.org", Type: TypeDocumentation, Tech: "javascript"},
	{Domain: "devdocs.io", Type: TypeDocumentation, Tech: "general"},
	{Domain: "readthedocs.io", Type: TypeDocumentation, Tech: "general"},
}
