package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/digestbot/internal/core"
)

// Rule is a compiled exclude expression. An article is dropped when the
// expression evaluates to true.
//
// Available variables: title, link, source, published_at, age_hours, has_date.
type Rule struct {
	source  string
	program *vm.Program
}

func CompileRule(source string) (*Rule, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(ruleEnv(core.Article{}, time.Time{})))
	if err != nil {
		return nil, &core.ConfigurationError{Field: "exclude_rule", Reason: err.Error()}
	}
	return &Rule{source: source, program: program}, nil
}

func (r *Rule) String() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Excludes evaluates the rule for one article. An error means the rule could
// not decide; callers keep the article.
func (r *Rule) Excludes(article core.Article, now time.Time) (bool, error) {
	if r == nil {
		return false, nil
	}
	result, err := expr.Run(r.program, ruleEnv(article, now))
	if err != nil {
		return false, fmt.Errorf("evaluate exclude rule: %w", err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("exclude rule returned %T, want bool", result)
	}
	return matched, nil
}

func ruleEnv(article core.Article, now time.Time) map[string]interface{} {
	ageHours := 0.0
	if article.HasDate() && !now.IsZero() {
		ageHours = now.Sub(article.PublishedAt).Hours()
	}
	return map[string]interface{}{
		"title":        article.Title,
		"link":         article.Link,
		"source":       article.Source,
		"published_at": article.PublishedAt,
		"age_hours":    ageHours,
		"has_date":     article.HasDate(),
	}
}
