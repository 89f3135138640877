package taskgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ip-59/teachai/internal/domain"
)

// Advisory consistency checks over a generated task. These are best-effort
// pattern matches over natural language: they have false positives and
// false negatives by construction, so they are logged and never block
// task delivery.

var (
	// "numbers = [1, 2, 3]" or "data = {'a': 1}" mentioned in prose
	literalBindingRe = regexp.MustCompile(`([A-Za-z_]\w*)\s*=\s*(\[[^\]]*\]|\{[^}]*\})`)

	// references to material outside the task text
	externalRefRe = regexp.MustCompile(`(?i)(the\s+(example|code|snippet|list|data)\s+above|приведенн\S*\s+выше|as\s+shown\s+(earlier|above|previously))`)
)

// lintTask returns human-readable diagnostics for a generated task.
func lintTask(task *domain.Task) []string {
	var diags []string

	// Every data literal named in the description should be bound in the
	// starter code so the learner never has to retype source data.
	for _, m := range literalBindingRe.FindAllStringSubmatch(task.Description, -1) {
		name := m[1]
		if !containsBinding(task.StarterCode, name) {
			diags = append(diags, fmt.Sprintf("description mentions literal %q but starter code does not bind it", name))
		}
	}

	if externalRefRe.MatchString(task.Description) {
		diags = append(diags, "description refers to external material instead of containing the code literally")
	}

	return diags
}

func containsBinding(code, name string) bool {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, name) {
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, name))
			if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
				return true
			}
		}
	}
	return false
}
