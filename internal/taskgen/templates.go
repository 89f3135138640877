package taskgen

import (
	"embed"
	"fmt"
	"strings"

	"github.com/Ip-59/teachai/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// fallbackFile is the YAML structure for the hand-authored fallback tasks
// used when the model response cannot be parsed.
type fallbackFile struct {
	Templates []fallbackTemplate `yaml:"templates"`
}

type fallbackTemplate struct {
	ID       string   `yaml:"id"`
	Keywords []string `yaml:"keywords"` // empty = generic default
	Task     struct {
		Title          string   `yaml:"title"`
		Description    string   `yaml:"description"`
		StarterCode    string   `yaml:"starter_code"`
		ExpectedOutput string   `yaml:"expected_output"`
		SolutionCode   string   `yaml:"solution_code"`
		Hints          []string `yaml:"hints"`
	} `yaml:"task"`
}

// TemplateSet holds the fallback tasks keyed by lesson-title keywords.
type TemplateSet struct {
	templates []fallbackTemplate
}

// LoadTemplates parses the embedded fallback task templates.
func LoadTemplates() (*TemplateSet, error) {
	data, err := templateFS.ReadFile("templates/fallbacks.yaml")
	if err != nil {
		return nil, fmt.Errorf("read fallback templates: %w", err)
	}

	var file fallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fallback templates: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("no fallback templates defined")
	}

	return &TemplateSet{templates: file.Templates}, nil
}

// Match returns the fallback task whose keywords best match the lesson
// title, or the generic default when nothing matches.
func (ts *TemplateSet) Match(lessonTitle string) *domain.Task {
	title := strings.ToLower(lessonTitle)

	var generic *fallbackTemplate
	for i := range ts.templates {
		tpl := &ts.templates[i]
		if len(tpl.Keywords) == 0 {
			generic = tpl
			continue
		}
		for _, kw := range tpl.Keywords {
			if strings.Contains(title, strings.ToLower(kw)) {
				return tpl.toTask()
			}
		}
	}

	if generic != nil {
		return generic.toTask()
	}
	// Config guarantees a generic template; the guard keeps Match total.
	return ts.templates[len(ts.templates)-1].toTask()
}

func (tpl *fallbackTemplate) toTask() *domain.Task {
	return &domain.Task{
		Title:          tpl.Task.Title,
		Description:    tpl.Task.Description,
		StarterCode:    tpl.Task.StarterCode,
		ExpectedOutput: tpl.Task.ExpectedOutput,
		SolutionCode:   tpl.Task.SolutionCode,
		Hints:          tpl.Task.Hints,
		IsNeeded:       true,
	}
}
