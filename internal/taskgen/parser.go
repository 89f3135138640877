package taskgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Ip-59/teachai/internal/domain"
)

// taskRecord mirrors the structured record exchanged with the LLM service.
// Field names are part of the generation contract.
type taskRecord struct {
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	StarterCode           string   `json:"starter_code"`
	ExpectedOutput        string   `json:"expected_output"`
	SolutionCode          string   `json:"solution_code"`
	Hints                 []string `json:"hints"`
	IsNeeded              *bool    `json:"is_needed"`
	SkipReason            string   `json:"skip_reason"`
	CheckVariable         string   `json:"check_variable"`
	ExpectedVariableValue any      `json:"expected_variable_value"`
}

// parseTask locates the outermost JSON object in a possibly prose-wrapped
// model response and decodes it into a Task, validating required fields.
func parseTask(response string) (*domain.Task, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var rec taskRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	// A skip record only needs a reason.
	if rec.IsNeeded != nil && !*rec.IsNeeded {
		if rec.SkipReason == "" {
			return nil, fmt.Errorf("%w: skip record missing skip_reason", domain.ErrMalformedResponse)
		}
		return &domain.Task{
			IsNeeded:   false,
			SkipReason: rec.SkipReason,
		}, nil
	}

	var missing []string
	for field, value := range map[string]string{
		"title":         rec.Title,
		"description":   rec.Description,
		"starter_code":  rec.StarterCode,
		"solution_code": rec.SolutionCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %v", domain.ErrMalformedResponse, missing)
	}

	return &domain.Task{
		Title:                 rec.Title,
		Description:           rec.Description,
		StarterCode:           rec.StarterCode,
		ExpectedOutput:        rec.ExpectedOutput,
		SolutionCode:          rec.SolutionCode,
		Hints:                 rec.Hints,
		IsNeeded:              true,
		CheckVariable:         rec.CheckVariable,
		ExpectedVariableValue: rec.ExpectedVariableValue,
	}, nil
}

// extractJSON returns the outermost balanced {...} object in s. Brace
// counting skips string literals so code snippets inside field values do
// not break the scan.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object found", domain.ErrMalformedResponse)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: unbalanced JSON object", domain.ErrMalformedResponse)
}
