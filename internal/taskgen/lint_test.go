package taskgen

import (
	"testing"

	"github.com/Ip-59/teachai/internal/domain"
)

func TestLintTask(t *testing.T) {
	tests := []struct {
		name      string
		task      domain.Task
		wantDiags int
	}{
		{
			name: "clean task",
			task: domain.Task{
				Description: "The list values = [1, 2, 3] is given. Print the sum.",
				StarterCode: "values = [1, 2, 3]\n# print the sum",
			},
			wantDiags: 0,
		},
		{
			name: "literal missing from starter code",
			task: domain.Task{
				Description: "The list values = [1, 2, 3] is given. Print the sum.",
				StarterCode: "# write your code here",
			},
			wantDiags: 1,
		},
		{
			name: "external reference",
			task: domain.Task{
				Description: "Use the example above to print the numbers.",
				StarterCode: "# write your code here",
			},
			wantDiags: 1,
		},
		{
			name: "dict literal bound",
			task: domain.Task{
				Description: "The mapping ages = {'ann': 30} is given.",
				StarterCode: "ages = {'ann': 30}",
			},
			wantDiags: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := lintTask(&tt.task)
			if len(diags) != tt.wantDiags {
				t.Errorf("lintTask = %v, want %d diagnostics", diags, tt.wantDiags)
			}
		})
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"code fence", "Example:\n```\nprint('hi')\n```", true},
		{"keyword", "We use a for loop to iterate.", true},
		{"assignment", "Set x = 5 to store the value.", true},
		{"pure theory", "Computers were invented long ago.", false},
		{"empty", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Relevance(tt.content)
			if got != tt.want {
				t.Errorf("Relevance = %v (%q), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("negative classification must carry a reason")
			}
		})
	}
}
