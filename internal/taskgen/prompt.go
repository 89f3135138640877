package taskgen

import (
	"fmt"
	"strings"
)

// GenerateRequest carries the lesson material a task is generated from.
type GenerateRequest struct {
	LessonTitle       string
	LessonDescription string
	LessonContent     string
	Style             string // e.g. "beginner", "concise"
}

const systemPrompt = `You are an exercise author for a programming course.
You create one small Python coding task from the lesson material you are given.

Rules:
- Use ONLY material that is present in the lesson content. Never reference
  external examples, other lessons, or "the example above": every data
  literal the task needs must be written out literally in both the
  description and the starter code.
- The starter code must already bind every list/dict literal mentioned in
  the description, with an empty solution slot for the learner.
- The solution code must run standalone and produce the expected output.
- Prefer unambiguous verbs: say "print each value on its own line",
  "collect the results into a list named X", or "compute the sum and print
  it" so the output shape cannot be misread.
- If the lesson contains no executable material (pure theory, installation
  instructions, etc.), set "is_needed" to false and explain in "skip_reason".

Respond with a single JSON object and nothing else:
{
  "title": "...",
  "description": "...",
  "starter_code": "...",
  "expected_output": "...",
  "solution_code": "...",
  "hints": ["...", "..."],
  "is_needed": true,
  "skip_reason": ""
}`

func buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lesson title: %s\n", req.LessonTitle)
	if req.LessonDescription != "" {
		fmt.Fprintf(&b, "Lesson description: %s\n", req.LessonDescription)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "Task style: %s\n", req.Style)
	}
	b.WriteString("\nLesson content:\n")
	b.WriteString(req.LessonContent)
	b.WriteString("\n\nCreate the task now.")
	return b.String()
}
