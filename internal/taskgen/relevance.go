package taskgen

import (
	"regexp"
	"strings"
)

// Relevance classifies whether a lesson warrants a coding task at all.
// It is exposed for orchestration layers that want to pre-filter lessons
// before paying for a generation call; Generate itself does not consult it
// and relies on the model's is_needed signal instead.

var codeSignalRe = regexp.MustCompile("(?m)(```|^\\s{4,}\\S|\\b(def|for|while|print|import|return|lambda)\\b|[A-Za-z_]\\w*\\s*=\\s*\\S)")

// Relevance returns true when the lesson content appears to contain
// executable material, plus a short reason usable as a skip notice.
func Relevance(lessonContent string) (bool, string) {
	if strings.TrimSpace(lessonContent) == "" {
		return false, "lesson has no content"
	}
	if !codeSignalRe.MatchString(lessonContent) {
		return false, "lesson contains no executable material"
	}
	return true, ""
}
