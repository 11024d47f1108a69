package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugLength = 40

// Slug reduces a name to a lowercase, hyphen-separated identifier fragment.
func Slug(name string) string {
	var b strings.Builder

	lastHyphen := true // suppress leading hyphens

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)

			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')

			lastHyphen = true
		}

		if b.Len() >= maxSlugLength {
			break
		}
	}

	return strings.Trim(b.String(), "-")
}

// NewWorkflowID generates a workflow id in the persisted-schema format
// "workflow-{slug}-{timestamp}".
func NewWorkflowID(name string) string {
	return kindID("workflow", name)
}

// NewTemplateID generates a template id in the persisted-schema format
// "template-{slug}-{timestamp}".
func NewTemplateID(name string) string {
	return kindID("template", name)
}

func kindID(kind, name string) string {
	slug := Slug(name)
	if slug == "" {
		slug = "unnamed"
	}

	return fmt.Sprintf("%s-%s-%d", kind, slug, time.Now().UnixMilli())
}

// NewExecutionID generates an execution id in the persisted-schema format
// "exec-{timestamp}-{random}".
func NewExecutionID() string {
	return fmt.Sprintf("exec-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
