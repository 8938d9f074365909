package prompt

import (
	"strings"

	"github.com/dmarchetti/vera/internal/profile"
	"github.com/dmarchetti/vera/internal/transcript"
)

// ContextWindow bounds how many stored turns are replayed upstream per
// request, regardless of total transcript length.
const ContextWindow = 10

// DefaultInstructions is the standing mentor persona. Deployments can
// override it with INSTRUCTIONS_FILE.
const DefaultInstructions = `You are Vera, a supportive career mentor. You help users prepare for
interviews, improve their resumes, plan career changes, and negotiate offers.
Keep answers practical and encouraging, and ask a clarifying question when the
user's goal is vague. If a question is outside career topics, gently steer the
conversation back. Suggest the resources page at /resources when the user asks
where to learn more.`

// resumeKeywords triggers the resume directive when any of them appears in
// the incoming message.
var resumeKeywords = []string{"resume", "résumé", "curriculum vitae", "cv"}

// Build assembles the bounded upstream prompt and materializes the pending
// user turn. It is a pure function of its inputs: the returned turn carries
// no ID or timestamp, those are assigned when the exchange is persisted.
func Build(instructions string, facts profile.Facts, tr transcript.Transcript, message string) (string, transcript.Turn) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))

	name := facts.DisplayName
	if strings.TrimSpace(name) == "" {
		name = "not provided"
	}
	b.WriteString("\n\n## About the user\n")
	b.WriteString("Name: ")
	b.WriteString(name)
	b.WriteString("\nResume: ")
	if facts.ResumeLink != nil {
		b.WriteString(*facts.ResumeLink)
	} else {
		b.WriteString("not provided")
	}
	b.WriteString("\n")

	if mentionsResume(message) {
		if facts.ResumeLink != nil {
			b.WriteString("\nThe user is asking about their resume. It is available at ")
			b.WriteString(*facts.ResumeLink)
			b.WriteString(" — refer to that exact link and do not invent another one.\n")
		} else {
			b.WriteString("\nThe user is asking about their resume, but none is on file. Do not invent a link; suggest uploading one from the profile page.\n")
		}
	}

	b.WriteString("\n## Recent conversation\n")
	for _, t := range tail(tr.Turns, ContextWindow) {
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString(roleLabel(transcript.RoleUser))
	b.WriteString(": ")
	b.WriteString(message)
	b.WriteString("\n")

	return b.String(), transcript.Turn{Role: transcript.RoleUser, Content: message}
}

func tail(turns []transcript.Turn, n int) []transcript.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func roleLabel(r transcript.Role) string {
	switch r {
	case transcript.RoleModel:
		return "Vera"
	case transcript.RoleSystem:
		return "System"
	default:
		return "User"
	}
}

func mentionsResume(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range resumeKeywords {
		if kw == "cv" {
			// Match "cv" only as a standalone word; it is a substring of too
			// many ordinary words.
			for _, f := range strings.FieldsFunc(lower, func(r rune) bool {
				return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
			}) {
				if f == "cv" {
					return true
				}
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
