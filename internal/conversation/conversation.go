// Package conversation keeps the append-only message log attached to one
// pivot view and renders the context string that is the orchestrator's only
// conversational memory.
package conversation

import (
	"fmt"
	"strings"

	"github.com/pivotlens/pivotlens/internal/pivot"
)

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a pivot session's conversation.
type Message struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	Expression  string `json:"expression,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}

// Log is the ordered, append-only message sequence for one view. A retried
// answer is popped before its replacement is appended, so the log never holds
// two answers to the same pending question.
type Log struct {
	msgs []Message
}

// NewLog returns an empty log.
func NewLog() *Log { return &Log{} }

// Append adds a message to the end of the log.
func (l *Log) Append(m Message) { l.msgs = append(l.msgs, m) }

// Messages returns the sequence in order.
func (l *Log) Messages() []Message { return l.msgs }

// Len returns the message count.
func (l *Log) Len() int { return len(l.msgs) }

// PopLast removes and returns the final message, supporting user-initiated
// re-asks.
func (l *Log) PopLast() (Message, bool) {
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	m := l.msgs[len(l.msgs)-1]
	l.msgs = l.msgs[:len(l.msgs)-1]
	return m, true
}

// LastAssistant returns the most recent assistant message with non-empty
// content.
func (l *Log) LastAssistant() (Message, bool) {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Role == RoleAssistant && l.msgs[i].Content != "" {
			return l.msgs[i], true
		}
	}
	return Message{}, false
}

const contextWindow = 10

// BuildContext renders the conversational memory handed to the language
// model: a preamble naming the pivot and its source dataset, the last 10
// messages role-tagged (assistant expressions included), then the active
// pivot configuration.
func BuildContext(l *Log, view *pivot.View, datasetName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing a pivot table named '%s' created from the dataset '%s'.\n", view.Name, datasetName)
	b.WriteString("\nPrevious conversation:\n")

	msgs := l.Messages()
	if len(msgs) > contextWindow {
		msgs = msgs[len(msgs)-contextWindow:]
	}
	for _, m := range msgs {
		role := "User"
		if m.Role == RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "\n%s: %s\n", role, m.Content)
		if m.Role == RoleAssistant && m.Expression != "" {
			fmt.Fprintf(&b, "\nExpression used: %s\n", m.Expression)
		}
	}

	b.WriteString("\nPivot table configuration:\n")
	b.WriteString(view.Spec.Describe())
	return b.String()
}
