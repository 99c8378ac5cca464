package commitmsg

import "strings"

// Message is a commit message split into its subject
// (first line) and body (everything after the first
// blank line).
type Message struct {
	Subject string
	Body    string
}

// Parse splits a full commit message into subject and
// body. The subject is the first line; the body starts
// after the separating blank line. Trailing newlines
// are dropped.
func Parse(full string) Message {
	full = strings.TrimRight(full, "\n")

	subject, rest, found := strings.Cut(full, "\n")
	if !found {
		return Message{Subject: subject}
	}

	// The line after the subject is conventionally
	// blank; tolerate messages that omit it.
	rest = strings.TrimPrefix(rest, "\n")

	return Message{
		Subject: subject,
		Body:    rest,
	}
}

// String renders the message as subject, blank line,
// body. A message without body renders as the subject
// alone.
func (m Message) String() string {
	if m.Body == "" {
		return m.Subject
	}

	var sb strings.Builder

	sb.WriteString(m.Subject)
	sb.WriteString("\n\n")
	sb.WriteString(m.Body)

	return sb.String()
}

// Empty reports whether the message carries no text at
// all.
func (m Message) Empty() bool {
	return m.Subject == "" && m.Body == ""
}
