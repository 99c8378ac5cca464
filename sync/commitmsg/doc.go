// Package commitmsg models git commit messages as a subject line plus an
// optional body. Parse splits a raw message read from a local repository;
// Message.String renders the canonical "subject, blank line, body" form
// submitted to remote host APIs when commits are recreated there.
package commitmsg
