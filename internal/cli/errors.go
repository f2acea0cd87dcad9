package cli

import (
	"fmt"
	"strings"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type ambiguousError struct {
	ref  string
	urls []string
}

func (e ambiguousError) Error() string {
	return fmt.Sprintf("%q matches more than one project (%s); pass the URL or path instead", e.ref, strings.Join(e.urls, ", "))
}

// actionFailedError is returned after the result was printed, so the process
// exits non-zero without repeating the notice.
type actionFailedError struct {
	notice string
}

func (e actionFailedError) Error() string { return e.notice }
