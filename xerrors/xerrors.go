// Package xerrors extends Go's stdlib errors pkg.
package xerrors

import "errors"

// Tag classifies err with the given tags without changing its message.
// errors.Is and errors.As match any of the tags first and then fall back to err,
// so a caller can check the kind of an error (like "not found") while the message
// keeps only what err says.
//
// Tagging a nil error returns nil. Tagging without tags returns err as is.
func Tag(err error, tags ...error) error {
	if err == nil || len(tags) == 0 {
		return err
	}
	return &tagged{err: err, tags: tags}
}

type tagged struct {
	err  error
	tags []error
}

func (t *tagged) Is(target error) bool {
	for _, tag := range t.tags {
		if errors.Is(tag, target) {
			return true
		}
	}
	return errors.Is(t.err, target)
}

func (t *tagged) As(target any) bool {
	for _, tag := range t.tags {
		if errors.As(tag, target) {
			return true
		}
	}
	return errors.As(t.err, target)
}

func (t *tagged) Unwrap() error {
	return t.err
}

func (t *tagged) Error() string {
	return t.err.Error()
}
