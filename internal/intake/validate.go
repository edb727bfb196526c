package intake

import (
	"fmt"
	"regexp"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,4}$`)

// ValidationKind distinguishes the two rejection reasons.
type ValidationKind int

// Validation kinds.
const (
	MissingField ValidationKind = iota + 1
	InvalidEmail
)

// ValidationError rejects a request before any downstream call.
type ValidationError struct {
	Kind  ValidationKind
	Field string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case InvalidEmail:
		return "email fails syntax check"
	default:
		return "invalid request"
	}
}

// Message maps the error onto the fixed caller vocabulary.
func (e *ValidationError) Message() string {
	if e.Kind == InvalidEmail {
		return MessageInvalidEmail
	}
	return MessageMissingField
}

// Validate checks required fields and email syntax. No MX or DNS lookups are
// made.
func Validate(req SubscriberRequest) (Subscriber, error) {
	if req.Email == "" {
		return Subscriber{}, &ValidationError{Kind: MissingField, Field: "email"}
	}
	if req.Status == "" {
		return Subscriber{}, &ValidationError{Kind: MissingField, Field: "status"}
	}
	if !emailPattern.MatchString(req.Email) {
		return Subscriber{}, &ValidationError{Kind: InvalidEmail, Field: "email"}
	}
	sub := Subscriber{
		Email:  req.Email,
		Status: req.Status,
		Name:   req.Name,
	}
	if req.Lists != nil {
		sub.Lists = append([]ListRef{}, req.Lists...)
	}
	return sub, nil
}
