package service

import (
	"errors"
	"fmt"
	"strings"

	dom "taskapi/internal/domain"

	"github.com/go-playground/validator/v10"
)

// TitleMaxLength is the longest accepted title, in characters.
const TitleMaxLength = 255

var validate = validator.New()

// Field is one optional JSON input value as received from the client.
type Field struct {
	Present   bool // key was in the payload
	Null      bool // value was JSON null
	NotString bool // value was neither a string nor null
	Value     string
}

// Supplied reports whether the field carries a value (present and not null).
func (f Field) Supplied() bool {
	return f.Present && !f.Null
}

// Str returns a field holding v.
func Str(v string) Field {
	return Field{Present: true, Value: v}
}

// CreateInput is the raw payload of a create request.
type CreateInput struct {
	Title       Field
	Description Field
	Status      Field
}

// UpdateInput is the raw payload of an update request. Every field is optional.
type UpdateInput struct {
	Title       Field
	Description Field
	Status      Field
}

// ValidationError maps each offending field to its reasons.
type ValidationError struct {
	Fields map[string][]string
	order  []string
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.Fields[field] = append(e.Fields[field], reason)
}

func (e *ValidationError) count() int {
	n := 0
	for _, reasons := range e.Fields {
		n += len(reasons)
	}
	return n
}

// Error returns the first reason, followed by how many more there are.
func (e *ValidationError) Error() string {
	if len(e.order) == 0 {
		return "validation failed"
	}
	first := e.Fields[e.order[0]][0]
	more := e.count() - 1
	switch {
	case more == 1:
		return first + " (and 1 more error)"
	case more > 1:
		return fmt.Sprintf("%s (and %d more errors)", first, more)
	}
	return first
}

func (e *ValidationError) orNil() error {
	if len(e.order) == 0 {
		return nil
	}
	return e
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateCreate checks a create payload: title is required and at most 255
// characters, description must be a string or null, status must be one of the
// known statuses when present (null included).
func ValidateCreate(in CreateInput) error {
	ve := &ValidationError{}
	checkTitle(ve, in.Title, true)
	checkDescription(ve, in.Description)
	checkStatus(ve, in.Status, false)
	return ve.orNil()
}

// ValidateUpdate checks an update payload. Same rules as ValidateCreate, but
// nothing is required; a null title or status means "leave unchanged".
func ValidateUpdate(in UpdateInput) error {
	ve := &ValidationError{}
	checkTitle(ve, in.Title, false)
	checkDescription(ve, in.Description)
	checkStatus(ve, in.Status, true)
	return ve.orNil()
}

func checkTitle(ve *ValidationError, f Field, required bool) {
	if f.NotString {
		ve.add("title", mustBeString("title"))
		return
	}
	if !f.Supplied() && !required {
		return
	}
	title := strings.TrimSpace(f.Value)
	if err := validate.Var(title, fmt.Sprintf("required,max=%d", TitleMaxLength)); err != nil {
		ve.add("title", reasonFor("title", err))
	}
}

func checkDescription(ve *ValidationError, f Field) {
	if f.NotString {
		ve.add("description", mustBeString("description"))
	}
}

// checkStatus skips an absent status. A null status is accepted only when
// nullable; on create it is reported like any other value outside the set.
func checkStatus(ve *ValidationError, f Field, nullable bool) {
	if !f.Present || (f.Null && nullable) {
		return
	}
	if f.NotString || f.Null {
		ve.add("status", reasonFor("status", nil))
		return
	}
	if err := validate.Var(strings.TrimSpace(f.Value), statusRule()); err != nil {
		ve.add("status", reasonFor("status", err))
	}
}

func statusRule() string {
	values := make([]string, len(dom.Statuses))
	for i, s := range dom.Statuses {
		values[i] = string(s)
	}
	return "required,oneof=" + strings.Join(values, " ")
}

// reasonFor turns the first failed validator tag into a client-facing message.
func reasonFor(field string, err error) string {
	var errs validator.ValidationErrors
	tag := ""
	if errors.As(err, &errs) && len(errs) > 0 {
		tag = errs[0].Tag()
	}
	switch {
	case field == "status":
		return "The selected status is invalid."
	case tag == "required":
		return fmt.Sprintf("The %s field is required.", field)
	case tag == "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, errs[0].Param())
	}
	return fmt.Sprintf("The %s field is invalid.", field)
}

func mustBeString(field string) string {
	return fmt.Sprintf("The %s field must be a string.", field)
}

// newTaskFrom converts a validated create payload. Blank descriptions become null.
func newTaskFrom(in CreateInput) dom.NewTask {
	t := dom.NewTask{
		Title:       strings.TrimSpace(in.Title.Value),
		Description: descriptionOf(in.Description),
	}
	if in.Status.Supplied() {
		st := dom.Status(strings.TrimSpace(in.Status.Value))
		t.Status = &st
	}
	return t
}

// patchFrom converts a validated update payload.
func patchFrom(in UpdateInput) dom.TaskPatch {
	var p dom.TaskPatch
	if in.Title.Supplied() {
		title := strings.TrimSpace(in.Title.Value)
		p.Title = &title
	}
	if in.Status.Supplied() {
		st := dom.Status(strings.TrimSpace(in.Status.Value))
		p.Status = &st
	}
	if in.Description.Present {
		p.SetDescription = true
		p.Description = descriptionOf(in.Description)
	}
	return p
}

func descriptionOf(f Field) *string {
	if !f.Supplied() {
		return nil
	}
	d := strings.TrimSpace(f.Value)
	if d == "" {
		return nil
	}
	return &d
}
