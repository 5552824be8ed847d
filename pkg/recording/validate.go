package recording

import (
	"fmt"
	"strings"

	"flowcap/pkg/action"
)

// ValidationError represents one structural problem in a recording
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(ve[0].Error())
	sb.WriteString(fmt.Sprintf(" (and %d more errors)", len(ve)-1))
	return sb.String()
}

// selectorRequired lists the action types that must carry a selector.
// Scroll and navigation target the viewport, and a keypress may be a
// global hotkey with no focused element.
var selectorRequired = map[action.Type]bool{
	action.TypeClick:       true,
	action.TypeDoubleClick: true,
	action.TypeInput:       true,
	action.TypeSelect:      true,
	action.TypeSubmit:      true,
}

// Validate runs every structural check and collects field-scoped
// errors instead of stopping at the first problem. A nil return means
// the recording is sound.
func Validate(r *Recording) error {
	var errs ValidationErrors

	if r == nil {
		return ValidationErrors{{Field: "recording", Message: "recording is nil"}}
	}

	if r.ID == "" {
		errs = append(errs, ValidationError{Field: "recording.id", Message: "id is required"})
	}
	if r.TestName == "" {
		errs = append(errs, ValidationError{Field: "recording.test_name", Message: "test name is required"})
	}
	if r.URL == "" {
		errs = append(errs, ValidationError{Field: "recording.url", Message: "url is required"})
	}

	errs = append(errs, validateTimestamp("recording.start_time", r.StartTime)...)
	errs = append(errs, validateTimestamp("recording.end_time", r.EndTime)...)

	if r.Viewport.Width <= 0 || r.Viewport.Height <= 0 {
		errs = append(errs, ValidationError{
			Field:   "recording.viewport",
			Value:   fmt.Sprintf("%dx%d", r.Viewport.Width, r.Viewport.Height),
			Message: "viewport dimensions must be positive",
		})
	}

	if r.Actions == nil {
		errs = append(errs, ValidationError{Field: "recording.actions", Message: "action array is required"})
	} else {
		errs = append(errs, validateActions(r.Actions)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateTimestamp(field, value string) ValidationErrors {
	if value == "" {
		return ValidationErrors{{Field: field, Message: "timestamp is required"}}
	}
	if _, err := ParseTime(value); err != nil {
		return ValidationErrors{{Field: field, Value: value, Message: "timestamp is not ISO-8601"}}
	}
	return nil
}

func validateActions(actions []*action.Action) ValidationErrors {
	var errs ValidationErrors

	lastTimestamp := int64(0)
	for i, a := range actions {
		field := fmt.Sprintf("recording.actions[%d]", i)

		if a == nil {
			errs = append(errs, ValidationError{Field: field, Message: "action is nil"})
			continue
		}

		seq, err := action.ParseID(a.ID)
		switch {
		case a.ID == "":
			errs = append(errs, ValidationError{Field: field + ".id", Message: "id is required"})
		case err != nil:
			errs = append(errs, ValidationError{Field: field + ".id", Value: a.ID, Message: "id is malformed"})
		case seq != i+1:
			errs = append(errs, ValidationError{Field: field + ".id", Value: a.ID,
				Message: fmt.Sprintf("ids must be contiguous, expected %s", action.FormatID(i+1))})
		}

		if !a.Type.Valid() {
			errs = append(errs, ValidationError{Field: field + ".type", Value: string(a.Type), Message: "unknown action type"})
			continue
		}

		if a.Timestamp <= 0 {
			errs = append(errs, ValidationError{Field: field + ".timestamp", Value: a.Timestamp, Message: "timestamp must be positive"})
		} else if a.Timestamp < lastTimestamp {
			errs = append(errs, ValidationError{Field: field + ".timestamp", Value: a.Timestamp,
				Message: "actions must be sorted ascending by timestamp"})
		} else {
			lastTimestamp = a.Timestamp
		}

		errs = append(errs, validateSelector(field, a)...)
		errs = append(errs, validatePayload(field, a)...)
	}

	return errs
}

func validateSelector(field string, a *action.Action) ValidationErrors {
	if a.Selector == nil {
		if selectorRequired[a.Type] {
			return ValidationErrors{{Field: field + ".selector", Message: "selector is required for this action type"}}
		}
		return nil
	}

	var errs ValidationErrors
	if len(a.Selector.Priority) == 0 {
		errs = append(errs, ValidationError{Field: field + ".selector.priority", Message: "priority must not be empty"})
	}
	for _, name := range a.Selector.Priority {
		if v, ok := a.Selector.Candidate(name); !ok || v == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".selector.priority",
				Value:   name,
				Message: "priority references an unpopulated candidate",
			})
		}
	}
	return errs
}

// validatePayload checks that the sub-record matching the declared type
// is present
func validatePayload(field string, a *action.Action) ValidationErrors {
	missing := func(name string) ValidationErrors {
		return ValidationErrors{{Field: field + "." + name, Message: name + " payload is required for this action type"}}
	}

	switch a.Type {
	case action.TypeClick, action.TypeDoubleClick:
		if a.Click == nil {
			return missing("click")
		}
	case action.TypeInput:
		if a.Input == nil {
			return missing("input")
		}
	case action.TypeSelect:
		if a.Select == nil {
			return missing("select")
		}
	case action.TypeSubmit:
		if a.Submit == nil {
			return missing("submit")
		}
	case action.TypeKeypress:
		if a.Keypress == nil {
			return missing("keypress")
		}
	case action.TypeScroll:
		if a.Scroll == nil {
			return missing("scroll")
		}
	case action.TypeNavigation:
		if a.Navigation == nil {
			return missing("navigation")
		}
	}
	return nil
}
