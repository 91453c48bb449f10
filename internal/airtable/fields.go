package airtable

import (
	"fmt"
	"strings"
)

// FieldString returns a text field, or "" when absent or not text
func FieldString(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// FieldYesNo reads a "Yes"/"No" field. Any other value is unanswered (nil).
func FieldYesNo(fields map[string]any, name string) *bool {
	var b bool
	switch v := fields[name].(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes":
			b = true
		case "no":
			b = false
		default:
			return nil
		}
	case bool:
		b = v
	default:
		return nil
	}
	return &b
}

// FieldChecked reads a checkbox field, also accepting "Yes"/"true" text
func FieldChecked(fields map[string]any, name string) bool {
	switch v := fields[name].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "yes" || s == "true"
	}
	return false
}

// YesNo encodes a boolean the way the record store's single-select fields expect
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
