// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Bus connection
	OpConnect Op = "connect to the session bus"

	// Standard notification interface
	OpNotify       Op = "send notification"
	OpClose        Op = "close notification"
	OpCapabilities Op = "query capabilities"
	OpServerInfo   Op = "query server information"

	// Control interface
	OpState        Op = "query daemon state"
	OpListActive   Op = "list active notifications"
	OpListHistory  Op = "list notification history"
	OpPanel        Op = "request panel"
	OpDnd          Op = "set do-not-disturb"
	OpDismiss      Op = "dismiss notification"
	OpInvokeAction Op = "invoke action"
	OpClearAll     Op = "clear notifications"
	OpSubscribe    Op = "subscribe to daemon signals"

	// Daemon lifecycle
	OpLoadConfig Op = "load configuration"
	OpTrial      Op = "take over notifications"
	OpAcquire    Op = "acquire bus name"
	OpExport     Op = "export bus objects"

	// Arguments
	OpParseArgs Op = "parse arguments"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
