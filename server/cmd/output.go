package cmd

import (
	"errors"
	"fmt"
)

// Output holds the output of a Command that was executed. Messages and errors
// are sent to the Source once the Command completes.
type Output struct {
	errors   []error
	messages []string
}

// Errorf formats an error message and adds it to the command output.
func (o *Output) Errorf(format string, a ...any) {
	o.errors = append(o.errors, fmt.Errorf(format, a...))
}

// Error formats an error message and adds it to the command output. A nil
// error is ignored.
func (o *Output) Error(a ...any) {
	if len(a) == 1 {
		if err, ok := a[0].(error); ok || a[0] == nil {
			if err != nil {
				o.errors = append(o.errors, err)
			}
			return
		}
	}
	o.errors = append(o.errors, errors.New(fmt.Sprint(a...)))
}

// Printf formats a (non-error) message and adds it to the command output.
func (o *Output) Printf(format string, a ...any) {
	o.messages = append(o.messages, fmt.Sprintf(format, a...))
}

// Print formats a (non-error) message and adds it to the command output.
func (o *Output) Print(a ...any) {
	o.messages = append(o.messages, fmt.Sprint(a...))
}

// Errors returns a list of all errors added to the command output.
func (o *Output) Errors() []error {
	return o.errors
}

// ErrorCount returns the count of errors that the command output has.
func (o *Output) ErrorCount() int {
	return len(o.errors)
}

// Messages returns a list of all messages added to the command output.
func (o *Output) Messages() []string {
	return o.messages
}

// MessageCount returns the count of (non-error) messages that the command
// output has.
func (o *Output) MessageCount() int {
	return len(o.messages)
}
