package conversation

// Ask is a Prompt built from a fixed question and functions.
type Ask struct {
	Text string
	// Validate, if not nil, rejects answers with a message.
	Validate func(input string) (bool, string)
	// Then handles a valid answer and returns the next prompt. If nil, the
	// conversation completes after the answer.
	Then func(ctx *Context, input string) (Prompt, error)
}

// Question ...
func (a Ask) Question(*Context) string {
	return a.Text
}

// Valid ...
func (a Ask) Valid(_ *Context, input string) (bool, string) {
	if a.Validate == nil {
		return true, ""
	}
	return a.Validate(input)
}

// Accept ...
func (a Ask) Accept(ctx *Context, input string) (Prompt, error) {
	if a.Then == nil {
		return nil, nil
	}
	return a.Then(ctx, input)
}
