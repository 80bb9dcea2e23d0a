package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Parse errors
// ---------------------------------------------------------------------------

// UnexpectedTokenError reports a token that does not match what the grammar
// requires at that position.
type UnexpectedTokenError struct {
	Expected string
	Found    string
	Span     Span
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("Parse error: Expected '%s', found '%s' at %d:%d",
		e.Expected, e.Found, e.Span.Start, e.Span.End)
}

// UnexpectedEOFError reports that the token stream ended mid-production.
type UnexpectedEOFError struct{}

func (e *UnexpectedEOFError) Error() string {
	return "Parse error: Unexpected end of input"
}

// InvalidSyntaxError reports a malformed construct with a source span.
type InvalidSyntaxError struct {
	Message string
	Span    Span
}

func (e *InvalidSyntaxError) Error() string {
	return fmt.Sprintf("Parse error: %s at %d:%d", e.Message, e.Span.Start, e.Span.End)
}
