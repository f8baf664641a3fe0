package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Closed error taxonomy crossing the engine boundary.
 *
 * Description:	spec.md 9 calls for a "polymorphic error hierarchy":
 *		a closed variant carried by a fallible result, as
 *		opposed to the teacher's plain errors.New(msg) calls.
 *		Each variant below is a distinct type so callers can
 *		use errors.As to branch on category while every
 *		message still carries protocol/level context via
 *		Error().
 *
 *------------------------------------------------------------------*/

import "fmt"

// BuildFailedError reports a structural failure while compiling a
// request: a missing catalog level, a malformed header definition, or
// mixed single/indexed request attributes.
type BuildFailedError struct {
	// Stage names the missing/invalid level, e.g. "spec", "protocol",
	// "address", "parameter-group", "parameter".
	Stage string
	Msg   string
}

func (e *BuildFailedError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("obdex: build failed: %s", e.Msg)
	}
	return fmt.Sprintf("obdex: build failed at %s: %s", e.Stage, e.Msg)
}

func newBuildFailed(stage, format string, args ...any) *BuildFailedError {
	return &BuildFailedError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

// ParseFailedError reports a runtime decode failure: an unresolved
// decoder handle, an unsupported protocol, or a cleaner that dropped
// every frame it was given.
type ParseFailedError struct {
	Protocol ProtocolTag
	Msg      string
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("obdex: parse failed (%s): %s", e.Protocol, e.Msg)
}

func newParseFailed(protocol ProtocolTag, format string, args ...any) *ParseFailedError {
	return &ParseFailedError{Protocol: protocol, Msg: fmt.Sprintf(format, args...)}
}

// ScriptContextSetupError reports that the Script Host could not be
// constructed (e.g. a catalog script failed to compile). It is
// distinct from BuildFailedError because it happens at Engine
// construction time, before any particular parameter is requested.
type ScriptContextSetupError struct {
	Msg string
}

func (e *ScriptContextSetupError) Error() string {
	return fmt.Sprintf("obdex: script context setup failed: %s", e.Msg)
}

func newScriptContextSetupFailed(format string, args ...any) *ScriptContextSetupError {
	return &ScriptContextSetupError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidHexError reports a malformed two-digit hex byte string.
type InvalidHexError struct {
	Input string
}

func (e *InvalidHexError) Error() string {
	return fmt.Sprintf("obdex: invalid hex byte %q", e.Input)
}

// XMLParsingError reports a malformed catalog document, with the byte
// offset of the failure where the underlying decoder can report one.
type XMLParsingError struct {
	Offset      int64
	Description string
}

func (e *XMLParsingError) Error() string {
	return fmt.Sprintf("obdex: catalog XML parse error at offset %d: %s", e.Offset, e.Description)
}
