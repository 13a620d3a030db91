package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/records"
)

// # Error Codes Reference
//
// Every fatal error is printed as one line with a code that can be quoted
// when asking for help:
//
//	AUTH001   - Login rejected (wrong email or password)
//	AUTH002   - Login response could not be read
//	PROTO001  - Remote response could not be parsed
//	PROTO002  - Remote response is missing its result element
//	PROTO003  - Remote result is missing required attributes
//	PROTO004  - Remote server answered with an HTTP error status
//	NET001    - Remote server unreachable
//	NET002    - Remote call timed out
//	INPUT001  - Delimiter or quoting could not be detected
//	INPUT002  - No usable header row
//	INPUT003  - Header columns do not fit the object type
//	INPUT004  - A row does not match the header
//	INPUT005  - Input file cannot be read
//	OUTPUT001 - Result file cannot be written
//	REM001    - Remote side rejected a row (never fatal)
//	CFG001    - Configuration is incomplete or invalid
//	RUN001    - Run was cancelled
//	ERR000    - Anything else; the log has the technical error

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgAuthRejected = UserMessage{
		Message: "Login was rejected",
		Action:  "Check the email address and password",
		Code:    "AUTH001",
	}
	msgAuthMalformed = UserMessage{
		Message: "The login response could not be read",
		Action:  "Check CRM_BASE_URL points at the API host",
		Code:    "AUTH002",
	}
	msgProtoUnparseable = UserMessage{
		Message: "A remote response could not be parsed",
		Action:  "Rows before this point were written; rerun the remaining rows later",
		Code:    "PROTO001",
	}
	msgProtoMissingElement = UserMessage{
		Message: "A remote response had no result",
		Action:  "Rows before this point were written; rerun the remaining rows later",
		Code:    "PROTO002",
	}
	msgProtoMissingAttributes = UserMessage{
		Message: "A remote result was incomplete",
		Action:  "Rows before this point were written; rerun the remaining rows later",
		Code:    "PROTO003",
	}
	msgProtoHTTPStatus = UserMessage{
		Message: "The remote server returned an error status",
		Action:  "Check the object type and that the account may use the API",
		Code:    "PROTO004",
	}
	msgNetUnreachable = UserMessage{
		Message: "The remote server could not be reached",
		Action:  "Check the network connection and CRM_BASE_URL",
		Code:    "NET001",
	}
	msgNetTimeout = UserMessage{
		Message: "A remote call timed out",
		Action:  "Raise CRM_REQUEST_TIMEOUT or try again later",
		Code:    "NET002",
	}
	msgInputDialect = UserMessage{
		Message: "The file's delimiter or quoting could not be detected",
		Action:  "Save the file as comma-separated values with double quotes",
		Code:    "INPUT001",
	}
	msgInputHeader = UserMessage{
		Message: "The file has no usable header row",
		Action:  "Make the first row the column names, each unique and non-empty",
		Code:    "INPUT002",
	}
	msgInputColumns = UserMessage{
		Message: "The file's columns do not fit the object type",
		Action:  "Rename or remove the listed columns",
		Code:    "INPUT003",
	}
	msgInputRow = UserMessage{
		Message: "A row does not match the header",
		Action:  "Fix the reported line; rows before it were processed",
		Code:    "INPUT004",
	}
	msgInputUnreadable = UserMessage{
		Message: "The input file could not be read",
		Action:  "Check the path and file permissions",
		Code:    "INPUT005",
	}
	msgOutput = UserMessage{
		Message: "The result file could not be written",
		Action:  "Check free space and write permission in the input's directory",
		Code:    "OUTPUT001",
	}
	msgRemoteRejected = UserMessage{
		Message: "The remote side rejected the row",
		Action:  "See the message column in the result file",
		Code:    "REM001",
	}
	msgCancelled = UserMessage{
		Message: "Run was cancelled",
		Action:  "Rows processed so far are in the result file",
		Code:    "RUN001",
	}
	msgConfig = UserMessage{
		Message: "Configuration is incomplete or invalid",
		Action:  "Check the environment variables and .env file",
		Code:    "CFG001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that carry no type, matched case-insensitively
// with strings.Contains. The first match wins.
var errorPatterns = []errorPattern{
	{pattern: "config load", msg: msgConfig},
	{pattern: "config validation", msg: msgConfig},
	{pattern: "invalid options", msg: msgConfig},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Run again with LOG_LEVEL=debug and check the log",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Typed
// errors are classified with errors.As; untyped ones fall back to
// errorPatterns and then to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		authErr      *crm.AuthError
		protoErr     *crm.ProtocolError
		transportErr *crm.TransportError
		inputErr     *records.InputFormatError
		outputErr    *records.OutputError
		remoteErr    *RemoteOperationError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgNetTimeout
	case errors.As(err, &authErr):
		if authErr.Malformed {
			return msgAuthMalformed
		}
		return msgAuthRejected
	case errors.As(err, &protoErr):
		switch protoErr.Reason {
		case crm.ReasonMissingElement:
			return msgProtoMissingElement
		case crm.ReasonMissingAttributes:
			return msgProtoMissingAttributes
		case crm.ReasonHTTPStatus:
			return msgProtoHTTPStatus
		default:
			return msgProtoUnparseable
		}
	case errors.As(err, &transportErr):
		if isTimeout(transportErr.Err) {
			return msgNetTimeout
		}
		return msgNetUnreachable
	case errors.As(err, &inputErr):
		switch inputErr.Kind {
		case records.KindDialect:
			return msgInputDialect
		case records.KindHeader:
			return msgInputHeader
		case records.KindColumns:
			return msgInputColumns
		case records.KindRow:
			return msgInputRow
		default:
			return msgInputUnreadable
		}
	case errors.As(err, &outputErr):
		return msgOutput
	case errors.As(err, &remoteErr):
		return msgRemoteRejected
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// Display formats the user message for the terminal.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Login was rejected (Code: AUTH001). Check the email address and password"
func (e *UserError) Display() string {
	return fmt.Sprintf("%s (Code: %s). %s", e.User.Message, e.User.Code, e.User.Action)
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
