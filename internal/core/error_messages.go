// # Error Codes Reference
//
// Users see a short message, a suggested action and a code they can quote
// to support. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The file exceeds the upload size limit
//	          Patterns: "file too large"
//	FILE002 - No file: No file was selected
//	          Patterns: "no file provided"
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Not a PDF: The template must be a PDF document
//	         Patterns: "not a pdf"
//	TPL002 - No template: No certificate template has been uploaded
//	         Patterns: "no template loaded"
//	TPL003 - Unreadable template: The PDF could not be opened for generation
//	         Patterns: "template import failed"
//	TPL004 - Superseded: A newer template upload replaced this one
//	         Patterns: "superseded"
//	TPL005 - Bad page: The template has no such page
//	         Patterns: "page out of range"
//
// # Data Errors (DATA001-DATA099)
//
//	DATA001 - Empty data file: No header row was found
//	          Patterns: "empty file"
//	DATA002 - Unsupported data file: Only .xlsx and .csv are accepted
//	          Patterns: "unsupported data format"
//	DATA003 - Malformed data file: The spreadsheet could not be read
//	          Patterns: "malformed data file"
//	DATA004 - No data: No data file has been uploaded
//	          Patterns: "no data file loaded"
//
// # Image Errors (IMG001-IMG099)
//
//	IMG001 - Unsupported image: PNG, JPEG, GIF, BMP, TIFF or WebP only
//	         Patterns: "unsupported image format"
//	IMG002 - Unknown role: Images are uploaded as signature or seal
//	         Patterns: "unknown image role"
//
// # Generation Errors (GEN001-GEN099)
//
//	GEN001 - No fields: Nothing has been placed on the template
//	         Patterns: "no fields placed"
//	GEN002 - Busy: Too many generation runs in progress
//	         Patterns: "too many generation runs"
//	GEN003 - Already running: This session already has a run in progress
//	         Patterns: "run in progress"
//	GEN004 - Run not found: The run expired or never existed
//	         Patterns: "run not found"
//	GEN005 - Document expired: The generated file is no longer available
//	         Patterns: "artifact not found", "document not found"
//	GEN006 - Not finished: The run is still generating
//	         Patterns: "has not finished"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: The editor session no longer exists
//	         Patterns: "session not found"
//	SES002 - Unauthorized: The session token is missing or invalid
//	         Patterns: "session token"
//	SES003 - Server full: Too many open sessions
//	         Patterns: "too many open sessions"
//	SES005 - Cancelled: The request was cancelled
//	         Patterns: "context canceled"
//	SES006 - Timeout: The request took too long
//	         Patterns: "context deadline exceeded"
//	SES007 - Bad canvas: The reported canvas size is not usable
//	         Patterns: "invalid canvas size"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Requests (REQ001-REQ099)
//
//	REQ001 - Bad request: The request body could not be decoded
//	         Patterns: "invalid request body"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the server log for the technical
// error, which is logged with the request id.
//
// Patterns are matched case-insensitively with strings.Contains in table
// order, so specific patterns come before general ones.

package core

import (
	"fmt"
	"strings"
)

// UserMessage is what a user sees for a failed request.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File
	{"file too large", UserMessage{"The file exceeds the upload size limit", "Upload a smaller file", "FILE001"}},
	{"no file provided", UserMessage{"No file was selected", "Choose a file to upload", "FILE002"}},

	// Template
	{"not a pdf", UserMessage{"The template must be a PDF document", "Export your certificate design as PDF and upload it again", "TPL001"}},
	{"no template loaded", UserMessage{"No certificate template has been uploaded", "Upload a PDF template first", "TPL002"}},
	{"template import failed", UserMessage{"The template PDF could not be opened for generation", "Re-export the PDF without encryption and try again", "TPL003"}},
	{"superseded", UserMessage{"A newer template upload replaced this one", "No action needed", "TPL004"}},
	{"page out of range", UserMessage{"The template has no such page", "Pick a page within the document", "TPL005"}},

	// Data
	{"empty file", UserMessage{"The data file has no header row", "Put column names in the first row", "DATA001"}},
	{"unsupported data format", UserMessage{"This data file type is not supported", "Upload an .xlsx or .csv file", "DATA002"}},
	{"malformed data file", UserMessage{"The data file could not be read", "Open it in a spreadsheet program, save it again and retry", "DATA003"}},
	{"no data file loaded", UserMessage{"No data file has been uploaded", "Upload an .xlsx or .csv file with participant data", "DATA004"}},

	// Images
	{"unsupported image format", UserMessage{"This image type is not supported", "Upload a PNG, JPEG, GIF, BMP, TIFF or WebP image", "IMG001"}},
	{"unknown image role", UserMessage{"Images can only be uploaded as signature or seal", "Choose signature or seal", "IMG002"}},

	// Generation
	{"no fields placed", UserMessage{"Nothing has been placed on the template", "Add at least one text field or image", "GEN001"}},
	{"too many generation runs", UserMessage{"The server is busy generating other certificates", "Wait a moment and try again", "GEN002"}},
	{"run in progress", UserMessage{"Certificates are already being generated for this session", "Wait for the current run to finish", "GEN003"}},
	{"run not found", UserMessage{"This generation run no longer exists", "Generate the certificates again", "GEN004"}},
	{"artifact not found", UserMessage{"The generated file is no longer available", "Generate the certificates again", "GEN005"}},
	{"document not found", UserMessage{"The generated file is no longer available", "Generate the certificates again", "GEN005"}},
	{"has not finished", UserMessage{"Certificates are still being generated", "Wait for the run to finish", "GEN006"}},

	// Session
	{"session not found", UserMessage{"Your editor session has expired", "Start a new session", "SES001"}},
	{"session token", UserMessage{"You are not authorized for this session", "Start a new session", "SES002"}},
	{"too many open sessions", UserMessage{"The server has too many open sessions", "Try again in a few minutes", "SES003"}},
	{"context canceled", UserMessage{"The request was cancelled", "Please try again", "SES005"}},
	{"context deadline exceeded", UserMessage{"The request took too long", "Try a smaller file or try again later", "SES006"}},
	{"invalid canvas size", UserMessage{"The editor reported an unusable canvas size", "Resize the window and try again", "SES007"}},

	// Rate limiting
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},

	// Requests
	{"invalid request body", UserMessage{"The request could not be understood", "Reload the editor and try again", "REQ001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to the first matching user message,
// or ERR000. A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: X). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
