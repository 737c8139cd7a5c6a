package errors

// ErrorType classifies an application error.
type ErrorType int

const (
	// Unknown is the zero value; avoid using it directly.
	Unknown ErrorType = iota

	// Internal marks a bug in application logic.
	Internal

	// System marks a system or infrastructure failure (network, disk).
	System

	// Unauthorized marks an authentication failure (credential exchange,
	// expired or rejected token).
	Unauthorized

	// InvalidInput marks input validation failure.
	InvalidInput

	// Conflict marks a resource conflict (duplicate creation).
	Conflict

	// NotFound marks a missing resource.
	NotFound

	// ExecutionFailed marks a business-logic or external-process failure.
	ExecutionFailed

	// ParsingFailed marks a data parsing or conversion failure.
	ParsingFailed

	// Timeout marks an operation that exceeded its deadline.
	Timeout

	// Unavailable marks a temporarily unavailable service.
	Unavailable
)

var errorTypeNames = map[ErrorType]string{
	Unknown:         "Unknown",
	Internal:        "Internal",
	System:          "System",
	Unauthorized:    "Unauthorized",
	InvalidInput:    "InvalidInput",
	Conflict:        "Conflict",
	NotFound:        "NotFound",
	ExecutionFailed: "ExecutionFailed",
	ParsingFailed:   "ParsingFailed",
	Timeout:         "Timeout",
	Unavailable:     "Unavailable",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}
