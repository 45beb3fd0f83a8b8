// Package pgpierr defines the typed error kinds the core recognizes
// (spec §7) and the policy each one implies for callers.
package pgpierr

import "fmt"

// Kind enumerates the error categories the core raises.
type Kind int

const (
	// ConfigInvalid: bad serverId, missing hosts.conf section. Fatal at startup.
	ConfigInvalid Kind = iota
	// PermissionsTooLoose: a file mode exceeds its reference bound. Fatal at startup.
	PermissionsTooLoose
	// ConnectFailure: database boundary connect error. Fatal for single-server
	// commands; skip-and-continue when iterating multiple databases.
	ConnectFailure
	// SqlExecutionError: a SQL statement failed. Fatal; log the offending SQL.
	SqlExecutionError
	// PlanMissing: a .tmp file is present but the final file is absent when read. Warning, skip row.
	PlanMissing
	// PlanShapeMismatch: grouping append encountered diverging tree skeletons.
	PlanShapeMismatch
	// RegressionSingularity: Sigma(x)=0 or an empty sample; handled by model fallbacks.
	RegressionSingularity
	// ProgressUnavailable: PlanPoints sum is 0; callers should report 0.0, not an error.
	ProgressUnavailable
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case PermissionsTooLoose:
		return "PermissionsTooLoose"
	case ConnectFailure:
		return "ConnectFailure"
	case SqlExecutionError:
		return "SqlExecutionError"
	case PlanMissing:
		return "PlanMissing"
	case PlanShapeMismatch:
		return "PlanShapeMismatch"
	case RegressionSingularity:
		return "RegressionSingularity"
	case ProgressUnavailable:
		return "ProgressUnavailable"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// policy (fatal vs warning vs skip) without string-matching messages.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, pgpierr.New(kind, "")) match by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}
