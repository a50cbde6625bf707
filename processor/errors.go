// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import "fmt"

// Code is the semantic class of a rejection. Callers branch on the
// code, never on the message text.
type Code uint8

const (
	CodeInvalidArgument Code = iota + 1
	CodePermissionDenied
	CodeNotFound
	CodeFailedPrecondition
	CodeConflict
	CodeCryptoFailure
	CodeCapacity
	CodeTransient
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid argument"
	case CodePermissionDenied:
		return "permission denied"
	case CodeNotFound:
		return "not found"
	case CodeFailedPrecondition:
		return "failed precondition"
	case CodeConflict:
		return "conflict"
	case CodeCryptoFailure:
		return "crypto failure"
	case CodeCapacity:
		return "capacity"
	case CodeTransient:
		return "transient"
	}
	return "unknown"
}

// RejectError is a terminal verdict on a transaction: the transaction
// is not applied and must not be retried (except CodeTransient).
type RejectError struct {
	Code  Code
	msg   string
	cause error
}

func (e *RejectError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *RejectError) Unwrap() error { return e.cause }

// Reject builds a rejection with a formatted message.
func Reject(code Code, format string, args ...any) *RejectError {
	return &RejectError{Code: code, msg: fmt.Sprintf(format, args...)}
}

func rejectCause(code Code, cause error, format string, args ...any) *RejectError {
	return &RejectError{Code: code, msg: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf returns the rejection code, or 0 for foreign errors.
func CodeOf(err error) Code {
	if re, ok := err.(*RejectError); ok {
		return re.Code
	}
	return 0
}

// IsReject tells whether the error is a terminal rejection rather than
// an infrastructure failure.
func IsReject(err error) bool {
	re, ok := err.(*RejectError)
	return ok && re.Code != CodeTransient
}
