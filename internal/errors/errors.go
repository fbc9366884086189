// Package errors carries the matcher's error taxonomy as machine-readable
// codes on top of oops. Codes are dotted paths whose last segment is the
// reason, so callers can branch on the kind of failure without string
// matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeIndexDimensionMismatch  Code = "index.dimension.mismatch"
	CodeConfigInvalid           Code = "config.validate.invalid_value"
	CodeStorageUnavailable      Code = "storage.unavailable"
	CodeStorageNotFound         Code = "storage.record.not_found"
	CodeRerankContractViolation Code = "rerank.contract.violation"
	CodeMatchTimeout            Code = "match.deadline.timeout"
	CodeMatchInvalidInput       Code = "match.query.invalid_input"
	CodeInternalFailure         Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldCandidateID(value string) Attr {
	return Field("candidate_id", value)
}

func FieldJobID(value string) Attr {
	return Field("job_id", value)
}

func FieldPhase(value string) Attr {
	return Field("phase", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the code of the outermost oops error in the chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsDimensionMismatch(err error) bool {
	return HasCode(err, CodeIndexDimensionMismatch)
}

func IsInvalidConfiguration(err error) bool {
	return HasCode(err, CodeConfigInvalid)
}

func IsStorageUnavailable(err error) bool {
	return HasCode(err, CodeStorageUnavailable)
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsRerankViolation(err error) bool {
	return HasCode(err, CodeRerankContractViolation)
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid_input" || r == "invalid_value"
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
