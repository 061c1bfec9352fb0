package grapht

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a framework error. Every error that
// crosses a component boundary carries a kind, so callers can match on the
// category without depending on message text.
type ErrorKind int

const (
	// Configuration errors
	ErrConfigNotFound ErrorKind = iota
	ErrConfigDeserialization
	ErrConfigVersionMismatch
	ErrConfigTypeDuplicate
	ErrConfigEndpointDuplicate
	ErrConfigTypeScalarName
	ErrConfigEndpointInputTypeScalarName
	ErrConfigEndpointOutputTypeScalarName
	ErrInvalidPropNameID

	// Schema errors
	ErrSchemaItemNotFound

	// Back-end errors
	ErrDatabaseNotFound
	ErrEnvironmentVariableNotFound
	ErrPartitionKeyNotFound
	ErrRelDuplicated
	ErrRelsRemaining
	ErrResponseItemNotFound
	ErrResponseSetNotFound
	ErrTypeConversionFailed
	ErrTypeNotExpected

	// Request errors
	ErrInputTypeMismatch
	ErrInvalidProperty
	ErrMissingProperty
	ErrResolverNotFound
	ErrValidatorNotFound
	ErrValidationError
	ErrClientRequestFailed
	ErrClientReceivedInvalidJson
	ErrClientRequestUnexpectedPayload
)

var kindNames = map[ErrorKind]string{
	ErrConfigNotFound:                     "ConfigNotFound",
	ErrConfigDeserialization:              "ConfigDeserializationError",
	ErrConfigVersionMismatch:              "ConfigVersionMismatch",
	ErrConfigTypeDuplicate:                "ConfigTypeDuplicate",
	ErrConfigEndpointDuplicate:            "ConfigEndpointDuplicate",
	ErrConfigTypeScalarName:               "ConfigTypeScalarNameError",
	ErrConfigEndpointInputTypeScalarName:  "ConfigEndpointInputTypeScalarNameError",
	ErrConfigEndpointOutputTypeScalarName: "ConfigEndpointOutputTypeScalarNameError",
	ErrInvalidPropNameID:                  "InvalidPropNameID",
	ErrSchemaItemNotFound:                 "SchemaItemNotFound",
	ErrDatabaseNotFound:                   "DatabaseNotFound",
	ErrEnvironmentVariableNotFound:        "EnvironmentVariableNotFound",
	ErrPartitionKeyNotFound:               "PartitionKeyNotFound",
	ErrRelDuplicated:                      "RelDuplicated",
	ErrRelsRemaining:                      "RelsRemaining",
	ErrResponseItemNotFound:               "ResponseItemNotFound",
	ErrResponseSetNotFound:                "ResponseSetNotFound",
	ErrTypeConversionFailed:               "TypeConversionFailed",
	ErrTypeNotExpected:                    "TypeNotExpected",
	ErrInputTypeMismatch:                  "InputTypeMismatch",
	ErrInvalidProperty:                    "InvalidProperty",
	ErrMissingProperty:                    "MissingProperty",
	ErrResolverNotFound:                   "ResolverNotFound",
	ErrValidatorNotFound:                  "ValidatorNotFound",
	ErrValidationError:                    "ValidationError",
	ErrClientRequestFailed:                "ClientRequestFailed",
	ErrClientReceivedInvalidJson:          "ClientReceivedInvalidJson",
	ErrClientRequestUnexpectedPayload:     "ClientRequestUnexpectedPayload",
}

// String returns the canonical name of the kind, the one surfaced in
// GraphQL error extensions.
func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the error type used throughout the framework. Detail is a
// human-readable elaboration; Cause, when present, is the underlying error.
type Error struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

// NewError creates an Error with a formatted detail message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error with a cause attached.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Cause != nil:
		return e.Kind.String() + ": " + e.Detail + ": " + e.Cause.Error()
	case e.Detail != "":
		return e.Kind.String() + ": " + e.Detail
	case e.Cause != nil:
		return e.Kind.String() + ": " + e.Cause.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether the first framework Error in err's chain has the
// given kind. Framework errors wrapped beneath that one are not consulted.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
