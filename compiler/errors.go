package compiler

import "fmt"

// ErrorCode classifies a compiler diagnostic.
type ErrorCode int

const (
	ErrInternal ErrorCode = iota
	ErrSyntax
	ErrDuplicateSymbolName
	ErrSymbolNotFound
	ErrInvalidGlobalVariableType
	ErrWrongMemberType
	ErrMissingMainSub
	ErrDuplicateTypeName
	ErrTypeNotFound
	ErrTooManyLiteralListElements
	ErrTooManyCallArguments
	ErrTooManyLocalVariables
	ErrInputTargetNotVariableName
	ErrSubCalledAsFunction
	ErrProcedureNotFound
	ErrTypeMismatch
	ErrInvalidListIndex
	ErrEmptyLiteralList
	ErrInvalidAssignmentTarget
	ErrMultipleSelectCaseDefaults
	ErrYieldOutsideDimCollection
	ErrNoYieldsInDimCollection
	ErrInvalidYieldType
	ErrContinueOutsideLoop
	ErrContinueTypeMismatch
	ErrExitOutsideLoop
	ErrExitTypeMismatch
	ErrFieldNotFound
	ErrTooManyIndexArguments
	ErrInvalidTypeConversion
	ErrInvalidReturn
	ErrControlReachesEndOfFunction
	ErrRecursiveRecordType
)

var errorCodeNames = [...]string{
	ErrInternal:                    "Internal",
	ErrSyntax:                      "Syntax",
	ErrDuplicateSymbolName:         "DuplicateSymbolName",
	ErrSymbolNotFound:              "SymbolNotFound",
	ErrInvalidGlobalVariableType:   "InvalidGlobalVariableType",
	ErrWrongMemberType:             "WrongMemberType",
	ErrMissingMainSub:              "MissingMainSub",
	ErrDuplicateTypeName:           "DuplicateTypeName",
	ErrTypeNotFound:                "TypeNotFound",
	ErrTooManyLiteralListElements:  "TooManyLiteralListElements",
	ErrTooManyCallArguments:        "TooManyCallArguments",
	ErrTooManyLocalVariables:       "TooManyLocalVariables",
	ErrInputTargetNotVariableName:  "InputTargetNotVariableName",
	ErrSubCalledAsFunction:         "SubCalledAsFunction",
	ErrProcedureNotFound:           "ProcedureNotFound",
	ErrTypeMismatch:                "TypeMismatch",
	ErrInvalidListIndex:            "InvalidListIndex",
	ErrEmptyLiteralList:            "EmptyLiteralList",
	ErrInvalidAssignmentTarget:     "InvalidAssignmentTarget",
	ErrMultipleSelectCaseDefaults:  "MultipleSelectCaseDefaults",
	ErrYieldOutsideDimCollection:   "YieldOutsideDimCollection",
	ErrNoYieldsInDimCollection:     "NoYieldsInDimCollection",
	ErrInvalidYieldType:            "InvalidYieldType",
	ErrContinueOutsideLoop:         "ContinueOutsideLoop",
	ErrContinueTypeMismatch:        "ContinueTypeMismatch",
	ErrExitOutsideLoop:             "ExitOutsideLoop",
	ErrExitTypeMismatch:            "ExitTypeMismatch",
	ErrFieldNotFound:               "FieldNotFound",
	ErrTooManyIndexArguments:       "TooManyIndexArguments",
	ErrInvalidTypeConversion:       "InvalidTypeConversion",
	ErrInvalidReturn:               "InvalidReturn",
	ErrControlReachesEndOfFunction: "ControlReachesEndOfFunction",
	ErrRecursiveRecordType:         "RecursiveRecordType",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// CompilerError is a diagnostic tied to the token where it was detected.
type CompilerError struct {
	Code    ErrorCode
	Message string
	Token   Token
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Token.Position(), e.Message)
}

func newError(code ErrorCode, tok Token, format string, args ...any) *CompilerError {
	return &CompilerError{Code: code, Message: fmt.Sprintf(format, args...), Token: tok}
}

// internalError is the panic payload for invariant violations. It is
// recovered at the compile boundary.
type internalError struct {
	tok Token
	msg string
}

func internalf(tok Token, format string, args ...any) {
	panic(internalError{tok: tok, msg: fmt.Sprintf(format, args...)})
}

// recoverInternal converts an internal panic into an ErrInternal error.
// Other panics propagate.
func recoverInternal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(internalError); ok {
		*err = newError(ErrInternal, ie.tok, "Internal compiler error: %s", ie.msg)
		return
	}
	panic(r)
}
