package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes that are not tied to a module.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeInvalidParam       ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
)

// Molecule / toolkit error codes.
const (
	ErrCodeMoleculeInvalidSMILES       ErrorCode = "MOL_001"
	ErrCodeFingerprintGenerationFailed ErrorCode = "MOL_007"
)

// Scoring error codes.
const (
	// ErrCodeScorerNotFound is the UnknownScorerError of the factory.
	ErrCodeScorerNotFound ErrorCode = "SCORE_001"
	// ErrCodeScorerConfigInvalid marks a rejected scorer option.
	ErrCodeScorerConfigInvalid ErrorCode = "SCORE_002"
	// ErrCodeResourceUnavailable is the ResourceLoadError raised while
	// constructing a scorer that depends on an external artifact.
	ErrCodeResourceUnavailable ErrorCode = "SCORE_003"
)

// Classifier error codes.
const (
	ErrCodeModelDecodeFailed    ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed    ErrorCode = "AI_002"
	ErrCodeModelVersionMismatch ErrorCode = "AI_003"
	ErrCodeAIInputInvalid       ErrorCode = "AI_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeInvalidParam:       http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,

	ErrCodeMoleculeInvalidSMILES:       http.StatusBadRequest,
	ErrCodeFingerprintGenerationFailed: http.StatusInternalServerError,

	ErrCodeScorerNotFound:      http.StatusNotFound,
	ErrCodeScorerConfigInvalid: http.StatusBadRequest,
	ErrCodeResourceUnavailable: http.StatusServiceUnavailable,

	ErrCodeModelDecodeFailed:    http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:    http.StatusInternalServerError,
	ErrCodeModelVersionMismatch: http.StatusServiceUnavailable,
	ErrCodeAIInputInvalid:       http.StatusBadRequest,
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError returns true if code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of code ("SCORE" for "SCORE_001").
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) == 2 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
