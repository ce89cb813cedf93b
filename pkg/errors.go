package pkg

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ExposeErrorDetails = false

func init() {
	if gin.DebugMode == gin.Mode() || gin.TestMode == gin.Mode() {
		ExposeErrorDetails = true
	}
}

// Reusable errors
var (
	ErrEmptyBatch         = errors.New("empty transaction batch")
	ErrPredictionsLength  = errors.New("predictions length does not match transactions")
	ErrInvalidProbability = errors.New("probability outside [0,1]")
)

// ErrorCode defines a standardized error code
type ErrorCode struct {
	Code    string
	Status  int
	Message string // default message
}

var (
	// Generic app
	ErrInvalidInputCode = ErrorCode{Code: "APP_INVALID_INPUT", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrServerCode       = ErrorCode{Code: "APP_INTERNAL", Status: http.StatusInternalServerError, Message: "internal server error"}
	ErrUnavailableCode  = ErrorCode{Code: "APP_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "service unavailable"}

	// Relay taxonomy
	ErrConnectivityCode  = ErrorCode{Code: "RELAY_CONNECTIVITY", Status: http.StatusServiceUnavailable, Message: "upstream unreachable"}
	ErrScoringCode       = ErrorCode{Code: "RELAY_SCORING", Status: http.StatusBadGateway, Message: "scoring failed"}
	ErrSerializationCode = ErrorCode{Code: "RELAY_SERIALIZATION", Status: http.StatusBadRequest, Message: "unparseable record"}
	ErrConfigCode        = ErrorCode{Code: "RELAY_CONFIG", Status: http.StatusInternalServerError, Message: "invalid configuration"}
)

type AppError struct {
	Code    ErrorCode
	Message string // public-facing message
	Cause   error  // internal cause (wrapped)
}

func (e AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}
func (e AppError) Unwrap() error { return e.Cause }

func NewAppError(code ErrorCode, msg string, cause error) error {
	return AppError{Code: code, Message: msg, Cause: cause}
}

func NewConnectivityError(msg string, cause error) error {
	return NewAppError(ErrConnectivityCode, msg, cause)
}

func NewScoringError(msg string, cause error) error {
	return NewAppError(ErrScoringCode, msg, cause)
}

func NewSerializationError(msg string, cause error) error {
	return NewAppError(ErrSerializationCode, msg, cause)
}

func NewConfigError(msg string, cause error) error {
	return NewAppError(ErrConfigCode, msg, cause)
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	var appErr AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code.Code == code.Code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

func IsConnectivityError(err error) bool  { return HasCode(err, ErrConnectivityCode) }
func IsScoringError(err error) bool       { return HasCode(err, ErrScoringCode) }
func IsSerializationError(err error) bool { return HasCode(err, ErrSerializationCode) }
func IsConfigError(err error) bool        { return HasCode(err, ErrConfigCode) }

// ErrorResponse defines the standardized error response format
type ErrorResponse struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToErrorResponse converts an error into an ErrorResponse, logging details and optionally exposing error messages.
// If the error is not an AppError, it is converted to a generic 500 error.
func ToErrorResponse(logger *zap.Logger, traceID string, err error) ErrorResponse {
	var appErr AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{
			Status:  appErr.Code.Status,
			Code:    appErr.Code.Code,
			Message: appErr.Message,
		}
		logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
		if ExposeErrorDetails {
			resp.Details = err.Error()
		}
		return resp
	}
	// Unknown error : 500
	resp := ErrorResponse{
		Status:  ErrServerCode.Status,
		Code:    ErrServerCode.Code,
		Message: ErrServerCode.Message,
	}
	logger.Error("application error", zap.String(TraceId, traceID), zap.Error(err))
	if ExposeErrorDetails {
		resp.Details = err.Error()
	}
	return resp
}
