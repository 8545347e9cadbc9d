package utils

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeInvalidURLFormat  ErrorCode = "INVALID_URL_FORMAT"
	ErrorCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrorCodeNoSuitableStream  ErrorCode = "NO_SUITABLE_STREAM"
	ErrorCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeSessionNotReady   ErrorCode = "SESSION_NOT_READY"
	ErrorCodeMergeFailed       ErrorCode = "MERGE_FAILED"
	ErrorCodeRestrictedContent ErrorCode = "RESTRICTED_CONTENT"
	ErrorCodeS3UploadFailed    ErrorCode = "S3_UPLOAD_FAILED"
	ErrorCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
)

type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

func NewErrorWithDetails(code ErrorCode, message string, statusCode int, details map[string]interface{}) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Common error constructors
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return NewErrorWithDetails(ErrorCodeValidationError, message, http.StatusBadRequest, details)
}

func NewInvalidURLError(url string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeInvalidURLFormat,
		"The provided URL is not a supported watch URL",
		http.StatusBadRequest,
		map[string]interface{}{
			"expected_format": "https://www.youtube.com/watch?v=VIDEO_ID",
			"provided":        url,
		},
	)
}

func NewExtractionError(videoID string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeExtractionFailed,
		"Failed to extract stream metadata",
		http.StatusBadGateway,
		map[string]interface{}{
			"video_id": videoID,
		},
	)
}

func NewNoSuitableStreamError(quality string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeNoSuitableStream,
		"No stream candidate matches the requested quality",
		http.StatusUnprocessableEntity,
		map[string]interface{}{
			"quality": quality,
		},
	)
}

func NewSessionNotFoundError(sessionID string) *AppError {
	return NewError(
		ErrorCodeSessionNotFound,
		fmt.Sprintf("Session with ID %s not found", sessionID),
		http.StatusNotFound,
	)
}

func NewSessionNotReadyError(sessionID string) *AppError {
	return NewError(
		ErrorCodeSessionNotReady,
		fmt.Sprintf("Session %s has no playable artifact yet", sessionID),
		http.StatusConflict,
	)
}

func NewMergeError(err error) *AppError {
	return NewErrorWithDetails(
		ErrorCodeMergeFailed,
		"Failed to merge audio and video tracks",
		http.StatusInternalServerError,
		map[string]interface{}{"cause": err.Error()},
	)
}

func NewRestrictedContentError(videoID string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeRestrictedContent,
		"Content is not available under the current restricted mode",
		http.StatusForbidden,
		map[string]interface{}{
			"video_id": videoID,
		},
	)
}

func NewDatabaseError(err error) *AppError {
	return NewError(
		ErrorCodeDatabaseError,
		"Database operation failed",
		http.StatusInternalServerError,
	)
}

func NewS3Error(err error) *AppError {
	return NewError(
		ErrorCodeS3UploadFailed,
		"Failed to upload to S3",
		http.StatusInternalServerError,
	)
}

func NewUnauthorizedError() *AppError {
	return NewError(
		ErrorCodeUnauthorized,
		"Invalid or missing authentication",
		http.StatusUnauthorized,
	)
}

func NewRateLimitError() *AppError {
	return NewError(
		ErrorCodeRateLimitExceeded,
		"Too many requests",
		http.StatusTooManyRequests,
	)
}

func NewInternalError() *AppError {
	return NewError(
		ErrorCodeInternalError,
		"An unexpected error occurred",
		http.StatusInternalServerError,
	)
}
