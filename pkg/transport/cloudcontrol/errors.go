// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cloudcontrol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
)

// ErrorCode represents transport-level error classifications
type ErrorCode string

const (
	ErrorCodeNone              ErrorCode = "NONE"
	ErrorCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrorCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrorCodeResourceBusy      ErrorCode = "RESOURCE_BUSY"
	ErrorCodeThrottling        ErrorCode = "THROTTLING"
	ErrorCodeTransient         ErrorCode = "TRANSIENT"
	ErrorCodeNotSupported      ErrorCode = "NOT_SUPPORTED"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrorCodeUnknown           ErrorCode = "UNKNOWN"
)

// Response codes returned by CloudControl in the responseCode (or code) field.
const (
	VendorCodeInvalidInputData      = "INVALID_INPUT_DATA"
	VendorCodeUnauthorized          = "UNAUTHORIZED"
	VendorCodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	VendorCodeResourceNameNotUnique = "RESOURCE_NAME_NOT_UNIQUE"
	VendorCodeResourceBusy          = "RESOURCE_BUSY"
	VendorCodeResourceLocked        = "RESOURCE_LOCKED"
	VendorCodeRetryableSystemError  = "RETRYABLE_SYSTEM_ERROR"
	VendorCodeSystemError           = "SYSTEM_ERROR"
	VendorCodeUnexpectedError       = "UNEXPECTED_ERROR"
	VendorCodeOperationNotSupported = "OPERATION_NOT_SUPPORTED"
	VendorCodeNoIPAddressAvailable  = "NO_IP_ADDRESS_AVAILABLE"
)

// Error represents a transport layer error with classification. VendorCode,
// Operation and RequestID echo the vendor's error payload when there is one.
type Error struct {
	Code       ErrorCode
	VendorCode string
	Message    string
	Operation  string
	RequestID  string
	HTTPCode   int
	Underlying error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.VendorCode != "" {
		fmt.Fprintf(&b, " (responseCode=%s", e.VendorCode)
		if e.RequestID != "" {
			fmt.Fprintf(&b, ", requestId=%s", e.RequestID)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// ClassifyHTTPStatus maps HTTP status codes to error codes
func ClassifyHTTPStatus(statusCode int) ErrorCode {
	switch statusCode {
	case 200, 201, 204:
		return ErrorCodeNone
	case 400:
		return ErrorCodeInvalidInput
	case 401, 403:
		return ErrorCodeUnauthorized
	case 404:
		return ErrorCodeResourceNotFound
	case 409:
		return ErrorCodeAlreadyExists
	case 429:
		return ErrorCodeThrottling
	case 500, 502, 503, 504:
		return ErrorCodeInternalError
	default:
		if statusCode >= 200 && statusCode < 300 {
			return ErrorCodeNone
		}
		return ErrorCodeUnknown
	}
}

// ClassifyVendorCode maps a CloudControl response code to an error code. The
// second return value is false for codes it does not know.
func ClassifyVendorCode(vendorCode string) (ErrorCode, bool) {
	switch vendorCode {
	case VendorCodeInvalidInputData:
		return ErrorCodeInvalidInput, true
	case VendorCodeUnauthorized:
		return ErrorCodeUnauthorized, true
	case VendorCodeResourceNotFound:
		return ErrorCodeResourceNotFound, true
	case VendorCodeResourceNameNotUnique:
		return ErrorCodeAlreadyExists, true
	case VendorCodeResourceBusy, VendorCodeResourceLocked:
		return ErrorCodeResourceBusy, true
	case VendorCodeRetryableSystemError:
		return ErrorCodeTransient, true
	case VendorCodeOperationNotSupported, VendorCodeNoIPAddressAvailable:
		return ErrorCodeNotSupported, true
	case VendorCodeSystemError, VendorCodeUnexpectedError:
		return ErrorCodeInternalError, true
	default:
		return ErrorCodeUnknown, false
	}
}

// ToResourceErrorCode converts transport error code to formae resource error code
func ToResourceErrorCode(code ErrorCode) resource.OperationErrorCode {
	switch code {
	case ErrorCodeInvalidInput:
		return resource.OperationErrorCodeInvalidRequest
	case ErrorCodeUnauthorized:
		return resource.OperationErrorCodeAccessDenied
	case ErrorCodeResourceNotFound:
		return resource.OperationErrorCodeNotFound
	case ErrorCodeAlreadyExists:
		return resource.OperationErrorCodeAlreadyExists
	case ErrorCodeResourceBusy, ErrorCodeThrottling, ErrorCodeTransient:
		return resource.OperationErrorCodeThrottling
	case ErrorCodeNotSupported:
		return resource.OperationErrorCodeServiceLimitExceeded
	case ErrorCodeInternalError, ErrorCodeMalformedResponse:
		return resource.OperationErrorCodeServiceInternalError
	default:
		return resource.OperationErrorCodeGeneralServiceException
	}
}

// NewError creates a new transport error
func NewError(code ErrorCode, message string, underlying error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// vendorError is the error body. Older endpoints answer with {code, message},
// the 2.x endpoints with the full operation envelope.
type vendorError struct {
	Operation    string `json:"operation"`
	ResponseCode string `json:"responseCode"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	RequestID    string `json:"requestId"`
}

// newHTTPError builds an Error from a non-2xx response. The vendor code wins
// over the HTTP status when both are present.
func newHTTPError(statusCode int, body []byte, underlying error) *Error {
	e := &Error{
		Code:       ClassifyHTTPStatus(statusCode),
		HTTPCode:   statusCode,
		Message:    fmt.Sprintf("unexpected HTTP status %d", statusCode),
		Underlying: underlying,
	}

	var ve vendorError
	if len(body) == 0 || json.Unmarshal(body, &ve) != nil {
		return e
	}

	e.VendorCode = ve.ResponseCode
	if e.VendorCode == "" {
		e.VendorCode = ve.Code
	}
	if code, ok := ClassifyVendorCode(e.VendorCode); ok {
		e.Code = code
	}
	if ve.Message != "" {
		e.Message = ve.Message
	}
	e.Operation = ve.Operation
	e.RequestID = ve.RequestID
	return e
}

// ErrorCodeOf returns the classification of err, or ErrorCodeUnknown when err
// is not a transport error.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorCodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorCodeUnknown
}

// IsNotFound reports whether err is a RESOURCE_NOT_FOUND error.
func IsNotFound(err error) bool {
	return ErrorCodeOf(err) == ErrorCodeResourceNotFound
}

// HasVendorCode reports whether err carries one of the given vendor codes.
func HasVendorCode(err error, codes ...string) bool {
	var e *Error
	if !errors.As(err, &e) || e.VendorCode == "" {
		return false
	}
	for _, c := range codes {
		if e.VendorCode == c {
			return true
		}
	}
	return false
}
