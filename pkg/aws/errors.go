package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// APIErrorCode returns the AWS error code carried by err (for example
// "ThrottlingException"), or "" when err did not come from an AWS API.
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsClientFault reports whether AWS blamed the request rather than the
// service. Client faults on a well-formed request usually mean a conditional
// check or validation failure.
func IsClientFault(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultClient
	}
	return false
}
