package s3svc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	// ErrNotFound is returned when the object or bucket does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrAccessDenied is returned when the credentials are not allowed to perform the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrRemoteUnavailable is returned for network and service failures.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrBucketAccess is returned when the bucket exists but cannot be used or created.
	ErrBucketAccess = errors.New("cannot access bucket")
)

// classify wraps err with the sentinel matching its S3 error code.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch errorCode(err) {
	case "NoSuchKey", "NotFound", "NoSuchBucket", "404":
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case "AccessDenied", "Forbidden", "403":
		return fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}

// errorCode returns the S3 error code of err, or the HTTP status code
// when the response carried no parsable error body (HEAD requests).
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return "404"
		case http.StatusForbidden:
			return "403"
		}
	}
	return ""
}
