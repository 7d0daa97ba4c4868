package resilience

import (
	"errors"
	"strings"

	"github.com/LavishGent/remoteguard/internal/types"
)

// Messages for machine error codes reported by the remote service. Keys are lower case.
var codeMessages = map[string]string{
	"invalidtoken":       "The access token is invalid. Generate a new token and try again.",
	"tokenexpired":       "The access token has expired. Generate a new token and try again.",
	"insufficientscope":  "The access token does not have the required scopes for this operation.",
	"accessdenied":       "You do not have permission to perform this operation.",
	"projectnotfound":    "The project could not be found. Check the project name or ID.",
	"repositorynotfound": "The repository could not be found. Check the repository name or ID.",
	"pipelinenotfound":   "The pipeline could not be found. Check the pipeline name or ID.",
	"ratelimitexceeded":  "The request rate limit was exceeded. Wait before retrying.",
	"quotaexceeded":      "The usage quota for this account has been exceeded.",
	"serviceunavailable": "The remote service is temporarily unavailable. Try again later.",
	"invalidrequest":     "The request was rejected as invalid. Check the supplied parameters.",
	"resourcelocked":     "The resource is locked by another operation. Try again later.",
}

var statusMessages = map[int]string{
	400: "The request was invalid. Check the supplied parameters.",
	401: "Authentication failed. Check that your access token is valid and has not expired.",
	403: "Access denied. Your account does not have permission for this operation.",
	404: "The requested resource was not found. Check the identifier or path.",
	408: "The request timed out. Try again.",
	422: "The request could not be processed. Check the supplied data.",
	429: "Too many requests. Wait before retrying.",
	500: "The remote service encountered an internal error. Try again later.",
	502: "The remote service returned a bad gateway response. Try again later.",
	503: "The remote service is temporarily unavailable. Try again later.",
	504: "The remote service timed out. Try again later.",
}

var classMessages = map[types.ErrorClass]string{
	types.ClassServer:      "The remote service returned a server error. Try again later.",
	types.ClassNetwork:     "A network error occurred. Check your connection and try again.",
	types.ClassTimeout:     "The operation timed out. Check your connection and try again.",
	types.ClassUnavailable: "The remote service is temporarily unavailable after repeated failures. Try again later.",
	types.ClassCancelled:   "The operation was cancelled.",
}

// TranslateError turns an error into a user-facing message. A machine code
// takes priority over the status code, which takes priority over the class.
func TranslateError(err error) string {
	if err == nil {
		return ""
	}

	if remoteErr, ok := asRemoteError(err); ok {
		if msg, ok := codeMessages[strings.ToLower(remoteErr.Code)]; ok {
			return msg
		}
		if msg, ok := statusMessages[remoteErr.StatusCode]; ok {
			return msg
		}
	}

	class := Classify(err)
	if class == types.ClassValidation {
		var validationErr *types.ValidationError
		if errors.As(err, &validationErr) {
			return "Invalid input: " + validationErr.Message
		}
		return "Invalid input: " + err.Error()
	}
	if msg, ok := classMessages[class]; ok {
		return msg
	}

	return "An unexpected error occurred: " + err.Error()
}
