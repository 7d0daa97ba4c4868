package fallback

import (
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

// UserGuidance is what a presentation layer shows after a failure.
type UserGuidance struct {
	OperationContext          string
	ErrorMessage              string
	Suggestions               []string
	Class                     types.ErrorClass
	CanContinueWithManualMode bool
	ShouldRetryLater          bool
}

type guidanceTemplate struct {
	suggestions []string
	manual      bool
	retryLater  bool
}

var genericGuidance = guidanceTemplate{
	suggestions: []string{
		"Try the operation again",
		"If the problem persists, contact your administrator",
	},
}

var connectivityGuidance = guidanceTemplate{
	suggestions: []string{
		"Check your network connection",
		"Verify proxy and firewall settings allow access to the service",
		"Try the operation again",
	},
	manual: true,
}

var guidanceByClass = map[types.ErrorClass]guidanceTemplate{
	types.ClassAuthentication: {
		suggestions: []string{
			"Regenerate your personal access token",
			"Verify the token has not expired",
			"Check that the token is configured for this tool",
		},
		manual: true,
	},
	types.ClassAuthorization: {
		suggestions: []string{
			"Verify you have permission to access this resource",
			"Ask a project administrator to grant the required access",
			"Check that your token includes the required scopes",
		},
		manual: true,
	},
	types.ClassNotFound: {
		suggestions: []string{
			"Verify the project or repository identifier",
			"Check the path for typos",
			"Confirm the resource has not been moved or deleted",
		},
		manual: true,
	},
	types.ClassRateLimit: {
		suggestions: []string{
			"Wait a few minutes before trying again",
			"Reduce the number of concurrent requests",
		},
		retryLater: true,
	},
	types.ClassServer: {
		suggestions: []string{
			"Check the service status page for ongoing incidents",
			"Try again in a few minutes",
		},
		manual:     true,
		retryLater: true,
	},
	types.ClassNetwork:        connectivityGuidance,
	types.ClassTimeout:        connectivityGuidance,
	types.ClassRequestTimeout: connectivityGuidance,
	types.ClassUnavailable: {
		suggestions: []string{
			"The service is paused after repeated failures",
			"Continue in manual mode or retry after the cool-down period",
		},
		manual:     true,
		retryLater: true,
	},
	types.ClassValidation: {
		suggestions: []string{
			"Check the input values and try again",
		},
	},
	types.ClassCancelled: {
		suggestions: []string{
			"Run the operation again when ready",
		},
	},
}

// CreateUserGuidance maps err onto a guidance template for its class.
func CreateUserGuidance(err error, operationContext string) UserGuidance {
	class := resilience.Classify(err)
	tmpl, ok := guidanceByClass[class]
	if !ok {
		tmpl = genericGuidance
	}

	return UserGuidance{
		OperationContext:          operationContext,
		ErrorMessage:              resilience.TranslateError(err),
		Suggestions:               append([]string(nil), tmpl.suggestions...),
		Class:                     class,
		CanContinueWithManualMode: tmpl.manual,
		ShouldRetryLater:          tmpl.retryLater,
	}
}
