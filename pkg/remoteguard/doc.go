// Package remoteguard runs calls to a remote service behind retry with
// backoff, a circuit breaker and an optional fallback path.
//
// # Quick Start
//
//	client, err := remoteguard.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	pipelines, err := remoteguard.Execute(ctx, client, func(ctx context.Context) ([]Pipeline, error) {
//	    return api.ListPipelines(ctx, projectID)
//	})
//
// Remote operations report failures as classified errors so the client can
// decide what to retry:
//
//	return nil, remoteguard.NewRemoteError(resp.StatusCode, body.Code, body.Message).
//	    WithHeaders(resp.Header)
//
// Timeouts, connection errors, 408, 429 and 500/502/503/504 are retried.
// Validation errors, 400/401/403/404/422 and unknown errors fail at once.
// A 429 waits at least 2^attempt seconds, or longer when the server says so.
//
// # Per-call Options
//
//	remoteguard.Execute(ctx, client, op,
//	    remoteguard.WithPolicy(remoteguard.AggressiveRetryPolicy()),
//	    remoteguard.WithTimeout(30*time.Second),
//	    remoteguard.WithOperationName("list-pipelines"),
//	)
//
// The timeout covers every attempt and every backoff delay. When it expires
// the error matches ErrTimeout and ErrCancelled; it never counts as a breaker
// failure and never triggers a fallback.
//
// # Batches
//
//	result, err := remoteguard.ExecutePartial(ctx, client, projectIDs, fetchProject, true)
//	for _, failure := range result.Failures() {
//	    log.Printf("project %v: %v", failure.Input, failure.Err)
//	}
//
// # Fallbacks
//
// ExecuteWithFallback replaces a failed call with a fallback result when the
// failure is one a fallback can help with (401, 403, 5xx, network, timeouts,
// an open breaker). 404 and 429 are returned unchanged.
//
// ExecuteAnalysisWithFallback also caches every successful result under a
// key and passes the last cached entry to the fallback:
//
//	res, err := remoteguard.ExecuteAnalysisWithFallback(ctx, client, projectID, analyze,
//	    func(ctx context.Context, cached *remoteguard.CachedEntry[Analysis]) (Analysis, error) {
//	        if cached == nil {
//	            return Analysis{Manual: true}, nil
//	        }
//	        return cached.Value, nil
//	    })
//	for _, w := range res.Warnings {
//	    fmt.Println(w)
//	}
//
// # User Guidance
//
//	g := client.CreateUserGuidance(err, "loading pipelines")
//	fmt.Println(g.ErrorMessage)
//	for _, s := range g.Suggestions {
//	    fmt.Println(" -", s)
//	}
//
// # Configuration
//
//	client, err := remoteguard.NewFromFile("remoteguard.json")
//
// Environment variables prefixed with REMOTEGUARD_ override file values.
// The analysis cache can be shared across instances through Redis:
//
//	client, err := remoteguard.New(remoteguard.WithRedisAddress("localhost:6379"))
//
// # Observability
//
// Client.Metrics returns an in-process snapshot. With metrics enabled, events
// are also sent to DataDog (or logged) and registered with Prometheus when
// configured.
package remoteguard
