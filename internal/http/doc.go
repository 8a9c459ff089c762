// Package http provides the HTTP client used for catalog and credential API
// calls.
//
// This package handles:
//   - Connection pooling
//   - Retry with exponential backoff on transport errors and 5xx responses
//   - JSON decoding, including error payloads sent with 4xx responses
//   - Per-host basic authentication and cookie persistence across redirects
//
// # Usage
//
//	client := http.NewClient(Options{
//	    MaxIdleConnsPerHost: 100,
//	    Timeout:             30 * time.Second,
//	    RetryAttempts:       5,
//	    Wrap:                http.BasicAuth("urs.earthdata.nasa.gov", user, pass),
//	})
//
//	var resp searchResponse
//	err := client.GetJSON(ctx, searchURL, url.Values{"page_size": {"2000"}}, &resp)
package http
