// Package earthdata authenticates against NASA Earthdata Login and exchanges
// the login for short-lived S3 credentials.
//
// # Credentials
//
// The username and password are read from the netrc file (~/.netrc, or
// ~/_netrc on Windows, or $NETRC). If the file or the machine entry is
// missing or incomplete, the user is prompted on the terminal and the entry
// is written back. Without a terminal the lookup fails with
// [ErrNonInteractive].
//
// # Sessions
//
// [Provider.EnsureCredentials] returns a [Session]. The session carries its
// own HTTP client which sends basic auth to the login host only and keeps
// the cookies set during the OAuth redirect dance. Nothing is installed
// process-wide.
//
//	p := earthdata.NewProvider(earthdata.Options{})
//	sess, err := p.EnsureCredentials(ctx, earthdata.DefaultHost)
//	cred, err := sess.ExchangeForCloudCredentials(ctx)
//
// The returned [Credential] implements aws.CredentialsProvider. It is static:
// a fresh exchange is needed to obtain new keys.
package earthdata
