package earthdata

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	eccohttp "github.com/ligustah/eccofetch/internal/http"
)

// Default endpoints.
const (
	DefaultHost           = "urs.earthdata.nasa.gov"
	DefaultCredentialsURL = "https://archive.podaac.earthdata.nasa.gov/s3credentials"
)

// ErrAuthentication is returned when the credential exchange fails.
var ErrAuthentication = errors.New("earthdata: authentication failed")

// Options configures a Provider.
type Options struct {
	// NetrcPath overrides the netrc location. Default: DefaultNetrcPath().
	NetrcPath string

	// CredentialsURL is the S3 credential endpoint.
	// Default: DefaultCredentialsURL
	CredentialsURL string

	// Prompter asks for a login when none is stored.
	// Default: TerminalPrompter on stdin/stderr
	Prompter Prompter

	// HTTPOptions configures the session HTTP client.
	HTTPOptions eccohttp.Options

	Log logrus.FieldLogger
}

// Provider resolves Earthdata logins and opens sessions.
type Provider struct {
	opts Options
}

// NewProvider creates a Provider, applying defaults.
func NewProvider(opts Options) *Provider {
	if opts.NetrcPath == "" {
		opts.NetrcPath = DefaultNetrcPath()
	}
	if opts.CredentialsURL == "" {
		opts.CredentialsURL = DefaultCredentialsURL
	}
	if opts.Prompter == nil {
		opts.Prompter = TerminalPrompter{}
	}
	if opts.HTTPOptions.MaxIdleConnsPerHost == 0 {
		opts.HTTPOptions = eccohttp.DefaultOptions()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Provider{opts: opts}
}

// EnsureCredentials resolves the login for host and returns a session that
// authenticates against it. A missing or incomplete netrc entry is prompted
// for and persisted.
func (p *Provider) EnsureCredentials(ctx context.Context, host string) (*Session, error) {
	if host == "" {
		host = DefaultHost
	}
	log := p.opts.Log.WithField("host", host)

	login, ok, err := lookupNetrc(p.opts.NetrcPath, host)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.WithField("netrc", p.opts.NetrcPath).Info("No stored Earthdata login, prompting")
		login, err = p.opts.Prompter.Prompt(host)
		if err != nil {
			return nil, err
		}
		if err := storeNetrc(p.opts.NetrcPath, host, login); err != nil {
			return nil, fmt.Errorf("earthdata: persist login: %w", err)
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("earthdata: cookie jar: %w", err)
	}

	httpOpts := p.opts.HTTPOptions
	httpOpts.Jar = jar
	httpOpts.Wrap = eccohttp.BasicAuth(host, login.Username, login.Password)

	log.WithField("user", login.Username).Debug("Earthdata session ready")

	return &Session{
		Host:           host,
		Username:       login.Username,
		client:         eccohttp.NewClient(httpOpts),
		credentialsURL: p.opts.CredentialsURL,
	}, nil
}

// Session is an authenticated Earthdata session.
type Session struct {
	Host     string
	Username string

	client         *eccohttp.Client
	credentialsURL string
}

// ExchangeForCloudCredentials performs one GET against the credential
// endpoint and returns the temporary S3 credentials.
func (s *Session) ExchangeForCloudCredentials(ctx context.Context) (Credential, error) {
	var cred Credential
	if err := s.client.GetJSON(ctx, s.credentialsURL, nil, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: %s: %v", ErrAuthentication, s.credentialsURL, err)
	}
	if cred.AccessKeyID == "" || cred.SecretAccessKey == "" || cred.SessionToken == "" {
		return Credential{}, fmt.Errorf("%w: response from %s lacks accessKeyId, secretAccessKey or sessionToken", ErrAuthentication, s.credentialsURL)
	}
	return cred, nil
}

// Credential is a set of temporary S3 credentials.
type Credential struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	Expiration      string `json:"expiration,omitempty"`
}

var expirationLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

// ExpiresAt parses Expiration. ok is false if it is absent or unparseable.
func (c Credential) ExpiresAt() (t time.Time, ok bool) {
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, c.Expiration); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Retrieve implements aws.CredentialsProvider. The credentials are never
// refreshed, so CanExpire is false even when an expiration is known.
func (c Credential) Retrieve(context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          "EarthdataS3Credentials",
	}, nil
}
