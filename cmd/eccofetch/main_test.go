package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/config"
	"github.com/ligustah/eccofetch/internal/dataset"
	"github.com/ligustah/eccofetch/internal/diskaware"
	"github.com/ligustah/eccofetch/internal/earthdata"
	"github.com/ligustah/eccofetch/internal/retrieve"
	"github.com/ligustah/eccofetch/internal/store"
	"github.com/ligustah/eccofetch/internal/testutils"
)

const (
	sshMonthly = "ECCO_L4_SSH_05DEG_MONTHLY_V4R4"
	bucket     = "podaac-ops-cumulus-protected"
)

const credentialsBody = `{
  "accessKeyId": "ASIAEXAMPLE",
  "secretAccessKey": "secret",
  "sessionToken": "token",
  "expiration": "2000-01-01 01:00:00+00:00"
}`

// monthlyGranules serves SSH granules for December 1999 through April 2000
// and returns them with their object contents.
func monthlyGranules() ([]testutils.Granule, map[string][]byte) {
	var granules []testutils.Granule
	objects := make(map[string][]byte)
	for i := 0; i < 5; i++ {
		start := time.Date(1999, 12, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		ref := fmt.Sprintf("%s/%s/SEA_SURFACE_HEIGHT_mon_mean_%s_ECCO_V4r4_latlon_0p50deg.nc",
			bucket, sshMonthly, start.Format("2006-01"))
		granules = append(granules, testutils.Granule{
			ShortName: sshMonthly,
			Start:     start,
			End:       start.AddDate(0, 1, 0).Add(-time.Second),
			Ref:       ref,
		})
		objects[ref] = testutils.GenerateTestData(1024 * (i + 1))
	}
	return granules, objects
}

type fakePrompter struct {
	login earthdata.Login
	err   error
	calls int
}

func (p *fakePrompter) Prompt(string) (earthdata.Login, error) {
	p.calls++
	return p.login, p.err
}

type testEnv struct {
	cmr      *testutils.FakeCMR
	creds    *testutils.CredentialServer
	netrc    string
	root     string
	prompter *fakePrompter
	objects  map[string][]byte
}

// setupEnv points the CLI at fake services through ECCO_ variables.
func setupEnv(t *testing.T, credStatus int) *testEnv {
	t.Helper()

	granules, objects := monthlyGranules()
	env := &testEnv{
		cmr:      testutils.StartFakeCMR(t, granules),
		creds:    testutils.StartCredentialServer(t, credStatus, credentialsBody),
		netrc:    filepath.Join(t.TempDir(), ".netrc"),
		root:     t.TempDir(),
		prompter: &fakePrompter{err: earthdata.ErrNonInteractive},
		objects:  objects,
	}
	netrc := fmt.Sprintf("machine %s\n    login alice\n    password hunter2\n", earthdata.DefaultHost)
	require.NoError(t, os.WriteFile(env.netrc, []byte(netrc), 0600))

	t.Setenv("ECCO_CMR_URL", env.cmr.URL())
	t.Setenv("ECCO_CREDENTIALS_URL", env.creds.URL)
	t.Setenv("ECCO_NETRC", env.netrc)
	t.Setenv("ECCO_DOWNLOAD_ROOT", env.root)
	t.Setenv("ECCO_PROGRESS", "false")
	t.Setenv("ECCO_RETRY_ATTEMPTS", "1")
	t.Setenv("ECCO_RETRY_BACKOFF", "1ms")
	t.Setenv("ECCO_LOG_LEVEL", "warn")
	return env
}

func (env *testEnv) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.prompter = env.prompter
	a.free = diskaware.Static(100 << 30)

	opener := testutils.MemStore(t, env.objects)
	a.bucketOpener = func(_ context.Context, creds aws.CredentialsProvider, _ config.Config) (store.BucketOpener, error) {
		c, err := creds.Retrieve(context.Background())
		if err != nil {
			return nil, err
		}
		if c.SessionToken != "token" {
			return nil, errors.New("unexpected credentials")
		}
		return opener, nil
	}

	code = execute(context.Background(), a, args)
	return code, out.String(), errOut.String()
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestQuery(t *testing.T) {
	env := setupEnv(t, http.StatusOK)

	code, stdout, stderr := env.run(t, "query", sshMonthly, "2000-01", "2000-03")
	require.Equal(t, ExitSuccess, code, stderr)

	refs := lines(stdout)
	require.Len(t, refs, 3)
	assert.Contains(t, refs[0], "2000-01")
	assert.Contains(t, refs[2], "2000-03")
	assert.True(t, strings.HasPrefix(refs[0], bucket+"/"), "s3:// prefix should be stripped: %s", refs[0])

	assert.Zero(t, env.creds.Requests.Load(), "query must not fetch credentials")
	assert.Equal(t, []string{"2000-01-02,2000-03-31"}, env.cmr.Temporals())
}

func TestQueryCatalogError(t *testing.T) {
	env := setupEnv(t, http.StatusOK)
	env.cmr.FailWith("Collection not found")

	code, _, stderr := env.run(t, "query", "ECCO_L4_NOPE_05DEG_MONTHLY_V4R4", "2000-01", "2000-03")
	assert.Equal(t, ExitCatalogError, code)
	assert.Contains(t, stderr, "Collection not found")
}

func TestGet(t *testing.T) {
	env := setupEnv(t, http.StatusOK)

	code, stdout, stderr := env.run(t, "get", sshMonthly, "2000-01", "2000-03", "--workers", "2")
	require.Equal(t, ExitSuccess, code, stderr)

	paths := lines(stdout)
	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.Equal(t, filepath.Join(env.root, sshMonthly), filepath.Dir(p))
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		ref := bucket + "/" + sshMonthly + "/" + filepath.Base(p)
		assert.Equal(t, env.objects[ref], data)
	}
	assert.EqualValues(t, 1, env.creds.Requests.Load())
	assert.Zero(t, env.prompter.calls)

	t.Run("single file as JSON", func(t *testing.T) {
		code, stdout, stderr := env.run(t, "get", sshMonthly, "2000-02-15", "2000-02-15", "--json")
		require.Equal(t, ExitSuccess, code, stderr)

		var path string
		require.NoError(t, json.Unmarshal([]byte(stdout), &path), stdout)
		assert.Contains(t, path, "2000-02")
	})
}

func TestGetFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, env *testEnv)
		args  []string
		code  int
	}{
		{
			name: "credential exchange rejected",
			setup: func(t *testing.T, env *testEnv) {
				env.creds = testutils.StartCredentialServer(t, http.StatusUnauthorized, `{"error":"unauthorized"}`)
				t.Setenv("ECCO_CREDENTIALS_URL", env.creds.URL)
			},
			args: []string{"get", sshMonthly, "2000-01", "2000-03"},
			code: ExitAuthError,
		},
		{
			name: "no stored login and no terminal",
			setup: func(t *testing.T, env *testEnv) {
				require.NoError(t, os.Remove(env.netrc))
			},
			args: []string{"get", sshMonthly, "2000-01", "2000-03"},
			code: ExitConfigError,
		},
		{
			name: "missing object",
			setup: func(t *testing.T, env *testEnv) {
				for ref := range env.objects {
					if strings.Contains(ref, "2000-02") {
						delete(env.objects, ref)
					}
				}
			},
			args: []string{"get", sshMonthly, "2000-01", "2000-03"},
			code: ExitTransferError,
		},
		{
			name: "bad date",
			args: []string{"get", sshMonthly, "2000-13", "2000-14"},
			code: ExitConfigError,
		},
		{
			name: "wrong argument count",
			args: []string{"get", sshMonthly},
			code: ExitInvalidArgs,
		},
		{
			name: "unknown flag",
			args: []string{"get", sshMonthly, "2000-01", "2000-03", "--bogus"},
			code: ExitInvalidArgs,
		},
		{
			name: "invalid snapshot interval",
			args: []string{"get", sshMonthly, "2000-01", "2000-03", "--snapshot-interval", "weekly"},
			code: ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t, http.StatusOK)
			if tt.setup != nil {
				tt.setup(t, env)
			}
			code, _, stderr := env.run(t, tt.args...)
			assert.Equal(t, tt.code, code, stderr)
		})
	}
}

func TestPromptedLoginIsSaved(t *testing.T) {
	env := setupEnv(t, http.StatusOK)
	require.NoError(t, os.Remove(env.netrc))
	env.prompter = &fakePrompter{login: earthdata.Login{Username: "bob", Password: "pw"}}

	code, _, stderr := env.run(t, "open", sshMonthly, "2000-01", "2000-01")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, 1, env.prompter.calls)

	data, err := os.ReadFile(env.netrc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bob")
}

func TestOpen(t *testing.T) {
	env := setupEnv(t, http.StatusOK)

	code, stdout, stderr := env.run(t, "open", sshMonthly, "2000-01", "2000-03")
	require.Equal(t, ExitSuccess, code, stderr)

	out := lines(stdout)
	require.Len(t, out, 3)
	assert.True(t, strings.HasPrefix(out[0], "s3://"+bucket+"/"), out[0])

	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "open must not create directories")
}

func TestDiskaware(t *testing.T) {
	t.Run("downloads when it fits", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)

		code, stdout, stderr := env.run(t, "diskaware", "2000-01", "2000-03", sshMonthly)
		require.Equal(t, ExitSuccess, code, stderr)

		out := lines(stdout)
		require.Len(t, out, 3)
		for _, l := range out {
			fields := strings.Split(l, "\t")
			require.Len(t, fields, 3)
			assert.Equal(t, sshMonthly, fields[0])
			assert.Equal(t, string(diskaware.ModeDownload), fields[1])
			assert.FileExists(t, fields[2])
		}
	})

	t.Run("opens when it does not fit", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)

		code, stdout, stderr := env.run(t, "diskaware", "2000-01", "2000-03", sshMonthly, "--free-space", "10KB", "--json")
		require.Equal(t, ExitSuccess, code, stderr)

		var results map[string]struct {
			Mode   string   `json:"mode"`
			Result []string `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &results), stdout)
		r := results[sshMonthly]
		assert.Equal(t, string(diskaware.ModeOpen), r.Mode)
		assert.Len(t, r.Result, 3)
	})

	t.Run("dry run", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)

		code, stdout, stderr := env.run(t, "diskaware", "2000-01", "2000-03", sshMonthly,
			"--free-space", "1MB", "--max-avail-frac", "0", "--dry-run", "--json")
		require.Equal(t, ExitSuccess, code, stderr)

		var plan diskaware.Plan
		require.NoError(t, json.Unmarshal([]byte(stdout), &plan), stdout)
		assert.Equal(t, diskaware.ModeOpen, plan.Mode)
		assert.EqualValues(t, 2048+3072+4096, plan.Required)
		assert.EqualValues(t, 1<<20, plan.Free)
		assert.Zero(t, plan.MaxAvailFrac)

		entries, err := os.ReadDir(env.root)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("zero free space is honoured", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)

		code, stdout, stderr := env.run(t, "diskaware", "2000-01", "2000-03", sshMonthly,
			"--free-space", "0", "--dry-run", "--json")
		require.Equal(t, ExitSuccess, code, stderr)

		var plan diskaware.Plan
		require.NoError(t, json.Unmarshal([]byte(stdout), &plan), stdout)
		assert.Zero(t, plan.Free)
		assert.Equal(t, diskaware.ModeOpen, plan.Mode)
	})

	t.Run("bad free space", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)
		code, _, _ := env.run(t, "diskaware", "2000-01", "2000-03", sshMonthly, "--free-space", "lots")
		assert.Equal(t, ExitConfigError, code)
	})

	t.Run("needs a dataset", func(t *testing.T) {
		env := setupEnv(t, http.StatusOK)
		code, _, _ := env.run(t, "diskaware", "2000-01", "2000-03")
		assert.Equal(t, ExitInvalidArgs, code)
	})
}

func TestRefs(t *testing.T) {
	env := setupEnv(t, http.StatusOK)

	jsonRoot := t.TempDir()
	dir := filepath.Join(jsonRoot, "MZZ_05DEG_MONTHLY")
	require.NoError(t, os.MkdirAll(dir, 0755))

	var dataRef string
	for ref := range env.objects {
		dataRef = ref
		break
	}
	refFile := fmt.Sprintf(`{"version": 1, "refs": {
  ".zgroup": "{\"zarr_format\": 2}",
  "SSH/0.0.0": ["s3://%s", 10, 6]
}}`, dataRef)
	require.NoError(t, os.WriteFile(filepath.Join(dir, sshMonthly+".json"), []byte(refFile), 0644))

	code, stdout, stderr := env.run(t, "refs", sshMonthly, "--json-root", jsonRoot)
	require.Equal(t, ExitSuccess, code, stderr)
	out := lines(stdout)
	require.Len(t, out, 2)
	assert.True(t, strings.HasPrefix(out[0], ".zgroup\tinline"), out[0])
	assert.True(t, strings.HasPrefix(out[1], "SSH/0.0.0\ts3://"), out[1])
	assert.Zero(t, env.creds.Requests.Load())

	code, stdout, stderr = env.run(t, "refs", sshMonthly, "--json-root", jsonRoot, "--key", "SSH/0.0.0")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, string(env.objects[dataRef][10:16]), stdout)

	code, _, _ = env.run(t, "refs", sshMonthly, "--json-root", jsonRoot, "--key", "nope")
	assert.Equal(t, ExitInvalidArgs, code)

	code, _, _ = env.run(t, "refs", "ECCO_L4_TEMP_SALINITY_05DEG_MONTHLY_V4R4", "--json-root", jsonRoot)
	assert.Equal(t, ExitConfigError, code)

	code, _, _ = env.run(t, "refs", sshMonthly)
	assert.Equal(t, ExitInvalidArgs, code)
}

func TestConfigFile(t *testing.T) {
	env := setupEnv(t, http.StatusOK)
	t.Setenv("ECCO_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "eccofetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\nlog_level: loud\n"), 0644))

	code, _, _ := env.run(t, "--config", path, "query", sshMonthly, "2000-01", "2000-03")
	assert.Equal(t, ExitConfigError, code)

	code, _, _ = env.run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "query", sshMonthly, "2000-01", "2000-03")
	assert.Equal(t, ExitConfigError, code)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{usageError{errors.New("accepts 3 arg(s)")}, ExitInvalidArgs},
		{errors.New(`unknown command "fetch" for "eccofetch"`), ExitInvalidArgs},
		{fmt.Errorf("wrap: %w", config.ErrInvalid), ExitConfigError},
		{fmt.Errorf("wrap: %w", dataset.ErrInvalidDate), ExitConfigError},
		{retrieve.ErrOutputDirMissing, ExitConfigError},
		{fmt.Errorf("wrap: %w", earthdata.ErrAuthentication), ExitAuthError},
		{&catalog.Error{Message: "bad"}, ExitCatalogError},
		{&retrieve.TransferError{Ref: "a/b", Err: errors.New("reset")}, ExitTransferError},
		{fmt.Errorf("wrap: %w", store.ErrNotFound), ExitTransferError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, exitCode(tt.err), "%v", tt.err)
	}
}

func TestUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := execute(context.Background(), newApp(&out, &errOut), []string{"fetch"})
	assert.Equal(t, ExitInvalidArgs, code)
	assert.Contains(t, errOut.String(), "--help")
}
