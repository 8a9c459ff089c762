//go:build integration

package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligustah/eccofetch/internal/config"
	"github.com/ligustah/eccofetch/internal/diskaware"
	"github.com/ligustah/eccofetch/internal/store"
	"github.com/ligustah/eccofetch/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx)
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	env := setupEnv(t, http.StatusOK)
	minio.Seed(t, ctx, env.objects)
	t.Setenv("ECCO_S3_ENDPOINT", minio.Endpoint)
	t.Setenv("ECCO_REGION", "us-east-1")

	run := func(t *testing.T, args ...string) (int, string, string) {
		var out, errOut bytes.Buffer
		a := newApp(&out, &errOut)
		a.prompter = env.prompter
		a.free = diskaware.Static(100 << 30)
		// Minio does not accept Earthdata session tokens, so swap in its
		// root credentials while keeping the configured endpoint.
		a.bucketOpener = func(ctx context.Context, _ aws.CredentialsProvider, cfg config.Config) (store.BucketOpener, error) {
			return store.S3Opener(ctx, minio.Credentials(), store.S3Options{
				Region:   cfg.Region,
				Endpoint: cfg.S3Endpoint,
			})
		}
		code := execute(ctx, a, args)
		return code, out.String(), errOut.String()
	}

	t.Run("get", func(t *testing.T) {
		code, stdout, stderr := run(t, "get", sshMonthly, "2000-01", "2000-03", "--workers", "3")
		require.Equal(t, ExitSuccess, code, stderr)

		paths := lines(stdout)
		require.Len(t, paths, 3)
		for _, p := range paths {
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			ref := bucket + "/" + sshMonthly + "/" + filepath.Base(p)
			assert.Equal(t, env.objects[ref], data)
		}
	})

	t.Run("open", func(t *testing.T) {
		code, stdout, stderr := run(t, "open", sshMonthly, "2000-01", "2000-03")
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Len(t, lines(stdout), 3)
	})

	t.Run("diskaware_open", func(t *testing.T) {
		code, stdout, stderr := run(t, "diskaware", "2000-04", "2000-04", sshMonthly, "--free-space", "1KB")
		require.Equal(t, ExitSuccess, code, stderr)
		out := lines(stdout)
		require.Len(t, out, 1)
		assert.Contains(t, out[0], "\topen\ts3://")
	})

	t.Run("force_into_new_root", func(t *testing.T) {
		code, _, _ := run(t, "get", sshMonthly, "2000-01", "2000-03", "--root", t.TempDir(), "--force")
		assert.Equal(t, ExitSuccess, code)
	})
}
