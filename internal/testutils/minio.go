//go:build integration

package testutils

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ligustah/eccofetch/internal/store"
)

const minioRegion = "us-east-1"

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// Credentials returns a provider for the container's root user, standing in
// for Earthdata temporary credentials.
func (e *MinioEnv) Credentials() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(e.AccessKey, e.SecretKey, "")
}

// Options returns store options pointing at the container.
func (e *MinioEnv) Options() store.S3Options {
	return store.S3Options{Region: minioRegion, Endpoint: e.Endpoint}
}

// Opener returns a bucket opener for the container.
func (e *MinioEnv) Opener(ctx context.Context) (store.BucketOpener, error) {
	return store.S3Opener(ctx, e.Credentials(), e.Options())
}

func (e *MinioEnv) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(minioRegion),
		awsconfig.WithCredentialsProvider(e.Credentials()),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.Endpoint)
		o.UsePathStyle = true
	}), nil
}

// Seed creates the buckets named in objects (keyed by "bucket/key") and
// writes each object.
func (e *MinioEnv) Seed(t *testing.T, ctx context.Context, objects map[string][]byte) {
	t.Helper()

	client, err := e.client(ctx)
	if err != nil {
		t.Fatalf("s3 client: %v", err)
	}
	opener, err := e.Opener(ctx)
	if err != nil {
		t.Fatalf("opener: %v", err)
	}

	created := make(map[string]bool)
	for ref, data := range objects {
		name, key, err := store.ParseRef(ref)
		if err != nil {
			t.Fatalf("ParseRef: %v", err)
		}
		if !created[name] {
			if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
				t.Fatalf("create bucket %s: %v", name, err)
			}
			created[name] = true
		}

		b, err := opener(ctx, name)
		if err != nil {
			t.Fatalf("open bucket %s: %v", name, err)
		}
		err = b.WriteAll(ctx, key, data, nil)
		b.Close()
		if err != nil {
			t.Fatalf("write %s: %v", ref, err)
		}
	}
}

// StartMinioContainer starts a Minio container. Buckets are created by Seed.
func StartMinioContainer(t *testing.T, ctx context.Context) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	return &MinioEnv{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}
