// Package test holds end-to-end tests that drive the whole pipeline
// (crawl, push, pull). The MinIO and Redis tests run against real backends
// started in containers and are skipped in -short mode and when no
// container runtime is available; the local-store test needs neither.
package test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// MinIOTestServer wraps a containerized MinIO and the bucket prepared for
// a test run.
type MinIOTestServer struct {
	container *tcminio.MinioContainer
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// StartMinIOServer launches a MinIO container and creates the test
// bucket. Returns nil when the container cannot be started (no Docker).
func StartMinIOServer(t *testing.T) *MinIOTestServer {
	t.Helper()
	ctx := context.Background()

	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Logf("minio container unavailable: %v", err)
		return nil
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("minio connection string: %v", err)
	}

	srv := &MinIOTestServer{
		container: container,
		Endpoint:  "http://" + endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
		Bucket:    "fs2cloud-test",
	}
	srv.createBucket(t)
	return srv
}

func (s *MinIOTestServer) createBucket(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")),
	)
	if err != nil {
		t.Fatalf("aws config: %v", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(s.Endpoint)
		o.UsePathStyle = true
	})
	if _, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(s.Bucket)}); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
}

// Stop terminates the container.
func (s *MinIOTestServer) Stop() {
	s.container.Terminate(context.Background())
}

// RedisTestServer wraps a containerized Redis used as a cache tier.
type RedisTestServer struct {
	container *tcredis.RedisContainer
	Addr      string
}

// StartRedisServer launches a Redis container. Returns nil when the
// container cannot be started.
func StartRedisServer(t *testing.T) *RedisTestServer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Logf("redis container unavailable: %v", err)
		return nil
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("redis endpoint: %v", err)
	}

	return &RedisTestServer{container: container, Addr: endpoint}
}

// Stop terminates the container.
func (s *RedisTestServer) Stop() {
	s.container.Terminate(context.Background())
}
