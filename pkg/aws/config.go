package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Settings carries the values needed to build an SDK config. Endpoint is
// used for LocalStack; when set every client built from the resulting
// config talks to that URL instead of AWS.
type Settings struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SettingsFromEnv reads AWS_REGION, AWS_ENDPOINT (falling back to
// AWS_SQS_ENDPOINT / AWS_S3_ENDPOINT) and static credentials.
func SettingsFromEnv() Settings {
	s := Settings{
		Region:          os.Getenv("AWS_REGION"),
		Endpoint:        os.Getenv("AWS_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if s.Endpoint == "" {
		s.Endpoint = os.Getenv("AWS_SQS_ENDPOINT")
	}
	if s.Endpoint == "" {
		s.Endpoint = os.Getenv("AWS_S3_ENDPOINT")
	}
	if s.Region == "" {
		s.Region = "us-east-1"
	}
	return s
}

// LoadAWSConfig loads the default SDK config and applies region, static
// credentials and the LocalStack endpoint from s.
func LoadAWSConfig(ctx context.Context, s Settings) (sdkaws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" || s.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	if s.Endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(s.Endpoint)
	}
	return cfg, nil
}

// UsesCustomEndpoint reports whether cfg targets a LocalStack-style endpoint.
func UsesCustomEndpoint(cfg sdkaws.Config) bool {
	return cfg.BaseEndpoint != nil && *cfg.BaseEndpoint != ""
}
