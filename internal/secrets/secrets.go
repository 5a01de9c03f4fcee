// Package secrets resolves the control-plane credential.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/swap357/cirunner/pkg/types"
)

// DefaultTokenEnv is the variable the token is read from unless configured otherwise.
const DefaultTokenEnv = "GH_TOKEN"

// ErrNoCredential is returned when no source yields a token.
var ErrNoCredential = errors.New("no control-plane credential")

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver looks the token up in the environment, then in Secrets Manager.
type Resolver struct {
	cfg    types.CredentialsConfig
	getenv func(string) string
	client SecretsAPI
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSecretsClient sets a custom Secrets Manager client (useful for testing).
func WithSecretsClient(c SecretsAPI) Option {
	return func(r *Resolver) { r.client = c }
}

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(r *Resolver) { r.getenv = fn }
}

// NewResolver creates a Resolver for cfg.
func NewResolver(cfg types.CredentialsConfig, opts ...Option) *Resolver {
	r := &Resolver{cfg: cfg, getenv: os.Getenv}
	for _, o := range opts {
		o(r)
	}
	return r
}

// EnvName is the environment variable consulted first.
func (r *Resolver) EnvName() string {
	if r.cfg.Env != "" {
		return r.cfg.Env
	}
	return DefaultTokenEnv
}

// Token returns the credential. The secret, when used, may hold the bare
// token or a JSON object with a "token" field or a field named like EnvName.
func (r *Resolver) Token(ctx context.Context) (string, error) {
	if tok := strings.TrimSpace(r.getenv(r.EnvName())); tok != "" {
		return tok, nil
	}
	if r.cfg.SecretID == "" {
		return "", fmt.Errorf("%w: %s environment variable is required", ErrNoCredential, r.EnvName())
	}

	client, err := r.secretsClient(ctx)
	if err != nil {
		return "", err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(r.cfg.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", r.cfg.SecretID, err)
	}

	tok := parseSecret(aws.ToString(out.SecretString), r.EnvName())
	if tok == "" {
		return "", fmt.Errorf("%w: secret %s holds no token", ErrNoCredential, r.cfg.SecretID)
	}
	return tok, nil
}

func (r *Resolver) secretsClient(ctx context.Context) (SecretsAPI, error) {
	if r.client != nil {
		return r.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	var opts []func(*secretsmanager.Options)
	if r.cfg.Region != "" {
		opts = append(opts, func(o *secretsmanager.Options) { o.Region = r.cfg.Region })
	}
	r.client = secretsmanager.NewFromConfig(cfg, opts...)
	return r.client, nil
}

func parseSecret(raw, envName string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return ""
	}
	if tok := fields["token"]; tok != "" {
		return tok
	}
	return fields[envName]
}
