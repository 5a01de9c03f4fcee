package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/pkg/types"
)

type mockSecrets struct {
	value string
	err   error
	calls int
}

func (m *mockSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: aws.String(m.value)}, nil
}

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestToken_FromDefaultEnv(t *testing.T) {
	sm := &mockSecrets{value: "unused"}
	r := NewResolver(types.CredentialsConfig{SecretID: "ci/token"},
		WithGetenv(env(map[string]string{"GH_TOKEN": " ghp_env \n"})),
		WithSecretsClient(sm))

	tok, err := r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghp_env", tok)
	assert.Zero(t, sm.calls)
}

func TestToken_ConfiguredEnvName(t *testing.T) {
	r := NewResolver(types.CredentialsConfig{Env: "CI_BOT_TOKEN"},
		WithGetenv(env(map[string]string{"GH_TOKEN": "wrong", "CI_BOT_TOKEN": "right"})))

	tok, err := r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "right", tok)
}

func TestToken_Missing(t *testing.T) {
	r := NewResolver(types.CredentialsConfig{}, WithGetenv(env(nil)))
	_, err := r.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Contains(t, err.Error(), "GH_TOKEN")
}

func TestToken_FromSecretsManager(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"bare", "ghp_plain", "ghp_plain"},
		{"json token", `{"token":"ghp_json"}`, "ghp_json"},
		{"json env key", `{"GH_TOKEN":"ghp_keyed"}`, "ghp_keyed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(types.CredentialsConfig{SecretID: "ci/token"},
				WithGetenv(env(nil)),
				WithSecretsClient(&mockSecrets{value: tt.value}))
			tok, err := r.Token(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok)
		})
	}
}

func TestToken_SecretWithoutToken(t *testing.T) {
	r := NewResolver(types.CredentialsConfig{SecretID: "ci/token"},
		WithGetenv(env(nil)),
		WithSecretsClient(&mockSecrets{value: `{"other":"x"}`}))
	_, err := r.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestToken_SecretsManagerError(t *testing.T) {
	r := NewResolver(types.CredentialsConfig{SecretID: "ci/token"},
		WithGetenv(env(nil)),
		WithSecretsClient(&mockSecrets{err: errors.New("AccessDenied")}))
	_, err := r.Token(context.Background())
	assert.ErrorContains(t, err, "AccessDenied")
	assert.NotErrorIs(t, err, ErrNoCredential)
}
