package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/pkg/types"
)

func TestNew_DefaultsToGitHub(t *testing.T) {
	cp, err := New(types.ControlPlaneConfig{}, "tok")
	require.NoError(t, err)
	g, ok := cp.(*GitHub)
	require.True(t, ok)
	assert.Equal(t, DefaultBaseURL, g.baseURL)
}

func TestNew_GitHubSettings(t *testing.T) {
	cp, err := New(types.ControlPlaneConfig{
		Type:         types.ControlPlaneGitHub,
		BaseURL:      "https://ghe.example.com/api/v3/",
		PollInterval: "2s",
		Timeout:      5,
	}, "tok")
	require.NoError(t, err)
	g := cp.(*GitHub)
	assert.Equal(t, "https://ghe.example.com/api/v3", g.baseURL)
	assert.Equal(t, 2*time.Second, g.poller.Interval())
	assert.Equal(t, 5*time.Second, g.api.Timeout)
}

func TestNew_OptionsOverrideConfig(t *testing.T) {
	cp, err := New(types.ControlPlaneConfig{PollInterval: "2s"}, "tok", WithPollInterval(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cp.(*GitHub).poller.Interval())
}

func TestNew_GHCLI(t *testing.T) {
	cp, err := New(types.ControlPlaneConfig{Type: types.ControlPlaneGHCLI, GHPath: "/opt/gh", PollInterval: "10s"}, "")
	require.NoError(t, err)
	c, ok := cp.(*GHCLI)
	require.True(t, ok)
	assert.Equal(t, "/opt/gh", c.path)
	assert.Equal(t, 10, c.pollInterval)
}

func TestNew_InvalidPollInterval(t *testing.T) {
	_, err := New(types.ControlPlaneConfig{PollInterval: "soon"}, "tok")
	assert.ErrorContains(t, err, "pollInterval")
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(types.ControlPlaneConfig{Type: "jenkins"}, "tok")
	assert.ErrorContains(t, err, "unknown control plane type")
}
