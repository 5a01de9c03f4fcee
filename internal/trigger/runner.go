package trigger

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/swap357/cirunner/pkg/types"
)

type options struct {
	httpClient     *http.Client
	downloadClient *http.Client
	command        CommandFunc
	pollInterval   time.Duration
	timeout        time.Duration
	logger         *slog.Logger
	output         io.Writer
}

// Option configures a control plane.
type Option func(*options)

// WithHTTPClient sets the client whose transport carries API requests
// (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDownloadClient sets the unauthenticated client used for artifact blobs.
func WithDownloadClient(c *http.Client) Option {
	return func(o *options) { o.downloadClient = c }
}

// WithCommandFunc replaces process execution for the gh backend.
func WithCommandFunc(fn CommandFunc) Option {
	return func(o *options) { o.command = fn }
}

// WithPollInterval sets how often a watched run is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithTimeout bounds each API request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where the gh backend streams the progress of watches and
// downloads. Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

func newOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New creates the control plane selected by cfg. Settings in cfg are applied
// before opts, so explicit options win.
func New(cfg types.ControlPlaneConfig, token string, opts ...Option) (ControlPlane, error) {
	var base []Option
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid controlPlane.pollInterval %q: %w", cfg.PollInterval, err)
		}
		base = append(base, WithPollInterval(d))
	}
	if cfg.Timeout > 0 {
		base = append(base, WithTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	opts = append(base, opts...)

	switch cfg.Type {
	case "", types.ControlPlaneGitHub:
		return NewGitHub(cfg.BaseURL, token, opts...), nil
	case types.ControlPlaneGHCLI:
		return NewGHCLI(cfg.GHPath, token, opts...), nil
	default:
		return nil, fmt.Errorf("unknown control plane type: %s", cfg.Type)
	}
}
