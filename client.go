// Package s3transfer provides client initialization and configuration.
//
// The Client is the entry point for all transfers: streaming writes,
// known-size uploads, file uploads, and server-side copies, with
// configurable part sizing, concurrency, and retry behavior.
package s3transfer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/scheduler"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// Client runs transfers against one storage endpoint. It is safe for
// concurrent use; every transfer gets its own session while the scheduler
// and its concurrency bound are shared.
type Client struct {
	// s3Client is the storage interface consumed by the engine
	s3Client s3api.S3API

	// rawClient holds the actual AWS S3 client when one was built
	rawClient *s3.Client

	// config holds the AWS configuration
	config aws.Config

	// mu protects concurrent access to client configuration
	mu sync.RWMutex

	// fs is the filesystem abstraction for file uploads
	fs fs.Filesystem

	sched    Scheduler
	ownSched *scheduler.Pool
	logger   *slog.Logger
	events   EventRecorder
	defaults TransferConfig
}

// New creates a new transfer client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := s3transfer.New(
//	    s3transfer.WithRegion("us-west-2"),
//	    s3transfer.WithConcurrency(8),
//	)
func New(opts ...Option) (*Client, error) {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}

	// Start with default AWS configuration or use custom config
	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1" // AWS default region
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	// Create S3 client with options
	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)

	client := newClient(s3Client, clientCfg)
	client.rawClient = s3Client
	client.config = cfg
	return client, nil
}

// NewWithClient creates a transfer client around a custom storage
// implementation. This is primarily used for testing with mocked clients
// or pre-built SDK clients.
func NewWithClient(s3Client s3api.S3API, opts ...Option) *Client {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}
	return newClient(s3Client, clientCfg)
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxRetries:  3,
		Concurrency: DefaultConcurrency,
		Transfer: TransferConfig{
			MinPartSize:              DefaultMinPartSize,
			MaxPartSize:              DefaultMaxPartSize,
			MaxPartCount:             DefaultMaxPartCount,
			GrowthFactor:             DefaultGrowthFactor,
			GrowthEvery:              DefaultGrowthEvery,
			SingleOperationThreshold: DefaultSingleOperationThreshold,
			UnexpectedErrorRetries:   DefaultUnexpectedErrorRetries,
		},
	}
}

func newClient(s3Client s3api.S3API, clientCfg *ClientConfig) *Client {
	// Initialize filesystem - use provided one or default to OS filesystem
	var filesystem fs.Filesystem
	if clientCfg.Filesystem != nil {
		filesystem = clientCfg.Filesystem
	} else {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	client := &Client{
		s3Client: s3Client,
		fs:       filesystem,
		sched:    clientCfg.Scheduler,
		logger:   clientCfg.Logger,
		events:   clientCfg.Events,
		defaults: clientCfg.Transfer,
	}
	if client.sched == nil {
		client.ownSched = scheduler.NewPool(clientCfg.Concurrency)
		client.sched = client.ownSched
	}
	return client
}

// SetFilesystem sets the filesystem implementation for file uploads.
// This is useful for testing or when the filesystem needs to be changed after creation.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

// Close waits for background part transfers scheduled on the built-in
// worker pool to settle. It does not wait for schedulers supplied through
// WithScheduler; their lifecycle stays with the caller.
func (c *Client) Close() error {
	if c.ownSched != nil {
		c.ownSched.Wait()
	}
	return nil
}

// filesystem returns the filesystem under the configuration lock.
func (c *Client) filesystem() fs.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// transferConfig resolves one transfer's configuration from the client
// defaults and the per-call options. The defaults are copied, so options
// never mutate client state.
func (c *Client) transferConfig(opts ...TransferOption) TransferConfig {
	tc := c.defaults
	if len(tc.Metadata) > 0 {
		md := make(map[string]string, len(tc.Metadata))
		for k, v := range tc.Metadata {
			md[k] = v
		}
		tc.Metadata = md
	}
	for _, opt := range opts {
		opt(&tc)
	}
	return tc
}

// sessionSettings converts resolved transfer configuration into the engine
// session settings.
func (tc TransferConfig) sessionSettings() multipart.Settings {
	return multipart.Settings{
		Limits: multipart.Limits{
			MinPartSize:  tc.MinPartSize,
			MaxPartSize:  tc.MaxPartSize,
			MaxPartCount: tc.MaxPartCount,
		},
		GrowthFactor: tc.GrowthFactor,
		GrowthEvery:  tc.GrowthEvery,
		Retries:      tc.UnexpectedErrorRetries,
		RetryDelay:   tc.RetryDelay,
		ContentType:  tc.ContentType,
		Metadata:     tc.Metadata,
		StorageClass: awstypes.StorageClass(tc.StorageClass),
	}
}

// progressFunc adapts a ProgressTracker's Update method for the internal
// orchestrators, which report through a plain function.
func progressFunc(p ProgressTracker) func(transferred, total int64) {
	if p == nil {
		return nil
	}
	return p.Update
}
