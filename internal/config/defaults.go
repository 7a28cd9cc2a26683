package config

import "time"

const (
	// DefaultManagedBy is the default ownership marker.
	DefaultManagedBy = "jobsmith"

	DefaultConcurrency   = 4
	DefaultTimeout       = 10 * time.Minute
	DefaultActionTimeout = 30 * time.Second
	DefaultParallelism   = 4

	DefaultKubernetesNamespace = "default"
	DefaultFilesystemPath      = "jobs"
	DefaultHTTPRetryMax        = 3
	DefaultHTTPTimeout         = 30 * time.Second
)

// GetDefaultConfig returns the default configuration for jobsmith.
func GetDefaultConfig() Config {
	return Config{
		ManagedBy: DefaultManagedBy,
		Remote: RemoteConfig{
			Type:      RemoteTypeMemory,
			ManagedBy: DefaultManagedBy,
		},
		Publish: PublishConfig{
			Concurrency:   DefaultConcurrency,
			Timeout:       DefaultTimeout,
			ActionTimeout: DefaultActionTimeout,
		},
		Expand: ExpandConfig{
			Parallelism: DefaultParallelism,
		},
	}
}

// applyDefaults fills zero values left after decoding a partial file.
func (c *Config) applyDefaults() {
	if c.ManagedBy == "" {
		c.ManagedBy = DefaultManagedBy
	}
	if c.Remote.Type == "" {
		c.Remote.Type = RemoteTypeMemory
	}
	c.Remote.ManagedBy = c.ManagedBy
	if c.Remote.Type == RemoteTypeFilesystem && c.Remote.Filesystem.Path == "" {
		c.Remote.Filesystem.Path = DefaultFilesystemPath
	}
	if c.Remote.Type == RemoteTypeKubernetes && c.Remote.Kubernetes.Namespace == "" {
		c.Remote.Kubernetes.Namespace = DefaultKubernetesNamespace
	}
	if c.Remote.Type == RemoteTypeHTTP {
		if c.Remote.HTTP.RetryMax == 0 {
			c.Remote.HTTP.RetryMax = DefaultHTTPRetryMax
		}
		if c.Remote.HTTP.Timeout == 0 {
			c.Remote.HTTP.Timeout = DefaultHTTPTimeout
		}
	}
	if c.Publish.Concurrency == 0 {
		c.Publish.Concurrency = DefaultConcurrency
	}
	if c.Publish.Timeout == 0 {
		c.Publish.Timeout = DefaultTimeout
	}
	if c.Publish.ActionTimeout == 0 {
		c.Publish.ActionTimeout = DefaultActionTimeout
	}
	if c.Expand.Parallelism == 0 {
		c.Expand.Parallelism = DefaultParallelism
	}
}
