package config

import "time"

// Config is the top-level configuration structure for jobsmith. One Config is
// built per pipeline run and passed explicitly to every component.
type Config struct {
	// ManagedBy is the ownership marker written to every job jobsmith creates.
	// Only remote jobs carrying the same marker are eligible for deletion.
	ManagedBy string `yaml:"managedBy,omitempty"`

	// AdoptUnmanaged turns a desired job whose name matches an unmanaged remote
	// job into an update instead of a conflict.
	AdoptUnmanaged bool `yaml:"adoptUnmanaged,omitempty"`

	// SchemaFile optionally points at a YAML schema replacing the default job schema.
	SchemaFile string `yaml:"schemaFile,omitempty"`

	// Sources are the default job-configuration files or directories.
	Sources []string `yaml:"sources,omitempty"`

	Remote  RemoteConfig  `yaml:"remote"`
	Publish PublishConfig `yaml:"publish"`
	Expand  ExpandConfig  `yaml:"expand"`
}

// RemoteType selects the orchestrator backend.
type RemoteType string

const (
	RemoteTypeMemory     RemoteType = "memory"
	RemoteTypeFilesystem RemoteType = "filesystem"
	RemoteTypeKubernetes RemoteType = "kubernetes"
	RemoteTypeHTTP       RemoteType = "http"
)

// RemoteTypes lists every supported backend.
var RemoteTypes = []string{
	string(RemoteTypeMemory),
	string(RemoteTypeFilesystem),
	string(RemoteTypeKubernetes),
	string(RemoteTypeHTTP),
}

// RemoteConfig defines how to reach the orchestrator job API.
type RemoteConfig struct {
	Type       RemoteType       `yaml:"type,omitempty"`
	Filesystem FilesystemRemote `yaml:"filesystem,omitempty"`
	Kubernetes KubernetesRemote `yaml:"kubernetes,omitempty"`
	HTTP       HTTPRemote       `yaml:"http,omitempty"`

	// ManagedBy is copied from Config.ManagedBy by the loader.
	ManagedBy string `yaml:"-"`
}

// FilesystemRemote stores one YAML file per job in a directory.
type FilesystemRemote struct {
	Path string `yaml:"path,omitempty"`
}

// KubernetesRemote stores jobs as ConfigMaps.
type KubernetesRemote struct {
	Namespace  string `yaml:"namespace,omitempty"`
	Kubeconfig string `yaml:"kubeconfig,omitempty"` // Defaults to the standard loading rules
	Context    string `yaml:"context,omitempty"`
}

// HTTPRemote talks to a JSON job API.
type HTTPRemote struct {
	URL          string        `yaml:"url,omitempty"`
	Username     string        `yaml:"username,omitempty"`
	TokenEnv     string        `yaml:"tokenEnv,omitempty"` // Environment variable holding a basic-auth token
	RetryMax     int           `yaml:"retryMax,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	OAuth        *OAuthConfig  `yaml:"oauth,omitempty"`
	InsecureHTTP bool          `yaml:"insecureHTTP,omitempty"` // Allow plain http:// URLs
}

// OAuthConfig enables the OAuth2 client-credentials flow for the HTTP remote.
type OAuthConfig struct {
	TokenURL        string   `yaml:"tokenURL"`
	ClientID        string   `yaml:"clientID"`
	ClientSecretEnv string   `yaml:"clientSecretEnv"`
	Scopes          []string `yaml:"scopes,omitempty"`
}

// PublishConfig bounds the publisher.
type PublishConfig struct {
	Concurrency   int           `yaml:"concurrency,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`       // Overall apply deadline
	ActionTimeout time.Duration `yaml:"actionTimeout,omitempty"` // Per remote call
}

// ExpandConfig bounds parallel expansion.
type ExpandConfig struct {
	Parallelism int `yaml:"parallelism,omitempty"`
}
