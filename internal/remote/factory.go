package remote

import (
	"fmt"

	"jobsmith/internal/config"
)

// New creates the client selected by the remote configuration.
func New(cfg config.RemoteConfig) (Client, error) {
	managedBy := cfg.ManagedBy
	if managedBy == "" {
		managedBy = config.DefaultManagedBy
	}

	switch cfg.Type {
	case config.RemoteTypeMemory, "":
		return NewMemoryClient(managedBy), nil
	case config.RemoteTypeFilesystem:
		return NewFilesystemClient(cfg.Filesystem.Path, managedBy)
	case config.RemoteTypeKubernetes:
		return NewKubernetesClientFromKubeconfig(
			cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context, cfg.Kubernetes.Namespace, managedBy)
	case config.RemoteTypeHTTP:
		return NewHTTPClient(cfg.HTTP, managedBy)
	default:
		return nil, fmt.Errorf("unsupported remote type %q", cfg.Type)
	}
}
