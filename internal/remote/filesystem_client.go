package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jobsmith/pkg/logging"

	"gopkg.in/yaml.v3"
)

// jobFile is the on-disk record of one job.
type jobFile struct {
	Name      string         `yaml:"name"`
	ManagedBy string         `yaml:"managed-by,omitempty"`
	Template  string         `yaml:"template,omitempty"`
	Hash      string         `yaml:"hash"`
	Content   map[string]any `yaml:"content"`
}

// FilesystemClient stores one YAML file per job in a directory. Files without
// a matching managed-by field are reported as unmanaged.
type FilesystemClient struct {
	mu        sync.RWMutex
	dir       string
	managedBy string
}

// NewFilesystemClient creates a filesystem-backed orchestrator rooted at dir.
func NewFilesystemClient(dir, managedBy string) (*FilesystemClient, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem remote: path cannot be empty")
	}
	return &FilesystemClient{dir: dir, managedBy: managedBy}, nil
}

// ListManagedJobs implements Client.
func (fs *FilesystemClient) ListManagedJobs(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files, err := fs.listFilesInDirectory()
	if err != nil {
		return nil, err
	}

	state := make(State, len(files))
	for _, path := range files {
		record, err := readJobFile(path)
		if err != nil {
			logging.Warn("Storage", "Skipping unreadable job file %s: %v", path, err)
			continue
		}
		name := record.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		state[name] = RemoteJob{
			Name:      name,
			Hash:      record.Hash,
			Managed:   record.ManagedBy != "" && record.ManagedBy == fs.managedBy,
			ManagedBy: record.ManagedBy,
		}
	}

	logging.Debug("Storage", "Listed %d jobs in %s", len(state), fs.dir)
	return state, nil
}

// CreateOrUpdateJob implements Client.
func (fs *FilesystemClient) CreateOrUpdateJob(ctx context.Context, name string, body Body) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := yaml.Marshal(jobFile{
		Name:      name,
		ManagedBy: fs.managedBy,
		Template:  body.Template,
		Hash:      body.Hash,
		Content:   body.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", name, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	filePath := fs.filePath(name)
	existing, err := fs.readOwnFile(filePath, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ManagedBy != fs.managedBy && !body.Adopt {
		return fmt.Errorf("write %s: %w", name, ErrNotOwned)
	}

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fs.dir, err)
	}

	// Write to a temporary file first so a crash never leaves a partial job.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	logging.Info("Storage", "Saved job %s to %s", name, filePath)
	return nil
}

// DeleteJob implements Client.
func (fs *FilesystemClient) DeleteJob(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	filePath := fs.filePath(name)
	existing, err := fs.readOwnFile(filePath, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete %s: %w", name, ErrNotFound)
	}
	if existing.ManagedBy != fs.managedBy {
		return fmt.Errorf("delete %s: %w", name, ErrNotOwned)
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	logging.Info("Storage", "Deleted job %s from %s", name, filePath)
	return nil
}

// filePath maps a job name to its file. Names that had to be rewritten get
// a short hash suffix so distinct names never share a file.
func (fs *FilesystemClient) filePath(name string) string {
	base := sanitizeFilename(name)
	if base != name {
		base += "-" + nameSuffix(name)
	}
	return filepath.Join(fs.dir, base+".yaml")
}

// readOwnFile reads the record at path. It returns nil when the file does not
// exist, and an error when the file belongs to a different job name.
func (fs *FilesystemClient) readOwnFile(path, name string) (*jobFile, error) {
	record, err := readJobFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}
	if record.Name != "" && record.Name != name {
		return nil, fmt.Errorf("job file %s holds job %q, not %q: %w", path, record.Name, name, ErrNotOwned)
	}
	return record, nil
}

// listFilesInDirectory lists all .yaml and .yml files in the job directory.
func (fs *FilesystemClient) listFilesInDirectory() ([]string, error) {
	if _, err := os.Stat(fs.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	yamlFiles, err := filepath.Glob(filepath.Join(fs.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yaml files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(fs.dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yml files: %w", err)
	}
	return append(yamlFiles, ymlFiles...), nil
}

func readJobFile(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record jobFile
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// sanitizeFilename makes a job name safe to use as a file name.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	sanitized := replacer.Replace(name)

	// Collapse multiple consecutive underscores to single underscore
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_.")

	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
