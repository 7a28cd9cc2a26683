package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"jobsmith/internal/config"
	"jobsmith/pkg/logging"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const jobsPath = "/api/jobs"

// jobRecord is the wire format of the job API.
type jobRecord struct {
	Name      string         `json:"name"`
	ManagedBy string         `json:"managedBy,omitempty"`
	Template  string         `json:"template,omitempty"`
	Hash      string         `json:"hash"`
	Content   map[string]any `json:"content,omitempty"`
}

type jobList struct {
	Jobs []jobRecord `json:"jobs"`
}

// HTTPClient talks to a JSON job API:
//
//	GET    /api/jobs         list jobs
//	PUT    /api/jobs/{name}  create or replace a job
//	DELETE /api/jobs/{name}  delete a job
//
// Transient failures are retried with exponential backoff.
type HTTPClient struct {
	baseURL   *url.URL
	managedBy string
	client    *retryablehttp.Client

	username string
	token    string
}

// NewHTTPClient creates a client from the HTTP remote configuration.
func NewHTTPClient(cfg config.HTTPRemote, managedBy string) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", cfg.URL, err)
	}
	if base.Scheme != "https" && !(cfg.InsecureHTTP && base.Scheme == "http") {
		return nil, fmt.Errorf("remote URL %q must use https", cfg.URL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = slog.Default().With("subsystem", "HTTPRemote")
	// Hand the last response back after retries so status errors keep the remote's message.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	if cfg.OAuth != nil {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: os.Getenv(cfg.OAuth.ClientSecretEnv),
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}
		// Token requests go through a plain client so a token failure is not
		// retried behind the job request's retries.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: rc.HTTPClient.Timeout})
		rc.HTTPClient.Transport = &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   rc.HTTPClient.Transport,
		}
	}

	c := &HTTPClient{baseURL: base, managedBy: managedBy, client: rc, username: cfg.Username}
	if cfg.TokenEnv != "" {
		c.token = os.Getenv(cfg.TokenEnv)
	}
	return c, nil
}

// ListManagedJobs implements Client.
func (h *HTTPClient) ListManagedJobs(ctx context.Context) (State, error) {
	resp, err := h.do(ctx, http.MethodGet, jobsPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "list jobs")
	}

	var list jobList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode job list: %w", err)
	}

	state := make(State, len(list.Jobs))
	for _, j := range list.Jobs {
		state[j.Name] = RemoteJob{
			Name:      j.Name,
			Hash:      j.Hash,
			Managed:   j.ManagedBy != "" && j.ManagedBy == h.managedBy,
			ManagedBy: j.ManagedBy,
		}
	}
	logging.Debug("HTTPRemote", "Listed %d jobs from %s", len(state), h.baseURL.Host)
	return state, nil
}

// CreateOrUpdateJob implements Client.
func (h *HTTPClient) CreateOrUpdateJob(ctx context.Context, name string, body Body) error {
	payload, err := json.Marshal(jobRecord{
		Name:      name,
		ManagedBy: h.managedBy,
		Template:  body.Template,
		Hash:      body.Hash,
		Content:   body.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", name, err)
	}

	resp, err := h.do(ctx, http.MethodPut, jobPath(name), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return statusError(resp, "put job "+name)
	}
}

// DeleteJob implements Client.
func (h *HTTPClient) DeleteJob(ctx context.Context, name string) error {
	resp, err := h.do(ctx, http.MethodDelete, jobPath(name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("delete %s: %w", name, ErrNotFound)
	default:
		return statusError(resp, "delete job "+name)
	}
}

func jobPath(name string) string {
	return jobsPath + "/" + url.PathEscape(name)
}

func (h *HTTPClient) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	target := h.baseURL.String() + path

	var body interface{}
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.username != "" {
		req.SetBasicAuth(h.username, h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response, action string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s: remote returned %d: %s", action, resp.StatusCode, text)
}
