package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"projects-factory/internal/model"
)

// HTTPClient talks to the projects-factory HTTP API.
type HTTPClient struct {
	BaseURL  string
	HTTP     *http.Client
	Timeouts Timeouts
}

func NewHTTPClient(baseURL string, timeouts Timeouts) *HTTPClient {
	return &HTTPClient{
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:     &http.Client{},
		Timeouts: timeouts.Normalize(),
	}
}

type apiConfig struct {
	Username           string   `json:"username"`
	AvatarURL          string   `json:"avatar_url"`
	InstalledCount     int      `json:"installed_count"`
	InstalledURLs      []string `json:"installed_urls"`
	DefaultPushMessage string   `json:"default_push_message"`
}

type apiRepo struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Private      bool   `json:"private"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
	IsNewProject bool   `json:"is_new_project"`
	CanPush      bool   `json:"can_push"`
}

func (r apiRepo) project() model.Project {
	return model.Project{
		Name:        strings.TrimSpace(r.Name),
		URL:         strings.TrimSpace(r.URL),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		IsLocalOnly: r.IsNewProject,
		IsPrivate:   r.Private && !r.IsNewProject,
		CanPublish:  r.CanPush,
	}
}

func (c *HTTPClient) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var cfg apiConfig
	if err := c.do(ctx, "load config", http.MethodGet, "/api/config", nil, &cfg, c.Timeouts.Request); err != nil {
		return model.Snapshot{}, err
	}
	var repos struct {
		Repos []apiRepo `json:"repos"`
	}
	if err := c.do(ctx, "load repos", http.MethodGet, "/api/repos", nil, &repos, c.Timeouts.Request); err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{
		Account: model.Account{
			Username:       cfg.Username,
			AvatarURL:      cfg.AvatarURL,
			InstalledCount: cfg.InstalledCount,
			DefaultMessage: cfg.DefaultPushMessage,
		},
		InstalledURLs: cfg.InstalledURLs,
	}
	for _, r := range repos.Repos {
		snap.Projects = append(snap.Projects, r.project())
	}
	return snap, nil
}

func (c *HTTPClient) Install(ctx context.Context, repoURL string) (InstallResult, error) {
	var out struct {
		InstalledCount int `json:"installed_count"`
	}
	body := map[string]any{"repos": []string{repoURL}}
	if err := c.do(ctx, "install", http.MethodPost, "/api/install", body, &out, c.Timeouts.Install); err != nil {
		return InstallResult{}, err
	}
	return InstallResult{
		Message:        fmt.Sprintf("Installed %s", model.RepoNameFromURL(repoURL)),
		InstalledCount: out.InstalledCount,
	}, nil
}

func (c *HTTPClient) DeleteLocal(ctx context.Context, name string) error {
	body := map[string]any{"repos": []string{name}}
	return c.do(ctx, "delete", http.MethodPost, "/api/delete", body, nil, c.Timeouts.Delete)
}

func (c *HTTPClient) RenameLocal(ctx context.Context, oldName, newName string) error {
	body := map[string]string{"old_name": oldName, "new_name": newName}
	return c.do(ctx, "rename", http.MethodPost, "/api/rename", body, nil, c.Timeouts.Rename)
}

func (c *HTTPClient) RenameRemote(ctx context.Context, oldName, newName string) error {
	body := map[string]string{"old_name": oldName, "new_name": newName}
	return c.do(ctx, "rename remote", http.MethodPost, "/api/rename-github", body, nil, c.Timeouts.Rename)
}

func (c *HTTPClient) UpdateDescription(ctx context.Context, name, description string) error {
	body := map[string]string{"name": name, "description": description}
	return c.do(ctx, "update description", http.MethodPost, "/api/update-description", body, nil, c.Timeouts.Request)
}

func (c *HTTPClient) Publish(ctx context.Context, name, description string, vis Visibility) (PublishResult, error) {
	var out struct {
		Repo          string `json:"repo"`
		CommitMessage string `json:"commit_message"`
	}
	body := map[string]string{"name": name, "description": description, "visibility": string(vis)}
	if err := c.do(ctx, "publish", http.MethodPost, "/api/add-to-github", body, &out, c.Timeouts.GitPush); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{NewIdentifier: slugURL(out.Repo), Message: out.CommitMessage}, nil
}

// slugURL turns an "owner/name" slug into a github.com URL; full URLs pass through.
func slugURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" || strings.Contains(slug, "://") {
		return slug
	}
	return "https://github.com/" + strings.TrimPrefix(slug, "/")
}

func (c *HTTPClient) Push(ctx context.Context, pathOrURL string, mode VersionMode) (PushResult, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"path": pathOrURL, "version_mode": string(mode)}
	if err := c.do(ctx, "push", http.MethodPost, "/api/push", body, &out, c.Timeouts.GitPush); err != nil {
		return PushResult{}, err
	}
	return PushResult{Message: out.Message}, nil
}

func (c *HTTPClient) OpenInEditor(ctx context.Context, pathOrURL string) error {
	body := map[string]string{"path": pathOrURL}
	return c.do(ctx, "open", http.MethodPost, "/api/open-folder", body, nil, c.Timeouts.Request)
}

func (c *HTTPClient) DeleteRemote(ctx context.Context, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, "delete remote", http.MethodPost, "/api/delete-github", body, nil, c.Timeouts.Request)
}

func (c *HTTPClient) Refresh(ctx context.Context) error {
	return c.do(ctx, "refresh", http.MethodPost, "/api/refresh", nil, nil, c.Timeouts.Refresh)
}

func (c *HTTPClient) CreateProject(ctx context.Context) (CreateResult, error) {
	var out struct {
		Message    string `json:"message"`
		FolderName string `json:"folder_name"`
	}
	if err := c.do(ctx, "create project", http.MethodPost, "/api/create-project", nil, &out, c.Timeouts.CreateProject); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{FolderName: out.FolderName, Message: out.Message}, nil
}

func (c *HTTPClient) Details(ctx context.Context, pathOrURL string) (Details, error) {
	var out struct {
		Items []struct {
			Name string `json:"name"`
			Src  string `json:"src"`
		} `json:"items"`
	}
	q := url.Values{"path": {pathOrURL}}
	if err := c.do(ctx, "screenshots", http.MethodGet, "/api/project-screenshots?"+q.Encode(), nil, &out, c.Timeouts.Request); err != nil {
		return Details{}, err
	}
	d := Details{}
	for _, it := range out.Items {
		d.Screenshots = append(d.Screenshots, Screenshot{Name: it.Name, Src: c.BaseURL + it.Src})
	}
	return d, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Wrap(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Wrap(op, err)
	}
	if resp.StatusCode >= 400 {
		return statusError(op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, Class: Rejected, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps an HTTP failure. Gateway errors are transient; everything
// else (including 500 with a collaborator detail) is a rejection.
func statusError(op string, status int, raw []byte) *Error {
	e := &Error{Op: op, Class: Rejected, Status: status, Detail: decodeDetail(raw)}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusRequestTimeout:
		e.Class = Transient
	}
	if e.Detail == "" {
		e.Detail = fmt.Sprintf("%s failed: HTTP %d", op, status)
	}
	return e
}

// decodeDetail reads {"detail": "..."} bodies. Validation errors carry a list
// of {"msg": "..."} objects instead of a string.
func decodeDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		s := strings.TrimSpace(string(raw))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(body.Detail))
}
