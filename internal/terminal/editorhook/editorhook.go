// Package editorhook implements terminal.Backend against a local HTTP
// webhook server announced by an editor extension (originally VS Code).
// The discovery file format is fixed: {wrapper, port, pid, version,
// started_at, workspace}.
package editorhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/untra/operator-go/internal/terminal"
)

// DiscoveryFileName is the name of the discovery file written under the
// configured signal directory.
const DiscoveryFileName = "vscode-session.json"

// discoveryInfo mirrors the webhook announcement contract.
type discoveryInfo struct {
	Wrapper   string `json:"wrapper"`
	Port      int    `json:"port"`
	PID       int    `json:"pid"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Workspace string `json:"workspace"`
}

type terminalState struct {
	Name      string  `json:"name"`
	PID       *int    `json:"pid,omitempty"`
	Activity  string  `json:"activity"`
	CreatedAt float64 `json:"createdAt"`
}

// Backend talks to the webhook server over HTTP.
type Backend struct {
	signalDir string
	client    *http.Client
}

func New(signalDir string) *Backend {
	return &Backend{
		signalDir: signalDir,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (b *Backend) discover() (discoveryInfo, error) {
	path := filepath.Join(b.signalDir, DiscoveryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return discoveryInfo{}, fmt.Errorf("%w: %v", terminal.ErrNotAvailable, err)
	}
	var info discoveryInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return discoveryInfo{}, fmt.Errorf("%w: %v", terminal.ErrNotAvailable, err)
	}
	return info, nil
}

func (b *Backend) baseURL() (string, error) {
	info, err := b.discover()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://127.0.0.1:%d", info.Port), nil
}

func (b *Backend) do(ctx context.Context, method, path string, body any, out any) error {
	base, err := b.baseURL()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", terminal.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return terminal.ErrSessionNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return terminal.ErrSessionExists
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return &terminal.CommandFailedError{Detail: string(data)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (b *Backend) CheckAvailable(ctx context.Context) (terminal.VersionInfo, error) {
	info, err := b.discover()
	if err != nil {
		return terminal.VersionInfo{}, err
	}
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := b.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return terminal.VersionInfo{}, fmt.Errorf("%w: %v", terminal.ErrNotAvailable, err)
	}
	return terminal.VersionInfo{Name: info.Wrapper, Version: health.Version}, nil
}

func (b *Backend) SessionExists(ctx context.Context, name string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	if err := b.do(ctx, http.MethodGet, "/terminals/"+name+"/exists", nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (b *Backend) CreateSession(ctx context.Context, name, workingDir string) error {
	req := struct {
		Name       string `json:"name"`
		WorkingDir string `json:"workingDir,omitempty"`
	}{Name: name, WorkingDir: workingDir}
	var resp struct {
		Success bool   `json:"success"`
		Name    string `json:"name"`
	}
	return b.do(ctx, http.MethodPost, "/terminals", req, &resp)
}

func (b *Backend) SendCommand(ctx context.Context, name, command string) error {
	req := struct {
		Command string `json:"command"`
	}{Command: command}
	return b.do(ctx, http.MethodPost, "/terminals/"+name+"/command", req, nil)
}

func (b *Backend) KillSession(ctx context.Context, name string) error {
	return b.do(ctx, http.MethodDelete, "/terminals/"+name, nil, nil)
}

func (b *Backend) ListSessions(ctx context.Context, prefix string) ([]terminal.Session, error) {
	var resp struct {
		Terminals []terminalState `json:"terminals"`
	}
	if err := b.do(ctx, http.MethodGet, "/terminals", nil, &resp); err != nil {
		// Unavailable backend returns empty, not error (spec §4.1).
		return nil, nil
	}
	var sessions []terminal.Session
	for _, ts := range resp.Terminals {
		if prefix != "" && (len(ts.Name) < len(prefix) || ts.Name[:len(prefix)] != prefix) {
			continue
		}
		sessions = append(sessions, terminal.Session{
			Name:     ts.Name,
			Created:  time.UnixMilli(int64(ts.CreatedAt)),
			Attached: ts.Activity == "running",
		})
	}
	return sessions, nil
}

func (b *Backend) FocusSession(ctx context.Context, name string) error {
	return b.do(ctx, http.MethodPost, "/terminals/"+name+"/focus", nil, nil)
}

func (b *Backend) SupportsContentCapture() bool { return false }

func (b *Backend) CaptureContent(ctx context.Context, name string) (string, error) {
	return "", terminal.ErrNotSupported
}

func (b *Backend) SupportsSilenceWatchdog() bool { return false }

func (b *Backend) SetMonitorSilence(ctx context.Context, name string, secs int) error {
	return terminal.ErrNotSupported
}

func (b *Backend) CheckSilenceFlag(ctx context.Context, name string) (bool, error) {
	return false, terminal.ErrNotSupported
}

func (b *Backend) ResetSilenceFlag(ctx context.Context, name string) error {
	return terminal.ErrNotSupported
}

var _ terminal.Backend = (*Backend)(nil)
