// Package artifact ships run outputs (snapshot CSV, spreadsheet) to
// external storage. Uploads are best effort: the snapshot on local disk
// is the system of record and a failed upload never fails the run.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/rankwatch/safeurl"
)

// Uploader stores one local file under a remote name.
type Uploader interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}

// DropboxConfig configures the Dropbox uploader.
type DropboxConfig struct {
	// AccessToken is the Dropbox API OAuth token.
	AccessToken string

	// Folder is the remote folder uploads land in.
	Folder string

	// BaseURL overrides the Dropbox content endpoint. Tests point it at
	// a local server.
	BaseURL string

	Timeout time.Duration

	Logger *slog.Logger
}

func (c *DropboxConfig) defaults() {
	if c.Folder == "" {
		c.Folder = "/rankwatch"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://content.dropboxapi.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Dropbox uploads files via the Dropbox content API.
type Dropbox struct {
	cfg    DropboxConfig
	client *resty.Client
}

// NewDropbox builds an uploader. The token is required.
func NewDropbox(cfg DropboxConfig) (*Dropbox, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("artifact: dropbox access token is required")
	}
	cfg.defaults()
	// Raw responses so error bodies can be read under a size cap.
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.AccessToken).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetDoNotParseResponse(true)
	return &Dropbox{cfg: cfg, client: client}, nil
}

// Upload sends the file to Folder/remoteName, overwriting any previous
// day's re-run of the same name.
func (d *Dropbox) Upload(ctx context.Context, localPath, remoteName string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("artifact: read %s: %w", localPath, err)
	}

	arg, err := json.Marshal(map[string]any{
		"path":       path.Join(d.cfg.Folder, remoteName),
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return fmt.Errorf("artifact: marshal api arg: %w", err)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Dropbox-API-Arg", string(arg)).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Post("/2/files/upload")
	if err != nil {
		return fmt.Errorf("artifact: upload %s: %w", remoteName, err)
	}
	body, readErr := safeurl.LimitedReadAll(resp.RawBody(), safeurl.MaxResponseBody)
	resp.RawBody().Close()
	if resp.StatusCode() != 200 {
		if readErr != nil {
			return fmt.Errorf("artifact: upload %s: dropbox returned %d (%v)",
				remoteName, resp.StatusCode(), readErr)
		}
		return fmt.Errorf("artifact: upload %s: dropbox returned %d: %s",
			remoteName, resp.StatusCode(), strings.TrimSpace(string(body)))
	}
	d.cfg.Logger.Info("artifact: uploaded", "name", remoteName, "bytes", len(data))
	return nil
}
