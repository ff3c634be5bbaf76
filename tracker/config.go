// Package tracker wires the daily pipeline together: acquire, diff
// against the previous snapshot, persist, export, notify, and record
// the run. It also hosts the schedule loop and the inspect HTTP server.
package tracker

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from YAML.
// Secrets (webhook URL, upload token) come from the environment, not
// from this file.
type Config struct {
	// DataDir roots all on-disk state.
	DataDir string `yaml:"data_dir"`

	// SnapshotDir holds the daily CSV/XLSX files. Default: DataDir/snapshots.
	SnapshotDir string `yaml:"snapshot_dir"`

	// ArtifactDir holds diagnostic captures. Default: DataDir/artifacts.
	ArtifactDir string `yaml:"artifact_dir"`

	// RunDB is the SQLite run-log path. Default: DataDir/runs.db.
	RunDB string `yaml:"run_db"`

	// Timezone the catalog resets in. Default: Asia/Seoul.
	Timezone string `yaml:"timezone"`

	// RunAt is the local time of day ("07:30") the daily run fires.
	RunAt string `yaml:"run_at"`

	// DisableXLSX skips the spreadsheet rendering of each snapshot.
	DisableXLSX bool `yaml:"disable_xlsx"`

	// ArtifactMaxAge is how long diagnostic captures are kept before the
	// startup prune removes them.
	ArtifactMaxAge time.Duration `yaml:"artifact_max_age"`

	Acquire AcquireConfig `yaml:"acquire"`
	Extract ExtractConfig `yaml:"extract"`
	Trend   TrendConfig   `yaml:"trend"`
	Upload  UploadConfig  `yaml:"upload"`
	Inspect InspectConfig `yaml:"inspect"`
}

// AcquireConfig tunes the strategy escalation.
type AcquireConfig struct {
	MinViable     int           `yaml:"min_viable"`
	MaxItems      int           `yaml:"max_items"`
	ProbeTargets  []string      `yaml:"probe_targets"`
	ProbeRetries  int           `yaml:"probe_retries"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	RenderPages   []string      `yaml:"render_pages"`
	RenderRetries int           `yaml:"render_retries"`
	ListWait      time.Duration `yaml:"list_wait"`
	RemoteBrowser string        `yaml:"remote_browser"`

	// BaseEndpoint is the best-list endpoint category targets are built
	// from.
	BaseEndpoint string `yaml:"base_endpoint"`

	// Categories enumerates per-category charts to target in addition to
	// the explicit URL lists.
	Categories []CategoryConfig `yaml:"categories"`
}

// CategoryConfig names one catalog category. The display and filter
// codes are the catalog's own query parameters for its best list.
type CategoryConfig struct {
	Name         string `yaml:"name"`
	DispCatNo    string `yaml:"disp_cat_no"`
	FltDispCatNo string `yaml:"flt_disp_cat_no"`
}

// ProbeTargetURLs returns the explicit probe targets followed by one
// endpoint per configured category.
func (a *AcquireConfig) ProbeTargetURLs() []string {
	return a.withCategoryURLs(a.ProbeTargets)
}

// RenderPageURLs returns the rendered-fallback pages followed by the
// category endpoints, which serve full HTML to a browser.
func (a *AcquireConfig) RenderPageURLs() []string {
	return a.withCategoryURLs(a.RenderPages)
}

func (a *AcquireConfig) withCategoryURLs(explicit []string) []string {
	out := append([]string(nil), explicit...)
	for _, c := range a.Categories {
		if u := a.categoryURL(c); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (a *AcquireConfig) categoryURL(c CategoryConfig) string {
	if c.DispCatNo == "" {
		return ""
	}
	u, err := url.Parse(a.BaseEndpoint)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("dispCatNo", c.DispCatNo)
	if c.FltDispCatNo != "" {
		q.Set("fltDispCatNo", c.FltDispCatNo)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ExtractConfig overrides the selector cascades. Empty lists keep the
// built-in defaults.
type ExtractConfig struct {
	BaseURL        string   `yaml:"base_url"`
	ListSelectors  []string `yaml:"list_selectors"`
	NameSelectors  []string `yaml:"name_selectors"`
	PriceSelectors []string `yaml:"price_selectors"`
	LinkSelectors  []string `yaml:"link_selectors"`
}

// TrendConfig tunes the differential engine.
type TrendConfig struct {
	Threshold int `yaml:"threshold"`
	Window    int `yaml:"window"`
}

// UploadConfig configures the artifact uploader. The access token comes
// from the environment (DROPBOX_ACCESS_TOKEN).
type UploadConfig struct {
	Folder string `yaml:"folder"`
}

// InspectConfig configures the local inspection HTTP server.
type InspectConfig struct {
	Listen string `yaml:"listen"`
}

// LoadFile reads a YAML configuration file and applies defaults. A
// missing path yields the all-defaults config.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tracker: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("tracker: parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = filepath.Join(c.DataDir, "artifacts")
	}
	if c.RunDB == "" {
		c.RunDB = filepath.Join(c.DataDir, "runs.db")
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.RunAt == "" {
		c.RunAt = "07:30"
	}
	if c.Acquire.MinViable <= 0 {
		c.Acquire.MinViable = 5
	}
	if c.Acquire.MaxItems <= 0 {
		c.Acquire.MaxItems = 100
	}
	if c.Acquire.ProbeRetries <= 0 {
		c.Acquire.ProbeRetries = 2
	}
	if c.Acquire.ProbeTimeout <= 0 {
		c.Acquire.ProbeTimeout = 20 * time.Second
	}
	if c.Acquire.RenderRetries <= 0 {
		c.Acquire.RenderRetries = 2
	}
	if c.Acquire.ListWait <= 0 {
		c.Acquire.ListWait = 25 * time.Second
	}
	if c.Acquire.BaseEndpoint == "" {
		c.Acquire.BaseEndpoint = "https://www.oliveyoung.co.kr/store/main/getBestList.do"
	}
	if c.ArtifactMaxAge <= 0 {
		c.ArtifactMaxAge = 14 * 24 * time.Hour
	}
	if c.Trend.Threshold <= 0 {
		c.Trend.Threshold = 10
	}
	if c.Trend.Window <= 0 {
		c.Trend.Window = 100
	}
	if c.Upload.Folder == "" {
		c.Upload.Folder = "/rankwatch"
	}
	if c.Inspect.Listen == "" {
		c.Inspect.Listen = "127.0.0.1:8270"
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("tracker: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
