package acquire

import (
	"context"
	"log/slog"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/rankwatch/extract"
	"github.com/hazyhaar/rankwatch/rank"
)

// ProbeConfig configures the structured-endpoint probe.
type ProbeConfig struct {
	// Targets are candidate URLs tried in order. A target may answer
	// with JSON or with server-rendered HTML; both are handled.
	Targets []string

	// Extract holds the field cascades for both response shapes.
	Extract extract.Config

	// Timeout bounds one request.
	Timeout time.Duration

	// Retries is how many times a failed request is retried before the
	// probe moves to the next target.
	Retries int

	Logger *slog.Logger
}

func (c *ProbeConfig) defaults() {
	if len(c.Targets) == 0 {
		c.Targets = []string{
			"https://www.oliveyoung.co.kr/store/main/getBestList.do?dispCatNo=900000100100001&pageIdx=1&rowsPerPage=100",
			"https://www.oliveyoung.co.kr/store/main/getBestList.do",
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Probe is the cheap acquisition strategy: plain HTTP requests against
// known endpoints, no browser. The client carries a cookie jar and a
// challenge-solving transport so the target's CDN sees a plausible
// client, plus a rotated desktop User-Agent per request.
type Probe struct {
	cfg    ProbeConfig
	client *resty.Client
}

// NewProbe builds a Probe with its own HTTP client.
func NewProbe(cfg ProbeConfig) *Probe {
	cfg.defaults()

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if jar, err := cookiejar.New(nil); err == nil {
		client.SetCookieJar(jar)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	return &Probe{cfg: cfg, client: client}
}

// Fetch tries each target in order and returns the first viable entry
// list. A (nil, nil) return means every target answered but none
// carried a recognizable catalog; the coordinator escalates.
func (p *Probe) Fetch(ctx context.Context) ([]rank.Entry, error) {
	log := p.cfg.Logger

	for _, target := range p.cfg.Targets {
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", browser.Random()).
			SetHeader("Accept", "application/json, text/html;q=0.9, */*;q=0.8").
			SetHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.5").
			SetHeader("Referer", "https://www.oliveyoung.co.kr/store/main/main.do").
			Get(target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("probe: request failed", "target", target, "error", err)
			continue
		}
		if resp.StatusCode() != 200 {
			log.Warn("probe: non-200 response", "target", target, "status", resp.StatusCode())
			continue
		}

		entries := p.extract(resp.Body())
		if len(entries) > 0 {
			log.Debug("probe: target yielded entries", "target", target, "entries", len(entries))
			return entries, nil
		}
		log.Debug("probe: target yielded nothing usable", "target", target, "size", len(resp.Body()))
	}
	return nil, nil
}

// extract runs the structured path first, then the document path. Both
// declining is a normal outcome, not an error.
func (p *Probe) extract(body []byte) []rank.Entry {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if entries, err := extract.FromPayload(body, p.cfg.Extract); err == nil {
			return entries
		}
	}
	entries, err := extract.FromHTML(trimmed, p.cfg.Extract)
	if err != nil {
		return nil
	}
	return entries
}
