package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/rankwatch/rank"
	"github.com/hazyhaar/rankwatch/safeurl"
	"github.com/hazyhaar/rankwatch/trend"
)

func restyForTest() *resty.Client {
	// Matches the production client: raw responses, read under the cap.
	return resty.New().SetTimeout(5 * time.Second).SetDoNotParseResponse(true)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reportSnapshot() *rank.Snapshot {
	entries := []rank.Entry{
		{StableKey: "id:A1", DisplayName: "라운드랩 자작나무 수분 토너",
			URL: "https://example.com/p?goodsNo=A1", SalePrice: 15400, DiscountPct: 30},
		{StableKey: "id:A2", DisplayName: "토리든 다이브인 세럼", SalePrice: 18000},
		{StableKey: "id:A3", DisplayName: "메디힐 티트리 패드"},
	}
	return rank.NewSnapshot(
		time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		rank.StrategyProbe, time.Now(), entries, 100)
}

func TestFormatReport_TopList(t *testing.T) {
	// WHAT: The message leads with the date and a linked, priced top list.
	text := FormatReport(reportSnapshot(), nil)
	if !strings.Contains(text, "2026-08-24") {
		t.Errorf("missing date:\n%s", text)
	}
	if !strings.Contains(text, "1. <https://example.com/p?goodsNo=A1|라운드랩 자작나무 수분 토너> · 15,400원 (30% 할인)") {
		t.Errorf("bad top line:\n%s", text)
	}
	// No URL and no price: bare name, no dangling separators.
	if !strings.Contains(text, "3. 메디힐 티트리 패드\n") {
		t.Errorf("bad bare line:\n%s", text)
	}
}

func TestFormatReport_FirstRun(t *testing.T) {
	// WHAT: A first run says so instead of showing empty move sections.
	text := FormatReport(reportSnapshot(), &trend.Report{FirstRun: true})
	if !strings.Contains(text, "첫 수집") {
		t.Errorf("missing first-run note:\n%s", text)
	}
}

func TestFormatReport_Moves(t *testing.T) {
	// WHAT: Risers show previous -> current with a signed delta, and a
	// multi-day gap is called out.
	report := &trend.Report{
		GapDays: 3,
		Risers: []trend.Move{
			{Entry: rank.Entry{DisplayName: "토리든 다이브인 세럼"}, PreviousRank: 50, CurrentRank: 5, Delta: 45},
		},
		Dropouts:   []rank.Entry{{Rank: 30, DisplayName: "더우주 선크림"}},
		ChurnCount: 1,
	}
	text := FormatReport(reportSnapshot(), report)
	if !strings.Contains(text, "토리든 다이브인 세럼: 50 -> 5 (+45)") {
		t.Errorf("bad riser line:\n%s", text)
	}
	if !strings.Contains(text, "30위 더우주 선크림") {
		t.Errorf("bad dropout line:\n%s", text)
	}
	if !strings.Contains(text, "3일 전 스냅샷과 비교") {
		t.Errorf("missing gap note:\n%s", text)
	}
}

func TestFormatReport_QuietDay(t *testing.T) {
	// WHAT: An uneventful diff is one calm line, not empty headers.
	text := FormatReport(reportSnapshot(), &trend.Report{})
	if !strings.Contains(text, "큰 변동 없음") {
		t.Errorf("missing quiet note:\n%s", text)
	}
	if strings.Contains(text, "급상승") {
		t.Errorf("empty section rendered:\n%s", text)
	}
}

func TestFormatFailure(t *testing.T) {
	// WHAT: The failure alert names the last successful date so the
	// reader knows how stale the archive is; without one it says no run
	// has ever succeeded.
	text := FormatFailure("2026-08-24", errors.New("no strategy produced a viable result"), "2026-08-20")
	if !strings.Contains(text, "2026-08-24 랭킹 수집 실패") {
		t.Errorf("missing header:\n%s", text)
	}
	if !strings.Contains(text, "마지막 성공 수집: 2026-08-20") {
		t.Errorf("missing last success date:\n%s", text)
	}

	text = FormatFailure("2026-08-24", errors.New("boom"), "")
	if !strings.Contains(text, "성공한 수집 기록이 아직 없습니다") {
		t.Errorf("missing no-success note:\n%s", text)
	}
}

func TestFormatKRW(t *testing.T) {
	cases := map[int]string{
		900:     "900",
		9900:    "9,900",
		15400:   "15,400",
		1290000: "1,290,000",
	}
	for in, want := range cases {
		if got := formatKRW(in); got != want {
			t.Errorf("formatKRW(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSlack_Send(t *testing.T) {
	// WHAT: The sink posts {"text": ...} JSON to the webhook.
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// httptest binds loopback, which the SSRF guard rejects; build the
	// sink around it directly.
	s := &Slack{webhookURL: srv.URL, client: restyForTest(), logger: discardLogger()}
	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if got["text"] != "hello" {
		t.Errorf("payload = %v", got)
	}
}

func TestSlack_SendFailure(t *testing.T) {
	// WHAT: A non-2xx webhook answer is surfaced as an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := &Slack{webhookURL: srv.URL, client: restyForTest(), logger: discardLogger()}
	err := s.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v", err)
	}
}

func TestSlack_SendFailureHugeBody(t *testing.T) {
	// WHAT: An oversized error body does not balloon the returned error;
	// the status code still comes through.
	// WHY: The webhook URL is operator-supplied, so the response is not
	// trusted to be small.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(bytes.Repeat([]byte("x"), int(safeurl.MaxResponseBody)+1024))
	}))
	defer srv.Close()

	s := &Slack{webhookURL: srv.URL, client: restyForTest(), logger: discardLogger()}
	err := s.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v", err)
	}
	if len(err.Error()) > 512 {
		t.Errorf("error carries unbounded body: %d bytes", len(err.Error()))
	}
}

func TestNewSlack_RejectsPrivateURL(t *testing.T) {
	// WHAT: A webhook pointing into private address space is refused at
	// construction time.
	if _, err := NewSlack("http://127.0.0.1/hook", nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewSlack("ftp://hooks.slack.com/x", nil); err == nil {
		t.Fatal("expected error")
	}
}
