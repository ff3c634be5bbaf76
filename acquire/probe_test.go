package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/rankwatch/extract"
)

const probePayload = `{"bestList":[
  {"goodsNo":"P1","goodsNm":"토너","salePrice":15000},
  {"goodsNo":"P2","goodsNm":"세럼","salePrice":22000},
  {"goodsNo":"P3","goodsNm":"패드","salePrice":9900},
  {"goodsNo":"P4","goodsNm":"쿠션","salePrice":28000},
  {"goodsNo":"P5","goodsNm":"립밤","salePrice":8000}
]}`

func TestProbe_RetriesServerErrors(t *testing.T) {
	// WHAT: Transient 5xx responses are retried before the target is
	// given up on.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(probePayload))
	}))
	defer srv.Close()

	p := NewProbe(ProbeConfig{
		Targets: []string{srv.URL},
		Retries: 2,
		Timeout: 5 * time.Second,
	})
	entries, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries after %d hits", len(entries), hits.Load())
	}
	if entries[0].StableKey != "id:P1" {
		t.Errorf("key = %q", entries[0].StableKey)
	}
}

func TestProbe_FallsThroughTargets(t *testing.T) {
	// WHAT: A dead first target does not fail the probe; the next
	// target in the cascade is tried.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer dead.Close()
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(probePayload))
	}))
	defer live.Close()

	p := NewProbe(ProbeConfig{Targets: []string{dead.URL, live.URL}})
	entries, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries", len(entries))
	}
}

func TestProbe_HTMLBody(t *testing.T) {
	// WHAT: A target answering with server-rendered HTML instead of
	// JSON still extracts through the document path.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul class="cate_prd_list">
		  <li><a href="/d?goodsNo=H1"><span class="tx_name">토너</span></a></li>
		  <li><a href="/d?goodsNo=H2"><span class="tx_name">세럼</span></a></li>
		  <li><a href="/d?goodsNo=H3"><span class="tx_name">패드</span></a></li>
		  <li><a href="/d?goodsNo=H4"><span class="tx_name">쿠션</span></a></li>
		  <li><a href="/d?goodsNo=H5"><span class="tx_name">립밤</span></a></li>
		</ul>`))
	}))
	defer srv.Close()

	p := NewProbe(ProbeConfig{Targets: []string{srv.URL}})
	entries, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[2].StableKey != "id:H3" {
		t.Errorf("key = %q", entries[2].StableKey)
	}
}

func TestProbe_NoUsableTargetIsNoResult(t *testing.T) {
	// WHAT: Every target answering garbage yields (nil, nil), the
	// escalation signal, not an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>점검 안내</body></html>`))
	}))
	defer srv.Close()

	p := NewProbe(ProbeConfig{Targets: []string{srv.URL}})
	entries, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("entries = %v", entries)
	}
}

func TestProbe_SendsExtractConfigBase(t *testing.T) {
	// WHAT: Relative links in a probed document resolve against the
	// configured base URL.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul class="prd_list">
		  <li><a href="/p?goodsNo=R1"><span class="tx_name">하나</span></a></li>
		  <li><a href="/p?goodsNo=R2"><span class="tx_name">둘</span></a></li>
		  <li><a href="/p?goodsNo=R3"><span class="tx_name">셋</span></a></li>
		  <li><a href="/p?goodsNo=R4"><span class="tx_name">넷</span></a></li>
		  <li><a href="/p?goodsNo=R5"><span class="tx_name">다섯</span></a></li>
		</ul>`))
	}))
	defer srv.Close()

	p := NewProbe(ProbeConfig{
		Targets: []string{srv.URL},
		Extract: extract.Config{BaseURL: "https://mirror.example.com"},
	})
	entries, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].URL != "https://mirror.example.com/p?goodsNo=R1" {
		t.Errorf("url = %q", entries[0].URL)
	}
}
