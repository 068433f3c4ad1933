package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sweeney/smart-box/internal/feed"
	"github.com/sweeney/smart-box/internal/logic"
	"github.com/sweeney/smart-box/internal/metrics"
	"github.com/sweeney/smart-box/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *metrics.Metrics) {
	t.Helper()
	cfg := status.Config{
		BoxID:       "kitchen",
		PollMs:      200,
		HeartbeatMs: 900000,
		FeedURL:     "http://192.168.1.50/api/images",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
		Thresholds:  logic.DefaultThresholds(),
	}
	tr := status.NewTracker("boot-1", start, cfg)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := New(":0", tr, reg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func abnormalResult() logic.Result {
	th := logic.DefaultThresholds()
	in := logic.Input{DoorClosed: false, LightValue: 3000, Distance: logic.DistanceCM(20), Time: start.Add(2 * time.Minute)}
	return logic.Result{
		Sample:      th.Sample(in),
		State:       logic.StateAbnormal,
		Previous:    logic.StateNormal,
		Rule:        logic.RuleDoorOpenTooLong,
		DoorOpenFor: 61 * time.Second,
		Sessions: logic.Sessions{
			Door: logic.DoorSession{Open: true, OpenSince: start.Add(59 * time.Second), HandSeenDuringOpen: true},
		},
	}
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(abnormalResult(), logic.TransitionCounts{Abnormal: 1, Waiting: 4})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "ABNORMAL" || sj.Status.Code != 3 {
		t.Errorf("state: got %s/%d", sj.Status.State, sj.Status.Code)
	}
	if sj.Status.Rule != "door_open_too_long" {
		t.Errorf("rule: got %q", sj.Status.Rule)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Waiting != 4 || sj.Status.Counts.Abnormal != 1 {
		t.Errorf("counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.Sessions.DoorOpenSeconds != 61 || !sj.Status.Sessions.HandSeenDuringOpen {
		t.Errorf("sessions: got %+v", sj.Status.Sessions)
	}
	if sj.Status.Config.PollMs != 200 {
		t.Errorf("Config.PollMs: got %d, want 200", sj.Status.Config.PollMs)
	}
}

func TestJSONNormalBeforeFirstTick(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "NORMAL" {
		t.Errorf("state before first tick: got %q, want NORMAL", sj.Status.State)
	}
	if sj.Status.Sensors != nil {
		t.Error("expected no sensors before first tick")
	}
}

func TestJSONFeedAndNetwork(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetFeed(feed.Status{Baselined: true, LastID: "91", LastLabel: "cup", Events: 2})
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Feed.LastID != "91" || sj.Status.Feed.Events != 2 {
		t.Errorf("feed: got %+v", sj.Status.Feed)
	}
	if sj.Status.Network == nil || sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("network: got %+v", sj.Status.Network)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(abnormalResult(), logic.TransitionCounts{Abnormal: 1})

	resp, body := getBody(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	for _, want := range []string{
		"Smart Box kitchen",
		`class="abnormal">ABNORMAL (3)`,
		"door_open_too_long",
		"open for 1m 1s",
		"20.0 cm",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestHTMLBeforeFirstTick(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := getBody(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, `class="normal">NORMAL (0)`) {
		t.Error("expected NORMAL before first tick")
	}
	if strings.Contains(body, "<h2>Sensors</h2>") {
		t.Error("sensors section should be hidden before first tick")
	}
}

func TestHTMLInvalidDistance(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	r := abnormalResult()
	r.Sample.Distance = logic.InvalidDistance
	tr.Update(r, logic.TransitionCounts{})

	_, body := getBody(t, ts.URL+"/")
	if !strings.Contains(body, "<td>invalid</td>") {
		t.Error("expected invalid distance rendering")
	}
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := getBody(t, ts.URL+"/healthz")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if body != "ok\n" {
		t.Errorf("body: got %q", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.ObserveTick(abnormalResult())
	m.FeedPolled(feed.ResultBaseline)

	resp, body := getBody(t, ts.URL+"/metrics")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{
		`smartbox_state{state="ABNORMAL"} 1`,
		`smartbox_ticks_total 1`,
		`smartbox_feed_polls_total{result="baseline"} 1`,
		`smartbox_rule_decisions_total{rule="door_open_too_long"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := getBody(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	if sj := getJSON(t, ts.URL+"/index.json"); sj.Status.MQTT.Connected {
		t.Error("expected MQTT disconnected initially")
	}

	tr.Update(abnormalResult(), logic.TransitionCounts{Abnormal: 1})
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "ABNORMAL" {
		t.Errorf("state: got %q, want ABNORMAL", sj.Status.State)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
