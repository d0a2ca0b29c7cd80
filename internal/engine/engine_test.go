package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketbrief/internal/config"
	"marketbrief/internal/feed"
)

// mockGenerator echoes a canned report or error.
type mockGenerator struct {
	report string
	err    error
	calls  int
}

func (m *mockGenerator) Generate(ctx context.Context, task string, dateLabel string) (string, error) {
	m.calls++
	return m.report, m.err
}

// mockNotifier records delivered messages.
type mockNotifier struct {
	messages []string
	err      error
}

func (m *mockNotifier) SendMessage(ctx context.Context, text string) error {
	m.messages = append(m.messages, text)
	return m.err
}

func fixedClock() time.Time {
	return time.Date(2026, time.August, 23, 8, 0, 0, 0, time.UTC)
}

func newTestEngine(gen Generator, n Notifier) *Engine {
	e := New(gen, n)
	e.now = fixedClock
	return e
}

func TestRun_SuccessDeliversReport(t *testing.T) {
	report := "🏦 BANKING\n• <b>HDFC Q1</b>: Strong quarter. <a href='https://example.com/hdfc'>Read More</a>\n" +
		"💻 IT & TECH\n• <b>Infy deal</b>: Large win. <a href='https://example.com/infy'>Read More</a>"
	gen := &mockGenerator{report: report}
	notifier := &mockNotifier{}

	if err := newTestEngine(gen, notifier).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.HasPrefix(msg, reportHeader) {
		t.Errorf("message missing report header:\n%s", msg)
	}
	for _, want := range []string{"HDFC Q1", "Infy deal", "https://example.com/hdfc", "https://example.com/infy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestRun_GeneratorErrorSendsAlert(t *testing.T) {
	longErr := strings.Repeat("x", 250)
	gen := &mockGenerator{err: errors.New(longErr)}
	notifier := &mockNotifier{}

	if err := newTestEngine(gen, notifier).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "System Error Alert") {
		t.Errorf("message missing alert header:\n%s", msg)
	}
	if !strings.Contains(msg, strings.Repeat("x", 200)) {
		t.Error("message missing truncated error text")
	}
	if strings.Contains(msg, strings.Repeat("x", 201)) {
		t.Error("error text not truncated to 200 characters")
	}
}

func TestRun_EmptyReportSendsNoNewsNotice(t *testing.T) {
	for _, report := range []string{"", "  ", feed.Sentinel} {
		gen := &mockGenerator{report: report}
		notifier := &mockNotifier{}

		if err := newTestEngine(gen, notifier).Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(notifier.messages) != 1 {
			t.Fatalf("deliveries = %d, want exactly 1", len(notifier.messages))
		}
		want := fmt.Sprintf(noNewsTemplate, "Aug 23, 2026")
		if notifier.messages[0] != want {
			t.Errorf("message = %q, want %q", notifier.messages[0], want)
		}
	}
}

func TestRun_DeliveryFailureIsAbsorbed(t *testing.T) {
	gen := &mockGenerator{report: "fine"}
	notifier := &mockNotifier{err: errors.New("telegram down")}

	if err := newTestEngine(gen, notifier).Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil despite delivery failure", err)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("deliveries = %d, want 1 (no retry)", len(notifier.messages))
	}
}

// echoGenerator stands in for the model by returning the fetched batch
// verbatim.
type echoGenerator struct {
	fetcher *feed.Fetcher
}

func (g *echoGenerator) Generate(ctx context.Context, task string, dateLabel string) (string, error) {
	return g.fetcher.FetchBatch(ctx), nil
}

func TestRun_EndToEndWithMockedFeeds(t *testing.T) {
	rss := func(source, title, link string) string {
		return `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` + source +
			`</title><item><title>` + title + `</title><link>` + link +
			`</link><description><![CDATA[<p>body</p>]]></description></item></channel></rss>`
	}
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rss("Livemint", "Banks rally", "https://example.com/banks"))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rss("ET", "IT hiring up", "https://example.com/it"))
	}))
	defer srvB.Close()

	cfg := &config.Config{Feeds: []config.Source{
		{Name: "Livemint", URL: srvA.URL},
		{Name: "ET", URL: srvB.URL},
	}}
	cfg.Agent.MaxEntries = 6
	cfg.Agent.ExcerptLimit = 300

	notifier := &mockNotifier{}
	e := newTestEngine(&echoGenerator{fetcher: feed.NewFetcher(cfg)}, notifier)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(notifier.messages))
	}
	msg := notifier.messages[0]
	for _, want := range []string{"Banks rally", "IT hiring up", "https://example.com/banks", "https://example.com/it"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	gen := &mockGenerator{report: "same report"}
	notifier := &mockNotifier{}
	e := newTestEngine(gen, notifier)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(notifier.messages) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(notifier.messages))
	}
	if notifier.messages[0] != notifier.messages[1] {
		t.Errorf("runs differ:\n%q\n%q", notifier.messages[0], notifier.messages[1])
	}
}
