package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketbrief/internal/feed"
	"marketbrief/internal/logger"
)

// reportTask is the fixed instruction handed to the generator each run.
const reportTask = "Provide a detailed report on IT, Banking, and FII flows based ONLY on today's RSS data. Include links."

const (
	reportHeader   = "🚀 <b>Live Market Intelligence</b>\n\n"
	noNewsTemplate = "📭 <b>Market Intelligence</b>\n\nNo significant market news for %s."
	errorHeader    = "⚠️ <b>System Error Alert</b>\n\n"
	errorTextLimit = 200
	dateLayout     = "Jan 02, 2006"
)

// Generator produces the report for a task and a date label.
type Generator interface {
	Generate(ctx context.Context, task string, dateLabel string) (string, error)
}

// Notifier delivers the final message.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}

// Engine sequences one full run: generate, classify the outcome, notify.
type Engine struct {
	gen      Generator
	notifier Notifier
	now      func() time.Time
}

// New creates an engine over a generator and a notifier.
func New(gen Generator, notifier Notifier) *Engine {
	return &Engine{gen: gen, notifier: notifier, now: time.Now}
}

// Run performs one run. Every path ends in exactly one delivery attempt:
// a report, a no-news notice, or an error notice. Delivery failures are
// logged and absorbed; the run itself never fails because of them.
func (e *Engine) Run(ctx context.Context) error {
	dateLabel := e.now().Format(dateLayout)

	report, err := e.gen.Generate(ctx, reportTask, dateLabel)

	var message string
	switch {
	case err != nil:
		logger.Log.Errorf("report generation failed: %v", err)
		message = errorHeader + truncate(err.Error(), errorTextLimit)
	case isEmptyReport(report):
		logger.Log.Info("no news collected this run")
		message = fmt.Sprintf(noNewsTemplate, dateLabel)
	default:
		message = reportHeader + report
	}

	if err := e.notifier.SendMessage(ctx, message); err != nil {
		logger.Log.Errorf("notification delivery failed: %v", err)
	}
	return nil
}

// isEmptyReport reports whether the generator produced nothing usable,
// either a blank answer or the fetcher sentinel passed through verbatim.
func isEmptyReport(report string) bool {
	trimmed := strings.TrimSpace(report)
	return trimmed == "" || strings.Contains(trimmed, feed.Sentinel)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
