package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxThreadErrors caps how many failures are listed in the thread reply.
const maxThreadErrors = 20

// BackfillReport is what a backfill run reports to Slack.
type BackfillReport struct {
	Root        string
	Found       int
	Converted   int
	AlreadyDone int
	Duplicates  int
	Failed      int
	Lines       int
	DryRun      bool
	Errors      []string
}

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostBackfillReport posts the run summary and, when exports failed, lists the
// failures in a thread under it. Returns the summary message timestamp.
func (p *Poster) PostBackfillReport(ctx context.Context, r BackfillReport) (string, error) {
	text := formatBackfillReport(r)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted backfill report to slack", "ts", ts, "root", r.Root)

	if len(r.Errors) > 0 {
		if err := p.PostThread(ctx, ts, formatErrors(r.Errors)); err != nil {
			p.logger.Warn("failed to post backfill errors thread", "ts", ts, "error", err)
		}
	}
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatBackfillReport(r BackfillReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Backfill:* %s\n", r.Root)
	if r.DryRun {
		sb.WriteString("_Dry run, nothing written._\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Exports found: %d\n", r.Found)
	fmt.Fprintf(&sb, "Converted: %d (%d lines)\n", r.Converted, r.Lines)
	if r.AlreadyDone > 0 {
		fmt.Fprintf(&sb, "Already done: %d\n", r.AlreadyDone)
	}
	if r.Duplicates > 0 {
		fmt.Fprintf(&sb, "Duplicates skipped: %d\n", r.Duplicates)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&sb, ":warning: Failed: %d\n", r.Failed)
	}
	return sb.String()
}

func formatErrors(errs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Failures (%d):*\n", len(errs))
	for i, e := range errs {
		if i == maxThreadErrors {
			fmt.Fprintf(&sb, "_...and %d more_\n", len(errs)-maxThreadErrors)
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, e)
	}
	return sb.String()
}
