package hermes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestConvertRequestParsing(t *testing.T) {
	raw := `{
		"request_id": "req-001",
		"base_url": "file:///exports/chat/messages.html",
		"files": [
			{"name": "result.json", "content": "eyJtZXNzYWdlcyI6W119"}
		]
	}`

	var req ConvertRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to parse ConvertRequest: %v", err)
	}

	if req.RequestID != "req-001" {
		t.Errorf("expected request_id 'req-001', got '%s'", req.RequestID)
	}
	if req.BaseURL != "file:///exports/chat/messages.html" {
		t.Errorf("unexpected base_url '%s'", req.BaseURL)
	}
	if len(req.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(req.Files))
	}
	if req.Files[0].Name != "result.json" {
		t.Errorf("expected name 'result.json', got '%s'", req.Files[0].Name)
	}
	if string(req.Files[0].Content) != `{"messages":[]}` {
		t.Errorf("expected decoded content, got '%s'", req.Files[0].Content)
	}
}

func TestConversionEventOmitsEmptyTranscript(t *testing.T) {
	ev := ConversionEvent{
		ConversionID: "c-1",
		Format:       "json",
		Files:        []string{"result.json"},
		Lines:        3,
		Origin:       "api",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := fields["transcript"]; ok {
		t.Error("expected transcript to be omitted when empty")
	}
	if _, ok := fields["request_id"]; ok {
		t.Error("expected request_id to be omitted when empty")
	}
	if fields["origin"] != "api" {
		t.Errorf("expected origin 'api', got %v", fields["origin"])
	}
}

func TestSubjectConstants(t *testing.T) {
	if SubjectConverted != "swarm.chattxt.transcript.converted" {
		t.Errorf("unexpected SubjectConverted '%s'", SubjectConverted)
	}
	if SubjectFailed != "swarm.chattxt.transcript.failed" {
		t.Errorf("unexpected SubjectFailed '%s'", SubjectFailed)
	}
	if SubjectConvertRequest != "swarm.chattxt.convert.request" {
		t.Errorf("unexpected SubjectConvertRequest '%s'", SubjectConvertRequest)
	}
}

func TestDecodeConvertRequest_Invalid(t *testing.T) {
	if _, err := DecodeConvertRequest([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

type ctxKey struct{}

func TestConvertRequestHandler(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "client")
	c := &Client{ctx: ctx, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	var got []ConvertRequest
	handle := c.convertRequestHandler(func(hctx context.Context, req ConvertRequest) {
		if hctx.Value(ctxKey{}) != "client" {
			t.Error("expected handler to receive the client context")
		}
		got = append(got, req)
	})

	handle(&nats.Msg{Subject: SubjectConvertRequest, Data: []byte("not json")})
	handle(&nats.Msg{Subject: SubjectConvertRequest, Data: []byte(`{"request_id":"req-9","files":[{"name":"a.json","content":"e30="}]}`)})

	if len(got) != 1 {
		t.Fatalf("expected only the valid request to reach the handler, got %d", len(got))
	}
	if got[0].RequestID != "req-9" || string(got[0].Files[0].Content) != "{}" {
		t.Errorf("unexpected request %+v", got[0])
	}
}

func TestNewRegistration(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	reg := NewRegistration(8760, "v1.2.0", now)

	if reg.Service != "chattxt" || reg.Port != 8760 || reg.Version != "v1.2.0" {
		t.Errorf("unexpected registration %+v", reg)
	}
	if reg.Timestamp != "2024-03-01T11:00:00Z" {
		t.Errorf("expected UTC RFC3339 timestamp, got %s", reg.Timestamp)
	}
}

func TestFailureEventCarriesFormat(t *testing.T) {
	data, err := json.Marshal(FailureEvent{Format: "html", Files: []string{"messages.html"}, Reason: "malformed"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if fields["format"] != "html" {
		t.Errorf("expected format 'html', got %v", fields["format"])
	}
}
