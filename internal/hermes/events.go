package hermes

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SubjectConverted carries a ConversionEvent after every successful conversion.
	SubjectConverted = "swarm.chattxt.transcript.converted"
	// SubjectFailed carries a FailureEvent when a batch is rejected or fails.
	SubjectFailed = "swarm.chattxt.transcript.failed"
	// SubjectConvertRequest receives ConvertRequest payloads from other services.
	SubjectConvertRequest = "swarm.chattxt.convert.request"
	// SubjectRegistered announces a running instance.
	SubjectRegistered = "swarm.agent.chattxt.registered"
)

// ConversionEvent describes a finished conversion. Transcript is only set for
// conversions requested over NATS, whose callers have no other way to get the text.
type ConversionEvent struct {
	ConversionID string    `json:"conversion_id"`
	RequestID    string    `json:"request_id,omitempty"`
	Format       string    `json:"format"`
	Files        []string  `json:"files"`
	Lines        int       `json:"lines"`
	Skipped      int       `json:"skipped"`
	Bytes        int       `json:"bytes"`
	Origin       string    `json:"origin"`
	Transcript   string    `json:"transcript,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FailureEvent describes a rejected or failed batch.
type FailureEvent struct {
	RequestID string    `json:"request_id,omitempty"`
	Format    string    `json:"format"`
	Files     []string  `json:"files"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// ConvertRequest asks the service to convert a batch of export files.
type ConvertRequest struct {
	RequestID string        `json:"request_id"`
	BaseURL   string        `json:"base_url,omitempty"`
	Files     []RequestFile `json:"files"`
}

// RequestFile is one export file; Content is base64 in JSON.
type RequestFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// DecodeConvertRequest parses a SubjectConvertRequest payload.
func DecodeConvertRequest(data []byte) (ConvertRequest, error) {
	var req ConvertRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ConvertRequest{}, fmt.Errorf("decode convert request: %w", err)
	}
	return req, nil
}

// Registration is the payload of SubjectRegistered.
type Registration struct {
	Service   string `json:"service"`
	Port      int    `json:"port"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func NewRegistration(port int, version string, now time.Time) Registration {
	return Registration{
		Service:   clientName,
		Port:      port,
		Version:   version,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// PublishConversion publishes ev on SubjectConverted.
func (c *Client) PublishConversion(ev ConversionEvent) error {
	return c.Publish(SubjectConverted, ev)
}

// PublishFailure publishes ev on SubjectFailed.
func (c *Client) PublishFailure(ev FailureEvent) error {
	return c.Publish(SubjectFailed, ev)
}
