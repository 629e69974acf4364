package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/hermes"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

type fakeRecorder struct {
	mu   sync.Mutex
	rows []store.Conversion
	err  error
}

func (f *fakeRecorder) RecordConversion(_ context.Context, c store.Conversion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, c)
	return f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	converted []hermes.ConversionEvent
	failed    []hermes.FailureEvent
}

func (f *fakePublisher) PublishConversion(ev hermes.ConversionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted = append(f.converted, ev)
	return nil
}

func (f *fakePublisher) PublishFailure(ev hermes.FailureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, ev)
	return nil
}

const export = `{"messages":[{"type":"message","date_unixtime":"1700000000","from":"Alice","text":"hello"}]}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(rec Recorder, pub Publisher) *Processor {
	return New(convert.Options{Location: time.UTC}, nil, rec, pub, quietLogger())
}

func TestConvert_RecordsAndPublishes(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	p := newTestProcessor(rec, pub)

	res, err := p.Convert(context.Background(), Request{
		Sources: []convert.Source{convert.BytesSource{Filename: "result.json", Data: []byte(export)}},
		Origin:  OriginAPI,
	})
	require.NoError(t, err)
	assert.Equal(t, "[11/14/23, 10:13:20 PM] Alice: hello\n", res.Text)

	require.Len(t, rec.rows, 1)
	row := rec.rows[0]
	assert.Equal(t, res.ID, row.ID)
	assert.Equal(t, "json", row.Format)
	assert.Equal(t, []string{"result.json"}, row.FileNames)
	assert.Equal(t, 1, row.Lines)
	assert.Equal(t, int64(len(res.Text)), row.Bytes)
	assert.Equal(t, OriginAPI, row.Source)

	require.Len(t, pub.converted, 1)
	ev := pub.converted[0]
	assert.Equal(t, res.ID.String(), ev.ConversionID)
	assert.Equal(t, OriginAPI, ev.Origin)
	assert.Empty(t, ev.Transcript)
	assert.Empty(t, pub.failed)
}

func TestConvert_FailurePublishedNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	p := newTestProcessor(rec, pub)

	_, err := p.Convert(context.Background(), Request{
		Sources: []convert.Source{
			convert.BytesSource{Filename: "a.json", Data: []byte(export)},
			convert.BytesSource{Filename: "b.html", Data: []byte("<html></html>")},
		},
		Origin: OriginAPI,
	})
	assert.ErrorIs(t, err, convert.ErrFormatMismatch)
	assert.Empty(t, rec.rows)
	assert.Empty(t, pub.converted)
	require.Len(t, pub.failed, 1)
	assert.Equal(t, "format_mismatch", pub.failed[0].Reason)
	assert.Equal(t, "json", pub.failed[0].Format)
	assert.Equal(t, []string{"a.json", "b.html"}, pub.failed[0].Files)
}

func TestConvert_RecorderErrorDoesNotFail(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	p := newTestProcessor(rec, nil)

	res, err := p.Convert(context.Background(), Request{
		Sources: []convert.Source{convert.BytesSource{Filename: "result.json", Data: []byte(export)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lines())
}

func TestConvert_NoSinks(t *testing.T) {
	p := newTestProcessor(nil, nil)

	res, err := p.Convert(context.Background(), Request{
		Sources: []convert.Source{convert.BytesSource{Filename: "result.json", Data: []byte(export)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lines())
}

func TestConvert_BaseURLOverride(t *testing.T) {
	page := `<div class="message"><div class="date" title="14.11.2023 22:13:20 UTC+00:00"></div>` +
		`<div class="from_name">Ann</div><div class="media_wrap"><a class="media_file" href="/exports/chat/files/doc.pdf"></a></div></div>`
	p := New(convert.Options{Location: time.UTC, BaseURL: "/elsewhere/messages.html"}, nil, nil, nil, quietLogger())

	res, err := p.Convert(context.Background(), Request{
		Sources: []convert.Source{convert.BytesSource{Filename: "messages.html", Data: []byte(page)}},
		BaseURL: "/exports/chat/messages.html",
	})
	require.NoError(t, err)
	assert.Equal(t, "[11/14/23, 10:13:20 PM] Ann: <attachment: files/doc.pdf>\n", res.Text)
}

func TestHandleConvertRequest(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	p := newTestProcessor(rec, pub)

	p.HandleConvertRequest(context.Background(), hermes.ConvertRequest{
		RequestID: "req-7",
		Files:     []hermes.RequestFile{{Name: "result.json", Content: []byte(export)}},
	})

	require.Len(t, pub.converted, 1)
	ev := pub.converted[0]
	assert.Equal(t, "req-7", ev.RequestID)
	assert.Equal(t, OriginNATS, ev.Origin)
	assert.Equal(t, "[11/14/23, 10:13:20 PM] Alice: hello\n", ev.Transcript)
	require.Len(t, rec.rows, 1)
	assert.Equal(t, OriginNATS, rec.rows[0].Source)
}

func TestHandleConvertRequest_FailureCarriesFormat(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestProcessor(nil, pub)

	p.HandleConvertRequest(context.Background(), hermes.ConvertRequest{
		RequestID: "req-8",
		Files:     []hermes.RequestFile{{Name: "messages.html", Content: nil}, {Name: "notes.txt"}},
	})

	assert.Empty(t, pub.converted)
	require.Len(t, pub.failed, 1)
	assert.Equal(t, "req-8", pub.failed[0].RequestID)
	assert.Equal(t, "html", pub.failed[0].Format)
	assert.Equal(t, OriginNATS, pub.failed[0].Origin)

	p.HandleConvertRequest(context.Background(), hermes.ConvertRequest{RequestID: "req-9"})
	require.Len(t, pub.failed, 2)
	assert.Equal(t, "unknown", pub.failed[1].Format)
	assert.Equal(t, "empty", pub.failed[1].Reason)
}
