package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.PanicLevel)
	os.Exit(m.Run())
}

func nextEvent(t *testing.T, s Session) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}, false
	}
}

func TestTextRecognizer_Continuous(t *testing.T) {
	r := NewTextRecognizer(strings.NewReader("reproducir\n\n  pausa  \n"))
	s, err := r.Start(context.Background(), Options{Language: "es-ES", Continuous: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"reproducir", "pausa"} {
		ev, ok := nextEvent(t, s)
		if !ok {
			t.Fatalf("events closed early, wanted %q", want)
		}
		if len(ev.Results) != 1 || !ev.Results[0].IsFinal || ev.Results[0].Alternatives[0] != want {
			t.Errorf("unexpected event: %+v", ev)
		}
	}

	// end of input closes the session
	if _, ok := nextEvent(t, s); ok {
		t.Error("expected events to close at end of input")
	}
}

func TestTextRecognizer_SingleShot(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewTextRecognizer(pr)

	s, _ := r.Start(context.Background(), Options{})
	writeLine(t, pw, "uno")
	if ev, _ := nextEvent(t, s); ev.Results[0].Alternatives[0] != "uno" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, ok := nextEvent(t, s); ok {
		t.Fatal("non-continuous session should end after one transcript")
	}

	// a new session continues from the shared reader
	s, _ = r.Start(context.Background(), Options{})
	writeLine(t, pw, "dos")
	if ev, _ := nextEvent(t, s); ev.Results[0].Alternatives[0] != "dos" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestTextRecognizer_DropsLinesBetweenSessions(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewTextRecognizer(pr)

	s, _ := r.Start(context.Background(), Options{Continuous: true})
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := nextEvent(t, s); ok {
		t.Fatal("expected events to close after Stop")
	}

	writeLine(t, pw, "pausa")
	// the blank line is read only after "pausa" was handled
	writeLine(t, pw, "")

	s, _ = r.Start(context.Background(), Options{Continuous: true})
	writeLine(t, pw, "siguiente")
	ev, ok := nextEvent(t, s)
	if !ok {
		t.Fatal("events closed early")
	}
	if got := ev.Results[0].Alternatives[0]; got != "siguiente" {
		t.Errorf("stale line reached the new session: got %q", got)
	}
}

func writeLine(t *testing.T, w io.Writer, line string) {
	t.Helper()
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func TestTextRecognizer_Stop(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := NewTextRecognizer(pr)
	s, _ := r.Start(context.Background(), Options{Continuous: true})
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := nextEvent(t, s); ok {
		t.Error("expected events to close after Stop")
	}
}

func TestTextRecognizer_Unavailable(t *testing.T) {
	if NewTextRecognizer(nil).Available() {
		t.Error("recognizer without input must be unavailable")
	}
}

func TestYandexResult(t *testing.T) {
	final := &speechkit.StreamingResponse{
		Event: &speechkit.StreamingResponse_Final{
			Final: &speechkit.AlternativeUpdate{
				Alternatives: []*speechkit.Alternative{{Text: "siguiente"}, {Text: ""}, {Text: "sigue"}},
			},
		},
	}
	got, ok := yandexResult(final)
	if !ok || !got.IsFinal || !reflect.DeepEqual(got.Alternatives, []string{"siguiente", "sigue"}) {
		t.Errorf("unexpected final result: %+v %v", got, ok)
	}

	partial := &speechkit.StreamingResponse{
		Event: &speechkit.StreamingResponse_Partial{
			Partial: &speechkit.AlternativeUpdate{
				Alternatives: []*speechkit.Alternative{{Text: "sig"}},
			},
		},
	}
	got, ok = yandexResult(partial)
	if !ok || got.IsFinal {
		t.Errorf("unexpected partial result: %+v %v", got, ok)
	}

	if _, ok := yandexResult(&speechkit.StreamingResponse{}); ok {
		t.Error("response without text must be skipped")
	}
}

func TestParseDeepgramMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Result
		ok      bool
		wantErr bool
	}{
		{
			name:    "final",
			message: `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"listar","confidence":0.9}]}}`,
			want:    Result{Alternatives: []string{"listar"}, IsFinal: true},
			ok:      true,
		},
		{
			name:    "speech final",
			message: `{"type":"Results","speech_final":true,"channel":{"alternatives":[{"transcript":"pausa"}]}}`,
			want:    Result{Alternatives: []string{"pausa"}, IsFinal: true},
			ok:      true,
		},
		{
			name:    "interim",
			message: `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"lis"}]}}`,
			want:    Result{Alternatives: []string{"lis"}},
			ok:      true,
		},
		{
			name:    "empty transcript",
			message: `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`,
		},
		{
			name:    "metadata",
			message: `{"type":"Metadata","request_id":"abc"}`,
		},
		{
			name:    "unknown",
			message: `{"type":"Mystery"}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			message: `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseDeepgramMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

type silentSource struct{}

func (silentSource) SampleRate() int { return 16000 }

func (silentSource) Stream(ctx context.Context, out chan<- []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDeepgramRecognizer_Session(t *testing.T) {
	upgrader := websocket.Upgrader{}
	query := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		query <- r.URL.RawQuery

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"siguiente"}]}}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	r := NewDeepgramRecognizer(DeepgramConfig{
		APIKey:  "secret",
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, silentSource{})
	if !r.Available() {
		t.Fatal("expected recognizer to be available")
	}

	s, err := r.Start(context.Background(), Options{Language: "es", Continuous: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	q := <-query
	for _, want := range []string{"language=es", "model=nova-2", "sample_rate=16000", "encoding=linear16"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}

	ev, ok := nextEvent(t, s)
	if !ok || ev.Err != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.Results[0].IsFinal || ev.Results[0].Alternatives[0] != "siguiente" {
		t.Errorf("unexpected result: %+v", ev.Results[0])
	}

	s.Stop()
	for {
		ev, ok := nextEvent(t, s)
		if !ok {
			break
		}
		if ev.Err != nil {
			t.Errorf("stop must not surface an error, got %v", ev.Err)
		}
	}
}

func TestDeepgramRecognizer_Unavailable(t *testing.T) {
	if NewDeepgramRecognizer(DeepgramConfig{}, silentSource{}).Available() {
		t.Error("recognizer without API key must be unavailable")
	}
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(Config{Type: "text"}, strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.(*TextRecognizer); !ok {
		t.Errorf("expected text recognizer, got %T", r)
	}

	if _, err := NewRecognizer(Config{Type: "whisper"}, nil); err == nil {
		t.Error("expected error for unknown recognizer")
	}
}
