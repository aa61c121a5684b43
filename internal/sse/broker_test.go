package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/publish"
)

func report(passID string, outcomes ...publish.Outcome) *publish.Report {
	return &publish.Report{PassID: passID, Outcomes: outcomes, Pages: len(outcomes)}
}

func outcome(id string, status publish.Status) publish.Outcome {
	rec := metadata.New(id, "")
	return publish.Outcome{ID: id, Status: status, Record: rec}
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func count(msgs []string, eventType string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "page.created", Data: PageEvent{ID: "a", URL: "a.html"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: page.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"url":"a.html"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishReport_EventsPerStatus(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishReport(report("p1",
		outcome("a", publish.StatusNew),
		outcome("b", publish.StatusUpdated),
		outcome("c", publish.StatusUnchanged),
	))

	msgs := drain(ch)
	if n := count(msgs, "page.created"); n != 1 {
		t.Errorf("page.created = %d, want 1", n)
	}
	if n := count(msgs, "page.updated"); n != 1 {
		t.Errorf("page.updated = %d, want 1", n)
	}
	if n := count(msgs, "index.updated"); n != 1 {
		t.Errorf("index.updated = %d, want 1", n)
	}
	if len(msgs) != 3 {
		t.Errorf("got %d messages, want 3: %q", len(msgs), msgs)
	}
	last := msgs[len(msgs)-1]
	if !strings.Contains(last, `"pass_id":"p1"`) || !strings.Contains(last, `"pages":3`) {
		t.Errorf("index.updated payload = %q", last)
	}
}

func TestPublishReport_IndexThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishReport(report("p1", outcome("a", publish.StatusNew)))
	b.PublishReport(report("p2", outcome("b", publish.StatusUpdated)))

	msgs := drain(ch)
	if n := count(msgs, "page.created") + count(msgs, "page.updated"); n != 2 {
		t.Errorf("page events = %d, want 2", n)
	}
	if n := count(msgs, "index.updated"); n != 1 {
		t.Errorf("index events = %d, want 1 (throttled)", n)
	}
}

func TestPublishReport_NoChangesIsSilent(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishReport(report("p1", outcome("a", publish.StatusUnchanged)))
	b.PublishReport(nil)

	if msgs := drain(ch); len(msgs) != 0 {
		t.Errorf("expected no events, got %q", msgs)
	}
}

type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishReport(report("p1", outcome("x", publish.StatusUpdated)))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: page.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "page.updated"})
	b.PublishReport(report("p", outcome("x", publish.StatusNew)))
}
