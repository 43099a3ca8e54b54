package eventbus

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/pkg/logging"
)

type args struct {
	data any
}

func TestPublisher_Publish_NoSubscribers(t *testing.T) {
	type other struct {
		data any
	}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		t.Error("should not be called")
	})
	publisher.Publish(&other{data: "test"})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var data any
	publisher.Subscribe(func(e *args) {
		called = true
		data = e.data
	})
	publisher.Publish(&args{data: "test"})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	handler := func(e *args) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
	publisher.Publish(&args{data: "test"})
}

func TestMatchSignature(t *testing.T) {
	type one struct{}
	type two struct{}
	if !MatchSignature(func(e *one) {}, []any{&one{}}) {
		t.Error("expected true")
	}
	if MatchSignature(func(e *one) {}, []any{&two{}}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *one) {}, []any{}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *one) {}, []any{&one{}, &one{}}) {
		t.Error("expected false")
	}
	if !MatchSignature(func(ctx context.Context) {}, []any{context.Background()}) {
		t.Error("expected true")
	}
}

func TestPublisher_PanicRecovery(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.ErrorLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		panic("intentional panic for testing")
	})

	publisher.Publish(&args{data: "test"})

	output := logBuffer.String()
	if output == "" {
		t.Error("panic should have been logged")
	}
	if !strings.Contains(output, "panicked") {
		t.Errorf("log should contain 'panicked', got: %q", output)
	}
	if !strings.Contains(output, "intentional panic for testing") {
		t.Errorf("log should contain panic message, got: %q", output)
	}
}
