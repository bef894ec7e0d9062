package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                { return "panicking_observer" }

func TestMetricsObserver_Counts(t *testing.T) {
	publisher := NewEventPublisher()
	metrics := NewMetricsObserver()
	publisher.Subscribe(metrics)
	publisher.Subscribe(panickingObserver{})

	ctx := context.Background()
	events := []AnalysisEvent{
		{EventType: AnalysisStarted},
		{EventType: AnalysisCompleted, ClassLabel: "Garbage", ProcessingTime: 30 * time.Millisecond, Success: true},
		{EventType: NotificationFailed},
		{EventType: AnalysisStarted},
		{EventType: AnalysisCompleted, ClassLabel: "Clean", ProcessingTime: 10 * time.Millisecond, Success: true},
		{EventType: AnalysisStarted},
		{EventType: AnalysisFailed, ErrorMessage: "decode: failed to decode image"},
		{EventType: NotificationSent},
	}
	for _, e := range events {
		publisher.NotifyObservers(ctx, e)
	}
	publisher.Wait()

	got := metrics.GetMetrics()
	want := Metrics{
		TotalAnalyses:       3,
		SuccessfulAnalyses:  2,
		FailedAnalyses:      1,
		GarbageDetections:   1,
		NotificationsSent:   1,
		NotificationsFailed: 1,
		AvgProcessingTimeMS: 20,
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher()
	metrics := NewMetricsObserver()
	publisher.Subscribe(metrics)
	publisher.Unsubscribe(metrics)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})
	publisher.Wait()

	if got := metrics.GetMetrics().TotalAnalyses; got != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", got)
	}
}

func TestLoggingObserver_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(log).OnEvent(context.Background(), AnalysisEvent{
		EventType:      AnalysisCompleted,
		AnalysisID:     "abc",
		Source:         "upload",
		ClassLabel:     "Garbage",
		Confidence:     0.87,
		ProcessingTime: 12 * time.Millisecond,
		Success:        true,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q", buf.String())
	}
	if entry["analysis_id"] != "abc" || entry["class_label"] != "Garbage" || entry["duration_ms"] != float64(12) {
		t.Errorf("Unexpected log entry: %v", entry)
	}
	if entry["msg"] != "Analysis completed" {
		t.Errorf("Unexpected message %v", entry["msg"])
	}
}
