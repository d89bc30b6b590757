package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	jobmetrics "github.com/farmstead-erp/farmstead-erp/internal/jobs"
)

func counterValue(t *testing.T, registry *prometheus.Registry, name, job, status string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "job":
					matched = matched && label.GetValue() == job
				case "status":
					matched = matched && label.GetValue() == status
				}
			}
			if matched {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestAnalyticsWarmupHandleRecordsFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	job := &AnalyticsWarmupJob{Metrics: jobmetrics.NewMetrics(registry)}

	task, err := NewAnalyticsWarmupTask(time.Now().UTC())
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatal("expected error from unconfigured pool")
	}

	if got := counterValue(t, registry, "farmstead_job_failures_total", TaskAnalyticsWarmup, ""); got != 1 {
		t.Fatalf("expected 1 recorded failure, got %v", got)
	}
	if got := counterValue(t, registry, "farmstead_job_runs_total", TaskAnalyticsWarmup, "failure"); got != 1 {
		t.Fatalf("expected 1 failure run, got %v", got)
	}
	if got := counterValue(t, registry, "farmstead_job_runs_total", TaskAnalyticsWarmup, "success"); got != 0 {
		t.Fatalf("expected no success runs, got %v", got)
	}
}

func TestAnalyticsWarmupHandleSkipsBadPayload(t *testing.T) {
	registry := prometheus.NewRegistry()
	job := &AnalyticsWarmupJob{Metrics: jobmetrics.NewMetrics(registry)}

	task := asynq.NewTask(TaskAnalyticsWarmup, []byte("not json"))
	if err := job.Handle(context.Background(), task); err != asynq.SkipRetry {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if got := counterValue(t, registry, "farmstead_job_runs_total", TaskAnalyticsWarmup, "failure"); got != 0 {
		t.Fatalf("rejected payloads must not count as runs, got %v", got)
	}
}
