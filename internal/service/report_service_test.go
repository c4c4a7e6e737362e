package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"task-tracker/internal/model"
)

func TestReportSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "root", model.RoleSystemAdministrator)
	dev := f.user(t, "dev", model.RoleUser)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	late := f.task(t, admin, "Fix <login>", &dev)
	past := now.Add(-24 * time.Hour)
	if _, err := f.tasks.UpdateDueDate(ctx, admin, late.ID, &past); err != nil {
		t.Fatalf("UpdateDueDate: %v", err)
	}
	f.task(t, admin, "Admin only", nil)

	report := NewReportService(f.tasks)
	text, err := report.Summary(ctx, dev, now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, want := range []string{
		"Total: <b>1</b>",
		"Pending 1",
		"Fix &lt;login&gt;",
		"overdue",
		"nothing due soon",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Admin only") {
		t.Errorf("summary leaks tasks outside the caller's scope:\n%s", text)
	}
}

func TestFormatTaskDueSoon(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(36 * time.Hour)
	line := formatTask(model.Task{Title: "Ship", SystemName: "api", Priority: model.PriorityCritical, Status: model.StatusInProgress, DueDate: &due}, now)

	if !strings.HasPrefix(line, "🔴 Ship") {
		t.Errorf("line = %q, want critical icon first", line)
	}
	if !strings.Contains(line, "≈2 d left") {
		t.Errorf("line = %q, want days left", line)
	}
}
