package service

import (
	"context"
	"testing"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/policy"
)

func TestAggregateScopedCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "root", model.RoleSystemAdministrator)
	dev := f.user(t, "dev", model.RoleUser)

	plan := []struct {
		status   model.TaskStatus
		priority model.Priority
	}{
		{model.StatusCompleted, model.PriorityCritical},
		{model.StatusCompleted, model.PriorityMedium},
		{model.StatusPending, model.PriorityMedium},
		{model.StatusInProgress, model.PriorityMedium},
		{model.StatusInProgress, model.PriorityMedium},
	}
	for i, p := range plan {
		_, err := f.tasks.Create(ctx, admin, TaskInput{
			Title:       "scoped",
			Description: "d",
			SystemName:  "billing",
			Status:      p.status,
			Priority:    p.priority,
			AssigneeID:  &dev.UserID,
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	// invisible to dev
	f.task(t, admin, "other", &admin)

	stats, err := f.tasks.Aggregate(ctx, dev, StatsFilter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Total != 5 || stats.Completed != 2 || stats.PendingOrInProgress != 3 || stats.HighOrCritical != 1 {
		t.Errorf("stats = total %d completed %d open %d high %d, want 5/2/3/1",
			stats.Total, stats.Completed, stats.PendingOrInProgress, stats.HighOrCritical)
	}
	if stats.ByStatus[model.StatusCancelled] != 0 || stats.ByStatus[model.StatusInProgress] != 2 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
	if _, ok := stats.ByPriority[model.PriorityLow]; !ok {
		t.Errorf("ByPriority missing zero entry for Low: %v", stats.ByPriority)
	}

	all, err := f.tasks.Aggregate(ctx, policy.Caller{UserID: "m", Role: model.RoleManager}, StatsFilter{})
	if err != nil {
		t.Fatalf("Aggregate manager: %v", err)
	}
	if all.Total != 6 {
		t.Errorf("manager total = %d, want 6", all.Total)
	}
}

func TestStatsFilterApply(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }
	tasks := []model.Task{
		{Title: "a", SystemName: "Billing", CreatedAt: day(1)},
		{Title: "b", SystemName: "billing", CreatedAt: day(2)},
		{Title: "c", SystemName: "crm", CreatedAt: day(3)},
	}

	from, to := day(2), day(3)
	cases := []struct {
		name   string
		filter StatsFilter
		want   []string
	}{
		{"none", StatsFilter{}, []string{"a", "b", "c"}},
		{"system ignores case", StatsFilter{SystemName: " BILLING "}, []string{"a", "b"}},
		{"inclusive from", StatsFilter{From: &from}, []string{"b", "c"}},
		{"inclusive to", StatsFilter{To: &from}, []string{"a", "b"}},
		{"both", StatsFilter{SystemName: "billing", From: &from, To: &to}, []string{"b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := titles(tc.filter.Apply(tasks)); !equalStrings(got, tc.want) {
				t.Errorf("Apply = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeStatisticsBreakdowns(t *testing.T) {
	tasks := []model.Task{
		{Status: model.StatusPending, Priority: model.PriorityHigh, SystemName: "crm", CreatedAt: time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)},
		{Status: model.StatusCancelled, Priority: model.PriorityLow, SystemName: "crm", CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		{Status: model.StatusCompleted, Priority: model.PriorityLow, SystemName: "edge", CreatedAt: time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)},
	}
	stats := ComputeStatistics(tasks)

	if stats.Total != 3 || stats.Completed != 1 || stats.PendingOrInProgress != 1 || stats.HighOrCritical != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if len(stats.ByStatus) != len(model.Statuses) || len(stats.ByPriority) != len(model.Priorities) {
		t.Errorf("breakdowns not zero-filled: %v %v", stats.ByStatus, stats.ByPriority)
	}
	if stats.BySystem["crm"] != 2 || stats.BySystem["edge"] != 1 || len(stats.BySystem) != 2 {
		t.Errorf("BySystem = %v", stats.BySystem)
	}
	if len(stats.ByDate) != 2 {
		t.Fatalf("ByDate = %+v, want two days", stats.ByDate)
	}
	if stats.ByDate[0].Date.Day() != 1 || stats.ByDate[0].Count != 1 || stats.ByDate[1].Date.Day() != 2 || stats.ByDate[1].Count != 2 {
		t.Errorf("ByDate = %+v, want ascending days with counts 1, 2", stats.ByDate)
	}

	empty := ComputeStatistics(nil)
	if empty.Total != 0 || empty.ByDate == nil || empty.ByStatus[model.StatusPending] != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
