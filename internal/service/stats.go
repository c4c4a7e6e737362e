package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/policy"
)

// StatsFilter narrows the tasks counted by Aggregate. Zero values do not filter.
type StatsFilter struct {
	SystemName string
	From       *time.Time
	To         *time.Time
}

// DateCount is the number of tasks created on one calendar day (UTC).
type DateCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Statistics summarises a set of tasks for dashboards and reports.
type Statistics struct {
	Total               int                      `json:"total"`
	Completed           int                      `json:"completed"`
	PendingOrInProgress int                      `json:"pending_or_in_progress"`
	HighOrCritical      int                      `json:"high_or_critical"`
	ByStatus            map[model.TaskStatus]int `json:"by_status"`
	ByPriority          map[model.Priority]int   `json:"by_priority"`
	BySystem            map[string]int           `json:"by_system"`
	ByDate              []DateCount              `json:"by_date"`
}

// Aggregate computes statistics over the tasks visible to the caller, never
// the global set for owned-only roles.
func (s *TaskService) Aggregate(ctx context.Context, caller policy.Caller, filter StatsFilter) (*Statistics, error) {
	tasks, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	stats := ComputeStatistics(filter.Apply(tasks))
	return &stats, nil
}

// Apply keeps the tasks matching the filter. The system name matches
// case-insensitively; both date bounds are inclusive.
func (f StatsFilter) Apply(tasks []model.Task) []model.Task {
	system := strings.TrimSpace(f.SystemName)
	return filterTasks(tasks, func(t *model.Task) bool {
		if system != "" && !strings.EqualFold(t.SystemName, system) {
			return false
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && t.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
}

// ComputeStatistics counts tasks by status, priority, system and creation
// day. Every status and priority appears in the breakdowns, zero-filled;
// systems appear only when present; days are in ascending order.
func ComputeStatistics(tasks []model.Task) Statistics {
	stats := Statistics{
		Total:      len(tasks),
		ByStatus:   make(map[model.TaskStatus]int, len(model.Statuses)),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
		BySystem:   make(map[string]int),
		ByDate:     []DateCount{},
	}
	for _, st := range model.Statuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range model.Priorities {
		stats.ByPriority[p] = 0
	}

	byDay := make(map[time.Time]int)
	for i := range tasks {
		t := &tasks[i]
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.BySystem[t.SystemName]++

		switch t.Status {
		case model.StatusCompleted:
			stats.Completed++
		case model.StatusPending, model.StatusInProgress:
			stats.PendingOrInProgress++
		}
		if t.Priority == model.PriorityHigh || t.Priority == model.PriorityCritical {
			stats.HighOrCritical++
		}

		created := t.CreatedAt.UTC()
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day]++
	}

	for day, n := range byDay {
		stats.ByDate = append(stats.ByDate, DateCount{Date: day, Count: n})
	}
	sort.Slice(stats.ByDate, func(i, j int) bool {
		return stats.ByDate[i].Date.Before(stats.ByDate[j].Date)
	})
	return stats
}
