package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/policy"
)

// ReportService builds human-readable statistics digests.
type ReportService struct {
	tasks   *TaskService
	dueDays int
}

func NewReportService(tasks *TaskService) *ReportService {
	return &ReportService{tasks: tasks, dueDays: 3}
}

// Summary renders the caller's scoped statistics plus overdue and due-soon
// tasks as Telegram-flavoured HTML.
func (s *ReportService) Summary(ctx context.Context, caller policy.Caller, now time.Time) (string, error) {
	stats, err := s.tasks.Aggregate(ctx, caller, StatsFilter{})
	if err != nil {
		return "", err
	}
	overdue, err := s.tasks.Overdue(ctx, caller, now)
	if err != nil {
		return "", err
	}
	dueSoon, err := s.tasks.DueSoon(ctx, caller, now, s.dueDays)
	if err != nil {
		return "", err
	}
	sortByDue(overdue)
	sortByDue(dueSoon)

	var builder strings.Builder
	builder.WriteString("📊 <b>Task report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString(fmt.Sprintf("Total: <b>%d</b> · Completed: %d · Open: %d · High/Critical: %d\n",
		stats.Total, stats.Completed, stats.PendingOrInProgress, stats.HighOrCritical))
	builder.WriteString("By status: ")
	parts := make([]string, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", st, stats.ByStatus[st]))
	}
	builder.WriteString(strings.Join(parts, ", "))
	builder.WriteString("\n")

	builder.WriteString("\n⚠️ <b>Overdue</b>\n")
	if len(overdue) == 0 {
		builder.WriteString("— nothing overdue\n")
	} else {
		for _, task := range overdue {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString(fmt.Sprintf("\n⏳ <b>Due in %d days</b>\n", s.dueDays))
	if len(dueSoon) == 0 {
		builder.WriteString("— nothing due soon\n")
	} else {
		for _, task := range dueSoon {
			builder.WriteString(formatTask(task, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueDate.Before(*tasks[j].DueDate)
	})
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := priorityIcon(task.Priority)
	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, title, html.EscapeString(task.SystemName)))

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d left", d.Format("2006-01-02"), daysLeft))
		}
	}
	sb.WriteString(fmt.Sprintf("\n   📌 %s", task.Status))

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "🔴"
	case model.PriorityHigh:
		return "🟠"
	case model.PriorityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}
