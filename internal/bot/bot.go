package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/policy"
	"task-tracker/internal/service"
)

const (
	cbDonePrefix = "done:"
	cbOpenPrefix = "open:"
)

const (
	iconDone    = "✅"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
	iconLink    = "🔗"
)

// Client is the part of the Telegram API the bot talks to.
// *tgbotapi.BotAPI satisfies it.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Connect authorizes against the Bot API with token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return api, nil
}

// Bot lets linked users browse and update their tasks from Telegram.
type Bot struct {
	api     Client
	users   *service.UserService
	tasks   *service.TaskService
	reports *service.ReportService
	now     func() time.Time
}

func New(api Client, users *service.UserService, tasks *service.TaskService, reports *service.ReportService) *Bot {
	return &Bot{
		api:     api,
		users:   users,
		tasks:   tasks,
		reports: reports,
		now:     time.Now,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			log.Printf("handle update %d: %v", update.UpdateID, err)
		}
	}
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() || update.Message.From == nil {
			return nil
		}
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Try /help.")
	}
	log.Printf("[info] command from chat=%d: /%s", msg.Chat.ID, msg.Command())

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "tasks":
		return b.handleTasks(ctx, msg)
	case "status":
		return b.handleStatus(ctx, msg)
	case "comment":
		return b.handleComment(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.FindByTelegramChat(ctx, msg.Chat.ID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		name := strings.TrimSpace(msg.From.FirstName)
		if name == "" {
			name = "there"
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"👋 Hi, %s!\n<b>I deliver task tracker notifications.</b>\n\n"+
				"%s Link your account first:\n/link &lt;username or email&gt; &lt;password&gt;",
			escape(name), iconLink))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"👋 Welcome back, <b>%s</b> (%s).\nUse /tasks to see your work or /help for everything else.",
		escape(user.Username), user.Role))
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /link &lt;login&gt; &lt;password&gt; — connect this chat to your account\n" +
		"• /tasks — open tasks you can see\n" +
		"• /status &lt;task id&gt; &lt;status&gt; — move a task (Pending, InProgress, Completed, Cancelled)\n" +
		"• /comment &lt;task id&gt; &lt;text&gt; — comment on a task\n" +
		"• /report — statistics and deadlines\n" +
		"• /help — this message"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /link &lt;username or email&gt; &lt;password&gt;")
	}
	// the message carries a password
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		log.Printf("delete link message: %v", err)
	}

	user, err := b.users.Authenticate(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "Unknown login or wrong password.")
		}
		return err
	}
	if err := b.users.LinkTelegram(ctx, user.ID, msg.Chat.ID); err != nil {
		return err
	}
	log.Printf("[info] chat %d linked to user=%s", msg.Chat.ID, user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Linked to <b>%s</b>. Notifications will arrive here.",
		iconLink, escape(user.Username)))
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) error {
	caller, ok, err := b.caller(ctx, msg.Chat.ID)
	if err != nil || !ok {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, caller)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /status &lt;task id&gt; &lt;status&gt;")
	}
	caller, ok, err := b.caller(ctx, msg.Chat.ID)
	if err != nil || !ok {
		return err
	}
	status, ok := parseStatus(args[1])
	if !ok {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Unknown status %q.", escape(args[1])))
	}
	task, err := b.tasks.ChangeStatus(ctx, caller, args[0], status)
	if err != nil {
		return b.sendText(msg.Chat.ID, describe(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📌 «%s» is now %s.", escape(task.Title), task.Status))
}

func (b *Bot) handleComment(ctx context.Context, msg *tgbotapi.Message) error {
	id, text, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	if id == "" {
		return b.sendText(msg.Chat.ID, "Usage: /comment &lt;task id&gt; &lt;text&gt;")
	}
	caller, ok, err := b.caller(ctx, msg.Chat.ID)
	if err != nil || !ok {
		return err
	}
	if _, err := b.tasks.AddComment(ctx, caller, id, text); err != nil {
		return b.sendText(msg.Chat.ID, describe(err))
	}
	return b.sendText(msg.Chat.ID, "💬 Comment added.")
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	caller, ok, err := b.caller(ctx, msg.Chat.ID)
	if err != nil || !ok {
		return err
	}
	text, err := b.reports.Summary(ctx, caller, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	var status model.TaskStatus
	var taskID string
	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		status, taskID = model.StatusCompleted, strings.TrimPrefix(cb.Data, cbDonePrefix)
	case strings.HasPrefix(cb.Data, cbOpenPrefix):
		status, taskID = model.StatusInProgress, strings.TrimPrefix(cb.Data, cbOpenPrefix)
	default:
		return nil
	}
	log.Printf("[info] callback status=%s task=%s chat=%d", status, taskID, cb.Message.Chat.ID)

	chatID := cb.Message.Chat.ID
	caller, ok, err := b.caller(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	task, err := b.tasks.ChangeStatus(ctx, caller, taskID, status)
	if err != nil {
		return b.sendText(chatID, describe(err))
	}
	if err := b.sendText(chatID, fmt.Sprintf("📌 «%s» is now %s.", escape(task.Title), task.Status)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, caller)
}

// SendReports sends a digest to every user with a linked chat.
func (b *Bot) SendReports(ctx context.Context) error {
	users, err := b.users.ListLinked(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramChatID == nil {
			continue
		}
		caller := policy.Caller{UserID: user.ID, Role: user.Role}
		text, err := b.reports.Summary(ctx, caller, now)
		if err != nil {
			log.Printf("build report for user %s: %v", user.ID, err)
			continue
		}
		if err := b.sendText(*user.TelegramChatID, text); err != nil {
			log.Printf("send report to %d: %v", *user.TelegramChatID, err)
		}
	}
	return nil
}

// caller resolves the account linked to chatID. When none is linked the
// chat is told how to link and ok is false.
func (b *Bot) caller(ctx context.Context, chatID int64) (policy.Caller, bool, error) {
	user, err := b.users.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return policy.Caller{}, false, b.sendText(chatID, iconLink+" This chat is not linked yet. Use /link &lt;login&gt; &lt;password&gt;.")
		}
		return policy.Caller{}, false, err
	}
	return policy.Caller{UserID: user.ID, Role: user.Role}, true, nil
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, caller policy.Caller) error {
	tasks, err := b.tasks.List(ctx, caller)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	open := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Status == model.StatusPending || task.Status == model.StatusInProgress {
			open = append(open, task)
		}
	}
	if len(open) == 0 {
		return b.sendText(chatID, "No open tasks. 🎉")
	}
	sortByDeadline(open)

	now := b.now()
	canMutate := policy.CanMutateTasks(caller.Role)
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range open {
		builder.WriteString(taskLine(task, now))
		if !canMutate {
			continue
		}
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(iconDone+" "+shortTitle(task.Title, 24), cbDonePrefix+task.ID),
		}
		if task.Status == model.StatusPending {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("▶️ Start", cbOpenPrefix+task.ID))
		}
		buttons = append(buttons, row)
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// describe turns a service error into a reply.
func describe(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "Task not found."
	case errors.Is(err, model.ErrUnauthorized):
		return "Your role cannot do that."
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConflict):
		return escape(err.Error())
	default:
		log.Printf("bot: %v", err)
		return "Something went wrong, try again later."
	}
}

func parseStatus(raw string) (model.TaskStatus, bool) {
	for _, st := range model.Statuses {
		if strings.EqualFold(string(st), raw) {
			return st, true
		}
	}
	return "", false
}

func sortByDeadline(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a != nil && b != nil:
			return a.Before(*b)
		case a != nil:
			return true
		default:
			return false
		}
	})
}

func taskLine(task model.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("• <b>%s</b> <i>(%s)</i> · %s · %s\n",
		escape(task.Title), escape(task.SystemName), task.Priority, task.Status))
	if task.DueDate != nil {
		icon := iconDue
		if task.DueDate.Before(now) {
			icon = iconOverdue
		}
		sb.WriteString(fmt.Sprintf("   %s due %s\n", icon, task.DueDate.Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("   <code>%s</code>\n", task.ID))
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
