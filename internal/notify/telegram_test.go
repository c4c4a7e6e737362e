package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

type fakeChats map[string]int64

func (f fakeChats) ChatID(_ context.Context, userID string) (int64, bool, error) {
	if userID == "broken" {
		return 0, false, errors.New("db gone")
	}
	id, ok := f[userID]
	return id, ok, nil
}

func TestTelegramSinkSendsToLinkedUsers(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender, fakeChats{"u1": 100})

	ev := Event{
		Kind:    TaskAssigned,
		UserIDs: []string{"u1", "u2"},
		Task:    TaskSnapshot{ID: "t1", Title: "Fix <login>"},
	}
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1 (u2 has no chat)", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 100 || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("unexpected message config %+v", msg)
	}
	if !strings.Contains(msg.Text, "Fix &lt;login&gt;") {
		t.Errorf("title should be HTML escaped: %q", msg.Text)
	}
}

func TestTelegramSinkReportsErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("429")}
	sink := NewTelegramSink(sender, fakeChats{"u1": 100})

	err := sink.Deliver(context.Background(), Event{Kind: TaskOverdue, UserIDs: []string{"broken", "u1"}})
	if err == nil {
		t.Fatal("expected errors from lookup and send")
	}
	if !strings.Contains(err.Error(), "db gone") || !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry both causes: %v", err)
	}
}
