package voiceclient

import (
	"sync"
	"testing"
)

func TestAppendAssignsSequenceInCompletionOrder(t *testing.T) {
	log := NewConversationLog()

	log.Append(SenderUser, "first")
	log.Append(SenderAgent, "second")
	log.Append(SenderError, "third")

	messages := log.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, message := range messages {
		if message.Sequence != i+1 {
			t.Fatalf("expected sequence %d at position %d, got %d", i+1, i, message.Sequence)
		}
		if message.ID == "" {
			t.Fatalf("expected message at position %d to have an id", i)
		}
	}
}

func TestMessagesReturnsPointInTimeCopy(t *testing.T) {
	log := NewConversationLog()
	log.Append(SenderUser, "hello")

	snapshot := log.Messages()
	log.Append(SenderAgent, "hi")

	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot to stay at 1 message, got %d", len(snapshot))
	}
	if log.Len() != 2 {
		t.Fatalf("expected log to hold 2 messages, got %d", log.Len())
	}
}

func TestAppendCallbackReceivesMessage(t *testing.T) {
	log := NewConversationLog()

	received := []ChatMessage{}
	log.SetAppendCallback(func(message ChatMessage) {
		received = append(received, message)
	})

	log.Append(SenderAgent, "reply")

	if len(received) != 1 || received[0].Text != "reply" || received[0].Sender != SenderAgent {
		t.Fatalf("expected callback to receive the appended message, got %+v", received)
	}
}

func TestAppendCallbackDeliversInSequenceOrder(t *testing.T) {
	log := NewConversationLog()

	received := []int{}
	log.SetAppendCallback(func(message ChatMessage) {
		received = append(received, message.Sequence)
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(SenderUser, "concurrent")
		}()
	}
	wg.Wait()

	if len(received) != 20 {
		t.Fatalf("expected 20 callback deliveries, got %d", len(received))
	}
	for i, sequence := range received {
		if sequence != i+1 {
			t.Fatalf("expected delivery %d to carry sequence %d, got %d", i, i+1, sequence)
		}
	}
}
