package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/Svenny/voxen-sub000/internal/uid"
)

var (
	agentA  = uid.FromU64Pair(1, 1)
	agentB  = uid.FromU64Pair(2, 2)
	msgPing = uid.FromU64Pair(0xA, 1)
)

func TestSendFireAndForget(t *testing.T) {
	router := NewRouter()

	b, err := NewMessageQueue(router, agentB)
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer b.Close()

	var got string
	b.RegisterHandler(msgPing, func(info MessageInfo, payload any) {
		got = payload.(string)
		if info.SenderUID() != agentA {
			t.Errorf("expected sender %v, got %v", agentA, info.SenderUID())
		}
	})

	a := NewSender(router, agentA)
	a.Send(agentB, msgPing, "hello")

	b.PollMessages()
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestSendToUnregisteredAgentIsDropped(t *testing.T) {
	router := NewRouter()
	a := NewSender(router, agentA)
	// Should not panic or block.
	a.Send(agentB, msgPing, "nobody home")
}

func TestRequestWithHandleCompletes(t *testing.T) {
	router := NewRouter()

	b, err := NewMessageQueue(router, agentB)
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer b.Close()

	b.RegisterHandler(msgPing, func(info MessageInfo, payload any) {})

	a := NewSender(router, agentA)
	handle := a.RequestWithHandle(agentB, msgPing, "ping")

	b.PollMessages()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := handle.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("expected Complete, got %v", status)
	}
}

func TestRequestWithHandleDroppedWhenNoHandler(t *testing.T) {
	router := NewRouter()

	b, err := NewMessageQueue(router, agentB)
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer b.Close()

	a := NewSender(router, agentA)
	handle := a.RequestWithHandle(agentB, msgPing, "ping")

	b.PollMessages()

	if handle.Status() != StatusDropped {
		t.Fatalf("expected Dropped, got %v", handle.Status())
	}
	if handle.Err() == nil {
		t.Fatal("expected non-nil Err for Dropped request")
	}
}

func TestRequestWithCompletionSurfacesPanic(t *testing.T) {
	router := NewRouter()

	a, err := NewMessageQueue(router, agentA)
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer a.Close()

	b, err := NewMessageQueue(router, agentB)
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer b.Close()

	b.RegisterHandler(msgPing, func(info MessageInfo, payload any) {
		panic("boom")
	})

	var gotInfo CompletionInfo
	a.RegisterCompletionHandler(msgPing, func(info CompletionInfo) {
		gotInfo = info
	})

	a.RequestWithCompletion(agentB, msgPing, "ping")
	b.PollMessages()
	a.PollMessages()

	if gotInfo.Status() != StatusFailed {
		t.Fatalf("expected Failed, got %v", gotInfo.Status())
	}
	if gotInfo.Err() == nil {
		t.Fatal("expected non-nil Err for Failed request")
	}

	panicked := func() (recovered any) {
		defer func() { recovered = recover() }()
		gotInfo.RethrowIfFailed()
		return nil
	}()
	if panicked != "boom" {
		t.Fatalf("expected RethrowIfFailed to re-panic with \"boom\", got %v", panicked)
	}
}
