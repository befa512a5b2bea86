package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	applog "ledger/internal/log"
)

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	var buf bytes.Buffer
	m := Multi{&a, nil, &b, NewWriterNotifier(&buf)}

	m.Notify(context.Background(), Notice{Level: LevelError, Kind: KindPermissionDenied, Message: MsgPermissionDenied, Status: 403})

	if len(a.Notices()) != 1 || len(b.Notices()) != 1 {
		t.Fatalf("expected one notice per recorder, got %d and %d", len(a.Notices()), len(b.Notices()))
	}
	if got := strings.TrimSpace(buf.String()); got != "[error] Insufficient permission" {
		t.Fatalf("unexpected writer output %q", got)
	}
	last, ok := a.Last()
	if !ok || last.Status != 403 {
		t.Fatalf("unexpected last notice %+v", last)
	}
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	l := applog.New(applog.Config{Output: &buf})
	n := NewLogNotifier(l)

	n.Notify(context.Background(), Notice{Level: LevelError, Kind: KindSessionExpired, Message: MsgSessionExpired, Status: 401})
	out := buf.String()
	for _, want := range []string{"level=ERROR", "component=notify", "notice_kind=session_expired", "status_code=401"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestNotifierFunc(t *testing.T) {
	called := false
	var n Notifier = NotifierFunc(func(context.Context, Notice) { called = true })
	n.Notify(context.Background(), Notice{})
	if !called {
		t.Fatal("func not invoked")
	}
}
