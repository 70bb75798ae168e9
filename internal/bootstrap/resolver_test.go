package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/sessync/internal/logger"
	"github.com/hitoshi/sessync/internal/model"
	"github.com/hitoshi/sessync/internal/nav"
)

var _ IdentityApplier = (*mockApplier)(nil)

type mockApplier struct {
	mu        sync.Mutex
	initCount int
	received  []*model.BootstrapIdentity
	initErr   error
}

func (m *mockApplier) Init(_ context.Context, identity *model.BootstrapIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCount++
	m.received = append(m.received, identity)
	return m.initErr
}

func (m *mockApplier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCount
}

type testDiscard struct{}

func (testDiscard) Write(p []byte) (int, error) { return len(p), nil }

func newTestResolver(applier *mockApplier, history nav.History) *Resolver {
	if history == nil {
		history = nav.NewMemoryHistory()
	}
	return NewResolver(applier, history, "distinct_id", "session_id", logger.Setup(testDiscard{}))
}

func TestResolver_ExtractsAndScrubs(t *testing.T) {
	applier := &mockApplier{}
	history := nav.NewMemoryHistory()
	r := newTestResolver(applier, history)

	scrubbed, applied := r.Resolve(context.Background(),
		"http://localhost:3000/welcome?a=1&distinct_id=U123&session_id=S9")

	if !applied {
		t.Error("expected identity to be applied")
	}
	if scrubbed != "http://localhost:3000/welcome?a=1" {
		t.Errorf("unexpected scrubbed URL: %q", scrubbed)
	}
	if history.Current() != scrubbed {
		t.Errorf("expected history to be rewritten to %q, got %q", scrubbed, history.Current())
	}

	if applier.count() != 1 {
		t.Fatalf("expected 1 init call, got %d", applier.count())
	}
	identity := applier.received[0]
	if identity == nil {
		t.Fatal("expected bootstrap identity, got nil")
	}
	if identity.DistinctID != "U123" {
		t.Errorf("expected distinct_id U123, got %s", identity.DistinctID)
	}
	if identity.SessionID != "S9" {
		t.Errorf("expected session_id S9, got %s", identity.SessionID)
	}
}

func TestResolver_NoIdentityParams(t *testing.T) {
	applier := &mockApplier{}
	history := nav.NewMemoryHistory()
	r := newTestResolver(applier, history)

	scrubbed, applied := r.Resolve(context.Background(), "http://localhost:3000/welcome?a=1")

	if applied {
		t.Error("expected applied=false without identity params")
	}
	if scrubbed != "http://localhost:3000/welcome?a=1" {
		t.Errorf("URL without identity params should be unchanged, got %q", scrubbed)
	}
	if history.Current() != "" {
		t.Errorf("history should not be rewritten, got %q", history.Current())
	}

	// 識別子がなくても匿名初期化は一度だけ行われる
	if applier.count() != 1 {
		t.Errorf("expected 1 init call, got %d", applier.count())
	}
	if applier.received[0] != nil {
		t.Errorf("expected nil bootstrap identity, got %+v", applier.received[0])
	}
}

func TestResolver_SessionParamOnly(t *testing.T) {
	applier := &mockApplier{}
	r := newTestResolver(applier, nil)

	scrubbed, applied := r.Resolve(context.Background(),
		"http://localhost:3000/welcome?session_id=S9&b=2")

	// distinct_idなしでは引き継ぎとして成立しない
	if applied {
		t.Error("expected applied=false without distinct_id")
	}
	// それでもセッションパラメータは除去される
	if scrubbed != "http://localhost:3000/welcome?b=2" {
		t.Errorf("unexpected scrubbed URL: %q", scrubbed)
	}
	if applier.received[0] != nil {
		t.Errorf("expected nil bootstrap identity, got %+v", applier.received[0])
	}
}

func TestResolver_SecondCallDoesNotReapply(t *testing.T) {
	applier := &mockApplier{}
	r := newTestResolver(applier, nil)
	ctx := context.Background()

	_, applied := r.Resolve(ctx, "http://localhost:3000/?distinct_id=U123")
	if !applied {
		t.Fatal("expected first call to apply")
	}

	scrubbed, applied := r.Resolve(ctx, "http://localhost:3000/?distinct_id=U456&c=3")
	if applied {
		t.Error("second call should not apply identity")
	}
	// 2回目以降もパラメータ除去は行われる
	if scrubbed != "http://localhost:3000/?c=3" {
		t.Errorf("unexpected scrubbed URL: %q", scrubbed)
	}
	if applier.count() != 1 {
		t.Errorf("expected 1 init call, got %d", applier.count())
	}
}

func TestResolver_MalformedURL(t *testing.T) {
	applier := &mockApplier{}
	r := newTestResolver(applier, nil)

	raw := "http://[malformed"
	scrubbed, applied := r.Resolve(context.Background(), raw)

	if applied {
		t.Error("expected applied=false for malformed URL")
	}
	if scrubbed != raw {
		t.Errorf("malformed URL should be returned unchanged, got %q", scrubbed)
	}
	// 不正なURLでも匿名初期化は行われる
	if applier.count() != 1 {
		t.Errorf("expected 1 init call, got %d", applier.count())
	}
	if !r.Resolved() {
		t.Error("resolver should be marked resolved even for malformed input")
	}
}

func TestResolver_ApplyFailureDoesNotFailCaller(t *testing.T) {
	applier := &mockApplier{initErr: errors.New("db locked")}
	r := newTestResolver(applier, nil)

	scrubbed, applied := r.Resolve(context.Background(),
		"http://localhost:3000/?distinct_id=U123&a=1")

	if applied {
		t.Error("expected applied=false when apply fails")
	}
	if scrubbed != "http://localhost:3000/?a=1" {
		t.Errorf("scrubbing should still happen, got %q", scrubbed)
	}
}

func TestResolver_ConcurrentResolveAppliesOnce(t *testing.T) {
	applier := &mockApplier{}
	r := newTestResolver(applier, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), "http://localhost:3000/?distinct_id=U123")
		}()
	}
	wg.Wait()

	if applier.count() != 1 {
		t.Errorf("expected exactly 1 init call under concurrency, got %d", applier.count())
	}
}

func TestResolver_PreservesUnrelatedParams(t *testing.T) {
	r := newTestResolver(&mockApplier{}, nil)

	scrubbed, _ := r.Resolve(context.Background(),
		"http://localhost:3000/search?q=go+testing&page=2&distinct_id=U1&session_id=S1&sort=desc")

	for _, key := range []string{"q=go+testing", "page=2", "sort=desc"} {
		if !strings.Contains(scrubbed, key) {
			t.Errorf("expected scrubbed URL to keep %q, got %q", key, scrubbed)
		}
	}
	if strings.Contains(scrubbed, "distinct_id=") {
		t.Errorf("scrubbed URL still contains distinct_id: %q", scrubbed)
	}
	if strings.Contains(scrubbed, "session_id=") {
		t.Errorf("scrubbed URL still contains session_id: %q", scrubbed)
	}
}
