package credential

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/sessync/internal/model"
)

func TestMirror_StartsAbsent(t *testing.T) {
	m := NewMirror()

	if got := m.Get(); got != model.CredentialAbsent {
		t.Errorf("Get() = %q, want absent", got)
	}
	if m.Get().Defined() {
		t.Error("initial credential should not be defined")
	}
}

func TestMirror_SetThenGet(t *testing.T) {
	m := NewMirror()

	m.Set(model.Credential("tok-A"))

	if got := m.Get(); got != model.Credential("tok-A") {
		t.Errorf("Get() = %q, want %q", got, "tok-A")
	}
}

func TestMirror_SignOutClearsValue(t *testing.T) {
	// サインインでtok-A、続くサインアウトで不在になるシナリオ。
	m := NewMirror()

	m.Set(model.Credential("tok-A"))
	m.Clear()

	if got := m.Get(); got.Defined() {
		t.Errorf("Get() after sign-out = %q, want absent", got)
	}
}

func TestMirror_SetIsIdempotent(t *testing.T) {
	m := NewMirror()

	if changed := m.Set(model.Credential("tok-A")); !changed {
		t.Error("first Set should report a change")
	}
	if changed := m.Set(model.Credential("tok-A")); changed {
		t.Error("setting the same value twice should not report a change")
	}
	if got := m.Get(); got != model.Credential("tok-A") {
		t.Errorf("Get() = %q, want %q", got, "tok-A")
	}
}

func TestMirror_SequentialEventsApplyInOrder(t *testing.T) {
	// ライフサイクルイベント列E1..Enを順に適用したとき、
	// 各時点のミラー値は直近に適用したイベントの値と一致する。
	m := NewMirror()

	events := []model.Credential{"tok-1", "tok-2", "", "tok-3", "tok-3", "tok-4"}
	for i, c := range events {
		m.Set(c)
		if got := m.Get(); got != c {
			t.Errorf("after event %d: Get() = %q, want %q", i, got, c)
		}
	}
}

func TestMirror_BackToBackEventsLastWins(t *testing.T) {
	// 同一ティックで配送されたtok-A→tok-Bは最終的にtok-Bになる。
	m := NewMirror()

	m.Set(model.Credential("tok-A"))
	m.Set(model.Credential("tok-B"))

	if got := m.Get(); got != model.Credential("tok-B") {
		t.Errorf("Get() = %q, want %q", got, "tok-B")
	}
}

func TestMirror_ConcurrentReadersSeeConsistentValues(t *testing.T) {
	// 単一ライター・複数リーダーでもレースなく、リーダーは
	// ライターが設定したいずれかの値のみを観測する。
	m := NewMirror()

	const writes = 200
	valid := make(map[model.Credential]bool, writes+1)
	valid[model.CredentialAbsent] = true
	for i := 0; i < writes; i++ {
		valid[model.Credential(fmt.Sprintf("tok-%d", i))] = true
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			m.Set(model.Credential(fmt.Sprintf("tok-%d", i)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				if got := m.Get(); !valid[got] {
					t.Errorf("reader observed unexpected value %q", got)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := m.Get(); got != model.Credential(fmt.Sprintf("tok-%d", writes-1)) {
		t.Errorf("final value = %q, want %q", got, fmt.Sprintf("tok-%d", writes-1))
	}
}
