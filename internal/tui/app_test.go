package tui

import (
	"testing"

	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/tui/components"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

func TestTabAtXMatchesRenderedWidths(t *testing.T) {
	a := App{activeTab: 2}

	pos := 0
	for i, tab := range components.Tabs {
		w := components.TabVisualWidth(tab, i == a.activeTab)
		if got := a.tabAtX(pos); got != i {
			t.Fatalf("tabAtX(%d) = %d, want %d", pos, got, i)
		}
		if got := a.tabAtX(pos + w - 1); got != i {
			t.Fatalf("tabAtX(%d) = %d, want %d", pos+w-1, got, i)
		}
		if got := a.tabAtX(pos + w); got != -1 {
			t.Fatalf("separator at %d mapped to tab %d", pos+w, got)
		}
		pos += w + 1
	}
	if got := a.tabAtX(pos + 50); got != -1 {
		t.Fatalf("tabAtX past the bar = %d, want -1", got)
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestQuitWithoutPendingChanges(t *testing.T) {
	a := App{}
	_, cmd := a.requestQuit()
	if !isQuit(cmd) {
		t.Fatal("expected immediate quit with an empty queue")
	}
}

func TestQuitGuardWithPendingChanges(t *testing.T) {
	a := App{status: daemon.Status{QueueLength: 2, HasUnsavedChanges: true}}

	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if isQuit(cmd) {
		t.Fatal("first q quit despite unsynced changes")
	}
	a = m.(App)
	if !a.quitArmed {
		t.Fatal("first q did not arm the guard")
	}

	// Any other key disarms.
	m, _ = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	a = m.(App)
	if a.quitArmed {
		t.Fatal("guard still armed after another key")
	}

	m, _ = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	a = m.(App)
	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !isQuit(cmd) {
		t.Fatal("second q did not quit")
	}
}

func TestStatusMsgDisarmsGuardOnceSynced(t *testing.T) {
	a := App{quitArmed: true, status: daemon.Status{HasUnsavedChanges: true}}
	m, _ := a.Update(StatusMsg{Status: daemon.Status{}})
	if m.(App).quitArmed {
		t.Fatal("guard armed after queue drained")
	}
}

func TestTabKeys(t *testing.T) {
	a := App{}
	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	if got := m.(App).activeTab; got != 3 {
		t.Fatalf("u -> tab %d, want 3", got)
	}
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyRight})
	if got := m.(App).activeTab; got != 0 {
		t.Fatalf("right from last tab -> %d, want 0", got)
	}
}

func TestSyncDoneKeepsOnePollChain(t *testing.T) {
	a := App{opts: Options{Observer: daemon.NewObserver(nil, nil, zerolog.Nop())}}

	// Each sync result and reload restarts polling.
	for i := 0; i < 3; i++ {
		m, _ := a.Update(SyncDoneMsg{Delivered: 1})
		a = m.(App)
	}
	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	a = m.(App)
	m, _ = a.Update(SyncDoneMsg{})
	a = m.(App)

	// Ticks from every chain ever started arrive; only one may continue.
	live := 0
	for gen := 0; gen <= a.pollGen; gen++ {
		if _, cmd := a.Update(tickMsg{gen: gen}); cmd != nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("%d poll chains continue, want 1", live)
	}
}

func TestSyncWithoutWorkerWakesDaemon(t *testing.T) {
	woke := 0
	a := App{opts: Options{Wake: func() error { woke++; return nil }}}

	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	a = m.(App)
	if cmd == nil {
		t.Fatal("sync key returned no command")
	}
	msg, ok := cmd().(SyncDoneMsg)
	if !ok || !msg.Woke || msg.Err != nil || woke != 1 {
		t.Fatalf("sync result = %+v, woke %d", msg, woke)
	}
	m, _ = a.Update(msg)
	if n := m.(App).notice; n != "asked the daemon to sync" {
		t.Fatalf("notice = %q", n)
	}

	// Without a worker or a daemon the user is told why nothing happens.
	bare := App{}
	_, cmd = bare.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m, _ = bare.Update(cmd())
	if n := m.(App).notice; n != errNoSync.Error() {
		t.Fatalf("notice without backend = %q", n)
	}
}
