package browser

import "testing"

func TestTabRegistry(t *testing.T) {
	m := NewManager(Config{})

	first := &Tab{ID: "tab-1", URL: "https://jobs.example.com/1"}
	second := &Tab{ID: "tab-2", URL: "https://jobs.example.com/2"}
	m.addTab(first)
	m.addTab(second)

	// The most recently opened tab is active.
	if id, ok := m.ActiveTab(); !ok || id != "tab-2" {
		t.Fatalf("ActiveTab = %q, %v", id, ok)
	}
	if url, ok := m.ActiveURL(); !ok || url != "https://jobs.example.com/2" {
		t.Fatalf("ActiveURL = %q, %v", url, ok)
	}

	if err := m.Activate("tab-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if id, _ := m.ActiveTab(); id != "tab-1" {
		t.Fatalf("ActiveTab after Activate = %q", id)
	}
	if err := m.Activate("tab-9"); err == nil {
		t.Fatal("Activate unknown tab: expected error")
	}

	if len(m.Tabs()) != 2 {
		t.Fatalf("Tabs = %d, want 2", len(m.Tabs()))
	}
}

func TestCloseActiveTab(t *testing.T) {
	m := NewManager(Config{})
	m.addTab(&Tab{ID: "tab-1", URL: "https://jobs.example.com/1"})

	if err := m.CloseTab("tab-1"); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	if _, ok := m.ActiveTab(); ok {
		t.Fatal("closed tab still active")
	}
	if err := m.CloseTab("tab-1"); err == nil {
		t.Fatal("closing twice: expected error")
	}
}
