package hotkey

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		shortcut string
		want     []string
		wantErr  bool
	}{
		{"default", "Super+Shift+T", []string{"t", "cmd", "shift"}, false},
		{"ctrl_space", "ctrl + space", []string{"space", "ctrl"}, false},
		{"function_key", "Alt+F9", []string{"f9", "alt"}, false},
		{"aliases_collapse", "Cmd+Super+R", []string{"r", "cmd"}, false},
		{"bare_key", "F12", []string{"f12"}, false},
		{"backspace", "Ctrl+Backspace", []string{"delete", "ctrl"}, false},
		{"no_key", "Ctrl+Shift", nil, true},
		{"two_keys", "Ctrl+A+B", nil, true},
		{"empty_part", "Ctrl++A", nil, true},
		{"unknown", "Ctrl+PageTurner", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.shortcut)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidShortcut) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidShortcut", tt.shortcut, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.shortcut, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.shortcut, got, tt.want)
			}
		})
	}
}

func TestFireDebounce(t *testing.T) {
	var calls atomic.Int32
	m, err := NewHotkeyManager("Super+Shift+T", func() { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	m.fire(start)
	m.fire(start.Add(50 * time.Millisecond))
	m.fire(start.Add(debounce + time.Millisecond))

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestNewHotkeyManagerInvalid(t *testing.T) {
	if _, err := NewHotkeyManager("Shift", func() {}); !errors.Is(err, ErrInvalidShortcut) {
		t.Errorf("error = %v, want ErrInvalidShortcut", err)
	}
}
