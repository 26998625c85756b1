// Package hotkey listens for the global push-to-talk shortcut.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// ErrInvalidShortcut is returned for shortcuts that cannot be parsed.
var ErrInvalidShortcut = errors.New("invalid shortcut")

// Key repeat from a held shortcut arrives as repeated KeyDown events.
const debounce = 400 * time.Millisecond

var modifiers = map[string]string{
	"super":   "cmd",
	"cmd":     "cmd",
	"command": "cmd",
	"meta":    "cmd",
	"win":     "cmd",
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
}

var named = map[string]string{
	"space":     "space",
	"enter":     "enter",
	"return":    "enter",
	"tab":       "tab",
	"esc":       "esc",
	"escape":    "esc",
	"backspace": "delete", // gohook's name for backspace
	"delete":    "delete",
}

// Parse converts a shortcut such as "Super+Shift+T" into gohook key names,
// main key first and modifiers after it.
func Parse(shortcut string) ([]string, error) {
	parts := strings.Split(shortcut, "+")
	var (
		key  string
		mods []string
		seen = map[string]bool{}
	)
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidShortcut, shortcut)
		}
		if m, ok := modifiers[p]; ok {
			if !seen[m] {
				seen[m] = true
				mods = append(mods, m)
			}
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("%w: %q has more than one key", ErrInvalidShortcut, shortcut)
		}
		switch {
		case named[p] != "":
			key = named[p]
		case len(p) == 1:
			key = p
		case isFunctionKey(p):
			key = p
		default:
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidShortcut, p)
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %q has no key", ErrInvalidShortcut, shortcut)
	}
	return append([]string{key}, mods...), nil
}

func isFunctionKey(p string) bool {
	if len(p) < 2 || p[0] != 'f' {
		return false
	}
	n, err := strconv.Atoi(p[1:])
	return err == nil && n >= 1 && n <= 24
}

// HotkeyManager registers a single global shortcut with gohook.
type HotkeyManager struct {
	keys      []string
	onTrigger func()

	mu      sync.Mutex
	running bool
	last    time.Time
	done    chan struct{}
}

// NewHotkeyManager parses shortcut and returns a stopped manager that
// calls onTrigger each time the shortcut is pressed.
func NewHotkeyManager(shortcut string, onTrigger func()) (*HotkeyManager, error) {
	keys, err := Parse(shortcut)
	if err != nil {
		return nil, err
	}
	return &HotkeyManager{keys: keys, onTrigger: onTrigger}, nil
}

// Keys returns the parsed gohook key names.
func (m *HotkeyManager) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Start begins listening in the background.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	hook.Register(hook.KeyDown, m.keys, func(hook.Event) { m.fire(time.Now()) })
	events := hook.Start()
	m.done = make(chan struct{})
	m.running = true

	go func(done chan struct{}) {
		<-hook.Process(events)
		close(done)
	}(m.done)

	slog.Info("hotkey registered", "keys", strings.Join(m.keys, "+"))
	return nil
}

// Stop ends the listener and waits for it to exit.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	m.mu.Unlock()

	hook.End()
	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("hotkey listener did not stop")
	}
}

func (m *HotkeyManager) fire(now time.Time) {
	m.mu.Lock()
	if now.Sub(m.last) < debounce {
		m.mu.Unlock()
		return
	}
	m.last = now
	m.mu.Unlock()

	// Never block the hook loop.
	go m.onTrigger()
}
