// Package inject types recognized text into the focused application by
// pasting it through the system clipboard.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	"golang.org/x/text/unicode/norm"
)

// ErrInjection is returned when text could not be delivered.
var ErrInjection = errors.New("injection failed")

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// KeySender emits the platform paste chord.
type KeySender interface {
	Paste() error
}

// Paster writes text to the clipboard, sends the paste chord and restores
// the previous clipboard contents.
type Paster struct {
	clip Clipboard
	keys KeySender

	settle  time.Duration // clipboard → keystroke
	restore time.Duration // keystroke → restore

	mu sync.Mutex
}

// Option configures a Paster.
type Option func(*Paster)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option { return func(p *Paster) { p.clip = c } }

// WithKeySender replaces the keystroke backend.
func WithKeySender(k KeySender) Option { return func(p *Paster) { p.keys = k } }

// WithDelays sets the pauses around the paste chord.
func WithDelays(settle, restore time.Duration) Option {
	return func(p *Paster) { p.settle, p.restore = settle, restore }
}

// NewPaster returns a Paster over the system clipboard and keyboard.
func NewPaster(opts ...Option) *Paster {
	p := &Paster{
		clip:    systemClipboard{},
		keys:    &keyboard{},
		settle:  80 * time.Millisecond,
		restore: 120 * time.Millisecond,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TypeText pastes text into the focused window. Empty text is a no-op.
func (p *Paster) TypeText(text string) error {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	orig, readErr := p.clip.ReadAll()
	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write clipboard: %v", ErrInjection, err)
	}
	time.Sleep(p.settle)

	if err := p.keys.Paste(); err != nil {
		return fmt.Errorf("%w: send paste: %v", ErrInjection, err)
	}
	time.Sleep(p.restore)

	if readErr == nil {
		if err := p.clip.WriteAll(orig); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	return nil
}

// Normalize composes Unicode (NFC), trims surrounding space and collapses
// internal runs of whitespace to single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// keyboard sends Cmd+V on macOS and Ctrl+V elsewhere.
type keyboard struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func (k *keyboard) init() {
	k.kb, k.err = keybd_event.NewKeyBonding()
	if k.err != nil {
		return
	}
	// uinput needs time to register the virtual device.
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
}

func (k *keyboard) Paste() error {
	k.once.Do(k.init)
	if k.err != nil {
		return k.err
	}

	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	return k.kb.Launching()
}
