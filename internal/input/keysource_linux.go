//go:build linux

package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// inputEvent mirrors struct input_event from <linux/input.h> on 64-bit.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const (
	evKey = 0x01

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// EvdevKeySource reads key events from /dev/input on Linux.
type EvdevKeySource struct {
	mu      sync.Mutex
	ch      chan KeyEvent
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	mods modifierState
}

// modifierState tracks held modifiers across all observed devices.
type modifierState struct {
	mu                     sync.Mutex
	shift, ctrl, alt, meta int
}

func (m *modifierState) update(code uint16, down bool) {
	delta := -1
	if down {
		delta = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch code {
	case layout.KeyLeftShift, layout.KeyRightShift:
		m.shift = clampCount(m.shift + delta)
	case layout.KeyLeftCtrl, keyRightCtrl:
		m.ctrl = clampCount(m.ctrl + delta)
	case layout.KeyLeftAlt, keyRightAlt:
		m.alt = clampCount(m.alt + delta)
	case layout.KeyLeftMeta, layout.KeyRightMeta:
		m.meta = clampCount(m.meta + delta)
	}
}

func isModifier(code uint16) bool {
	switch code {
	case layout.KeyLeftShift, layout.KeyRightShift,
		layout.KeyLeftCtrl, keyRightCtrl,
		layout.KeyLeftAlt, keyRightAlt,
		layout.KeyLeftMeta, layout.KeyRightMeta:
		return true
	}
	return false
}

func (m *modifierState) snapshot() (shift, ctrl, alt, meta bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shift > 0, m.ctrl > 0, m.alt > 0, m.meta > 0
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

const (
	keyRightCtrl = 97
	keyRightAlt  = 100
)

func newPlatformKeySource() KeySource {
	return &EvdevKeySource{ch: make(chan KeyEvent, 256)}
}

// Available checks whether at least one keyboard device is readable.
func (s *EvdevKeySource) Available() (bool, string) {
	devices, err := findKeyboardDevices()
	if err != nil {
		return false, fmt.Sprintf("cannot enumerate input devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard devices found"
	}
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found keyboard device: %s", dev)
		}
	}
	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

// findKeyboardDevices scans /proc/bus/input/devices for keyboards.
func findKeyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []string
	var currentHandler string
	isKeyboard := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "H: Handlers=") {
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					currentHandler = "/dev/input/" + part
				}
			}
		}

		if strings.HasPrefix(line, "B: KEY=") && len(line) > 10 {
			isKeyboard = true
		}

		if line == "" {
			if isKeyboard && currentHandler != "" {
				devices = append(devices, currentHandler)
			}
			currentHandler = ""
			isKeyboard = false
		}
	}

	matches, _ := filepath.Glob("/dev/input/by-id/*-kbd")
	devices = append(devices, matches...)

	return dedupe(devices), nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Start opens every readable keyboard device and begins delivering events.
func (s *EvdevKeySource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	devices, err := findKeyboardDevices()
	if err != nil || len(devices) == 0 {
		return ErrNotAvailable
	}

	var files []*os.File
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err != nil {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return ErrPermissionDenied
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, f := range files {
		s.wg.Add(1)
		go s.readDevice(ctx, f)
	}
	return nil
}

// Stop closes the devices and the event channel.
func (s *EvdevKeySource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	close(s.ch)
	return nil
}

// Events returns the event channel.
func (s *EvdevKeySource) Events() <-chan KeyEvent {
	return s.ch
}

// readDevice decodes input_event records from one device until ctx is done.
// Reads block, so the file is closed from a watchdog goroutine to unblock.
func (s *EvdevKeySource) readDevice(ctx context.Context, f *os.File) {
	defer s.wg.Done()

	go func() {
		<-ctx.Done()
		f.Close()
	}()

	buf := make([]byte, 24*64)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		r := bytes.NewReader(buf[:n])
		for r.Len() >= 24 {
			var ev inputEvent
			if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
				break
			}
			s.handleRaw(ev)
		}
	}
}

func (s *EvdevKeySource) handleRaw(ev inputEvent) {
	if ev.Type != evKey {
		return
	}
	modifier := isModifier(ev.Code)
	if modifier {
		// Repeats must not re-count a held modifier, and carry no new
		// information for hotkey detection either.
		if ev.Value == keyRepeat {
			return
		}
		s.mods.update(ev.Code, ev.Value == keyPress)
	}

	shift, ctrl, alt, meta := s.mods.snapshot()
	out := KeyEvent{
		Code:      ev.Code,
		Down:      ev.Value != keyRelease,
		Modifier:  modifier,
		Shifted:   shift,
		Ctrl:      ctrl,
		Alt:       alt,
		Meta:      meta,
		Timestamp: time.Unix(ev.Sec, ev.Usec*1000),
	}
	s.deliver(out)
}

// sendStallTimeout bounds how long a device reader waits on a stalled
// consumer before giving an event up.
const sendStallTimeout = 100 * time.Millisecond

// deliver hands one event to the consumer. A full channel is waited out
// briefly rather than dropped: losing a release would leave modifier state
// stuck down.
func (s *EvdevKeySource) deliver(out KeyEvent) {
	select {
	case s.ch <- out:
		return
	default:
	}
	t := time.NewTimer(sendStallTimeout)
	defer t.Stop()
	select {
	case s.ch <- out:
	case <-t.C:
		logging.Warn("key event dropped, consumer stalled", "code", out.Code, "down", out.Down)
	}
}
