//go:build linux

package input

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sergeivaskov/punto/internal/layout"
)

// interEventDelay paces synthesized events so slow toolkits don't drop or
// reorder them.
const interEventDelay = 2 * time.Millisecond

// uinput ioctl request numbers from <linux/uinput.h>, _IO/_IOW encoded
// against the 'U' (0x55) base; golang.org/x/sys/unix does not export them.
const (
	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
	uiDevSetup   = 0x405c5503 // _IOW('U', 3, struct uinput_setup)
	uiSetEvbit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeybit  = 0x40045565 // _IOW('U', 101, int)
)

// uinputSetup mirrors struct uinput_setup from <linux/uinput.h>.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

// inputID mirrors struct input_id from <linux/input.h>.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// UinputTypist synthesizes keystrokes through a virtual /dev/uinput keyboard.
// The device is created lazily on first use and destroyed on Close.
type UinputTypist struct {
	mu sync.Mutex
	f  *os.File
}

func newPlatformTypist() Typist {
	return &UinputTypist{}
}

// ensureDevice creates the virtual keyboard if it doesn't exist yet.
func (t *UinputTypist) ensureDevice() error {
	if t.f != nil {
		return nil
	}

	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermissionDenied
		}
		return ErrNotAvailable
	}

	fd := int(f.Fd())
	if err := unix.IoctlSetInt(fd, uiSetEvbit, unix.EV_KEY); err != nil {
		f.Close()
		return fmt.Errorf("uinput: enable key events: %w", err)
	}
	// Register every keycode the mapping tables can press, plus the editing
	// and modifier keys the replacement sequences use.
	for code := uint16(1); code <= 127; code++ {
		if err := unix.IoctlSetInt(fd, uiSetKeybit, int(code)); err != nil {
			f.Close()
			return fmt.Errorf("uinput: register key %d: %w", code, err)
		}
	}

	setup := uinputSetup{
		ID: inputID{Bustype: unix.BUS_USB, Vendor: 0x1, Product: 0x1, Version: 1},
	}
	copy(setup.Name[:], "puntod virtual keyboard")
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		f.Close()
		return fmt.Errorf("uinput: device setup: %w", errno)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevCreate, 0); errno != 0 {
		f.Close()
		return fmt.Errorf("uinput: device create: %w", errno)
	}

	// Give the display server a moment to pick up the new device.
	time.Sleep(200 * time.Millisecond)
	t.f = f
	return nil
}

// Close destroys the virtual keyboard.
func (t *UinputTypist) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	unix.Syscall(unix.SYS_IOCTL, t.f.Fd(), uiDevDestroy, 0)
	err := t.f.Close()
	t.f = nil
	return err
}

func (t *UinputTypist) emit(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &ev); err != nil {
		return err
	}
	_, err := t.f.Write(buf.Bytes())
	return err
}

func (t *UinputTypist) syn() error {
	return t.emit(0 /* EV_SYN */, 0 /* SYN_REPORT */, 0)
}

// tap presses and releases one key, wrapping it in shift when needed.
func (t *UinputTypist) tap(code uint16, shifted bool) error {
	if shifted {
		if err := t.emit(evKey, layout.KeyLeftShift, keyPress); err != nil {
			return err
		}
		if err := t.syn(); err != nil {
			return err
		}
	}
	for _, value := range []int32{keyPress, keyRelease} {
		if err := t.emit(evKey, code, value); err != nil {
			return err
		}
		if err := t.syn(); err != nil {
			return err
		}
	}
	if shifted {
		if err := t.emit(evKey, layout.KeyLeftShift, keyRelease); err != nil {
			return err
		}
		if err := t.syn(); err != nil {
			return err
		}
	}
	time.Sleep(interEventDelay)
	return nil
}

// chord holds a modifier while tapping a key.
func (t *UinputTypist) chord(modifier, code uint16) error {
	if err := t.emit(evKey, modifier, keyPress); err != nil {
		return err
	}
	if err := t.syn(); err != nil {
		return err
	}
	if err := t.tap(code, false); err != nil {
		return err
	}
	if err := t.emit(evKey, modifier, keyRelease); err != nil {
		return err
	}
	if err := t.syn(); err != nil {
		return err
	}
	time.Sleep(interEventDelay)
	return nil
}

// Backspace presses backspace n times.
func (t *UinputTypist) Backspace(ctx context.Context, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureDevice(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.tap(layout.KeyBackspace, false); err != nil {
			return err
		}
	}
	return nil
}

// TypeText types the text assuming the given layout is active.
func (t *UinputTypist) TypeText(ctx context.Context, text string, active layout.Layout) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureDevice(); err != nil {
		return err
	}
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, shifted, ok := layout.KeyForChar(r, active)
		if !ok {
			continue
		}
		if err := t.tap(code, shifted); err != nil {
			return err
		}
	}
	return nil
}

// Copy presses Ctrl+C.
func (t *UinputTypist) Copy(ctx context.Context) error {
	return t.chordLocked(ctx, keyC)
}

// Paste presses Ctrl+V.
func (t *UinputTypist) Paste(ctx context.Context) error {
	return t.chordLocked(ctx, keyV)
}

func (t *UinputTypist) chordLocked(ctx context.Context, code uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.ensureDevice(); err != nil {
		return err
	}
	return t.chord(layout.KeyLeftCtrl, code)
}

const (
	keyC = 46
	keyV = 47
)
