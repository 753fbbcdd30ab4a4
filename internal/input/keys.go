// Package input maps keyboard and mouse state onto the render controller:
// mouse-look, WASD movement, pause and quality hotkeys.
package input

import "fmt"

// Key is a key the handler reacts to. Window backends translate their own
// key codes into these.
type Key int

const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeySpace
	KeyLeftShift
	KeyEscape
	KeyLeftBracket
	KeyRightBracket
	KeyMinus
	KeyEqual
	KeyComma
	KeyPeriod
	KeySemicolon
	KeyApostrophe
	Key9
	Key0
	KeyC

	// KeyCount is the number of keys above.
	KeyCount
)

var keyNames = [KeyCount]string{
	"W", "A", "S", "D", "Space", "LeftShift", "Escape",
	"[", "]", "-", "=", ",", ".", ";", "'", "9", "0", "C",
}

func (k Key) String() string {
	if k >= 0 && k < KeyCount {
		return keyNames[k]
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// Source is a window's input state. PollEvents refreshes it; the other
// methods read what the last poll collected.
type Source interface {
	PollEvents()
	ShouldClose() bool
	// Down reports whether k is currently held.
	Down(k Key) bool
	// Presses returns how many times k was pressed since the previous call
	// and resets the count.
	Presses(k Key) int
	// CursorDelta returns cursor movement in pixels since the previous call.
	CursorDelta() (dx, dy float64)
	SetCursorCaptured(captured bool)
}
