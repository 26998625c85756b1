package app

// Platform exposes host services the overlay needs.
type Platform interface {
	// CursorPosition returns the pointer location in screen coordinates.
	CursorPosition() (x, y int, ok bool)
}

// fallbackPlatform is used when the host offers no pointer query.
type fallbackPlatform struct{}

func (fallbackPlatform) CursorPosition() (int, int, bool) { return 100, 100, true }

// Overlay geometry and its offset from the cursor.
const (
	overlayWidth   = 360
	overlayHeight  = 96
	overlayOffsetX = 16
	overlayOffsetY = 24
)

// overlayPosition returns where the overlay's top-left corner goes. "center"
// and an unknown cursor both return ok=false, meaning center on screen.
func overlayPosition(p Platform, position string) (x, y int, ok bool) {
	if position != "cursor" || p == nil {
		return 0, 0, false
	}
	cx, cy, ok := p.CursorPosition()
	if !ok {
		return 0, 0, false
	}
	return max(cx+overlayOffsetX, 0), max(cy+overlayOffsetY, 0), true
}
