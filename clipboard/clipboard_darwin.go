//go:build darwin

package clipboard

import (
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
// const char* pasteboardText() {
//     NSString *s = [[NSPasteboard generalPasteboard] stringForType:NSPasteboardTypeString];
//     return s == nil ? NULL : [s UTF8String];
// }
import "C"

var readLock sync.Mutex

func getClipboardContent(_ *application.App) (string, error) {
	readLock.Lock()
	defer readLock.Unlock()

	cstr := C.pasteboardText()
	if cstr == nil {
		return "", ErrNoText
	}
	return C.GoString(cstr), nil
}
