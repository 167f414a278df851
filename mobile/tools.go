//go:build tools

package mobile

// Pins the gomobile bind runtime so `gomobile bind ./mobile` resolves it from go.mod.
import _ "golang.org/x/mobile/bind"
