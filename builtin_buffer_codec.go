package crucible

import (
	"encoding/hex"
	"fmt"

	"github.com/buke/quickjs-go"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// injectBufferCodecs installs the native-backed latin1/utf16le conversion
// helpers the `buffer` built-in's JS shim calls into. The remaining
// encodings (utf8, ascii, hex, base64, base64url) are cheap to express in
// pure JS and are implemented there; these two benefit from a real text
// transcoder.
func injectBufferCodecs(h *Host) {
	ctx := h.ctx
	globals := ctx.Globals()

	globals.Set("__crucible_latin1_to_hex", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.String("")
		}
		encoded, err := charmap.ISO8859_1.NewEncoder().String(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 latin1 encode: %w", err))
		}
		return c.String(hex.EncodeToString([]byte(encoded)))
	}))

	globals.Set("__crucible_hex_to_latin1", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.String("")
		}
		raw, err := hex.DecodeString(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 latin1 decode: %w", err))
		}
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 latin1 decode: %w", err))
		}
		return c.String(string(decoded))
	}))

	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

	globals.Set("__crucible_utf16le_to_hex", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.String("")
		}
		encoded, err := utf16le.NewEncoder().String(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 utf16le encode: %w", err))
		}
		return c.String(hex.EncodeToString([]byte(encoded)))
	}))

	globals.Set("__crucible_hex_to_utf16le", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.String("")
		}
		raw, err := hex.DecodeString(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 utf16le decode: %w", err))
		}
		decoded, err := utf16le.NewDecoder().Bytes(raw)
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 utf16le decode: %w", err))
		}
		return c.String(string(decoded))
	}))
}
