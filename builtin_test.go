package crucible

import (
	"strings"
	"testing"
)

func TestBuiltinPathRoundTrip(t *testing.T) {
	h := newTestHost(t)

	res, err := h.Eval(`
		var path = __crucible_builtin("path");
		var p = "/a/b/c.txt";
		var parsed = path.parse(p);
		path.format(parsed) === p && path.join("a", "b", "c.txt") === path.normalize("a/b/c.txt");
	`, "path_test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "true" {
		t.Fatalf("expected true, got %q (stderr=%s)", res.Value, res.Stderr)
	}
}

func TestBuiltinPathDotDotNormalize(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`__crucible_builtin("path").normalize("/a/b/../c")`, "t.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "/a/c" {
		t.Fatalf("expected /a/c, got %q", res.Value)
	}
}

func TestBuiltinEventsOnceSafety(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var EventEmitter = __crucible_builtin("events").EventEmitter;
		var e = new EventEmitter();
		var calls = 0;
		e.once("go", function() { calls++; e.emit("go"); });
		e.emit("go");
		calls;
	`, "events_test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "1" {
		t.Fatalf("expected once listener to fire exactly once (re-entrant safe), got %q", res.Value)
	}
}

func TestBuiltinEventsOrderAndSnapshot(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var EventEmitter = __crucible_builtin("events").EventEmitter;
		var e = new EventEmitter();
		var order = [];
		e.on("x", function() { order.push(1); });
		e.on("x", function() { order.push(2); e.removeAllListeners("x"); });
		e.on("x", function() { order.push(3); });
		e.emit("x");
		order.join(",");
	`, "events_order.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "1,2,3" {
		t.Fatalf("expected snapshot iteration 1,2,3 despite mid-emit removal, got %q", res.Value)
	}
}

func TestBuiltinBufferRoundTrip(t *testing.T) {
	h := newTestHost(t)
	for _, encoding := range []string{"utf8", "hex", "base64", "base64url", "latin1", "utf16le"} {
		res, err := h.Eval(`
			var s = "hello world";
			var buf = Buffer.from(s, "utf8");
			var encoded = buf.toString(`+"`"+encoding+"`"+`);
			Buffer.from(encoded, `+"`"+encoding+"`"+`).toString("utf8") === s;
		`, "buffer_test.js")
		if err != nil {
			t.Fatalf("eval %s: %v (stderr=%s)", encoding, err, res.Stderr)
		}
		if res.Value != "true" {
			t.Fatalf("round trip failed for encoding %s: %q", encoding, res.Value)
		}
	}
}

func TestBuiltinBufferIntRoundTrip(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var buf = Buffer.alloc(4);
		buf.writeUInt32LE(0xdeadbeef, 0);
		buf.readUInt32LE(0) === 0xdeadbeef;
	`, "buffer_int.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "true" {
		t.Fatalf("expected int round trip to hold, got %q", res.Value)
	}
}

func TestBuiltinCryptoHash(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var crypto = __crucible_builtin("crypto");
		crypto.createHash("sha256").update("abc").digest("hex");
	`, "crypto_test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if res.Value != want {
		t.Fatalf("sha256(abc) mismatch: got %q want %q", res.Value, want)
	}
}

func TestBuiltinCryptoTimingSafeEqual(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var crypto = __crucible_builtin("crypto");
		var a = Buffer.from("secret", "utf8");
		var b = Buffer.from("secret", "utf8");
		var c = Buffer.from("wrongg", "utf8");
		crypto.timingSafeEqual(a, b) === true && crypto.timingSafeEqual(a, c) === false;
	`, "crypto_tse.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "true" {
		t.Fatalf("expected timingSafeEqual semantics to hold, got %q", res.Value)
	}
}

func TestBuiltinCryptoHKDFDeterministic(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var crypto = __crucible_builtin("crypto");
		var ikm = Buffer.from("input key material", "utf8");
		var salt = Buffer.from("salt", "utf8");
		var info = Buffer.from("context", "utf8");
		var a = crypto.hkdfSync("sha256", ikm, salt, info, 32).toString("hex");
		var b = crypto.hkdfSync("sha256", ikm, salt, info, 32).toString("hex");
		a === b && a.length === 64;
	`, "crypto_hkdf.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "true" {
		t.Fatalf("expected hkdfSync to be deterministic, got %q", res.Value)
	}
}

func TestBuiltinCryptoCipherRoundTrip(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`
		var crypto = __crucible_builtin("crypto");
		var key = Buffer.alloc(32);
		var iv = Buffer.alloc(16);
		for (var i = 0; i < 32; i++) key.writeUInt8(i, i);
		for (var j = 0; j < 16; j++) iv.writeUInt8(j, j);
		var cipher = crypto.createCipheriv("aes-256-cbc", key, iv);
		cipher.update("hello crucible", "utf8");
		var ciphertext = cipher.final();
		var decipher = crypto.createDecipheriv("aes-256-cbc", key, iv);
		decipher.update(ciphertext);
		decipher.final().toString("utf8");
	`, "crypto_cipher.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "hello crucible" {
		t.Fatalf("expected AES-CBC round trip, got %q", res.Value)
	}
}

func TestBuiltinFSNotInitialized(t *testing.T) {
	h := NewHost(nil, defaultSandboxConfig())
	if err := h.Init(); err != nil {
		t.Fatalf("init host: %v", err)
	}
	t.Cleanup(h.Destroy)

	_, err := h.Eval(`__crucible_builtin("fs").readFileSync("/a.txt")`, "fs_test.js")
	if err == nil {
		t.Fatalf("expected FilesystemNotInitialized error")
	}
	if !strings.Contains(err.Error(), "FilesystemNotInitialized") {
		t.Fatalf("expected FilesystemNotInitialized in error, got %v", err)
	}
}

func TestBuiltinFSReadWrite(t *testing.T) {
	h := newTestHost(t)
	vfs := NewVFS()
	h.builtins.AttachVFS(vfs)

	res, err := h.Eval(`
		var fs = __crucible_builtin("fs");
		fs.writeFileSync("/greeting.txt", "hi there");
		fs.readFileSync("/greeting.txt", "utf8");
	`, "fs_rw.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "hi there" {
		t.Fatalf("expected round trip through VFS, got %q", res.Value)
	}
}

func TestBuiltinUtilFormat(t *testing.T) {
	h := newTestHost(t)
	res, err := h.Eval(`__crucible_builtin("util").format("%s is %d", "x", 42)`, "util_test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "x is 42" {
		t.Fatalf("format mismatch: %q", res.Value)
	}
}
