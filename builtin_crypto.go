package crucible

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/buke/quickjs-go"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest %q", algorithm)
	}
}

// aesKeySizeFor maps a Node cipher algorithm name to the AES key size in
// bytes; only CBC mode is offered.
func aesKeySizeFor(algorithm string) (int, error) {
	switch algorithm {
	case "aes-128-cbc":
		return 16, nil
	case "aes-192-cbc":
		return 24, nil
	case "aes-256-cbc":
		return 32, nil
	default:
		return 0, fmt.Errorf("unsupported cipher algorithm %q", algorithm)
	}
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, fmt.Errorf("cipher: invalid padded length")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, fmt.Errorf("cipher: invalid padding")
	}
	return data[:n-padLen], nil
}

// runAESCBC implements both directions of AES-CBC-with-PKCS7 behind a single
// bridge function; mode is "encrypt" or "decrypt".
func runAESCBC(algorithm, keyHex, ivHex, dataHex, mode string) (string, error) {
	keySize, err := aesKeySizeFor(algorithm)
	if err != nil {
		return "", err
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != keySize {
		return "", fmt.Errorf("cipher: invalid key for %s", algorithm)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("cipher: invalid iv")
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("cipher: invalid data hex")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	switch mode {
	case "encrypt":
		padded := pkcs7Pad(data, aes.BlockSize)
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
		return hex.EncodeToString(out), nil
	case "decrypt":
		if len(data)%aes.BlockSize != 0 {
			return "", fmt.Errorf("cipher: ciphertext is not a multiple of the block size")
		}
		out := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
		unpadded, err := pkcs7Unpad(out, aes.BlockSize)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(unpadded), nil
	default:
		return "", fmt.Errorf("cipher: unknown mode %q", mode)
	}
}

// injectCryptoBridge installs the native primitives the `crypto` built-in
// delegates to: digests, HMAC, PBKDF2 and HKDF (golang.org/x/crypto/pbkdf2
// and /hkdf, since the standard library has neither), AES-CBC cipher
// constructors, CSPRNG bytes, and a constant-time comparison.
func injectCryptoBridge(h *Host) {
	ctx := h.ctx
	globals := ctx.Globals()

	globals.Set("__crucible_hash", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 2 {
			return c.ThrowError(fmt.Errorf("🔴 hash: algorithm and data hex required"))
		}
		hasher, err := newHasher(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 %w", err))
		}
		data, err := hex.DecodeString(args[1].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hash: invalid hex input"))
		}
		hasher.Write(data)
		return c.String(hex.EncodeToString(hasher.Sum(nil)))
	}))

	globals.Set("__crucible_hmac", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 3 {
			return c.ThrowError(fmt.Errorf("🔴 hmac: algorithm, key, data hex required"))
		}
		algorithm := args[0].String()
		key, err := hex.DecodeString(args[1].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hmac: invalid key hex"))
		}
		data, err := hex.DecodeString(args[2].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hmac: invalid data hex"))
		}
		mac := hmac.New(func() hash.Hash {
			hasher, _ := newHasher(algorithm)
			return hasher
		}, key)
		mac.Write(data)
		return c.String(hex.EncodeToString(mac.Sum(nil)))
	}))

	globals.Set("__crucible_pbkdf2", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 5 {
			return c.ThrowError(fmt.Errorf("🔴 pbkdf2: password, salt, iterations, keylen, digest required"))
		}
		password, err := hex.DecodeString(args[0].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 pbkdf2: invalid password hex"))
		}
		salt, err := hex.DecodeString(args[1].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 pbkdf2: invalid salt hex"))
		}
		iterations := int(args[2].Int32())
		keylen := int(args[3].Int32())
		algorithm := args[4].String()
		derived := pbkdf2.Key(password, salt, iterations, keylen, func() hash.Hash {
			hasher, _ := newHasher(algorithm)
			return hasher
		})
		return c.String(hex.EncodeToString(derived))
	}))

	globals.Set("__crucible_hkdf", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 5 {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: digest, ikm, salt, info, keylen required"))
		}
		digest := args[0].String()
		ikm, err := hex.DecodeString(args[1].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: invalid ikm hex"))
		}
		salt, err := hex.DecodeString(args[2].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: invalid salt hex"))
		}
		info, err := hex.DecodeString(args[3].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: invalid info hex"))
		}
		keylen := int(args[4].Int32())
		if _, err := newHasher(digest); err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: %w", err))
		}
		reader := hkdf.New(func() hash.Hash { h, _ := newHasher(digest); return h }, ikm, salt, info)
		derived := make([]byte, keylen)
		if _, err := io.ReadFull(reader, derived); err != nil {
			return c.ThrowError(fmt.Errorf("🔴 hkdf: %w", err))
		}
		return c.String(hex.EncodeToString(derived))
	}))

	globals.Set("__crucible_cipher", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 5 {
			return c.ThrowError(fmt.Errorf("🔴 cipher: algorithm, key, iv, data, mode required"))
		}
		out, err := runAESCBC(args[0].String(), args[1].String(), args[2].String(), args[3].String(), args[4].String())
		if err != nil {
			return c.ThrowError(fmt.Errorf("🔴 %w", err))
		}
		return c.String(out)
	}))

	globals.Set("__crucible_random_bytes", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 1 {
			return c.ThrowError(fmt.Errorf("🔴 randomBytes: size required"))
		}
		size := int(args[0].Int32())
		buf := make([]byte, size)
		if _, err := rand.Read(buf); err != nil {
			return c.ThrowError(fmt.Errorf("🔴 randomBytes: %w", err))
		}
		return c.String(hex.EncodeToString(buf))
	}))

	globals.Set("__crucible_timing_safe_equal", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) < 2 {
			return c.Bool(false)
		}
		a, errA := hex.DecodeString(args[0].String())
		b, errB := hex.DecodeString(args[1].String())
		if errA != nil || errB != nil || len(a) != len(b) {
			return c.Bool(false)
		}
		return c.Bool(subtle.ConstantTimeCompare(a, b) == 1)
	}))
}

// cryptoBuiltinSource is the JS-facing `crypto` namespace; every
// cryptographic operation crosses into Go via the native bridge above so
// the sandbox never implements its own primitives.
const cryptoBuiltinSource = `
(function() {
	function bytesToHexStr(bytes) {
		var out = "";
		for (var i = 0; i < bytes.length; i++) {
			var h = bytes[i].toString(16);
			out += h.length === 1 ? "0" + h : h;
		}
		return out;
	}

	function inputToHex(data) {
		if (typeof data === "string") return bytesToHexStr(Buffer.from(data, "utf8")._bytes);
		if (data && data._bytes) return bytesToHexStr(data._bytes);
		throw new TypeError("crypto: unsupported input type");
	}

	function Hash(algorithm) {
		this._algorithm = algorithm;
		this._chunks = [];
	}
	Hash.prototype.update = function(data) { this._chunks.push(inputToHex(data)); return this; };
	Hash.prototype.digest = function(encoding) {
		var hex = __crucible_hash(this._algorithm, this._chunks.join(""));
		var buf = Buffer.from(hex, "hex");
		return encoding ? buf.toString(encoding) : buf;
	};

	function Hmac(algorithm, key) {
		this._algorithm = algorithm;
		this._key = inputToHex(key);
		this._chunks = [];
	}
	Hmac.prototype.update = function(data) { this._chunks.push(inputToHex(data)); return this; };
	Hmac.prototype.digest = function(encoding) {
		var hex = __crucible_hmac(this._algorithm, this._key, this._chunks.join(""));
		var buf = Buffer.from(hex, "hex");
		return encoding ? buf.toString(encoding) : buf;
	};

	function createHash(algorithm) { return new Hash(algorithm); }
	function createHmac(algorithm, key) { return new Hmac(algorithm, key); }

	function randomBytes(size, callback) {
		var hex = __crucible_random_bytes(size);
		var buf = Buffer.from(hex, "hex");
		if (callback) { callback(null, buf); return undefined; }
		return buf;
	}

	function timingSafeEqual(a, b) {
		return __crucible_timing_safe_equal(inputToHex(a), inputToHex(b));
	}

	function pbkdf2(password, salt, iterations, keylen, digest, callback) {
		var hex = __crucible_pbkdf2(inputToHex(password), inputToHex(salt), iterations, keylen, digest);
		var buf = Buffer.from(hex, "hex");
		if (callback) { callback(null, buf); return undefined; }
		return buf;
	}

	function pbkdf2Sync(password, salt, iterations, keylen, digest) {
		var hex = __crucible_pbkdf2(inputToHex(password), inputToHex(salt), iterations, keylen, digest);
		return Buffer.from(hex, "hex");
	}

	function hkdf(digest, ikm, salt, info, keylen, callback) {
		var hex = __crucible_hkdf(digest, inputToHex(ikm), inputToHex(salt), inputToHex(info), keylen);
		var buf = Buffer.from(hex, "hex");
		if (callback) { callback(null, buf); return undefined; }
		return buf;
	}

	function hkdfSync(digest, ikm, salt, info, keylen) {
		var hex = __crucible_hkdf(digest, inputToHex(ikm), inputToHex(salt), inputToHex(info), keylen);
		return Buffer.from(hex, "hex");
	}

	function Cipheriv(algorithm, key, iv) {
		this._algorithm = algorithm;
		this._key = inputToHex(key);
		this._iv = inputToHex(iv);
		this._chunks = [];
	}
	Cipheriv.prototype.update = function(data, inputEncoding, outputEncoding) {
		this._chunks.push(inputToHex(data));
		return outputEncoding ? "" : Buffer.alloc(0);
	};
	Cipheriv.prototype.final = function(outputEncoding) {
		var hex = __crucible_cipher(this._algorithm, this._key, this._iv, this._chunks.join(""), "encrypt");
		var buf = Buffer.from(hex, "hex");
		return outputEncoding ? buf.toString(outputEncoding) : buf;
	};

	function Decipheriv(algorithm, key, iv) {
		this._algorithm = algorithm;
		this._key = inputToHex(key);
		this._iv = inputToHex(iv);
		this._chunks = [];
	}
	Decipheriv.prototype.update = function(data, inputEncoding, outputEncoding) {
		this._chunks.push(inputToHex(data));
		return outputEncoding ? "" : Buffer.alloc(0);
	};
	Decipheriv.prototype.final = function(outputEncoding) {
		var hex = __crucible_cipher(this._algorithm, this._key, this._iv, this._chunks.join(""), "decrypt");
		var buf = Buffer.from(hex, "hex");
		return outputEncoding ? buf.toString(outputEncoding) : buf;
	};

	function createCipheriv(algorithm, key, iv) { return new Cipheriv(algorithm, key, iv); }
	function createDecipheriv(algorithm, key, iv) { return new Decipheriv(algorithm, key, iv); }

	return {
		createHash: createHash,
		createHmac: createHmac,
		randomBytes: randomBytes,
		timingSafeEqual: timingSafeEqual,
		pbkdf2: pbkdf2,
		pbkdf2Sync: pbkdf2Sync,
		hkdf: hkdf,
		hkdfSync: hkdfSync,
		createCipheriv: createCipheriv,
		createDecipheriv: createDecipheriv
	};
})()
`
