package crucible

// bufferBuiltinSource implements Node's Buffer over a plain byte array.
// utf8/ascii/hex/base64/base64url are cheap to do in
// pure JS; latin1 and utf16le delegate to the host's text-encoding
// bridge (builtin_buffer_codec.go) rather than reimplementing a codec
// table twice.
const bufferBuiltinSource = `
(function() {
	var B64_CHARS = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/";

	function bytesToHex(bytes) {
		var out = "";
		for (var i = 0; i < bytes.length; i++) {
			var h = bytes[i].toString(16);
			out += h.length === 1 ? "0" + h : h;
		}
		return out;
	}

	function hexToBytes(hex) {
		var out = [];
		for (var i = 0; i + 1 < hex.length; i += 2) {
			out.push(parseInt(hex.substr(i, 2), 16));
		}
		return out;
	}

	function bytesToUtf8(bytes) {
		var out = "";
		var i = 0;
		while (i < bytes.length) {
			var b0 = bytes[i];
			if (b0 < 0x80) { out += String.fromCharCode(b0); i += 1; }
			else if ((b0 & 0xE0) === 0xC0) {
				out += String.fromCharCode(((b0 & 0x1F) << 6) | (bytes[i+1] & 0x3F)); i += 2;
			} else if ((b0 & 0xF0) === 0xE0) {
				out += String.fromCharCode(((b0 & 0x0F) << 12) | ((bytes[i+1] & 0x3F) << 6) | (bytes[i+2] & 0x3F)); i += 3;
			} else if ((b0 & 0xF8) === 0xF0) {
				var cp = ((b0 & 0x07) << 18) | ((bytes[i+1] & 0x3F) << 12) | ((bytes[i+2] & 0x3F) << 6) | (bytes[i+3] & 0x3F);
				cp -= 0x10000;
				out += String.fromCharCode(0xD800 + (cp >> 10), 0xDC00 + (cp & 0x3FF));
				i += 4;
			} else { i += 1; }
		}
		return out;
	}

	function utf8ToBytes(str) {
		var out = [];
		for (var i = 0; i < str.length; i++) {
			var code = str.charCodeAt(i);
			if (code >= 0xD800 && code <= 0xDBFF && i + 1 < str.length) {
				var next = str.charCodeAt(i + 1);
				code = ((code - 0xD800) << 10) + (next - 0xDC00) + 0x10000;
				i++;
			}
			if (code < 0x80) out.push(code);
			else if (code < 0x800) out.push(0xC0 | (code >> 6), 0x80 | (code & 0x3F));
			else if (code < 0x10000) out.push(0xE0 | (code >> 12), 0x80 | ((code >> 6) & 0x3F), 0x80 | (code & 0x3F));
			else out.push(0xF0 | (code >> 18), 0x80 | ((code >> 12) & 0x3F), 0x80 | ((code >> 6) & 0x3F), 0x80 | (code & 0x3F));
		}
		return out;
	}

	function bytesToBase64(bytes, urlSafe) {
		var out = "";
		for (var i = 0; i < bytes.length; i += 3) {
			var b0 = bytes[i], b1 = bytes[i+1], b2 = bytes[i+2];
			var has1 = i + 1 < bytes.length, has2 = i + 2 < bytes.length;
			out += B64_CHARS[b0 >> 2];
			out += B64_CHARS[((b0 & 3) << 4) | (has1 ? (b1 >> 4) : 0)];
			out += has1 ? B64_CHARS[((b1 & 15) << 2) | (has2 ? (b2 >> 6) : 0)] : "=";
			out += has2 ? B64_CHARS[b2 & 63] : "=";
		}
		if (urlSafe) out = out.replace(/\+/g, "-").replace(/\//g, "_").replace(/=+$/, "");
		return out;
	}

	function base64ToBytes(str) {
		str = str.replace(/-/g, "+").replace(/_/g, "/");
		var clean = str.replace(/[^A-Za-z0-9+/]/g, "");
		var out = [];
		for (var i = 0; i + 1 < clean.length; i += 4) {
			var e0 = B64_CHARS.indexOf(clean[i]);
			var e1 = B64_CHARS.indexOf(clean[i+1]);
			var e2 = clean[i+2] !== undefined ? B64_CHARS.indexOf(clean[i+2]) : -1;
			var e3 = clean[i+3] !== undefined ? B64_CHARS.indexOf(clean[i+3]) : -1;
			out.push((e0 << 2) | (e1 >> 4));
			if (e2 >= 0) out.push(((e1 & 15) << 4) | (e2 >> 2));
			if (e3 >= 0) out.push(((e2 & 3) << 6) | e3);
		}
		return out;
	}

	function encodeToBytes(str, encoding) {
		encoding = (encoding || "utf8").toLowerCase();
		switch (encoding) {
			case "utf8": case "utf-8": return utf8ToBytes(str);
			case "ascii": case "binary": return utf8ToBytes(str).map(function(b) { return b & 0x7F; });
			case "hex": return hexToBytes(str);
			case "base64": case "base64url": return base64ToBytes(str);
			case "latin1":
				return hexToBytes(__crucible_latin1_to_hex(str));
			case "utf16le": case "ucs2": case "ucs-2":
				return hexToBytes(__crucible_utf16le_to_hex(str));
			default:
				throw new Error("Unknown encoding: " + encoding);
		}
	}

	function decodeFromBytes(bytes, encoding) {
		encoding = (encoding || "utf8").toLowerCase();
		switch (encoding) {
			case "utf8": case "utf-8": return bytesToUtf8(bytes);
			case "ascii": case "binary": return bytesToUtf8(bytes.map(function(b) { return b & 0x7F; }));
			case "hex": return bytesToHex(bytes);
			case "base64": return bytesToBase64(bytes, false);
			case "base64url": return bytesToBase64(bytes, true);
			case "latin1":
				return __crucible_hex_to_latin1(bytesToHex(bytes));
			case "utf16le": case "ucs2": case "ucs-2":
				return __crucible_hex_to_utf16le(bytesToHex(bytes));
			default:
				throw new Error("Unknown encoding: " + encoding);
		}
	}

	function Buffer(bytes) {
		this._bytes = bytes || [];
		this.length = this._bytes.length;
	}

	Buffer.isEncoding = function(enc) {
		return ["utf8","utf-8","ascii","binary","hex","base64","base64url","latin1","utf16le","ucs2","ucs-2"].indexOf((enc||"").toLowerCase()) !== -1;
	};
	Buffer.isBuffer = function(b) { return b instanceof Buffer; };
	Buffer.byteLength = function(str, encoding) { return encodeToBytes(str, encoding).length; };

	Buffer.alloc = function(size, fill) {
		var bytes = new Array(size);
		var fillByte = typeof fill === "number" ? fill : 0;
		for (var i = 0; i < size; i++) bytes[i] = fillByte;
		return new Buffer(bytes);
	};
	Buffer.allocUnsafe = function(size) { return Buffer.alloc(size, 0); };

	Buffer.from = function(input, encoding) {
		if (input instanceof Buffer) return new Buffer(input._bytes.slice());
		if (Array.isArray(input)) return new Buffer(input.slice());
		if (typeof input === "string") return new Buffer(encodeToBytes(input, encoding));
		throw new TypeError("Buffer.from: unsupported input");
	};

	Buffer.concat = function(list, totalLength) {
		var bytes = [];
		for (var i = 0; i < list.length; i++) bytes = bytes.concat(list[i]._bytes);
		if (typeof totalLength === "number") bytes = bytes.slice(0, totalLength);
		return new Buffer(bytes);
	};

	Buffer.compare = function(a, b) {
		var la = a._bytes.length, lb = b._bytes.length;
		var len = Math.min(la, lb);
		for (var i = 0; i < len; i++) {
			if (a._bytes[i] !== b._bytes[i]) return a._bytes[i] < b._bytes[i] ? -1 : 1;
		}
		if (la === lb) return 0;
		return la < lb ? -1 : 1;
	};

	Buffer.prototype.toString = function(encoding, start, end) {
		var slice = this._bytes.slice(start || 0, end === undefined ? this._bytes.length : end);
		return decodeFromBytes(slice, encoding);
	};
	Buffer.prototype.toJSON = function() { return { type: "Buffer", data: this._bytes.slice() }; };
	Buffer.prototype.equals = function(other) { return Buffer.compare(this, other) === 0; };
	Buffer.prototype.compare = function(other) { return Buffer.compare(this, other); };

	Buffer.prototype.write = function(str, offset, encoding) {
		offset = offset || 0;
		var bytes = encodeToBytes(str, encoding);
		for (var i = 0; i < bytes.length && offset + i < this._bytes.length; i++) {
			this._bytes[offset + i] = bytes[i];
		}
		return Math.min(bytes.length, this._bytes.length - offset);
	};

	Buffer.prototype.slice = function(start, end) { return new Buffer(this._bytes.slice(start, end)); };
	Buffer.prototype.subarray = Buffer.prototype.slice;

	Buffer.prototype.fill = function(value, start, end) {
		start = start || 0;
		end = end === undefined ? this._bytes.length : end;
		var fillBytes = typeof value === "string" ? encodeToBytes(value, "utf8") : [value];
		for (var i = start, j = 0; i < end; i++, j = (j + 1) % fillBytes.length) {
			this._bytes[i] = fillBytes[j];
		}
		return this;
	};

	Buffer.prototype.copy = function(target, targetStart, sourceStart, sourceEnd) {
		targetStart = targetStart || 0;
		sourceStart = sourceStart || 0;
		sourceEnd = sourceEnd === undefined ? this._bytes.length : sourceEnd;
		var count = 0;
		for (var i = sourceStart; i < sourceEnd && targetStart + count < target._bytes.length; i++, count++) {
			target._bytes[targetStart + count] = this._bytes[i];
		}
		return count;
	};

	Buffer.prototype.indexOf = function(value) {
		var needle = typeof value === "string" ? encodeToBytes(value, "utf8") : (value instanceof Buffer ? value._bytes : [value]);
		outer:
		for (var i = 0; i <= this._bytes.length - needle.length; i++) {
			for (var j = 0; j < needle.length; j++) {
				if (this._bytes[i + j] !== needle[j]) continue outer;
			}
			return i;
		}
		return -1;
	};
	Buffer.prototype.lastIndexOf = function(value) {
		var needle = typeof value === "string" ? encodeToBytes(value, "utf8") : (value instanceof Buffer ? value._bytes : [value]);
		outer:
		for (var i = this._bytes.length - needle.length; i >= 0; i--) {
			for (var j = 0; j < needle.length; j++) {
				if (this._bytes[i + j] !== needle[j]) continue outer;
			}
			return i;
		}
		return -1;
	};
	Buffer.prototype.includes = function(value) { return this.indexOf(value) !== -1; };

	function makeIntReader(bytes_len, signed, le) {
		return function(offset) {
			offset = offset || 0;
			var bytes = this._bytes.slice(offset, offset + bytes_len);
			if (!le) bytes = bytes.slice().reverse();
			var value = 0;
			for (var i = bytes.length - 1; i >= 0; i--) value = value * 256 + bytes[i];
			if (signed) {
				var max = Math.pow(2, bytes_len * 8 - 1);
				if (value >= max) value -= max * 2;
			}
			return value;
		};
	}
	function makeIntWriter(bytes_len, le) {
		return function(value, offset) {
			offset = offset || 0;
			var unsigned = value < 0 ? value + Math.pow(2, bytes_len * 8) : value;
			var bytes = [];
			for (var i = 0; i < bytes_len; i++) {
				bytes.push(unsigned % 256);
				unsigned = Math.floor(unsigned / 256);
			}
			if (!le) bytes.reverse();
			for (var j = 0; j < bytes_len; j++) this._bytes[offset + j] = bytes[j];
			return offset + bytes_len;
		};
	}

	Buffer.prototype.readUInt8 = makeIntReader(1, false, true);
	Buffer.prototype.readInt8 = makeIntReader(1, true, true);
	Buffer.prototype.readUInt16LE = makeIntReader(2, false, true);
	Buffer.prototype.readUInt16BE = makeIntReader(2, false, false);
	Buffer.prototype.readInt16LE = makeIntReader(2, true, true);
	Buffer.prototype.readInt16BE = makeIntReader(2, true, false);
	Buffer.prototype.readUInt32LE = makeIntReader(4, false, true);
	Buffer.prototype.readUInt32BE = makeIntReader(4, false, false);
	Buffer.prototype.readInt32LE = makeIntReader(4, true, true);
	Buffer.prototype.readInt32BE = makeIntReader(4, true, false);
	Buffer.prototype.writeUInt8 = makeIntWriter(1, true);
	Buffer.prototype.writeInt8 = makeIntWriter(1, true);
	Buffer.prototype.writeUInt16LE = makeIntWriter(2, true);
	Buffer.prototype.writeUInt16BE = makeIntWriter(2, false);
	Buffer.prototype.writeInt16LE = makeIntWriter(2, true);
	Buffer.prototype.writeInt16BE = makeIntWriter(2, false);
	Buffer.prototype.writeUInt32LE = makeIntWriter(4, true);
	Buffer.prototype.writeUInt32BE = makeIntWriter(4, false);
	Buffer.prototype.writeInt32LE = makeIntWriter(4, true);
	Buffer.prototype.writeInt32BE = makeIntWriter(4, false);

	Buffer.prototype.readFloatLE = function(offset) {
		var bits = this.readUInt32LE(offset);
		return _int32BitsToFloat(bits);
	};
	Buffer.prototype.readFloatBE = function(offset) {
		var bits = this.readUInt32BE(offset);
		return _int32BitsToFloat(bits);
	};
	Buffer.prototype.writeFloatLE = function(value, offset) {
		return this.writeUInt32LE(_floatToInt32Bits(value), offset);
	};
	Buffer.prototype.writeFloatBE = function(value, offset) {
		return this.writeUInt32BE(_floatToInt32Bits(value), offset);
	};

	Buffer.prototype.readDoubleLE = function(offset) {
		offset = offset || 0;
		return _int64BitsToDouble(this.readUInt32LE(offset), this.readUInt32LE(offset + 4));
	};
	Buffer.prototype.readDoubleBE = function(offset) {
		offset = offset || 0;
		return _int64BitsToDouble(this.readUInt32BE(offset + 4), this.readUInt32BE(offset));
	};
	Buffer.prototype.writeDoubleLE = function(value, offset) {
		offset = offset || 0;
		var halves = _doubleToInt64Bits(value);
		this.writeUInt32LE(halves[0], offset);
		return this.writeUInt32LE(halves[1], offset + 4);
	};
	Buffer.prototype.writeDoubleBE = function(value, offset) {
		offset = offset || 0;
		var halves = _doubleToInt64Bits(value);
		this.writeUInt32BE(halves[1], offset);
		return this.writeUInt32BE(halves[0], offset + 4);
	};

	function _int64BitsToDouble(lo, hi) {
		var sign = (hi >>> 31) ? -1 : 1;
		var exp = (hi >>> 20) & 0x7FF;
		var mantissa = (hi & 0xFFFFF) * 0x100000000 + lo;
		if (exp === 0) return sign * mantissa * Math.pow(2, -1074);
		if (exp === 0x7FF) return mantissa ? NaN : sign * Infinity;
		return sign * (1 + mantissa / 0x10000000000000) * Math.pow(2, exp - 1023);
	}
	function _doubleToInt64Bits(value) {
		if (value === 0) return [0, 1 / value === -Infinity ? 0x80000000 : 0];
		if (isNaN(value)) return [0, 0x7FF80000];
		var sign = value < 0 ? 1 : 0;
		value = Math.abs(value);
		var exp = Math.floor(Math.log(value) / Math.LN2);
		if (value / Math.pow(2, exp) >= 2) exp++;
		var mantissa = Math.round((value / Math.pow(2, exp) - 1) * 0x10000000000000);
		var hi = ((sign << 31) | ((exp + 1023) << 20) | Math.floor(mantissa / 0x100000000)) >>> 0;
		var lo = (mantissa % 0x100000000) >>> 0;
		return [lo, hi];
	}

	function _int32BitsToFloat(bits) {
		var sign = (bits >>> 31) ? -1 : 1;
		var exp = (bits >>> 23) & 0xFF;
		var mantissa = bits & 0x7FFFFF;
		if (exp === 0) return sign * mantissa * Math.pow(2, -149);
		if (exp === 0xFF) return mantissa ? NaN : sign * Infinity;
		return sign * (1 + mantissa / 0x800000) * Math.pow(2, exp - 127);
	}
	function _floatToInt32Bits(value) {
		if (value === 0) return 1 / value === -Infinity ? 0x80000000 : 0;
		if (isNaN(value)) return 0x7FC00000;
		var sign = value < 0 ? 1 : 0;
		value = Math.abs(value);
		var exp = Math.floor(Math.log(value) / Math.LN2);
		var mantissa = Math.round((value / Math.pow(2, exp) - 1) * 0x800000);
		return (sign << 31) | ((exp + 127) << 23) | mantissa;
	}

	return { Buffer: Buffer };
})()
`
