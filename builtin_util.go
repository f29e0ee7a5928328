package crucible

// utilBuiltinSource implements the portion of Node's `util` module SSR
// bundles commonly touch: format/inspect, deprecate, promisify/
// callbackify, and the is* type predicates.
const utilBuiltinSource = `
(function() {
	function format(fmt) {
		if (typeof fmt !== "string") {
			return Array.prototype.map.call(arguments, inspect).join(" ");
		}
		var args = Array.prototype.slice.call(arguments, 1);
		var i = 0;
		var out = fmt.replace(/%[sdifjoO%]/g, function(token) {
			if (token === "%%") return "%";
			if (i >= args.length) return token;
			var arg = args[i++];
			switch (token) {
				case "%s": return typeof arg === "string" ? arg : inspect(arg);
				case "%d": return Number(arg).toString();
				case "%i": return Math.trunc(Number(arg)).toString();
				case "%f": return Number(arg).toString();
				case "%j": case "%o": case "%O": return JSON.stringify(arg);
				default: return token;
			}
		});
		for (; i < args.length; i++) out += " " + inspect(args[i]);
		return out;
	}

	function inspect(value, depth) {
		depth = depth || 0;
		if (value === null) return "null";
		if (value === undefined) return "undefined";
		if (typeof value === "string") return depth === 0 ? value : JSON.stringify(value);
		if (typeof value === "function") return "[Function" + (value.name ? ": " + value.name : " (anonymous)") + "]";
		if (Array.isArray(value)) return "[ " + value.map(function(v) { return inspect(v, depth + 1); }).join(", ") + " ]";
		if (typeof value === "object") {
			if (value instanceof Error) return value.stack || (value.name + ": " + value.message);
			var parts = [];
			for (var key in value) {
				if (Object.prototype.hasOwnProperty.call(value, key)) {
					parts.push(key + ": " + inspect(value[key], depth + 1));
				}
			}
			return "{ " + parts.join(", ") + " }";
		}
		return String(value);
	}

	function deprecate(fn, msg) {
		var warned = false;
		return function() {
			if (!warned) { console.error("DeprecationWarning: " + msg); warned = true; }
			return fn.apply(this, arguments);
		};
	}

	function promisify(fn) {
		return function() {
			var args = Array.prototype.slice.call(arguments);
			var self = this;
			return new Promise(function(resolve, reject) {
				args.push(function(err, value) { err ? reject(err) : resolve(value); });
				fn.apply(self, args);
			});
		};
	}

	function callbackify(fn) {
		return function() {
			var args = Array.prototype.slice.call(arguments);
			var callback = args.pop();
			var self = this;
			fn.apply(self, args).then(function(value) { callback(null, value); }, function(err) { callback(err); });
		};
	}

	function TextEncoder() {}
	TextEncoder.prototype.encode = function(str) { return new Uint8Array(Buffer.from(str, "utf8")._bytes); };

	function TextDecoder(encoding) { this._encoding = encoding || "utf-8"; }
	TextDecoder.prototype.decode = function(bytes) {
		var arr = bytes instanceof Uint8Array ? Array.prototype.slice.call(bytes) : bytes;
		return Buffer.from(arr).toString("utf8");
	};

	return {
		format: format,
		inspect: inspect,
		deprecate: deprecate,
		promisify: promisify,
		callbackify: callbackify,
		isArray: Array.isArray,
		isString: function(v) { return typeof v === "string"; },
		isNumber: function(v) { return typeof v === "number"; },
		isBoolean: function(v) { return typeof v === "boolean"; },
		isFunction: function(v) { return typeof v === "function"; },
		isObject: function(v) { return v !== null && typeof v === "object"; },
		isNull: function(v) { return v === null; },
		isNullOrUndefined: function(v) { return v === null || v === undefined; },
		isUndefined: function(v) { return v === undefined; },
		isRegExp: function(v) { return v instanceof RegExp; },
		isDate: function(v) { return v instanceof Date; },
		isError: function(v) { return v instanceof Error; },
		TextEncoder: TextEncoder,
		TextDecoder: TextDecoder
	};
})()
`
