package crucible

// timersBuiltinSource re-exposes the global timer functions as the
// `timers` built-in.
const timersBuiltinSource = `
(function() {
	return {
		setTimeout: setTimeout,
		clearTimeout: clearTimeout,
		setInterval: setInterval,
		clearInterval: clearInterval,
		setImmediate: function(cb) { return setTimeout(cb, 0); },
		clearImmediate: clearTimeout
	};
})()
`

const timersPromisesBuiltinSource = `
(function() {
	return {
		setTimeout: function(delay, value) {
			return new Promise(function(resolve) {
				setTimeout(function() { resolve(value); }, delay);
			});
		},
		setImmediate: function(value) {
			return new Promise(function(resolve) {
				setTimeout(function() { resolve(value); }, 0);
			});
		}
	};
})()
`

// urlBuiltinSource implements a small WHATWG-ish URL plus Node's legacy
// querystring-adjacent helpers used by SSR bundles for route params.
const urlBuiltinSource = `
(function() {
	function parseQuery(search) {
		var out = {};
		if (!search) return out;
		search = search.replace(/^\?/, "");
		if (!search) return out;
		search.split("&").forEach(function(pair) {
			if (!pair) return;
			var idx = pair.indexOf("=");
			var key = idx === -1 ? pair : pair.slice(0, idx);
			var value = idx === -1 ? "" : pair.slice(idx + 1);
			out[decodeURIComponent(key)] = decodeURIComponent(value.replace(/\+/g, " "));
		});
		return out;
	}

	function URL(input, base) {
		var full = input;
		if (base && !/^[a-z][a-z0-9+.-]*:/i.test(input)) {
			full = base.replace(/\/$/, "") + "/" + input.replace(/^\//, "");
		}
		var m = /^([a-z][a-z0-9+.-]*):\/\/([^\/?#]*)([^?#]*)(\?[^#]*)?(#.*)?$/i.exec(full);
		if (!m) throw new TypeError("Invalid URL: " + input);
		this.protocol = m[1] + ":";
		var hostPart = m[2] || "";
		var hostSplit = hostPart.split(":");
		this.hostname = hostSplit[0];
		this.port = hostSplit[1] || "";
		this.host = hostPart;
		this.pathname = m[3] || "/";
		this.search = m[4] || "";
		this.hash = m[5] || "";
		this.href = full;
		this.origin = this.protocol + "//" + this.host;
	}
	URL.prototype.toString = function() { return this.href; };
	Object.defineProperty(URL.prototype, "searchParams", {
		get: function() {
			var self = this;
			var params = parseQuery(this.search);
			return {
				get: function(key) { return params[key]; },
				has: function(key) { return Object.prototype.hasOwnProperty.call(params, key); },
				getAll: function(key) { return params[key] !== undefined ? [params[key]] : []; },
				entries: function() { return Object.keys(params).map(function(k) { return [k, params[k]]; }); }
			};
		}
	});

	return {
		URL: URL,
		parse: function(input) {
			var u = new URL(input);
			return {
				protocol: u.protocol, hostname: u.hostname, port: u.port,
				pathname: u.pathname, search: u.search, hash: u.hash,
				query: parseQuery(u.search), href: u.href
			};
		},
		format: function(urlObj) { return urlObj.href || ""; }
	};
})()
`

// osBuiltinSource implements the handful of `os` queries SSR code checks
// for platform-dependent behavior.
const osBuiltinSource = `
(function() {
	return {
		platform: function() { return process.platform; },
		arch: function() { return process.arch; },
		tmpdir: function() { return "/tmp"; },
		homedir: function() { return "/home"; },
		hostname: function() { return "crucible"; },
		EOL: "\n",
		type: function() { return "Linux"; },
		release: function() { return "0.0.0"; },
		cpus: function() { return [{ model: "virtual", speed: 0 }]; },
		totalmem: function() { return 0; },
		freemem: function() { return 0; }
	};
})()
`
