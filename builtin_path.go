package crucible

// pathBuiltinSource implements the POSIX-only subset of Node's `path`
// module, in JS because the algorithm is pure string
// manipulation with no host dependency, the same reason Node's own path
// module has no native component.
const pathBuiltinSource = `
(function() {
	var sep = "/";
	var delimiter = ":";

	function normalize(p) {
		if (p === "") return ".";
		var isAbs = p.charAt(0) === sep;
		var trailingSlash = p.length > 1 && p.charAt(p.length - 1) === sep;
		var parts = p.split(sep);
		var out = [];
		for (var i = 0; i < parts.length; i++) {
			var part = parts[i];
			if (part === "" || part === ".") continue;
			if (part === "..") {
				if (out.length && out[out.length - 1] !== "..") {
					out.pop();
				} else if (!isAbs) {
					out.push("..");
				}
			} else {
				out.push(part);
			}
		}
		var result = out.join(sep);
		if (isAbs) result = sep + result;
		if (!result) result = isAbs ? sep : ".";
		if (trailingSlash && result.charAt(result.length - 1) !== sep) result += sep;
		return result;
	}

	function isAbsolute(p) {
		return p.charAt(0) === sep;
	}

	function join() {
		var parts = [];
		for (var i = 0; i < arguments.length; i++) {
			if (arguments[i]) parts.push(arguments[i]);
		}
		if (!parts.length) return ".";
		return normalize(parts.join(sep));
	}

	function resolve() {
		var resolved = "";
		var absolute = false;
		for (var i = arguments.length - 1; i >= -1 && !absolute; i--) {
			var path = i >= 0 ? arguments[i] : "/";
			if (!path) continue;
			resolved = path + sep + resolved;
			absolute = path.charAt(0) === sep;
		}
		resolved = normalize(resolved);
		if (absolute) {
			return resolved.charAt(0) === sep ? resolved : sep + resolved;
		}
		return resolved || ".";
	}

	function dirname(p) {
		if (p === "") return ".";
		var i = p.lastIndexOf(sep);
		if (i === -1) return ".";
		if (i === 0) return sep;
		return p.slice(0, i);
	}

	function basename(p, ext) {
		var i = p.lastIndexOf(sep);
		var base = i === -1 ? p : p.slice(i + 1);
		if (ext && base.slice(-ext.length) === ext && base !== ext) {
			base = base.slice(0, base.length - ext.length);
		}
		return base;
	}

	function extname(p) {
		var base = basename(p);
		var i = base.lastIndexOf(".");
		if (i <= 0) return "";
		return base.slice(i);
	}

	function relative(from, to) {
		from = resolve(from).replace(/\/+$/, "");
		to = resolve(to).replace(/\/+$/, "");
		if (from === to) return "";
		var fromParts = from.split(sep).filter(Boolean);
		var toParts = to.split(sep).filter(Boolean);
		var common = 0;
		while (common < fromParts.length && common < toParts.length && fromParts[common] === toParts[common]) {
			common++;
		}
		var up = fromParts.length - common;
		var parts = [];
		for (var i = 0; i < up; i++) parts.push("..");
		parts = parts.concat(toParts.slice(common));
		return parts.join(sep);
	}

	function parse(p) {
		var root = isAbsolute(p) ? sep : "";
		var base = basename(p);
		var ext = extname(base);
		var name = ext ? base.slice(0, base.length - ext.length) : base;
		return { root: root, dir: dirname(p), base: base, ext: ext, name: name };
	}

	function format(obj) {
		var dir = obj.dir || obj.root || "";
		var base = obj.base || ((obj.name || "") + (obj.ext || ""));
		if (!dir) return base;
		return dir === sep ? dir + base : dir + sep + base;
	}

	return {
		sep: sep,
		delimiter: delimiter,
		normalize: normalize,
		isAbsolute: isAbsolute,
		join: join,
		resolve: resolve,
		dirname: dirname,
		basename: basename,
		extname: extname,
		relative: relative,
		parse: parse,
		format: format,
		posix: null
	};
})()
`
