package crucible

import (
	"encoding/json"
	"fmt"

	"github.com/buke/quickjs-go"
)

// injectFSBridge installs the native operations the `fs` built-in's JS
// shim calls into. Every entry point checks h.vfs first and throws a
// FilesystemNotInitialized-shaped error naming the method if no VFS has
// been attached yet.
func injectFSBridge(h *Host) {
	ctx := h.ctx
	globals := ctx.Globals()

	notInitialized := func(c *quickjs.Context, method string) quickjs.Value {
		return c.ThrowError(fmt.Errorf("🔴 fs.%s: FilesystemNotInitialized", method))
	}

	globals.Set("__crucible_fs_read", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "readFileSync")
		}
		content, err := h.vfs.ReadFileString(args[0].String())
		if err != nil {
			return c.ThrowError(err)
		}
		return c.String(content)
	}))

	globals.Set("__crucible_fs_write", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "writeFileSync")
		}
		if err := h.vfs.WriteFileRecursive(args[0].String(), []byte(args[1].String())); err != nil {
			return c.ThrowError(err)
		}
		return c.Undefined()
	}))

	globals.Set("__crucible_fs_exists", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "existsSync")
		}
		return c.Bool(h.vfs.Exists(args[0].String()))
	}))

	globals.Set("__crucible_fs_mkdir", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "mkdirSync")
		}
		recursive := len(args) > 1 && args[1].Bool()
		if err := h.vfs.Mkdir(args[0].String(), MkdirOptions{Recursive: recursive}); err != nil {
			return c.ThrowError(err)
		}
		return c.Undefined()
	}))

	globals.Set("__crucible_fs_readdir", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "readdirSync")
		}
		names, err := h.vfs.Readdir(args[0].String())
		if err != nil {
			return c.ThrowError(err)
		}
		payload, _ := json.Marshal(names)
		return c.String(string(payload))
	}))

	globals.Set("__crucible_fs_stat", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "statSync")
		}
		stats, err := h.vfs.Stat(args[0].String())
		if err != nil {
			return c.ThrowError(err)
		}
		payload, _ := json.Marshal(stats)
		return c.String(string(payload))
	}))

	globals.Set("__crucible_fs_unlink", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "unlinkSync")
		}
		if err := h.vfs.Unlink(args[0].String()); err != nil {
			return c.ThrowError(err)
		}
		return c.Undefined()
	}))

	globals.Set("__crucible_fs_rmdir", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "rmdirSync")
		}
		recursive := len(args) > 1 && args[1].Bool()
		if err := h.vfs.Rmdir(args[0].String(), MkdirOptions{Recursive: recursive}); err != nil {
			return c.ThrowError(err)
		}
		return c.Undefined()
	}))

	globals.Set("__crucible_fs_rename", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if h.vfs == nil {
			return notInitialized(c, "renameSync")
		}
		if err := h.vfs.Rename(args[0].String(), args[1].String()); err != nil {
			return c.ThrowError(err)
		}
		return c.Undefined()
	}))
}

// fsBuiltinSource is the JS-facing `fs` namespace. Synchronous variants
// call straight through to the native bridge; async/callback variants
// wrap the same call so they always work even though
// there is no real async I/O underneath an in-memory VFS.
const fsBuiltinSource = `
(function() {
	function readFileSync(path, encoding) {
		var content = __crucible_fs_read(path);
		if (encoding) return content;
		return Buffer.from(content, "utf8");
	}
	function readFile(path, encodingOrCb, cb) {
		var encoding = typeof encodingOrCb === "string" ? encodingOrCb : undefined;
		var callback = typeof encodingOrCb === "function" ? encodingOrCb : cb;
		try {
			var data = readFileSync(path, encoding);
			process.nextTick(function() { callback(null, data); });
		} catch (e) {
			process.nextTick(function() { callback(e); });
		}
	}

	function writeFileSync(path, data) {
		var content = data instanceof Buffer ? data.toString("utf8") : String(data);
		__crucible_fs_write(path, content);
	}
	function writeFile(path, data, cb) {
		try {
			writeFileSync(path, data);
			process.nextTick(function() { cb(null); });
		} catch (e) {
			process.nextTick(function() { cb(e); });
		}
	}

	function existsSync(path) { return __crucible_fs_exists(path); }
	function exists(path, cb) { process.nextTick(function() { cb(existsSync(path)); }); }

	function mkdirSync(path, options) {
		var recursive = options && options.recursive;
		__crucible_fs_mkdir(path, !!recursive);
	}
	function mkdir(path, options, cb) {
		var callback = typeof options === "function" ? options : cb;
		var opts = typeof options === "function" ? {} : (options || {});
		try { mkdirSync(path, opts); process.nextTick(function() { callback(null); }); }
		catch (e) { process.nextTick(function() { callback(e); }); }
	}

	function readdirSync(path) { return JSON.parse(__crucible_fs_readdir(path)); }
	function readdir(path, cb) {
		try { var names = readdirSync(path); process.nextTick(function() { cb(null, names); }); }
		catch (e) { process.nextTick(function() { cb(e); }); }
	}

	function statSync(path) {
		var raw = JSON.parse(__crucible_fs_stat(path));
		return {
			isFile: function() { return raw.IsFile; },
			isDirectory: function() { return raw.IsDirectory; },
			size: raw.Size,
			mode: raw.Mode,
			atime: new Date(raw.ATime),
			mtime: new Date(raw.MTime),
			ctime: new Date(raw.CTime),
			birthtime: new Date(raw.BirthTime)
		};
	}
	function stat(path, cb) {
		try { var s = statSync(path); process.nextTick(function() { cb(null, s); }); }
		catch (e) { process.nextTick(function() { cb(e); }); }
	}

	function unlinkSync(path) { __crucible_fs_unlink(path); }
	function unlink(path, cb) {
		try { unlinkSync(path); process.nextTick(function() { cb(null); }); }
		catch (e) { process.nextTick(function() { cb(e); }); }
	}

	function rmdirSync(path, options) { __crucible_fs_rmdir(path, !!(options && options.recursive)); }
	function rmdir(path, options, cb) {
		var callback = typeof options === "function" ? options : cb;
		var opts = typeof options === "function" ? {} : (options || {});
		try { rmdirSync(path, opts); process.nextTick(function() { callback(null); }); }
		catch (e) { process.nextTick(function() { callback(e); }); }
	}

	function renameSync(from, to) { __crucible_fs_rename(from, to); }
	function rename(from, to, cb) {
		try { renameSync(from, to); process.nextTick(function() { cb(null); }); }
		catch (e) { process.nextTick(function() { cb(e); }); }
	}

	var promises = {
		readFile: function(path, encoding) {
			return new Promise(function(resolve, reject) {
				readFile(path, encoding, function(err, data) { err ? reject(err) : resolve(data); });
			});
		},
		writeFile: function(path, data) {
			return new Promise(function(resolve, reject) {
				writeFile(path, data, function(err) { err ? reject(err) : resolve(); });
			});
		},
		mkdir: function(path, options) {
			return new Promise(function(resolve, reject) {
				mkdir(path, options || {}, function(err) { err ? reject(err) : resolve(); });
			});
		},
		readdir: function(path) {
			return new Promise(function(resolve, reject) {
				readdir(path, function(err, names) { err ? reject(err) : resolve(names); });
			});
		},
		stat: function(path) {
			return new Promise(function(resolve, reject) {
				stat(path, function(err, s) { err ? reject(err) : resolve(s); });
			});
		}
	};

	return {
		readFileSync: readFileSync, readFile: readFile,
		writeFileSync: writeFileSync, writeFile: writeFile,
		existsSync: existsSync, exists: exists,
		mkdirSync: mkdirSync, mkdir: mkdir,
		readdirSync: readdirSync, readdir: readdir,
		statSync: statSync, stat: stat,
		unlinkSync: unlinkSync, unlink: unlink,
		rmdirSync: rmdirSync, rmdir: rmdir,
		renameSync: renameSync, rename: rename,
		promises: promises
	};
})()
`
