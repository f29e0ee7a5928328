package crucible

// streamBuiltinSource implements a minimal Readable/Writable/Duplex/
// Transform/PassThrough set over the EventEmitter built-in, enough for
// SSR bundles that pipe rendered markup through a transform before the
// streaming renderer consumes it.
const streamBuiltinSource = `
(function() {
	var events = __crucible_builtin("events");
	var EventEmitter = events.EventEmitter;

	function inherit(Child, Parent) {
		Child.prototype = Object.create(Parent.prototype);
		Child.prototype.constructor = Child;
	}

	function Readable(options) {
		EventEmitter.call(this);
		this._buffer = [];
		this._ended = false;
		this._flowing = false;
		this._read = (options && options.read) || function() {};
	}
	inherit(Readable, EventEmitter);
	Readable.prototype.push = function(chunk) {
		if (chunk === null) {
			this._ended = true;
			this.emit("end");
			return false;
		}
		this._buffer.push(chunk);
		this.emit("data", chunk);
		return true;
	};
	Readable.prototype.read = function() { return this._buffer.shift(); };
	Readable.prototype.pipe = function(dest) {
		var self = this;
		this.on("data", function(chunk) { dest.write(chunk); });
		this.on("end", function() { if (dest.end) dest.end(); });
		return dest;
	};

	function Writable(options) {
		EventEmitter.call(this);
		this._writes = [];
		this._write = (options && options.write) || function(chunk, enc, cb) { cb(); };
		this._ended = false;
	}
	inherit(Writable, EventEmitter);
	Writable.prototype.write = function(chunk, encoding, callback) {
		if (typeof encoding === "function") { callback = encoding; encoding = undefined; }
		this._writes.push(chunk);
		var self = this;
		this._write(chunk, encoding, function(err) {
			if (err) { self.emit("error", err); return; }
			if (callback) callback();
		});
		return true;
	};
	Writable.prototype.end = function(chunk) {
		if (chunk !== undefined) this.write(chunk);
		this._ended = true;
		this.emit("finish");
	};

	function Duplex(options) {
		Readable.call(this, options);
		Writable.call(this, options);
	}
	inherit(Duplex, Readable);
	Duplex.prototype.write = Writable.prototype.write;
	Duplex.prototype.end = Writable.prototype.end;

	function Transform(options) {
		Duplex.call(this, options);
		this._transform = (options && options.transform) || function(chunk, enc, cb) { cb(null, chunk); };
	}
	inherit(Transform, Duplex);
	Transform.prototype.write = function(chunk, encoding, callback) {
		var self = this;
		this._transform(chunk, encoding, function(err, out) {
			if (err) { self.emit("error", err); return; }
			if (out !== undefined) self.push(out);
			if (callback) callback();
		});
		return true;
	};

	function PassThrough() {
		Transform.call(this, { transform: function(chunk, enc, cb) { cb(null, chunk); } });
	}
	inherit(PassThrough, Transform);

	function pipeline() {
		var streams = Array.prototype.slice.call(arguments);
		var callback = typeof streams[streams.length - 1] === "function" ? streams.pop() : function() {};
		for (var i = 0; i < streams.length - 1; i++) {
			streams[i].pipe(streams[i + 1]);
		}
		var last = streams[streams.length - 1];
		last.on("finish", function() { callback(); });
		last.on("end", function() { callback(); });
		last.on("error", function(err) { callback(err); });
		return last;
	}

	function finished(stream, callback) {
		stream.on("finish", function() { callback(); });
		stream.on("end", function() { callback(); });
		stream.on("error", function(err) { callback(err); });
	}

	return {
		Readable: Readable,
		Writable: Writable,
		Duplex: Duplex,
		Transform: Transform,
		PassThrough: PassThrough,
		pipeline: pipeline,
		finished: finished,
		promises: {
			pipeline: function() {
				var args = Array.prototype.slice.call(arguments);
				return new Promise(function(resolve, reject) {
					args.push(function(err) { err ? reject(err) : resolve(); });
					pipeline.apply(null, args);
				});
			},
			finished: function(stream) {
				return new Promise(function(resolve, reject) {
					finished(stream, function(err) { err ? reject(err) : resolve(); });
				});
			}
		}
	};
})()
`
