package crucible

// eventsBuiltinSource implements a Node-compatible EventEmitter: ordered
// per-event listener lists, once-removal-before-invocation for re-entrance
// safety, snapshot iteration during emit, and the static once/on helpers.
const eventsBuiltinSource = `
(function() {
	var DEFAULT_MAX_LISTENERS = 10;

	function EventEmitter() {
		this._events = {};
		this._maxListeners = DEFAULT_MAX_LISTENERS;
	}

	EventEmitter.prototype._list = function(name) {
		if (!this._events[name]) this._events[name] = [];
		return this._events[name];
	};

	EventEmitter.prototype._add = function(name, listener, once, prepend) {
		if (name !== "newListener" && this._events.newListener) {
			this.emit("newListener", name, listener);
		}
		var list = this._list(name);
		var entry = { listener: listener, once: !!once };
		if (prepend) list.unshift(entry); else list.push(entry);
		return this;
	};

	EventEmitter.prototype.on = function(name, listener) { return this._add(name, listener, false, false); };
	EventEmitter.prototype.addListener = EventEmitter.prototype.on;
	EventEmitter.prototype.once = function(name, listener) { return this._add(name, listener, true, false); };
	EventEmitter.prototype.prependListener = function(name, listener) { return this._add(name, listener, false, true); };
	EventEmitter.prototype.prependOnceListener = function(name, listener) { return this._add(name, listener, true, true); };

	EventEmitter.prototype.off = function(name, listener) {
		var list = this._events[name];
		if (!list) return this;
		for (var i = list.length - 1; i >= 0; i--) {
			if (list[i].listener === listener) {
				list.splice(i, 1);
				if (name !== "removeListener" && this._events.removeListener) {
					this.emit("removeListener", name, listener);
				}
				break;
			}
		}
		return this;
	};
	EventEmitter.prototype.removeListener = EventEmitter.prototype.off;

	EventEmitter.prototype.removeAllListeners = function(name) {
		if (name === undefined) {
			this._events = {};
		} else {
			delete this._events[name];
		}
		return this;
	};

	EventEmitter.prototype.emit = function(name) {
		var list = this._events[name];
		if (!list || !list.length) {
			if (name === "error") {
				var err = arguments.length > 1 ? arguments[1] : new Error("Unhandled error.");
				throw err;
			}
			return false;
		}
		var args = Array.prototype.slice.call(arguments, 1);
		var snapshot = list.slice();
		for (var i = 0; i < snapshot.length; i++) {
			var entry = snapshot[i];
			if (entry.once) {
				this.off(name, entry.listener);
			}
			entry.listener.apply(this, args);
		}
		return true;
	};

	EventEmitter.prototype.listeners = function(name) {
		return (this._events[name] || []).map(function(e) { return e.listener; });
	};
	EventEmitter.prototype.rawListeners = EventEmitter.prototype.listeners;
	EventEmitter.prototype.listenerCount = function(name) {
		return (this._events[name] || []).length;
	};
	EventEmitter.prototype.eventNames = function() { return Object.keys(this._events); };
	EventEmitter.prototype.setMaxListeners = function(n) { this._maxListeners = n; return this; };
	EventEmitter.prototype.getMaxListeners = function() { return this._maxListeners; };

	EventEmitter.once = function(emitter, name) {
		return new Promise(function(resolve, reject) {
			function onEvent() { cleanup(); resolve(Array.prototype.slice.call(arguments)); }
			function onError(err) { cleanup(); reject(err); }
			function cleanup() {
				emitter.off(name, onEvent);
				emitter.off("error", onError);
			}
			emitter.once(name, onEvent);
			if (name !== "error") emitter.once("error", onError);
		});
	};

	EventEmitter.on = function(emitter, name) {
		var queue = [];
		var pullResolve = null;
		emitter.on(name, function() {
			var args = Array.prototype.slice.call(arguments);
			if (pullResolve) {
				var r = pullResolve;
				pullResolve = null;
				r({ value: args, done: false });
			} else {
				queue.push(args);
			}
		});
		return {
			next: function() {
				if (queue.length) {
					return Promise.resolve({ value: queue.shift(), done: false });
				}
				return new Promise(function(resolve) { pullResolve = resolve; });
			}
		};
	};

	return { EventEmitter: EventEmitter };
})()
`
