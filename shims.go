package crucible

// sharedShimSource is the shared runtime base: HTML escaping
// and attribute rendering used by every per-framework shim. It is
// evaluated once, before the first framework-specific shim, regardless of
// which framework is ultimately detected.
const sharedShimSource = `
(function() {
	if (globalThis.$$escapeHTML) return;

	globalThis.$$escapeHTML = function(str) {
		if (str === null || str === undefined) return "";
		return String(str)
			.replace(/&/g, "&amp;")
			.replace(/</g, "&lt;")
			.replace(/>/g, "&gt;")
			.replace(/"/g, "&quot;")
			.replace(/'/g, "&#39;");
	};

	globalThis.$$renderAttrs = function(attrs) {
		if (!attrs) return "";
		var out = [];
		for (var key in attrs) {
			var value = attrs[key];
			if (value === null || value === undefined || value === false) continue;
			if (value === true) { out.push(key); continue; }
			out.push(key + '="' + $$escapeHTML(value) + '"');
		}
		return out.length ? " " + out.join(" ") : "";
	};

	globalThis.$$voidElements = {
		area: 1, base: 1, br: 1, col: 1, embed: 1, hr: 1, img: 1, input: 1,
		link: 1, meta: 1, param: 1, source: 1, track: 1, wbr: 1,
	};

	if (!globalThis.URL) {
		globalThis.URL = __crucible_builtin("url").URL;
	}
})();
`

// astroShimSource implements the Astro SSR primitives.
const astroShimSource = `
(function() {
	if (globalThis.$$renderComponent) return;

	globalThis.Astro = {
		createAstro: function(props, slots) {
			return { props: props || {}, slots: slots || {}, request: {}, url: new URL("http://localhost/") };
		},
	};

	globalThis.$$maybeRenderHead = function() { return ""; };
	globalThis.$$renderHead = function(result) {
		var head = (result && result.head) || [];
		return head.join("\n");
	};

	globalThis.$$addAttribute = function(value, name) {
		var attrs = {};
		attrs[name] = value;
		return $$renderAttrs(attrs);
	};

	globalThis.$$spreadAttributes = function(attrs) { return $$renderAttrs(attrs); };

	function renderChild(child) {
		if (child === null || child === undefined || child === false) return "";
		if (Array.isArray(child)) return child.map(renderChild).join("");
		if (typeof child === "function") return renderChild(child());
		if (typeof child === "object" && typeof child.then === "function") return "";
		return $$escapeHTML(child);
	}

	globalThis.$$render = function(strings) {
		var values = Array.prototype.slice.call(arguments, 1);
		var out = strings[0] || "";
		for (var i = 0; i < values.length; i++) {
			out += renderChild(values[i]) + (strings[i + 1] || "");
		}
		return out;
	};

	globalThis.$$renderComponent = function(result, name, Component, props, slots) {
		if (typeof Component === "function") {
			var rendered = Component(props || {}, slots || {});
			if (rendered && typeof rendered.then === "function") {
				return rendered;
			}
			return renderChild(rendered);
		}
		return "";
	};

	globalThis.$$createAstroResult = function() {
		return { styles: [], scripts: [], head: [] };
	};
})();
`

// vueShimSource implements the Vue SSR primitives.
const vueShimSource = `
(function() {
	if (globalThis.__crucible_vue) return;
	globalThis.__crucible_vue = true;

	function VNode(tag, props, children) {
		this.tag = tag;
		this.props = props || {};
		this.children = children || [];
	}

	globalThis.h = function(tag, props, children) {
		if (Array.isArray(props)) { children = props; props = {}; }
		if (children === undefined) children = [];
		if (!Array.isArray(children)) children = [children];
		return new VNode(tag, props, children);
	};

	globalThis.reactive = function(obj) { return obj; };
	globalThis.ref = function(value) { return { value: value }; };
	globalThis.computed = function(getter) { return { get value() { return getter(); } }; };
	globalThis.createApp = function(component) {
		return { mount: function() {}, component: component };
	};

	function renderVNode(vnode) {
		if (vnode === null || vnode === undefined || vnode === false) return "";
		if (Array.isArray(vnode)) return vnode.map(renderVNode).join("");
		if (typeof vnode === "string" || typeof vnode === "number") return $$escapeHTML(vnode);
		if (typeof vnode.tag === "function") {
			var sub = vnode.tag(vnode.props, { slots: {}, attrs: vnode.props });
			return renderVNode(typeof sub === "function" ? sub() : sub);
		}
		var attrs = $$renderAttrs(vnode.props);
		if (globalThis.$$voidElements[vnode.tag]) {
			return "<" + vnode.tag + attrs + "/>";
		}
		return "<" + vnode.tag + attrs + ">" + renderVNode(vnode.children) + "</" + vnode.tag + ">";
	}

	globalThis.renderToString = function(component, ctx) {
		var root = typeof component === "function"
			? component(ctx && ctx.props ? ctx.props : {})
			: (component && component.render ? component.render.call(component, ctx) : component);
		return Promise.resolve(renderVNode(root));
	};
})();
`

// svelteShimSource implements the Svelte SSR primitives.
const svelteShimSource = `
(function() {
	if (globalThis.SvelteComponent) return;

	globalThis.SvelteComponent = function() {};
	globalThis.SvelteComponent.prototype.$$render = function() { return { html: "", css: "", head: "" }; };

	globalThis.escape = function(value) { return $$escapeHTML(value); };

	globalThis.each = function(items, fn) {
		if (!items) return "";
		var out = [];
		for (var i = 0; i < items.length; i++) out.push(fn(items[i], i));
		return out.join("");
	};

	globalThis.add_attribute = function(name, value, boolean) {
		if (boolean && !value) return "";
		var attrs = {};
		attrs[name] = boolean ? true : value;
		return $$renderAttrs(attrs);
	};

	globalThis.create_ssr_component = function(renderFn) {
		return {
			render: function(props, opts) {
				props = props || {};
				opts = opts || {};
				var result = { head: "" };
				var html = renderFn(result, props, {}, opts.$$slots || {});
				return { html: html, css: { code: "", map: null }, head: result.head || "" };
			},
		};
	};

	globalThis.svelteRender = function(Component, props) {
		var instance = typeof Component === "function" ? Component : Component;
		var rendered = instance.render ? instance.render(props || {}) : instance(props || {});
		return {
			html: rendered.html || "",
			css: rendered.css || { code: "" },
			head: rendered.head || "",
		};
	};
})();
`

// reactShimSource implements the React SSR primitives.
const reactShimSource = `
(function() {
	if (globalThis.Fragment) return;

	globalThis.Fragment = Symbol.for("crucible.react.fragment");

	globalThis.createElement = function(type, props) {
		var children = Array.prototype.slice.call(arguments, 2);
		if (props && props.children !== undefined && children.length === 0) {
			children = Array.isArray(props.children) ? props.children : [props.children];
		}
		return { type: type, props: props || {}, children: children };
	};
	globalThis.React = { createElement: globalThis.createElement, Fragment: globalThis.Fragment };

	var attrRenames = { className: "class", htmlFor: "for" };

	function renderProps(props) {
		var out = {};
		for (var key in props) {
			if (key === "children" || key === "key" || key === "ref") continue;
			if (typeof props[key] === "function") continue;
			var name = attrRenames[key] || key;
			out[name] = props[key];
		}
		return out;
	}

	globalThis.renderVNode = function(node) {
		if (node === null || node === undefined || node === false || node === true) return "";
		if (Array.isArray(node)) return node.map(renderVNode).join("");
		if (typeof node === "string" || typeof node === "number") return $$escapeHTML(node);

		if (typeof node !== "object") return "";

		if (node.type === globalThis.Fragment) {
			return renderVNode(node.children);
		}

		if (typeof node.type === "function") {
			var merged = node.props || {};
			if (node.children && node.children.length && merged.children === undefined) {
				merged = Object.assign({}, merged, { children: node.children.length === 1 ? node.children[0] : node.children });
			}
			return renderVNode(node.type(merged));
		}

		var attrs = $$renderAttrs(renderProps(node.props));
		if (globalThis.$$voidElements[node.type]) {
			return "<" + node.type + attrs + "/>";
		}
		var inner = node.props && node.props.dangerouslySetInnerHTML
			? node.props.dangerouslySetInnerHTML.__html
			: renderVNode(node.children);
		return "<" + node.type + attrs + ">" + inner + "</" + node.type + ">";
	};
})();
`

// shimSources maps a Framework to its one-shot runtime shim, evaluated
// lazily and idempotently per Host.
var shimSources = map[Framework]string{
	FrameworkAstro:  astroShimSource,
	FrameworkVue:    vueShimSource,
	FrameworkSvelte: svelteShimSource,
	FrameworkReact:  reactShimSource,
}
