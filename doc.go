// Package crucible is an in-process server-side rendering runtime. It hosts
// a sandboxed JavaScript interpreter, an in-memory virtual filesystem, a
// Node-style CommonJS/ESM module resolver, and a multi-framework
// render-to-string pipeline (Astro, Vue, Svelte, React) with caching and
// chunked streaming, for embedding inside a larger build/preview tool.
package crucible
