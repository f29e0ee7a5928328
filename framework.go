package crucible

import "strings"

// Framework is one of the four SSR targets crucible knows how to render.
type Framework string

const (
	FrameworkAstro   Framework = "astro"
	FrameworkVue     Framework = "vue"
	FrameworkSvelte  Framework = "svelte"
	FrameworkReact   Framework = "react"
	FrameworkUnknown Framework = ""
)

// DetectFramework picks the SSR framework for a component: filename
// suffix first, then code-pattern sniffing, then a react default.
func DetectFramework(filename, code string) Framework {
	switch {
	case strings.HasSuffix(filename, ".astro"):
		return FrameworkAstro
	case strings.HasSuffix(filename, ".vue"):
		return FrameworkVue
	case strings.HasSuffix(filename, ".svelte"):
		return FrameworkSvelte
	}

	switch {
	case strings.Contains(code, "$$createComponent") || strings.Contains(code, "createAstro"):
		return FrameworkAstro
	case strings.Contains(code, "defineComponent") || strings.Contains(code, "createApp") || strings.Contains(code, "<template>"):
		return FrameworkVue
	case strings.Contains(code, "SvelteComponent") || strings.Contains(code, "create_ssr_component"):
		return FrameworkSvelte
	case strings.Contains(code, "createElement") || strings.Contains(code, "React.") || strings.Contains(code, "jsx"):
		return FrameworkReact
	}

	return FrameworkReact
}
