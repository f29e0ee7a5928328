package crucible

import "testing"

func TestDetectFrameworkBySuffix(t *testing.T) {
	cases := map[string]Framework{
		"index.astro": FrameworkAstro,
		"Card.vue":    FrameworkVue,
		"Card.svelte": FrameworkSvelte,
	}
	for filename, want := range cases {
		if got := DetectFramework(filename, ""); got != want {
			t.Errorf("DetectFramework(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestDetectFrameworkByCodePattern(t *testing.T) {
	cases := []struct {
		code string
		want Framework
	}{
		{"const el = $$createComponent(async ($$result) => {});", FrameworkAstro},
		{"export default defineComponent({ setup() {} });", FrameworkVue},
		{"class App extends SvelteComponent {}", FrameworkSvelte},
		{"export default function App() { return createElement('div'); }", FrameworkReact},
	}
	for _, c := range cases {
		if got := DetectFramework("component.js", c.code); got != c.want {
			t.Errorf("DetectFramework(code=%q) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestDetectFrameworkDefaultsToReact(t *testing.T) {
	if got := DetectFramework("component.js", "module.exports = function() {}"); got != FrameworkReact {
		t.Errorf("expected unrecognized code to default to react, got %q", got)
	}
}
