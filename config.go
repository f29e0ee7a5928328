package crucible

import "time"

// SandboxConfig bounds one Sandbox Host.
type SandboxConfig struct {
	MemoryLimitBytes uint64
	StackLimitBytes  uint64
	InterruptAfter   time.Duration
}

func defaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		MemoryLimitBytes: 128 * 1024 * 1024,
		StackLimitBytes:  1 * 1024 * 1024,
		InterruptAfter:   30 * time.Second,
	}
}

// SandboxOption configures a SandboxConfig.
type SandboxOption func(*SandboxConfig)

func WithMemoryLimit(bytes uint64) SandboxOption {
	return func(c *SandboxConfig) { c.MemoryLimitBytes = bytes }
}

func WithStackLimit(bytes uint64) SandboxOption {
	return func(c *SandboxConfig) { c.StackLimitBytes = bytes }
}

func WithInterruptAfter(d time.Duration) SandboxOption {
	return func(c *SandboxConfig) { c.InterruptAfter = d }
}

// ResolverConfig configures the module resolver.
type ResolverConfig struct {
	BaseDir    string
	ModulePaths []string
	Extensions []string
	CDNURL     string
}

func defaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		BaseDir:     "/",
		ModulePaths: []string{"/node_modules"},
		Extensions:  []string{".js", ".mjs", ".cjs", ".ts", ".tsx", ".jsx", ".json"},
		CDNURL:      "https://esm.sh",
	}
}

// CacheConfig configures the SSR cache.
type CacheConfig struct {
	MaxSize        int
	TTL            time.Duration
	UseContentHash bool
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:        100,
		TTL:            5 * time.Minute,
		UseContentHash: true,
	}
}

func defaultRendererCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:        200,
		TTL:            10 * time.Minute,
		UseContentHash: true,
	}
}

// StreamConfig configures the streaming renderer.
type StreamConfig struct {
	ChunkBufferSize        int
	FlushInterval          time.Duration
	ProgressiveHydration   bool
	Timeout                time.Duration
}

func defaultStreamConfig() StreamConfig {
	return StreamConfig{
		ChunkBufferSize:      1024,
		FlushInterval:        50 * time.Millisecond,
		ProgressiveHydration: true,
		Timeout:              10 * time.Second,
	}
}

// OrchestratorMode selects when the Orchestrator applies SSR.
type OrchestratorMode string

const (
	ModeDisabled OrchestratorMode = "disabled"
	ModeAlways   OrchestratorMode = "always"
	ModeAuto     OrchestratorMode = "auto"
)

// OrchestratorConfig configures the façade.
type OrchestratorConfig struct {
	Mode              OrchestratorMode
	CacheEnabled      bool
	EnabledFrameworks map[Framework]bool
	Sandbox           SandboxConfig
	Resolver          ResolverConfig
	Cache             CacheConfig
	Stream            StreamConfig
	DefaultTitle      string
	BaseURL           string
	Logger            *Logger
}

func defaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Mode:         ModeAuto,
		CacheEnabled: true,
		EnabledFrameworks: map[Framework]bool{
			FrameworkAstro:  true,
			FrameworkVue:    true,
			FrameworkSvelte: true,
			FrameworkReact:  true,
		},
		Sandbox:      defaultSandboxConfig(),
		Resolver:     defaultResolverConfig(),
		Cache:        defaultRendererCacheConfig(),
		Stream:       defaultStreamConfig(),
		DefaultTitle: "crucible",
		Logger:       NewLogger(),
	}
}

// OrchestratorOption configures an OrchestratorConfig.
type OrchestratorOption func(*OrchestratorConfig)

func WithMode(mode OrchestratorMode) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Mode = mode }
}

func WithCacheEnabled(enabled bool) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.CacheEnabled = enabled }
}

func WithEnabledFrameworks(frameworks ...Framework) OrchestratorOption {
	return func(c *OrchestratorConfig) {
		c.EnabledFrameworks = make(map[Framework]bool, len(frameworks))
		for _, f := range frameworks {
			c.EnabledFrameworks[f] = true
		}
	}
}

func WithDefaultTitle(title string) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.DefaultTitle = title }
}

func WithBaseURL(url string) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.BaseURL = url }
}

func WithSandboxConfig(sc SandboxConfig) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Sandbox = sc }
}

func WithResolverConfig(rc ResolverConfig) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Resolver = rc }
}

func WithCacheConfig(cc CacheConfig) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Cache = cc }
}

func WithStreamConfig(sc StreamConfig) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Stream = sc }
}

// WithLogger overrides the default Logger the Orchestrator narrates
// init failures and shielded render errors through.
func WithLogger(l *Logger) OrchestratorOption {
	return func(c *OrchestratorConfig) { c.Logger = l }
}
