package crucible

import (
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// ResolutionKind classifies what a specifier resolved to.
type ResolutionKind string

const (
	ResolutionBuiltin  ResolutionKind = "builtin"
	ResolutionFile     ResolutionKind = "file"
	ResolutionExternal ResolutionKind = "external"
)

// Resolution is the result of Resolve.
type Resolution struct {
	Kind     ResolutionKind
	Path     string // absolute VFS path, for ResolutionFile
	Builtin  string // built-in name, for ResolutionBuiltin
	URL      string // CDN URL, for ResolutionExternal
	Format   moduleFormat
}

// ExternalFetcher fetches the body of an external (CDN) module URL. The
// Resolver only decides *that* a specifier is external; fetching it is
// the loader's job, not the resolver's.
type ExternalFetcher func(url string) (string, error)

// Resolver implements the specifier resolution algorithm.
type Resolver struct {
	cfg ResolverConfig
	vfs *VFS
	pkg *packageCache

	fetchGroup singleflight.Group
	fetcher    ExternalFetcher
}

// NewResolver creates a Resolver bound to a VFS.
func NewResolver(vfs *VFS, cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg, vfs: vfs, pkg: newPackageCache()}
}

// SetExternalFetcher wires the HTTP fetch used to actually retrieve an
// external module's body once Resolve has classified it as external.
func (r *Resolver) SetExternalFetcher(fn ExternalFetcher) {
	r.fetcher = fn
}

// Resolve maps a specifier to a builtin, a VFS file, or an external URL.
func (r *Resolver) Resolve(specifier, fromFile string) (Resolution, error) {
	if IsBuiltin(specifier) {
		return Resolution{Kind: ResolutionBuiltin, Builtin: stripNodePrefix(specifier)}, nil
	}
	if strings.HasPrefix(specifier, "node:") {
		return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: specifier, FromFile: fromFile}
	}

	if isRelativeOrAbsolute(specifier) {
		return r.resolveFileOrDirectory(specifier, fromFile)
	}

	res, err := r.resolvePackage(specifier, fromFile)
	if err == nil {
		return res, nil
	}

	if looksLikeNPMPackage(specifier) {
		return Resolution{
			Kind: ResolutionExternal,
			URL:  fmt.Sprintf("%s/%s", strings.TrimRight(r.cfg.CDNURL, "/"), specifier),
		}, nil
	}

	return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: specifier, FromFile: fromFile}
}

func isRelativeOrAbsolute(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || strings.HasPrefix(specifier, "/")
}

// resolveFileOrDirectory tries, in order: an exact file,
// extension probing, then directory resolution.
func (r *Resolver) resolveFileOrDirectory(specifier, fromFile string) (Resolution, error) {
	dir, _ := splitPath(fromFile)
	abs := NormalizePath(specifier, dir)

	if r.vfs.Exists(abs) {
		if stats, err := r.vfs.Stat(abs); err == nil && stats.IsFile {
			return Resolution{Kind: ResolutionFile, Path: abs, Format: inferFormat(r.vfs, r.pkg, abs)}, nil
		}
	}

	for _, ext := range r.cfg.Extensions {
		candidate := abs + ext
		if ext == ".node" {
			continue
		}
		if r.vfs.Exists(candidate) {
			return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
		}
	}
	if r.vfs.Exists(abs + ".node") {
		return Resolution{}, &LoaderError{Kind: LoaderNativeUnsupported, Filename: abs + ".node", Message: "native modules unsupported"}
	}

	if stats, err := r.vfs.Stat(abs); err == nil && stats.IsDirectory {
		return r.resolveDirectory(abs)
	}

	return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: specifier, FromFile: fromFile}
}

func (r *Resolver) resolveDirectory(dir string) (Resolution, error) {
	pkgPath := joinPOSIX(dir, "package.json")
	if pkg := r.pkg.load(r.vfs, pkgPath); pkg != nil {
		if target, ok := resolveExports(pkg.Exports, "."); ok {
			candidate := NormalizePath(target, dir)
			if r.vfs.Exists(candidate) {
				return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
			}
		}
		for _, field := range []string{pkg.Main, pkg.Module} {
			if field == "" {
				continue
			}
			candidate := NormalizePath(field, dir)
			if r.vfs.Exists(candidate) {
				return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
			}
		}
	}

	for _, ext := range r.cfg.Extensions {
		if ext == ".node" {
			continue
		}
		candidate := joinPOSIX(dir, "index"+ext)
		if r.vfs.Exists(candidate) {
			return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
		}
	}

	return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: dir, FromFile: dir}
}

// resolvePackage does the upward node_modules walk,
// package.json.exports first, then a direct file path fallback.
func (r *Resolver) resolvePackage(specifier, fromFile string) (Resolution, error) {
	pkgName, subpath := splitPackageSpecifier(specifier)

	dir, _ := splitPath(fromFile)
	for {
		for _, modRoot := range r.cfg.ModulePaths {
			base := joinPOSIX(dir, strings.TrimPrefix(modRoot, "/"))
			pkgDir := joinPOSIX(base, pkgName)

			pkgJSONPath := joinPOSIX(pkgDir, "package.json")
			pkg := r.pkg.load(r.vfs, pkgJSONPath)
			if pkg == nil {
				if r.vfs.Exists(pkgDir) {
					if res, err := r.resolveSubpathDirect(pkgDir, subpath); err == nil {
						return res, nil
					}
				}
				continue
			}

			exportsSubpath := "."
			if subpath != "" {
				exportsSubpath = "./" + subpath
			}
			if target, ok := resolveExports(pkg.Exports, exportsSubpath); ok {
				candidate := NormalizePath(target, pkgDir)
				if r.vfs.Exists(candidate) {
					return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
				}
			}
			if subpath == "" {
				if res, err := r.resolveDirectory(pkgDir); err == nil {
					return res, nil
				}
			}
			if res, err := r.resolveSubpathDirect(pkgDir, subpath); err == nil {
				return res, nil
			}
		}

		if dir == "/" || dir == "" {
			break
		}
		parent, _ := splitPath(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: specifier, FromFile: fromFile}
}

func (r *Resolver) resolveSubpathDirect(pkgDir, subpath string) (Resolution, error) {
	subpath = strings.TrimPrefix(subpath, "/")
	if subpath == "" {
		return r.resolveDirectory(pkgDir)
	}
	candidate := joinPOSIX(pkgDir, subpath)
	if r.vfs.Exists(candidate) {
		if stats, err := r.vfs.Stat(candidate); err == nil && stats.IsFile {
			return Resolution{Kind: ResolutionFile, Path: candidate, Format: inferFormat(r.vfs, r.pkg, candidate)}, nil
		}
	}
	for _, ext := range r.cfg.Extensions {
		if ext == ".node" {
			continue
		}
		if r.vfs.Exists(candidate + ext) {
			return Resolution{Kind: ResolutionFile, Path: candidate + ext, Format: inferFormat(r.vfs, r.pkg, candidate+ext)}, nil
		}
	}
	return Resolution{}, &ResolverError{Kind: ResolverModuleNotFound, Specifier: subpath, FromFile: pkgDir}
}

// splitPackageSpecifier separates "lodash/fp/map" into ("lodash", "fp/map")
// and "@scope/pkg/sub" into ("@scope/pkg", "sub"); scoped names take
// two leading segments.
func splitPackageSpecifier(specifier string) (pkgName, subpath string) {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		pkgName = parts[0] + "/" + parts[1]
		subpath = strings.Join(parts[2:], "/")
		return
	}
	pkgName = parts[0]
	subpath = strings.Join(parts[1:], "/")
	return
}

func looksLikeNPMPackage(specifier string) bool {
	if specifier == "" {
		return false
	}
	if strings.HasPrefix(specifier, "@") {
		return strings.Contains(specifier, "/")
	}
	c := specifier[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// FetchExternal retrieves the body of a previously resolved external
// module, coalescing concurrent requests for the same URL into one
// in-flight fetch.
func (r *Resolver) FetchExternal(url string) (string, error) {
	if r.fetcher == nil {
		return "", fmt.Errorf("🔴 fetch external %s: no fetcher configured", url)
	}
	v, err, _ := r.fetchGroup.Do(url, func() (interface{}, error) {
		return r.fetcher(url)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
