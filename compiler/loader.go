package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/rs/zerolog/log"
)

// Compiles INTERPRET strings for the runtime.
type Translator struct{}

func (Translator) Translate(source string) (*runtime.Code, error) {
	return CompileSource("INTERPRET", source)
}

// File extensions tried, in order, when resolving a program name. Listings
// are YAML; .rex files hold free-form source.
var Extensions = []string{".yaml", ".yml", ".rex"}

// Read and compile one program file, picking the front end by extension.
func LoadFile(path string) (*runtime.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.ToUpper(strings.TrimSuffix(base, ext))
	if ext == ".rex" {
		return CompileSource(name, string(data))
	}
	listing, err := ParseListing(data)
	if err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	return CompileListing(listing, name, strings.Split(string(data), "\n"))
}

// Resolves external routine and ::REQUIRES names to program files under a
// list of directories, compiling each file once.
type DirLoader struct {
	dirs  []string
	mutex sync.Mutex
	cache map[string]*runtime.Code
}

func NewDirLoader(dirs ...string) (*DirLoader, error) {
	unique := []string{}
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("loader: resolve search path %q: %w", dir, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		unique = append(unique, abs)
	}
	return &DirLoader{dirs: unique, cache: make(map[string]*runtime.Code)}, nil
}

// Load a program by name. The name is tried as written and in lower case
// with each extension, in every directory. A name with no file is not an
// error: the result is nil.
func (l *DirLoader) Load(name string) (*runtime.Code, error) {
	key := strings.ToUpper(name)
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if code, ok := l.cache[key]; ok {
		return code, nil
	}
	path, ok := l.resolve(name)
	if !ok {
		log.Debug().Str("name", name).Msg("program not found")
		return nil, nil
	}
	code, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("name", name).Str("path", path).Msg("program loaded")
	l.cache[key] = code
	return code, nil
}

func (l *DirLoader) resolve(name string) (string, bool) {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return "", false
	}
	candidates := []string{name}
	if lower := strings.ToLower(name); lower != name {
		candidates = append(candidates, lower)
	}
	for _, dir := range l.dirs {
		for _, candidate := range candidates {
			for _, ext := range Extensions {
				path := filepath.Join(dir, candidate+ext)
				info, err := os.Stat(path)
				if err == nil && !info.IsDir() {
					return path, true
				}
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					log.Warn().Err(err).Str("path", path).Msg("program file unreadable")
				}
			}
		}
	}
	return "", false
}
