package store

import (
	"errors"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/compiler/hash"
)

// HashSource is the cache key of program text. Programs that differ only
// in comments, layout or letter case of names share a key.
func HashSource(text string) string {
	return hash.Hex(hash.HashProgram(compiler.LoadSourceProgram(text)))
}

// Build compiles text, consulting cache first when it is not nil. cached
// reports whether the artifact came from the cache. Compile failures are
// returned as the compiler's ErrorList together with the partial result.
func Build(c *compiler.Compiler, cache *Cache, text string) (a *Artifact, prog *compiler.CompiledProgram, cached bool, err error) {
	key := HashSource(text)
	if cache != nil {
		a, err := cache.Get(key)
		switch {
		case err == nil:
			log.Debugf("cache hit %s", key)
			return a, nil, true, nil
		case !errors.Is(err, ErrNotCached):
			log.Warningf("cache read failed: %s", err)
		}
	}

	prog, err = c.CompileText(text)
	if err != nil {
		return nil, prog, false, err
	}
	a, err = NewArtifact(key, prog)
	if err != nil {
		return nil, prog, false, err
	}
	if cache != nil {
		if err := cache.Put(key, a); err != nil {
			log.Warningf("cache write failed: %s", err)
		}
	}
	return a, prog, false, nil
}
