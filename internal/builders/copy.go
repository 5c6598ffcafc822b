package builders

import (
	"context"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/registry"
)

// Copy copies the source verbatim. An output whose content already matches
// is left alone so its mtime survives.
func Copy(env Env) registry.Factory {
	return func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(ctx context.Context) (*registry.Result, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			content, err := env.Src.ReadText(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if err := writeIfChanged(env, path, content); err != nil {
				return nil, err
			}
			return registry.Leaf(path), nil
		}), nil
	}
}

// fileDigest hashes p without loading it into memory.
func fileDigest(f fsys.FS, p string) ([32]byte, error) {
	var sum [32]byte
	r, err := f.Open(p)
	if err != nil {
		return sum, err
	}
	defer func() { _ = r.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// writeIfChanged writes content to out unless the destination already holds
// identical bytes.
func writeIfChanged(env Env, out, content string) error {
	if existing, err := fileDigest(env.Dest, out); err == nil && existing == blake3.Sum256([]byte(content)) {
		return nil
	}
	return env.Dest.WriteText(out, content)
}
