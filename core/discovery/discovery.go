// Package discovery implements the handler auto-discovery described in
// §4.10: walk a directory for compiled Go plugins and let each one
// register its own routes. This is the Go-native reading of spec.md's
// "recursively enumerate regular files whose name ends with target.<ext>
// and load each once" — Go has no source-level dynamic import, so the
// discoverable unit is a `plugin.Open`-able *target.so rather than a
// script file.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"

	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/pools"
	"github.com/tejasframework/tejas/core/router"
)

// TargetFunc is the signature every plugin must export as `var Target`.
// It runs once, after the plugin is opened, and registers routes against
// reg as a side effect.
type TargetFunc func(reg *router.Registry)

const suffix = "target.so"

// Load walks dir recursively, collects every regular file whose name
// ends in "target.so" (sorted by path), opens each as a Go plugin, and
// invokes its exported `Target` symbol against reg. Plugins are opened
// and invoked in parallel via pool since they're independent of one
// another, so the order in which different plugins register their
// routes is not fixed; concurrent Register calls are safe because
// Register takes the registry's own lock.
//
// A missing Target symbol, a wrong-typed Target, or an Open failure is
// startup-fatal: spec.md §7 says startup errors abort the process, so
// this returns a *ferror.Error with Kind Configuration rather than
// skipping the offending file.
func Load(dir string, reg *router.Registry, pool *pools.WorkerPool) error {
	if dir == "" {
		return nil
	}

	paths, err := collect(dir)
	if err != nil {
		return ferror.New(ferror.Configuration, fmt.Sprintf("discovery: walking %s: %v", dir, err))
	}
	if len(paths) == 0 {
		return nil
	}

	errs := make([]error, len(paths))
	tasks := make([]pools.Task, len(paths))
	for i, p := range paths {
		i, p := i, p
		tasks[i] = func() {
			errs[i] = loadOne(p, reg)
		}
	}
	pool.RunAll(tasks)

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// collect returns every "*target.so" path under dir, sorted by path so
// the returned list is deterministic.
func collect(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func loadOne(path string, reg *router.Registry) error {
	p, err := plugin.Open(path)
	if err != nil {
		return ferror.New(ferror.Configuration, fmt.Sprintf("discovery: opening %s: %v", path, err))
	}

	sym, err := p.Lookup("Target")
	if err != nil {
		return ferror.New(ferror.Configuration, fmt.Sprintf("discovery: %s has no exported Target symbol: %v", path, err))
	}

	target, ok := sym.(*TargetFunc)
	if !ok {
		var fn func(*router.Registry)
		fn, ok = sym.(func(*router.Registry))
		if !ok {
			return ferror.New(ferror.Configuration, fmt.Sprintf("discovery: %s's Target symbol has the wrong type", path))
		}
		fn(reg)
		return nil
	}

	(*target)(reg)
	return nil
}
