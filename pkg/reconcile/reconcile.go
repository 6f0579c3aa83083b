// Package reconcile compares the packages a project imports against the
// packages its manifest declares.
package reconcile

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/depaudit/pkg/models"
)

// VersionResolver returns the installed version of a package, or false when
// it is unknown.
type VersionResolver func(name string) (string, bool)

// Input is everything the reconciler needs. Resolver selects installed mode
// for mismatch detection; when nil, group mode compares the two manifest groups.
type Input struct {
	ImportPaths [][]string
	Runtime     map[string]string
	Dev         map[string]string
	Resolver    VersionResolver
	// Ignore lists names removed from both the unused and missing results.
	Ignore []string
	// SkipBuiltins drops undeclared core runtime modules (fs, node:path) from
	// the used set so they are never reported missing.
	SkipBuiltins bool
}

// Result is the project-level outcome of reconciliation. All slices are
// sorted and non-nil.
type Result struct {
	Used       []string
	Declared   []string
	Unused     []string
	Missing    []string
	Mismatched []models.Mismatch
}

// UsedPackages folds per-file import paths into the sorted, deduplicated set
// of top-level package names. Every non-relative path contributes a name.
func UsedPackages(importPaths [][]string) []string {
	seen := make(map[string]struct{})
	for _, paths := range importPaths {
		for _, p := range paths {
			name := PackageName(p)
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Reconcile computes unused, missing and mismatched dependencies.
func Reconcile(in Input) Result {
	declaredSet := make(map[string]struct{}, len(in.Runtime)+len(in.Dev))
	for name := range in.Runtime {
		declaredSet[name] = struct{}{}
	}
	for name := range in.Dev {
		declaredSet[name] = struct{}{}
	}
	declared := sortedKeys(declaredSet)

	// A builtin name that the manifest declares is an npm package shadowing
	// the core module, so it is kept even when builtins are skipped.
	var used []string
	for _, name := range UsedPackages(in.ImportPaths) {
		if _, ok := declaredSet[name]; !ok && in.SkipBuiltins && IsBuiltin(name) {
			continue
		}
		used = append(used, name)
	}
	if used == nil {
		used = []string{}
	}

	ids := newInterner()
	usedBM := ids.bitmap(used)
	declaredBM := ids.bitmap(declared)
	ignoreBM := ids.bitmap(in.Ignore)

	unused := roaring.AndNot(declaredBM, usedBM)
	unused.AndNot(ignoreBM)
	missing := roaring.AndNot(usedBM, declaredBM)
	missing.AndNot(ignoreBM)

	var mismatched []models.Mismatch
	if in.Resolver != nil {
		mismatched = installedMismatches(declared, in.Runtime, in.Dev, in.Resolver)
	} else {
		mismatched = groupMismatches(in.Runtime, in.Dev)
	}

	return Result{
		Used:       used,
		Declared:   declared,
		Unused:     ids.names(unused),
		Missing:    ids.names(missing),
		Mismatched: mismatched,
	}
}

// groupMismatches reports names declared in both groups with different specs.
func groupMismatches(runtime, dev map[string]string) []models.Mismatch {
	out := []models.Mismatch{}
	for _, name := range sortedMapKeys(runtime) {
		devSpec, ok := dev[name]
		if !ok || devSpec == runtime[name] {
			continue
		}
		out = append(out, models.Mismatch{
			Name:                   name,
			Kind:                   models.MismatchGroup,
			DeclaredRuntimeVersion: runtime[name],
			DeclaredDevVersion:     devSpec,
		})
	}
	return out
}

// installedMismatches compares each declared spec, runtime group first,
// against the installed version. Packages without installed data are skipped.
func installedMismatches(declared []string, runtime, dev map[string]string, resolve VersionResolver) []models.Mismatch {
	out := []models.Mismatch{}
	for _, name := range declared {
		spec, ok := runtime[name]
		if !ok {
			spec = dev[name]
		}
		installed, ok := resolve(name)
		if !ok || installed == "" {
			continue
		}
		if StripRange(spec) == StripRange(installed) {
			continue
		}
		out = append(out, models.Mismatch{
			Name:             name,
			Kind:             models.MismatchInstalled,
			DeclaredVersion:  spec,
			InstalledVersion: installed,
		})
	}
	return out
}

// interner maps package names to dense IDs so set algebra can run on bitmaps.
type interner struct {
	ids    map[string]uint32
	labels []string
}

func newInterner() *interner {
	return &interner{ids: make(map[string]uint32)}
}

func (in *interner) id(name string) uint32 {
	if id, ok := in.ids[name]; ok {
		return id
	}
	id := uint32(len(in.labels))
	in.ids[name] = id
	in.labels = append(in.labels, name)
	return id
}

func (in *interner) bitmap(names []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range names {
		bm.Add(in.id(n))
	}
	return bm
}

// names returns the sorted names of the IDs in bm.
func (in *interner) names(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, in.labels[it.Next()])
	}
	sort.Strings(out)
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
