package findexec

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/oleiade/lane/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// errNoOwner is recorded when file info carries no owner id.
var errNoOwner = errors.New("owner id unavailable")

// errUnknownUser is recorded when an excluded username has no user database entry.
var errUnknownUser = errors.New("no such user")

// WalkConfig selects which entries a walk considers.
type WalkConfig struct {
	// Recursive enables descent into subdirectories.
	Recursive bool
	// Exclude skips entries whose base name contains it (empty = off).
	Exclude string
	// ExcludeUsers skips entries owned by any of these usernames.
	ExcludeUsers []string
	// Parallel walks with fastwalk instead of the sequential queue.
	Parallel bool
}

// WalkResult holds the matched files and the entries the walk had to skip.
type WalkResult struct {
	Entries []FileEntry
	Skipped []Skip
}

// Walker traverses a directory tree and collects classified files.
type Walker struct {
	// Fs is the filesystem read by the queue walk. Parallel walks always use the OS.
	Fs afero.Fs
	// Classifier decides which regular files match.
	Classifier Classifier
	// Users resolves excluded usernames to ids.
	Users UIDResolver
	// OwnerOf extracts the owner id from file info.
	OwnerOf func(fs.FileInfo) (uint32, bool)

	log      zerolog.Logger
	progress *progress
}

// NewWalker creates a walker reading fsys and logging skipped entries to log.
func NewWalker(fsys afero.Fs, classifier Classifier, users UIDResolver, log zerolog.Logger) *Walker {
	return &Walker{
		Fs:         fsys,
		Classifier: classifier,
		Users:      users,
		OwnerOf:    FileOwner,
		log:        log,
	}
}

// walkState collects results. Parallel walks call into it from several goroutines.
type walkState struct {
	mu      sync.Mutex
	entries []FileEntry
	skipped []Skip
}

func (s *walkState) add(entry FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
}

func (s *walkState) skip(skip Skip) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.skipped = append(s.skipped, skip)
}

// Walk collects matching files under root.
//
// The default walk is breadth-first: every entry of a directory is considered
// before any of its subdirectories. Parallel walks reorder their results into
// the same breadth-first order. Unreadable directories and entries are
// recorded in WalkResult.Skipped and never abort the walk; only context
// cancellation does.
func (w *Walker) Walk(ctx context.Context, root string, cfg WalkConfig) (*WalkResult, error) {
	if root == "" {
		root = "."
	}

	root = filepath.Clean(root)
	state := &walkState{}
	excluded := w.excludedOwners(cfg.ExcludeUsers, state)

	var err error
	if cfg.Parallel {
		err = w.walkParallel(ctx, root, cfg, excluded, state)
	} else {
		err = w.walkQueue(ctx, root, cfg, excluded, state)
	}

	if err != nil {
		return nil, err
	}

	return &WalkResult{Entries: state.entries, Skipped: state.skipped}, nil
}

// excludedOwners resolves excluded usernames once per walk.
func (w *Walker) excludedOwners(names []string, state *walkState) mapset.Set[uint32] {
	set := mapset.NewSet[uint32]()

	for _, name := range names {
		if name == "" {
			continue
		}

		var (
			uid uint32
			ok  bool
		)
		if w.Users != nil {
			uid, ok = w.Users.UID(name)
		}

		if !ok {
			w.log.Warn().Str("user", name).Msg("excluded user not found, ignoring")
			state.skip(Skip{Path: name, Reason: ReasonLookup, Err: errUnknownUser})

			continue
		}

		set.Add(uid)
	}

	return set
}

func (w *Walker) walkQueue(
	ctx context.Context,
	root string,
	cfg WalkConfig,
	excluded mapset.Set[uint32],
	state *walkState,
) error {
	queue := lane.NewQueue[string](root)

	for queue.Size() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir, ok := queue.Dequeue()
		if !ok {
			break
		}

		infos, err := afero.ReadDir(w.Fs, dir)
		if err != nil {
			w.skip(state, Skip{Path: dir, Reason: ReasonReadDir, Err: err})

			continue
		}

		w.log.Trace().Str("path", dir).Int("entries", len(infos)).Msg("read directory")

		for _, info := range infos {
			path := filepath.Join(dir, info.Name())
			if w.visit(path, info, cfg, excluded, state) {
				queue.Enqueue(path)
			}
		}
	}

	return nil
}

func (w *Walker) walkParallel(
	ctx context.Context,
	root string,
	cfg WalkConfig,
	excluded mapset.Set[uint32],
	state *walkState,
) error {
	conf := &fastwalk.Config{
		Follow: false,
	}

	//nolint:varnamelen // d is standard for DirEntry
	err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.skip(state, Skip{Path: path, Reason: ReasonReadDir, Err: err})

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == root {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.skip(state, Skip{Path: path, Reason: ReasonStat, Err: err})

			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !w.visit(path, info, cfg, excluded, state) && d.IsDir() {
			return filepath.SkipDir
		}

		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}

		// fastwalk fails outright when the root itself cannot be read.
		w.skip(state, Skip{Path: root, Reason: ReasonReadDir, Err: err})
	}

	sortBreadthFirst(state.entries, root)
	slices.SortStableFunc(state.skipped, func(a, b Skip) int {
		return cmp.Compare(a.Path, b.Path)
	})

	return nil
}

// visit applies the filters and the classifier to one entry and reports
// whether the entry is a directory to descend into.
func (w *Walker) visit(
	path string,
	info fs.FileInfo,
	cfg WalkConfig,
	excluded mapset.Set[uint32],
	state *walkState,
) bool {
	if info.Mode()&fs.ModeSymlink != 0 {
		return false
	}

	if cfg.Exclude != "" && strings.Contains(info.Name(), cfg.Exclude) {
		w.log.Debug().Str("path", path).Str("substring", cfg.Exclude).Msg("excluding by name")

		return false
	}

	uid, hasOwner := w.ownerOf(info)

	if excluded.Cardinality() > 0 {
		if !hasOwner {
			w.skip(state, Skip{Path: path, Reason: ReasonOwner, Err: errNoOwner})

			return false
		}

		if excluded.Contains(uid) {
			w.log.Debug().Str("path", path).Uint32("uid", uid).Msg("excluding by owner")

			return false
		}
	}

	if info.IsDir() {
		return cfg.Recursive
	}

	if !info.Mode().IsRegular() || !w.Classifier.Match(path, info) {
		return false
	}

	if !hasOwner {
		w.skip(state, Skip{Path: path, Reason: ReasonOwner, Err: errNoOwner})

		return false
	}

	state.add(FileEntry{Path: path, UID: uid, Size: info.Size()})
	w.progress.add(info.Size())

	return false
}

func (w *Walker) ownerOf(info fs.FileInfo) (uint32, bool) {
	if w.OwnerOf == nil {
		return FileOwner(info)
	}

	return w.OwnerOf(info)
}

func (w *Walker) skip(state *walkState, skip Skip) {
	w.log.Debug().Str("path", skip.Path).Str("reason", string(skip.Reason)).Err(skip.Err).Msg("skipping")
	state.skip(skip)
}

// sortBreadthFirst orders entries by depth below root, then by path
// components. This matches the order of a queue walk over name-sorted listings.
func sortBreadthFirst(entries []FileEntry, root string) {
	components := func(path string) []string {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		return strings.Split(rel, string(filepath.Separator))
	}

	slices.SortStableFunc(entries, func(a, b FileEntry) int {
		ca, cb := components(a.Path), components(b.Path)
		if c := cmp.Compare(len(ca), len(cb)); c != 0 {
			return c
		}

		return slices.Compare(ca, cb)
	})
}
