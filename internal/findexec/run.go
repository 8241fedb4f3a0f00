package findexec

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/idelchi/findexec/internal/logging"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// UserDatabase resolves in both directions between usernames and ids.
type UserDatabase interface {
	UserResolver
	UIDResolver
}

// Env carries the collaborators of a run.
type Env struct {
	// Fs is the filesystem to scan. Nil selects the OS filesystem.
	Fs afero.Fs
	// Users is the user database. Nil selects OSUsers.
	Users UserDatabase
	// Logger receives diagnostics. Nil discards them.
	Logger *zerolog.Logger
}

// startProgressReporter invokes hook(files, bytes) on each tick until ctx is done.
func startProgressReporter(ctx context.Context, p *progress, hook func(int64, int64), interval time.Duration) {
	if hook == nil {
		return
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hook(p.snapshot())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Run walks opt.Path, classifies regular files, and groups the matches by owner.
//
// Per-entry problems are collected in Report.Skipped and never returned as
// errors. Run fails only for an invalid strategy, a failed user database
// setup, or cancellation of ctx. Progress updates are sent to progressHook if
// provided.
func Run(ctx context.Context, opt Options, env Env, progressHook func(int64, int64)) (*Report, error) {
	log := zerolog.Nop()
	if env.Logger != nil {
		log = *env.Logger
	}

	fsys := env.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	if opt.Parallel {
		if _, ok := fsys.(*afero.OsFs); !ok {
			return nil, fmt.Errorf("parallel walk requires the OS filesystem, got %s", fsys.Name())
		}
	}

	users := env.Users
	if users == nil {
		osUsers, err := NewOSUsers(DefaultUserCacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating user lookup cache: %w", err)
		}

		users = osUsers
	}

	classifier, err := NewClassifier(opt.Strategy, fsys, logging.WithComponent(log, "classifier"))
	if err != nil {
		return nil, err
	}

	walker := NewWalker(fsys, classifier, users, logging.WithComponent(log, "walker"))
	walker.progress = &progress{}

	// Child context stops the progress reporter once the walk returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startProgressReporter(ctx, walker.progress, progressHook, opt.ProgressInterval)

	log.Debug().
		Str("path", opt.Path).
		Bool("recursive", opt.Recursive).
		Str("exclude", opt.Exclude).
		Strs("exclude_users", opt.ExcludeUsers).
		Str("strategy", opt.Strategy).
		Bool("parallel", opt.Parallel).
		Msg("starting walk")

	start := time.Now()

	result, err := walker.Walk(ctx, opt.Path, WalkConfig{
		Recursive:    opt.Recursive,
		Exclude:      opt.Exclude,
		ExcludeUsers: opt.ExcludeUsers,
		Parallel:     opt.Parallel,
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", opt.Path, err)
	}

	aggregator := NewAggregator(users, opt.KeepUnresolved, logging.WithComponent(log, "aggregator"))
	groups, unresolved := aggregator.Aggregate(result.Entries)

	return &Report{
		Groups:     groups,
		Unresolved: unresolved,
		Skipped:    result.Skipped,
		Matched:    len(result.Entries),
		Elapsed:    time.Since(start),
	}, nil
}
