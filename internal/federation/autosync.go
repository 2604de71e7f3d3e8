package federation

import (
	"log/slog"
	"time"

	"github.com/robfig/cron"

	"github.com/antigravity-dev/workgraphd/internal/identity"
)

// AutoSync runs Transfer against every configured remote on a cron
// schedule, reusing the exact same merge algorithm an operator-triggered
// pull would invoke — this is scheduling convenience, not a second merge
// path.
type AutoSync struct {
	cron         *cron.Cron
	workgraphDir string
	target       identity.Dirs
	opts         TransferOptions
	log          *slog.Logger
}

// NewAutoSync builds an AutoSync that merges every named remote in
// workgraphDir's federation.yaml into target; the schedule is passed to
// Start.
func NewAutoSync(workgraphDir string, target identity.Dirs, opts TransferOptions, log *slog.Logger) *AutoSync {
	if log == nil {
		log = slog.Default()
	}
	return &AutoSync{
		cron:         cron.New(),
		workgraphDir: workgraphDir,
		target:       target,
		opts:         opts,
		log:          log,
	}
}

// Start registers the sync job on schedule, parsed by robfig/cron v1's
// default parser: six fields with seconds first (second minute hour
// day-of-month month [day-of-week]) or a descriptor such as @hourly. The
// job does not run until Run is called.
func (a *AutoSync) Start(schedule string) error {
	return a.cron.AddFunc(schedule, a.syncAll)
}

// Run blocks the calling goroutine running scheduled jobs; callers
// typically invoke this via `go a.Run()`.
func (a *AutoSync) Run() { a.cron.Run() }

// Stop halts the scheduler; in-flight syncs are allowed to finish.
func (a *AutoSync) Stop() { a.cron.Stop() }

func (a *AutoSync) syncAll() {
	cfg, err := LoadConfig(a.workgraphDir)
	if err != nil {
		a.log.Error("auto-sync: load federation config", "error", err)
		return
	}
	for name, remote := range cfg.Remotes {
		source, err := ResolveStore(remote.Path)
		if err != nil {
			a.log.Error("auto-sync: resolve remote", "remote", name, "error", err)
			continue
		}
		summary, err := Transfer(source, a.target, a.opts)
		if err != nil {
			a.log.Error("auto-sync: transfer", "remote", name, "error", err)
			continue
		}
		if err := TouchRemoteSync(a.workgraphDir, name, time.Now()); err != nil {
			a.log.Error("auto-sync: touch remote sync", "remote", name, "error", err)
		}
		a.log.Info("auto-sync: merged remote", "remote", name,
			"roles_added", summary.RolesAdded, "objectives_added", summary.ObjectivesAdded,
			"agents_added", summary.AgentsAdded, "rewards_added", summary.RewardsAdded)
	}
}
