package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repair"
	"github.com/dmitrijs2005/quotekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

var errSyncDisabled = errors.New("sync is not configured")

type syncReport struct {
	migrated map[models.EntityType]int
	results  []syncer.Result
	repair   repair.Summary
}

// syncOnce migrates pre-sign-in records, syncs every entity and runs the
// repair pass. Manual and scheduled runs go through here.
func (a *App) syncOnce(ctx context.Context) (syncReport, error) {
	var rep syncReport
	if a.Syncer == nil {
		return rep, errSyncDisabled
	}

	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	rep.migrated = make(map[models.EntityType]int, len(models.EntityTypes))
	for _, e := range models.EntityTypes {
		n, err := a.Syncer.Migrate(ctx, e)
		if errors.Is(err, common.ErrNoOwner) {
			return rep, err
		}
		if err != nil {
			a.Logger.Warn(ctx, "migration incomplete", "entity", e, "error", err)
		}
		rep.migrated[e] = n
	}

	results, err := a.Syncer.SyncAll(ctx)
	rep.results = results
	if err != nil {
		return rep, err
	}

	if a.Repairer != nil {
		sum, err := a.Repairer.Run(ctx)
		rep.repair = sum
		if err != nil {
			return rep, fmt.Errorf("repair: %w", err)
		}
	}
	return rep, nil
}

// Sync runs one full sync from the prompt and prints what happened.
func (a *App) Sync(ctx context.Context) error {
	rep, err := a.syncOnce(ctx)
	for _, e := range models.EntityTypes {
		if n := rep.migrated[e]; n > 0 {
			a.printf("Uploaded %d %s created before sign-in\n", n, e)
		}
	}
	for _, r := range rep.results {
		a.printResult(r)
	}
	if err != nil {
		return err
	}
	a.printSummary(rep.repair)
	return nil
}

func (a *App) printResult(r syncer.Result) {
	if r.Skipped != syncer.NotSkipped {
		a.printf("%-10s skipped (%s)\n", r.Entity, r.Skipped)
		return
	}
	status := "ok"
	if !r.Success {
		status = fmt.Sprintf("%d failed", r.Failures)
	}
	a.printf("%-10s down %d, up %d, deleted %d, %s", r.Entity, r.Downloaded, r.Uploaded, r.Deleted, status)
	if r.HasMore {
		a.printf(", more pending")
	}
	a.printf("\n")
}

// Repair runs the repair pass on its own.
func (a *App) Repair(ctx context.Context) error {
	if a.Repairer == nil {
		return errSyncDisabled
	}
	sum, err := a.Repairer.Run(ctx)
	if err != nil {
		return err
	}
	a.printSummary(sum)
	return nil
}

func (a *App) printSummary(s repair.Summary) {
	if s.AssembliesRepaired == 0 && s.SeedAssembliesRemoved == 0 && len(s.Unfixable) == 0 && len(s.Errors) == 0 {
		a.printf("Checked %d assemblies, nothing to repair\n", s.AssembliesChecked)
		return
	}
	a.printf("Checked %d assemblies: %d repaired (%d items), %d seed assemblies removed\n",
		s.AssembliesChecked, s.AssembliesRepaired, s.ItemsFixed, s.SeedAssembliesRemoved)
	for _, id := range s.Unfixable {
		a.printf("  needs attention: %s\n", id)
	}
	for _, e := range s.Errors {
		a.printf("  error: %s\n", e)
	}
}

// StartAutoSync runs syncOnce on a cron schedule until ctx ends. Runs are
// skipped while signed out or offline.
func (a *App) StartAutoSync(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sync schedule: %w", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { a.scheduledSync(ctx) }); err != nil {
		return err
	}
	c.Start()
	a.Logger.Info(ctx, "auto sync scheduled", "schedule", schedule)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

func (a *App) scheduledSync(ctx context.Context) {
	if ctx.Err() != nil || a.Mode() != ModeOnline || !a.isLoggedIn() {
		return
	}
	rep, err := a.syncOnce(ctx)
	if err != nil {
		a.Logger.Warn(ctx, "scheduled sync failed", "error", err)
		return
	}
	for _, r := range rep.results {
		a.Logger.Info(ctx, "scheduled sync", "entity", r.Entity, "success", r.Success,
			"downloaded", r.Downloaded, "uploaded", r.Uploaded, "skipped", r.Skipped)
	}
	if rep.repair.AssembliesRepaired > 0 || len(rep.repair.Unfixable) > 0 {
		a.Logger.Info(ctx, "repair pass", "repaired", rep.repair.AssembliesRepaired,
			"unfixable", len(rep.repair.Unfixable))
	}
}
