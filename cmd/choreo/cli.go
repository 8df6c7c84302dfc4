package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/swarmstage/choreo/internal/dispatcher"
	"github.com/swarmstage/choreo/internal/safety"
	"github.com/swarmstage/choreo/internal/scheduler"
	"github.com/swarmstage/choreo/internal/showfile"
	"github.com/swarmstage/choreo/internal/storage"
	"github.com/swarmstage/choreo/internal/storyboard"
	"github.com/swarmstage/choreo/pkg/core"
)

const configFileName = "choreo.cfg.json"

// showContext bundles a loaded show document with the scheduler built for it.
type showContext struct {
	doc   *showfile.Document
	sched *scheduler.Scheduler
}

// loadShow parses the show document, persists its metadata and formations,
// and builds the scheduler for it.
func (a *app) loadShow(path string) (*showContext, error) {
	if path == "" {
		return nil, fmt.Errorf("missing -show flag")
	}

	doc, err := showfile.Load(path)
	if err != nil {
		return nil, err
	}
	a.showName = doc.Name

	info := &core.ShowInfo{
		Name:      doc.Name,
		NumDrones: doc.NumDrones(),
	}
	if doc.Origin != nil {
		info.Latitude = doc.Origin.Latitude
		info.Longitude = doc.Origin.Longitude
	}
	if err := a.backend.SaveShow(info); err != nil {
		return nil, fmt.Errorf("saving show: %w", err)
	}
	for name, formation := range doc.Formations {
		if err := a.backend.SaveFormation(name, formation.Markers); err != nil {
			return nil, fmt.Errorf("saving formation %q: %w", name, err)
		}
	}

	a.logger.Info("Show loaded",
		"name", doc.Name,
		"drones", doc.NumDrones(),
		"entries", doc.Storyboard.Len(),
	)

	return &showContext{
		doc:   doc,
		sched: scheduler.New(a.client, a.backend, doc.Home, a.logger),
	}, nil
}

func registerCommands(d *dispatcher.Dispatcher, a *app) {
	d.Register("validate", a.cmdValidate, dispatcher.Logged())
	d.Register("recalculate", a.cmdRecalculate, dispatcher.Logged())
	d.Register("takeoff", a.cmdTakeoff, dispatcher.Logged())
	d.Register("land", a.cmdLand, dispatcher.Logged())
	d.Register("suggest", a.cmdSuggest, dispatcher.Logged())
	d.Register("rth", a.cmdReturnToHome, dispatcher.Logged())
	d.Register("safety", a.cmdSafety, dispatcher.Logged())
	d.Register("limits", a.cmdLimits, dispatcher.Logged())
	d.Register("export", a.cmdExport, dispatcher.Logged())
}

func (a *app) cmdValidate(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	// Load already runs timeline validation.
	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("show %q is valid: %d drones, %d storyboard entries",
		sc.doc.Name, sc.doc.NumDrones(), sc.doc.Storyboard.Len()), nil
}

func (a *app) cmdRecalculate(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("recalculate", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	scopeName := fs.String("scope", "all", "recalculation scope: all, current-frame, to-selected, from-selected, from-selected-to-end")
	frame := fs.Int("frame", 0, "current frame for the current-frame scope")
	entryName := fs.String("entry", "", "name of the selected entry for the selection scopes")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	scope, err := scheduler.ParseScope(*scopeName)
	if err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}
	if scope != scheduler.ScopeAll && scope != scheduler.ScopeCurrentFrame && *entryName == "" {
		return nil, fmt.Errorf("scope %s needs the -entry flag", *scopeName)
	}
	if *entryName != "" {
		entry := entryByName(sc, *entryName)
		if entry == nil {
			return nil, fmt.Errorf("no storyboard entry named %q", *entryName)
		}
		sc.doc.Storyboard.SetActiveEntry(entry.ID())
	}

	start := time.Now()
	if err := sc.sched.Recalculate(ctx, sc.doc.Storyboard, scope, *frame); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if reporter := a.newReporter(); reporter != nil {
		defer reporter.Close()
		if err := reporter.WriteRecalculation(elapsed, sc.doc.Storyboard.Len(), sc.doc.NumDrones()); err != nil {
			a.logger.Warn("Failed to report recalculation metrics", "error", err)
		}
	}

	return fmt.Sprintf("recalculated scope %s in %s", *scopeName, elapsed.Round(time.Millisecond)), nil
}

func (a *app) cmdTakeoff(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("takeoff", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	frame := fs.Int("frame", 0, "first frame of the takeoff maneuver")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	entry, err := sc.sched.PlanTakeoff(ctx, sc.doc.Storyboard, scheduler.TakeoffParameters{
		StartFrame:  *frame,
		Velocity:    viper.GetFloat64("takeoff.velocity"),
		Altitude:    viper.GetFloat64("takeoff.altitude"),
		LayerHeight: viper.GetFloat64("takeoff.layerHeight"),
		MinDistance: viper.GetFloat64("safety.proximityThreshold"),
		FPS:         sc.doc.FPS,
	})
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("takeoff planned: entry %q spans frames %d..%d",
		entry.Name, entry.FrameStart, entry.FrameEnd()), nil
}

func (a *app) cmdLand(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("land", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	frame := fs.Int("frame", 0, "first frame of the landing maneuver")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	entry, err := sc.sched.PlanShowLanding(ctx, sc.doc.Storyboard, scheduler.LandParameters{
		StartFrame:   *frame,
		Velocity:     viper.GetFloat64("landing.velocity"),
		Altitude:     viper.GetFloat64("landing.altitude"),
		SpindownTime: viper.GetFloat64("landing.spindownTime"),
		MinDistance:  viper.GetFloat64("safety.proximityThreshold"),
		FPS:          sc.doc.FPS,
	})
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("landing planned: entry %q spans frames %d..%d",
		entry.Name, entry.FrameStart, entry.FrameEnd()), nil
}

func (a *app) cmdSuggest(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	entryName := fs.String("entry", "", "name of the entry to transition into")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}
	index := entryIndexByName(sc, *entryName)
	if index < 0 {
		return nil, fmt.Errorf("no storyboard entry named %q", *entryName)
	}

	frames, err := sc.sched.SuggestTransitionDuration(ctx, sc.doc.Storyboard, index, motionLimits(), sc.doc.FPS)
	if err != nil {
		return nil, err
	}

	seconds := float64(frames) / float64(sc.doc.FPS)
	return fmt.Sprintf("transition into %q needs %d frames (%.2fs at %d fps)",
		*entryName, frames, seconds, sc.doc.FPS), nil
}

func (a *app) cmdReturnToHome(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("rth", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	frame := fs.Int("frame", 0, "frame at which the return starts")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	plan, err := sc.sched.PlanReturnToHome(ctx, sc.doc.Storyboard, *frame, motionLimits(),
		viper.GetFloat64("rth.minDistance"))
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		return "all drones are already at their home positions", nil
	}

	return fmt.Sprintf("return to home from frame %d takes %.2fs, last departure at %.2fs",
		*frame, plan.TotalDuration(), lastStart(plan.StartTimes)), nil
}

func (a *app) cmdSafety(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("safety", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	frame := fs.Int("frame", 0, "frame to check")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	checker := safety.NewChecker(viper.GetFloat64("safety.proximityThreshold"))
	positions := sc.sched.PositionsAtFrame(sc.doc.Storyboard, *frame)
	result := checker.Check(*frame, positions)

	if reporter := a.newReporter(); reporter != nil {
		defer reporter.Close()
		if err := reporter.WriteSafetyCheck(result); err != nil {
			a.logger.Warn("Failed to report safety metrics", "error", err)
		}
	}

	if result.IsSafe() {
		return fmt.Sprintf("frame %d is safe, closest pair %.2fm apart", *frame, result.MinDistance), nil
	}
	return fmt.Sprintf("frame %d has %d pairs below %.2fm, closest %.2fm apart",
		*frame, len(result.PairsBelowThreshold), checker.Threshold(), result.MinDistance), nil
}

func (a *app) cmdLimits(ctx context.Context, c dispatcher.Command) (any, error) {
	limits, err := a.client.Limits(ctx)
	if err != nil {
		return nil, err
	}

	drones := "unlimited"
	if !math.IsInf(limits.NumDrones, 1) {
		drones = fmt.Sprintf("%.0f", limits.NumDrones)
	}
	features := "none"
	if len(limits.Features) > 0 {
		features = strings.Join(limits.Features, ", ")
	}
	return fmt.Sprintf("planning service limits: %s drones, features: %s", drones, features), nil
}

func (a *app) cmdExport(ctx context.Context, c dispatcher.Command) (any, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	showPath := fs.String("show", "", "path to the show file")
	if err := fs.Parse(c.Args); err != nil {
		return nil, err
	}

	sc, err := a.loadShow(*showPath)
	if err != nil {
		return nil, err
	}

	if err := sc.sched.Recalculate(ctx, sc.doc.Storyboard, scheduler.ScopeAll, 0); err != nil {
		return nil, err
	}

	exportable, ok := a.backend.(storage.Exportable)
	if !ok {
		return nil, fmt.Errorf("storage type %q does not support export", viper.GetString("storage.type"))
	}
	path, err := exportable.Export()
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("show plan exported to %s", path), nil
}

func entryByName(sc *showContext, name string) *storyboard.Entry {
	for _, entry := range sc.doc.Storyboard.Entries() {
		if entry.Name == name {
			return entry
		}
	}
	return nil
}

func entryIndexByName(sc *showContext, name string) int {
	for i, entry := range sc.doc.Storyboard.Entries() {
		if entry.Name == name {
			return i
		}
	}
	return -1
}

func motionLimits() scheduler.MotionLimits {
	return scheduler.MotionLimits{
		MaxVelocityXY:   viper.GetFloat64("transition.maxVelocityXY"),
		MaxVelocityZ:    viper.GetFloat64("transition.maxVelocityZ"),
		MaxAcceleration: viper.GetFloat64("transition.maxAcceleration"),
	}
}

func lastStart(starts []float64) float64 {
	last := 0.0
	for _, s := range starts {
		if s > last {
			last = s
		}
	}
	return last
}
