package farmhand

import (
	"fmt"
	"log/slog"
)

// RunCycle executes one observe → triage → decide → act cycle and records
// it in mem.
func RunCycle(o *Observer, a *Actor, mem *CycleMemory) (*Decision, error) {
	snap, err := o.Observe()
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap)
	slog.Info("observation complete",
		"money", snap.Status.Money,
		"tier", snap.Status.Tier,
		"plots", snap.Status.Stats.Plots,
		"ready", len(health.SafeReady)+len(health.FatalReady),
		"condition", health.Condition,
	)

	decision := Decide(snap, health, mem)
	slog.Info("decision made", "action", decision.Action, "target", decision.Target, "rationale", decision.Rationale)

	rec := CycleRecord{
		Tick:      snap.Status.Tick,
		Action:    decision.Action,
		Target:    decision.Target,
		Money:     snap.Status.Money,
		Level:     snap.Status.Level,
		Condition: health.Condition,
		Rationale: decision.Rationale,
	}
	if decision.Action == "none" {
		rec.Success = true
		mem.Record(rec)
		return decision, nil
	}

	result, err := a.Act(decision)
	if err != nil {
		mem.Record(rec)
		return decision, fmt.Errorf("act: %w", err)
	}
	rec.Success = result.Success
	mem.Record(rec)

	if result.Success {
		slog.Info("action executed", "action", decision.Action, "target", decision.Target)
	} else {
		slog.Warn("action refused", "action", decision.Action, "target", decision.Target, "response", result.Body)
	}
	return decision, nil
}
