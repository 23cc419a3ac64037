package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

func init() {
	registerBuiltin("log", NewLogModule)
	registerBuiltin("reapply", NewReapplyModule)
}

// LogModule logs when its instance is enabled and disabled.
// Params: "message" (optional text added to both records).
type LogModule struct {
	message string
}

func NewLogModule(params map[string]string) (Module, error) {
	return &LogModule{message: params["message"]}, nil
}

func (l *LogModule) Kind() string { return "log" }

func (l *LogModule) Enable(mc *ModuleContext) {
	slog.Info("effect enabled",
		"instance", mc.Instance.String(),
		"entity", mc.Entity(),
		"stacks", mc.Instance.Stacks(),
		"message", l.message)
}

func (l *LogModule) Disable(mc *ModuleContext) {
	slog.Info("effect disabled",
		"instance", mc.Instance.String(),
		"entity", mc.Entity(),
		"message", l.message)
}

// ReapplyModule adds stacks of another definition at a fixed wall-clock
// period while its instance lives.
// Params: "definition" (required id), "every" (Go duration, default 1s),
// "stacks" (default 1), "duration" (seconds of Advance time, 0 = infinite).
type ReapplyModule struct {
	target   DefinitionID
	every    time.Duration
	stacks   int
	duration float64
}

func NewReapplyModule(params map[string]string) (Module, error) {
	r := &ReapplyModule{
		target: DefinitionID(params["definition"]),
		every:  time.Second,
		stacks: 1,
	}
	if r.target == "" {
		return nil, errors.New("reapply: missing definition param")
	}
	if s := params["every"]; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("reapply: parsing every: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("reapply: every must be positive, got %s", d)
		}
		r.every = d
	}
	if s := params["stacks"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("reapply: parsing stacks: %w", err)
		}
		r.stacks = n
	}
	if s := params["duration"]; s != "" {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("reapply: parsing duration: %w", err)
		}
		r.duration = d
	}
	return r, nil
}

func (r *ReapplyModule) Kind() string              { return "reapply" }
func (r *ReapplyModule) Enable(mc *ModuleContext)  {}
func (r *ReapplyModule) Disable(mc *ModuleContext) {}

func (r *ReapplyModule) Run(ctx context.Context, mc *ModuleContext) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !mc.Alive() {
			return
		}
		cat := mc.Catalog()
		if cat == nil {
			slog.Warn("reapply module without catalog", "instance", mc.Instance.String())
			return
		}
		def, ok := cat.Get(r.target)
		if !ok {
			slog.Warn("reapply target not found",
				"instance", mc.Instance.String(), "target", r.target)
			return
		}

		if r.duration > 0 {
			mc.Manager.AddTimedEffect(def, r.duration, WithStacks(r.stacks))
		} else {
			mc.Manager.AddEffect(def, WithStacks(r.stacks))
		}
	}
}
