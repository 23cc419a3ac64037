package world

import (
	"errors"
	"fmt"

	"github.com/udisondev/statusfx/internal/config"
	"github.com/udisondev/statusfx/internal/game/status"
)

// ErrEffectRejected is returned when a configured startup effect is not applied.
var ErrEffectRejected = errors.New("effect rejected")

// SpawnAll creates the configured entities and applies their startup effects.
func SpawnAll(w *World, catalog *status.Catalog, entries []config.SpawnEntity) ([]*Entity, error) {
	out := make([]*Entity, 0, len(entries))
	for _, se := range entries {
		e, err := w.Spawn(se.Name, se.Base)
		if err != nil {
			return out, err
		}
		out = append(out, e)

		for i, fx := range se.Effects {
			if err := applySpawnEffect(e, catalog, fx); err != nil {
				return out, fmt.Errorf("entity %s effect %d: %w", se.Name, i, err)
			}
		}
	}
	return out, nil
}

func applySpawnEffect(e *Entity, catalog *status.Catalog, fx config.SpawnEffect) error {
	if catalog == nil {
		return fmt.Errorf("no catalog for definition %q", fx.Definition)
	}
	def, ok := catalog.Get(status.DefinitionID(fx.Definition))
	if !ok {
		return fmt.Errorf("unknown definition %q", fx.Definition)
	}
	mode, err := status.ParseTimingMode(fx.Timing)
	if err != nil {
		return err
	}

	stacks := fx.Stacks
	if stacks == 0 {
		stacks = 1
	}

	var inst *status.Instance
	switch mode {
	case status.TimingInfinite:
		inst = e.Manager.AddEffect(def, status.WithStacks(stacks))
	case status.TimingDuration:
		inst = e.Manager.AddTimedEffect(def, fx.Duration, status.WithStacks(stacks))
	case status.TimingEvent:
		inst = e.Manager.AddEventEffect(def, fx.Duration, status.SignalID(fx.Signal), status.WithStacks(stacks))
	default:
		return fmt.Errorf("timing %s cannot be configured", mode)
	}
	if inst == nil {
		return fmt.Errorf("%w: %s on %s", ErrEffectRejected, fx.Definition, e.Name)
	}
	return nil
}
