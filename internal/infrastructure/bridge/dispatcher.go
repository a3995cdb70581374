package bridge

import (
	"context"
	"fmt"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
)

// Dispatcher routes gateway interactions to the lifecycle and control
// services.
type Dispatcher struct {
	lifecycle *services.LifecycleService
	controls  *services.ControlService
}

func NewDispatcher(lifecycle *services.LifecycleService, controls *services.ControlService) *Dispatcher {
	return &Dispatcher{lifecycle: lifecycle, controls: controls}
}

// CollectInput asks the actor for a value the interaction left blank.
func (d *Dispatcher) CollectInput(ctx context.Context, in Interaction, field string) (string, services.Result) {
	return d.controls.Ask(ctx, &in.Room, &in.Actor, field)
}

func (d *Dispatcher) HandleInteraction(ctx context.Context, in Interaction) services.Result {
	room, actor := &in.Room, &in.Actor

	switch in.Action {
	case ActionOwner:
		temp, found := d.lifecycle.Room(ctx, room.ID)
		if !found {
			return services.Result{Kind: services.ResultNotFound, Err: domain.ErrRoomNotFound}
		}
		return services.Result{Kind: services.ResultOK, Room: temp}
	case ActionClaim:
		return d.lifecycle.ClaimOwnership(ctx, room, actor)
	case ActionLock:
		return d.controls.Lock(ctx, room, actor)
	case ActionUnlock:
		return d.controls.Unlock(ctx, room, actor)
	case ActionRename:
		if in.Value == "" {
			return d.controls.Prompted(ctx, room, actor, services.FieldRoomName)
		}
		return d.controls.Rename(ctx, room, actor, in.Value)
	case ActionResize:
		if in.Value == "" {
			return d.controls.Prompted(ctx, room, actor, services.FieldRoomSize)
		}
		limit, err := services.ParseUserLimit(in.Value)
		if err != nil {
			return services.Result{Kind: services.ResultInvalidInput, Err: err}
		}
		return d.controls.Resize(ctx, room, actor, limit)
	case ActionStatus:
		if in.Value == "" {
			return d.controls.Prompted(ctx, room, actor, services.FieldRoomStatus)
		}
		return d.controls.SetStatus(ctx, room, actor, in.Value)
	}

	if in.Target == nil {
		return services.Result{Kind: services.ResultInvalidInput, Err: fmt.Errorf("%w: %s needs a target", domain.ErrInvalidInput, in.Action)}
	}

	switch in.Action {
	case ActionTransfer:
		return d.controls.Transfer(ctx, room, actor, in.Target.ID)
	case ActionKick:
		return d.controls.Evict(ctx, room, actor, in.Target, domain.EvictKick)
	case ActionBan:
		return d.controls.Evict(ctx, room, actor, in.Target, domain.EvictBan)
	case ActionInvite:
		return d.controls.Invite(ctx, room, actor, in.Target.ID)
	default:
		return services.Result{Kind: services.ResultInvalidInput, Err: fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, in.Action)}
	}
}
