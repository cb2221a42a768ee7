package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/groups"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/resolve"
)

// ServiceCaller is the part of the Home Assistant client device control
// needs.
type ServiceCaller interface {
	CallService(ctx context.Context, service string, targets []string, params map[string]any) error
}

// Device executes execute_task commands: resolve the target, expand
// groups, and make exactly one service call.
type Device struct {
	ha       ServiceCaller
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// NewDevice creates the device-control executor.
func NewDevice(ha ServiceCaller, resolver *resolve.Resolver, logger *slog.Logger) *Device {
	if resolver == nil {
		resolver = resolve.NewResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{ha: ha, resolver: resolver, logger: logger.With("component", "device")}
}

func (d *Device) Execute(ctx context.Context, req *Request, cmd command.Command) (Result, error) {
	service := cmd.String("service")
	if service == "" {
		return Result{}, errors.New("service not found in command")
	}
	_, action, err := homeassistant.SplitService(service)
	if err != nil {
		return Result{}, &FailureError{
			Message: fmt.Sprintf("Error: Invalid service format '%s'. Expected 'domain.action'.", service),
			Err:     ErrInvalidService,
		}
	}

	names := make(map[string]string, len(req.Entities))
	for _, e := range req.Entities {
		names[e.ID] = e.Name
	}

	refs := targetRefs(cmd)
	if len(refs) == 0 {
		refs = []string{""}
	}
	var targets []string
	for _, ref := range refs {
		if _, known := names[ref]; known {
			targets = append(targets, ref)
			continue
		}
		id, ok := d.resolver.Resolve(req.Prompt, ref, req.Entities)
		if !ok {
			d.logger.Info("no entity matched", "reference", ref)
			return Result{}, &FailureError{Message: fmt.Sprintf("could not find a matching device for '%s'", ref)}
		}
		d.logger.Debug("entity resolved", "reference", ref, "entity_id", id)
		targets = append(targets, id)
	}

	expanded, err := groups.Expand(targets, req.States)
	if err != nil {
		d.logger.Warn("could not fully expand", "targets", targets, "error", err)
	}

	if err := d.ha.CallService(ctx, service, expanded, cmd.Parameters()); err != nil {
		return Result{}, err
	}

	friendly := make([]string, len(targets))
	for i, id := range targets {
		friendly[i] = names[id]
		if friendly[i] == "" {
			friendly[i] = id
		}
	}
	return Result{
		Text:      fmt.Sprintf("executed %s on the %s", strings.ReplaceAll(action, "_", " "), strings.Join(friendly, " and the ")),
		EntityIDs: expanded,
	}, nil
}

// targetRefs reads entity_id, which the model may give as one string or
// a list.
func targetRefs(cmd command.Command) []string {
	switch v := cmd["entity_id"].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []any:
		var refs []string
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				refs = append(refs, s)
			}
		}
		return refs
	}
	return nil
}
