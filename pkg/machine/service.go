// Package machine implements the control plane's machine workflows on top
// of the inventory and the agent client registry.
package machine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetwatch/pkg/agentclient"
	"fleetwatch/pkg/events"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IDPrefix starts every machine id.
const IDPrefix = "m-"

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, machine *models.Machine) error
	Get(ctx context.Context, id string) (*models.Machine, error)
	List(ctx context.Context) ([]models.Machine, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.MachineStatus, updated time.Time) error
}

// Agents hands out per-endpoint agent clients. Evict forgets the client of
// an endpoint no machine is registered under.
type Agents interface {
	Client(endpoint string) (*agentclient.Client, error)
	Evict(endpoint string)
}

// Service runs machine operations. It is safe for concurrent use.
type Service struct {
	store  Store
	agents Agents
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires the service. A nil publisher drops events.
func NewService(store Store, agents Agents, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:  store,
		agents: agents,
		events: publisher,
		logger: log.Component("machine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewID allocates a machine id: the prefix followed by 32 hex digits.
func NewID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Register fetches the agent overview at endpoint and records a new machine
// in group. Nothing is written when the overview lacks a system summary.
func (s *Service) Register(ctx context.Context, endpoint, group string) (*models.Machine, error) {
	endpoint = strings.TrimSpace(endpoint)
	group = strings.TrimSpace(group)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if group == "" {
		return nil, fmt.Errorf("%w: group is required", ErrInvalidInput)
	}

	machine, err := s.register(ctx, endpoint, group)
	if err != nil {
		s.agents.Evict(endpoint)
		return nil, err
	}

	s.logger.Info().
		Str("machine_id", machine.ID).
		Str("address", endpoint).
		Str("group", group).
		Msg("Machine registered")

	s.publish(ctx, events.Event{
		Kind:      events.KindRegistered,
		MachineID: machine.ID,
		Group:     group,
		Address:   endpoint,
		State:     machine.Status.State,
		Time:      machine.Added,
	})

	return machine, nil
}

func (s *Service) register(ctx context.Context, endpoint, group string) (*models.Machine, error) {
	client, err := s.agents.Client(endpoint)
	if err != nil {
		return nil, classify(err)
	}

	overview, err := client.GetOverview(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if overview.System == nil {
		return nil, fmt.Errorf("%w: agent %s", ErrNoSummary, endpoint)
	}

	machine := FromOverview(NewID(), endpoint, group, overview, s.now())
	if err := s.store.Insert(ctx, machine); err != nil {
		return nil, classify(err)
	}
	return machine, nil
}

// Describe returns the stored machine.
func (s *Service) Describe(ctx context.Context, id string) (*models.Machine, error) {
	machine, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return machine, nil
}

// List returns every stored machine.
func (s *Service) List(ctx context.Context) ([]models.Machine, error) {
	machines, err := s.store.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return machines, nil
}

// Remove deletes a machine and all of its stored details, then drops the
// agent client unless another machine still uses the same address.
func (s *Service) Remove(ctx context.Context, id string) error {
	machine, err := s.store.Get(ctx, id)
	if err != nil {
		return classify(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return classify(err)
	}
	s.evictUnused(ctx, machine.Address)

	s.logger.Info().Str("machine_id", id).Msg("Machine removed")
	s.publish(ctx, events.Event{Kind: events.KindRemoved, MachineID: id, Time: s.now()})
	return nil
}

// evictUnused evicts the client for address when no stored machine refers
// to it any more. A failed listing keeps the client.
func (s *Service) evictUnused(ctx context.Context, address string) {
	machines, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("address", address).Msg("Keeping agent client")
		return
	}
	for _, m := range machines {
		if m.Address == address {
			return
		}
	}
	s.agents.Evict(address)
}

// Utilization fetches a live resource reading from the machine's agent.
func (s *Service) Utilization(ctx context.Context, id string) (*models.MachineUtilization, error) {
	client, err := s.clientFor(ctx, id)
	if err != nil {
		return nil, err
	}

	overview, err := client.GetOverview(ctx)
	if err != nil {
		return nil, classify(err)
	}

	utilization := &models.MachineUtilization{
		MachineID: id,
		Checked:   s.now(),
		Cores:     []models.CoreSummary{},
		Volumes:   []models.VolumeSummary{},
	}
	if overview.CPU != nil && overview.CPU.CoreUsage != nil {
		utilization.Cores = overview.CPU.CoreUsage
	}
	if overview.Memory != nil {
		utilization.Memory = overview.Memory.Memory
		utilization.Swap = overview.Memory.Swap
	}
	if overview.Volumes != nil {
		utilization.Volumes = overview.Volumes
	}

	return utilization, nil
}

// CheckStatus calls the machine's agent health operation and records the outcome.
// An unreachable agent is recorded as stopped rather than failing.
func (s *Service) CheckStatus(ctx context.Context, id string) (*models.AgentStatus, error) {
	machine, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	client, err := s.agents.Client(machine.Address)
	if err != nil {
		return nil, classify(err)
	}

	start := time.Now()
	_, healthErr := client.Health(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	checked := s.now()

	result := &models.AgentStatus{
		Endpoint:  machine.Address,
		Online:    healthErr == nil,
		LastCheck: checked,
		Latency:   time.Since(start).Milliseconds(),
	}

	state := models.MachineRunning
	if healthErr != nil {
		result.LastError = healthErr.Error()
		state = models.MachineUnknown
		if errors.Is(classify(healthErr), ErrUnreachable) {
			state = models.MachineStopped
		}
	}

	status := models.MachineStatus{State: state, LastChecked: checked}
	if err := s.store.UpdateStatus(ctx, id, status, checked); err != nil {
		return nil, classify(err)
	}

	if state != machine.Status.State {
		s.logger.Info().
			Str("machine_id", id).
			Str("from", string(machine.Status.State)).
			Str("to", string(state)).
			Msg("Machine state changed")
		s.publish(ctx, events.Event{
			Kind:      events.KindStatus,
			MachineID: id,
			Group:     machine.Group,
			Address:   machine.Address,
			State:     state,
			Time:      checked,
		})
	}

	return result, nil
}

// ContainerLogs opens a follow-mode log stream for a container on the
// machine's agent. The caller must close the stream.
func (s *Service) ContainerLogs(ctx context.Context, id, containerID string) (*agentclient.LogStream, error) {
	if strings.TrimSpace(containerID) == "" {
		return nil, fmt.Errorf("%w: container id is required", ErrInvalidInput)
	}

	client, err := s.clientFor(ctx, id)
	if err != nil {
		return nil, err
	}

	stream, err := client.GetContainerLogs(ctx, containerID)
	if err != nil {
		return nil, classify(err)
	}
	return stream, nil
}

func (s *Service) clientFor(ctx context.Context, id string) (*agentclient.Client, error) {
	machine, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	client, err := s.agents.Client(machine.Address)
	if err != nil {
		return nil, classify(err)
	}
	return client, nil
}

// publish never fails the calling operation.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("kind", string(event.Kind)).
			Str("machine_id", event.MachineID).
			Msg("Failed to publish event")
	}
}
