package machine

import (
	"errors"
	"fmt"

	"fleetwatch/pkg/agentclient"
	"fleetwatch/pkg/inventory"
)

var (
	// ErrInvalidInput is returned for malformed registration requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSummary is returned when an agent overview has no system summary.
	ErrNoSummary = errors.New("no summary found")

	// ErrNotFound is returned when a machine, or a resource on its agent,
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnreachable is returned when the machine's agent cannot be queried.
	ErrUnreachable = errors.New("agent unreachable")

	// ErrPersistence is returned when the inventory fails.
	ErrPersistence = errors.New("persistence failure")
)

// classify maps collaborator errors onto the package taxonomy while
// keeping the original chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrMachineNotFound), errors.Is(err, agentclient.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, agentclient.ErrInvalidEndpoint):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, inventory.ErrDatabaseError), errors.Is(err, inventory.ErrMachineExists):
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	case errors.Is(err, agentclient.ErrUnreachable),
		errors.Is(err, agentclient.ErrRejected),
		errors.Is(err, agentclient.ErrDecode),
		isStatusError(err):
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	default:
		return err
	}
}

func isStatusError(err error) bool {
	var statusErr *agentclient.StatusError
	return errors.As(err, &statusErr)
}
