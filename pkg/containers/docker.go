package containers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"fleetwatch/pkg/models"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

const dockerAPIVersion = "1.41"

// Docker talks to the Docker Engine API through the engine SDK.
type Docker struct {
	client *client.Client
	err    error
}

// NewDocker creates a runtime client for the engine listening on socket.
func NewDocker(socket string) *Docker {
	return newDocker("unix://" + socket)
}

// NewDockerURL creates a runtime client for an engine reachable over TCP,
// e.g. http://127.0.0.1:2375.
func NewDockerURL(baseURL string) *Docker {
	host := strings.TrimSuffix(baseURL, "/")
	if rest, ok := strings.CutPrefix(host, "http://"); ok {
		host = "tcp://" + rest
	}
	return newDocker(host)
}

func newDocker(host string) *Docker {
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithVersion(dockerAPIVersion),
	)
	return &Docker{client: cli, err: err}
}

var _ Runtime = (*Docker)(nil)

// Close releases idle engine connections.
func (d *Docker) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// convertError maps SDK failures onto the package errors.
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case client.IsErrConnectionFailed(err), errdefs.IsSystem(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

// Ping checks that the engine answers.
func (d *Docker) Ping(ctx context.Context) error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, d.err)
	}
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// List returns every container, running or not, ordered by id.
func (d *Docker) List(ctx context.Context) ([]models.ContainerSummary, error) {
	if d.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, d.err)
	}

	list, err := d.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, convertError(err)
	}

	summaries := make([]models.ContainerSummary, 0, len(list))
	for _, entry := range list {
		summary := models.ContainerSummary{
			ID:      entry.ID,
			Image:   entry.Image,
			Created: time.Unix(entry.Created, 0).UTC(),
			Command: entry.Command,
			Labels:  entry.Labels,
			Volumes: convertMounts(entry.Mounts),
		}
		if len(entry.Names) > 0 {
			summary.Name = strings.TrimPrefix(entry.Names[0], "/")
		}
		if entry.NetworkSettings != nil {
			summary.Networks = convertNetworks(entry.NetworkSettings.Networks)
		}
		summary.State, summary.StateRaw = containerState(string(entry.State))

		for _, port := range entry.Ports {
			p := models.ContainerPort{
				Container: port.PrivatePort,
				Host:      port.PublicPort,
				Protocol:  port.Type,
			}
			if port.IP != "" {
				p.HostAddresses = []string{port.IP}
			}
			summary.Ports = append(summary.Ports, p)
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Inspect returns full details of one container.
func (d *Docker) Inspect(ctx context.Context, id string) (models.ContainerSummary, error) {
	info, err := d.inspect(ctx, id)
	if err != nil {
		return models.ContainerSummary{}, err
	}
	return inspectSummary(info), nil
}

func (d *Docker) inspect(ctx context.Context, id string) (container.InspectResponse, error) {
	if id == "" {
		return container.InspectResponse{}, ErrNotFound
	}
	if d.err != nil {
		return container.InspectResponse{}, fmt.Errorf("%w: %w", ErrUnavailable, d.err)
	}

	info, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return container.InspectResponse{}, convertError(err)
	}
	if info.ContainerJSONBase == nil {
		return container.InspectResponse{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return info, nil
}

// Logs opens a log stream. With Follow set the stream stays open until ctx
// is cancelled or the stream is closed. It returns as soon as the engine
// has answered, without waiting for output.
func (d *Docker) Logs(ctx context.Context, id string, opts LogOptions) (*LogStream, error) {
	info, err := d.inspect(ctx, id)
	if err != nil {
		return nil, err
	}

	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Follow:     opts.Follow,
	}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}

	body, err := d.client.ContainerLogs(ctx, info.ID, logOpts)
	if err != nil {
		return nil, convertError(err)
	}

	// Containers with a TTY send raw output, the rest stdcopy frames.
	tty := info.Config != nil && info.Config.Tty
	return newLogStream(body, !tty), nil
}

// Stats opens a statistics stream producing one sample per second.
func (d *Docker) Stats(ctx context.Context, id string) (*StatsStream, error) {
	if d.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, d.err)
	}

	resp, err := d.client.ContainerStats(ctx, id, true)
	if err != nil {
		return nil, convertError(err)
	}
	return &StatsStream{body: resp.Body}, nil
}

func inspectSummary(info container.InspectResponse) models.ContainerSummary {
	summary := models.ContainerSummary{
		ID:      info.ID,
		Name:    strings.TrimPrefix(info.Name, "/"),
		Command: strings.TrimSpace(info.Path + " " + strings.Join(info.Args, " ")),
		Volumes: convertMounts(info.Mounts),
	}
	if created := parseDockerTime(info.Created); created != nil {
		summary.Created = *created
	}
	if info.Config != nil {
		summary.Image = info.Config.Image
		summary.Labels = info.Config.Labels
	}
	if info.State != nil {
		summary.State, summary.StateRaw = containerState(string(info.State.Status))
		summary.Started = parseDockerTime(info.State.StartedAt)
		summary.Finished = parseDockerTime(info.State.FinishedAt)
	} else {
		summary.State = models.ContainerUnknown
	}
	if info.NetworkSettings == nil {
		return summary
	}
	summary.Networks = convertNetworks(info.NetworkSettings.Networks)

	type binding struct{ hostIP, hostPort string }
	bindings := make(map[string][]binding, len(info.NetworkSettings.Ports))
	for port, published := range info.NetworkSettings.Ports {
		key := string(port)
		bindings[key] = nil
		for _, b := range published {
			bindings[key] = append(bindings[key], binding{hostIP: b.HostIP, hostPort: b.HostPort})
		}
	}

	keys := make([]string, 0, len(bindings))
	for key := range bindings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		containerPort, protocol := parsePortKey(key)
		port := models.ContainerPort{Container: containerPort, Protocol: protocol}
		for _, b := range bindings[key] {
			if b.hostIP != "" {
				port.HostAddresses = append(port.HostAddresses, b.hostIP)
			}
			if hostPort, err := strconv.ParseUint(b.hostPort, 10, 16); err == nil {
				port.Host = uint16(hostPort)
			}
		}
		summary.Ports = append(summary.Ports, port)
	}

	return summary
}

func containerState(raw string) (models.ContainerState, string) {
	state := models.ParseContainerState(raw)
	if state == models.ContainerUnknown {
		return state, raw
	}
	return state, ""
}

// parsePortKey splits "8080/tcp". A missing protocol means tcp.
func parsePortKey(key string) (uint16, string) {
	portPart, protocol, found := strings.Cut(key, "/")
	if !found || protocol == "" {
		protocol = "tcp"
	}
	port, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return 0, protocol
	}
	return uint16(port), protocol
}

// parseDockerTime returns nil for empty and zero timestamps.
func parseDockerTime(raw string) *time.Time {
	if raw == "" || strings.HasPrefix(raw, "0001-01-01") {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

func convertMounts(mounts []container.MountPoint) []models.ContainerVolume {
	if len(mounts) == 0 {
		return nil
	}
	volumes := make([]models.ContainerVolume, 0, len(mounts))
	for _, mount := range mounts {
		volumes = append(volumes, models.ContainerVolume{
			Source:      mount.Source,
			Destination: mount.Destination,
			Mode:        mount.Mode,
		})
	}
	return volumes
}

func convertNetworks(networks map[string]*network.EndpointSettings) []models.ContainerNetwork {
	if len(networks) == 0 {
		return nil
	}
	result := make([]models.ContainerNetwork, 0, len(networks))
	for name, endpoint := range networks {
		n := models.ContainerNetwork{Name: name}
		if endpoint != nil {
			n.NetworkID = endpoint.NetworkID
			n.EndpointID = endpoint.EndpointID
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func toStatistics(s container.StatsResponse) models.ContainerStatistics {
	stats := models.ContainerStatistics{
		MemoryLimit: s.MemoryStats.Limit,
	}

	online := float64(s.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	}
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)
	if cpuDelta > 0 && systemDelta > 0 {
		stats.CPUUtilization = cpuDelta / systemDelta * online * 100
	}

	// Page cache is reclaimable and not reported as usage.
	used := s.MemoryStats.Usage
	if inactive, ok := s.MemoryStats.Stats["inactive_file"]; ok && inactive < used {
		used -= inactive
	} else if cache, ok := s.MemoryStats.Stats["cache"]; ok && cache < used {
		used -= cache
	}
	stats.MemoryUsage = used
	if s.MemoryStats.Limit > 0 {
		stats.MemoryUtilization = float64(used) / float64(s.MemoryStats.Limit) * 100
	}

	for _, nic := range s.Networks {
		stats.NetworkRxBytes += nic.RxBytes
		stats.NetworkTxBytes += nic.TxBytes
	}

	for _, entry := range s.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(entry.Op) {
		case "read":
			stats.BlockReadBytes += entry.Value
		case "write":
			stats.BlockWriteBytes += entry.Value
		}
	}

	return stats
}
