package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleetwatch/pkg/containers"
	"fleetwatch/pkg/models"

	"github.com/stretchr/testify/suite"
)

// generationSource derives every value from a counter bumped once per
// refresh, so a torn read shows up as mismatched generations.
type generationSource struct {
	mu        sync.Mutex
	gen       int
	failDisks bool
	disks     []string
}

func (g *generationSource) current() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

func (g *generationSource) System(context.Context) (models.SystemSummary, error) {
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	// Widen the window in which a reader could interleave.
	time.Sleep(50 * time.Microsecond)
	return models.SystemSummary{Hostname: "gen-" + strconv.Itoa(gen), OS: "linux"}, nil
}

func (g *generationSource) CPU(context.Context) (models.CPUSummary, error) {
	gen := g.current()
	time.Sleep(50 * time.Microsecond)
	return models.CPUSummary{Cores: gen, CoreUsage: []models.CoreSummary{{Name: "cpu0", Usage: float64(gen)}}}, nil
}

func (g *generationSource) Memory(context.Context) (models.MemorySummary, error) {
	gen := g.current()
	return models.MemorySummary{Memory: models.MemoryUsage{Total: uint64(gen)}}, nil
}

func (g *generationSource) Disks(context.Context) ([]models.DiskSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDisks {
		return nil, errors.New("sysfs unreadable")
	}
	names := g.disks
	if names == nil {
		names = []string{"sda"}
	}
	out := make([]models.DiskSummary, 0, len(names))
	for _, name := range names {
		out = append(out, models.DiskSummary{Device: name, SizeRaw: uint64(g.gen)})
	}
	return out, nil
}

func (g *generationSource) Volumes(context.Context) ([]models.VolumeSummary, error) {
	gen := g.current()
	return []models.VolumeSummary{{Name: "/dev/sda1", TotalSpace: uint64(gen)}}, nil
}

func (g *generationSource) NetworkInterfaces(context.Context) ([]models.NetworkInterfaceSummary, error) {
	gen := g.current()
	return []models.NetworkInterfaceSummary{{Name: "eth0", BytesSent: uint64(gen)}}, nil
}

// fakeRuntime is a containers.Runtime with scripted answers.
type fakeRuntime struct {
	pingErr  error
	pings    atomic.Int32
	listed   atomic.Int32
	list     []models.ContainerSummary
	listErrs []error
}

func (f *fakeRuntime) Ping(context.Context) error {
	f.pings.Add(1)
	return f.pingErr
}

func (f *fakeRuntime) List(context.Context) ([]models.ContainerSummary, error) {
	n := int(f.listed.Add(1)) - 1
	if n < len(f.listErrs) && f.listErrs[n] != nil {
		return nil, f.listErrs[n]
	}
	return f.list, nil
}

func (f *fakeRuntime) Inspect(context.Context, string) (models.ContainerSummary, error) {
	return models.ContainerSummary{}, containers.ErrNotFound
}

func (f *fakeRuntime) Logs(context.Context, string, containers.LogOptions) (*containers.LogStream, error) {
	return nil, containers.ErrNotFound
}

func (f *fakeRuntime) Stats(context.Context, string) (*containers.StatsStream, error) {
	return nil, containers.ErrNotFound
}

// ControllerTestSuite tests the snapshot controller.
type ControllerTestSuite struct {
	suite.Suite
	source *generationSource
}

func (s *ControllerTestSuite) SetupTest() {
	s.source = &generationSource{}
}

func (s *ControllerTestSuite) TestNewPopulatesSynchronously() {
	ctrl := New(context.Background(), s.source, nil)

	system, err := ctrl.System()
	s.Require().NoError(err)
	s.Equal("gen-1", system.Hostname)
	s.Equal(uint64(1), ctrl.Generation())
	s.False(ctrl.RefreshedAt().IsZero())

	cpu, err := ctrl.CPU()
	s.Require().NoError(err)
	s.Equal(1, cpu.Cores)
	s.Len(ctrl.Disks(), 1)
}

func (s *ControllerTestSuite) TestContainersDisabledWhenRuntimeUnreachable() {
	runtime := &fakeRuntime{
		pingErr: errors.New("dial unix /var/run/docker.sock: connect: no such file"),
		list:    []models.ContainerSummary{{ID: "c1"}},
	}
	ctrl := New(context.Background(), s.source, runtime)

	s.False(ctrl.ContainersEnabled())
	s.Nil(ctrl.Runtime())
	s.Empty(ctrl.Containers())
	s.NotNil(ctrl.Containers())

	ctrl.Refresh(context.Background())
	ctrl.Refresh(context.Background())

	s.Equal(int32(1), runtime.pings.Load())
	s.Equal(int32(0), runtime.listed.Load())
	s.Empty(ctrl.Containers())
	s.Nil(ctrl.Overview().Containers)

	_, err := ctrl.Container("c1")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ControllerTestSuite) TestNilRuntimeDisablesContainers() {
	ctrl := New(context.Background(), s.source, nil)
	s.False(ctrl.ContainersEnabled())
	s.Empty(ctrl.Containers())
}

func (s *ControllerTestSuite) TestContainersCollected() {
	runtime := &fakeRuntime{list: []models.ContainerSummary{
		{ID: "b2", Name: "worker"},
		{ID: "a1", Name: "web"},
	}}
	ctrl := New(context.Background(), s.source, runtime)

	s.True(ctrl.ContainersEnabled())
	list := ctrl.Containers()
	s.Require().Len(list, 2)
	s.Equal("a1", list[0].ID)

	byID, err := ctrl.Container("b2")
	s.Require().NoError(err)
	s.Equal("worker", byID.Name)

	byName, err := ctrl.Container("web")
	s.Require().NoError(err)
	s.Equal("a1", byName.ID)

	_, err = ctrl.Container("zzz")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ControllerTestSuite) TestContainerListFailureKeepsPrevious() {
	runtime := &fakeRuntime{
		list:     []models.ContainerSummary{{ID: "a1"}},
		listErrs: []error{nil, errors.New("engine busy")},
	}
	ctrl := New(context.Background(), s.source, runtime)
	ctrl.Refresh(context.Background())

	s.Len(ctrl.Containers(), 1)
	s.True(ctrl.ContainersEnabled())
}

func (s *ControllerTestSuite) TestRemovedEntriesDropped() {
	s.source.disks = []string{"sda", "sdb"}
	ctrl := New(context.Background(), s.source, nil)
	s.Len(ctrl.Disks(), 2)

	_, err := ctrl.Disk("sdb")
	s.Require().NoError(err)

	s.source.mu.Lock()
	s.source.disks = []string{"sda", "nvme0n1"}
	s.source.mu.Unlock()
	ctrl.Refresh(context.Background())

	_, err = ctrl.Disk("sdb")
	s.ErrorIs(err, ErrNotFound)
	for _, disk := range ctrl.Disks() {
		s.NotEqual("sdb", disk.Device)
	}
	for _, disk := range ctrl.Storage().Disks {
		s.NotEqual("sdb", disk.Device)
	}
	for _, disk := range ctrl.Overview().Disks {
		s.NotEqual("sdb", disk.Device)
	}

	_, err = ctrl.Disk("nvme0n1")
	s.NoError(err)
}

func (s *ControllerTestSuite) TestCollectorFailureKeepsPreviousValue() {
	ctrl := New(context.Background(), s.source, nil)

	s.source.mu.Lock()
	s.source.failDisks = true
	s.source.mu.Unlock()
	ctrl.Refresh(context.Background())

	disks := ctrl.Disks()
	s.Require().Len(disks, 1)
	s.Equal(uint64(1), disks[0].SizeRaw)

	system, err := ctrl.System()
	s.Require().NoError(err)
	s.Equal("gen-2", system.Hostname)
}

func (s *ControllerTestSuite) TestLookups() {
	ctrl := New(context.Background(), s.source, nil)

	_, err := ctrl.Volume("/dev/sda1")
	s.NoError(err)
	_, err = ctrl.Volume("/dev/sdz9")
	s.ErrorIs(err, ErrNotFound)

	iface, err := ctrl.NetworkInterface("eth0")
	s.Require().NoError(err)
	s.Equal("eth0", iface.Name)
	_, err = ctrl.NetworkInterface("wlan0")
	s.ErrorIs(err, ErrNotFound)

	s.Len(ctrl.Network(), 1)
	s.Len(ctrl.Volumes(), 1)
}

func (s *ControllerTestSuite) TestAccessorsReturnCopies() {
	ctrl := New(context.Background(), s.source, nil)

	cpu, err := ctrl.CPU()
	s.Require().NoError(err)
	cpu.CoreUsage[0].Usage = 999

	again, err := ctrl.CPU()
	s.Require().NoError(err)
	s.InDelta(1.0, again.CoreUsage[0].Usage, 0.0001)
}

func (s *ControllerTestSuite) TestOverviewNeverTorn() {
	ctrl := New(context.Background(), s.source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			ctrl.Refresh(ctx)
		}
	}()

	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				overview := ctrl.Overview()
				gen := overview.CPU.Cores
				want := fmt.Sprintf("gen-%d", gen)
				if overview.System.Hostname != want ||
					overview.Memory.Memory.Total != uint64(gen) ||
					overview.Disks[0].SizeRaw != uint64(gen) ||
					overview.Volumes[0].TotalSpace != uint64(gen) ||
					overview.Network[0].BytesSent != uint64(gen) {
					errs <- fmt.Errorf("torn overview at generation %d: %+v", gen, overview)
					return
				}
			}
		}()
	}

	// Readers finish on their own; the refresher stops afterwards.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(errs) == 0 && ctrl.Generation() < 50 {
			time.Sleep(time.Millisecond)
		}
	}()
	<-done
	cancel()
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Fail(err.Error())
	}
}

func (s *ControllerTestSuite) TestRunContextStops() {
	ctrl := New(context.Background(), s.source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.RunContext(ctx, time.Millisecond)
		close(done)
	}()

	s.Eventually(func() bool { return ctrl.Generation() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("refresh loop did not stop")
	}
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}
