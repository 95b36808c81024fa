package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fleetwatch/pkg/models"

	"github.com/stretchr/testify/suite"
)

// StoreTestSuite tests the inventory Store.
type StoreTestSuite struct {
	suite.Suite
	tempDir string
	dbPath  string
	store   *Store
	ctx     context.Context
}

func (s *StoreTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "inventory-store-test-*")
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *StoreTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *StoreTestSuite) SetupTest() {
	s.dbPath = filepath.Join(s.tempDir, "test.db")
	var err error
	s.store, err = NewStore(s.dbPath)
	s.Require().NoError(err)
}

func (s *StoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
	os.Remove(s.dbPath)
	os.Remove(s.dbPath + "-wal")
	os.Remove(s.dbPath + "-shm")
}

func sampleMachine(id string) *models.Machine {
	added := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return &models.Machine{
		ID:      id,
		Group:   "prod",
		Address: "agent1:7032",
		Status:  models.MachineStatus{State: models.MachineRunning, LastChecked: added},
		Added:   added,
		Type:    models.MachineBareMetal,
		Tags:    []models.Tag{},
		System: &models.MachineSystem{
			MachineID: "abc123", Family: "unix", KernelVersion: "6.8.0",
			OSVersion: "24.04", OS: "linux", OSPretty: "Ubuntu 24.04", Hostname: "h1",
		},
		Memory: &models.MachineMemory{Memory: 16e9, Swap: 2e9},
		CPU:    &models.MachineCPU{Cores: 8, Architecture: "x86_64", Model: "EPYC", Vendor: "AuthenticAMD"},
		Disks: []models.MachineDisk{
			{Device: "nvme0n1", Kind: models.DiskKindNVME, Interface: models.DiskInterfacePCIe, SizeActual: 512110190592, SectorSize: 512},
			{Device: "sda", Kind: models.DiskKindHDD, Interface: models.DiskInterfaceSATA, SizeActual: 4e12, Serial: "WD-1"},
		},
		Volumes: []models.MachineVolume{
			{Name: "/dev/nvme0n1p2", MountPoint: "/", TotalSpace: 500e9, FileSystem: "ext4"},
		},
		NetworkInterfaces: []models.MachineNetworkInterface{
			{Name: "eth0", Addresses: []string{"10.0.0.5", "fe80::1"}, MAC: "aa:bb:cc:dd:ee:ff", Speed: 1000, MTU: 1500, Duplex: "full"},
			{Name: "lo", Addresses: nil, Virtual: true, MTU: 65536},
		},
		Addresses: []models.AddressSummary{
			{Version: models.AddressV4, Address: "10.0.0.5", Netmask: "255.255.255.0", Broadcast: "10.0.0.255"},
			{Version: models.AddressV6Local, Address: "fe80::1"},
		},
		Containers: []models.MachineContainer{
			{ContainerID: "c1", Name: "web", Image: "nginx:1.27", Created: added.Add(-time.Hour), State: "running"},
		},
	}
}

func (s *StoreTestSuite) count(table string) int {
	var n int
	s.Require().NoError(s.store.db.QueryRowContext(s.ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func (s *StoreTestSuite) TestNewStoreInvalidPath() {
	_, err := NewStore("/nonexistent/path/to/db.sqlite")
	s.Error(err)
}

func (s *StoreTestSuite) TestInMemory() {
	store, err := NewStore(":memory:")
	s.Require().NoError(err)
	defer store.Close()

	s.Require().NoError(store.Insert(s.ctx, sampleMachine("m-mem")))
	machine, err := store.Get(s.ctx, "m-mem")
	s.Require().NoError(err)
	s.Equal("prod", machine.Group)
}

func (s *StoreTestSuite) TestInsertAndGet() {
	want := sampleMachine("m-1")
	s.Require().NoError(s.store.Insert(s.ctx, want))

	got, err := s.store.Get(s.ctx, "m-1")
	s.Require().NoError(err)

	s.Equal(want.ID, got.ID)
	s.Equal(want.Group, got.Group)
	s.Equal(want.Address, got.Address)
	s.Equal(want.Type, got.Type)
	s.True(want.Added.Equal(got.Added))
	s.Nil(got.Updated)
	s.Equal(models.MachineRunning, got.Status.State)
	s.True(want.Status.LastChecked.Equal(got.Status.LastChecked))
	s.Equal([]models.Tag{}, got.Tags)
	s.Equal(want.System, got.System)
	s.Equal(want.Memory, got.Memory)
	s.Equal(want.CPU, got.CPU)
	s.Equal(want.Disks, got.Disks)
	s.Equal(want.Volumes, got.Volumes)
	s.Equal(want.Addresses, got.Addresses)
	s.Require().Len(got.NetworkInterfaces, 2)
	s.Equal(want.NetworkInterfaces[0], got.NetworkInterfaces[0])
	s.Empty(got.NetworkInterfaces[1].Addresses)
	s.True(got.NetworkInterfaces[1].Virtual)
	s.Require().Len(got.Containers, 1)
	s.True(want.Containers[0].Created.Equal(got.Containers[0].Created))
	s.Equal("web", got.Containers[0].Name)
}

func (s *StoreTestSuite) TestInsertWithoutOptionalSections() {
	machine := sampleMachine("m-bare")
	machine.Memory = nil
	machine.CPU = nil
	machine.Disks = nil
	machine.Containers = nil
	s.Require().NoError(s.store.Insert(s.ctx, machine))

	got, err := s.store.Get(s.ctx, "m-bare")
	s.Require().NoError(err)
	s.Nil(got.Memory)
	s.Nil(got.CPU)
	s.Empty(got.Disks)
	s.NotNil(got.System)
}

func (s *StoreTestSuite) TestInsertDuplicate() {
	s.Require().NoError(s.store.Insert(s.ctx, sampleMachine("m-dup")))
	err := s.store.Insert(s.ctx, sampleMachine("m-dup"))
	s.ErrorIs(err, ErrMachineExists)
	s.Equal(1, s.count("machines"))
}

func (s *StoreTestSuite) TestInsertRollsBackOnChildFailure() {
	_, err := s.store.db.ExecContext(s.ctx, `
		CREATE TRIGGER refuse_disks BEFORE INSERT ON machine_disks
		BEGIN SELECT RAISE(ABORT, 'disk write refused'); END;`)
	s.Require().NoError(err)

	err = s.store.Insert(s.ctx, sampleMachine("m-fail"))
	s.Require().Error(err)
	s.ErrorIs(err, ErrDatabaseError)

	var writeErr *WriteError
	s.Require().ErrorAs(err, &writeErr)
	s.Equal("disks", writeErr.Step)
	s.Contains(err.Error(), "disk write refused")

	_, err = s.store.Get(s.ctx, "m-fail")
	s.ErrorIs(err, ErrMachineNotFound)
	for _, table := range []string{"machines", "machine_status", "machine_disks", "machine_system"} {
		s.Zero(s.count(table), table)
	}
}

func (s *StoreTestSuite) TestGetNotFound() {
	_, err := s.store.Get(s.ctx, "m-missing")
	s.ErrorIs(err, ErrMachineNotFound)
}

func (s *StoreTestSuite) TestList() {
	machines, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(machines)

	for _, id := range []string{"m-a", "m-b", "m-c"} {
		s.Require().NoError(s.store.Insert(s.ctx, sampleMachine(id)))
	}

	machines, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(machines, 3)

	ids := make([]string, 0, len(machines))
	for _, machine := range machines {
		ids = append(ids, machine.ID)
		s.Len(machine.Disks, 2)
	}
	s.ElementsMatch([]string{"m-a", "m-b", "m-c"}, ids)
}

func (s *StoreTestSuite) TestDeleteCascades() {
	s.Require().NoError(s.store.Insert(s.ctx, sampleMachine("m-del")))
	s.Require().NoError(s.store.Insert(s.ctx, sampleMachine("m-keep")))

	s.Require().NoError(s.store.Delete(s.ctx, "m-del"))

	_, err := s.store.Get(s.ctx, "m-del")
	s.ErrorIs(err, ErrMachineNotFound)
	s.Equal(1, s.count("machines"))
	s.Equal(2, s.count("machine_disks"))
	s.Equal(1, s.count("machine_cpu"))
	s.Equal(2, s.count("machine_network_interfaces"))

	s.ErrorIs(s.store.Delete(s.ctx, "m-del"), ErrMachineNotFound)
}

func (s *StoreTestSuite) TestUpdateStatus() {
	s.Require().NoError(s.store.Insert(s.ctx, sampleMachine("m-st")))

	checked := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	status := models.MachineStatus{State: models.MachineStopped, LastChecked: checked}
	s.Require().NoError(s.store.UpdateStatus(s.ctx, "m-st", status, checked))

	got, err := s.store.Get(s.ctx, "m-st")
	s.Require().NoError(err)
	s.Equal(models.MachineStopped, got.Status.State)
	s.True(checked.Equal(got.Status.LastChecked))
	s.Require().NotNil(got.Updated)
	s.True(checked.Equal(*got.Updated))

	s.ErrorIs(s.store.UpdateStatus(s.ctx, "m-none", status, checked), ErrMachineNotFound)
}

func (s *StoreTestSuite) TestConcurrentInserts() {
	var wg sync.WaitGroup
	ids := []string{"m-1", "m-2", "m-3", "m-4", "m-5", "m-6"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.NoError(s.store.Insert(s.ctx, sampleMachine(id)))
		}(id)
	}
	wg.Wait()

	s.Equal(len(ids), s.count("machines"))
	s.Equal(2*len(ids), s.count("machine_disks"))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
