package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fleetwatch/pkg/models"
)

// loadMachine assembles a machine from its root row and child tables.
func loadMachine(ctx context.Context, db querier, id string) (*models.Machine, error) {
	var (
		machine     models.Machine
		machineType string
		added       string
		updated     sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, group_name, address, machine_type, added, updated FROM machines WHERE id = ?`, id,
	).Scan(&machine.ID, &machine.Group, &machine.Address, &machineType, &added, &updated)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrMachineNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	machine.Type = models.MachineType(machineType)
	if machine.Added, err = parseTime(added); err != nil {
		return nil, err
	}
	if updated.Valid {
		t, err := parseTime(updated.String)
		if err != nil {
			return nil, err
		}
		machine.Updated = &t
	}

	loaders := []func(context.Context, querier, *models.Machine) error{
		loadStatus,
		loadTags,
		loadDisks,
		loadVolumes,
		loadNetworkInterfaces,
		loadAddresses,
		loadContainers,
		loadSystem,
		loadMemory,
		loadCPU,
	}
	for _, load := range loaders {
		if err := load(ctx, db, &machine); err != nil {
			return nil, err
		}
	}

	return &machine, nil
}

// each runs query and calls scan once per row.
func each(ctx context.Context, db querier, query, id string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

func loadStatus(ctx context.Context, db querier, m *models.Machine) error {
	var state, checked string
	err := db.QueryRowContext(ctx,
		`SELECT state, last_checked FROM machine_status WHERE machine_id = ?`, m.ID,
	).Scan(&state, &checked)
	if err != nil {
		if isNoRows(err) {
			m.Status = models.MachineStatus{State: models.MachineUnknown}
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	lastChecked, err := parseTime(checked)
	if err != nil {
		return err
	}
	m.Status = models.MachineStatus{State: models.ParseMachineState(state), LastChecked: lastChecked}
	return nil
}

func loadTags(ctx context.Context, db querier, m *models.Machine) error {
	m.Tags = []models.Tag{}
	return each(ctx, db, `SELECT key, value FROM machine_tags WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var tag models.Tag
			if err := rows.Scan(&tag.Key, &tag.Value); err != nil {
				return err
			}
			m.Tags = append(m.Tags, tag)
			return nil
		})
}

func loadDisks(ctx context.Context, db querier, m *models.Machine) error {
	return each(ctx, db,
		`SELECT device, kind, interface, size_actual, size_raw, sector_size,
		        COALESCE(vendor, ''), COALESCE(model, ''), COALESCE(serial, '')
		 FROM machine_disks WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var (
				disk        models.MachineDisk
				kind, iface string
			)
			if err := rows.Scan(&disk.Device, &kind, &iface, &disk.SizeActual, &disk.SizeRaw, &disk.SectorSize,
				&disk.Vendor, &disk.Model, &disk.Serial); err != nil {
				return err
			}
			disk.Kind = models.DiskKind(kind)
			disk.Interface = models.DiskInterface(iface)
			m.Disks = append(m.Disks, disk)
			return nil
		})
}

func loadVolumes(ctx context.Context, db querier, m *models.Machine) error {
	return each(ctx, db,
		`SELECT name, mount_point, total_space, COALESCE(file_system, '')
		 FROM machine_volumes WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var volume models.MachineVolume
			if err := rows.Scan(&volume.Name, &volume.MountPoint, &volume.TotalSpace, &volume.FileSystem); err != nil {
				return err
			}
			m.Volumes = append(m.Volumes, volume)
			return nil
		})
}

func loadNetworkInterfaces(ctx context.Context, db querier, m *models.Machine) error {
	return each(ctx, db,
		`SELECT name, addresses, virtual, COALESCE(mac, ''), speed, mtu, COALESCE(duplex, ''), COALESCE(vendor, '')
		 FROM machine_network_interfaces WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var (
				nic       models.MachineNetworkInterface
				addresses string
			)
			if err := rows.Scan(&nic.Name, &addresses, &nic.Virtual, &nic.MAC, &nic.Speed, &nic.MTU,
				&nic.Duplex, &nic.Vendor); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(addresses), &nic.Addresses); err != nil {
				return err
			}
			m.NetworkInterfaces = append(m.NetworkInterfaces, nic)
			return nil
		})
}

func loadAddresses(ctx context.Context, db querier, m *models.Machine) error {
	return each(ctx, db,
		`SELECT version, address, COALESCE(netmask, ''), COALESCE(broadcast, '')
		 FROM machine_addresses WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var (
				address models.AddressSummary
				version string
			)
			if err := rows.Scan(&version, &address.Address, &address.Netmask, &address.Broadcast); err != nil {
				return err
			}
			address.Version = models.AddressVersion(version)
			m.Addresses = append(m.Addresses, address)
			return nil
		})
}

func loadContainers(ctx context.Context, db querier, m *models.Machine) error {
	return each(ctx, db,
		`SELECT container_id, name, image, created, state
		 FROM machine_containers WHERE machine_id = ? ORDER BY id`, m.ID,
		func(rows *sql.Rows) error {
			var (
				container models.MachineContainer
				created   string
			)
			if err := rows.Scan(&container.ContainerID, &container.Name, &container.Image, &created, &container.State); err != nil {
				return err
			}
			var err error
			if container.Created, err = parseTime(created); err != nil {
				return err
			}
			m.Containers = append(m.Containers, container)
			return nil
		})
}

func loadSystem(ctx context.Context, db querier, m *models.Machine) error {
	var sys models.MachineSystem
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(host_id, ''), COALESCE(family, ''), COALESCE(kernel_version, ''), COALESCE(os_version, ''),
		        COALESCE(os, ''), COALESCE(os_pretty, ''), COALESCE(hostname, '')
		 FROM machine_system WHERE machine_id = ?`, m.ID,
	).Scan(&sys.MachineID, &sys.Family, &sys.KernelVersion, &sys.OSVersion, &sys.OS, &sys.OSPretty, &sys.Hostname)
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	m.System = &sys
	return nil
}

func loadMemory(ctx context.Context, db querier, m *models.Machine) error {
	var memory models.MachineMemory
	err := db.QueryRowContext(ctx,
		`SELECT memory, swap FROM machine_memory WHERE machine_id = ?`, m.ID,
	).Scan(&memory.Memory, &memory.Swap)
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	m.Memory = &memory
	return nil
}

func loadCPU(ctx context.Context, db querier, m *models.Machine) error {
	var cpu models.MachineCPU
	err := db.QueryRowContext(ctx,
		`SELECT cores, architecture, COALESCE(model, ''), COALESCE(vendor, '')
		 FROM machine_cpu WHERE machine_id = ?`, m.ID,
	).Scan(&cpu.Cores, &cpu.Architecture, &cpu.Model, &cpu.Vendor)
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	m.CPU = &cpu
	return nil
}
