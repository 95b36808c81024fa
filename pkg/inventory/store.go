// Package inventory persists registered machines in SQLite.
package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleetwatch/pkg/models"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// Store manages machine records in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStore opens the database at dbPath and creates the schema. Foreign
// keys and WAL are enabled on every pooled connection.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}
	if dbPath == memoryDSN {
		// Every connection to :memory: is a separate database.
		database.SetMaxOpenConns(1)
	}

	store := &Store{db: database}
	if err := store.Initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

func dsn(dbPath string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != memoryDSN {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	separator := "?"
	if strings.Contains(dbPath, "?") {
		separator = "&"
	}
	return dbPath + separator + pragmas
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(context.Background(), Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes the machine root row followed by each child collection.
// All writes share one transaction, so a failure leaves nothing behind.
func (s *Store) Insert(ctx context.Context, machine *models.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertRoot(ctx, tx, machine); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrMachineExists, machine.ID)
		}
		return &WriteError{Step: "machine", Err: err}
	}

	steps := []struct {
		name  string
		write func(context.Context, execer, *models.Machine) error
	}{
		{"status", insertStatus},
		{"tags", insertTags},
		{"disks", insertDisks},
		{"volumes", insertVolumes},
		{"network_interfaces", insertNetworkInterfaces},
		{"addresses", insertAddresses},
		{"containers", insertContainers},
		{"system", insertSystem},
		{"memory", insertMemory},
		{"cpu", insertCPU},
	}
	for _, step := range steps {
		if err := step.write(ctx, tx, machine); err != nil {
			return &WriteError{Step: step.name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Step: "commit", Err: err}
	}
	return nil
}

// Get loads a machine with all of its child collections.
func (s *Store) Get(ctx context.Context, id string) (*models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return loadMachine(ctx, tx, id)
}

// List loads every machine. The order is not guaranteed.
func (s *Store) List(ctx context.Context) ([]models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ids, err := scanStrings(ctx, tx, `SELECT id FROM machines ORDER BY added, id`)
	if err != nil {
		return nil, err
	}

	machines := make([]models.Machine, 0, len(ids))
	for _, id := range ids {
		machine, err := loadMachine(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		machines = append(machines, *machine)
	}
	return machines, nil
}

// Delete removes a machine and, through cascading, all of its children.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM machines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return requireAffected(result)
}

// UpdateStatus records a new reachability state.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.MachineStatus, updated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE machines SET updated = ? WHERE id = ?`, formatTime(updated), id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO machine_status (machine_id, state, last_checked) VALUES (?, ?, ?)
		 ON CONFLICT(machine_id) DO UPDATE SET state = excluded.state, last_checked = excluded.last_checked`,
		id, string(status.State), formatTime(status.LastChecked),
	); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrDatabaseError, err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrMachineNotFound
	}
	return nil
}

func insertRoot(ctx context.Context, db execer, m *models.Machine) error {
	var updated any
	if m.Updated != nil {
		updated = formatTime(*m.Updated)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO machines (id, group_name, address, machine_type, added, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Group, m.Address, string(m.Type), formatTime(m.Added), updated,
	)
	return err
}

func insertStatus(ctx context.Context, db execer, m *models.Machine) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO machine_status (machine_id, state, last_checked) VALUES (?, ?, ?)`,
		m.ID, string(m.Status.State), formatTime(m.Status.LastChecked),
	)
	return err
}

func insertTags(ctx context.Context, db execer, m *models.Machine) error {
	for _, tag := range m.Tags {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_tags (machine_id, key, value) VALUES (?, ?, ?)`,
			m.ID, tag.Key, tag.Value,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertDisks(ctx context.Context, db execer, m *models.Machine) error {
	for _, disk := range m.Disks {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_disks (machine_id, device, kind, interface, size_actual, size_raw, sector_size, vendor, model, serial)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, disk.Device, string(disk.Kind), string(disk.Interface),
			int64(disk.SizeActual), int64(disk.SizeRaw), int64(disk.SectorSize),
			disk.Vendor, disk.Model, disk.Serial,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertVolumes(ctx context.Context, db execer, m *models.Machine) error {
	for _, volume := range m.Volumes {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_volumes (machine_id, name, mount_point, total_space, file_system) VALUES (?, ?, ?, ?, ?)`,
			m.ID, volume.Name, volume.MountPoint, int64(volume.TotalSpace), volume.FileSystem,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertNetworkInterfaces(ctx context.Context, db execer, m *models.Machine) error {
	for _, nic := range m.NetworkInterfaces {
		addresses := nic.Addresses
		if addresses == nil {
			addresses = []string{}
		}
		encoded, err := json.Marshal(addresses)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_network_interfaces (machine_id, name, addresses, virtual, mac, speed, mtu, duplex, vendor)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, nic.Name, string(encoded), nic.Virtual, nic.MAC,
			int64(nic.Speed), int64(nic.MTU), nic.Duplex, nic.Vendor,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertAddresses(ctx context.Context, db execer, m *models.Machine) error {
	for _, address := range m.Addresses {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_addresses (machine_id, version, address, netmask, broadcast) VALUES (?, ?, ?, ?, ?)`,
			m.ID, string(address.Version), address.Address, address.Netmask, address.Broadcast,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertContainers(ctx context.Context, db execer, m *models.Machine) error {
	for _, container := range m.Containers {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO machine_containers (machine_id, container_id, name, image, created, state) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, container.ContainerID, container.Name, container.Image, formatTime(container.Created), container.State,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertSystem(ctx context.Context, db execer, m *models.Machine) error {
	if m.System == nil {
		return nil
	}
	sys := m.System
	_, err := db.ExecContext(ctx,
		`INSERT INTO machine_system (machine_id, host_id, family, kernel_version, os_version, os, os_pretty, hostname)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, sys.MachineID, sys.Family, sys.KernelVersion, sys.OSVersion, sys.OS, sys.OSPretty, sys.Hostname,
	)
	return err
}

func insertMemory(ctx context.Context, db execer, m *models.Machine) error {
	if m.Memory == nil {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO machine_memory (machine_id, memory, swap) VALUES (?, ?, ?)`,
		m.ID, int64(m.Memory.Memory), int64(m.Memory.Swap),
	)
	return err
}

func insertCPU(ctx context.Context, db execer, m *models.Machine) error {
	if m.CPU == nil {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO machine_cpu (machine_id, cores, architecture, model, vendor) VALUES (?, ?, ?, ?, ?)`,
		m.ID, int64(m.CPU.Cores), m.CPU.Architecture, m.CPU.Model, m.CPU.Vendor,
	)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %w", ErrDatabaseError, raw, err)
	}
	return t, nil
}

func scanStrings(ctx context.Context, db querier, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
