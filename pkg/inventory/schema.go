package inventory

// Schema contains the SQL statements to create the inventory schema. Every
// child table cascades on machine deletion.
const Schema = `
-- Machines table: one row per registered agent host
CREATE TABLE IF NOT EXISTS machines (
    id           TEXT PRIMARY KEY,
    group_name   TEXT NOT NULL,
    address      TEXT NOT NULL,
    machine_type TEXT NOT NULL,
    added        TEXT NOT NULL,
    updated      TEXT
);

CREATE TABLE IF NOT EXISTS machine_status (
    machine_id   TEXT PRIMARY KEY,
    state        TEXT NOT NULL,
    last_checked TEXT NOT NULL,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_tags (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE,
    UNIQUE (machine_id, key)
);

CREATE TABLE IF NOT EXISTS machine_disks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id  TEXT NOT NULL,
    device      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    interface   TEXT NOT NULL,
    size_actual INTEGER NOT NULL,
    size_raw    INTEGER NOT NULL DEFAULT 0,
    sector_size INTEGER NOT NULL DEFAULT 0,
    vendor      TEXT,
    model       TEXT,
    serial      TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_volumes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    mount_point TEXT NOT NULL,
    total_space INTEGER NOT NULL,
    file_system TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

-- addresses holds a JSON array of address strings
CREATE TABLE IF NOT EXISTS machine_network_interfaces (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL,
    name       TEXT NOT NULL,
    addresses  TEXT NOT NULL,
    virtual    BOOLEAN NOT NULL DEFAULT FALSE,
    mac        TEXT,
    speed      INTEGER NOT NULL DEFAULT 0,
    mtu        INTEGER NOT NULL DEFAULT 0,
    duplex     TEXT,
    vendor     TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_addresses (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL,
    version    TEXT NOT NULL,
    address    TEXT NOT NULL,
    netmask    TEXT,
    broadcast  TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_containers (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id   TEXT NOT NULL,
    container_id TEXT NOT NULL,
    name         TEXT NOT NULL,
    image        TEXT NOT NULL,
    created      TEXT NOT NULL,
    state        TEXT NOT NULL,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_system (
    machine_id     TEXT PRIMARY KEY,
    host_id        TEXT,
    family         TEXT,
    kernel_version TEXT,
    os_version     TEXT,
    os             TEXT,
    os_pretty      TEXT,
    hostname       TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_memory (
    machine_id TEXT PRIMARY KEY,
    memory     INTEGER NOT NULL,
    swap       INTEGER NOT NULL,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS machine_cpu (
    machine_id   TEXT PRIMARY KEY,
    cores        INTEGER NOT NULL,
    architecture TEXT NOT NULL,
    model        TEXT,
    vendor       TEXT,
    FOREIGN KEY (machine_id) REFERENCES machines(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_machines_group ON machines(group_name);
CREATE INDEX IF NOT EXISTS idx_machine_tags_machine ON machine_tags(machine_id);
CREATE INDEX IF NOT EXISTS idx_machine_disks_machine ON machine_disks(machine_id);
CREATE INDEX IF NOT EXISTS idx_machine_volumes_machine ON machine_volumes(machine_id);
CREATE INDEX IF NOT EXISTS idx_machine_nics_machine ON machine_network_interfaces(machine_id);
CREATE INDEX IF NOT EXISTS idx_machine_addresses_machine ON machine_addresses(machine_id);
CREATE INDEX IF NOT EXISTS idx_machine_containers_machine ON machine_containers(machine_id);
`
