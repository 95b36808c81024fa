package models

import "strings"

// DiskKind classifies the storage medium of a block device.
type DiskKind string

const (
	DiskKindHDD     DiskKind = "HDD"
	DiskKindSSD     DiskKind = "SSD"
	DiskKindNVME    DiskKind = "NVME"
	DiskKindUnknown DiskKind = "Unknown"
)

// ParseDiskKind maps a raw value onto a known kind. Anything unrecognised
// becomes DiskKindUnknown.
func ParseDiskKind(raw string) DiskKind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HDD":
		return DiskKindHDD
	case "SSD":
		return DiskKindSSD
	case "NVME":
		return DiskKindNVME
	default:
		return DiskKindUnknown
	}
}

// DiskInterface is the bus a block device is attached through.
type DiskInterface string

const (
	DiskInterfaceSATA    DiskInterface = "SATA"
	DiskInterfaceSCSI    DiskInterface = "SCSI"
	DiskInterfacePCIe    DiskInterface = "PCIe"
	DiskInterfaceUnknown DiskInterface = "Unknown"
)

// ParseDiskInterface maps a raw value onto a known interface.
func ParseDiskInterface(raw string) DiskInterface {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SATA":
		return DiskInterfaceSATA
	case "SCSI":
		return DiskInterfaceSCSI
	case "PCIE":
		return DiskInterfacePCIe
	default:
		return DiskInterfaceUnknown
	}
}

// DiskSummary describes a physical block device.
type DiskSummary struct {
	Device       string        `json:"device"`
	Kind         DiskKind      `json:"type"`
	KindRaw      string        `json:"type_raw,omitempty"` // set when Kind is Unknown
	Interface    DiskInterface `json:"interface"`
	InterfaceRaw string        `json:"interface_raw,omitempty"`
	SizeActual   uint64        `json:"size_actual"`
	SizeRaw      uint64        `json:"size_raw"`
	SectorSize   uint64        `json:"sector_size"`
	Vendor       string        `json:"vendor,omitempty"`
	Model        string        `json:"model,omitempty"`
	Serial       string        `json:"serial,omitempty"`
}

// VolumeSummary describes a mounted filesystem.
type VolumeSummary struct {
	Name           string `json:"name"`
	MountPoint     string `json:"mount_point"`
	FileSystem     string `json:"file_system,omitempty"`
	TotalSpace     uint64 `json:"total_space"`
	AvailableSpace uint64 `json:"available_space"`
	Removable      bool   `json:"removable"`
}
