package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"fleetwatch/pkg/models"

	"github.com/shirou/gopsutil/v3/disk"
)

// Disks lists physical block devices under <sysroot>/block. Only entries
// backed by a device directory are reported, which excludes loop, ram and
// device-mapper nodes. Unreadable attributes fall back to empty values
// rather than failing the listing.
func (h *Host) Disks(_ context.Context) ([]models.DiskSummary, error) {
	blockDir := filepath.Join(h.sysRoot, "block")
	entries, err := os.ReadDir(blockDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list block devices: %w", err)
	}

	disks := make([]models.DiskSummary, 0, len(entries))
	for _, entry := range entries {
		dir := filepath.Join(blockDir, entry.Name())
		if !isDir(filepath.Join(dir, "device")) {
			continue
		}
		disks = append(disks, readDisk(entry.Name(), dir))
	}

	return disks, nil
}

func readDisk(name, dir string) models.DiskSummary {
	sectorSize := readUint(filepath.Join(dir, "queue", "logical_block_size"))
	sizeRaw := readUint(filepath.Join(dir, "size"))

	summary := models.DiskSummary{
		Device:     name,
		SectorSize: sectorSize,
		SizeRaw:    sizeRaw,
		SizeActual: sizeRaw * sectorSize,
		Vendor:     readTrimmed(filepath.Join(dir, "device", "vendor")),
		Model:      readTrimmed(filepath.Join(dir, "device", "model")),
		Serial:     readTrimmed(filepath.Join(dir, "device", "serial")),
	}

	summary.Kind, summary.KindRaw = diskKind(name, dir)
	summary.Interface, summary.InterfaceRaw = diskInterface(name, dir)

	return summary
}

func diskKind(name, dir string) (models.DiskKind, string) {
	if strings.HasPrefix(name, "nvme") {
		return models.DiskKindNVME, ""
	}

	raw, err := os.ReadFile(filepath.Join(dir, "queue", "rotational"))
	if err != nil {
		return models.DiskKindUnknown, ""
	}

	switch value := strings.TrimSpace(string(raw)); value {
	case "1":
		return models.DiskKindHDD, ""
	case "0":
		return models.DiskKindSSD, ""
	default:
		return models.DiskKindUnknown, value
	}
}

func diskInterface(name, dir string) (models.DiskInterface, string) {
	if strings.HasPrefix(name, "nvme") {
		return models.DiskInterfacePCIe, ""
	}

	raw, err := os.ReadFile(filepath.Join(dir, "device", "type"))
	if err != nil {
		return models.DiskInterfaceUnknown, ""
	}

	// SCSI peripheral type: 0 is a direct-access disk behind libata,
	// 1 a sequential-access device.
	switch value := strings.TrimSpace(string(raw)); value {
	case "0":
		return models.DiskInterfaceSATA, ""
	case "1":
		return models.DiskInterfaceSCSI, ""
	default:
		return models.DiskInterfaceUnknown, value
	}
}

// Volumes lists mounted physical filesystems with their capacity. A mount
// whose usage cannot be read is still reported, with zero sizes.
func (h *Host) Volumes(ctx context.Context) ([]models.VolumeSummary, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	seen := make(map[string]struct{}, len(partitions))
	volumes := make([]models.VolumeSummary, 0, len(partitions))
	for _, partition := range partitions {
		if _, dup := seen[partition.Device]; dup {
			continue
		}
		seen[partition.Device] = struct{}{}

		volume := models.VolumeSummary{
			Name:       partition.Device,
			MountPoint: partition.Mountpoint,
			FileSystem: partition.Fstype,
			Removable:  h.removable(partition.Device),
		}
		if usage, err := disk.UsageWithContext(ctx, partition.Mountpoint); err == nil {
			volume.TotalSpace = usage.Total
			volume.AvailableSpace = usage.Free
		}
		volumes = append(volumes, volume)
	}

	sort.Slice(volumes, func(i, j int) bool {
		return volumes[i].Name < volumes[j].Name
	})

	return volumes, nil
}

// removable reports the sysfs removable flag of a device or of the disk a
// partition belongs to.
func (h *Host) removable(device string) bool {
	base := filepath.Join(h.sysRoot, "class", "block", filepath.Base(device))
	if readUint(filepath.Join(base, "removable")) == 1 {
		return true
	}
	// Partitions link into their parent disk directory. The path is joined
	// by hand so the kernel, not filepath.Clean, resolves "..".
	return readUint(base+"/../removable") == 1
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readUint(path string) uint64 {
	value, err := strconv.ParseUint(readTrimmed(path), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
