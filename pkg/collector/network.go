package collector

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"sort"
	"strings"

	"fleetwatch/pkg/models"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// pciVendors names the NIC vendors most often seen in servers. Unlisted
// codes are reported verbatim.
var pciVendors = map[string]string{
	"0x8086": "Intel",
	"0x10ec": "Realtek",
	"0x14e4": "Broadcom",
	"0x15b3": "Mellanox",
	"0x1077": "QLogic",
	"0x19a2": "Emulex",
	"0x1924": "Solarflare",
	"0x1af4": "Red Hat (virtio)",
	"0x15ad": "VMware",
	"0x1d0f": "Amazon",
}

// NetworkInterfaces lists interfaces with their addresses and counters.
// Interfaces without a sysfs device link are reported as virtual.
func (h *Host) NetworkInterfaces(ctx context.Context) ([]models.NetworkInterfaceSummary, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	counters := make(map[string]psnet.IOCountersStat)
	if stats, err := psnet.IOCountersWithContext(ctx, true); err == nil {
		for _, stat := range stats {
			counters[stat.Name] = stat
		}
	}

	summaries := make([]models.NetworkInterfaceSummary, 0, len(ifaces))
	for _, iface := range ifaces {
		summary := models.NetworkInterfaceSummary{
			Name:      iface.Name,
			MAC:       iface.HardwareAddr,
			MTU:       uint64(max(iface.MTU, 0)),
			Addresses: make([]models.AddressSummary, 0, len(iface.Addrs)),
		}

		for _, addr := range iface.Addrs {
			if address, ok := ClassifyAddress(addr.Addr); ok {
				summary.Addresses = append(summary.Addresses, address)
			}
		}

		if stat, ok := counters[iface.Name]; ok {
			summary.BytesSent = stat.BytesSent
			summary.BytesReceived = stat.BytesRecv
			summary.PacketsSent = stat.PacketsSent
			summary.PacketsReceived = stat.PacketsRecv
		}

		h.physicalDetails(&summary)
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	return summaries, nil
}

func (h *Host) physicalDetails(summary *models.NetworkInterfaceSummary) {
	dir := filepath.Join(h.sysRoot, "class", "net", summary.Name)
	if !isDir(filepath.Join(dir, "device")) {
		summary.Virtual = true
		return
	}

	summary.Speed = readUint(filepath.Join(dir, "speed"))
	summary.Duplex = readTrimmed(filepath.Join(dir, "duplex"))
	if mtu := readUint(filepath.Join(dir, "mtu")); mtu > 0 {
		summary.MTU = mtu
	}

	code := strings.ToLower(readTrimmed(filepath.Join(dir, "device", "vendor")))
	if name, ok := pciVendors[code]; ok {
		summary.Vendor = name
	} else {
		summary.Vendor = code
	}
}

// ClassifyAddress parses an interface address in CIDR or plain form and
// determines its family. IPv6 link-local addresses (fe80::/10) are V6Local.
func ClassifyAddress(raw string) (models.AddressSummary, bool) {
	var prefix netip.Prefix
	if strings.Contains(raw, "/") {
		parsed, err := netip.ParsePrefix(raw)
		if err != nil {
			return models.AddressSummary{}, false
		}
		prefix = parsed
	} else {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return models.AddressSummary{}, false
		}
		prefix = netip.PrefixFrom(addr, addr.BitLen())
	}

	addr := prefix.Addr().Unmap()
	summary := models.AddressSummary{Address: addr.String()}

	if addr.Is4() {
		summary.Version = models.AddressV4
		bits := prefix.Bits()
		if prefix.Addr().Is4In6() {
			// Mapped prefixes count the ::ffff:0:0/96 head.
			bits = max(bits-96, 0)
		}
		mask := net.CIDRMask(bits, 32)
		summary.Netmask = net.IP(mask).String()
		if bits < 31 {
			summary.Broadcast = broadcastV4(addr, mask).String()
		}
		return summary, true
	}

	if addr.IsLinkLocalUnicast() {
		summary.Version = models.AddressV6Local
	} else {
		summary.Version = models.AddressV6
	}
	summary.Netmask = net.IP(net.CIDRMask(prefix.Bits(), 128)).String()

	return summary, true
}

func broadcastV4(addr netip.Addr, mask net.IPMask) net.IP {
	ip := addr.As4()
	out := make(net.IP, 4)
	for i := range out {
		out[i] = ip[i] | ^mask[i]
	}
	return out
}
