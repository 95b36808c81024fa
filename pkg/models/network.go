package models

// AddressVersion is the IP family of an interface address. Link-local IPv6
// addresses are reported separately.
type AddressVersion string

const (
	AddressV4      AddressVersion = "V4"
	AddressV6      AddressVersion = "V6"
	AddressV6Local AddressVersion = "V6Local"
)

// AddressSummary is one address bound to a network interface.
type AddressSummary struct {
	Version   AddressVersion `json:"version"`
	Address   string         `json:"address"`
	Netmask   string         `json:"netmask,omitempty"`
	Broadcast string         `json:"broadcast,omitempty"`
}

// NetworkInterfaceSummary describes a network interface and its traffic
// counters. Physical details are empty for virtual interfaces.
type NetworkInterfaceSummary struct {
	Name            string           `json:"name"`
	Addresses       []AddressSummary `json:"addresses,omitempty"`
	Virtual         bool             `json:"virtual"`
	MAC             string           `json:"mac,omitempty"`
	Vendor          string           `json:"vendor,omitempty"`
	MTU             uint64           `json:"mtu,omitempty"`
	Duplex          string           `json:"duplex,omitempty"`
	Speed           uint64           `json:"speed,omitempty"`
	BytesSent       uint64           `json:"bytes_sent"`
	BytesReceived   uint64           `json:"bytes_received"`
	PacketsSent     uint64           `json:"packets_sent"`
	PacketsReceived uint64           `json:"packets_received"`
}
