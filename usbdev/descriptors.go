package usbdev

import (
	"sort"

	"github.com/google/gousb"

	"github.com/moffa90/go-recovery/recovery"
)

// convertConfig flattens a libusb configuration descriptor into one
// InterfaceDesc per alternate setting, ordered by (Number, Alternate).
// Endpoints are ordered by address so lookups are deterministic.
func convertConfig(desc gousb.ConfigDesc) recovery.ConfigDesc {
	out := recovery.ConfigDesc{Number: desc.Number}

	for _, intf := range desc.Interfaces {
		for _, alt := range intf.AltSettings {
			out.Interfaces = append(out.Interfaces, convertSetting(alt))
		}
	}

	sort.SliceStable(out.Interfaces, func(i, j int) bool {
		a, b := out.Interfaces[i], out.Interfaces[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Alternate < b.Alternate
	})

	return out
}

func convertSetting(s gousb.InterfaceSetting) recovery.InterfaceDesc {
	desc := recovery.InterfaceDesc{
		Number:    s.Number,
		Alternate: s.Alternate,
	}

	for _, ep := range s.Endpoints {
		desc.Endpoints = append(desc.Endpoints, convertEndpoint(ep))
	}

	sort.Slice(desc.Endpoints, func(i, j int) bool {
		return desc.Endpoints[i].Address < desc.Endpoints[j].Address
	})

	return desc
}

func convertEndpoint(ep gousb.EndpointDesc) recovery.EndpointDesc {
	desc := recovery.EndpointDesc{
		Address:       uint8(ep.Address),
		Number:        ep.Number,
		Direction:     recovery.EndpointDirectionOut,
		MaxPacketSize: ep.MaxPacketSize,
	}

	if ep.Direction == gousb.EndpointDirectionIn {
		desc.Direction = recovery.EndpointDirectionIn
	}

	switch ep.TransferType {
	case gousb.TransferTypeControl:
		desc.TransferType = recovery.TransferTypeControl
	case gousb.TransferTypeIsochronous:
		desc.TransferType = recovery.TransferTypeIsochronous
	case gousb.TransferTypeBulk:
		desc.TransferType = recovery.TransferTypeBulk
	case gousb.TransferTypeInterrupt:
		desc.TransferType = recovery.TransferTypeInterrupt
	}

	return desc
}

// firstConfigNumber returns the lowest configuration value the device offers.
func firstConfigNumber(configs map[int]gousb.ConfigDesc) (int, bool) {
	first, found := 0, false
	for num := range configs {
		if !found || num < first {
			first, found = num, true
		}
	}
	return first, found
}
