package melcloud

import (
	"github.com/clambin/go-common/set"
)

// Device is a controllable unit, as reported by device enumeration. BuildingID
// is inherited from the building the device was listed under.
type Device struct {
	ID         int
	Name       string
	BuildingID int
}

// wire format of GET /User/ListDevices: a list of buildings, each holding
// devices directly under its structure, or nested in areas and floors.
type building struct {
	ID        int       `json:"ID"`
	Name      string    `json:"Name"`
	Structure structure `json:"Structure"`
}

type structure struct {
	Devices []listedDevice `json:"Devices"`
	Areas   []area         `json:"Areas"`
	Floors  []floor        `json:"Floors"`
}

type area struct {
	Devices []listedDevice `json:"Devices"`
}

type floor struct {
	Devices []listedDevice `json:"Devices"`
	Areas   []area         `json:"Areas"`
}

type listedDevice struct {
	DeviceID   int    `json:"DeviceID"`
	DeviceName string `json:"DeviceName"`
	BuildingID int    `json:"BuildingID"`
}

// flatten collapses the building hierarchy into a single device list. The same
// device may appear under both a floor and an area; only the first occurrence
// is kept.
func flatten(buildings []building) []Device {
	devices := make([]Device, 0)
	seen := set.New[int]()

	add := func(b building, found []listedDevice) {
		for _, d := range found {
			if seen.Contains(d.DeviceID) {
				continue
			}
			seen.Add(d.DeviceID)
			devices = append(devices, Device{ID: d.DeviceID, Name: d.DeviceName, BuildingID: b.ID})
		}
	}

	for _, b := range buildings {
		add(b, b.Structure.Devices)
		for _, a := range b.Structure.Areas {
			add(b, a.Devices)
		}
		for _, f := range b.Structure.Floors {
			add(b, f.Devices)
			for _, a := range f.Areas {
				add(b, a.Devices)
			}
		}
	}
	return devices
}
