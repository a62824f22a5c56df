package reconcile

import (
	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// shapeFromInfo converts a cloud device record into a directory shape,
// resolving the room name from the room cache.
func shapeFromInfo(info smartthings.DeviceInfo, roomNames map[string]string) device.Shape {
	shape := device.Shape{
		ID:           info.DeviceID,
		Name:         info.DisplayName(),
		TypeHint:     info.DeviceTypeName,
		Manufacturer: info.ManufacturerName,
		RoomID:       info.RoomID,
		RoomName:     roomNames[info.RoomID],
	}

	seen := make(map[capability.Capability]bool)
	for _, comp := range info.Components {
		shape.Components = append(shape.Components, comp.ID)
		for _, ref := range comp.Capabilities {
			c := capability.Capability(ref.ID)
			if !seen[c] {
				seen[c] = true
				shape.Capabilities = append(shape.Capabilities, c)
			}
		}
	}
	if len(shape.Components) == 0 {
		shape.Components = []string{device.ComponentMain}
	}
	return shape
}

// updatesFromStatus flattens a status document into poll-sourced
// attribute updates. Attributes the cloud reports as null are skipped:
// a null carries no state, and overwriting a real value with it would
// only destroy information.
func updatesFromStatus(deviceID string, status *smartthings.DeviceStatus) []device.Update {
	if status == nil {
		return nil
	}

	var updates []device.Update
	for componentID, caps := range status.Components {
		for capID, attrs := range caps {
			for attrName, state := range attrs {
				if state.Value == nil {
					continue
				}
				updates = append(updates, device.Update{
					DeviceID:   deviceID,
					Component:  componentID,
					Capability: capability.Capability(capID),
					Attribute:  attrName,
					Value:      state.Value,
					Unit:       state.Unit,
					Timestamp:  state.Timestamp,
					Source:     device.SourcePoll,
				})
			}
		}
	}
	return updates
}
