package v1

import (
	"errors"
	"fmt"
	"strings"
)

// Device message types accepted on the WebSocket inbound path.
const (
	// DeviceAuthComplete confirms the out-of-band proof from the device.
	DeviceAuthComplete = "auth_complete"
	// DeviceMessage relays free-form content from the device.
	DeviceMessage = "message"
)

// DeviceMessage is the inbound JSON frame a secondary device sends over
// the WebSocket: {"type": "message"|"auth_complete", "content": "..."}.
type DeviceFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Validate checks the frame has a supported type.
func (f DeviceFrame) Validate() error {
	if strings.TrimSpace(f.Type) == "" {
		return errors.New("missing field: type")
	}
	switch f.Type {
	case DeviceAuthComplete, DeviceMessage:
		return nil
	default:
		return fmt.Errorf("unsupported type: %q", f.Type)
	}
}

// AssignedIdentity is the first SSE event payload when the server assigns
// a fresh client id to an anonymous stream.
type AssignedIdentity struct {
	ClientID string `json:"client_id"`
}
