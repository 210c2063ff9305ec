package protocol

import (
	"fmt"
	"strings"
)

const (
	// Protocol prefix for the block feed
	protocolPrefix = "blockfeed"

	// Current protocol version
	currentVersion = "0"
)

// ProtocolID represents a complete ALPN protocol identifier.
// Format: blockfeed/<version>
type ProtocolID struct {
	// Version is the protocol version (currently only "0")
	Version string
}

// NewProtocolID creates a ProtocolID for the current supported version.
func NewProtocolID() *ProtocolID {
	return &ProtocolID{Version: currentVersion}
}

// String converts the ProtocolID to its string representation, e.g. "blockfeed/0".
func (p *ProtocolID) String() string {
	return protocolPrefix + "/" + p.Version
}

// ParseProtocolID parses an ALPN protocol string into a ProtocolID.
func ParseProtocolID(protocol string) (*ProtocolID, error) {
	parts := strings.Split(protocol, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid protocol format: %s", protocol)
	}
	if parts[0] != protocolPrefix {
		return nil, fmt.Errorf("invalid protocol prefix: %s", parts[0])
	}
	if parts[1] != currentVersion {
		return nil, fmt.Errorf("unsupported protocol version: %s", parts[1])
	}
	return &ProtocolID{Version: parts[1]}, nil
}

// ValidateALPNProtocol is ParseProtocolID without the result.
func ValidateALPNProtocol(protocol string) error {
	_, err := ParseProtocolID(protocol)
	return err
}

// AcceptableProtocols returns the protocol strings offered during the TLS handshake.
func AcceptableProtocols() []string {
	return []string{NewProtocolID().String()}
}
