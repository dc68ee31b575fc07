package eraa

import (
	"fmt"
	"strings"
)

// IntercoSep separates origin and destination in interconnection names.
// It is reserved: zone codes must not contain it. The data never violates
// this today; a zone code containing "2" would parse ambiguously.
const IntercoSep = "2"

// Interconnection is a directed link between two zones.
type Interconnection struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// String encodes the interconnection back to its dataset name.
func (i Interconnection) String() string {
	return i.Origin + IntercoSep + i.Destination
}

// ParseInterconnection parses a "{origin}2{destination}" name.
func ParseInterconnection(name string) (Interconnection, error) {
	origin, destination, ok := strings.Cut(name, IntercoSep)
	if !ok || origin == "" || destination == "" {
		return Interconnection{}, fmt.Errorf("invalid interconnection name %q", name)
	}
	return Interconnection{Origin: origin, Destination: destination}, nil
}

// ParseInterconnections parses a list of interconnection names, keeping order.
func ParseInterconnections(names []string) ([]Interconnection, error) {
	intercos := make([]Interconnection, 0, len(names))
	for _, name := range names {
		interco, err := ParseInterconnection(name)
		if err != nil {
			return nil, err
		}
		intercos = append(intercos, interco)
	}
	return intercos, nil
}
