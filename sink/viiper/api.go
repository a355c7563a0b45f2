package viiper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ApiError is an RFC 7807 problem response from the VIIPER API.
type ApiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

var errUnauthorized = &ApiError{Status: 401, Title: "Unauthorized", Detail: "invalid password"}

// isFatal reports errors that retrying cannot fix.
func isFatal(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401 || apiErr.Status == 403
	}
	return false
}

type busListResponse struct {
	Buses []uint32 `json:"buses"`
}

type busCreateResponse struct {
	BusID uint32 `json:"busId"`
}

type apiDevice struct {
	BusID uint32 `json:"busId"`
	DevId string `json:"devId"`
	Vid   string `json:"vid"`
	Pid   string `json:"pid"`
	Type  string `json:"type"`
}

type devicesListResponse struct {
	Devices []apiDevice `json:"devices"`
}

type deviceCreateRequest struct {
	Type string `json:"type"`
}

// Address identifies a device on a VIIPER server, written "bus-dev".
type Address struct {
	Bus uint32
	Dev string
}

func (a Address) String() string { return fmt.Sprintf("%d-%s", a.Bus, a.Dev) }

func (a Address) IsZero() bool { return a.Dev == "" }

// ParseAddress parses "bus-dev", e.g. "1-1". An empty string is the zero Address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, nil
	}
	bus, dev, ok := strings.Cut(s, "-")
	if !ok || dev == "" {
		return Address{}, fmt.Errorf("device address %q: want bus-dev", s)
	}
	n, err := strconv.ParseUint(bus, 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("device address %q: bad bus: %w", s, err)
	}
	return Address{Bus: uint32(n), Dev: dev}, nil
}
