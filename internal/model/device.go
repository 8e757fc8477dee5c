package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// Device is the compute backend inference runs on. Only the CPU backend is
// built in; accelerator requests resolve to it.
type Device struct {
	Name      string
	Requested string
}

// KnownDevice reports whether s is an accepted device preference.
func KnownDevice(s string) bool {
	switch strings.ToLower(s) {
	case "", "cpu", "auto", "cuda", "gpu":
		return true
	}
	return false
}

// SelectDevice resolves a device preference. Unknown names are an error;
// unavailable accelerators fall back to cpu with a warning.
func SelectDevice(pref string, log *slog.Logger) (Device, error) {
	p := strings.ToLower(strings.TrimSpace(pref))
	switch p {
	case "", "cpu", "auto":
		return Device{Name: "cpu", Requested: p}, nil
	case "cuda", "gpu":
		if log != nil {
			log.Warn("accelerator not available, using cpu", "requested", p)
		}
		return Device{Name: "cpu", Requested: p}, nil
	}
	return Device{}, fmt.Errorf("unknown device %q", pref)
}

// ReleaseCache frees device-resident memory. The cpu backend keeps none.
func (d Device) ReleaseCache() {}

func (d Device) String() string { return d.Name }
