package crypto

import (
	"runtime"

	"github.com/kenneth/fs2cloud/internal/config"
	"golang.org/x/sys/cpu"
)

// HasAESHardwareSupport reports whether the CPU offers AES acceleration.
// The PGP session cipher is AES, so this dominates encrypt/decrypt
// throughput on large chunks.
func HasAESHardwareSupport() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// IsHardwareAccelerationEnabled reports whether acceleration is both
// supported by the CPU and enabled in cfg.
func IsHardwareAccelerationEnabled(cfg config.HardwareConfig) bool {
	if !HasAESHardwareSupport() {
		return false
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		return cfg.EnableAESNI
	case "arm64":
		return cfg.EnableARMv8AES
	default:
		// Supported architectures without a dedicated flag (e.g. s390x)
		// count as enabled.
		return true
	}
}

// AccelerationInfo summarizes the hardware-acceleration state for startup
// logging and the admin surface.
type AccelerationInfo struct {
	Supported    bool   `json:"aes_hardware_support"`
	Architecture string `json:"architecture"`
	GOOS         string `json:"goos"`
	GoVersion    string `json:"go_version"`
	AESNI        bool   `json:"aes_ni_enabled"`
	ARMv8AES     bool   `json:"armv8_aes_enabled"`
	Active       bool   `json:"hardware_acceleration_active"`
}

// GetAccelerationInfo collects AccelerationInfo for cfg.
func GetAccelerationInfo(cfg config.HardwareConfig) AccelerationInfo {
	return AccelerationInfo{
		Supported:    HasAESHardwareSupport(),
		Architecture: runtime.GOARCH,
		GOOS:         runtime.GOOS,
		GoVersion:    runtime.Version(),
		AESNI:        cfg.EnableAESNI,
		ARMv8AES:     cfg.EnableARMv8AES,
		Active:       IsHardwareAccelerationEnabled(cfg),
	}
}
