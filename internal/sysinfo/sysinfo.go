package sysinfo

import (
	"fmt"
	"runtime"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
	"github.com/shirou/gopsutil/v3/host"
)

// Info is the system context shown alongside battery state: which
// sysfs directory was detected and what the machine is running.
type Info struct {
	BatteryPath   string
	BatteryFound  bool
	Distro        string
	KernelVersion string
	Uptime        time.Duration
}

// Collect gathers host details. Failures degrade to coarse values;
// this data is informational only.
func Collect(batteryOverride string) Info {
	info := Info{Distro: runtime.GOOS}

	info.BatteryPath, info.BatteryFound = battery.DetectDir(batteryOverride)

	hostInfo, err := host.Info()
	if err != nil {
		return info
	}

	if hostInfo.Platform != "" {
		info.Distro = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
	}
	info.KernelVersion = hostInfo.KernelVersion
	info.Uptime = time.Duration(hostInfo.Uptime) * time.Second

	return info
}
