/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"fmt"
	"math"
	"strconv"
)

const memUnitStep = 1024

// CalculateCpuPercent returns container cpu usage in percent of one cpu, 2 decimals.
// It is 0 whenever the container or system delta is not positive, which covers counter resets and the first sample.
func CalculateCpuPercent(total, preTotal, system, preSystem uint64, onlineCpus uint32) float64 {
	if total <= preTotal || system <= preSystem {
		return 0
	}
	cpuDelta := float64(total - preTotal)
	systemDelta := float64(system - preSystem)
	return Round2(cpuDelta / systemDelta * float64(onlineCpus) * 100)
}

// CalculateMemPercent returns usage/limit in percent, 2 decimals, or 0 if either is 0.
func CalculateMemPercent(usage, limit uint64) float64 {
	if usage == 0 || limit == 0 {
		return 0
	}
	return Round2(float64(usage) / float64(limit) * 100)
}

// PerCpuUsage normalizes cpu usage by the cpu limit. A non-positive limit yields 0.
func PerCpuUsage(cpuUsage, cpuLimit float64) float64 {
	if cpuLimit <= 0 {
		return 0
	}
	return Round2(cpuUsage / cpuLimit)
}

// FormatMemLimit renders a size in MB: "512MB" below 1024, "1GB" / "1.5GB" above.
// GB values get one decimal unless the size is a whole number of GB.
func FormatMemLimit(mb float64) string {
	if mb >= memUnitStep {
		if math.Mod(mb, memUnitStep) == 0 {
			return strconv.FormatFloat(mb/memUnitStep, 'f', 0, 64) + "GB"
		}
		return strconv.FormatFloat(mb/memUnitStep, 'f', 1, 64) + "GB"
	}
	return fmt.Sprintf("%sMB", strconv.FormatFloat(mb, 'f', 0, 64))
}

// Round2 rounds f half away from zero to 2 decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
