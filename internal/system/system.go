package system

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is a snapshot of host and process resource usage
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// GetCPUUsage returns the current CPU usage as a percentage
func GetCPUUsage(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

// GetMemoryUsage returns the current memory usage as a percentage
func GetMemoryUsage(ctx context.Context) (float64, error) {
	virtualMem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return virtualMem.UsedPercent, nil
}

// Snapshot collects the current stats
func Snapshot(ctx context.Context) (Stats, error) {
	cpuPercent, err := GetCPUUsage(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memPercent, err := GetMemoryUsage(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get memory usage: %w", err)
	}
	return Stats{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
	}, nil
}
