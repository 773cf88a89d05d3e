package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики процесса для /health
type ServerMetrics struct {
	StartTime time.Time
}

// HealthSnapshot - тело ответа /health
type HealthSnapshot struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	MemoryMB       float64 `json:"memory_mb"`
	CPUPercent     float64 `json:"cpu_percent"`
	Goroutines     int     `json:"goroutines"`
	Miniatures     int     `json:"miniatures"`
	RegionsEnabled bool    `json:"regions_enabled"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetMemoryUsage возвращает занятую кучу в MB
func (sm *ServerMetrics) GetMemoryUsage() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024
}

// GetCPUUsage возвращает использование CPU процессом в процентах.
// Если метрика процесса недоступна, возвращается системная.
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if pct, err := proc.CPUPercent(); err == nil {
			return pct, nil
		}
	}

	cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(cpuPercents) == 0 {
		return 0, fmt.Errorf("cpu: пустой ответ")
	}
	return cpuPercents[0], nil
}

// Snapshot собирает состояние процесса и количество активных миниатюр
func (sm *ServerMetrics) Snapshot(miniatures int, regionsEnabled bool) HealthSnapshot {
	snap := HealthSnapshot{
		Status:         "ok",
		Uptime:         sm.GetUptime(),
		MemoryMB:       sm.GetMemoryUsage(),
		Goroutines:     runtime.NumGoroutine(),
		Miniatures:     miniatures,
		RegionsEnabled: regionsEnabled,
	}
	// CPU не критичен для health-check
	if pct, err := sm.GetCPUUsage(); err == nil {
		snap.CPUPercent = pct
	}
	return snap
}
