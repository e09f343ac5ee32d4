package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载决定同时打开多少个域名探测标签页
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 系统总内存(字节)
	totalMemory uint64

	lastMemStats runtime.MemStats
	mu           sync.RWMutex

	lastCPUUsage float64
	cpuUsageMu   sync.RWMutex

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 安全阈值(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200 视为关闭检查
	MaxTabsLimit        int   // 绝对最大标签页数
	TabMemoryUsage      int64 // 单个标签页平均内存消耗(字节)
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
		SafetyThreshold:     500 * 1024 * 1024,  // 500MB
		CPULoadThreshold:    80,
		MaxTabsLimit:        4,
		TabMemoryUsage:      150 * 1024 * 1024, // 广告库页面比普通页面重
	}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage == 0 {
		config.TabMemoryUsage = 100 * 1024 * 1024
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = 1
	}

	vmStat, err := mem.VirtualMemory()
	var totalMem uint64
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
	}
	log.Debug().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring 启动后台采样,重复调用无副作用
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

// monitoringLoop 后台监控循环
func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)

			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.mu.Unlock()

			cpuUsage := rm.getCPUUsage()
			rm.cpuUsageMu.Lock()
			rm.lastCPUUsage = cpuUsage
			rm.cpuUsageMu.Unlock()
		}
	}
}

// getCPUUsage 所有核心的平均CPU使用率
func (rm *ResourceMonitor) getCPUUsage() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	if len(percentages) == 0 {
		return 0.0
	}
	return percentages[0]
}

// StopMonitoring 停止资源监控
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// availableMemory 扣除本进程占用与安全保留后的可用内存
func (rm *ResourceMonitor) availableMemory() int64 {
	rm.mu.RLock()
	allocated := rm.lastMemStats.Alloc
	rm.mu.RUnlock()
	return int64(rm.totalMemory) - int64(allocated) - rm.config.SafetyReserveMemory
}

// CalculateMaxTabs 当前允许同时打开的探测标签页数,至少为1
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	byMemory := 1
	if available := rm.availableMemory(); available > rm.config.SafetyThreshold {
		byMemory = int((available - rm.config.SafetyThreshold) / rm.config.TabMemoryUsage)
	}

	result := byMemory
	if n := runtime.NumCPU(); n < result {
		result = n
	}
	if rm.config.MaxTabsLimit < result {
		result = rm.config.MaxTabsLimit
	}
	if result < 1 {
		result = 1
	}
	return result
}

// ProbeConcurrency 在请求的并发数与资源上限之间取较小值
func (rm *ResourceMonitor) ProbeConcurrency(requested int) int {
	if requested < 1 {
		requested = 1
	}
	if limit := rm.CalculateMaxTabs(); limit < requested {
		log.Debug().Msgf("资源限制: 域名探测并发由 %d 降为 %d", requested, limit)
		return limit
	}
	return requested
}

// CheckResourceAvailability 检查当前资源是否允许再打开一个标签页
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	available := rm.availableMemory()
	if available < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(当前%dMB)", available/(1024*1024))
	}

	if rm.config.CPULoadThreshold < 200 {
		rm.cpuUsageMu.RLock()
		cpuUsage := rm.lastCPUUsage
		rm.cpuUsageMu.RUnlock()

		if cpuUsage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}
