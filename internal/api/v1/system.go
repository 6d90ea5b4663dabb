package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

// SystemInfo represents basic host and process information
type SystemInfo struct {
	OS            string    `json:"os"`
	Architecture  string    `json:"architecture"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	PlatformVer   string    `json:"platform_version"`
	KernelVersion string    `json:"kernel_version"`
	UpTime        uint64    `json:"uptime_seconds"`
	BootTime      time.Time `json:"boot_time"`
	AppStart      time.Time `json:"app_start_time"`
	AppUptime     int64     `json:"app_uptime_seconds"`
	NumCPU        int       `json:"num_cpu"`
	GoVersion     string    `json:"go_version"`
}

// ResourceInfo represents memory, process and data directory usage
type ResourceInfo struct {
	MemoryTotal uint64     `json:"memory_total"`
	MemoryUsed  uint64     `json:"memory_used"`
	MemoryFree  uint64     `json:"memory_free"`
	MemoryUsage float64    `json:"memory_usage_percent"`
	ProcessMem  float64    `json:"process_memory_mb"`
	ProcessCPU  float64    `json:"process_cpu_percent"`
	Goroutines  int        `json:"goroutines"`
	DataDisk    *DiskUsage `json:"data_disk,omitempty"`
}

// DiskUsage describes the filesystem holding the database file
type DiskUsage struct {
	Path      string  `json:"path"`
	Fstype    string  `json:"fstype"`
	Total     uint64  `json:"total"`
	Used      uint64  `json:"used"`
	Free      uint64  `json:"free"`
	UsagePerc float64 `json:"usage_percent"`
}

var startTime = time.Now()

func (c *Controller) initSystemRoutes() {
	systemGroup := c.Group.Group("/system")
	systemGroup.GET("/info", c.GetSystemInfo)
	systemGroup.GET("/resources", c.GetResourceInfo)
}

// GetSystemInfo handles GET /api/v1/system/info
func (c *Controller) GetSystemInfo(ctx echo.Context) error {
	hostInfo, err := host.InfoWithContext(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, systemError(err, "host_info"))
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return ctx.JSON(http.StatusOK, SystemInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		Hostname:      hostname,
		Platform:      hostInfo.Platform,
		PlatformVer:   hostInfo.PlatformVersion,
		KernelVersion: hostInfo.KernelVersion,
		UpTime:        hostInfo.Uptime,
		BootTime:      time.Unix(int64(hostInfo.BootTime), 0),
		AppStart:      startTime,
		AppUptime:     int64(time.Since(startTime).Seconds()),
		NumCPU:        runtime.NumCPU(),
		GoVersion:     runtime.Version(),
	})
}

// GetResourceInfo handles GET /api/v1/system/resources
func (c *Controller) GetResourceInfo(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	memInfo, err := mem.VirtualMemoryWithContext(reqCtx)
	if err != nil {
		return c.HandleError(ctx, systemError(err, "virtual_memory"))
	}

	info := ResourceInfo{
		MemoryTotal: memInfo.Total,
		MemoryUsed:  memInfo.Used,
		MemoryFree:  memInfo.Free,
		MemoryUsage: memInfo.UsedPercent,
		Goroutines:  runtime.NumGoroutine(),
	}

	// Process figures are best effort; some containers hide /proc entries
	if proc, err := process.NewProcessWithContext(reqCtx, int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfoWithContext(reqCtx); err == nil && procMem != nil {
			info.ProcessMem = float64(procMem.RSS) / 1024 / 1024
		}
		if procCPU, err := proc.CPUPercentWithContext(reqCtx); err == nil {
			info.ProcessCPU = procCPU
		}
	}

	if c.svc.DataDir != "" {
		usage, err := disk.UsageWithContext(reqCtx, c.svc.DataDir)
		if err != nil {
			c.logger.Debug("data directory usage unavailable",
				logger.String("path", c.svc.DataDir),
				logger.Error(err))
		} else {
			info.DataDisk = &DiskUsage{
				Path:      usage.Path,
				Fstype:    usage.Fstype,
				Total:     usage.Total,
				Used:      usage.Used,
				Free:      usage.Free,
				UsagePerc: usage.UsedPercent,
			}
		}
	}

	return ctx.JSON(http.StatusOK, info)
}

func systemError(err error, operation string) error {
	return errors.New(err).
		Component(componentAPI).
		Category(errors.CategorySystem).
		Context("operation", operation).
		Build()
}
