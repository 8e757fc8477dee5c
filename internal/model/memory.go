package model

import (
	"log/slog"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// Reclaim collects unreferenced memory and returns freed pages to the OS.
func Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}

// MemoryUsage returns the resident set size of the process. If the OS query
// fails it falls back to the memory the Go runtime has obtained.
func MemoryUsage() uint64 {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil && mi.RSS > 0 {
			return mi.RSS
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}

// ApplySoftLimit sets the Go runtime memory limit. Zero leaves it unlimited.
// The limit must sit well above the loaded model's resident size or the
// collector runs continuously.
func ApplySoftLimit(bytes uint64) {
	if bytes == 0 {
		debug.SetMemoryLimit(math.MaxInt64)
		return
	}
	if bytes > math.MaxInt64 {
		bytes = math.MaxInt64
	}
	debug.SetMemoryLimit(int64(bytes))
}

// MemoryGuard triggers a reclaim pass when usage exceeds a soft limit. The
// effective limit never drops below the usage recorded by the last Rebase,
// so memory held by a loaded model does not force a reclaim on every call.
type MemoryGuard struct {
	LimitBytes uint64
	usage      func() uint64

	mu    sync.Mutex
	floor uint64
}

func NewMemoryGuard(limit uint64) *MemoryGuard {
	return &MemoryGuard{LimitBytes: limit, usage: MemoryUsage}
}

// Limit returns the effective soft limit.
func (g *MemoryGuard) Limit() uint64 {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return max(g.LimitBytes, g.floor)
}

// Rebase records current usage as the resident baseline. Call it right after
// a model load.
func (g *MemoryGuard) Rebase(log *slog.Logger) {
	if g == nil || g.LimitBytes == 0 {
		return
	}
	used := g.usage()
	g.mu.Lock()
	g.floor = used
	g.mu.Unlock()
	if used > g.LimitBytes && log != nil {
		log.Warn("resident size after model load exceeds memory soft limit",
			"limit", humanize.IBytes(g.LimitBytes),
			"resident", humanize.IBytes(used),
		)
	}
}

// Check reclaims memory if usage is above the limit and reports whether it did.
func (g *MemoryGuard) Check(log *slog.Logger) bool {
	if g == nil || g.LimitBytes == 0 {
		return false
	}
	limit := g.Limit()
	used := g.usage()
	if used <= limit {
		return false
	}
	Reclaim()
	after := g.usage()
	if log != nil {
		log.Warn("memory above soft limit, reclaimed",
			"limit", humanize.IBytes(limit),
			"before", humanize.IBytes(used),
			"after", humanize.IBytes(after),
		)
	}
	return true
}
