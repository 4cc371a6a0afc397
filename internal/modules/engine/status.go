package engine

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type HostStats struct {
	CPUs              int     `json:"cpus"`
	MemoryTotal       uint64  `json:"memory_total"`
	MemoryAvailable   uint64  `json:"memory_available"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

type Status struct {
	State    State     `json:"state"`
	Ready    bool      `json:"ready"`
	Error    string    `json:"error,omitempty"`
	Binary   string    `json:"binary,omitempty"`
	LoadedIn int64     `json:"loaded_in_ms,omitempty"`
	Host     HostStats `json:"host"`
}

func (l *Loader) Status(ctx context.Context) *Status {
	st := &Status{
		State: l.State(),
		Ready: l.Ready(),
	}
	switch st.State {
	case StateFailed:
		st.Error = l.err.Error()
		st.LoadedIn = l.loadedIn.Milliseconds()
	case StateReady:
		if b, ok := l.handle.(interface{ Binary() string }); ok {
			st.Binary = b.Binary()
		}
		st.LoadedIn = l.loadedIn.Milliseconds()
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		st.Host.CPUs = n
	} else {
		logger.Debugf("cannot read cpu count: %v", err)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.Host.MemoryTotal = vm.Total
		st.Host.MemoryAvailable = vm.Available
		st.Host.MemoryUsedPercent = vm.UsedPercent
	} else {
		logger.Debugf("cannot read memory stats: %v", err)
	}
	return st
}
