package builtin

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/df-mc/foundation/server/cmd"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type statusCommand struct {
	srv serverAdapter
}

func newStatusCommand(srv serverAdapter) cmd.Command {
	return cmd.New("status", "Displays server performance statistics.", []string{"tps"}, statusCommand{srv: srv})
}

func (s statusCommand) Run(_ cmd.Source, o *cmd.Output) {
	start := s.srv.StartTime()
	if !start.IsZero() {
		o.Printf("Uptime: %s", time.Since(start).Round(time.Second))
	}
	link := "down"
	if s.srv.Linked() {
		link = "up"
	}
	o.Printf("Server: %s | Mode: %s | Link: %s", s.srv.Name(), s.srv.Mode(), link)

	channels := s.srv.Registry().Channels()
	regions := 0
	if st := s.srv.Regions(); st != nil {
		regions = len(st.Names())
	}
	jobs := 0
	if sched, _ := s.srv.Visuals(); sched != nil {
		jobs = sched.Jobs()
	}
	o.Printf("Channels: %d | Regions: %d | Visual jobs: %d", len(channels), regions, jobs)
	o.Printf("Selections: %d | Conversations: %d | Plugins: %d", s.srv.Selections().Len(), s.srv.Conversations().Len(), len(s.srv.Plugins()))

	if line, err := processLine(); err == nil {
		o.Print(line)
	}
	if line, err := systemLine(); err == nil {
		o.Print(line)
	} else {
		o.Printf("System: unavailable (%v)", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	o.Printf("Heap: %.2f MiB used / %.2f MiB reserved", bytesToMiB(ms.HeapAlloc), bytesToMiB(ms.HeapSys))
	o.Printf("Goroutines: %d | GOMAXPROCS: %d | GC cycles: %d", runtime.NumGoroutine(), runtime.GOMAXPROCS(0), ms.NumGC)
}

func processLine() (string, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return "", err
	}
	pct, err := p.Percent(0)
	if err != nil {
		return "", err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Process: %.1f%% CPU | %.2f MiB resident", pct, bytesToMiB(info.RSS)), nil
}

func systemLine() (string, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return "", err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("System: %d cores | Memory %.0f/%.0f MiB (%.1f%%)", cores, bytesToMiB(vm.Used), bytesToMiB(vm.Total), vm.UsedPercent)
	// Load averages are not reported on every platform.
	if avg, err := load.Avg(); err == nil {
		line += fmt.Sprintf(" | Load %.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
	return line, nil
}
