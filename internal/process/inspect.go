package process

import (
	"errors"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Alive reports whether pid is a live process. Zombies are not alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	st, err := p.Status()
	if err != nil {
		ok, _ := p.IsRunning()
		return ok
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return false
		}
	}
	return true
}

// Children lists the live children of pid whose command line contains match.
// An empty match selects every child.
func Children(pid int, match string) ([]int32, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	kids, err := p.Children()
	if err != nil {
		if errors.Is(err, gopsproc.ErrorNoChildren) {
			return nil, nil
		}
		return nil, err
	}
	var out []int32
	for _, k := range kids {
		if !Alive(int(k.Pid)) {
			continue
		}
		if match != "" {
			cl, err := k.Cmdline()
			if err != nil || !strings.Contains(cl, match) {
				continue
			}
		}
		out = append(out, k.Pid)
	}
	return out, nil
}
