//go:build linux

package procutil

import "github.com/prometheus/procfs"

// sessionMembers lists the pids whose session id is sid.
func sessionMembers(sid int) ([]int, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range procs {
		st, err := p.Stat()
		if err != nil {
			// Exited while we were listing.
			continue
		}
		if st.Session == sid {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}
