//go:build unix && !linux

package procutil

// sessionMembers is not implemented without procfs; TerminateSession falls
// back to the group kill.
func sessionMembers(int) ([]int, error) {
	return nil, nil
}
