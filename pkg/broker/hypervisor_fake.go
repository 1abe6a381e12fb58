package broker

import "context"

// FakeHypervisor is a scriptable Hypervisor for tests.
type FakeHypervisor struct {
	StartErr error
	StopErr  error

	StartCalls int
	StopCalls  int

	// Stats is consulted by GetStorageRepoStats in order, popped (FIFO)
	// per call; if exhausted, the last entry repeats. This lets tests
	// script a NONE -> PENDING -> ACQUIRED progression across polls.
	Stats    []map[string]RepoStat
	StatsErr error

	next int
}

func (f *FakeHypervisor) StartMonitoringDomain(_ context.Context, _ string, _ int) error {
	f.StartCalls++
	return f.StartErr
}

func (f *FakeHypervisor) StopMonitoringDomain(_ context.Context, _ string) error {
	f.StopCalls++
	return f.StopErr
}

func (f *FakeHypervisor) GetStorageRepoStats(_ context.Context, _ []string) (map[string]RepoStat, error) {
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}

	if len(f.Stats) == 0 {
		return nil, nil
	}

	idx := f.next
	if idx >= len(f.Stats) {
		idx = len(f.Stats) - 1
	} else {
		f.next++
	}

	return f.Stats[idx], nil
}

var _ Hypervisor = (*FakeHypervisor)(nil)
