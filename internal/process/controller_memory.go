package process

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Memory is an in-memory Controller for tests.
type Memory struct {
	mu        sync.Mutex
	nextPID   int32
	procs     map[int32]Info
	stubborn  map[int32]bool
	protected map[int32]bool
	terminate []int32
	kill      []int32
	listErr   error
}

// NewMemory returns an empty process table.
func NewMemory() *Memory {
	return &Memory{
		nextPID:   1000,
		procs:     make(map[int32]Info),
		stubborn:  make(map[int32]bool),
		protected: make(map[int32]bool),
	}
}

// Start adds a live process and returns its pid.
func (m *Memory) Start(name, exe string) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPID++
	pid := m.nextPID
	m.procs[pid] = Info{PID: pid, Name: name, Exe: exe}
	return pid
}

// Exit removes a process as if it ended on its own.
func (m *Memory) Exit(pid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
}

// SetStubborn makes pid ignore graceful termination.
func (m *Memory) SetStubborn(pid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubborn[pid] = true
}

// SetProtected makes every action on pid fail with an AccessError.
func (m *Memory) SetProtected(pid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protected[pid] = true
}

// FailList makes Processes return err.
func (m *Memory) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Alive reports whether pid is still in the table.
func (m *Memory) Alive(pid int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.procs[pid]
	return ok
}

// Count returns the number of live processes matching image.
func (m *Memory) Count(image string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.procs {
		if MatchImage(p.Name, image) {
			n++
		}
	}
	return n
}

// Kills returns the pids that were force-killed.
func (m *Memory) Kills() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int32(nil), m.kill...)
}

func (m *Memory) Processes(ctx context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	infos := make([]Info, 0, len(m.procs))
	for _, p := range m.procs {
		infos = append(infos, p)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
	return infos, nil
}

func (m *Memory) Terminate(ctx context.Context, pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(pid, "terminate"); err != nil {
		return err
	}
	m.terminate = append(m.terminate, pid)
	if !m.stubborn[pid] {
		delete(m.procs, pid)
	}
	return nil
}

func (m *Memory) Kill(ctx context.Context, pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(pid, "kill"); err != nil {
		return err
	}
	m.kill = append(m.kill, pid)
	delete(m.procs, pid)
	return nil
}

func (m *Memory) Running(ctx context.Context, pid int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.procs[pid]
	return ok, nil
}

func (m *Memory) check(pid int32, op string) error {
	if _, ok := m.procs[pid]; !ok {
		return ErrNotRunning
	}
	if m.protected[pid] {
		return &AccessError{PID: pid, Op: op, Err: errors.New("protected")}
	}
	return nil
}
