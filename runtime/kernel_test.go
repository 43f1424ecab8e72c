package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testActivities(t *testing.T, m *ActivityManager, count int) []*Activity {
	t.Helper()
	activities := make([]*Activity, count)
	for i := range activities {
		a, err := m.getActivity()
		if err != nil {
			t.Fatal(err)
		}
		activities[i] = a
	}
	return activities
}

func TestKernelHandsOffInArrivalOrder(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 4)

	var mutex sync.Mutex
	order := []int{}
	var wg sync.WaitGroup

	m.lockKernel(acts[0])
	for i, a := range acts[1:] {
		wg.Add(1)
		go func(a *Activity) {
			defer wg.Done()
			m.lockKernel(a)
			mutex.Lock()
			order = append(order, a.ID())
			mutex.Unlock()
			m.unlockKernel(a)
		}(a)
		waiting := i + 1
		waitFor(t, "kernel waiter", func() bool { return m.WaitingCount() == waiting })
	}
	if owner := m.KernelOwner(); owner != acts[0] {
		t.Errorf("Expected activity %v to hold the kernel", acts[0].ID())
	}
	m.unlockKernel(acts[0])
	wg.Wait()

	exp := []int{acts[1].ID(), acts[2].ID(), acts[3].ID()}
	if diff := cmp.Diff(exp, order); diff != "" {
		t.Errorf("Handoff order mismatch (-want +got):\n%s", diff)
	}
	if owner := m.KernelOwner(); owner != nil {
		t.Errorf("Expected a free kernel, got activity %v instead", owner.ID())
	}
}

func TestRelinquishLetsWaiterRun(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 2)

	var mutex sync.Mutex
	order := []int{}
	record := func(a *Activity) {
		mutex.Lock()
		order = append(order, a.ID())
		mutex.Unlock()
	}

	// nobody waiting: relinquish keeps the kernel
	m.lockKernel(acts[0])
	m.relinquish(acts[0])
	if owner := m.KernelOwner(); owner != acts[0] {
		t.Fatalf("Expected %v to keep the kernel", acts[0].ID())
	}

	done := make(chan struct{})
	go func() {
		m.lockKernel(acts[1])
		record(acts[1])
		m.unlockKernel(acts[1])
		close(done)
	}()
	waitFor(t, "kernel waiter", func() bool { return m.WaitingCount() == 1 })
	m.relinquish(acts[0])
	record(acts[0])
	m.unlockKernel(acts[0])
	<-done

	exp := []int{acts[1].ID(), acts[0].ID()}
	if diff := cmp.Diff(exp, order); diff != "" {
		t.Errorf("Run order mismatch (-want +got):\n%s", diff)
	}
}

func TestLockKernelImmediate(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 3)

	if !m.lockKernelImmediate(acts[0]) {
		t.Fatal("Expected the free kernel to be taken")
	}
	if m.lockKernelImmediate(acts[1]) {
		t.Error("Expected the held kernel to be refused")
	}

	done := make(chan struct{})
	go func() {
		m.lockKernel(acts[1])
		m.unlockKernel(acts[1])
		close(done)
	}()
	waitFor(t, "kernel waiter", func() bool { return m.WaitingCount() == 1 })
	m.unlockKernel(acts[0])
	<-done

	// a free kernel is taken by lockKernel without queueing
	m.lockKernel(acts[2])
	if owner := m.KernelOwner(); owner != acts[2] {
		t.Errorf("Expected activity %v to hold the kernel", acts[2].ID())
	}
	if n := m.WaitingCount(); n != 0 {
		t.Errorf("Expected %v, got %v instead", 0, n)
	}
	m.unlockKernel(acts[2])
}

func TestLockKernelImmediateRefusedWhileOthersWait(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 3)

	m.lockKernel(acts[0])
	done := make(chan struct{})
	go func() {
		m.lockKernel(acts[1])
		m.unlockKernel(acts[1])
		close(done)
	}()
	waitFor(t, "kernel waiter", func() bool { return m.WaitingCount() == 1 })
	if m.lockKernelImmediate(acts[2]) {
		t.Error("Expected the kernel to be refused while an activity waits")
	}
	m.unlockKernel(acts[0])
	<-done
	if owner := m.KernelOwner(); owner != nil {
		t.Errorf("Expected a free kernel, got activity %v instead", owner.ID())
	}
}

func TestUnlockByNonOwnerPanics(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 2)

	m.lockKernel(acts[0])
	defer m.unlockKernel(acts[0])
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected a panic")
		}
	}()
	m.unlockKernel(acts[1])
}
