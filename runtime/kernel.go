package runtime

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/rs/zerolog/log"
)

// The kernel lock serializes all interpretation. Activities that find it
// held queue up in arrival order, and a releasing activity hands the lock
// straight to the head of the queue.
type kernel struct {
	owner   *Activity
	waiting *linkedlistqueue.Queue
}

func (m *ActivityManager) lockKernel(a *Activity) {
	if m.lockKernelImmediate(a) {
		return
	}
	m.kernelMutex.Lock()
	// released between the two checks
	if m.takeFreeKernel(a) {
		m.kernelMutex.Unlock()
		return
	}
	m.kernel.waiting.Enqueue(a)
	m.kernelMutex.Unlock()
	<-a.runSem
}

// Take the kernel only if it is free and nobody is waiting for it.
func (m *ActivityManager) lockKernelImmediate(a *Activity) bool {
	m.kernelMutex.Lock()
	defer m.kernelMutex.Unlock()
	return m.takeFreeKernel(a)
}

// Called with the kernel mutex held.
func (m *ActivityManager) takeFreeKernel(a *Activity) bool {
	if m.kernel.owner != nil || !m.kernel.waiting.Empty() {
		return false
	}
	m.kernel.owner = a
	return true
}

func (m *ActivityManager) unlockKernel(a *Activity) {
	m.kernelMutex.Lock()
	defer m.kernelMutex.Unlock()
	if m.kernel.owner != a {
		panic("Kernel released by an activity that does not hold it.")
	}
	m.postRelease()
}

// Hand the kernel to the first waiter, or leave it free. Called with the
// kernel mutex held.
func (m *ActivityManager) postRelease() {
	next, ok := m.kernel.waiting.Dequeue()
	if !ok {
		m.kernel.owner = nil
		return
	}
	owner := next.(*Activity)
	m.kernel.owner = owner
	log.Trace().Int("activity", owner.id).Msg("kernel handed off")
	owner.runSem <- struct{}{}
}

// Go to the back of the queue if anybody else wants to run.
func (m *ActivityManager) relinquish(a *Activity) {
	m.kernelMutex.Lock()
	if m.kernel.waiting.Empty() {
		m.kernelMutex.Unlock()
		return
	}
	m.kernel.waiting.Enqueue(a)
	m.postRelease()
	m.kernelMutex.Unlock()
	<-a.runSem
}

// The activity currently holding the kernel, if any.
func (m *ActivityManager) KernelOwner() *Activity {
	m.kernelMutex.Lock()
	defer m.kernelMutex.Unlock()
	return m.kernel.owner
}

// The number of activities waiting for the kernel.
func (m *ActivityManager) WaitingCount() int {
	m.kernelMutex.Lock()
	defer m.kernelMutex.Unlock()
	return m.kernel.waiting.Size()
}
