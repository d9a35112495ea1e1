// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

// RobustList is the location of a task's robust futex list in user memory.
// The list is only stored; it is not walked when the task exits.
type RobustList struct {
	// Head is the address of the list head.
	Head uintptr
	// Len is the size of the head structure.
	Len uintptr
}

// SetRobustList stores the robust list for the task.
func (m *Manager) SetRobustList(t Task, head, length uintptr) {
	m.robust.Store(t.TaskID(), RobustList{Head: head, Len: length})
}

// RobustList returns the robust list of the task.
// The zero RobustList is returned, if none was set.
func (m *Manager) RobustList(t Task) RobustList {
	rl, _ := m.robust.Load(t.TaskID())
	return rl
}

// ForgetTask drops all per-task state kept for t.
func (m *Manager) ForgetTask(t Task) {
	m.robust.Delete(t.TaskID())
}
