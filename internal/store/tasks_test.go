package store

import (
	"errors"
	"testing"
)

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	mustCreateSwarm(t, s, "s1")

	task := &Task{ID: "t1", SwarmID: "s1", Type: "build", Description: "compile the thing", Status: TaskPending, Priority: PriorityHigh}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.Priority != PriorityHigh || got.Status != TaskPending {
		t.Errorf("unexpected task: priority=%s status=%s", got.Priority, got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("fresh task should have nil completed_at")
	}

	// Not found
	got, err = s.GetTask("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent task")
	}

	// Empty partial update rejected
	if err := s.UpdateTask("t1"); !errors.Is(err, ErrNoFields) {
		t.Errorf("expected ErrNoFields, got %v", err)
	}
}

func TestPendingTaskOrdering(t *testing.T) {
	s := newTestStore(t)
	mustCreateSwarm(t, s, "s1")

	// Created in this order; dispatch must be by priority band, FIFO inside it.
	specs := []struct{ id, priority string }{
		{"low-1", PriorityLow},
		{"med-1", PriorityMedium},
		{"crit-1", PriorityCritical},
		{"med-2", PriorityMedium},
		{"high-1", PriorityHigh},
		{"crit-2", PriorityCritical},
	}
	for _, spec := range specs {
		if err := s.CreateTask(&Task{ID: spec.id, SwarmID: "s1", Description: "work", Status: TaskPending, Priority: spec.priority}); err != nil {
			t.Fatalf("create %s: %v", spec.id, err)
		}
	}

	tasks, err := s.PendingTasks("s1", 0)
	if err != nil {
		t.Fatalf("pending tasks: %v", err)
	}

	want := []string{"crit-1", "crit-2", "high-1", "med-1", "med-2", "low-1"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, tasks[i].ID)
		}
	}

	// Limit caps the result
	tasks, _ = s.PendingTasks("s1", 2)
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks with limit, got %d", len(tasks))
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	s := newTestStore(t)
	mustCreateSwarm(t, s, "s1")
	_ = s.CreateTask(&Task{ID: "t1", SwarmID: "s1", Description: "work", Status: TaskPending, Priority: PriorityMedium})

	// Non-terminal status leaves completed_at null
	if err := s.UpdateTaskStatus("t1", TaskInProgress); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := s.GetTask("t1")
	if got.CompletedAt != nil {
		t.Error("in_progress task must not have completed_at")
	}

	// Terminal status sets it
	if err := s.UpdateTaskStatus("t1", TaskCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = s.GetTask("t1")
	if got.CompletedAt == nil {
		t.Error("completed task must have completed_at")
	}

	// Moving back to non-terminal clears it again
	if err := s.UpdateTaskStatus("t1", TaskPending); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = s.GetTask("t1")
	if got.CompletedAt != nil {
		t.Error("pending task must not have completed_at")
	}
}

func TestReassignTask(t *testing.T) {
	s := newTestStore(t)
	mustCreateSwarm(t, s, "s1")
	_ = s.CreateAgent(&Agent{ID: "a1", SwarmID: "s1", Name: "worker-1", Type: AgentCoder, Status: AgentIdle})
	_ = s.CreateTask(&Task{ID: "t1", SwarmID: "s1", Description: "work", Status: TaskPending, Priority: PriorityMedium})

	if err := s.ReassignTask("t1", "a1"); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	got, _ := s.GetTask("t1")
	if got.Status != TaskAssigned {
		t.Errorf("expected assigned, got %s", got.Status)
	}
	if got.AssignedAgentID != "a1" {
		t.Errorf("expected agent a1, got %s", got.AssignedAgentID)
	}
	if got.AssignedAt == nil {
		t.Error("expected assigned_at to be set")
	}

	if err := s.ReassignTask("ghost", "a1"); err == nil {
		t.Error("expected error reassigning unknown task")
	}
}

func TestActiveTasksJoinAgentName(t *testing.T) {
	s := newTestStore(t)
	mustCreateSwarm(t, s, "s1")
	_ = s.CreateAgent(&Agent{ID: "a1", SwarmID: "s1", Name: "worker-1", Type: AgentCoder, Status: AgentIdle})

	_ = s.CreateTask(&Task{ID: "t1", SwarmID: "s1", Description: "assigned work", Status: TaskPending, Priority: PriorityMedium})
	_ = s.CreateTask(&Task{ID: "t2", SwarmID: "s1", Description: "still pending", Status: TaskPending, Priority: PriorityMedium})
	_ = s.ReassignTask("t1", "a1")

	active, err := s.ActiveTasks("s1")
	if err != nil {
		t.Fatalf("active tasks: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active task, got %d", len(active))
	}
	if active[0].ID != "t1" {
		t.Errorf("expected t1, got %s", active[0].ID)
	}
	if active[0].AssignedAgentName != "worker-1" {
		t.Errorf("expected agent name worker-1, got %q", active[0].AssignedAgentName)
	}
}
