package models

import (
	"testing"
	"time"
)

func TestTaskState(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		task Task
		want TaskView
	}{
		{
			name: "new task is active",
			task: Task{},
			want: TaskViewActive,
		},
		{
			name: "completed task",
			task: Task{Completed: true},
			want: TaskViewCompleted,
		},
		{
			name: "archived wins over completed",
			task: Task{Completed: true, Archived: true, ArchivedAt: &now},
			want: TaskViewArchived,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.task.State(); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskInView(t *testing.T) {
	t.Parallel()

	open := Task{}
	completed := Task{Completed: true}
	archived := Task{Completed: true, Archived: true}

	tests := []struct {
		name string
		task Task
		view TaskView
		want bool
	}{
		{"open task in active view", open, TaskViewActive, true},
		{"completed task stays in active view", completed, TaskViewActive, true},
		{"archived task not in active view", archived, TaskViewActive, false},
		{"open task not in completed view", open, TaskViewCompleted, false},
		{"completed task in completed view", completed, TaskViewCompleted, true},
		{"archived task not in completed view", archived, TaskViewCompleted, false},
		{"archived task in archived view", archived, TaskViewArchived, true},
		{"open task in all view", open, TaskViewAll, true},
		{"archived task in all view", archived, TaskViewAll, true},
		{"unknown view matches nothing", open, TaskView("bogus"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.task.InView(tt.view); got != tt.want {
				t.Errorf("InView(%q) = %v, want %v", tt.view, got, tt.want)
			}
		})
	}
}
