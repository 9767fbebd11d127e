package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
)

func TestCanTransitionTask(t *testing.T) {
	allowed := [][2]string{
		{entity.TaskStatusPending, entity.TaskStatusInProgress},
		{entity.TaskStatusPending, entity.TaskStatusCancelled},
		{entity.TaskStatusInProgress, entity.TaskStatusPaused},
		{entity.TaskStatusInProgress, entity.TaskStatusCompleted},
		{entity.TaskStatusInProgress, entity.TaskStatusCancelled},
		{entity.TaskStatusPaused, entity.TaskStatusInProgress},
		{entity.TaskStatusPaused, entity.TaskStatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, entity.CanTransitionTask(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]string{
		{entity.TaskStatusPending, entity.TaskStatusPaused},
		{entity.TaskStatusPending, entity.TaskStatusCompleted},
		{entity.TaskStatusPaused, entity.TaskStatusCompleted},
		{entity.TaskStatusCompleted, entity.TaskStatusInProgress},
		{entity.TaskStatusCancelled, entity.TaskStatusPending},
	}
	for _, tr := range denied {
		assert.False(t, entity.CanTransitionTask(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestOpenTaskStatus(t *testing.T) {
	assert.True(t, entity.OpenTaskStatus(entity.TaskStatusPending))
	assert.True(t, entity.OpenTaskStatus(entity.TaskStatusPaused))
	assert.False(t, entity.OpenTaskStatus(entity.TaskStatusCompleted))
	assert.False(t, entity.OpenTaskStatus(entity.TaskStatusCancelled))
}
