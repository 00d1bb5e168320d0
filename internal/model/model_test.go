package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"Actor", &Actor{}, "actors"},
		{"ScoreTick", &ScoreTick{}, "score_ticks"},
		{"ScoreEvent", &ScoreEvent{}, "score_events"},
		{"TrackPoint", &TrackPoint{}, "track_points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels(t *testing.T) {
	assert.Len(t, DatabaseModels, 5)
}
