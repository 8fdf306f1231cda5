package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusComplete.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJobStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusQueued, JobStatusComplete, false},
		{JobStatusQueued, JobStatusFailed, false},
		{JobStatusProcessing, JobStatusComplete, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusQueued, false},
		{JobStatusComplete, JobStatusFailed, false},
		{JobStatusComplete, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusComplete, false},
		{JobStatusFailed, JobStatusQueued, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestProspectEmpty(t *testing.T) {
	assert.True(t, ExtractedProspect{}.Empty())
	assert.True(t, ExtractedProspect{
		Links:            []string{"https://acme.com/team"},
		IndustryKeywords: []string{"manufacturing"},
	}.Empty(), "links and keywords alone do not make a prospect persistable")

	assert.False(t, ExtractedProspect{CompanyName: "Acme Corp"}.Empty())
	assert.False(t, ExtractedProspect{People: []Person{{Name: "Jane Doe"}}}.Empty())
	assert.False(t, ExtractedProspect{Emails: []string{"jane@acme.com"}}.Empty())
}
