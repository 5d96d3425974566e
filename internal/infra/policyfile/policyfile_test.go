package policyfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shift_attendance_bot/internal/domain/escalation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicies = `
policies:
  - id: default
    organization_id: org-1
    name: Standard shift escalation
    staff_ids: [sup-1, sup-2]
    stages:
      - wait_minutes: 5
        channel: chat
        recipient_rule: worker_self
      - wait_minutes: 10
        channel: sms
        recipient_rule: worker_self
      - wait_minutes: 15
        channel: chat
        recipient_rule: fixed_roster
        stop_on_response: false
      - wait_minutes: 0
        channel: call
        recipient_rule: next_shift_occupant
`

func TestParse(t *testing.T) {
	policies, err := Parse([]byte(samplePolicies))
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.Equal(t, "default", p.ID)
	assert.Equal(t, "org-1", p.OrganizationID)
	assert.Equal(t, []string{"sup-1", "sup-2"}, p.StaffIDs)
	require.Len(t, p.Stages, 4)
	assert.Equal(t, escalation.Stage{StageNumber: 1, WaitMinutes: 10, Channel: escalation.ChannelSMS, RecipientRule: escalation.RecipientWorkerSelf, StopOnResponse: true}, p.Stages[1])
	assert.False(t, p.Stages[2].StopOnResponse)
	assert.Equal(t, escalation.RecipientNextShiftOccupant, p.Stages[3].RecipientRule)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "policies: []"},
		{"unknown channel", "policies:\n  - id: p\n    stages:\n      - {wait_minutes: 1, channel: fax, recipient_rule: worker_self}\n"},
		{"negative wait", "policies:\n  - id: p\n    stages:\n      - {wait_minutes: -1, channel: chat, recipient_rule: worker_self}\n"},
		{"roster without staff", "policies:\n  - id: p\n    stages:\n      - {wait_minutes: 1, channel: chat, recipient_rule: fixed_roster}\n"},
		{"duplicate id", "policies:\n  - id: p\n    stages: [{wait_minutes: 1, channel: chat, recipient_rule: worker_self}]\n  - id: p\n    stages: [{wait_minutes: 1, channel: chat, recipient_rule: worker_self}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, escalation.ErrInvalidPolicy)
		})
	}

	_, err := Parse([]byte("policies:\n  - id: p\n    stagez: []\n"))
	assert.ErrorContains(t, err, "parse policy file")
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicies), 0o600))

	repo, err := OpenFileRepository(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, repo.IDs())

	p, err := repo.GetPolicy(context.Background(), "default")
	require.NoError(t, err)
	p.Stages[0].WaitMinutes = 99

	again, err := repo.GetPolicy(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Stages[0].WaitMinutes)

	_, err = repo.GetPolicy(context.Background(), "missing")
	assert.ErrorIs(t, err, escalation.ErrPolicyNotFound)

	_, err = OpenFileRepository(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read policy file")
}
