// internal/domain/escalation/policy.go
package escalation

import (
	"errors"
	"fmt"
	"time"
)

// Channel is the transport a stage notification goes out on.
type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelSMS  Channel = "sms"
	ChannelCall Channel = "call"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelChat, ChannelSMS, ChannelCall:
		return true
	}
	return false
}

// RecipientRule decides who receives a stage notification.
type RecipientRule string

const (
	RecipientWorkerSelf        RecipientRule = "worker_self"
	RecipientFixedRoster       RecipientRule = "fixed_roster"
	RecipientNextShiftOccupant RecipientRule = "next_shift_occupant"
)

func (r RecipientRule) Valid() bool {
	switch r {
	case RecipientWorkerSelf, RecipientFixedRoster, RecipientNextShiftOccupant:
		return true
	}
	return false
}

// Stage is one configured step of a policy. StageNumber is for display only;
// the engine addresses stages by slice index.
type Stage struct {
	StageNumber   int
	WaitMinutes   int
	Channel       Channel
	RecipientRule RecipientRule
	// StopOnResponse is stored but not consulted: any confirmed response
	// ends the whole chain.
	StopOnResponse bool
}

func (s Stage) Wait() time.Duration {
	return time.Duration(s.WaitMinutes) * time.Minute
}

// Policy is read-only to the engine. Stages[0] carries the wait after the
// initial chat notification to the worker.
type Policy struct {
	ID             string
	OrganizationID string
	Name           string
	StaffIDs       []string // fixed roster for RecipientFixedRoster stages
	Stages         []Stage
}

var ErrInvalidPolicy = errors.New("invalid escalation policy")

// Validate checks the policy at the store boundary.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPolicy)
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: policy %s has no stages", ErrInvalidPolicy, p.ID)
	}
	for i, st := range p.Stages {
		if st.WaitMinutes < 0 {
			return fmt.Errorf("%w: policy %s stage %d has negative wait", ErrInvalidPolicy, p.ID, i)
		}
		if !st.Channel.Valid() {
			return fmt.Errorf("%w: policy %s stage %d has unknown channel %q", ErrInvalidPolicy, p.ID, i, st.Channel)
		}
		if !st.RecipientRule.Valid() {
			return fmt.Errorf("%w: policy %s stage %d has unknown recipient rule %q", ErrInvalidPolicy, p.ID, i, st.RecipientRule)
		}
		if st.RecipientRule == RecipientFixedRoster && len(p.StaffIDs) == 0 {
			return fmt.Errorf("%w: policy %s stage %d targets the fixed roster but no staff is configured", ErrInvalidPolicy, p.ID, i)
		}
	}
	return nil
}
