// Package policyfile loads escalation policies from a YAML document so they
// can be versioned next to the deployment instead of living in the database.
package policyfile

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"shift_attendance_bot/internal/domain/escalation"

	"gopkg.in/yaml.v3"
)

// Document is the top-level shape of a policy file.
type Document struct {
	Policies []PolicyEntry `yaml:"policies"`
}

type PolicyEntry struct {
	ID             string      `yaml:"id"`
	OrganizationID string      `yaml:"organization_id"`
	Name           string      `yaml:"name"`
	StaffIDs       []string    `yaml:"staff_ids,omitempty"`
	Stages         []StageEntry `yaml:"stages"`
}

type StageEntry struct {
	StageNumber    int    `yaml:"stage_number,omitempty"`
	WaitMinutes    int    `yaml:"wait_minutes"`
	Channel        string `yaml:"channel"`
	RecipientRule  string `yaml:"recipient_rule"`
	StopOnResponse *bool  `yaml:"stop_on_response,omitempty"`
}

// Parse decodes and validates a policy document. Unknown keys are rejected
// so typos do not silently drop a stage setting.
func Parse(data []byte) ([]*escalation.Policy, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(doc.Policies) == 0 {
		return nil, fmt.Errorf("%w: policy file defines no policies", escalation.ErrInvalidPolicy)
	}

	seen := make(map[string]bool, len(doc.Policies))
	out := make([]*escalation.Policy, 0, len(doc.Policies))
	for _, entry := range doc.Policies {
		p := entry.toPolicy()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate policy id %s", escalation.ErrInvalidPolicy, p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// LoadFile reads and parses the policy file at path.
func LoadFile(path string) ([]*escalation.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

func (pe PolicyEntry) toPolicy() *escalation.Policy {
	p := &escalation.Policy{
		ID:             pe.ID,
		OrganizationID: pe.OrganizationID,
		Name:           pe.Name,
		StaffIDs:       pe.StaffIDs,
		Stages:         make([]escalation.Stage, 0, len(pe.Stages)),
	}
	for i, st := range pe.Stages {
		number := st.StageNumber
		if number == 0 {
			number = i
		}
		stop := true
		if st.StopOnResponse != nil {
			stop = *st.StopOnResponse
		}
		p.Stages = append(p.Stages, escalation.Stage{
			StageNumber:    number,
			WaitMinutes:    st.WaitMinutes,
			Channel:        escalation.Channel(st.Channel),
			RecipientRule:  escalation.RecipientRule(st.RecipientRule),
			StopOnResponse: stop,
		})
	}
	return p
}

// FileRepository serves policies loaded from a file. It satisfies
// escalation.PolicyRepository.
type FileRepository struct {
	policies map[string]*escalation.Policy
}

func NewFileRepository(policies []*escalation.Policy) *FileRepository {
	m := make(map[string]*escalation.Policy, len(policies))
	for _, p := range policies {
		m[p.ID] = p
	}
	return &FileRepository{policies: m}
}

// OpenFileRepository loads path into a FileRepository.
func OpenFileRepository(path string) (*FileRepository, error) {
	policies, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFileRepository(policies), nil
}

func (r *FileRepository) GetPolicy(_ context.Context, id string) (*escalation.Policy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, escalation.ErrPolicyNotFound
	}
	cp := *p
	cp.StaffIDs = append([]string(nil), p.StaffIDs...)
	cp.Stages = append([]escalation.Stage(nil), p.Stages...)
	return &cp, nil
}

// IDs lists the loaded policy IDs.
func (r *FileRepository) IDs() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	return ids
}
