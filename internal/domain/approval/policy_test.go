package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Matches(t *testing.T) {
	tests := []struct {
		name           string
		match          Classification
		classification Classification
		expected       bool
	}{
		{
			name:           "no predicates matches everything",
			match:          nil,
			classification: Classification{"team": "rolling-mill"},
			expected:       true,
		},
		{
			name:           "single predicate match",
			match:          Classification{"team": "rolling-mill"},
			classification: Classification{"team": "rolling-mill"},
			expected:       true,
		},
		{
			name:           "single predicate mismatch",
			match:          Classification{"team": "rolling-mill"},
			classification: Classification{"team": "maintenance"},
			expected:       false,
		},
		{
			name:           "all predicates must hold",
			match:          Classification{"department": "plant", "priority": "urgent"},
			classification: Classification{"department": "plant", "priority": "normal"},
			expected:       false,
		},
		{
			name:           "missing key fails the predicate",
			match:          Classification{"team": "rolling-mill"},
			classification: Classification{},
			expected:       false,
		},
		{
			name:           "extra classification keys are ignored",
			match:          Classification{"team": "rolling-mill"},
			classification: Classification{"team": "rolling-mill", "shift": "night"},
			expected:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Policy{Name: "test", Match: tt.match}
			assert.Equal(t, tt.expected, p.Matches(tt.classification))
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	fixed := ApproverRule{Kind: RuleFixedUsers, UserIDs: []int64{1}}

	tests := []struct {
		name    string
		stages  []StageTemplate
		wantErr bool
	}{
		{
			name:    "no stages",
			stages:  nil,
			wantErr: true,
		},
		{
			name: "single stage",
			stages: []StageTemplate{
				{Order: 1, Name: "supervisor", Rule: fixed},
			},
			wantErr: false,
		},
		{
			name: "strictly increasing orders with gaps",
			stages: []StageTemplate{
				{Order: 1, Name: "supervisor", Rule: fixed},
				{Order: 5, Name: "plant manager", Rule: fixed},
			},
			wantErr: false,
		},
		{
			name: "duplicate order",
			stages: []StageTemplate{
				{Order: 1, Name: "supervisor", Rule: fixed},
				{Order: 1, Name: "plant manager", Rule: fixed},
			},
			wantErr: true,
		},
		{
			name: "decreasing order",
			stages: []StageTemplate{
				{Order: 2, Name: "supervisor", Rule: fixed},
				{Order: 1, Name: "plant manager", Rule: fixed},
			},
			wantErr: true,
		},
		{
			name: "zero order",
			stages: []StageTemplate{
				{Order: 0, Name: "supervisor", Rule: fixed},
			},
			wantErr: true,
		},
		{
			name: "unknown rule kind",
			stages: []StageTemplate{
				{Order: 1, Name: "supervisor", Rule: ApproverRule{Kind: "committee"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Policy{Name: "test", Stages: tt.stages}
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStageTemplate_RequiredApprovals(t *testing.T) {
	assert.Equal(t, 1, StageTemplate{Quorum: 0}.RequiredApprovals())
	assert.Equal(t, 1, StageTemplate{Quorum: -1}.RequiredApprovals())
	assert.Equal(t, 3, StageTemplate{Quorum: 3}.RequiredApprovals())
}
