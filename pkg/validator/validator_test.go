package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type participant struct {
	Username string `json:"username" validate:"required,max=8"`
	Type     string `json:"type" validate:"oneof=Host Participant"`
}

type join struct {
	Link    string `json:"link" validate:"required_without=PartyID"`
	PartyID string `json:"party_id" validate:"required_without=Link"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	_, ok := v.Validate(participant{Username: "alice", Type: "Host"})
	assert.True(t, ok)

	errs, ok := v.Validate(&participant{Username: "a-very-long-name", Type: "Owner"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "MAX", errs[0].Code)
	assert.Equal(t, "username", errs[0].Field)
	assert.Equal(t, "ONEOF", errs[1].Code)
	assert.Equal(t, "type must be one of: Host Participant", errs[1].Message)

	errs, ok = v.Validate(join{})
	require.False(t, ok)
	assert.Len(t, errs, 2)
	assert.Equal(t, "REQUIRED_WITHOUT", errs[0].Code)

	_, ok = v.Validate(join{PartyID: "ABC123"})
	assert.True(t, ok)
}

func TestValidateNonStruct(t *testing.T) {
	errs, ok := NewValidator().Validate(42)
	require.False(t, ok)
	assert.Equal(t, "INVALID", errs[0].Code)
}
