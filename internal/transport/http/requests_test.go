package httptransport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"payguard/internal/domain"
	dErrors "payguard/pkg/domain-errors"
)

func TestExecuteRequestValidate(t *testing.T) {
	yes := true
	tests := []struct {
		name    string
		req     ExecuteRequest
		wantErr bool
	}{
		{"intent", ExecuteRequest{Token: "t", Intent: &domain.Intent{IntentID: "i"}}, false},
		{"payload", ExecuteRequest{Token: "t", Payload: json.RawMessage(`{}`)}, false},
		{"blank token", ExecuteRequest{Token: "  ", Intent: &domain.Intent{}}, true},
		{"nothing to check", ExecuteRequest{Token: "t"}, true},
		{"both", ExecuteRequest{Token: "t", Intent: &domain.Intent{}, Payload: json.RawMessage(`{}`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}

	t.Run("resolve requires a verdict and reviewer", func(t *testing.T) {
		assert.Error(t, (&ResolveEscalationRequest{Reviewer: "ops"}).Validate())
		assert.Error(t, (&ResolveEscalationRequest{Approved: &yes, Reviewer: " "}).Validate())
		assert.NoError(t, (&ResolveEscalationRequest{Approved: &yes, Reviewer: "ops"}).Validate())
	})

	t.Run("submit trims the intent id", func(t *testing.T) {
		req := SubmitIntentRequest{Intent: domain.Intent{IntentID: " intent-1 "}}
		assert.NoError(t, req.Validate())
		assert.Equal(t, "intent-1", req.Intent.IntentID)
	})
}
