package api_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerFlow(t *testing.T) {
	requireServer(t)

	email := fmt.Sprintf("customer_%d@example.com", time.Now().UnixNano())

	// Create: risk fields must be populated immediately.
	createResp := makeRequest("POST", "/customers", map[string]interface{}{
		"email":           email,
		"name":            uniqueName("Customer"),
		"plan":            "pro",
		"payment_status":  "failed",
		"logins_last_30d": 0,
		"active_features": 1,
		"monthly_revenue": 99.0,
	}, authToken)
	require.True(t, createResp.IsSuccess(), "Failed to create customer: %s", createResp.Message)

	customerID := createResp.GetString("id")
	require.NotEmpty(t, customerID)
	assert.NotEmpty(t, createResp.GetString("risk_level"))

	// Failed payment alone is 30 points.
	score, ok := createResp.Data["churn_score"].(float64)
	require.True(t, ok)
	assert.Greater(t, score, 0.0)

	// Get
	getResp := makeRequest("GET", fmt.Sprintf("/customers/%s", customerID), nil, authToken)
	assert.True(t, getResp.IsSuccess())
	assert.Equal(t, email, getResp.GetString("email"))

	// Rescore explicitly
	scoreResp := makeRequest("POST", fmt.Sprintf("/customers/%s/score", customerID), nil, authToken)
	assert.True(t, scoreResp.IsSuccess())
	assert.Equal(t, createResp.GetString("risk_level"), scoreResp.GetString("risk_level"))

	// Update to healthy signals lowers the score.
	now := time.Now().UTC().Format(time.RFC3339)
	updateResp := makeRequest("PUT", fmt.Sprintf("/customers/%s", customerID), map[string]interface{}{
		"email":           email,
		"name":            getResp.GetString("name"),
		"plan":            "pro",
		"payment_status":  "current",
		"last_login_at":   now,
		"logins_last_30d": 20,
		"active_features": 8,
		"monthly_revenue": 99.0,
		"usage_minutes":   600,
	}, authToken)
	require.True(t, updateResp.IsSuccess(), "Failed to update customer: %s", updateResp.Message)

	updatedScore, ok := updateResp.Data["churn_score"].(float64)
	require.True(t, ok)
	assert.Less(t, updatedScore, score)

	// List filtered by risk level returns only matching customers.
	listResp := makeRequest("GET", "/customers?risk_level="+updateResp.GetString("risk_level"), nil, authToken)
	assert.True(t, listResp.IsSuccess())

	// Delete
	deleteResp := makeRequest("DELETE", fmt.Sprintf("/customers/%s", customerID), nil, authToken)
	assert.True(t, deleteResp.IsSuccess())
}

func TestScoreAll(t *testing.T) {
	requireServer(t)

	resp := makeRequest("POST", "/customers/score", nil, authToken)
	require.True(t, resp.IsSuccess(), "Score-all failed: %s", resp.Message)
	_, ok := resp.Data["scored"]
	assert.True(t, ok, "expected scored count in response")
}

func TestCustomerRequiresAuth(t *testing.T) {
	requireServer(t)

	resp := makeRequest("GET", "/customers", nil, "")
	assert.False(t, resp.IsSuccess())
}
