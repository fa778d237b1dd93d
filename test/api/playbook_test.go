package api_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybookFlow(t *testing.T) {
	requireServer(t)

	createResp := makeRequest("POST", "/playbooks", map[string]interface{}{
		"name":   uniqueName("High risk winback"),
		"active": true,
		"conditions": []map[string]interface{}{
			{"field": "churn_score", "operator": ">", "value": 0.5},
		},
		"actions": []map[string]interface{}{
			{"type": "send_email", "value": "winback"},
			{"type": "add_tag", "value": "at-risk"},
		},
	}, authToken)
	require.True(t, createResp.IsSuccess(), "Failed to create playbook: %s", createResp.Message)

	playbookID := createResp.GetString("id")
	require.NotEmpty(t, playbookID)

	// Get
	getResp := makeRequest("GET", fmt.Sprintf("/playbooks/%s", playbookID), nil, authToken)
	assert.True(t, getResp.IsSuccess())

	// Update: deactivate
	updateResp := makeRequest("PUT", fmt.Sprintf("/playbooks/%s", playbookID), map[string]interface{}{
		"name":   getResp.GetString("name"),
		"active": false,
		"conditions": []map[string]interface{}{
			{"field": "risk_level", "operator": "==", "value": "critical"},
		},
		"actions": []map[string]interface{}{
			{"type": "add_tag", "value": "critical"},
		},
	}, authToken)
	assert.True(t, updateResp.IsSuccess(), "Failed to update playbook: %s", updateResp.Message)

	// Delete
	deleteResp := makeRequest("DELETE", fmt.Sprintf("/playbooks/%s", playbookID), nil, authToken)
	assert.True(t, deleteResp.IsSuccess())
}

func TestPlaybookValidation(t *testing.T) {
	requireServer(t)

	// Unknown condition field must be rejected.
	resp := makeRequest("POST", "/playbooks", map[string]interface{}{
		"name":   uniqueName("Bad playbook"),
		"active": true,
		"conditions": []map[string]interface{}{
			{"field": "favorite_color", "operator": "==", "value": "blue"},
		},
		"actions": []map[string]interface{}{
			{"type": "add_tag", "value": "x"},
		},
	}, authToken)
	assert.False(t, resp.IsSuccess())

	// Unknown action type must be rejected.
	resp = makeRequest("POST", "/playbooks", map[string]interface{}{
		"name":   uniqueName("Bad playbook"),
		"active": true,
		"conditions": []map[string]interface{}{
			{"field": "churn_score", "operator": ">", "value": 0.5},
		},
		"actions": []map[string]interface{}{
			{"type": "launch_rocket", "value": ""},
		},
	}, authToken)
	assert.False(t, resp.IsSuccess())
}

func TestEngineRunIsIdempotent(t *testing.T) {
	requireServer(t)

	// A matching customer and playbook, then two back-to-back runs.
	email := fmt.Sprintf("engine_%d@example.com", time.Now().UnixNano())
	custResp := makeRequest("POST", "/customers", map[string]interface{}{
		"email":           email,
		"name":            uniqueName("Engine Customer"),
		"payment_status":  "failed",
		"logins_last_30d": 0,
	}, authToken)
	require.True(t, custResp.IsSuccess(), "Failed to create customer: %s", custResp.Message)

	pbResp := makeRequest("POST", "/playbooks", map[string]interface{}{
		"name":   uniqueName("Engine playbook"),
		"active": true,
		"conditions": []map[string]interface{}{
			{"field": "churn_score", "operator": ">", "value": 0.2},
		},
		"actions": []map[string]interface{}{
			{"type": "add_tag", "value": "engine-test"},
		},
	}, authToken)
	require.True(t, pbResp.IsSuccess(), "Failed to create playbook: %s", pbResp.Message)

	first := makeRequest("POST", "/playbooks/run", nil, authToken)
	require.True(t, first.IsSuccess(), "First run failed: %s", first.Message)

	second := makeRequest("POST", "/playbooks/run", nil, authToken)
	require.True(t, second.IsSuccess(), "Second run failed: %s", second.Message)

	// The second sweep must not queue the same step again.
	queued, _ := second.Data["actions_queued"].(float64)
	assert.Equal(t, 0.0, queued, "second run queued duplicate actions")

	// Cleanup
	makeRequest("DELETE", fmt.Sprintf("/playbooks/%s", pbResp.GetString("id")), nil, authToken)
	makeRequest("DELETE", fmt.Sprintf("/customers/%s", custResp.GetString("id")), nil, authToken)
}
