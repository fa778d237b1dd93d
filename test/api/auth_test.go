package api_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	requireServer(t)

	email := fmt.Sprintf("auth_%d@example.com", time.Now().UnixNano())

	signupResp := makeRequest("POST", "/auth/signup", map[string]string{
		"email":    email,
		"name":     "Auth Test",
		"password": "a-long-enough-password",
	}, "")
	require.True(t, signupResp.IsSuccess(), "Signup failed: %s", signupResp.Message)
	assert.NotEmpty(t, signupResp.GetString("token"))

	// Duplicate signup is rejected.
	dupResp := makeRequest("POST", "/auth/signup", map[string]string{
		"email":    email,
		"name":     "Auth Test",
		"password": "a-long-enough-password",
	}, "")
	assert.False(t, dupResp.IsSuccess())

	loginResp := makeRequest("POST", "/auth/login", map[string]string{
		"email":    email,
		"password": "a-long-enough-password",
	}, "")
	require.True(t, loginResp.IsSuccess(), "Login failed: %s", loginResp.Message)
	assert.NotEmpty(t, loginResp.GetString("token"))

	// Wrong password is rejected.
	badResp := makeRequest("POST", "/auth/login", map[string]string{
		"email":    email,
		"password": "wrong-password",
	}, "")
	assert.False(t, badResp.IsSuccess())
}
