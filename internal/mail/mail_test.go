package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dyndnsd/internal/config"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	body string
}

func testMailer(enabled bool) (*Mailer, *capturedMail) {
	cfg := config.SMTPConfig{
		Enabled:   enabled,
		Host:      "mail.example.com",
		Port:      25,
		Sender:    "noreply@example.com",
		AdminName: "The Admin",
		BaseURL:   "https://dyn.example.com",
	}
	m := NewMailer(cfg, zap.NewNop())
	var captured capturedMail
	m.send = func(addr, from string, to []string, body []byte) error {
		captured = capturedMail{addr: addr, from: from, to: to, body: string(body)}
		return nil
	}
	return m, &captured
}

func TestSendActivation(t *testing.T) {
	m, captured := testMailer(true)

	require.NoError(t, m.SendActivation("alice@example.com", "alice", "c0ffee"))

	assert.Equal(t, "mail.example.com:25", captured.addr)
	assert.Equal(t, "noreply@example.com", captured.from)
	assert.Equal(t, []string{"alice@example.com"}, captured.to)
	assert.Contains(t, captured.body, "Subject: Your new account")
	assert.Contains(t, captured.body, "Hello alice,")
	assert.Contains(t, captured.body,
		"https://dyn.example.com/signup/activate?username=alice&authcode=c0ffee")
	assert.Contains(t, captured.body, "The Admin")
}

func TestSendPasswordReset(t *testing.T) {
	m, captured := testMailer(true)

	require.NoError(t, m.SendPasswordReset("bob@example.com", "bob", "deadbeef"))

	assert.Contains(t, captured.body, "Subject: Password reset")
	assert.Contains(t, captured.body,
		"https://dyn.example.com/lostpasswd/reset?username=bob&authcode=deadbeef")
}

func TestAuthcodeIsQueryEscaped(t *testing.T) {
	m, captured := testMailer(true)

	require.NoError(t, m.SendActivation("a@example.com", "a b", "x&y"))

	assert.Contains(t, captured.body, "username=a+b&authcode=x%26y")
}

func TestDisabledMailerIsNoop(t *testing.T) {
	m, captured := testMailer(false)

	require.NoError(t, m.SendActivation("alice@example.com", "alice", "c0ffee"))
	assert.False(t, m.Enabled())
	assert.Empty(t, captured.body)
	assert.False(t, strings.Contains(captured.body, "activate"))
}
