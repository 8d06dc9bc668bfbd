package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmarket/internal/config"
	"promptmarket/internal/logging"
	"promptmarket/internal/models"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (*recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Deliver(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, to := range msg.To {
		if r.fail[to] {
			return errors.New("mailbox unavailable")
		}
	}
	r.sent = append(r.sent, msg)
	return nil
}

func samplePending() models.PendingRegistration {
	exp := time.Now().Add(7 * 24 * time.Hour)
	return models.PendingRegistration{ID: "p-1", Username: "alice", Email: "alice@x.test", Status: models.PendingStatusPending, TokenExpiresAt: &exp, CreatedAt: time.Now()}
}

func TestApprovalNotificationFansOutAndJoinsFailures(t *testing.T) {
	rt := &recordingTransport{fail: map[string]bool{"bad@x.test": true}}
	m := NewMailer(rt, Links{BaseURL: "https://prompts.test/"}, logging.Discard())

	err := m.SendApprovalNotification(context.Background(),
		[]string{"a@x.test", "bad@x.test", "A@x.test", " ", "b@x.test"}, samplePending(), "tok-approve", "tok-reject")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad@x.test")

	require.Len(t, rt.sent, 2)
	for _, msg := range rt.sent {
		assert.Contains(t, msg.Text, "https://prompts.test/api/v1/registrations/approve?token=tok-approve")
		assert.Contains(t, msg.Text, "https://prompts.test/api/v1/registrations/reject?token=tok-reject")
		assert.Contains(t, msg.Subject, "alice")
	}
}

func TestApprovalNotificationNeedsRecipients(t *testing.T) {
	m := NewMailer(&recordingTransport{}, Links{}, logging.Discard())
	err := m.SendApprovalNotification(context.Background(), nil, samplePending(), "a", "r")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestUserEmailsCarryTheirLinks(t *testing.T) {
	rt := &recordingTransport{}
	m := NewMailer(rt, Links{BaseURL: "https://prompts.test"}, logging.Discard())
	ctx := context.Background()

	require.NoError(t, m.SendVerificationEmail(ctx, "u@x.test", "<bob>", "v/1"))
	require.NoError(t, m.SendPasswordReset(ctx, "u@x.test", "bob", "r1"))
	require.NoError(t, m.SendRejectionEmail(ctx, "u@x.test", "bob"))
	require.NoError(t, m.SendWelcomeEmail(ctx, "u@x.test", "bob"))
	assert.ErrorIs(t, m.SendWelcomeEmail(ctx, "", "bob"), ErrNoRecipients)

	require.Len(t, rt.sent, 4)
	assert.Contains(t, rt.sent[0].Text, "https://prompts.test/api/v1/verify-email?token=v%2F1")
	assert.Contains(t, rt.sent[0].HTML, "&lt;bob&gt;")
	assert.Contains(t, rt.sent[1].Text, "https://prompts.test/reset-password?token=r1")
	assert.Contains(t, rt.sent[2].Subject, "not approved")
}

func TestFileTransportWritesReadableEML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	ft, err := NewFileTransport(dir, "no-reply@prompts.test")
	require.NoError(t, err)
	require.NoError(t, ft.Probe(context.Background()))

	m := NewMailer(ft, Links{BaseURL: "https://prompts.test"}, logging.Discard())
	require.NoError(t, m.SendVerificationEmail(context.Background(), "carol@x.test", "carol", "tok"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".eml"))

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()
	mr, err := mail.CreateReader(f)
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Contains(t, subject, "Confirm your email")
	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "carol@x.test", to[0].Address)
}

func TestResendTransportPostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	rt := NewResendTransport("re_test", "no-reply@prompts.test")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	rt.client.BaseURL = base

	require.NoError(t, rt.Deliver(context.Background(), Message{To: []string{"d@x.test"}, Subject: "hi", Text: "body"}))
	assert.Equal(t, "no-reply@prompts.test", got["from"])
	assert.Equal(t, "hi", got["subject"])
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Config{NotifyBackend: "file", NotifyOutboxDir: t.TempDir(), NotifyFrom: "x@prompts.test", PublicBaseURL: "https://prompts.test"}
	m, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "file", m.Backend())

	cfg.NotifyBackend = "log"
	m, err = New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "log", m.Backend())
	assert.NoError(t, m.Probe(context.Background()))

	cfg.NotifyBackend = "pigeon"
	_, err = New(cfg, logging.Discard())
	assert.Error(t, err)
}
