package email

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type sent struct{ to, subject, html, text string }

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) Send(to, subject, html, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to, subject, html, text})
	return f.err
}

func TestSendWelcome(t *testing.T) {
	fs := &fakeSender{}
	n := NewNotifier(fs, NotifierConfig{PublicDomain: "nsromania.info"})

	err := n.SendWelcome(context.Background(), WelcomeData{To: "ana@example.com", Name: "Ana", Subdomain: "testsub", APISecret: "s3cret-value"}, SendOptions{})
	require.NoError(t, err)
	require.Len(t, fs.msgs, 1)

	m := fs.msgs[0]
	require.Equal(t, "ana@example.com", m.to)
	require.Equal(t, "Your Nightscout site testsub.nsromania.info is ready", m.subject)
	require.Contains(t, m.text, "https://testsub.nsromania.info")
	require.Contains(t, m.text, "s3cret-value")
	require.Contains(t, m.html, "<code>s3cret-value</code>")
	require.NotContains(t, m.text, "Subject:")
}

func TestSendWelcome_NoRecipientFailsClosed(t *testing.T) {
	fs := &fakeSender{}
	n := NewNotifier(fs, NotifierConfig{})
	err := n.SendWelcome(context.Background(), WelcomeData{Subdomain: "x", APISecret: "y"}, SendOptions{ForceSend: true})
	require.ErrorIs(t, err, ErrNoRecipient)
	require.Empty(t, fs.msgs)
}

func TestDevSuppressesUnlessForced(t *testing.T) {
	fs := &fakeSender{}
	n := NewNotifier(fs, NotifierConfig{Dev: true})
	ctx := context.Background()

	require.NoError(t, n.SendValidationCode(ctx, "a@example.com", "012345", SendOptions{}))
	require.Empty(t, fs.msgs)

	require.NoError(t, n.SendValidationCode(ctx, "a@example.com", "012345", SendOptions{ForceSend: true}))
	require.Len(t, fs.msgs, 1)
	require.Equal(t, "Your verification code: 012345", fs.msgs[0].subject)
	require.Contains(t, fs.msgs[0].text, "10 minutes")
}

func TestRegistrationNotification_AllAdmins(t *testing.T) {
	fs := &fakeSender{err: errors.New("smtp down")}
	n := NewNotifier(fs, NotifierConfig{AdminRecipients: []string{"a@x.io", "b@x.io"}, BaseURL: "https://panel.example/"})

	err := n.SendRegistrationNotification(context.Background(), RegistrationData{RequestID: 9, Subdomain: "newsite", OwnerName: "N", OwnerEmail: "n@x.io", DataSource: "Dexcom"}, SendOptions{})
	require.Error(t, err)
	require.Len(t, fs.msgs, 2)
	require.Contains(t, fs.msgs[0].text, "https://panel.example/admin/register/9")
}

func TestSendTest_Kinds(t *testing.T) {
	fs := &fakeSender{}
	n := NewNotifier(fs, NotifierConfig{PublicDomain: "nsromania.info"})
	ctx := context.Background()
	for _, k := range []string{TestPlain, TestWelcome, TestValidation, TestRegistration} {
		require.NoError(t, n.SendTest(ctx, k, "dev@example.com", SendOptions{}), k)
	}
	require.Len(t, fs.msgs, 4)
	require.Error(t, n.SendTest(ctx, "bogus", "dev@example.com", SendOptions{}))
}
