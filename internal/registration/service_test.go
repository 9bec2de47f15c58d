package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/captcha"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
	"github.com/dropDatabas3/nshost/internal/store/memory"
)

type fakeCaptcha struct{ reject bool }

func (f *fakeCaptcha) Verify(context.Context, string, string) error {
	if f.reject {
		return captcha.ErrRejected
	}
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	codes  map[string]string
	admins []email.RegistrationData
}

func (f *fakeNotifier) SendValidationCode(_ context.Context, to, code string, _ email.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[to] = code
	return nil
}

func (f *fakeNotifier) SendRegistrationNotification(_ context.Context, d email.RegistrationData, _ email.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, d)
	return errors.New("smtp down")
}

type env struct {
	svc   *Service
	store *memory.Store
	cap   *fakeCaptcha
	mail  *fakeNotifier
	now   time.Time
}

func newEnv() *env {
	e := &env{
		store: memory.New(),
		cap:   &fakeCaptcha{},
		mail:  &fakeNotifier{codes: map[string]string{}},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	orch := lifecycle.New(lifecycle.Deps{
		Domains:  e.store.Domains(),
		Users:    e.store.Users(),
		Requests: e.store.Requests(),
	})
	e.svc = New(Deps{
		Requests:      e.store.Requests(),
		Validations:   e.store.EmailValidations(),
		DomainRecords: e.store.Domains(),
		Users:         e.store.Users(),
		Domains:       orch,
		Captcha:       e.cap,
		Notifier:      e.mail,
		Now:           func() time.Time { return e.now },
	})
	return e
}

var admin = authz.Actor{UserID: "admin-1", Email: "root@example.org", Admin: true}

func (e *env) submit(t *testing.T, mut func(*SubmitInput)) (*repository.RegistrationRequest, error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.svc.InitiateEmailValidation(ctx, "ana@example.org", "captcha-token", ""))
	in := SubmitInput{
		OwnerName:    "Ana Pop",
		OwnerEmail:   "ana@example.org",
		Subdomain:    "anapop",
		APISecret:    "abcdefghijkl",
		DataSource:   repository.DataSourceAPI,
		Code:         e.mail.codes["ana@example.org"],
		CaptchaToken: "captcha-token",
	}
	if mut != nil {
		mut(&in)
	}
	return e.svc.SubmitRequest(ctx, in)
}

func TestEmailCode_Window(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	require.NoError(t, e.svc.InitiateEmailValidation(ctx, "ana@example.org", "tok", ""))
	code := e.mail.codes["ana@example.org"]
	require.Regexp(t, `^\d{6}$`, code)

	require.NoError(t, e.svc.ValidateEmailCode(ctx, "ana@example.org", code, "tok", ""))

	e.now = e.now.Add(CodeTTL + time.Second)
	err := e.svc.ValidateEmailCode(ctx, "ana@example.org", code, "tok", "")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestEmailCode_Wrong(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	require.NoError(t, e.svc.InitiateEmailValidation(ctx, "ana@example.org", "tok", ""))
	wrong := "000000"
	if e.mail.codes["ana@example.org"] == wrong {
		wrong = "111111"
	}
	require.ErrorIs(t, e.svc.ValidateEmailCode(ctx, "ana@example.org", wrong, "tok", ""), ErrInvalidCode)
	require.True(t, errs.Is(e.svc.ValidateEmailCode(ctx, "ana@example.org", "12ab", "tok", ""), errs.KindValidation))
}

func TestCaptchaRejected(t *testing.T) {
	e := newEnv()
	e.cap.reject = true
	err := e.svc.InitiateEmailValidation(context.Background(), "ana@example.org", "tok", "")
	require.ErrorIs(t, err, ErrCaptchaFailed)
	assert.Empty(t, e.mail.codes)
}

func TestValidateSubdomain(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	require.NoError(t, e.svc.ValidateSubdomain(ctx, "free", "tok", ""))
	require.True(t, errs.Is(e.svc.ValidateSubdomain(ctx, "-bad", "tok", ""), errs.KindValidation))

	_, err := e.store.Domains().Create(ctx, repository.CreateDomainInput{Domain: "taken"})
	require.NoError(t, err)
	require.True(t, errs.Is(e.svc.ValidateSubdomain(ctx, "taken", "tok", ""), errs.KindConflict))

	_, err = e.submit(t, func(in *SubmitInput) { in.Subdomain = "pending" })
	require.NoError(t, err)
	require.True(t, errs.Is(e.svc.ValidateSubdomain(ctx, "pending", "tok", ""), errs.KindConflict))
}

func TestSubmit_StoresPendingAndConsumesCode(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	q, err := e.submit(t, func(in *SubmitInput) { in.Subdomain = " AnaPop " })
	require.NoError(t, err, "admin notification failure does not fail submit")
	assert.Equal(t, repository.RequestPending, q.Status)
	assert.Equal(t, "anapop", q.Subdomain)
	assert.Equal(t, lifecycle.DefaultTitle, q.Title)
	require.Len(t, e.mail.admins, 1)

	ok, err := e.store.EmailValidations().Match(ctx, "ana@example.org", e.mail.codes["ana@example.org"], e.now.Add(-CodeTTL))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmit_Validation(t *testing.T) {
	cases := map[string]func(*SubmitInput){
		"bad name":          func(in *SubmitInput) { in.OwnerName = "Ana <script>" },
		"short secret":      func(in *SubmitInput) { in.APISecret = "short" },
		"unknown source":    func(in *SubmitInput) { in.DataSource = "Libre" },
		"dexcom no creds":   func(in *SubmitInput) { in.DataSource = repository.DataSourceDexcom; in.DexcomServer = "EU" },
		"dexcom bad server": func(in *SubmitInput) { in.DataSource = repository.DataSourceDexcom; in.DexcomServer = "ASIA" },
		"code not digits":   func(in *SubmitInput) { in.Code = "abc" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv()
			_, err := e.submit(t, mut)
			require.True(t, errs.Is(err, errs.KindValidation), "got %v", err)
		})
	}
}

func TestSubmit_RequiresValidCode(t *testing.T) {
	e := newEnv()
	_, err := e.submit(t, func(in *SubmitInput) {
		if in.Code == "999999" {
			in.Code = "999998"
		} else {
			in.Code = "999999"
		}
	})
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestApprove_APIMapping(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	q, err := e.submit(t, nil)
	require.NoError(t, err)

	_, err = e.svc.Approve(ctx, authz.Actor{UserID: "u1"}, q.ID)
	require.True(t, errs.Is(err, errs.KindUnauthorized))

	d, err := e.svc.Approve(ctx, admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "anapop", d.Domain)
	assert.Equal(t, "careportal iob cob cage sage rawbg cors dbsize", d.Enable)
	assert.Equal(t, "cob iob sage cage careportal", d.ShowPlugins)
	assert.False(t, d.HasFeature("bridge"))
	assert.True(t, d.Active)
	assert.False(t, d.DBExists)
	assert.Empty(t, d.BridgeUsername)

	u, err := e.store.Users().GetByEmail(ctx, "ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, u.ID, d.OwnerID)

	got, err := e.svc.GetRequest(ctx, admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequestApproved, got.Status)
	assert.Equal(t, "root@example.org", got.ChangedBy)

	_, err = e.svc.Approve(ctx, admin, q.ID)
	require.True(t, errs.Is(err, errs.KindConflict), "decided requests are immutable")
	require.True(t, errs.Is(e.svc.Reject(ctx, admin, q.ID), errs.KindConflict))
}

func TestApprove_DexcomMapping(t *testing.T) {
	e := newEnv()
	q, err := e.submit(t, func(in *SubmitInput) {
		in.DataSource = repository.DataSourceDexcom
		in.DexcomServer = "eu"
		in.DexcomUsername = "ana.pop"
		in.DexcomPassword = "hunter22"
	})
	require.NoError(t, err)

	d, err := e.svc.Approve(context.Background(), admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "careportal iob cob cage sage rawbg cors dbsize bridge", d.Enable)
	assert.Equal(t, "cob iob sage cage careportal", d.ShowPlugins)
	assert.True(t, d.HasFeature("bridge"))
	assert.Equal(t, "EU", d.BridgeServer)
	assert.Equal(t, "ana.pop", d.BridgeUsername)
	assert.Equal(t, "hunter22", d.BridgePassword)
}

// racingRequests simula otro admin que decide el request justo antes.
type racingRequests struct {
	repository.RegistrationRepository
}

func (r racingRequests) Decide(ctx context.Context, id int64, _ repository.RequestStatus, _ string, at time.Time) error {
	if err := r.RegistrationRepository.Decide(ctx, id, repository.RequestRejected, "other@example.org", at); err != nil {
		return err
	}
	return repository.ErrConflict
}

func (e *env) racing() *Service {
	orch := lifecycle.New(lifecycle.Deps{
		Domains:  e.store.Domains(),
		Users:    e.store.Users(),
		Requests: e.store.Requests(),
	})
	return New(Deps{
		Requests:      racingRequests{e.store.Requests()},
		Validations:   e.store.EmailValidations(),
		DomainRecords: e.store.Domains(),
		Users:         e.store.Users(),
		Domains:       orch,
		Captcha:       e.cap,
		Notifier:      e.mail,
		Now:           func() time.Time { return e.now },
	})
}

func TestApprove_LostRaceRemovesDomainAndNewOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	q, err := e.submit(t, nil)
	require.NoError(t, err)

	_, err = e.racing().Approve(ctx, admin, q.ID)
	require.True(t, errs.Is(err, errs.KindConflict))

	_, err = e.store.Domains().GetBySubdomain(ctx, "anapop")
	require.True(t, repository.IsNotFound(err))
	_, err = e.store.Users().GetByEmail(ctx, "ana@example.org")
	require.True(t, repository.IsNotFound(err), "owner created by the rolled back approval is removed")
}

func TestApprove_LostRaceKeepsExistingOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	u, err := e.store.Users().Create(ctx, repository.CreateUserInput{Name: "Ana Pop", Email: "ana@example.org", Role: repository.RoleUser})
	require.NoError(t, err)
	q, err := e.submit(t, nil)
	require.NoError(t, err)

	_, err = e.racing().Approve(ctx, admin, q.ID)
	require.True(t, errs.Is(err, errs.KindConflict))

	_, err = e.store.Domains().GetBySubdomain(ctx, "anapop")
	require.True(t, repository.IsNotFound(err))
	got, err := e.store.Users().GetByEmail(ctx, "ana@example.org")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	q, err := e.submit(t, nil)
	require.NoError(t, err)

	require.NoError(t, e.svc.Reject(ctx, admin, q.ID))
	require.True(t, errs.Is(e.svc.Reject(ctx, admin, 999), errs.KindNotFound))

	pending, err := e.svc.ListRequests(ctx, admin, repository.RequestPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	all, err := e.svc.ListRequests(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// el subdominio vuelve a estar libre
	require.NoError(t, e.svc.ValidateSubdomain(ctx, "anapop", "tok", ""))
}

func TestDomainFor(t *testing.T) {
	in := DomainFor(&repository.RegistrationRequest{Subdomain: "x1", DataSource: repository.DataSourceAPI, DexcomUsername: "leak"})
	assert.Equal(t, EnableAPI, in.Enable)
	assert.Empty(t, in.BridgeUsername)
}
