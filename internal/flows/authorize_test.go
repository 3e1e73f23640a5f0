package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
)

var (
	errNotReady    = errors.New("not ready")
	errLimited     = errors.New("limited")
	errInput       = errors.New("input")
	errCredentials = errors.New("credentials")
	errRequired    = errors.New("required")
	errInvalid     = errors.New("invalid")
)

type authorizeHarness struct {
	allowed     bool
	allowErr    error
	lookups     int
	burned      int
	sentCodes   []string
	audits      []AuditRecord
	account     *credstore.Account
	validCode   string
	issued      *session.Session
	upgradedTo  string
	needUpgrade bool
}

func (h *authorizeHarness) deps() AuthorizeDeps {
	return AuthorizeDeps{
		MinPasswordLength: 6,
		UpgradeOnLogin:    true,
		Now:               func() time.Time { return time.Unix(1_700_000_000, 0) },
		Allow: func(context.Context, string) (bool, error) {
			return h.allowed, h.allowErr
		},
		FindAccount: func(_ context.Context, email string) (*credstore.Account, error) {
			h.lookups++
			if h.account == nil || h.account.Email != email {
				return nil, credstore.ErrNotFound
			}
			return h.account, nil
		},
		VerifyPassword: func(pw, hash string) (bool, error) { return "hash:"+pw == hash, nil },
		BurnPassword:   func(string) { h.burned++ },
		NeedsUpgrade:   func(string) (bool, error) { return h.needUpgrade, nil },
		HashPassword:   func(pw string) (string, error) { return "new:" + pw, nil },
		UpdatePasswordHash: func(_ context.Context, _ string, hash string, _ bool) error {
			h.upgradedTo = hash
			return nil
		},
		EnsureTOTPSecret: func(_ context.Context, a *credstore.Account) ([]byte, error) {
			return []byte("secret"), nil
		},
		CurrentCode: func([]byte, time.Time) (string, error) { return h.validCode, nil },
		VerifyCode: func(_ []byte, code string, _ time.Time) (bool, error) {
			return code == h.validCode, nil
		},
		SendCode: func(_ string, code string) { h.sentCodes = append(h.sentCodes, code) },
		EffectivePermissions: func(context.Context, *credstore.Account) (permission.Set, error) {
			return permission.NewSet(permission.ShiftsManage), nil
		},
		IssueSession: func(s session.Session) (string, session.Session, error) {
			s.ID = "sid"
			h.issued = &s
			return "token", s, nil
		},
		Audit: func(_ context.Context, r AuditRecord) { h.audits = append(h.audits, r) },
		Events: AuthorizeEvents{
			Login:              "LOGIN",
			LoginFailed:        "LOGIN_FAILED",
			LoginRateLimited:   "LOGIN_RATE_LIMITED",
			TwoFactorChallenge: "TWO_FACTOR_CHALLENGE",
		},
		Errors: AuthorizeErrors{
			EngineNotReady:     errNotReady,
			RateLimited:        errLimited,
			InvalidInput:       errInput,
			InvalidCredentials: errCredentials,
			TwoFactorRequired:  errRequired,
			TwoFactorInvalid:   errInvalid,
		},
	}
}

func newHarness() *authorizeHarness {
	return &authorizeHarness{
		allowed: true,
		account: &credstore.Account{
			ID:           "acc-1",
			Email:        "user@example.com",
			PasswordHash: "hash:correct-horse",
			Role:         permission.RoleNameManager,
			TenantID:     "t1",
		},
		validCode: "123456",
	}
}

func TestRunAuthorizeRateLimitedBeforeLookup(t *testing.T) {
	h := newHarness()
	h.allowed = false

	_, err := RunAuthorize(context.Background(), AuthorizeRequest{ClientKey: "ip", Email: "user@example.com", Password: "correct-horse"}, h.deps())
	if !errors.Is(err, errLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if h.lookups != 0 {
		t.Fatal("account lookup performed while rate limited")
	}
	if len(h.audits) != 1 || h.audits[0].Action != "LOGIN_RATE_LIMITED" {
		t.Fatalf("unexpected audits %+v", h.audits)
	}
}

func TestRunAuthorizeLimiterErrorFailsOpenUnlessConfigured(t *testing.T) {
	h := newHarness()
	h.allowErr = errors.New("redis down")

	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{ClientKey: "ip", Email: "user@example.com", Password: "correct-horse"}, h.deps()); err != nil {
		t.Fatalf("expected fail-open login, got %v", err)
	}

	deps := h.deps()
	deps.FailClosed = true
	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{ClientKey: "ip", Email: "user@example.com", Password: "correct-horse"}, deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected fail-closed rate limit, got %v", err)
	}
}

func TestRunAuthorizeInvalidInputSkipsStore(t *testing.T) {
	cases := []AuthorizeRequest{
		{Email: "not-an-email", Password: "correct-horse"},
		{Email: "Name <user@example.com>", Password: "correct-horse"},
		{Email: "user@localhost", Password: "correct-horse"},
		{Email: "user@example.com", Password: "short"},
	}
	for _, req := range cases {
		h := newHarness()
		if _, err := RunAuthorize(context.Background(), req, h.deps()); !errors.Is(err, errInput) {
			t.Fatalf("%+v: expected invalid input, got %v", req, err)
		}
		if h.lookups != 0 {
			t.Fatalf("%+v: store touched for malformed input", req)
		}
	}
}

func TestRunAuthorizeUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	h := newHarness()
	_, errMissing := RunAuthorize(context.Background(), AuthorizeRequest{Email: "nobody@example.com", Password: "anything"}, h.deps())
	_, errWrong := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "wrong-password"}, h.deps())

	if errMissing != errWrong || !errors.Is(errMissing, errCredentials) {
		t.Fatalf("expected identical errors, got %v and %v", errMissing, errWrong)
	}
	if h.burned != 1 {
		t.Fatalf("expected one burned hash for the unknown account, got %d", h.burned)
	}
}

func TestRunAuthorizeStoreOutageLooksLikeBadCredentials(t *testing.T) {
	h := newHarness()
	var warned []error
	deps := h.deps()
	deps.FindAccount = func(context.Context, string) (*credstore.Account, error) {
		return nil, errors.New("connection refused")
	}
	deps.Warn = func(_ string, err error) { warned = append(warned, err) }

	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse"}, deps); !errors.Is(err, errCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if len(warned) != 1 {
		t.Fatalf("expected the lookup failure to be logged once, got %v", warned)
	}

	warned = nil
	deps = h.deps()
	deps.Warn = func(_ string, err error) { warned = append(warned, err) }
	_, _ = RunAuthorize(context.Background(), AuthorizeRequest{Email: "nobody@example.com", Password: "anything"}, deps)
	if len(warned) != 0 {
		t.Fatalf("unknown account should not warn, got %v", warned)
	}
}

func TestRunAuthorizeEmailIsCaseInsensitive(t *testing.T) {
	h := newHarness()
	res, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "  USER@Example.com ", Password: "correct-horse"}, h.deps())
	if err != nil {
		t.Fatalf("RunAuthorize: %v", err)
	}
	if res.Token != "token" || res.Session.AccountID != "acc-1" || !res.Session.Permissions.Has(permission.ShiftsManage) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunAuthorizeTwoFactor(t *testing.T) {
	h := newHarness()
	h.account.TOTPEnabled = true

	_, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse"}, h.deps())
	if !errors.Is(err, errRequired) {
		t.Fatalf("expected two-factor required, got %v", err)
	}
	if len(h.sentCodes) != 1 || h.sentCodes[0] != "123456" {
		t.Fatalf("expected code to be sent, got %v", h.sentCodes)
	}

	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse", Code: "000000"}, h.deps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}

	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "wrong-password", Code: "123456"}, h.deps()); !errors.Is(err, errCredentials) {
		t.Fatalf("expected password to be rechecked on resubmission, got %v", err)
	}

	res, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse", Code: "123456"}, h.deps())
	if err != nil {
		t.Fatalf("RunAuthorize with code: %v", err)
	}
	if res.Session.AccountID != "acc-1" {
		t.Fatalf("unexpected session %+v", res.Session)
	}
	if len(h.sentCodes) != 1 {
		t.Fatal("no code should be sent when one is supplied")
	}
}

func TestRunAuthorizeCodeGenerationFailureIsHard(t *testing.T) {
	h := newHarness()
	h.account.TOTPEnabled = true
	deps := h.deps()
	genErr := errors.New("rng failure")
	deps.CurrentCode = func([]byte, time.Time) (string, error) { return "", genErr }

	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse"}, deps); !errors.Is(err, genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if len(h.sentCodes) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestRunAuthorizeSnapshotsMustReset(t *testing.T) {
	h := newHarness()
	h.account.MustResetPassword = true
	res, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse"}, h.deps())
	if err != nil {
		t.Fatalf("RunAuthorize: %v", err)
	}
	if !res.Session.MustResetPassword {
		t.Fatal("expected mustResetPassword in the session snapshot")
	}
}

func TestRunAuthorizeUpgradesLegacyHash(t *testing.T) {
	h := newHarness()
	h.needUpgrade = true
	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{Email: "user@example.com", Password: "correct-horse"}, h.deps()); err != nil {
		t.Fatalf("RunAuthorize: %v", err)
	}
	if h.upgradedTo != "new:correct-horse" {
		t.Fatalf("expected upgraded hash, got %q", h.upgradedTo)
	}
}

func TestRunAuthorizeMissingDeps(t *testing.T) {
	if _, err := RunAuthorize(context.Background(), AuthorizeRequest{}, AuthorizeDeps{Errors: AuthorizeErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
