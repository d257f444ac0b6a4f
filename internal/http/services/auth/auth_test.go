package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
	"github.com/dropDatabas3/stagegate/internal/session"
	"github.com/dropDatabas3/stagegate/internal/store/memory"
)

// codeMailer guarda el último código por destinatario.
type codeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func (m *codeMailer) SendOTP(_ context.Context, _ email.Purpose, to, _, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	m.sent++
	return nil
}

func (m *codeMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type env struct {
	deps     Deps
	signer   *jwt.Signer
	users    *memory.UserStore
	flows    *flowstore.Store
	sessions *session.Issuer
	mailer   *codeMailer
	signup   *SignupService
	login    *LoginService
	recovery *RecoveryService
	account  *AccountService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	signer, err := jwt.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "stagegate-test")
	require.NoError(t, err)
	c := cache.NewMemory("", time.Minute)
	users := memory.NewUserStore()
	flows := flowstore.New(c)
	sessions := session.NewIssuer(signer, c, session.Settings{AccessTTL: time.Hour}, nil)
	mailer := &codeMailer{}

	st := DefaultSettings()
	st.PasswordParams = password.Fast

	d := Deps{
		Users:    users,
		Flows:    flows,
		Signer:   signer,
		OTP:      otp.NewHasher([]byte("otp-key")),
		Sessions: sessions,
		Mailer:   mailer,
		Settings: st,
	}
	return &env{
		deps: d, signer: signer, users: users, flows: flows, sessions: sessions, mailer: mailer,
		signup: NewSignupService(d), login: NewLoginService(d),
		recovery: NewRecoveryService(d), account: NewAccountService(d),
	}
}

func validSignup(addr string) dto.SignupRequest {
	return dto.SignupRequest{
		FirstName: "Ana",
		LastName:  "Gomez",
		Gender:    "F",
		Email:     addr,
		Password:  "secreta123",
	}
}

func stage(t *testing.T, r Result, otpType, sessType jwt.TokenType) StageTokens {
	t.Helper()
	o, ok := r.Token(otpType)
	require.True(t, ok, "missing %s", otpType)
	s, ok := r.Token(sessType)
	require.True(t, ok, "missing %s", sessType)
	return StageTokens{OTP: o, Session: s}
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

// signupUser completa un signup y devuelve el usuario creado.
func (e *env) signupUser(t *testing.T, addr string) *repository.User {
	t.Helper()
	ctx := context.Background()
	r, err := e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	require.True(t, r.OK(), "start: %+v", r)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: e.mailer.code(addr)})
	require.NoError(t, err)
	require.True(t, r.OK(), "verify: %+v", r)
	u, err := e.users.GetByID(ctx, r.UserID)
	require.NoError(t, err)
	return u
}

func TestSignup_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "ana@example.com"

	// (1) start: sot + srt y registro con OTP hasheado
	r, err := e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, r.Outcome)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)

	sc, ok := e.signer.ValidateType(st.Session, jwt.TypeSignupSession)
	require.True(t, ok)
	fid := sc.FlowID()
	rec, found, err := e.flows.Get(ctx, flowstore.KindSignup, fid)
	require.NoError(t, err)
	require.True(t, found)
	code := e.mailer.code(addr)
	require.Len(t, code, otp.Digits)
	require.NotContains(t, rec.HashedOTP, code)
	require.True(t, e.deps.OTP.Compare(code, rec.HashedOTP))
	require.True(t, password.Verify("secreta123", rec.PasswordHash))

	// (2) código incorrecto: error de campo, registro intacto
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: wrongCode(code)})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)
	require.Equal(t, msgOTPInvalid, r.Fields["otp"])
	require.Empty(t, r.Clear)
	again, found, err := e.flows.Get(ctx, flowstore.KindSignup, fid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, again)

	// (3) código correcto: cuenta creada, sot/srt limpias, at/lst emitidas
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, r.Outcome)
	require.ElementsMatch(t, signupCookies, r.Clear)
	_, ok = r.Token(jwt.TypeLogin)
	require.True(t, ok)
	_, ok = r.Token(jwt.TypeLoginSession)
	require.True(t, ok)
	_, found, err = e.flows.Get(ctx, flowstore.KindSignup, fid)
	require.NoError(t, err)
	require.False(t, found)

	u, err := e.users.GetByEmail(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, r.UserID, u.ID)
	require.True(t, u.Signed)
	require.True(t, u.Active)

	// (4) replay con el mismo token y código
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	require.ElementsMatch(t, signupCookies, r.Clear)

	// y sin cookies
	r, err = e.signup.Verify(ctx, StageTokens{}, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
}

func TestSignup_Validation(t *testing.T) {
	e := newEnv(t)
	r, err := e.signup.Start(context.Background(), dto.SignupRequest{
		FirstName: "<script>x", LastName: "G", Email: "nope", Password: "short",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)
	for _, f := range []string{"first_name", "last_name", "gender", "email", "password"} {
		assert.Contains(t, r.Fields, f)
	}
	require.Zero(t, e.mailer.sent)
}

func TestSignup_DoubleStartCreatesOneAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "dup@example.com"

	first, err := e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	require.True(t, first.OK())

	second, err := e.signup.Start(ctx, validSignup("  DUP@example.com "))
	require.NoError(t, err)
	require.Equal(t, OutcomeCooldown, second.Outcome)
	require.Empty(t, second.Issued)

	st := stage(t, first, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	r, err := e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: e.mailer.code(addr)})
	require.NoError(t, err)
	require.True(t, r.OK())

	// con la cuenta creada, un nuevo start es conflicto
	r, err = e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, r.Outcome)
}

func TestSignup_ConcurrentVerifyFirstWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "race@example.com"
	r, err := e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	code := e.mailer.code(addr)

	const n = 8
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: code})
			assert.NoError(t, err)
			outcomes <- r.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	okCount := 0
	for o := range outcomes {
		if o == OutcomeOK {
			okCount++
			continue
		}
		assert.Equal(t, OutcomeSessionExpired, o)
	}
	require.Equal(t, 1, okCount)
}

func TestSignup_SendFailureReleasesCooldown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mailer.err = errors.New("smtp down")

	_, err := e.signup.Start(ctx, validSignup("fail@example.com"))
	require.Error(t, err)

	e.mailer.err = nil
	r, err := e.signup.Start(ctx, validSignup("fail@example.com"))
	require.NoError(t, err)
	require.True(t, r.OK())
}

func TestSignup_WrongTokenTypes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r, err := e.signup.Start(ctx, validSignup("types@example.com"))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	code := e.mailer.code("types@example.com")

	// tokens intercambiados
	r, err = e.signup.Verify(ctx, StageTokens{OTP: st.Session, Session: st.OTP}, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)

	// un token de recovery con el mismo fid tampoco sirve
	sc, _ := e.signer.ValidateType(st.Session, jwt.TypeSignupSession)
	forged, err := e.signer.Issue(jwt.TypeRecoveryOTP, sc.Subject, map[string]string{jwt.PayloadFlowID: sc.FlowID()}, time.Minute)
	require.NoError(t, err)
	r, err = e.signup.Verify(ctx, StageTokens{OTP: forged, Session: st.Session}, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)

	// el flujo sigue usable
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.True(t, r.OK())
}

func TestSignup_ResendRotatesCodeWithinOuterDeadline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "resend@example.com"
	r, err := e.signup.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	oldCode := e.mailer.code(addr)

	r, err = e.signup.Resend(ctx, StageTokens{Session: st.Session})
	require.NoError(t, err)
	require.True(t, r.OK())
	require.Len(t, r.Issued, 1)
	newOTP, ok := r.Token(jwt.TypeSignupOTP)
	require.True(t, ok)

	sc, _ := e.signer.ValidateType(st.Session, jwt.TypeSignupSession)
	oc, ok := e.signer.ValidateType(newOTP, jwt.TypeSignupOTP)
	require.True(t, ok)
	require.Equal(t, sc.FlowID(), oc.FlowID())
	require.False(t, oc.ExpiresAt.After(sc.ExpiresAt))

	rec, found, err := e.flows.Get(ctx, flowstore.KindSignup, sc.FlowID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, rec.ResendCount)

	newCode := e.mailer.code(addr)
	if newCode != oldCode {
		r, err = e.signup.Verify(ctx, StageTokens{OTP: newOTP, Session: st.Session}, dto.VerifyRequest{OTP: oldCode})
		require.NoError(t, err)
		require.Equal(t, OutcomeValidation, r.Outcome)
	}
	r, err = e.signup.Verify(ctx, StageTokens{OTP: newOTP, Session: st.Session}, dto.VerifyRequest{OTP: newCode})
	require.NoError(t, err)
	require.True(t, r.OK())
}

func TestSignup_ResendCap(t *testing.T) {
	e := newEnv(t)
	e.signup.d.Settings.Signup.MaxResends = 2
	ctx := context.Background()
	r, err := e.signup.Start(ctx, validSignup("cap@example.com"))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)

	for i := 0; i < 2; i++ {
		r, err = e.signup.Resend(ctx, st)
		require.NoError(t, err)
		require.True(t, r.OK())
	}
	r, err = e.signup.Resend(ctx, st)
	require.NoError(t, err)
	require.Equal(t, OutcomeTooManyResends, r.Outcome)

	r, err = e.signup.Resend(ctx, StageTokens{Session: "garbage"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	require.ElementsMatch(t, signupCookies, r.Clear)
}

func TestSignup_ExpiredFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r, err := e.signup.Start(ctx, validSignup("exp@example.com"))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	sc, _ := e.signer.ValidateType(st.Session, jwt.TypeSignupSession)

	// el store venció antes que los tokens
	require.NoError(t, e.flows.Delete(ctx, flowstore.KindSignup, sc.FlowID()))
	r, err = e.signup.Verify(ctx, st, dto.VerifyRequest{OTP: e.mailer.code("exp@example.com")})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	require.ElementsMatch(t, signupCookies, r.Clear)

	// tokens vencidos
	later := e.signer.WithClock(func() time.Time { return time.Now().Add(time.Hour) })
	d := e.deps
	d.Signer = later
	r, err = NewSignupService(d).Verify(ctx, st, dto.VerifyRequest{OTP: "123456"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signupUser(t, "login@example.com")

	r, err := e.login.Login(ctx, dto.LoginRequest{Email: " LOGIN@example.com", Password: "secreta123"})
	require.NoError(t, err)
	require.True(t, r.OK())
	require.Equal(t, u.ID, r.UserID)
	access, ok := r.Token(jwt.TypeLogin)
	require.True(t, ok)
	c, ok := e.signer.ValidateType(access, jwt.TypeLogin)
	require.True(t, ok)
	require.Equal(t, u.ID, c.Subject)

	r, err = e.login.Login(ctx, dto.LoginRequest{Email: "login@example.com", Password: "otra12345"})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalidCredentials, r.Outcome)

	r, err = e.login.Login(ctx, dto.LoginRequest{Email: "nadie@example.com", Password: "secreta123"})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalidCredentials, r.Outcome)

	r, err = e.login.Login(ctx, dto.LoginRequest{})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)
	require.Len(t, r.Fields, 2)

	require.NoError(t, e.users.SetActive(ctx, u.ID, false))
	r, err = e.login.Login(ctx, dto.LoginRequest{Email: "login@example.com", Password: "secreta123"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAccountDisabled, r.Outcome)
}

func TestLogin_UnsignedAccountRejectedRegardlessOfPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash, err := password.Hash(password.Fast, "secreta123")
	require.NoError(t, err)
	_, err = e.users.Create(ctx, repository.CreateUserInput{
		Email: "pending@example.com", PasswordHash: hash, Signed: false, Active: true,
	})
	require.NoError(t, err)

	for _, pwd := range []string{"secreta123", "incorrecta1"} {
		r, err := e.login.Login(ctx, dto.LoginRequest{Email: "pending@example.com", Password: pwd})
		require.NoError(t, err)
		require.Equal(t, OutcomeAccountNotSigned, r.Outcome)
		require.Empty(t, r.Issued)
	}
}

// startRecovery devuelve los tokens de etapa y el código enviado.
func (e *env) startRecovery(t *testing.T, addr string) (StageTokens, string) {
	t.Helper()
	r, err := e.recovery.Start(context.Background(), dto.RecoveryRequest{Email: addr})
	require.NoError(t, err)
	require.True(t, r.OK(), "recovery start: %+v", r)
	return stage(t, r, jwt.TypeRecoveryOTP, jwt.TypeRecoverySession), e.mailer.code(addr)
}

func TestRecovery_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "rec@example.com"
	u := e.signupUser(t, addr)
	old, err := e.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)

	st, code := e.startRecovery(t, addr)

	r, err := e.recovery.Verify(ctx, st, dto.VerifyRequest{OTP: wrongCode(code)})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)

	r, err = e.recovery.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.True(t, r.OK())
	require.ElementsMatch(t, recoveryCookies, r.Clear)
	reset, ok := r.Token(jwt.TypeRecoveryReset)
	require.True(t, ok)

	// replay del verify
	r, err = e.recovery.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)

	// los tokens de OTP no sirven para reset
	r, err = e.recovery.Reset(ctx, st.OTP, dto.ResetRequest{Password: "nueva12345"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	require.ElementsMatch(t, resetCookies, r.Clear)

	// política
	r, err = e.recovery.Reset(ctx, reset, dto.ResetRequest{Password: "corta"})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)

	r, err = e.recovery.Reset(ctx, reset, dto.ResetRequest{Password: "nueva12345"})
	require.NoError(t, err)
	require.True(t, r.OK())
	require.ElementsMatch(t, resetCookies, r.Clear)

	got, err := e.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, password.Verify("nueva12345", got.PasswordHash))

	cur, err := e.sessions.IsCurrent(ctx, u.ID, old.SessionID)
	require.NoError(t, err)
	require.False(t, cur)

	// el token de reset es de un solo uso
	r, err = e.recovery.Reset(ctx, reset, dto.ResetRequest{Password: "otra123456"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	got, err = e.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, password.Verify("nueva12345", got.PasswordHash))
}

func TestRecovery_StartDisclosesMissingAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.recovery.Start(ctx, dto.RecoveryRequest{Email: "nadie@example.com"})
	require.NoError(t, err)
	require.Equal(t, OutcomeNoAccount, r.Outcome)
	require.Equal(t, msgNoAccount, r.Fields["email"])

	r, err = e.recovery.Start(ctx, dto.RecoveryRequest{Email: "no es email"})
	require.NoError(t, err)
	require.Equal(t, OutcomeValidation, r.Outcome)

	_, err = e.users.Create(ctx, repository.CreateUserInput{Email: "pend@example.com", PasswordHash: "x", Active: true})
	require.NoError(t, err)
	r, err = e.recovery.Start(ctx, dto.RecoveryRequest{Email: "pend@example.com"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAccountNotSigned, r.Outcome)
}

func TestRecovery_FlowsAreIsolated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ua := e.signupUser(t, "a@example.com")
	ub := e.signupUser(t, "b@example.com")

	stA, codeA := e.startRecovery(t, "a@example.com")
	stB, _ := e.startRecovery(t, "b@example.com")

	// mezclar tokens de A y B
	r, err := e.recovery.Verify(ctx, StageTokens{OTP: stA.OTP, Session: stB.Session}, dto.VerifyRequest{OTP: codeA})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)

	r, err = e.recovery.Verify(ctx, stA, dto.VerifyRequest{OTP: codeA})
	require.NoError(t, err)
	require.True(t, r.OK())
	resetA, _ := r.Token(jwt.TypeRecoveryReset)

	// el reset de A sólo puede tocar a A
	r, err = e.recovery.Reset(ctx, resetA, dto.ResetRequest{Password: "nueva12345"})
	require.NoError(t, err)
	require.True(t, r.OK())
	require.Equal(t, ua.ID, r.UserID)

	gotB, err := e.users.GetByID(ctx, ub.ID)
	require.NoError(t, err)
	require.True(t, password.Verify("secreta123", gotB.PasswordHash))
	require.False(t, password.Verify("nueva12345", gotB.PasswordHash))
}

func TestRecovery_SignupFlowIDDoesNotResolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r, err := e.signup.Start(ctx, validSignup("cross@example.com"))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	sc, _ := e.signer.ValidateType(st.Session, jwt.TypeSignupSession)

	pld := map[string]string{jwt.PayloadFlowID: sc.FlowID()}
	o, err := e.signer.Issue(jwt.TypeRecoveryOTP, "x", pld, time.Minute)
	require.NoError(t, err)
	s, err := e.signer.Issue(jwt.TypeRecoverySession, "x", pld, time.Minute)
	require.NoError(t, err)

	r, err = e.recovery.Verify(ctx, StageTokens{OTP: o, Session: s}, dto.VerifyRequest{OTP: e.mailer.code("cross@example.com")})
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
}

func TestAccount_ChangePasswordAndLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signupUser(t, "acc@example.com")

	r, err := e.account.ChangePassword(ctx, u, dto.ChangePasswordRequest{Password: "mala12345", NewPassword: "nueva12345"})
	require.NoError(t, err)
	require.Equal(t, msgPasswordWrong, r.Fields["password"])

	r, err = e.account.ChangePassword(ctx, u, dto.ChangePasswordRequest{Password: "secreta123", NewPassword: "sinnumeros"})
	require.NoError(t, err)
	require.Equal(t, msgPassword, r.Fields["new_password"])

	r, err = e.account.ChangePassword(ctx, u, dto.ChangePasswordRequest{Password: "secreta123", NewPassword: "nueva12345"})
	require.NoError(t, err)
	require.True(t, r.OK())
	got, err := e.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, password.Verify("nueva12345", got.PasswordHash))

	tk, err := e.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)
	r, err = e.account.Logout(ctx, u.ID, tk.Marker)
	require.NoError(t, err)
	require.True(t, r.OK())
	require.ElementsMatch(t, sessionCookies, r.Clear)
	cur, err := e.sessions.IsCurrent(ctx, u.ID, tk.SessionID)
	require.NoError(t, err)
	require.False(t, cur)

	// segundo logout con el mismo marcador
	r, err = e.account.Logout(ctx, u.ID, tk.Marker)
	require.NoError(t, err)
	require.Equal(t, OutcomeSessionExpired, r.Outcome)
	require.ElementsMatch(t, sessionCookies, r.Clear)
}

var errStoreDown = errors.New("store down")

// flakyUsers falla una vez en la operación marcada.
type flakyUsers struct {
	*memory.UserStore
	mu         sync.Mutex
	failCreate bool
	failGet    bool
	failUpdate bool
}

func (f *flakyUsers) take(flag *bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := *flag
	*flag = false
	return v
}

func (f *flakyUsers) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	if f.take(&f.failCreate) {
		return nil, errStoreDown
	}
	return f.UserStore.Create(ctx, in)
}

func (f *flakyUsers) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if f.take(&f.failGet) {
		return nil, errStoreDown
	}
	return f.UserStore.GetByID(ctx, id)
}

func (f *flakyUsers) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if f.take(&f.failUpdate) {
		return errStoreDown
	}
	return f.UserStore.UpdatePasswordHash(ctx, id, hash)
}

func TestSignup_CreateFailureKeepsFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "caida@example.com"
	users := &flakyUsers{UserStore: e.users, failCreate: true}
	d := e.deps
	d.Users = users
	svc := NewSignupService(d)

	r, err := svc.Start(ctx, validSignup(addr))
	require.NoError(t, err)
	st := stage(t, r, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	code := e.mailer.code(addr)

	_, err = svc.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.ErrorIs(t, err, errStoreDown)
	_, err = e.users.GetByEmail(ctx, addr)
	require.True(t, repository.IsNotFound(err))

	// mismo código, mismos tokens
	r, err = svc.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	require.True(t, r.OK(), "%+v", r)
	u, err := e.users.GetByEmail(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, r.UserID, u.ID)
}

func TestRecovery_ResetStoreFailureKeepsToken(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  func(f *flakyUsers)
	}{
		{"lookup", func(f *flakyUsers) { f.failGet = true }},
		{"update", func(f *flakyUsers) { f.failUpdate = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			addr := "reintento@example.com"
			u := e.signupUser(t, addr)

			st, code := e.startRecovery(t, addr)
			r, err := e.recovery.Verify(ctx, st, dto.VerifyRequest{OTP: code})
			require.NoError(t, err)
			reset, ok := r.Token(jwt.TypeRecoveryReset)
			require.True(t, ok)

			users := &flakyUsers{UserStore: e.users}
			tc.set(users)
			d := e.deps
			d.Users = users
			svc := NewRecoveryService(d)

			_, err = svc.Reset(ctx, reset, dto.ResetRequest{Password: "nueva12345"})
			require.ErrorIs(t, err, errStoreDown)

			r, err = svc.Reset(ctx, reset, dto.ResetRequest{Password: "nueva12345"})
			require.NoError(t, err)
			require.True(t, r.OK(), "%+v", r)
			got, err := e.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			require.True(t, password.Verify("nueva12345", got.PasswordHash))

			// sigue siendo de un solo uso
			r, err = svc.Reset(ctx, reset, dto.ResetRequest{Password: "otra123456"})
			require.NoError(t, err)
			require.Equal(t, OutcomeSessionExpired, r.Outcome)
		})
	}
}

func TestRecovery_ResetRechecksAccountState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	addr := "baja@example.com"
	u := e.signupUser(t, addr)

	st, code := e.startRecovery(t, addr)
	r, err := e.recovery.Verify(ctx, st, dto.VerifyRequest{OTP: code})
	require.NoError(t, err)
	reset, ok := r.Token(jwt.TypeRecoveryReset)
	require.True(t, ok)

	require.NoError(t, e.users.SetActive(ctx, u.ID, false))

	r, err = e.recovery.Reset(ctx, reset, dto.ResetRequest{Password: "nueva12345"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAccountDisabled, r.Outcome)
	require.ElementsMatch(t, resetCookies, r.Clear)

	got, err := e.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, password.Verify("secreta123", got.PasswordHash))
}
