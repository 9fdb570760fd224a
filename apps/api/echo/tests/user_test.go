package tests

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/cache"
	"github.com/trezcool/campus/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t, func(conf *core.Config, _ *echoapi.ServerDeps) {
		conf.Roles.AdminEmails = []string{"boss@test.cd"}
		conf.Roles.ProfessorEmails = []string{"prof@test.cd"}
	})

	boss := e.createUser(t, "Boss", "boss@test.cd", user.RoleStudent)
	prof := e.createUser(t, "Prof", "prof@test.cd", user.RoleStudent)
	demoted := e.createUser(t, "Ex Admin", "former@test.cd", user.RoleAdmin)
	e.createUser(t, "N Dog", "ndog@test.cd", user.RoleStudent, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", body: echoapi.LoginRequest{}, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Email: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown email", body: echoapi.LoginRequest{Email: "lol@test.cd", Password: loginPwd},
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: echoapi.LoginRequest{Email: "boss@test.cd", Password: "lol"},
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", body: echoapi.LoginRequest{Email: "NDOG@test.cd ", Password: loginPwd},
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/login"
	}
	runHTTPTests(t, e, tests)

	login := func(t *testing.T, email string) string {
		rec := e.do(http.MethodPost, "/api/users/login", "", echoapi.LoginRequest{Email: email, Password: loginPwd})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[echoapi.LoginResponse](t, rec)
		require.NotEmpty(t, resp.Token)
		return resp.Token
	}

	t.Run("roles follow the allow-lists", func(t *testing.T) {
		for _, tc := range []struct {
			usr  user.User
			role string
		}{
			{usr: boss, role: user.RoleAdmin},
			{usr: prof, role: user.RoleProfessor},
			{usr: demoted, role: user.RoleStudent},
		} {
			token := login(t, tc.usr.Email)

			claims := new(echoapi.Claims)
			_, _, err := new(jwt.Parser).ParseUnverified(token, claims)
			require.NoError(t, err)
			assert.Equal(t, tc.role, claims.Role, tc.usr.Email)
			assert.Equal(t, tc.usr.ID, claims.Subject)

			me := decode[user.User](t, e.do(http.MethodGet, "/api/users/me", token))
			assert.Equal(t, tc.role, me.Role, tc.usr.Email)
			assert.False(t, me.LastLogin.IsZero(), "last login is set")
		}

		// a promoted professor gets a profile
		_, err := e.usrRepo.GetProfessorProfile(context.Background(), prof.ID)
		assert.NoError(t, err)
	})
}

func Test_userApi_loginRateLimit(t *testing.T) {
	e := setup(t, func(_ *core.Config, deps *echoapi.ServerDeps) {
		deps.RateLimiter = cache.NewMemoryRateLimiter(2, time.Minute)
	})
	e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)

	body := echoapi.LoginRequest{Email: "hero@test.cd", Password: "wrong"}
	for i := 0; i < 2; i++ {
		rec := e.do(http.MethodPost, "/api/users/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := e.do(http.MethodPost, "/api/users/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other routes have their own budget
	rec = e.do(http.MethodPost, "/api/users/password-reset", "", echoapi.PasswordResetRequest{Email: "hero@test.cd"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_userQuery(t *testing.T) {
	e := setup(t)

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().Truncate(time.Second)
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)

	usr1 := testutil.CreateUser(t, e.usrRepo, "User", "awe@test.cd", loginPwd, user.RoleStudent, true, t1)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin@test.cd", loginPwd, user.RoleAdmin, true, t2)
	prof := testutil.CreateUser(t, e.usrRepo, "Professor", "prof@test.cd", loginPwd, user.RoleProfessor, true, t3)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero@test.cd", loginPwd, user.RoleStudent, true, now)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog@test.cd", loginPwd, user.RoleStudent, false, now) // 😂

	adminToken := e.token(t, admin)
	empty := marchallList(t)

	runHTTPTests(t, e, []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: e.token(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/api/users", token: adminToken, wantData: marchallList(t, admin, student, naughty, prof, usr1)},
		// filtering
		{name: "search (unknown)", path: path("lol", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{name: "search=USE", path: path("USE", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: marchallList(t, usr1)},
		{name: "role (unknown)", path: path("", "", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=professor,admin", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleProfessor, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, admin, prof),
		},
		{name: "is_active=false", path: path("", "", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "is_active (invalid)", path: "/api/users?is_active=lol", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"is_active": "must be a boolean"}`),
		},
		{
			name: "created_from", path: path("", "", t1, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, admin, prof, usr1),
		},
		{
			name: "created_from - created_to", path: path("", "", t1, t2, nil),
			token: adminToken, wantData: marchallList(t, admin, usr1),
		},
		// ordering
		{
			name: "order by -created_at,name", path: path("", "-created_at,name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, prof, admin, usr1, student, naughty),
		},
		{
			name: "order by -role,name", path: path("", "-role,name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, admin, prof, student, naughty, usr1),
		},
	})
}

func Test_userApi_userDetails(t *testing.T) {
	e := setup(t)

	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	student := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	other := e.createUser(t, "Other", "other@test.cd", user.RoleStudent)
	adminToken := e.token(t, admin)
	studentToken := e.token(t, student)

	runHTTPTests(t, e, []httpTest{
		{name: "own details", path: "/api/users/" + student.ID, token: studentToken, wantData: marchallObj(t, student)},
		{
			name: "other's details hidden", path: "/api/users/" + other.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees all", path: "/api/users/" + other.ID, token: adminToken, wantData: marchallObj(t, other)},
		{
			name: "non admin cannot deactivate", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: map[string]interface{}{"is_active": false}, wantCode: http.StatusForbidden,
		},
		{
			name: "non admin cannot change email", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: map[string]interface{}{"email": "new@test.cd"}, wantCode: http.StatusForbidden,
		},
		{
			name: "non admin cannot delete", method: http.MethodDelete, path: "/api/users/" + student.ID, token: studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "bulk delete cannot include self", method: http.MethodDelete, path: "/api/users?id=" + other.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
		{name: "roles", path: "/api/users/roles", token: adminToken, wantData: marchallObj(t, user.Roles)},
	})

	t.Run("update own name", func(t *testing.T) {
		rec := e.do(http.MethodPut, "/api/users/"+student.ID, studentToken, map[string]interface{}{"name": "Super Hero"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Super Hero", decode[user.User](t, rec).Name)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := e.do(http.MethodDelete, "/api/users/"+other.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: other.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("deleted user token is rejected", func(t *testing.T) {
		otherToken := e.token(t, other)
		rec := e.do(http.MethodGet, "/api/users/me", otherToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_userRefreshToken(t *testing.T) {
	e := setup(t)

	naughty := e.createUser(t, "N Dog", "ndog@test.cd", user.RoleStudent, false) // 😂
	student := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)

	now := time.Now()
	unrefreshableClaims := echoapi.GetUserClaims(e.conf, student, now.Add(-2*e.conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := echoapi.GenerateToken(e.conf, unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Invalid token", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "Inactive user not allowed", token: e.token(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/token-refresh"
	}
	runHTTPTests(t, e, tests)

	t.Run("Token refreshed", func(t *testing.T) {
		origIat := now.Add(-time.Hour).Unix()
		token, err := echoapi.GenerateToken(e.conf, echoapi.GetUserClaims(e.conf, student, origIat))
		require.NoError(t, err)

		rec := e.do(http.MethodPost, "/api/users/token-refresh", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[echoapi.LoginResponse](t, rec)

		// cannot guess the new token.. the original issue time is kept
		claims := new(echoapi.Claims)
		_, _, err = new(jwt.Parser).ParseUnverified(resp.Token, claims)
		require.NoError(t, err)
		assert.Equal(t, origIat, claims.OrigIssuedAt)
	})
}

func Test_userApi_userResetPassword(t *testing.T) {
	e := setup(t)
	student := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	t.Run("validation", func(t *testing.T) {
		runHTTPTests(t, e, []httpTest{
			{
				name: "required fields", method: http.MethodPost, path: "/api/users/password-reset", body: echoapi.PasswordResetRequest{},
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"}),
			},
			{
				name: "invalid email", method: http.MethodPost, path: "/api/users/password-reset", body: echoapi.PasswordResetRequest{Email: "lol"},
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
			},
		})
	})

	t.Run("unknown email", func(t *testing.T) {
		e.mailSvc.Reset()
		rec := e.do(http.MethodPost, "/api/users/password-reset", "", echoapi.PasswordResetRequest{Email: "lol@test.cd"})
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)
		assert.Never(t, func() bool { return len(e.mailSvc.SentMessages()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	})

	e.mailSvc.Reset()
	rec := e.do(http.MethodPost, "/api/users/password-reset", "", echoapi.PasswordResetRequest{Email: student.Email})
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)
	require.Eventually(t, func() bool { return len(e.mailSvc.SentMessages()) == 1 }, time.Second, 10*time.Millisecond)

	msg := e.mailSvc.SentMessages()[0]
	assert.Equal(t, student.MailAddress(), msg.To[0])
	assert.Contains(t, msg.TextContent, student.Name)
	data, ok := msg.TemplateData.(map[string]string)
	require.True(t, ok, "template data")

	confirm := func(uid, token, pwd string) *httpTest {
		return &httpTest{
			method: http.MethodPost, path: "/api/users/password-reset-confirm",
			body: user.ResetUserPassword{Token: token, UID: uid, Password: pwd, PasswordConfirm: pwd},
		}
	}
	tests := []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/api/users/password-reset-confirm", body: user.ResetUserPassword{},
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"token": "this field is required", "uid": "this field is required", "password": "this field is required", "password_confirm": "this field is required"}`),
		},
		{name: "invalid uid", wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid uid"})},
		{name: "invalid token", wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid token"})},
		{
			name: "weak password", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password": "password cannot be entirely numeric"}`),
		},
		{name: "valid token", wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."})},
	}
	bodies := []*httpTest{
		nil,
		confirm("bG9s", data["Token"], "LolC@t123"),
		confirm(data["UID"], "HE4TS-sigsig-sig", "LolC@t123"),
		confirm(data["UID"], data["Token"], "1234567890"),
		confirm(data["UID"], data["Token"], "LolC@t123"),
	}
	for i, b := range bodies {
		if b != nil {
			tests[i].method, tests[i].path, tests[i].body = b.method, b.path, b.body
		}
	}
	runHTTPTests(t, e, tests)

	// the new password is usable
	rec = e.do(http.MethodPost, "/api/users/login", "", echoapi.LoginRequest{Email: student.Email, Password: "LolC@t123"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_userApi_createUser(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)

	runHTTPTests(t, e, []httpTest{
		{
			name: "email taken", method: http.MethodPost, path: "/api/users/register", token: e.token(t, admin),
			body:     user.NewUser{Name: "Hero 2", Email: "HERO@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123"},
			wantCode: http.StatusBadRequest,
		},
	})

	rec := e.do(http.MethodPost, "/api/users/register", e.token(t, admin),
		user.NewUser{Name: "Newbie", Email: "newbie@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	usr := decode[user.User](t, rec)
	assert.Equal(t, "newbie@test.cd", usr.Email)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.IsActive)
}
