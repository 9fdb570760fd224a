package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/finance"
	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/request"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/services/email"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/tests"
)

const loginPwd = "v3ry-s3cr3t"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a Server running on a fresh in-memory DB.
type env struct {
	conf    *core.Config
	app     *Server
	db      *inmemdb.DB
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleMock
	logger  *testutil.Logger
}

func setup(t *testing.T, configure ...func(conf *core.Config, deps *ServerDeps)) *env {
	t.Helper()
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	emailLogs := inmemdb.NewEmailLogRepository(db)

	deps := ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		EmailLogs:      emailLogs,
	}
	for _, fn := range configure {
		fn(conf, &deps)
	}

	// set up services
	mailSvc := emailsvc.NewConsoleMock(conf, emailLogs, logger)
	roles := user.NewRoleResolver(conf, usrRepo, user.NewMemoryRoleCache(conf.Roles.Cooldown), logger)
	deps.UserSvc = user.NewService(conf, usrRepo, roles, mailSvc, logger)
	deps.CourseSvc = course.NewService(courseRepo)
	deps.ClassSvc = class.NewService(inmemdb.NewClassRepository(db), courseRepo)
	deps.Progress = progress.NewTracker(inmemdb.NewProgressRepository(db), courseRepo, deps.ClassSvc, deps.UserSvc, mailSvc, logger)
	deps.CalendarSvc = calendar.NewService(inmemdb.NewCalendarRepository(db))
	deps.AttendanceSvc = attendance.NewService(inmemdb.NewAttendanceRepository(db))
	deps.GradeSvc = grade.NewService(inmemdb.NewGradeRepository(db))
	deps.RequestSvc = request.NewService(inmemdb.NewRequestRepository(db), deps.ClassSvc, deps.UserSvc, mailSvc, logger)
	deps.FinanceSvc = finance.NewService(inmemdb.NewFinanceRepository(db))
	deps.MarketingSvc = marketing.NewService(inmemdb.NewMarketingRepository(db), mailSvc)

	return &env{
		conf:    conf,
		app:     NewServer(deps),
		db:      db,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (e *env) createUser(t *testing.T, name, email, role string, isActive ...bool) user.User {
	active := true
	if len(isActive) > 0 {
		active = isActive[0]
	}
	return testutil.CreateUser(t, e.usrRepo, name, email, loginPwd, role, active)
}

func (e *env) token(t *testing.T, usr user.User) string {
	token, err := GenerateToken(e.conf, GetUserClaims(e.conf, usr))
	require.NoError(t, err, "GenerateToken()")
	return token
}

// do serves the request & returns the recorded response.
func (e *env) do(method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	var data []byte
	if len(body) > 0 {
		switch b := body[0].(type) {
		case []byte:
			data = b
		case string:
			data = []byte(b)
		default:
			data, _ = json.Marshal(b)
		}
	}
	req, rec := newAuthRequest(method, path, token, data)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marchallObj()")
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	require.NoError(t, err, "marchallList()")
	return data
}

// decode unmarshals the body of rec into a new T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var obj T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obj), "decoding %s", rec.Body.String())
	return obj
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual()") {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, e *env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			var rec *httptest.ResponseRecorder
			if tt.body != nil {
				rec = e.do(method, tt.path, tt.token, tt.body)
			} else {
				rec = e.do(method, tt.path, tt.token)
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
