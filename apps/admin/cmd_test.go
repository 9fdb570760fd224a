package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)

	out := new(bytes.Buffer)
	return &commandLine{
		usrRepo:  usrRepo,
		policies: class.NewService(inmemdb.NewClassRepository(db), inmemdb.NewCourseRepository(db)),
		out:      out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) bool {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.ErrorIs(t, err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		return assert.NoError(t, err)
	}
	return false
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "rooms", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Equal(t, []string{"up", "up-to", "down", "status", "create"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Old Name", "old@test.cd", "pwd", user.RoleStudent, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-email", "new@test.cd", "-role", "dean"}, extra: extra{pwd: "pwd"}, wantErrStr: `unknown role "dean"`},
		{name: "create", args: []string{"adduser", "-email", " New@Test.cd ", "-name", "New"}, extra: extra{pwd: "secret"}},
		{name: "update", args: []string{"adduser", "-email", existing.Email, "-role", user.RoleProfessor}, extra: extra{pwd: "secret"}},
	}
	for _, tt := range tests {
		readPasswordFunc = func(int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ctx := context.Background()
	created, err := usrRepo.GetUser(ctx, user.GetFilter{Email: "new@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, "New", created.Name)
	assert.Equal(t, user.RoleAdmin, created.Role)
	assert.True(t, created.IsActive)
	assert.NoError(t, created.CheckPassword("secret"))

	updated, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Old Name", updated.Name)
	assert.Equal(t, user.RoleProfessor, updated.Role)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword("secret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.cd", "mdr", user.RoleStudent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		readPasswordFunc = func(int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

type fakeChecker struct {
	fixed bool
}

func (f *fakeChecker) CheckEnrollmentPolicy(_ context.Context, fix bool) (class.PolicyReport, error) {
	f.fixed = fix
	report := class.PolicyReport{
		CheckedAt:  time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC),
		Classes:    2,
		Violations: []class.PolicyViolation{{EnrollmentID: "e1", UserID: "u1", ClassID: "c1", Reason: class.ReasonClassEnded}},
	}
	if fix {
		report.Fixed = 1
	}
	return report, nil
}

func Test_commandLine_checkEnrollments(t *testing.T) {
	t.Run("no violations", func(t *testing.T) {
		cli, out := setup(t)
		require.NoError(t, cli.run([]string{"admin", "checkenrollments"}))
		assert.Contains(t, out.String(), "checked 0 classes")
		assert.Contains(t, out.String(), "no violations")
	})

	t.Run("fix", func(t *testing.T) {
		cli, out := setup(t)
		checker := new(fakeChecker)
		cli.policies = checker

		require.NoError(t, cli.run([]string{"admin", "checkenrollments", "-fix"}))
		assert.True(t, checker.fixed)
		assert.Contains(t, out.String(), "checked 2 classes at 2026-10-01 02:00:00")
		assert.Contains(t, out.String(), "class_ended")
		assert.Contains(t, out.String(), "1 violations, 1 fixed")
	})

	t.Run("bad flag", func(t *testing.T) {
		cli, _ := setup(t)
		assert.ErrorIs(t, cli.run([]string{"admin", "checkenrollments", "-lol"}), errHelp)
	})
}
