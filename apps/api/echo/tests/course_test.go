package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/user"
)

// approvedCourse builds a course of nLessons lessons through the API & gets it approved.
func approvedCourse(t *testing.T, e *env, profToken, adminToken string, nLessons int) (course.Course, []course.Lesson) {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/courses", profToken, course.NewCourse{Title: "Go 101"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	crs := decode[course.Course](t, rec)

	rec = e.do(http.MethodPost, "/api/courses/"+crs.ID+"/modules", profToken, course.NewModule{Title: "Basics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mod := decode[course.Module](t, rec)

	lessons := make([]course.Lesson, 0, nLessons)
	for i := 0; i < nLessons; i++ {
		rec = e.do(http.MethodPost, "/api/courses/"+crs.ID+"/modules/"+mod.ID+"/lessons", profToken, course.NewLesson{Title: "Lesson"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		lessons = append(lessons, decode[course.Lesson](t, rec))
	}

	rec = e.do(http.MethodPost, "/api/courses/"+crs.ID+"/submit", profToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, "/api/courses/"+crs.ID+"/approve", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[course.Course](t, rec), lessons
}

func newClass(t *testing.T, e *env, adminToken string, crs course.Course, capacity int) class.Class {
	t.Helper()
	today := time.Now().UTC()
	rec := e.do(http.MethodPost, "/api/classes", adminToken, class.NewClass{
		CourseID:    crs.ID,
		ProfessorID: crs.ProfessorID,
		Name:        "Evening",
		Term:        "2026-S2",
		StartsOn:    today.Format("2006-01-02"),
		EndsOn:      today.AddDate(0, 1, 0).Format("2006-01-02"),
		Capacity:    capacity,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[class.Class](t, rec)
}

func Test_courseApi_workflow(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	prof := e.createUser(t, "Prof", "prof@test.cd", user.RoleProfessor)
	other := e.createUser(t, "Other Prof", "other@test.cd", user.RoleProfessor)
	student := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	adminToken, profToken, studentToken := e.token(t, admin), e.token(t, prof), e.token(t, student)

	rec := e.do(http.MethodPost, "/api/courses", profToken, course.NewCourse{Title: "  Go 101 ", ProfessorID: other.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	crs := decode[course.Course](t, rec)
	assert.Equal(t, "Go 101", crs.Title)
	assert.Equal(t, course.StatusDraft, crs.Status)
	assert.Equal(t, prof.ID, crs.ProfessorID, "professors own the courses they create")

	base := "/api/courses/" + crs.ID
	runHTTPTests(t, e, []httpTest{
		{name: "students cannot create", method: http.MethodPost, path: "/api/courses", token: studentToken, body: course.NewCourse{Title: "X"}, wantCode: http.StatusForbidden},
		{name: "drafts are hidden from students", path: base, token: studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"})},
		{name: "drafts are hidden from other professors", path: base, token: e.token(t, other), wantCode: http.StatusNotFound},
		{name: "empty course cannot be submitted", method: http.MethodPost, path: base + "/submit", token: profToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "course has no lessons"})},
		{
			name: "quiz data must be a JSON object", method: http.MethodPost, path: base + "/modules", token: profToken,
			body: course.NewModule{Title: "Quiz", HasQuiz: true, QuizData: "[1, 2]"}, wantCode: http.StatusBadRequest,
		},
		{name: "unknown module", method: http.MethodPost, path: base + "/modules/lol/lessons", token: profToken, body: course.NewLesson{Title: "L"}, wantCode: http.StatusNotFound},
		{name: "students list approved courses only", path: "/api/courses", token: studentToken, wantData: marchallList(t)},
	})

	rec = e.do(http.MethodPost, base+"/modules", profToken, course.NewModule{Title: "Basics", HasQuiz: true, QuizData: `{"questions": []}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mod := decode[course.Module](t, rec)
	assert.JSONEq(t, `{"questions": []}`, string(mod.QuizData))

	rec = e.do(http.MethodPost, base+"/modules/"+mod.ID+"/lessons", profToken, course.NewLesson{Title: "Hello", VideoURL: "https://videos.test.cd/hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lsn := decode[course.Lesson](t, rec)
	assert.Equal(t, crs.ID, lsn.CourseID)

	rec = e.do(http.MethodPost, base+"/submit", profToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, course.StatusPending, decode[course.Course](t, rec).Status)

	runHTTPTests(t, e, []httpTest{
		{name: "pending course is not editable", method: http.MethodPut, path: base, token: profToken, body: course.UpdateCourse{Title: "Go 102"}, wantCode: http.StatusConflict},
		{name: "pending course cannot be resubmitted", method: http.MethodPost, path: base + "/submit", token: profToken, wantCode: http.StatusConflict},
		{name: "professors cannot approve", method: http.MethodPost, path: base + "/approve", token: profToken, wantCode: http.StatusForbidden},
		{
			name: "rejection needs a reason", method: http.MethodPost, path: base + "/reject", token: adminToken,
			body: course.RejectCourse{Reason: "   "}, wantCode: http.StatusBadRequest,
		},
	})

	rec = e.do(http.MethodPost, base+"/reject", adminToken, course.RejectCourse{Reason: "Too short"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	crs = decode[course.Course](t, rec)
	assert.Equal(t, course.StatusRejected, crs.Status)
	assert.Equal(t, "Too short", crs.RejectionReason)

	// rejected courses are editable again
	rec = e.do(http.MethodPut, base, profToken, course.UpdateCourse{Title: "Go 101 (long)"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, base+"/submit", profToken).Code)
	rec = e.do(http.MethodPost, base+"/approve", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, course.StatusApproved, decode[course.Course](t, rec).Status)

	rec = e.do(http.MethodGet, base, studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[course.Course](t, rec)
	assert.Equal(t, "Go 101 (long)", got.Title)
	require.Len(t, got.Modules, 1)
	require.Len(t, got.Modules[0].Lessons, 1)

	rec = e.do(http.MethodDelete, base, profToken)
	assert.Equal(t, http.StatusConflict, rec.Code, "approved courses are not deletable by their professor")
	rec = e.do(http.MethodDelete, base, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_classApi_enrollment(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	prof := e.createUser(t, "Prof", "prof@test.cd", user.RoleProfessor)
	hero := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	late := e.createUser(t, "Late", "late@test.cd", user.RoleStudent)
	adminToken, heroToken, lateToken := e.token(t, admin), e.token(t, hero), e.token(t, late)

	crs, _ := approvedCourse(t, e, e.token(t, prof), adminToken, 1)
	cls := newClass(t, e, adminToken, crs, 1)
	enrollPath := "/api/classes/" + cls.ID + "/enroll"

	rec := e.do(http.MethodPost, enrollPath, heroToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enr := decode[class.Enrollment](t, rec)
	assert.Equal(t, class.EnrollmentActive, enr.Status)
	assert.Equal(t, hero.ID, enr.UserID)

	runHTTPTests(t, e, []httpTest{
		{name: "already enrolled", method: http.MethodPost, path: enrollPath, token: heroToken, wantCode: http.StatusConflict},
		{name: "class full", method: http.MethodPost, path: enrollPath, token: lateToken, wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "class is full"})},
		{name: "students cannot enroll others", method: http.MethodPost, path: enrollPath, token: heroToken, body: class.NewEnrollment{UserID: late.ID}, wantCode: http.StatusForbidden},
		{name: "professors are not enrollable", method: http.MethodPost, path: enrollPath, token: adminToken, body: class.NewEnrollment{UserID: prof.ID}, wantCode: http.StatusBadRequest},
		{name: "enrollments of others are hidden", path: "/api/enrollments/" + enr.ID, token: lateToken, wantCode: http.StatusNotFound},
		{name: "students list their own enrollments", path: "/api/enrollments", token: lateToken, wantData: marchallList(t)},
		{name: "class roster is staff only", path: "/api/classes/" + cls.ID + "/enrollments", token: heroToken, wantCode: http.StatusForbidden},
		{
			name: "students can only cancel", method: http.MethodPost, path: "/api/enrollments/" + enr.ID + "/status", token: heroToken,
			body: echoapi.EnrollmentStatusRequest{Status: class.EnrollmentLocked}, wantCode: http.StatusForbidden,
		},
		{
			name: "unknown status", method: http.MethodPost, path: "/api/enrollments/" + enr.ID + "/status", token: adminToken,
			body: echoapi.EnrollmentStatusRequest{Status: "lol"}, wantCode: http.StatusBadRequest,
		},
	})

	// a cancelled enrollment frees its seat
	rec = e.do(http.MethodPost, "/api/enrollments/"+enr.ID+"/status", heroToken, echoapi.EnrollmentStatusRequest{Status: class.EnrollmentCancelled})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, class.EnrollmentCancelled, decode[class.Enrollment](t, rec).Status)

	rec = e.do(http.MethodPost, enrollPath, adminToken, class.NewEnrollment{UserID: late.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/classes/"+cls.ID+"/enrollments?status=active", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	enrs := decode[[]class.Enrollment](t, rec)
	require.Len(t, enrs, 1)
	assert.Equal(t, late.ID, enrs[0].UserID)

	t.Run("policy check", func(t *testing.T) {
		// closing the class makes its active enrollments violations
		rec := e.do(http.MethodPut, "/api/classes/"+cls.ID, adminToken, map[string]interface{}{
			"course_id": cls.CourseID, "professor_id": cls.ProfessorID, "name": cls.Name,
			"starts_on": cls.StartsOn.Format("2006-01-02"), "ends_on": cls.EndsOn.Format("2006-01-02"),
			"capacity": 1, "is_active": false,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = e.do(http.MethodPost, "/api/enrollments/policy-check", heroToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = e.do(http.MethodPost, "/api/enrollments/policy-check?fix=true", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		report := decode[class.PolicyReport](t, rec)
		require.Len(t, report.Violations, 1)
		assert.Equal(t, class.ReasonClassInactive, report.Violations[0].Reason)
		assert.Equal(t, 1, report.Fixed)

		rec = e.do(http.MethodGet, "/api/enrollments", lateToken)
		enrs := decode[[]class.Enrollment](t, rec)
		require.Len(t, enrs, 1)
		assert.Equal(t, class.EnrollmentInactive, enrs[0].Status)
	})
}

func Test_progressApi_certificate(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	prof := e.createUser(t, "Prof", "prof@test.cd", user.RoleProfessor)
	hero := e.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	outsider := e.createUser(t, "Outsider", "out@test.cd", user.RoleStudent)
	adminToken, heroToken := e.token(t, admin), e.token(t, hero)

	crs, lessons := approvedCourse(t, e, e.token(t, prof), adminToken, 2)
	cls := newClass(t, e, adminToken, crs, 0)

	complete := func(token, lessonID string) *progress.Result {
		rec := e.do(http.MethodPost, "/api/lessons/"+lessonID+"/complete", token)
		if rec.Code != http.StatusOK {
			return nil
		}
		res := decode[progress.Result](t, rec)
		return &res
	}

	runHTTPTests(t, e, []httpTest{
		{
			name: "not enrolled", method: http.MethodPost, path: "/api/lessons/" + lessons[0].ID + "/complete", token: heroToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "user is not enrolled in this course"}),
		},
		{name: "unknown lesson", method: http.MethodPost, path: "/api/lessons/lol/complete", token: heroToken, wantCode: http.StatusNotFound},
		{name: "students only", method: http.MethodPost, path: "/api/lessons/" + lessons[0].ID + "/complete", token: adminToken, wantCode: http.StatusForbidden},
	})

	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/classes/"+cls.ID+"/enroll", heroToken).Code)

	res := complete(heroToken, lessons[0].ID)
	require.NotNil(t, res)
	assert.Equal(t, 50, res.Progress)
	assert.Nil(t, res.Certificate)

	// completing twice changes nothing
	res = complete(heroToken, lessons[0].ID)
	require.NotNil(t, res)
	assert.Equal(t, 50, res.Progress)
	assert.Equal(t, 1, res.Completed)

	res = complete(heroToken, lessons[1].ID)
	require.NotNil(t, res)
	assert.Equal(t, 100, res.Progress)
	require.NotNil(t, res.Certificate)
	assert.True(t, res.CertificateIssued)
	cert := *res.Certificate

	// a single certificate per course
	res = complete(heroToken, lessons[1].ID)
	require.NotNil(t, res)
	require.NotNil(t, res.Certificate)
	assert.False(t, res.CertificateIssued)
	assert.Equal(t, cert.Code, res.Certificate.Code)

	assert.Eventually(t, func() bool {
		for _, msg := range e.mailSvc.SentMessages() {
			if msg.TemplateName == "certificate_issued" && msg.To[0] == hero.MailAddress() {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "certificate mail sent")

	rec := e.do(http.MethodGet, "/api/courses/"+crs.ID+"/progress", heroToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prog := decode[progress.CourseProgress](t, rec)
	assert.Equal(t, 100, prog.Progress)
	assert.ElementsMatch(t, []string{lessons[0].ID, lessons[1].ID}, prog.CompletedLessonIDs)

	rec = e.do(http.MethodGet, "/api/enrollments", heroToken)
	enrs := decode[[]class.Enrollment](t, rec)
	require.Len(t, enrs, 1)
	assert.Equal(t, 100, enrs[0].Progress)

	runHTTPTests(t, e, []httpTest{
		{name: "own certificates", path: "/api/certificates", token: heroToken, wantData: marchallList(t, cert)},
		{name: "others' certificates are admin only", path: "/api/certificates?user_id=" + hero.ID, token: e.token(t, outsider), wantCode: http.StatusForbidden},
		{name: "admin lists anyone's", path: "/api/certificates?user_id=" + hero.ID, token: adminToken, wantData: marchallList(t, cert)},
		{name: "public verification", path: "/api/certificates/verify/" + cert.Code, wantData: marchallObj(t, cert)},
		{name: "unknown code", path: "/api/certificates/verify/LOL", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "certificate not found"})},
	})
}
