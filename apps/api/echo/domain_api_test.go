package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mkabenga/presencia/apps/api/echo"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/report"
)

func TestCalendarAPI(t *testing.T) {
	ta := newTestApp(t)
	adminToken := ta.token(t, ta.adminUsr)

	t.Run("admin only", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/special-days", ta.token(t, ta.studentUsr),
			calendar.NewSpecialDay{Date: "2025-03-10", Kind: calendar.KindHoliday, Description: "Carnaval"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	var day calendar.SpecialDay
	t.Run("create", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/special-days", adminToken,
			calendar.NewSpecialDay{Date: "2025-03-10", Kind: calendar.KindHoliday, Description: "Carnaval"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec.Body, &day)
		assert.True(t, day.AffectsAttendance)
	})

	t.Run("visible to any authed user", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/special-days", ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var days []calendar.SpecialDay
		decodeBody(t, rec.Body, &days)
		assert.Len(t, days, 1)
	})

	t.Run("blocks session opening", func(t *testing.T) {
		setNow(t, 8, 0)
		rec := ta.do(t, http.MethodPost, "/v1/sessions", ta.token(t, ta.teacherUsr),
			attendance.NewSession{OfferingID: ta.offering.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("check blocked date", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/special-days/check?date=2025-03-10", ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.DateCheckResponse
		decodeBody(t, rec.Body, &resp)
		assert.True(t, resp.Blocked)
		assert.Contains(t, resp.Reason, "Carnaval")
	})

	t.Run("check ordinary date", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/special-days/check?date=2025-03-11", ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.DateCheckResponse
		decodeBody(t, rec.Body, &resp)
		assert.False(t, resp.Blocked)
	})

	t.Run("check requires a valid date", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/special-days/check?date=carnaval", ta.token(t, ta.studentUsr), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete lifts the block", func(t *testing.T) {
		rec := ta.do(t, http.MethodDelete, "/v1/special-days/"+day.ID, adminToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		setNow(t, 8, 0)
		rec = ta.do(t, http.MethodPost, "/v1/sessions", ta.token(t, ta.teacherUsr),
			attendance.NewSession{OfferingID: ta.offering.ID})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestPermitAPI(t *testing.T) {
	ta := newTestApp(t)
	setNow(t, 8, 0)
	sess := openSession(t, ta)

	studentToken := ta.token(t, ta.studentUsr)
	adminToken := ta.token(t, ta.adminUsr)

	var p permit.Permit
	t.Run("create", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/permits", studentToken, permit.NewPermit{
			Reason:            "medical appointment",
			StartDate:         "2025-03-10",
			CoveredSessionIDs: []string{sess.ID},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec.Body, &p)
		assert.Equal(t, permit.StatePending, p.State)
		assert.Equal(t, ta.student.ID, p.StudentID)
		assert.Equal(t, []string{sess.ID}, p.CoveredSessionIDs)
	})

	t.Run("students only", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/permits", adminToken,
			permit.NewPermit{Reason: "x", StartDate: "2025-03-10"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("mine", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/permits/mine", studentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var permits []permit.Permit
		decodeBody(t, rec.Body, &permits)
		require.Len(t, permits, 1)
		assert.Equal(t, p.ID, permits[0].ID)
	})

	t.Run("query all is admin only", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/permits", studentToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ta.do(t, http.MethodGet, "/v1/permits", adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("owner or admin reads detail", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/permits/"+p.ID, studentToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		other := ta.enrollStudent(t, "INF-002", "Oscar Other", "oscarother", "oscar@test.bo")
		rec = ta.do(t, http.MethodGet, "/v1/permits/"+p.ID, ta.token(t, other.usr), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("approve", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/permits/"+p.ID+"/approve", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var approved permit.Permit
		decodeBody(t, rec.Body, &approved)
		assert.Equal(t, permit.StateApproved, approved.State)
		assert.Equal(t, ta.admin.ID, approved.ApproverID)
	})

	t.Run("cannot decide twice", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/permits/"+p.ID+"/reject", adminToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("covered sessions frozen once decided", func(t *testing.T) {
		rec := ta.do(t, http.MethodPut, "/v1/permits/"+p.ID+"/sessions", studentToken,
			echoapi.CoveredSessionsRequest{SessionIDs: []string{sess.ID}})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestReportAPI(t *testing.T) {
	ta := newTestApp(t)
	setNow(t, 8, 0)
	sess := openSession(t, ta)

	setNow(t, 8, 10)
	rec := ta.do(t, http.MethodPost, "/v1/registrations", ta.token(t, ta.studentUsr),
		scanPayload(t, ta, ta.student, ta.studentUsr.Name))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("my summary", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/reports/students/me", ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sum report.StudentSummary
		decodeBody(t, rec.Body, &sum)
		assert.Equal(t, ta.student.ID, sum.StudentID)
		require.Len(t, sum.Courses, 1)
		assert.Equal(t, 1, sum.Courses[0].Held)
		assert.Equal(t, 1, sum.Courses[0].Present)
		assert.Equal(t, float64(100), sum.Overall)
	})

	t.Run("student summary is admin only", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/reports/students/"+ta.student.ID, ta.token(t, ta.studentUsr), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ta.do(t, http.MethodGet, "/v1/reports/students/"+ta.student.ID, ta.token(t, ta.adminUsr), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("general summary", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/reports/general?term_id="+ta.term.ID, ta.token(t, ta.adminUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sum report.GeneralSummary
		decodeBody(t, rec.Body, &sum)
		require.Len(t, sum.Rows, 1)
		assert.Equal(t, 1, sum.Rows[0].Attended)
	})

	t.Run("term_id required", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/reports/general", ta.token(t, ta.adminUsr), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("roster pdf", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/reports/sessions/"+sess.ID+"/roster.pdf", ta.token(t, ta.teacherUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	})
}
