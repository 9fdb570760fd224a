package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/user"
)

func Test_marketingApi_leads(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	prof := e.createUser(t, "Prof", "prof@test.cd", user.RoleProfessor)
	adminToken := e.token(t, admin)

	newLead := func(nl marketing.NewLead) marketing.Lead {
		t.Helper()
		rec := e.do(http.MethodPost, "/api/leads", adminToken, nl)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[marketing.Lead](t, rec)
	}

	ref := newLead(marketing.NewLead{Name: "Ref", Email: "Ref@Corp.cd", Source: "Referral", CompanyData: `{"size": 50}`})
	assert.Equal(t, "ref@corp.cd", ref.Email)
	assert.Equal(t, "referral", ref.Source)
	assert.Equal(t, marketing.StatusNew, ref.Status)
	assert.Equal(t, 30, ref.Score)
	assert.JSONEq(t, `{"size": 50}`, string(ref.CompanyData))

	won := newLead(marketing.NewLead{Name: "Won", Email: "won@corp.cd", Source: "referral", Status: marketing.StatusConverted})
	assert.Equal(t, 70, won.Score)
	lost := newLead(marketing.NewLead{Name: "Lost", Email: "lost@corp.cd", Source: "website", Status: marketing.StatusLost})
	assert.Equal(t, 0, lost.Score)
	noMail := newLead(marketing.NewLead{Name: "Walk-in"})
	assert.Equal(t, "other", noMail.Source)
	assert.Equal(t, 5, noMail.Score)

	runHTTPTests(t, e, []httpTest{
		{name: "admins only", path: "/api/leads", token: e.token(t, prof), wantCode: http.StatusForbidden},
		{
			name: "company data must be a JSON object", method: http.MethodPost, path: "/api/leads", token: adminToken,
			body:     marketing.NewLead{Name: "Bad", CompanyData: "[1]"},
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"company_data": "must be a valid JSON object"}),
		},
		{
			name: "unknown status", method: http.MethodPost, path: "/api/leads", token: adminToken,
			body: marketing.NewLead{Name: "Bad", Status: "hot"}, wantCode: http.StatusBadRequest,
		},
		{
			name: "conversion stats", path: "/api/leads/stats", token: adminToken,
			wantData: marchallObj(t, []marketing.ConversionStat{
				{Source: "other", Total: 1},
				{Source: "referral", Total: 2, Converted: 1, Rate: 50},
				{Source: "website", Total: 1},
			}),
		},
		{name: "unknown lead", path: "/api/leads/lol", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec := e.do(http.MethodGet, "/api/leads?status=new", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]marketing.Lead](t, rec), 2)

	t.Run("activities raise the score", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/leads/"+ref.ID+"/activities", adminToken, marketing.NewActivity{Kind: marketing.ActivityMeeting})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = e.do(http.MethodPost, "/api/leads/"+ref.ID+"/activities", adminToken, marketing.NewActivity{Kind: "tweet"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = e.do(http.MethodGet, "/api/leads/"+ref.ID, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 45, decode[marketing.Lead](t, rec).Score)

		rec = e.do(http.MethodGet, "/api/leads/"+ref.ID+"/activities", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode[[]marketing.Activity](t, rec), 1)
	})

	t.Run("losing a lead zeroes its score", func(t *testing.T) {
		rec := e.do(http.MethodPut, "/api/leads/"+ref.ID, adminToken, marketing.NewLead{Name: "Ref", Email: ref.Email, Source: ref.Source, Status: marketing.StatusLost})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 0, decode[marketing.Lead](t, rec).Score)
	})
}

func Test_marketingApi_campaigns(t *testing.T) {
	e := setup(t)
	admin := e.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	adminToken := e.token(t, admin)

	for _, nl := range []marketing.NewLead{
		{Name: "One", Email: "one@corp.cd", Source: "ads"},
		{Name: "Two", Email: "two@corp.cd", Source: "event", Status: marketing.StatusQualified},
		{Name: "Dup", Email: "ONE@corp.cd", Source: "website"},
		{Name: "Lost", Email: "lost@corp.cd", Status: marketing.StatusLost},
		{Name: "No mail"},
	} {
		rec := e.do(http.MethodPost, "/api/leads", adminToken, nl)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	newCampaign := func(name string) marketing.Campaign {
		t.Helper()
		rec := e.do(http.MethodPost, "/api/campaigns", adminToken, marketing.NewCampaign{
			Name: name, Subject: "Open days", Body: "Come visit us.\n\nDoors open at 9.",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[marketing.Campaign](t, rec)
	}

	camp := newCampaign("Autumn")
	assert.Equal(t, marketing.CampaignDraft, camp.Status)
	path := "/api/campaigns/" + camp.ID

	runHTTPTests(t, e, []httpTest{
		{
			name: "body is required", method: http.MethodPost, path: "/api/campaigns", token: adminToken,
			body: marketing.NewCampaign{Name: "X", Subject: "Y", Body: "   "}, wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown segment status", method: http.MethodPost, path: path + "/send", token: adminToken,
			body: marketing.Segment{Statuses: []string{"hot"}}, wantCode: http.StatusBadRequest,
		},
		{
			name: "empty segment", method: http.MethodPost, path: path + "/send", token: adminToken,
			body:     marketing.Segment{Sources: []string{"Referral"}},
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"segment": marketing.ErrNoRecipients.Error()}),
		},
	})

	// lost leads, duplicate emails & leads without email are skipped
	rec := e.do(http.MethodPost, path+"/send", adminToken, marketing.Segment{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	camp = decode[marketing.Campaign](t, rec)
	assert.Equal(t, marketing.CampaignSent, camp.Status)
	assert.Equal(t, 2, camp.RecipientsCount)
	assert.False(t, camp.SentAt.IsZero())

	sent := e.mailSvc.SentMessages()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.Equal(t, "campaign", msg.TemplateName)
		assert.Equal(t, "Open days", msg.Subject)
		assert.Contains(t, msg.TextContent, "Doors open at 9.")
	}

	runHTTPTests(t, e, []httpTest{
		{name: "sent only once", method: http.MethodPost, path: path + "/send", token: adminToken, body: marketing.Segment{}, wantCode: http.StatusConflict},
		{
			name: "sent campaigns are read-only", method: http.MethodPut, path: path, token: adminToken,
			body: marketing.NewCampaign{Name: "X", Subject: "Y", Body: "Z"}, wantCode: http.StatusConflict,
		},
		{name: "sent campaigns are kept", method: http.MethodDelete, path: path, token: adminToken, wantCode: http.StatusConflict},
	})

	t.Run("lost leads can be selected", func(t *testing.T) {
		e.mailSvc.Reset()
		camp := newCampaign("Win back")
		rec := e.do(http.MethodPost, "/api/campaigns/"+camp.ID+"/send", adminToken, marketing.Segment{Statuses: []string{marketing.StatusLost}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, decode[marketing.Campaign](t, rec).RecipientsCount)

		sent := e.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "lost@corp.cd", sent[0].To[0].Address)
	})

	t.Run("deliveries are logged", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/api/email-logs?recipient=one@corp.cd", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		logs := decode[[]core.EmailLog](t, rec)
		require.Len(t, logs, 1)
		assert.Equal(t, "campaign", logs[0].Template)
		assert.Equal(t, core.EmailStatusSent, logs[0].Status)
		assert.Equal(t, "console", logs[0].Provider)
	})
}
