package marketing

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	acts := func(kinds ...string) []Activity {
		as := make([]Activity, 0, len(kinds))
		for _, k := range kinds {
			as = append(as, Activity{Kind: k})
		}
		return as
	}

	tests := []struct {
		name       string
		lead       Lead
		activities []Activity
		want       int
	}{
		{name: "unknown source", lead: Lead{Source: "other", Status: StatusNew}, want: 5},
		{name: "referral", lead: Lead{Source: "referral", Status: StatusNew}, want: 30},
		{name: "qualified event", lead: Lead{Source: "event", Status: StatusQualified}, want: 50},
		{name: "with activities", lead: Lead{Source: "ads", Status: StatusContacted}, activities: acts(ActivityCall, ActivityEmailOpen), want: 30},
		{name: "unknown activities count for nothing", lead: Lead{Source: "ads", Status: StatusNew}, activities: acts("tweet"), want: 10},
		{
			name: "activity points are capped", lead: Lead{Source: "social", Status: StatusNew},
			activities: acts(ActivityMeeting, ActivityMeeting, ActivityMeeting, ActivityMeeting), want: 55,
		},
		{
			name: "capped at 100", lead: Lead{Source: "referral", Status: StatusConverted},
			activities: acts(ActivityMeeting, ActivityMeeting, ActivityMeeting), want: 100,
		},
		{name: "lost", lead: Lead{Source: "referral", Status: StatusLost}, activities: acts(ActivityMeeting), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.lead, tt.activities))
		})
	}
}

func TestConversionStats(t *testing.T) {
	stats := ConversionStats([]Lead{
		{Source: "website", Status: StatusConverted},
		{Source: "ads", Status: StatusNew},
		{Source: "website", Status: StatusLost},
		{Source: "website", Status: StatusConverted},
	})
	assert.Equal(t, []ConversionStat{
		{Source: "ads", Total: 1},
		{Source: "website", Total: 3, Converted: 2, Rate: 66.67},
	}, stats)

	assert.Empty(t, ConversionStats(nil))
}

func Test_segmentRecipients(t *testing.T) {
	leads := []Lead{
		{Name: "One", Email: "one@corp.cd", Status: StatusNew},
		{Name: "Nobody", Status: StatusNew},
		{Name: "Lost", Email: "lost@corp.cd", Status: StatusLost},
		{Name: "One again", Email: "one@corp.cd", Status: StatusContacted},
	}
	assert.Equal(t, []mail.Address{{Name: "One", Address: "one@corp.cd"}}, segmentRecipients(leads, true))
	assert.Len(t, segmentRecipients(leads, false), 2)
}

func Test_paragraphs(t *testing.T) {
	assert.Equal(t, []string{"Hello,", "Line one\nline two", "Bye"}, paragraphs("Hello,\r\n\r\nLine one\nline two\n\n\n\n  Bye  "))
	assert.Empty(t, paragraphs("   "))
}
