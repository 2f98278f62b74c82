package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/noticed/internal/notification"
)

func ptr[T any](v T) *T { return &v }

func TestContainsFold(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		want     bool
	}{
		{"Signal-Desktop", "signal", true},
		{"signal-desktop", "Signal", true},
		{"signal-desktop", "brave", false},
		{"mixedCase", "case", true},
		{"mixedCase", "", true},
		{"", "", true},
		{"ab", "abc", false},
		{"ÄBC", "äbc", false}, // ASCII folding only
	}

	for _, tt := range tests {
		t.Run(tt.haystack+"/"+tt.needle, func(t *testing.T) {
			assert.Equal(t, tt.want, containsFold(tt.haystack, tt.needle))
		})
	}
}

func TestRuleMatches(t *testing.T) {
	n := &notification.Notification{
		AppName:  "Slack",
		Summary:  "New message",
		Body:     "from #general",
		Category: "im.received",
		Urgency:  notification.Normal,
	}

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"empty rule matches", Rule{}, true},
		{"app substring", Rule{App: ptr("slack")}, true},
		{"app mismatch", Rule{App: ptr("discord")}, false},
		{"summary and body", Rule{Summary: ptr("MESSAGE"), Body: ptr("general")}, true},
		{"one predicate fails", Rule{Summary: ptr("message"), Body: ptr("random")}, false},
		{"category", Rule{Category: ptr("im.")}, true},
		{"urgency exact", Rule{Urgency: ptr(uint8(1))}, true},
		{"urgency mismatch", Rule{Urgency: ptr(uint8(2))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(n))
		})
	}

	t.Run("category predicate needs a category", func(t *testing.T) {
		bare := &notification.Notification{AppName: "x"}
		assert.False(t, (&Rule{Category: ptr("")}).Matches(bare))
	})
}

func TestRuleApply(t *testing.T) {
	n := &notification.Notification{Urgency: notification.Normal, ExpireTimeout: -1}
	r := Rule{
		NoPopup:         ptr(true),
		Silent:          ptr(true),
		ForceUrgency:    ptr(uint8(2)),
		ExpireTimeoutMs: ptr(int64(math.MaxInt64)),
		Resident:        ptr(true),
		Transient:       ptr(true),
	}
	r.Apply(n)

	assert.True(t, n.SuppressPopup)
	assert.True(t, n.SuppressSound)
	assert.Equal(t, notification.Critical, n.Urgency)
	assert.Equal(t, int32(math.MaxInt32), n.ExpireTimeout)
	assert.True(t, n.Resident)
	assert.True(t, n.Transient)

	(&Rule{ForceUrgency: ptr(uint8(9)), ExpireTimeoutMs: ptr(int64(math.MinInt64))}).Apply(n)
	assert.Equal(t, notification.Normal, n.Urgency)
	assert.Equal(t, int32(math.MinInt32), n.ExpireTimeout)
}

func TestRulesApplyCumulatively(t *testing.T) {
	n := &notification.Notification{AppName: "mail", Summary: "invoice"}
	rules := []Rule{
		{App: ptr("mail"), NoPopup: ptr(true), Silent: ptr(true)},
		{Summary: ptr("invoice"), NoPopup: ptr(false)},
		{App: ptr("chat"), Silent: ptr(false)},
	}

	applyRules(rules, n)

	assert.False(t, n.SuppressPopup, "later rule overrides")
	assert.True(t, n.SuppressSound, "non-matching rule leaves field")
}
