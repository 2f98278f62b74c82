package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/noticed/internal/control"
	"github.com/llehouerou/noticed/internal/notification"
)

func TestFormatView(t *testing.T) {
	v := notification.View{
		ID:               12,
		AppName:          "thunderbird",
		Summary:          "New mail",
		Body:             "From: alice\nSubject: lunch",
		Urgency:          notification.Critical,
		Actions:          []notification.Action{{Key: "default", Label: "Open"}},
		ReceivedAtUnixMs: testNow.Add(-3 * time.Minute).UnixMilli(),
	}

	lines := strings.Split(formatView(v, testNow), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "#12")
	assert.Contains(t, lines[0], "critical")
	assert.Contains(t, lines[0], "thunderbird")
	assert.Contains(t, lines[0], "New mail")
	assert.True(t, strings.HasSuffix(lines[0], "3 minutes ago"), lines[0])
	assert.Equal(t, indent+"From: alice Subject: lunch", lines[1])
	assert.Contains(t, lines[2], "actions: default=Open")
}

func TestFormatView_TruncatesSummary(t *testing.T) {
	v := notification.View{ID: 1, Summary: strings.Repeat("x", 200), ReceivedAtUnixMs: testNow.UnixMilli()}

	line := formatView(v, testNow)
	assert.NotContains(t, line, "\n")
	assert.Contains(t, line, "…")
	assert.NotContains(t, line, strings.Repeat("x", summaryWidth))
}

func TestPrintViews_Empty(t *testing.T) {
	var b strings.Builder
	printViews(&b, nil, testNow)
	assert.Equal(t, "no notifications\n", b.String())
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   control.Event
		want string
	}{
		{"closed", control.Event{Kind: control.KindClosed, ID: 3, Reason: notification.DismissedByUser}, "closed #3 dismissed"},
		{"standard closed", control.Event{Kind: control.KindStandardClosed, ID: 3, Reason: notification.ClosedByCall}, "std-closed #3 closed-by-call"},
		{"state", control.Event{Kind: control.KindStateChanged, State: notification.ControlState{DndEnabled: true, HistoryCount: 1}}, "state do-not-disturb: on, history: 1"},
		{"panel", control.Event{Kind: control.KindPanelRequested, Panel: notification.ToggleRequest()}, "panel toggle"},
		{"debug panel", control.Event{Kind: control.KindPanelRequested, Panel: notification.OpenDebugRequest(notification.DebugInfo)}, "panel open debug=info"},
		{"action", control.Event{Kind: control.KindActionInvoked, ID: 8, ActionKey: "reply"}, "action #8 reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.ev, testNow))
		})
	}
}

func TestFormatEvent_Added(t *testing.T) {
	ev := control.Event{
		Kind:      control.KindAdded,
		ShowPopup: true,
		View:      notification.View{ID: 4, Summary: "hi", ReceivedAtUnixMs: testNow.UnixMilli()},
	}
	got := formatEvent(ev, testNow)
	assert.True(t, strings.HasPrefix(got, "added (popup)\n"), got)
	assert.Contains(t, got, "#4")
}
