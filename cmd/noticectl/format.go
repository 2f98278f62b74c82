package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/noticed/internal/control"
	"github.com/llehouerou/noticed/internal/notification"
	"github.com/llehouerou/noticed/internal/render"
)

const (
	lineWidth    = 100
	appWidth     = 14
	summaryWidth = 48
	indent       = "       "
)

var (
	idStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle = lipgloss.NewStyle().Faint(true)

	urgencyStyles = map[notification.Urgency]lipgloss.Style{
		notification.Low:      lipgloss.NewStyle().Faint(true),
		notification.Normal:   lipgloss.NewStyle(),
		notification.Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func formatState(s notification.ControlState) string {
	return fmt.Sprintf("do-not-disturb: %s, history: %d", onOff(s.DndEnabled), s.HistoryCount)
}

func age(v notification.View, now time.Time) string {
	received := time.UnixMilli(v.ReceivedAtUnixMs)
	return humanize.RelTime(received, now, "ago", "from now")
}

// formatView renders a view as a header line followed by the body and
// actions when present.
func formatView(v notification.View, now time.Time) string {
	urgency := urgencyStyles[v.Urgency].Render(render.Pad(v.Urgency.String(), 8))
	left := fmt.Sprintf("%s %s %s %s",
		idStyle.Render(render.Pad(fmt.Sprintf("#%d", v.ID), 5)),
		urgency,
		render.TruncateAndPad(v.AppName, appWidth),
		render.Truncate(v.Summary, summaryWidth),
	)
	lines := []string{render.Row(left, dimStyle.Render(age(v, now)), lineWidth)}

	if body := render.Truncate(v.Body, lineWidth-len(indent)); body != "" {
		lines = append(lines, indent+body)
	}
	if len(v.Actions) > 0 {
		labels := make([]string, 0, len(v.Actions))
		for _, a := range v.Actions {
			labels = append(labels, a.Key+"="+render.Line(a.Label))
		}
		lines = append(lines, indent+dimStyle.Render("actions: "+strings.Join(labels, ", ")))
	}
	return strings.Join(lines, "\n")
}

func printViews(w io.Writer, views []notification.View, now time.Time) {
	if len(views) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no notifications"))
		return
	}
	for _, v := range views {
		fmt.Fprintln(w, formatView(v, now))
	}
}

func formatEvent(ev control.Event, now time.Time) string {
	switch ev.Kind {
	case control.KindAdded, control.KindUpdated:
		popup := ""
		if ev.ShowPopup {
			popup = " (popup)"
		}
		return fmt.Sprintf("%s%s\n%s", ev.Kind, popup, formatView(ev.View, now))
	case control.KindClosed, control.KindStandardClosed:
		return fmt.Sprintf("%s #%d %s", ev.Kind, ev.ID, ev.Reason)
	case control.KindStateChanged:
		return fmt.Sprintf("%s %s", ev.Kind, formatState(ev.State))
	case control.KindPanelRequested:
		if ev.Panel.Debug != notification.DebugOff {
			return fmt.Sprintf("%s %s debug=%s", ev.Kind, ev.Panel.Action, ev.Panel.Debug)
		}
		return fmt.Sprintf("%s %s", ev.Kind, ev.Panel.Action)
	case control.KindActionInvoked:
		return fmt.Sprintf("%s #%d %s", ev.Kind, ev.ID, ev.ActionKey)
	default:
		return ev.Kind.String()
	}
}
