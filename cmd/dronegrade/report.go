package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dronegrade/harness/internal/drone"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/olekukonko/tablewriter"
)

// printReport writes the final accounting of a session as a table.
func printReport(w io.Writer, sess *core.Session, r core.SessionResult, actors *drone.ActorSet, exported string) {
	fmt.Fprintln(w)

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Session", "Reason", "Points", "Detections", "Destroyed", "Elapsed"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	destroyed := "-"
	if actors != nil {
		destroyed = fmt.Sprintf("%d/%d", actors.DestroyedCount(), actors.Len())
	}
	tw.Append([]string{
		sess.ID,
		string(r.Reason),
		fmt.Sprintf("%.2f", r.Points),
		fmt.Sprintf("%d", r.Detections),
		destroyed,
		r.Elapsed.Truncate(time.Millisecond).String(),
	})
	tw.Render()

	if exported != "" {
		fmt.Fprintf(w, "Recording: %s\n", exported)
	}
	fmt.Fprintln(w)
}

// printSnapshot writes a live score snapshot as a table.
func printSnapshot(w io.Writer, s core.ScoreSnapshot) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Points", "Detections", "Elapsed", "Running", "Reason"})
	tw.SetBorder(true)

	reason := string(s.Reason)
	if reason == "" {
		reason = "-"
	}
	tw.Append([]string{
		fmt.Sprintf("%.2f", s.Points),
		fmt.Sprintf("%d", s.Detections),
		s.Elapsed.Truncate(time.Millisecond).String(),
		fmt.Sprintf("%t", s.Running),
		reason,
	})
	tw.Render()
}
