package cmd

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/ctlplane"
)

// RunStatus queries the daemon and prints its state, counters and index sizes.
func RunStatus(client ctlplane.ControlPlaneClient, out io.Writer) error {
	status, err := client.Status()
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, RenderStatus(status, time.Now()))
	return err
}

// RenderStatus formats a status reply. now is used for the uptime.
func RenderStatus(st *ctlplane.StatusReply, now time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\n")
	}

	line(StyleTitle.Render(brand.Name + " status"))
	line(row("State:", stateBadge(st.State)))
	line(row("PID:", strconv.Itoa(st.PID)))
	line(row("Version:", st.Version))
	if !st.StartedAt.IsZero() {
		line(row("Uptime:", now.Sub(st.StartedAt).Truncate(time.Second).String()))
	}
	if st.ConfigFile != "" {
		line(row("Config:", st.ConfigFile))
	}
	line(row("Backend:", st.Backend))
	line(row("Reloads:", reloadSummary(st)))
	line("")

	line(StyleTitle.Render("Index"))
	line(row("Zones:", Printer.Sprintf("%d entries in %d buckets", st.ZoneEntries, st.ZoneBuckets)))
	line(row("Services:", Printer.Sprintf("%d entries in %d buckets (%d names)", st.ServiceEntries, st.ServiceBuckets, st.Services)))
	line("")

	line(StyleTitle.Render("Records"))
	names := make([]string, 0, len(st.Counters))
	for name, v := range st.Counters {
		if v > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		line(StyleLabel.Render(name) + StyleCount.Render(Printer.Sprintf("%d", st.Counters[name])))
	}
	line(StyleLabel.Render("invalid") + StyleCount.Render(Printer.Sprintf("%d", st.Invalid)))
	line(StyleLabel.Render("total") + StyleCount.Render(Printer.Sprintf("%d", st.Total)))

	if len(st.Dropped) > 0 {
		line("")
		line(StyleTitle.Render("Dropped"))
		sources := make([]string, 0, len(st.Dropped))
		for s := range st.Dropped {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			count := Printer.Sprintf("%d", st.Dropped[s])
			if st.Dropped[s] > 0 {
				count = StyleStatusWarn.Render(count)
			}
			line(row(s+":", count))
		}
	}
	return b.String()
}

func stateBadge(state string) string {
	switch state {
	case "idle", "draining":
		return StyleStatusGood.Render(strings.ToUpper(state))
	case "reloading":
		return StyleStatusWarn.Render(strings.ToUpper(state))
	}
	return StyleStatusBad.Render(strings.ToUpper(state))
}

func reloadSummary(st *ctlplane.StatusReply) string {
	if st.Reloads == 0 {
		return "none"
	}
	s := Printer.Sprintf("%d", st.Reloads)
	if st.LastResult != ctlplane.ResultOK {
		return s + ", last " + StyleStatusBad.Render("failed")
	}
	if !st.LastReload.IsZero() {
		s += ", last at " + st.LastReload.Format(time.DateTime)
	}
	return s
}
