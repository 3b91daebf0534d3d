// Package bootscript renders the user-data shell script embedded into every
// gateway instance. The script is the instance's own safety net: it runs
// entirely inside the instance, out of this process's control, so the
// gateway terminates itself even if the orchestrating process dies and
// never reconnects.
//
// Two independent mechanisms:
//
//  1. An idle watchdog sampled every minute by cron. If CPU idle stays above
//     the threshold for the whole window, the instance shuts itself down.
//  2. An unconditional absolute shutdown scheduled at boot, as a hard
//     backstop for the case where the idle signal misbehaves.
package bootscript

import (
	"bytes"
	"fmt"
	"text/template"
)

// Params parameterize the rendered script.
type Params struct {
	// IdleThresholdPercent is the CPU idle percentage above which a sample
	// counts as idle.
	IdleThresholdPercent int

	// IdleWindowMinutes is how many consecutive idle samples trigger a
	// self-shutdown.
	IdleWindowMinutes int

	// HardTimeoutMinutes is the absolute self-shutdown deadline, minutes
	// from boot, independent of the idle logic.
	HardTimeoutMinutes int
}

const (
	DefaultIdleThresholdPercent = 95
	DefaultIdleWindowMinutes    = 30
)

// HardTimeout derives the absolute backstop from the operator's idle
// timeout: twice the idle budget, so the backstop never races a legitimate
// still-active session.
func HardTimeout(idleTimeoutMinutes int) int {
	return 2 * idleTimeoutMinutes
}

var ErrRender = fmt.Errorf("failed to render boot script")

var scriptTemplate = template.Must(template.New("bootscript").Parse(`#!/bin/bash
set -eu

# Absolute backstop: power off {{.HardTimeoutMinutes}} minutes from boot, no
# matter what the idle watchdog sees.
shutdown -h +{{.HardTimeoutMinutes}}

cat > /usr/local/bin/idle-watchdog <<'WATCHDOG'
#!/bin/bash
threshold={{.IdleThresholdPercent}}
window={{.IdleWindowMinutes}}
counter_file=/var/run/idle-watchdog.count

idle=$(vmstat 1 2 | tail -1 | awk '{print $15}')
count=$(cat "$counter_file" 2>/dev/null || echo 0)

if [ "$idle" -gt "$threshold" ]; then
  count=$((count + 1))
else
  count=0
fi
echo "$count" > "$counter_file"

if [ "$count" -ge "$window" ]; then
  shutdown -h now
fi
WATCHDOG
chmod +x /usr/local/bin/idle-watchdog

echo '* * * * * root /usr/local/bin/idle-watchdog' > /etc/cron.d/idle-watchdog
`))

// Render produces the boot script for the given params. Zero-valued idle
// fields fall back to the package defaults; HardTimeoutMinutes must be set.
func Render(p Params) (string, error) {
	if p.IdleThresholdPercent == 0 {
		p.IdleThresholdPercent = DefaultIdleThresholdPercent
	}
	if p.IdleWindowMinutes == 0 {
		p.IdleWindowMinutes = DefaultIdleWindowMinutes
	}
	if p.HardTimeoutMinutes <= 0 {
		return "", fmt.Errorf("%w: hard timeout must be positive, got %d", ErrRender, p.HardTimeoutMinutes)
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buf.String(), nil
}
