// Package interactive provides the interactive command loop for
// fes-console.
package interactive

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fes-protocol/fes-go/pkg/stim"
)

// Console handles the interactive prompt for one stimulator.
type Console struct {
	stim *stim.Stimulator
	fc   *stim.FileConfig
	rl   *readline.Instance

	ticker   *time.Ticker
	tickStop chan struct{}
}

// New creates a console bound to s.
func New(s *stim.Stimulator, fc *stim.FileConfig) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fes> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{stim: s, fc: fc, rl: rl}, nil
}

// Run starts the command loop and blocks until quit or EOF.
func (c *Console) Run() {
	defer c.rl.Close()
	defer c.stopTicking()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "enable":
			c.report(c.stim.Enable())

		case "start":
			c.cmdStart()

		case "amp", "a":
			c.cmdWrite(args, true)

		case "pw", "p":
			c.cmdWrite(args, false)

		case "max-amp":
			c.cmdMax(args, true)

		case "max-pw":
			c.cmdMax(args, false)

		case "update", "u":
			c.report(c.stim.Update())

		case "tick":
			c.cmdTick(args)

		case "status", "s":
			c.cmdStatus()

		case "disable":
			c.stopTicking()
			c.stim.Disable()
			fmt.Fprintln(c.rl.Stdout(), "Stimulator disabled")

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// cmdStart runs the full bring-up: scheduler creation, one event per
// channel, and schedule sync.
func (c *Console) cmdStart() {
	if !c.stim.Enabled() {
		fmt.Fprintln(c.rl.Stdout(), "Not enabled; run 'enable' first")
		return
	}
	if err := c.stim.CreateScheduler(c.fc.Sync, c.fc.FrequencyHz); err != nil {
		c.report(err)
		return
	}
	if err := c.stim.AddEvents(); err != nil {
		c.report(err)
		return
	}
	if err := c.stim.Begin(); err != nil {
		c.report(err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Stimulation running")
}

func (c *Console) cmdWrite(args []string, amp bool) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: amp|pw <channel> <value>")
		return
	}
	value, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bad value %q\n", args[1])
		return
	}
	if amp {
		c.report(c.stim.WriteAmp(args[0], uint(value)))
	} else {
		c.report(c.stim.WritePW(args[0], uint(value)))
	}
}

func (c *Console) cmdMax(args []string, amp bool) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: max-amp|max-pw <channel> <value>")
		return
	}
	value, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bad value %q\n", args[1])
		return
	}
	if amp {
		c.report(c.stim.UpdateMaxAmp(args[0], uint(value)))
	} else {
		c.report(c.stim.UpdateMaxPW(args[0], uint(value)))
	}
}

// cmdTick starts or stops a background update loop at the configured
// frequency.
func (c *Console) cmdTick(args []string) {
	if len(args) == 1 && args[0] == "stop" {
		c.stopTicking()
		fmt.Fprintln(c.rl.Stdout(), "Update loop stopped")
		return
	}
	if c.ticker != nil {
		fmt.Fprintln(c.rl.Stdout(), "Update loop already running; 'tick stop' to stop")
		return
	}
	hz := c.fc.FrequencyHz
	if hz <= 0 {
		hz = 20
	}
	c.ticker = time.NewTicker(time.Duration(float64(time.Second) / hz))
	c.tickStop = make(chan struct{})
	go func(t *time.Ticker, stop <-chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := c.stim.Update(); err != nil {
					fmt.Fprintf(c.rl.Stdout(), "Update failed: %v\n", err)
					return
				}
			}
		}
	}(c.ticker, c.tickStop)
	fmt.Fprintf(c.rl.Stdout(), "Update loop running at %.1f Hz\n", hz)
}

func (c *Console) stopTicking() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickStop)
	c.ticker = nil
	c.tickStop = nil
}

func (c *Console) cmdStatus() {
	out := c.rl.Stdout()
	fmt.Fprintf(out, "Stimulator: %s\n", c.stim.Name())
	fmt.Fprintf(out, "Enabled:    %v\n", c.stim.Enabled())
	for _, sch := range c.stim.Schedulers() {
		if sch == nil {
			continue
		}
		fmt.Fprintf(out, "Schedule %d: %v, %d events\n", sch.ScheduleID(), sch.State(), len(sch.Events()))
	}

	amps := c.stim.Amplitudes()
	pws := c.stim.PulseWidths()
	maxAmps := c.stim.MaxAmplitudes()
	maxPWs := c.stim.MaxPulseWidths()
	names := make([]string, 0, len(maxAmps))
	for name := range maxAmps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-16s amp %3d/%3d  pw %3d/%3d\n",
			name, amps[name], maxAmps[name], pws[name], maxPWs[name])
	}
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
FES Console Commands:
  Bring-up:
    enable                  - Open links and set up channels
    start                   - Create scheduler, add events, begin

  Control:
    amp <channel> <value>   - Set channel amplitude (mA)
    pw <channel> <value>    - Set channel pulse width (us)
    max-amp <channel> <v>   - Change amplitude ceiling
    max-pw <channel> <v>    - Change pulse-width ceiling
    update                  - Flush pending changes once
    tick [stop]             - Run/stop the periodic update loop

  General:
    status                  - Show stimulator state
    disable                 - Halt and close everything
    help                    - Show this help
    quit                    - Exit`)
}
