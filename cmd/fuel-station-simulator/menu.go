package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
	"github.com/fairyhunter13/fuel-station-simulator/internal/report"
	"github.com/fairyhunter13/fuel-station-simulator/internal/station"
)

// service is the lifecycle the operator controls from the menu.
type service interface {
	Start(ctx context.Context) error
	End()
	Started() bool
	Ended() bool
}

// status is what the menu can print about the station.
type status interface {
	Pumps() []*station.Pump
	Prices() map[model.FuelGrade]float64
	Ledger() *station.Ledger
}

const (
	optStart      = 1
	optEnd        = 2
	optOperations = 3
	optTanks      = 4
	optPrices     = 5
)

type menu struct {
	ctx     context.Context
	svc     service
	st      status
	console *report.Console
}

// prompt prints the options valid in the current state.
func (m *menu) prompt() {
	first := "1 Start station service"
	if m.svc.Started() {
		first = "2 End station service"
	}
	m.console.Printf("[Options: %s | 3 Operations status | 4 Tanks status | 5 Prices list]: ", first)
}

// handle executes one line of operator input.
func (m *menu) handle(line string) {
	opt, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		m.wrong()
		return
	}
	switch opt {
	case optStart:
		if m.svc.Started() {
			m.wrong()
			return
		}
		m.console.Printf("\nStarting service...\n")
		if err := m.svc.Start(m.ctx); err != nil {
			obs.Logger.Error("service_start_error", "error", err)
		}
	case optEnd:
		if !m.svc.Started() {
			m.wrong()
			return
		}
		m.console.Printf("\nEnding service, waiting for customers in progress...\n")
		m.svc.End()
	case optOperations:
		m.console.Do(func(w io.Writer) { report.WriteOperationsStatus(w, m.st.Ledger().Snapshot()) })
	case optTanks:
		m.console.Do(func(w io.Writer) {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Remaining fuel amounts:")
			report.WriteTankStatus(w, tanks(m.st.Pumps()))
		})
	case optPrices:
		m.console.Do(func(w io.Writer) {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Current fuel prices list:")
			report.WritePriceList(w, m.st.Prices())
		})
	default:
		m.wrong()
	}
}

func (m *menu) wrong() { m.console.Printf("\nWrong value!\n") }

func tanks(pumps []*station.Pump) []report.Tank {
	out := make([]report.Tank, len(pumps))
	for i, p := range pumps {
		out[i] = p
	}
	return out
}
