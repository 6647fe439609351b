// Package main boots the fuel station simulator and its console menu.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/fuel-station-simulator/internal/config"
	"github.com/fairyhunter13/fuel-station-simulator/internal/dispatch"
	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
	"github.com/fairyhunter13/fuel-station-simulator/internal/pricing"
	"github.com/fairyhunter13/fuel-station-simulator/internal/queue"
	"github.com/fairyhunter13/fuel-station-simulator/internal/random"
	"github.com/fairyhunter13/fuel-station-simulator/internal/report"
	"github.com/fairyhunter13/fuel-station-simulator/internal/station"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_error", "error", err)
		os.Exit(1)
	}
	obs.Configure(os.Stderr, obs.ParseLevel(cfg.LogLevel))
	obs.Logger.Info("service_starting")

	st, err := setupStation(cfg)
	if err != nil {
		obs.Logger.Error("station_setup_error", "error", err)
		os.Exit(1)
	}
	console := report.NewConsole(os.Stdout)
	console.Do(func(w io.Writer) { welcome(w, cfg, st) })

	mgr := queue.NewManager(cfg, queue.New(128), st, console)
	d := dispatch.New(cfg, st, mgr, random.NewTimeSeeded())
	d.OnPrices = func([]model.PriceUpdate) {
		console.Do(func(w io.Writer) {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "The fuel prices have new values:")
			report.WritePriceList(w, st.Prices())
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &menu{ctx: ctx, svc: d, st: st, console: console}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	lines := readLines(os.Stdin)

	console.Printf("\nMENU:\n")
	for !d.Ended() {
		m.prompt()
		select {
		case s := <-sigc:
			obs.Logger.Info("shutdown_signal", "signal", s.String())
			d.End()
		case line, ok := <-lines:
			if !ok {
				obs.Logger.Info("operator_input_closed")
				d.End()
				continue
			}
			m.handle(line)
		}
	}

	if d.Started() {
		ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelDrain()
		if err := d.Wait(ctxDrain); err != nil {
			obs.Logger.Warn("shutdown_incomplete", "error", err)
		}
	}
	console.Do(func(w io.Writer) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "End of services.")
		report.WriteOperationsStatus(w, st.Ledger().Snapshot())
		fmt.Fprintln(w)
		fmt.Fprintln(w, "End of simulation.")
	})
	obs.Logger.Info("service_stopped")
}

// setupStation installs one pump per grade at its configured stock and
// average price.
func setupStation(cfg config.Config) (*station.Station, error) {
	st := station.New(pricing.New())
	for _, g := range model.Grades() {
		if err := st.AddPump(g, cfg.Station.Stock(g)); err != nil {
			return nil, err
		}
		if err := st.SetPrice(g, cfg.Station.AveragePrice(g)); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func welcome(w io.Writer, cfg config.Config, st *station.Station) {
	s := cfg.Station
	grades := model.Grades()
	fmt.Fprintln(w, "Welcome to the fuel station simulator.")
	fmt.Fprintf(w, "The station has %d pumps: %s, %s and %s.\n", len(grades), grades[0], grades[1], grades[2])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fuel tanks are filled with:")
	report.WriteTankStatus(w, tanks(st.Pumps()))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The prices list is set with average values:")
	report.WritePriceList(w, st.Prices())
	fmt.Fprintf(w, "Prices are updated every %v to %v, within +/- %.2f EUR of the average.\n",
		s.PriceUpdateMin, s.PriceUpdateMax, s.PriceDeviation)
	fmt.Fprintf(w, "Each pump has its own customer stream, arriving every %v to %v.\n", s.ArrivalMin, s.ArrivalMax)
}

// readLines forwards operator input line by line until EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}
