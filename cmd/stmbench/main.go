// Command stmbench runs a handful of concurrency smoke-test scenarios
// against the engine, grounded on talent-plan-tinykv's go-ycsb cobra CLI
// (cmd/go-ycsb/main.go's rootCmd + Flags().*Var idiom).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-stm/stm"
)

var (
	scenario   string
	jsonOutput bool
	goroutines int
	ops        int
)

type result struct {
	Scenario    string `json:"scenario"`
	Goroutines  int    `json:"goroutines"`
	Ops         int    `json:"ops"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	FinalValue  int    `json:"final_value"`
	ExpectValue int    `json:"expect_value"`
	OK          bool   `json:"ok"`
}

func runCounterCommute(goroutines, ops int) result {
	start := time.Now()
	c := stm.NewRef(0)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
					c.Commute(tx, func(n int) int { return n + 1 })
					return nil
				})
			}
		}()
	}
	wg.Wait()
	final := c.AtomicGet()
	want := goroutines * ops
	return result{
		Scenario: "commute", Goroutines: goroutines, Ops: ops,
		ElapsedMS: time.Since(start).Milliseconds(),
		FinalValue: final, ExpectValue: want, OK: final == want,
	}
}

func runCounterReadWrite(goroutines, ops int) result {
	start := time.Now()
	c := stm.NewRef(0)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
					c.Set(tx, c.Get(tx)+1)
					return nil
				})
			}
		}()
	}
	wg.Wait()
	final := c.AtomicGet()
	want := goroutines * ops
	return result{
		Scenario: "readwrite", Goroutines: goroutines, Ops: ops,
		ElapsedMS: time.Since(start).Milliseconds(),
		FinalValue: final, ExpectValue: want, OK: final == want,
	}
}

func runAwait(goroutines, ops int) result {
	start := time.Now()
	c := stm.NewRef(0)
	target := goroutines * ops

	done := make(chan struct{})
	go func() {
		stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
			return c.Await(tx, target)
		})
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
					c.Commute(tx, func(n int) int { return n + 1 })
					return nil
				})
			}
		}()
	}
	wg.Wait()
	<-done

	final := c.AtomicGet()
	return result{
		Scenario: "await", Goroutines: goroutines, Ops: ops,
		ElapsedMS: time.Since(start).Milliseconds(),
		FinalValue: final, ExpectValue: target, OK: final == target,
	}
}

func runScenario(name string, goroutines, ops int) (result, error) {
	switch name {
	case "commute":
		return runCounterCommute(goroutines, ops), nil
	case "readwrite":
		return runCounterReadWrite(goroutines, ops), nil
	case "await":
		return runAwait(goroutines, ops), nil
	default:
		return result{}, fmt.Errorf("unknown scenario %q (want commute, readwrite, or await)", name)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stmbench",
		Short: "Run go-stm's testable-property scenarios as a smoke test",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runScenario(scenario, goroutines, ops)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			fmt.Printf("%s: %d goroutines x %d ops in %dms, final=%d want=%d ok=%v\n",
				r.Scenario, r.Goroutines, r.Ops, r.ElapsedMS, r.FinalValue, r.ExpectValue, r.OK)
			if !r.OK {
				return fmt.Errorf("scenario %s failed invariant check", r.Scenario)
			}
			return nil
		},
	}
	root.Flags().StringVar(&scenario, "scenario", "commute", "scenario to run: commute, readwrite, await")
	root.Flags().BoolVar(&jsonOutput, "json", false, "emit the result as JSON instead of a text summary")
	root.Flags().IntVar(&goroutines, "goroutines", 8, "number of concurrent goroutines")
	root.Flags().IntVar(&ops, "ops", 2000, "operations performed per goroutine")
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
