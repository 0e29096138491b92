package main

import (
	"context"
	"fmt"
)

// fixStates re-resolves every stored registration against the current
// policy, sessions and permits, and reports how many records changed.
func (cli *commandLine) fixStates() error {
	fixed, err := cli.attendanceSvc.FixStates(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d registration(s) updated\n", fixed)
	return nil
}
