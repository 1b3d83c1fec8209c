package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/me/coresim/internal/cli"
	"github.com/me/coresim/pkg/model"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, model.ErrLivelock) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
