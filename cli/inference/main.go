package main

import (
	"os"

	inferencecmder "github.com/fuhaigao/inference-server/cmd/inference"
)

func main() {
	cmd := inferencecmder.NewInferenceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
