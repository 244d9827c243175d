package main

import (
	cmd "github.com/studyloop/recall/cmd/recall"
	"github.com/studyloop/recall/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting recall")
	cmd.Execute()
}
