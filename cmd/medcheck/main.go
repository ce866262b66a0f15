// medcheck resolves a single medication name against the openFDA label API
// and prints the mapped record plus the call trace. Handy for checking what
// the resolver will feed the assistant without running the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/pharmassist/pharmassist/internal/models"
	"github.com/pharmassist/pharmassist/internal/openfda"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: medcheck <medication name>")
		os.Exit(2)
	}
	name := strings.Join(os.Args[1:], " ")

	client := openfda.New(openfda.DefaultBaseURL, logger)
	record, call := client.Resolve(context.Background(), name)
	if record.IsError() {
		if fb, ok := openfda.Fallback(name); ok {
			logger.Info("live lookup failed, using fallback table", zap.String("name", name))
			record = fb
		}
	}

	out, err := json.MarshalIndent(struct {
		Medication models.MedicationRecord `json:"medication"`
		APICall    models.APICall          `json:"api_call"`
	}{record, call}, "", "  ")
	if err != nil {
		logger.Fatal("failed to encode result", zap.Error(err))
	}
	fmt.Println(string(out))

	if record.IsError() {
		os.Exit(1)
	}
}
