package main

import (
	"context"
	"os"

	"CircomGnarkBridge/modules/circuit"
	"CircomGnarkBridge/modules/witness"

	"github.com/spf13/cobra"
)

var (
	wtnsOutFile    string
	witnessJSONOut string
)

var witnessCmd = &cobra.Command{
	Use:   "witness",
	Short: "Compute the circuit witness and export it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		WitnessImpl()
	},
}

func init() {
	bridgeCmd.AddCommand(witnessCmd)
	witnessCmd.PersistentFlags().StringVar(&wtnsOutFile, "wtns-out", "", "The snarkjs .wtns output file.")
	witnessCmd.PersistentFlags().StringVar(&witnessJSONOut, "json-out", "", "Optional JSON output of the assignment as decimal strings.")
}

func WitnessImpl() {
	ctx := context.Background()

	cfg := loadConfig(ctx)
	defer cfg.Close(ctx)
	loadZKey(cfg)

	w, err := cfg.Calculator.CalculateWitness(ctx, loadInputs(), sanityCheck)
	if err != nil {
		panic(err.Error())
	}
	logger.Info().Int("wires", len(w)).Msg("witness computed")

	// assembling validates the vector against the constraint system
	assembled, err := circuit.Assemble(cfg.CS, w)
	if err != nil {
		panic(err.Error())
	}
	for i, v := range assembled.PublicInputs() {
		logger.Info().Int("index", i).Str("value", v.Text(10)).Msg("public input")
	}

	if wtnsOutFile != "" {
		data, err := witness.EncodeWTNS(w, cfg.Calculator.Prime())
		if err != nil {
			panic(err.Error())
		}
		if err := os.WriteFile(wtnsOutFile, data, 0644); err != nil {
			panic(err.Error())
		}
	}

	if witnessJSONOut != "" {
		values := make([]string, len(w))
		for i, v := range w {
			values[i] = v.Text(10)
		}
		writeJSON(witnessJSONOut, values)
	}

	println("Done.")
}
