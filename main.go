package main

import (
	"context"
	"fmt"
	"os"

	"CircomGnarkBridge/modules/circuit"
	"CircomGnarkBridge/modules/witness"
	"CircomGnarkBridge/modules/zkey"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	r1csFile   string
	wasmFile   string
	zkeyFile   string
	inputsFile string

	sanityCheck bool

	logger zerolog.Logger
)

func init() {
	bridgeCmd.PersistentFlags().StringVar(&r1csFile, "r1cs", "", "The .r1cs constraint-system file produced by the circuit compiler.")
	bridgeCmd.PersistentFlags().StringVar(&wasmFile, "wasm", "", "The witness-generator WASM module produced by the circuit compiler.")
	bridgeCmd.PersistentFlags().StringVar(&zkeyFile, "zkey", "", "Optional snarkjs .zkey proving-key container, cross-checked against the constraint system.")
	bridgeCmd.PersistentFlags().StringVar(&inputsFile, "inputs", "", "The JSON document of named circuit inputs.")
	bridgeCmd.PersistentFlags().BoolVar(&sanityCheck, "sanity-check", false, "Enable the witness module's own constraint checking.")

	bridgeCmd.MarkFlagRequired("r1cs")
	bridgeCmd.MarkFlagRequired("wasm")
	bridgeCmd.MarkFlagRequired("inputs")
}

var bridgeCmd = &cobra.Command{
	Use:   "circom-bridge",
	Short: "Prove circom circuits with the gnark Groth16 backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

// loadConfig reads the two compiler artifacts named on the command line and
// instantiates the witness module.
func loadConfig(ctx context.Context) *circuit.Config {
	wasmBytes, err := os.ReadFile(wasmFile)
	if err != nil {
		panic(err.Error())
	}
	r1csBytes, err := os.ReadFile(r1csFile)
	if err != nil {
		panic(err.Error())
	}

	cfg, err := circuit.NewConfig(ctx, wasmBytes, r1csBytes, witness.WithLogger(logger))
	if err != nil {
		panic(err.Error())
	}
	cfg.SanityCheck = sanityCheck
	return cfg
}

// loadInputs parses the named-input document in declaration order.
func loadInputs() []witness.Input {
	f, err := os.Open(inputsFile)
	if err != nil {
		panic(err.Error())
	}
	defer f.Close()

	inputs, err := witness.ParseInputs(f)
	if err != nil {
		panic(err.Error())
	}
	return inputs
}

// loadZKey parses the optional proving-key container and cross-checks it
// against the constraint system. Returns nil when no zkey was named.
func loadZKey(cfg *circuit.Config) *zkey.ProvingKey {
	if zkeyFile == "" {
		return nil
	}
	data, err := os.ReadFile(zkeyFile)
	if err != nil {
		panic(err.Error())
	}
	pk, err := zkey.Parse(data)
	if err != nil {
		panic(err.Error())
	}
	if err := pk.Consistent(cfg.CS); err != nil {
		panic(err.Error())
	}
	logger.Info().
		Int("nVars", pk.NVars).
		Int("nPublic", pk.NPublic).
		Uint32("domainSize", pk.DomainSize).
		Msg("zkey consistent with constraint system")
	return pk
}

func main() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := bridgeCmd.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
