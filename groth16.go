package main

import (
	"context"
	"encoding/json"
	"os"

	"CircomGnarkBridge/modules/circuit"
	"CircomGnarkBridge/modules/ethereum"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/spf13/cobra"
)

var (
	groth16CRSFile string
	groth16VKFile  string
	groth16Mode    string

	proofFilePath    string
	ethereumProofOut string
	ethereumVKOut    string
)

var groth16Cmd = &cobra.Command{
	Use:   "groth16",
	Short: "Prove or verify the circuit with the Groth16 backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		Groth16BridgeImpl()
	},
}

func init() {
	bridgeCmd.AddCommand(groth16Cmd)
	groth16Cmd.PersistentFlags().StringVar(&groth16CRSFile, "groth16-crs", "", "The Groth16 proving key file.")
	groth16Cmd.PersistentFlags().StringVar(&groth16VKFile, "groth16-vk", "", "The Groth16 verifying key file.")
	groth16Cmd.PersistentFlags().StringVar(&groth16Mode, "groth16-mode", "", "The Groth16 work mode - one of prove/verify/setup.")
	groth16Cmd.PersistentFlags().StringVar(&proofFilePath, "proof", "", "The Groth16 proof file.")
	groth16Cmd.PersistentFlags().StringVar(&ethereumProofOut, "ethereum-proof", "", "Optional JSON output of the proof and public inputs in the Solidity verifier encoding.")
	groth16Cmd.PersistentFlags().StringVar(&ethereumVKOut, "ethereum-vk", "", "Optional JSON output of the zkey's verifying key in the Solidity verifier encoding.")
}

func Groth16BridgeImpl() {
	ctx := context.Background()

	cfg := loadConfig(ctx)
	defer cfg.Close(ctx)

	if pk := loadZKey(cfg); pk != nil && ethereumVKOut != "" {
		writeJSON(ethereumVKOut, ethereum.FromZKey(&pk.VK))
	}

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.Placeholder(cfg.CS))
	if err != nil {
		panic(err.Error())
	}

	println("Nb Constraints: ", ccs.GetNbConstraints())
	println("Nb Internal Witness: ", ccs.GetNbInternalVariables())
	println("Nb Private Witness: ", ccs.GetNbSecretVariables())
	println("Nb Public Witness:", ccs.GetNbPublicVariables())

	builder := circuit.NewBuilder(cfg).WithLogger(logger)
	builder.PushInputs(loadInputs())

	println("Solving witness...")
	assembled, err := builder.Build(ctx)
	if err != nil {
		panic(err.Error())
	}
	witness, err := frontend.NewWitness(assembled, ecc.BN254.ScalarField())
	if err != nil {
		panic(err.Error())
	}

	println("Checking satisfiability...")
	if err = ccs.IsSolved(witness); err != nil {
		panic("R1CS not satisfied.")
	}
	println("R1CS satisfied.")

	pk := groth16.NewProvingKey(ecc.BN254)
	vk := groth16.NewVerifyingKey(ecc.BN254)
	groth16Proof := groth16.NewProof(ecc.BN254)

	var pkFile *os.File = nil
	var vkFile *os.File = nil
	var proofFile *os.File = nil

	switch groth16Mode {
	case "setup":
		println("Groth16 generating setup from scratch...")
		if pk, vk, err = groth16.Setup(ccs); err != nil {
			panic(err.Error())
		}

		if pkFile, err = os.OpenFile(groth16CRSFile,
			os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			panic(err.Error())
		}
		pk.WriteTo(pkFile)

		if vkFile, err = os.OpenFile(groth16VKFile,
			os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			panic(err.Error())
		}
		vk.WriteTo(vkFile)
	case "prove":
		println("Groth16 reading CRS from file...")
		if pkFile, err = os.OpenFile(groth16CRSFile, os.O_RDONLY, 0444); err != nil {
			panic(err.Error())
		}
		pk.ReadFrom(pkFile)

		groth16Proof, err = groth16.Prove(ccs, pk, witness)
		if err != nil {
			panic("Groth16 fails")
		}

		if proofFile, err = os.OpenFile(proofFilePath,
			os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644); err != nil {
			panic(err.Error())
		}
		groth16Proof.WriteTo(proofFile)

		if ethereumProofOut != "" {
			writeEthereumProof(groth16Proof, assembled)
		}
	case "verify":
		println("Groth16 reading vk from file...")
		if vkFile, err = os.OpenFile(groth16VKFile, os.O_RDONLY, 0444); err != nil {
			panic(err.Error())
		}
		vk.ReadFrom(vkFile)

		if proofFile, err = os.OpenFile(proofFilePath, os.O_RDONLY, 0444); err != nil {
			panic(err.Error())
		}
		groth16Proof.ReadFrom(proofFile)

		publicWitness, err := witness.Public()
		if err != nil {
			panic(err.Error())
		}

		if err = groth16.Verify(groth16Proof, vk, publicWitness); err != nil {
			panic(err.Error())
		}
	}

	println("Done.")
}

// writeEthereumProof re-encodes the proof and the circuit's public inputs
// for the Solidity verifier.
func writeEthereumProof(proof groth16.Proof, assembled *circuit.Circuit) {
	bn254Proof, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		panic("unexpected proof backend")
	}
	inputs, err := ethereum.InputsFromBig(assembled.PublicInputs())
	if err != nil {
		panic(err.Error())
	}

	writeJSON(ethereumProofOut, struct {
		Proof  ethereum.Proof  `json:"proof"`
		Inputs ethereum.Inputs `json:"inputs"`
	}{
		Proof:  ethereum.FromProof(bn254Proof),
		Inputs: inputs,
	})
}

func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err.Error())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		panic(err.Error())
	}
}
