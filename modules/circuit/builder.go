package circuit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"CircomGnarkBridge/modules/r1cs"
	"CircomGnarkBridge/modules/witness"
)

// Config loads the two compiler artifacts of one circuit: the constraint
// system and the witness-generator module. One Config can back many
// builders, but its calculator must not run concurrent computations.
type Config struct {
	CS         *r1cs.ConstraintSystem
	Calculator *witness.Calculator

	// SanityCheck forwards the module's own constraint checking during
	// witness computation.
	SanityCheck bool
}

// NewConfig parses the constraint system and instantiates the witness
// module.
func NewConfig(ctx context.Context, wasmBytes, r1csBytes []byte, opts ...witness.Option) (*Config, error) {
	cs, err := r1cs.Parse(r1csBytes)
	if err != nil {
		return nil, err
	}
	calc, err := witness.NewCalculator(ctx, wasmBytes, opts...)
	if err != nil {
		return nil, err
	}
	if calc.Prime().Cmp(cs.Prime) != 0 {
		calc.Close(ctx)
		return nil, fmt.Errorf("%w: witness module and constraint system disagree on the field",
			r1cs.ErrCurveMismatch)
	}
	return &Config{CS: cs, Calculator: calc}, nil
}

// Close releases the witness module.
func (cfg *Config) Close(ctx context.Context) error {
	return cfg.Calculator.Close(ctx)
}

// Builder accumulates named inputs and produces assembled circuits.
type Builder struct {
	cfg    *Config
	inputs []witness.Input
	logger zerolog.Logger
}

// NewBuilder starts an input set over the given config.
func NewBuilder(cfg *Config) *Builder {
	return &Builder{cfg: cfg, logger: zerolog.Nop()}
}

// WithLogger sets the builder's logger and returns the builder.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// PushInput appends values to the named input, creating it on first use.
func (b *Builder) PushInput(name string, values ...*big.Int) {
	for i := range b.inputs {
		if b.inputs[i].Name == name {
			b.inputs[i].Values = append(b.inputs[i].Values, values...)
			return
		}
	}
	b.inputs = append(b.inputs, witness.Input{Name: name, Values: values})
}

// PushInputs appends a parsed input document.
func (b *Builder) PushInputs(inputs []witness.Input) {
	for _, in := range inputs {
		b.PushInput(in.Name, in.Values...)
	}
}

// Setup returns the compile-time circuit shape, for frontend.Compile and
// key generation.
func (b *Builder) Setup() *Circuit {
	return Placeholder(b.cfg.CS)
}

// Build computes the witness for the accumulated inputs and assembles the
// provable circuit.
func (b *Builder) Build(ctx context.Context) (*Circuit, error) {
	w, err := b.cfg.Calculator.CalculateWitness(ctx, b.inputs, b.cfg.SanityCheck)
	if err != nil {
		return nil, err
	}
	b.logger.Debug().Int("wires", len(w)).Msg("witness computed")
	return Assemble(b.cfg.CS, w)
}
