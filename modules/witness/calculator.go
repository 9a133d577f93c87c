// Package witness computes circuit assignments by driving a sandboxed
// circuit module through its fixed export table.
//
// The module owns its linear memory (imported from the host as env.memory)
// and an allocation cursor at word 0. A computation initializes the module,
// places each named input at its hash-addressed signal offset, and reads the
// full assignment vector back wire by wire. The cursor is restored
// afterwards so one sandbox can serve many computations, though never
// concurrently.
package witness

import (
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"CircomGnarkBridge/modules/fieldcodec"
)

// UnknownSignalError reports an input name the circuit module does not
// declare.
type UnknownSignalError struct {
	Name string
	Err  error
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("witness: unknown signal %q", e.Name)
}

func (e *UnknownSignalError) Unwrap() error { return e.Err }

// ComputationError reports a trapped export call, carrying the module's last
// error-callback report when one was made.
type ComputationError struct {
	Export   string
	Code     uint32
	Operands [5]uint32
	Err      error
}

func (e *ComputationError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("witness: %s failed with code %d %v: %v", e.Export, e.Code, e.Operands, e.Err)
	}
	return fmt.Sprintf("witness: %s failed: %v", e.Export, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// Input is one named circuit input with its flattened values.
type Input struct {
	Name   string
	Values []*big.Int
}

type options struct {
	logger zerolog.Logger
	hooks  Hooks
	pages  uint32
}

// Option configures a Calculator.
type Option func(*options)

// WithLogger sets the calculator's logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHooks installs diagnostic callbacks for the module's log imports.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithMemoryPages overrides the size of the host-provided linear memory.
func WithMemoryPages(pages uint32) Option {
	return func(o *options) { o.pages = pages }
}

// Calculator drives one sandbox instance. It owns the sandbox's memory and
// must not be shared across concurrent computations.
type Calculator struct {
	sandbox Sandbox
	mem     *SafeMemory
	codec   *fieldcodec.Codec
	prime   *big.Int
	n32     int
	n64     int
	nVars   uint32
	logger  zerolog.Logger
}

// NewCalculator instantiates the circuit module in a wazero sandbox and
// reads its field parameters.
func NewCalculator(ctx context.Context, wasmBytes []byte, opts ...Option) (*Calculator, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	sb, err := newWazeroSandbox(ctx, wasmBytes, o.pages, o.hooks)
	if err != nil {
		return nil, err
	}
	c, err := NewFromSandbox(ctx, sb, WithLogger(o.logger))
	if err != nil {
		sb.Close(ctx)
		return nil, err
	}
	return c, nil
}

// NewFromSandbox builds a calculator over an existing sandbox. The sandbox's
// field parameters are interrogated here; the prime is read from the
// module's own memory.
func NewFromSandbox(ctx context.Context, sb Sandbox, opts ...Option) (*Calculator, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	frLen, err := sb.FrLen(ctx)
	if err != nil {
		return nil, err
	}
	n32 := int(frLen>>2) - 2
	if n32 <= 0 {
		return nil, fmt.Errorf("%w: element length %d", ErrSandbox, frLen)
	}

	primePtr, err := sb.RawPrimePtr(ctx)
	if err != nil {
		return nil, err
	}
	prime, err := ReadRawBig(sb.Memory(), primePtr, n32)
	if err != nil {
		return nil, err
	}

	codec, err := fieldcodec.New(prime)
	if err != nil {
		return nil, fmt.Errorf("%w: module prime: %v", ErrSandbox, err)
	}

	nVars, err := sb.NVars(ctx)
	if err != nil {
		return nil, err
	}

	c := &Calculator{
		sandbox: sb,
		mem:     NewSafeMemory(sb.Memory(), codec),
		codec:   codec,
		prime:   prime,
		n32:     n32,
		n64:     (prime.BitLen()-1)/64 + 1,
		nVars:   nVars,
		logger:  o.logger,
	}
	c.logger.Debug().
		Str("prime", prime.Text(10)).
		Int("n32", n32).
		Uint32("nVars", nVars).
		Msg("circuit module instantiated")
	return c, nil
}

// ReadRawBig reads n32 little-endian limbs from mem. Exposed for sandbox
// implementations that stage the prime themselves.
func ReadRawBig(mem LinearMemory, ptr uint32, n32 int) (*big.Int, error) {
	buf, ok := mem.Read(ptr, uint32(n32)*4)
	if !ok {
		return nil, fmt.Errorf("%w: %d limbs at %#x", ErrMemoryAccess, n32, ptr)
	}
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	return new(big.Int).SetBytes(be), nil
}

// Prime returns the module's field modulus.
func (c *Calculator) Prime() *big.Int { return new(big.Int).Set(c.prime) }

// NVars returns the number of wires the module computes.
func (c *Calculator) NVars() uint32 { return c.nVars }

// Close releases the sandbox.
func (c *Calculator) Close(ctx context.Context) error {
	return c.sandbox.Close(ctx)
}

// CalculateWitness runs one full computation and returns the assignment
// vector, wire 0 first. The result is deterministic for a given module and
// input set. Values outside [0, prime) are reduced before placement.
func (c *Calculator) CalculateWitness(ctx context.Context, inputs []Input, sanityCheck bool) (w []*big.Int, err error) {
	oldFreePos, err := c.mem.FreePos()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.mem.SetFreePos(oldFreePos); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err = c.sandbox.Init(ctx, sanityCheck); err != nil {
		return nil, err
	}

	pSigOffset, err := c.mem.AllocU32()
	if err != nil {
		return nil, err
	}
	pFr, err := c.mem.AllocFr()
	if err != nil {
		return nil, err
	}

	for _, input := range inputs {
		msb, lsb := signalHash(input.Name)
		if err = c.sandbox.SignalOffset32(ctx, pSigOffset, 0, msb, lsb); err != nil {
			return nil, &UnknownSignalError{Name: input.Name, Err: err}
		}
		sigOffset, rerr := c.mem.ReadUint32(pSigOffset)
		if rerr != nil {
			return nil, rerr
		}

		for i, value := range input.Values {
			if err = c.mem.WriteFr(pFr, c.codec.Reduce(value)); err != nil {
				return nil, err
			}
			if err = c.sandbox.SetSignal(ctx, 0, 0, sigOffset+uint32(i), pFr); err != nil {
				return nil, err
			}
		}
		c.logger.Trace().Str("signal", input.Name).Int("values", len(input.Values)).Msg("input placed")
	}

	w = make([]*big.Int, c.nVars)
	for i := uint32(0); i < c.nVars; i++ {
		ptr, perr := c.sandbox.WitnessPtr(ctx, i)
		if perr != nil {
			return nil, perr
		}
		if w[i], err = c.mem.ReadFr(ptr); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// CalculateWitnessFr runs one computation and returns the assignment as
// field elements.
func (c *Calculator) CalculateWitnessFr(ctx context.Context, inputs []Input, sanityCheck bool) ([]fr.Element, error) {
	w, err := c.CalculateWitness(ctx, inputs, sanityCheck)
	if err != nil {
		return nil, err
	}
	out := make([]fr.Element, len(w))
	for i, v := range w {
		out[i].SetBigInt(v)
	}
	return out, nil
}

// WitnessBuffer dumps the module's packed witness area: nVars elements of
// n64 64-bit limbs each.
func (c *Calculator) WitnessBuffer(ctx context.Context) ([]byte, error) {
	ptr, err := c.sandbox.WitnessBufferPtr(ctx)
	if err != nil {
		return nil, err
	}
	return c.mem.ReadBytes(ptr, c.nVars*uint32(c.n64)*8)
}
