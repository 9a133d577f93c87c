package witness

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ErrSandbox signals a module that cannot be instantiated or is missing a
// required export.
var ErrSandbox = errors.New("witness: sandbox instantiation failed")

// Sandbox is the execution environment of a compiled circuit module: the
// fixed export table plus access to the module's linear memory. The
// wazero-backed implementation is the production one; tests may substitute
// their own.
type Sandbox interface {
	Memory() LinearMemory

	Init(ctx context.Context, sanityCheck bool) error
	FrLen(ctx context.Context) (uint32, error)
	RawPrimePtr(ctx context.Context) (uint32, error)
	SignalOffset32(ctx context.Context, pOffset, component, hashMSB, hashLSB uint32) error
	SetSignal(ctx context.Context, component, instance, signal, pValue uint32) error
	NVars(ctx context.Context) (uint32, error)
	WitnessPtr(ctx context.Context, index uint32) (uint32, error)
	WitnessBufferPtr(ctx context.Context) (uint32, error)

	Close(ctx context.Context) error
}

// Hooks observe the module's diagnostic callbacks. They must not block and
// cannot influence the computation.
type Hooks struct {
	OnLog             func(code uint32)
	OnSetSignal       func(signal, value uint32)
	OnGetSignal       func(signal, value uint32)
	OnStartComponent  func(component uint32)
	OnFinishComponent func(component uint32)
}

// errorReport is the last invocation of the module's error callback,
// attached to the computation error when an export traps.
type errorReport struct {
	set      bool
	code     uint32
	operands [5]uint32
}

type wazeroSandbox struct {
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	hooks   Hooks
	lastErr errorReport
}

const defaultMemoryPages = 2000

// memoryModule hand-assembles a wasm module whose only content is an
// exported memory named "memory", sized to the given page count. Circuit
// modules import their memory from env.memory instead of defining one.
func memoryModule(pages uint32) []byte {
	min := appendLEB128(nil, pages)

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// memory section: one memory, no maximum
	body := append([]byte{0x01, 0x00}, min...)
	mod = append(mod, 0x05)
	mod = appendLEB128(mod, uint32(len(body)))
	mod = append(mod, body...)

	// export section: "memory" -> memory 0
	body = append([]byte{0x01, 0x06}, []byte("memory")...)
	body = append(body, 0x02, 0x00)
	mod = append(mod, 0x07)
	mod = appendLEB128(mod, uint32(len(body)))
	mod = append(mod, body...)

	return mod
}

func appendLEB128(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// newWazeroSandbox compiles and instantiates the circuit module with its
// host imports: the runtime callback table and the env.memory allocation.
func newWazeroSandbox(ctx context.Context, wasmBytes []byte, pages uint32, hooks Hooks) (*wazeroSandbox, error) {
	if pages == 0 {
		pages = defaultMemoryPages
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	sb := &wazeroSandbox{runtime: r, hooks: hooks}

	_, err := r.NewHostModuleBuilder("runtime").
		NewFunctionBuilder().WithFunc(sb.onError).Export("error").
		NewFunctionBuilder().WithFunc(sb.onLog).Export("log").
		NewFunctionBuilder().WithFunc(sb.onSetSignal).Export("logSetSignal").
		NewFunctionBuilder().WithFunc(sb.onGetSignal).Export("logGetSignal").
		NewFunctionBuilder().WithFunc(sb.onStartComponent).Export("logStartComponent").
		NewFunctionBuilder().WithFunc(sb.onFinishComponent).Export("logFinishComponent").
		Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: runtime imports: %v", ErrSandbox, err)
	}

	env, err := r.InstantiateWithConfig(ctx, memoryModule(pages),
		wazero.NewModuleConfig().WithName("env"))
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: env.memory: %v", ErrSandbox, err)
	}
	sb.memory = env.ExportedMemory("memory")

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: compile: %v", ErrSandbox, err)
	}
	sb.module, err = r.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("circuit").WithStartFunctions())
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: instantiate: %v", ErrSandbox, err)
	}

	for _, name := range []string{
		"init", "getFrLen", "getPRawPrime", "getSignalOffset32",
		"setSignal", "getNVars", "getPWitness", "getWitnessBuffer",
	} {
		if sb.module.ExportedFunction(name) == nil {
			r.Close(ctx)
			return nil, fmt.Errorf("%w: missing export %q", ErrSandbox, name)
		}
	}

	return sb, nil
}

func (sb *wazeroSandbox) Memory() LinearMemory { return sb.memory }

func (sb *wazeroSandbox) Close(ctx context.Context) error {
	return sb.runtime.Close(ctx)
}

func (sb *wazeroSandbox) call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	res, err := sb.module.ExportedFunction(name).Call(ctx, args...)
	if err != nil {
		return nil, sb.wrapTrap(name, err)
	}
	return res, nil
}

// wrapTrap attaches the module's last error-callback report to a trapped
// export call.
func (sb *wazeroSandbox) wrapTrap(name string, err error) error {
	ce := &ComputationError{Export: name, Err: err}
	if sb.lastErr.set {
		ce.Code = sb.lastErr.code
		ce.Operands = sb.lastErr.operands
		sb.lastErr.set = false
	}
	return ce
}

func (sb *wazeroSandbox) Init(ctx context.Context, sanityCheck bool) error {
	arg := uint64(0)
	if sanityCheck {
		arg = 1
	}
	_, err := sb.call(ctx, "init", arg)
	return err
}

func (sb *wazeroSandbox) FrLen(ctx context.Context) (uint32, error) {
	return sb.callU32(ctx, "getFrLen")
}

func (sb *wazeroSandbox) RawPrimePtr(ctx context.Context) (uint32, error) {
	return sb.callU32(ctx, "getPRawPrime")
}

func (sb *wazeroSandbox) SignalOffset32(ctx context.Context, pOffset, component, hashMSB, hashLSB uint32) error {
	_, err := sb.call(ctx, "getSignalOffset32",
		uint64(pOffset), uint64(component), uint64(hashMSB), uint64(hashLSB))
	return err
}

func (sb *wazeroSandbox) SetSignal(ctx context.Context, component, instance, signal, pValue uint32) error {
	_, err := sb.call(ctx, "setSignal",
		uint64(component), uint64(instance), uint64(signal), uint64(pValue))
	return err
}

func (sb *wazeroSandbox) NVars(ctx context.Context) (uint32, error) {
	return sb.callU32(ctx, "getNVars")
}

func (sb *wazeroSandbox) WitnessPtr(ctx context.Context, index uint32) (uint32, error) {
	return sb.callU32(ctx, "getPWitness", uint64(index))
}

func (sb *wazeroSandbox) WitnessBufferPtr(ctx context.Context) (uint32, error) {
	return sb.callU32(ctx, "getWitnessBuffer")
}

func (sb *wazeroSandbox) callU32(ctx context.Context, name string, args ...uint64) (uint32, error) {
	res, err := sb.call(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("%w: export %q returned %d values", ErrSandbox, name, len(res))
	}
	return uint32(res[0]), nil
}

func (sb *wazeroSandbox) onError(a, b, c, d, e, f int32) {
	sb.lastErr = errorReport{
		set:      true,
		code:     uint32(a),
		operands: [5]uint32{uint32(b), uint32(c), uint32(d), uint32(e), uint32(f)},
	}
}

func (sb *wazeroSandbox) onLog(a int32) {
	if sb.hooks.OnLog != nil {
		sb.hooks.OnLog(uint32(a))
	}
}

func (sb *wazeroSandbox) onSetSignal(a, b int32) {
	if sb.hooks.OnSetSignal != nil {
		sb.hooks.OnSetSignal(uint32(a), uint32(b))
	}
}

func (sb *wazeroSandbox) onGetSignal(a, b int32) {
	if sb.hooks.OnGetSignal != nil {
		sb.hooks.OnGetSignal(uint32(a), uint32(b))
	}
}

func (sb *wazeroSandbox) onStartComponent(a int32) {
	if sb.hooks.OnStartComponent != nil {
		sb.hooks.OnStartComponent(uint32(a))
	}
}

func (sb *wazeroSandbox) onFinishComponent(a int32) {
	if sb.hooks.OnFinishComponent != nil {
		sb.hooks.OnFinishComponent(uint32(a))
	}
}
