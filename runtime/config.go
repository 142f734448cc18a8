package runtime

import (
	"os"

	"github.com/naoina/toml"
)

// Config holds the tunables the original hardcodes as C constants:
// gc_collect_at (program.c), HOT_LOOP_THRESHOLD/MAX_FUNC_REGS (vm.h).
// Loadable from a TOML file in the style ProbeChain-go-probe uses for
// its own node config (naoina/toml). The VM reads only GCCollectAt and
// InitialStackSize; HotLoopThreshold, StackGrowthChunk and MaxFuncRegs
// are loaded but not consulted (the hot-loop tracker uses the
// HotLoopThreshold constant and the stack grows in fixed 1024-value
// chunks).
type Config struct {
	GCCollectAt       int `toml:"gc_collect_at"`
	HotLoopThreshold  int `toml:"hot_loop_threshold"`
	InitialStackSize  int `toml:"initial_stack_size"`
	StackGrowthChunk  int `toml:"stack_growth_chunk"`
	MaxFuncRegs       int `toml:"max_func_regs"`
}

// DefaultConfig reproduces the original's literal constants: gc_collect_at
// defaults to 1,000,000 bytes of allocation pressure (program.c),
// HOT_LOOP_THRESHOLD=100 and MAX_HOT_LOOPS=32 (vm.h), MAX_FUNC_REGS=256
// (bytecode.h).
func DefaultConfig() *Config {
	return &Config{
		GCCollectAt:      1_000_000,
		HotLoopThreshold: HotLoopThreshold,
		InitialStackSize: 1024,
		StackGrowthChunk: 1024,
		MaxFuncRegs:      256,
	}
}

// LoadConfig reads a TOML config file, starting from DefaultConfig and
// overriding whichever fields the file sets.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
