package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for placement logic.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under scriptsDir/spawn.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(filepath.Join(scriptsDir, "spawn")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load spawn scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromSource builds an engine from an in-memory chunk.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasSpawnPosition reports whether a script defined spawn_position.
func (e *Engine) HasSpawnPosition() bool {
	return e.vm.GetGlobal("spawn_position") != lua.LNil
}

// SpawnPosition calls the Lua spawn_position(counter) function, which must
// return two numbers. ok is false when the function is missing, fails or
// returns anything else; the caller then falls back to its own placement.
func (e *Engine) SpawnPosition(counter int) (x, y float64, ok bool) {
	fn := e.vm.GetGlobal("spawn_position")
	if fn == lua.LNil {
		return 0, 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(counter)); err != nil {
		e.log.Error("lua spawn_position error", zap.Int("counter", counter), zap.Error(err))
		return 0, 0, false
	}

	ly := e.vm.Get(-1)
	lx := e.vm.Get(-2)
	e.vm.Pop(2)

	if lx == lua.LNil {
		return 0, 0, false // script declined
	}
	nx, okx := lx.(lua.LNumber)
	ny, oky := ly.(lua.LNumber)
	if !okx || !oky {
		e.log.Error("lua spawn_position returned non-numbers",
			zap.String("x", lx.Type().String()),
			zap.String("y", ly.Type().String()),
		)
		return 0, 0, false
	}
	return float64(nx), float64(ny), true
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}
