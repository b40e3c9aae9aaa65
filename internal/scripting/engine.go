package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the talisman formulas.
// Calls are serialised; reload runs on the maintenance goroutine while the
// game loop never touches the VM.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from scriptsDir/talisman.
// A missing directory is not an error; callers then get no scripted values.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadDir(filepath.Join(scriptsDir, "talisman")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load talisman scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Warn("lua 腳本目錄不存在，使用內建公式", zap.String("dir", dir))
			return nil
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

// LoadString evaluates a chunk of Lua source; used to override formulas at runtime.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// ModifierContext is what modifier_amount(ctx) receives.
type ModifierContext struct {
	Talisman  string
	Level     int
	Operation string
	Config    map[string]any // level config, relative dotted keys
}

// ModifierAmount calls the Lua modifier_amount function.
// ok is false when the function is absent, fails, or returns a non-number;
// the caller then falls back to the built-in formula.
func (e *Engine) ModifierAmount(ctx ModifierContext) (amount float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("modifier_amount")
	if fn == lua.LNil {
		return 0, false
	}

	t := e.vm.NewTable()
	t.RawSetString("talisman", lua.LString(ctx.Talisman))
	t.RawSetString("level", lua.LNumber(ctx.Level))
	t.RawSetString("operation", lua.LString(ctx.Operation))

	cfg := e.vm.NewTable()
	keys := make([]string, 0, len(ctx.Config))
	for k := range ctx.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg.RawSetString(k, e.toLua(ctx.Config[k]))
	}
	t.RawSetString("config", cfg)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua modifier_amount error",
			zap.String("talisman", ctx.Talisman),
			zap.Int("level", ctx.Level),
			zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, isNum := result.(lua.LNumber)
	if !isNum {
		if result != lua.LNil {
			e.log.Warn("lua modifier_amount returned non-number",
				zap.String("talisman", ctx.Talisman),
				zap.String("type", result.Type().String()))
		}
		return 0, false
	}
	return float64(n), true
}

func (e *Engine) toLua(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		t := e.vm.NewTable()
		for _, item := range x {
			t.Append(e.toLua(item))
		}
		return t
	case map[string]any:
		t := e.vm.NewTable()
		for k, item := range x {
			t.RawSetString(k, e.toLua(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
