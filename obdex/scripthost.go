package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Script Host façade: compiles catalog scripts once and
 *		runs them against freshly pushed bytes (spec.md 4.3).
 *
 * Description:	Implements the Script Host operations of spec.md 4.3
 *		as plain Go methods rather than literal global-scope
 *		functions inside an embedded VM, since the evaluator
 *		here is the Go tree-walker in scriptlang.go, not a
 *		separate embedded language runtime. resolve/clear_state/
 *		push_data_bytes/push_msg/invoke/drain_results map
 *		directly onto ScriptHost's (unexported) methods.
 *
 *------------------------------------------------------------------*/

import "fmt"

// compiledScript is one catalog <script> body, parsed once at Engine
// construction and re-evaluated on every invoke.
type compiledScript struct {
	key   string
	stmts []scriptStmt
}

// scriptRuntime is the process-global state a decoder invocation reads
// and writes: the pushed payload(s)/headers, the originating request
// bytes (when available, for REQ(n)), and the accumulated results.
// Exactly one decode is in flight per ScriptHost at a time (spec.md 5).
type scriptRuntime struct {
	dataLists [][]byte
	headers   [][]byte
	reqBytes  []byte

	nums []NumericalData
	lits []LiteralData
}

func (rt *scriptRuntime) callBuiltin(name string, args []scriptValue) (scriptValue, error) {
	switch name {
	case "BYTE":
		if len(args) != 1 {
			return scriptValue{}, fmt.Errorf("BYTE(n) requires 1 argument, got %d", len(args))
		}
		n, err := args[0].asFloat()
		if err != nil {
			return scriptValue{}, err
		}
		if len(rt.dataLists) == 0 {
			return scriptValue{}, fmt.Errorf("BYTE(%d): no payload has been pushed", int(n))
		}
		return byteAt(rt.dataLists[0], int(n))

	case "DATA":
		if len(args) != 2 {
			return scriptValue{}, fmt.Errorf("DATA(i, j) requires 2 arguments, got %d", len(args))
		}
		i, err := args[0].asFloat()
		if err != nil {
			return scriptValue{}, err
		}
		j, err := args[1].asFloat()
		if err != nil {
			return scriptValue{}, err
		}
		idx := int(i)
		if idx < 0 || idx >= len(rt.dataLists) {
			return scriptValue{}, fmt.Errorf("DATA(%d, ...): payload index out of range (have %d payloads)", idx, len(rt.dataLists))
		}
		return byteAt(rt.dataLists[idx], int(j))

	case "REQ":
		if len(args) != 1 {
			return scriptValue{}, fmt.Errorf("REQ(n) requires 1 argument, got %d", len(args))
		}
		n, err := args[0].asFloat()
		if err != nil {
			return scriptValue{}, err
		}
		if rt.reqBytes == nil {
			return scriptValue{}, fmt.Errorf("REQ(%d): no request bytes are available for this decode", int(n))
		}
		return byteAt(rt.reqBytes, int(n))

	default:
		return scriptValue{}, fmt.Errorf("unknown builtin %q", name)
	}
}

func byteAt(data []byte, n int) (scriptValue, error) {
	if n < 0 || n >= len(data) {
		return scriptValue{}, fmt.Errorf("byte index %d out of range (length %d)", n, len(data))
	}
	return numberValue(float64(data[n])), nil
}

// evalContext is the per-statement evaluation environment: the `let`
// bindings local to one script run, plus the shared runtime.
type evalContext struct {
	env map[string]scriptValue
	rt  *scriptRuntime
}

// ScriptHost owns the compiled decoder registry and the process-global
// runtime state described in spec.md 4.3/5. One ScriptHost is owned by
// exactly one Engine for its lifetime (spec.md 5).
type ScriptHost struct {
	scripts  []*compiledScript
	registry map[string]int
	rt       scriptRuntime
	logger   Logger
}

// newScriptHost constructs an empty Script Host. NewEngine adds the
// catalog's scripts with Compile.
func newScriptHost(logger Logger) *ScriptHost {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ScriptHost{registry: make(map[string]int), logger: logger}
}

// Compile parses src and registers it under key, returning the handle
// that resolve will later hand back for that same key. A parse
// failure is a ScriptContextSetupError, since compilation happens at
// Engine construction time (spec.md 5's "acquired in the Engine
// constructor").
func (h *ScriptHost) Compile(key, src string) (int, error) {
	stmts, err := parseScript(src)
	if err != nil {
		return 0, newScriptContextSetupFailed("compiling script %q: %v", key, err)
	}

	handle := len(h.scripts)
	h.scripts = append(h.scripts, &compiledScript{key: key, stmts: stmts})
	h.registry[key] = handle
	return handle, nil
}

// resolve looks up a previously compiled script's handle by its
// "{spec}:{address}:{name}:{protocols}" registry key (spec.md 4.3
// item 3).
func (h *ScriptHost) resolve(key string) (int, bool) {
	handle, ok := h.registry[key]
	return handle, ok
}

// clearState resets the process-global runtime, per spec.md 4.3's
// invariant that clear_state is called before every decoder
// invocation.
func (h *ScriptHost) clearState() {
	h.rt.dataLists = nil
	h.rt.headers = nil
	h.rt.reqBytes = nil
	h.rt.nums = nil
	h.rt.lits = nil
}

// pushDataBytes stages a list of byte sequences for the next invoke
// (__private__add_list_databytes).
func (h *ScriptHost) pushDataBytes(payloads [][]byte) {
	h.rt.dataLists = payloads
}

// pushMsg stages headers and payloads for the next invoke
// (__private__add_msg_data).
func (h *ScriptHost) pushMsg(headers, datas [][]byte) {
	h.rt.headers = headers
	h.rt.dataLists = datas
}

// setRequestBytes makes the request payload that produced the current
// response available to REQ(n). It is an ambient addition to spec.md
// 4.3's private callables, not present in the original five, since the
// request bytes are the Engine's data to provide.
func (h *ScriptHost) setRequestBytes(b []byte) {
	h.rt.reqBytes = b
}

// invoke runs the compiled script at handle against the currently
// staged runtime state, accumulating NUM/LIT results.
func (h *ScriptHost) invoke(handle int) error {
	if handle < 0 || handle >= len(h.scripts) {
		return newParseFailed(ProtocolUnknown, "invoke: handle %d is not registered", handle)
	}

	script := h.scripts[handle]
	ctx := &evalContext{env: make(map[string]scriptValue), rt: &h.rt}

	for _, stmt := range script.stmts {
		if err := stmt.exec(ctx); err != nil {
			return newParseFailed(ProtocolUnknown, "decoder %q: %v", script.key, err)
		}
	}

	return nil
}

// drainResults returns everything NUM/LIT statements accumulated since
// the last clearState, per spec.md 4.3 item 3 ("results are drained
// immediately after invocation").
func (h *ScriptHost) drainResults() ([]NumericalData, []LiteralData) {
	nums, lits := h.rt.nums, h.rt.lits
	h.rt.nums, h.rt.lits = nil, nil
	return nums, lits
}
