package dispatcher

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"hilctl/internal/bridge"
	"hilctl/internal/busaccess"
	"hilctl/internal/config"
	"hilctl/internal/deployer"
	"hilctl/internal/emulator"
	"hilctl/internal/scope"
	"hilctl/internal/timing"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	acc := busaccess.NewSinkAccessor()
	layout, err := config.DefaultLayout(config.Zynq)
	if err != nil {
		t.Fatal(err)
	}
	return &Dispatcher{
		Bridge:   bridge.New(acc, config.Zynq),
		Deployer: deployer.New(acc, layout, true),
		Scope:    scope.New(acc, scope.Registers{Base: 0x1000}),
		Emulator: emulator.New(),
		Timing:   timing.New(acc, [4]uint64{100_000_000, 100_000_000, 100_000_000, 100_000_000}),
	}
}

func TestDispatchGetVersionAndNull(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`{"cmd":"get_version","args":{}}`))
	var env struct {
		Cmd  string `json:"cmd"`
		Body struct {
			ResponseCode int    `json:"response_code"`
			Data         string `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 || env.Body.Data != Version {
		t.Fatalf("unexpected get_version response: %+v", env)
	}

	resp = d.Dispatch([]byte(`{"cmd":"null","args":{}}`))
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 {
		t.Fatalf("expected ok from null, got %+v", env)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`{"cmd":"not_a_real_command","args":{}}`))
	var env struct {
		Body struct {
			ResponseCode int `json:"response_code"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 3 { // invalid_cmd_schema
		t.Fatalf("expected invalid_cmd_schema, got %+v", env)
	}
}

func TestDispatchRegisterWriteThenRead(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch([]byte(`{"cmd":"register_write","args":{"type":"direct","addresses":[4096],"data":7}}`))
	var env struct {
		Body struct {
			ResponseCode int `json:"response_code"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 {
		t.Fatalf("expected ok from register_write, got %+v", env)
	}

	resp = d.Dispatch([]byte(`{"cmd":"register_read","args":{"address":4096}}`))
	var readEnv struct {
		Body struct {
			ResponseCode int `json:"response_code"`
			Data         int `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &readEnv); err != nil {
		t.Fatal(err)
	}
	if readEnv.Body.ResponseCode != 1 {
		t.Fatalf("expected ok from register_read, got %+v", readEnv)
	}
}

func TestDispatchDeployThenHilAddressMap(t *testing.T) {
	d := newTestDispatcher(t)
	deploySpec := `{
		"cores": [{"id": "c0", "order": 0, "sample_hz": 0, "channels": 1, "program": [12, 12]}]
	}`
	resp := d.Dispatch([]byte(`{"cmd":"deploy_hil","args":` + deploySpec + `}`))
	var env struct {
		Body struct {
			ResponseCode int `json:"response_code"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 {
		t.Fatalf("expected ok from deploy_hil, got %+v", env)
	}

	resp = d.Dispatch([]byte(`{"cmd":"get_hil_address_map","args":{}}`))
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 {
		t.Fatalf("expected ok from get_hil_address_map, got %+v", env)
	}
}

func TestDispatchEmulateHilReportsResult(t *testing.T) {
	d := newTestDispatcher(t)
	emSpec := `{
		"cores": [{"id": "c0", "order": 0, "channels": 1, "program": [12, 12, 1],
			"inputs": [{"name":"a","kind":"constant","meta":{"type":"float"},"reg":[0],"values":[2]},
			           {"name":"b","kind":"constant","meta":{"type":"float"},"reg":[1],"values":[3]}],
			"outputs": [{"name":"out"}]}]
	}`
	resp := d.Dispatch([]byte(`{"cmd":"emulate_hil","args":` + emSpec + `}`))
	var env struct {
		Body struct {
			ResponseCode int `json:"response_code"`
			Data         struct {
				Code         int    `json:"code"`
				ResultsValid bool   `json:"results_valid"`
				Results      string `json:"results"`
			} `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.Data.Code != 1 || !env.Body.Data.ResultsValid {
		t.Fatalf("expected successful emulation, got %+v", env.Body.Data)
	}
	if !strings.Contains(env.Body.Data.Results, "out") {
		t.Fatalf("expected results to name output %q, got %s", "out", env.Body.Data.Results)
	}
}

func TestDispatchSetAndGetDebugLevel(t *testing.T) {
	d := newTestDispatcher(t)
	d.Dispatch([]byte(`{"cmd":"set_debug_level","args":{"level":3}}`))
	resp := d.Dispatch([]byte(`{"cmd":"get_debug_level","args":{}}`))
	var env struct {
		Body struct {
			Data int `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.Data != 3 {
		t.Fatalf("expected debug level 3, got %d", env.Body.Data)
	}
}

func TestDispatchMsgpackRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	raw, err := msgpack.Marshal(map[string]any{
		"cmd":  "get_version",
		"args": map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := d.Dispatch(raw)
	var env struct {
		Cmd  string `msgpack:"cmd"`
		Body struct {
			ResponseCode int    `msgpack:"response_code"`
			Data         string `msgpack:"data"`
		} `msgpack:"body"`
	}
	if err := msgpack.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 || env.Body.Data != Version {
		t.Fatalf("unexpected msgpack response: %+v", env)
	}
}

func TestDispatchHilDebugFreeformDescribe(t *testing.T) {
	d := newTestDispatcher(t)
	deploySpec := `{"cores": [{"id": "c0", "order": 0, "channels": 1, "program": [12, 12]}]}`
	d.Dispatch([]byte(`{"cmd":"deploy_hil","args":` + deploySpec + `}`))

	resp := d.Dispatch([]byte(`{"cmd":"hil_debug","args":"describe c0"}`))
	var env struct {
		Body struct {
			ResponseCode int `json:"response_code"`
			Data         struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"body"`
	}
	if err := json.Unmarshal(resp, &env); err != nil {
		t.Fatal(err)
	}
	if env.Body.ResponseCode != 1 || env.Body.Data.ID != "c0" {
		t.Fatalf("unexpected hil_debug response: %+v", env)
	}
}
