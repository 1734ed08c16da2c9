package expand

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-expand/wasm"
)

// TestExpandedModuleExecutes expands and strips a module end to end, then
// runs the result. compute(a, b) = Placeholder(KeyI0 + a) + Crypt(a, b),
// which after expansion with key 100, passthrough, and inline xor must
// evaluate to (100 + a) + (a ^ b).
func TestExpandedModuleExecutes(t *testing.T) {
	m := markerModule([]string{"KeyI0"}, []wasm.Instruction{
		gget(0), lget(0), op(wasm.OpI32Add), callTo(0),
		lget(0), lget(1), callTo(1),
		op(wasm.OpI32Add), op(wasm.OpEnd),
	})
	m.Exports = []wasm.Export{{Name: "compute", Kind: wasm.KindFunc, Idx: 2}}

	p := New(m, Config{
		Keys:        map[KeySlot]uint32{0: 100},
		Placeholder: PassthroughPlaceholder,
		Crypt:       InlineXorCrypt,
	})
	if err := p.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if err := p.StripImports(); err != nil {
		t.Fatalf("StripImports: %v", err)
	}
	bin := wasm.EncodeModule(m)

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	inst, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	compute := inst.ExportedFunction("compute")
	if compute == nil {
		t.Fatal("compute not exported")
	}

	cases := []struct {
		a, b uint64
		want uint64
	}{
		{5, 3, 111},  // 105 + (5 ^ 3)
		{0, 0, 100},  // 100 + 0
		{1, 1, 101},  // 101 + 0
		{7, 12, 118}, // 107 + 11
	}
	for _, tc := range cases {
		out, err := compute.Call(ctx, tc.a, tc.b)
		if err != nil {
			t.Fatalf("compute(%d, %d): %v", tc.a, tc.b, err)
		}
		if out[0] != tc.want {
			t.Errorf("compute(%d, %d) = %d, want %d", tc.a, tc.b, out[0], tc.want)
		}
	}
}
