// Package expand rewrites marker operations left in generated WebAssembly
// function bodies by an earlier code-generation stage.
//
// Markers are references to a reserved import namespace: reads of its
// globals KeyI0..KeyI15 stand in for configuration-derived constants, calls
// to its Placeholder function wrap a value whose computation is replaced
// later, and calls to its Crypt function mark a cryptographic primitive to
// be inlined. A Pass resolves all three against caller-supplied key values
// and transforms, leaving a body free of marker references.
//
//	p := expand.New(mod, expand.Config{
//		Keys:        map[expand.KeySlot]uint32{0: 0xdead, 1: 42},
//		Placeholder: expand.PassthroughPlaceholder,
//		Crypt:       expand.InlineXorCrypt,
//	})
//	if err := p.Expand(); err != nil {
//		// the module may be partially rewritten; discard it
//	}
//
// Every failure aborts the pass immediately. The pass offers no rollback:
// callers needing atomicity must run it against a copy of the module.
package expand
