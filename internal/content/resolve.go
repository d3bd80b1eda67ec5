package content

import (
	"github.com/mesh-intelligence/showcase/internal/live"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Resolved is a binding state after fallback resolution.
type Resolved[T any] struct {
	Value        T
	Loading      bool  // no value has arrived and no failure was reported
	FromDefaults bool  // Value is the bundled default
	Err          error // last subscription failure, if any
}

// ResolveCollection picks between the remote items and def:
//
//  1. nothing delivered yet: loading, no value
//  2. delivered but empty: def
//  3. otherwise: the remote items
//
// A subscription failure before the first value resolves like an empty
// collection so readers are never stuck loading. The function is pure and
// does not copy its inputs.
func ResolveCollection(st live.State[[]types.Item], def []types.Item) Resolved[[]types.Item] {
	switch {
	case !st.Loaded && st.Err == nil:
		return Resolved[[]types.Item]{Loading: true}
	case len(st.Value) == 0:
		return Resolved[[]types.Item]{Value: def, FromDefaults: true, Err: st.Err}
	default:
		return Resolved[[]types.Item]{Value: st.Value, Err: st.Err}
	}
}

// ResolveProfile applies the same policy to the profile document. An
// absent or empty document resolves to def.
func ResolveProfile(st live.State[types.DocumentSnapshot], def types.Document) Resolved[types.ProfileConfig] {
	switch {
	case !st.Loaded && st.Err == nil:
		return Resolved[types.ProfileConfig]{Loading: true}
	case !st.Value.Exists || len(st.Value.Data) == 0:
		return Resolved[types.ProfileConfig]{Value: types.ProfileConfig{Fields: def}, FromDefaults: true, Err: st.Err}
	default:
		return Resolved[types.ProfileConfig]{Value: types.ProfileConfig{Fields: st.Value.Data}, Err: st.Err}
	}
}
