package verstats

// Descriptor binds a stable statistic key to the policy that evolves it.
// Descriptors are declared by the host application, usually as package
// variables:
//
//	var LaunchCount = verstats.NewDescriptor("launchCount", verstats.Increment[int]())
type Descriptor[V any] struct {
	Key    string
	Policy Policy[V]
	Codec  Codec[V]
}

// NewDescriptor returns a Descriptor using JSONCodec. It panics on an empty
// key or nil policy.
func NewDescriptor[V any](key string, policy Policy[V]) Descriptor[V] {
	if key == "" {
		panic("verstats: descriptor key must not be empty")
	}
	if policy == nil {
		panic("verstats: descriptor " + key + " has nil policy")
	}
	return Descriptor[V]{Key: key, Policy: policy, Codec: JSONCodec[V]{}}
}

// With returns a copy of d folding with p. It binds per-record input,
// e.g. LastScreen.With(verstats.Replace("settings")).
func (d Descriptor[V]) With(p Policy[V]) Descriptor[V] {
	d.Policy = p
	return d
}

// WithCodec returns a copy of d storing values with c.
func (d Descriptor[V]) WithCodec(c Codec[V]) Descriptor[V] {
	d.Codec = c
	return d
}

func (d Descriptor[V]) codec() Codec[V] {
	if d.Codec == nil {
		return JSONCodec[V]{}
	}
	return d.Codec
}
