package layout

// Target describes the data layout of the machine the host compiler targets.
type Target struct {
	Triple   string // e.g. "x86_64-unknown-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
}

// X86_64Linux is the default target; the reference machine uses 8-byte
// pointers.
func X86_64Linux() Target {
	return Target{
		Triple:   "x86_64-unknown-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
	}
}
