package abi

import (
	"fmt"

	"github.com/wippyai/savefile/resource"
)

// Ref passes an interface instance across the boundary. An owning Ref
// obliges its holder to drop the instance through the interface's entry
// point; a borrowed Ref must not outlive the call or lender that produced
// it. Ref is a plain struct, so it can be an argument or a return value.
type Ref struct {
	Interface string
	Handle    resource.Handle
	Owning    bool
}

func (r Ref) String() string {
	kind := "borrowed"
	if r.Owning {
		kind = "owning"
	}
	return fmt.Sprintf("%s#%d (%s)", r.Interface, r.Handle, kind)
}

// Valid reports whether r refers to an instance at all.
func (r Ref) Valid() bool {
	return r.Interface != "" && r.Handle != 0
}
