package scenegraph

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.Indent = "  "
	spewConfig.DisablePointerAddresses = true
	spewConfig.DisableCapacities = true
	spewConfig.SortKeys = true
	spewConfig.MaxDepth = 6
}

// Dump renders the tree as an indented outline followed by a full spew dump
// of every material. Meant for debug logs and the /debug/scene endpoint.
func Dump(root Node) string {
	var sb strings.Builder
	err := Walk(root, func(n Node, depth int) error {
		b := n.Base()
		pad := strings.Repeat("  ", depth)
		switch v := n.(type) {
		case *GroupNode:
			fmt.Fprintf(&sb, "%s+ group %q visible=%v\n", pad, b.Name, b.Visible)
		case *MeshNode:
			fmt.Fprintf(&sb, "%s+ mesh %q visible=%v primitives=%d\n", pad, b.Name, b.Visible, len(v.Primitives))
		case *OtherNode:
			fmt.Fprintf(&sb, "%s+ %s %q visible=%v\n", pad, v.Kind, b.Name, b.Visible)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(&sb, "! %v\n", err)
	}

	for _, m := range Materials(root) {
		sb.WriteString(spewConfig.Sdump(m))
	}
	return sb.String()
}
