package cmd

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/ifc-lite/modelstore/internal/cachefmt"
	"github.com/ifc-lite/modelstore/internal/spatial"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [cache.ifcl]",
	Short: "Hydrate a cache file and dump a model summary as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		m, err := cachefmt.Read(buf, cachefmt.ReadOptions{SkipGeometry: true})
		if err != nil {
			return err
		}

		byType := make(map[string]int, m.Entities.TypeCount())
		for row := 0; row < m.Entities.Count(); row++ {
			byType[m.Entities.TypeName(m.Entities.TypeCode(row))]++
		}
		out := map[string]any{
			"entities":      m.Entities.Count(),
			"entityTypes":   byType,
			"strings":       m.Strings.Len(),
			"properties":    0,
			"quantities":    0,
			"relationships": 0,
		}
		if m.Properties != nil {
			out["properties"] = m.Properties.Count()
		}
		if m.Quantities != nil {
			out["quantities"] = m.Quantities.Count()
		}
		if m.Graph != nil {
			out["relationships"] = m.Graph.EdgeCount()
		}
		if m.Spatial != nil && m.Spatial.Root != nil {
			out["spatial"] = spatialJSON(m.Spatial.Root)
		}
		fmt.Println(oj.JSON(out, 2))
		return nil
	},
}

func spatialJSON(n *spatial.Node) map[string]any {
	out := map[string]any{
		"id":   n.ExpressID,
		"type": n.Type,
	}
	if n.Name != "" {
		out["name"] = n.Name
	}
	if n.Elevation != nil {
		out["elevation"] = *n.Elevation
	}
	if len(n.Elements) > 0 {
		out["elements"] = len(n.Elements)
	}
	if len(n.Children) > 0 {
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = spatialJSON(c)
		}
		out["children"] = children
	}
	return out
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
