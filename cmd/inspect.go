package cmd

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/ifc-lite/modelstore/internal/cachefmt"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [cache.ifcl]",
	Short: "Print a cache file's header and section table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		h, err := cachefmt.ReadHeader(buf)
		if err != nil {
			return err
		}
		entries, err := cachefmt.ReadSectionTable(buf, h)
		if err != nil {
			return err
		}

		sections := make([]any, 0, len(entries))
		for _, e := range entries {
			sections = append(sections, map[string]any{
				"type":   e.Type.String(),
				"offset": e.Offset,
				"size":   e.Size,
			})
		}
		out := map[string]any{
			"formatVersion": h.Version,
			"schemaVersion": h.Schema,
			"sourceHash":    fmt.Sprintf("%016x", h.SourceHash),
			"entityCount":   h.EntityCount,
			"vertexCount":   h.VertexCount,
			"triangleCount": h.TriangleCount,
			"hasGeometry":   h.HasGeometry(),
			"hasSpatial":    h.HasSpatial(),
			"sections":      sections,
		}
		fmt.Println(oj.JSON(out, 2))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [cache.ifcl] [source]",
	Short: "Check a cache file against its source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		source, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		ok, err := cachefmt.Validate(cache, source)
		if err != nil {
			return fmt.Errorf("cache is malformed: %w", err)
		}
		if !ok {
			fmt.Println("stale: source hash mismatch")
			os.Exit(1)
		}
		fmt.Println("valid")
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash [source]",
	Short: "Print the content hash a cache of this source would carry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%016x\n", cachefmt.HashSource(source))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd, validateCmd, hashCmd)
}
