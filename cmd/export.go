package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ifc-lite/modelstore/internal/cachefmt"
	"github.com/ifc-lite/modelstore/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [cache.ifcl] [outdir]",
	Short: "Export a cache file's tables as Parquet datasets",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		m, err := cachefmt.Read(buf, cachefmt.ReadOptions{SkipGeometry: true})
		if err != nil {
			return err
		}
		outdir := args[1]
		if err := os.MkdirAll(outdir, 0o755); err != nil {
			return err
		}

		for _, ds := range export.Datasets() {
			path := filepath.Join(outdir, ds.Name+".parquet")
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := ds.Write(f, m); err != nil {
				_ = f.Close()
				return fmt.Errorf("export %s: %w", ds.Name, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Println("wrote", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
