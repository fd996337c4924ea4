package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the configured cache store",
}

var storePutCmd = &cobra.Command{
	Use:   "put [key] [cache.ifcl]",
	Short: "Store a cache file under a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		return b.Put(args[0], data)
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get [key] [out.ifcl]",
	Short: "Fetch a stored cache blob into a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		data, ok, err := b.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", args[0])
		}
		return os.WriteFile(args[1], data, 0o644)
	},
}

var storeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored cache blobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		entries, err := b.Entries()
		if err != nil {
			return err
		}
		var total int64
		for _, e := range entries {
			fmt.Printf("%12d  %s\n", e.Size, e.Key)
			total += e.Size
		}
		fmt.Printf("%d blobs, %d bytes\n", len(entries), total)
		return nil
	},
}

var storeRmCmd = &cobra.Command{
	Use:   "rm [key]",
	Short: "Delete a stored cache blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		return b.Delete(args[0])
	},
}

func init() {
	storeCmd.AddCommand(storePutCmd, storeGetCmd, storeLsCmd, storeRmCmd)
	rootCmd.AddCommand(storeCmd)
}
