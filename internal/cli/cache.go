package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/httputil"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the HTTP response cache",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())

	return cmd
}

// newCacheClearCmd creates the "cache clear" subcommand.
func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached HTTP responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := httputil.NewCache("", 0)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cache.Dir()); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			printSuccess("Cache cleared")
			printDetail("Directory: %s", cache.Dir())
			return nil
		},
	}
}

// newCachePathCmd creates the "cache path" subcommand.
func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := httputil.NewCache("", 0)
			if err != nil {
				return err
			}
			cmd.Println(cache.Dir())
			return nil
		},
	}
}
