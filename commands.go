package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/justin-molloy/mediawatch/config"
	"github.com/justin-molloy/mediawatch/store"
	"github.com/justin-molloy/mediawatch/walker"
)

// The roots commands work on the database directly. A running instance picks
// up the change on its next start.
func newRootsCommand(flags *config.FlagOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "Manage watched directories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List watched directories and their last activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(ctx context.Context, st *store.Store) error {
				roots, err := st.FindAll(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PATH\tLAST UPDATE")
				for _, r := range roots {
					last := "never"
					if !r.LastUpdate.IsZero() {
						last = r.LastUpdate.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\n", r.Path, last)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <dir>",
		Short: "Add a directory to watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			return withStore(flags, func(ctx context.Context, st *store.Store) error {
				if _, err := st.Create(ctx, dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Added", dir)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <dir>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			return withStore(flags, func(ctx context.Context, st *store.Store) error {
				if err := st.Delete(ctx, dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed", dir)
				return nil
			})
		},
	})

	return cmd
}

func withStore(flags *config.FlagOptions, fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(context.Background(), st)
}

func newWalkCommand(flags *config.FlagOptions) *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "walk <dir>",
		Short: "List the subdirectories of a local or remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				fsys walker.FS = walker.LocalFS{}
				dir            = args[0]
			)

			if remote != "" {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				entry, ok := cfg.Remote(remote)
				if !ok {
					return errors.New("no remote named " + remote + " in config")
				}
				sftpFS, err := walker.DialSFTP(entry)
				if err != nil {
					return err
				}
				defer sftpFS.Close()
				fsys = sftpFS
			}

			entries, err := walker.ListSubdirectories(cmd.Context(), fsys, dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "Name of a configured remote to browse over SFTP")
	return cmd
}

func newConfigCommand(flags *config.FlagOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return config.PrintConfig(cmd.OutOrStdout(), *cfg)
		},
	}
}
