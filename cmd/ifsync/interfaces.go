package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ifsync/internal/application/lifecycle"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var all, inactive bool
	var max int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List toplevel interfaces",
		Long:  "List configured toplevel interfaces. Only active interfaces are listed unless --inactive or --all is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := lifecycle.FlagActive
			switch {
			case all:
				flags = lifecycle.FlagActive | lifecycle.FlagInactive
			case inactive:
				flags = lifecycle.FlagInactive
			}

			return opts.withManager(func(m *lifecycle.Manager) error {
				names, err := m.ListInterfaces(cmd.Context(), max, flags)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list active and inactive interfaces")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "list inactive interfaces only")
	cmd.Flags().IntVar(&max, "max", -1, "list at most this many interfaces (-1 for no limit)")
	return cmd
}

func newDumpXMLCmd(opts *globalOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "dumpxml <name>",
		Short: "Print the descriptor of an interface",
		Example: `  ifsync dumpxml br0
  ifsync dumpxml br0 --live`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				iface, err := m.LookupByName(args[0])
				if err != nil {
					return err
				}
				defer iface.Release()

				var doc []byte
				if live {
					doc, err = m.XMLState(cmd.Context(), iface)
				} else {
					doc, err = m.XMLDesc(iface)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "merge the live MAC, MTU and addresses into the descriptor")
	return cmd
}

func newDefineCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "define <file>",
		Short: "Write the configuration for a descriptor; - reads standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDescriptor(cmd, args[0])
			if err != nil {
				return err
			}
			return opts.withManager(func(m *lifecycle.Manager) error {
				iface, err := m.Define(doc)
				if err != nil {
					return err
				}
				defer iface.Release()
				fmt.Fprintf(cmd.OutOrStdout(), "Interface %s defined\n", iface.Name())
				return nil
			})
		},
	}
}

func newUndefineCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undefine <name>",
		Short: "Remove the configuration of an interface and its ports or slaves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				return onInterface(m, args[0], func(iface *lifecycle.Interface) error {
					if err := m.Undefine(iface); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Interface %s undefined\n", iface.Name())
					return nil
				})
			})
		},
	}
}

func newIfUpCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ifup <name>",
		Short: "Bring an interface up, bridge ports first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				return onInterface(m, args[0], func(iface *lifecycle.Interface) error {
					return m.IfUp(cmd.Context(), iface)
				})
			})
		},
	}
}

func newIfDownCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ifdown <name>",
		Short: "Bring an interface down, then its bridge ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				return onInterface(m, args[0], func(iface *lifecycle.Interface) error {
					return m.IfDown(cmd.Context(), iface)
				})
			})
		},
	}
}

func newLookupMACCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "lookup-mac <mac>",
		Short: "List the toplevel interfaces configured with a MAC address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				found, err := m.LookupByMAC(args[0], limit)
				if err != nil {
					return err
				}
				for _, iface := range found {
					fmt.Fprintln(cmd.OutOrStdout(), iface.Name())
					iface.Release()
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 16, "report at most this many interfaces (-1 for no limit)")
	return cmd
}

func newForestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forest <name>",
		Short: "Print the intermediate forest document of an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				doc, err := m.ForestXML(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return nil
			})
		},
	}
}

func newApplyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file>",
		Short: "Define a descriptor and bring it up, rolling back on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDescriptor(cmd, args[0])
			if err != nil {
				return err
			}
			return opts.withManager(func(m *lifecycle.Manager) error {
				name, err := m.Apply(cmd.Context(), doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Interface %s applied\n", name)
				return nil
			})
		},
	}
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Bring an interface down and undefine it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(m *lifecycle.Manager) error {
				return m.Remove(cmd.Context(), args[0])
			})
		},
	}
}

// onInterface looks name up and releases the handle after fn
func onInterface(m *lifecycle.Manager, name string, fn func(iface *lifecycle.Interface) error) error {
	iface, err := m.LookupByName(name)
	if err != nil {
		return err
	}
	defer iface.Release()
	return fn(iface)
}

func readDescriptor(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	return data, nil
}
